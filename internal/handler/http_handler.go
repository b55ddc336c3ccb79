package handler

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/genialityco/gen-live-web-sub001/internal/domain"
	"github.com/genialityco/gen-live-web-sub001/internal/egress"
	"github.com/genialityco/gen-live-web-sub001/internal/middleware"
	"github.com/genialityco/gen-live-web-sub001/internal/service"
	"github.com/genialityco/gen-live-web-sub001/pkg/log"
	"github.com/genialityco/gen-live-web-sub001/pkg/response"
)

// Handler handles HTTP requests for the stage service.
type Handler struct {
	stageService   service.StageService
	authMiddleware *middleware.AuthMiddleware
	wsHandler      *WSHandler
}

// NewHandler creates a new HTTP handler.
func NewHandler(stageService service.StageService, authMiddleware *middleware.AuthMiddleware, wsHandler *WSHandler) *Handler {
	return &Handler{
		stageService:   stageService,
		authMiddleware: authMiddleware,
		wsHandler:      wsHandler,
	}
}

// RegisterRoutes registers all routes.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)

	api := r.Group("/api/v1")
	{
		events := api.Group("/events/:id", eventScopedLogger())
		{
			// The program view is loaded headlessly by the egress
			// provider; it carries no credentials.
			events.GET("/program", h.GetProgram)

			// Browsers cannot set headers on websocket upgrades; the
			// handler validates a query-param token itself.
			events.GET("/ws", h.wsHandler.Serve)

			auth := events.Group("", h.authMiddleware.RequireAuth())
			{
				auth.GET("/stage", h.GetStage)

				auth.POST("/join-requests", h.RequestToJoin)
				auth.DELETE("/join-requests/:rid", h.CancelJoin)
				auth.GET("/decision", h.GetDecision)
			}

			host := events.Group("", h.authMiddleware.RequireAuth(), h.authMiddleware.RequireHost())
			{
				host.POST("/stage/promote", h.Promote)
				host.POST("/stage/demote", h.Demote)
				host.POST("/stage/pin", h.Pin)
				host.POST("/stage/unpin", h.Unpin)
				host.PUT("/stage/layout", h.SetLayout)
				host.PUT("/stage/program-mode", h.SetProgramMode)
				host.POST("/stage/kick", h.Kick)

				host.GET("/join-requests", h.ListPending)
				host.POST("/join-requests/:rid/approve", h.ApproveJoin)
				host.POST("/join-requests/:rid/reject", h.RejectJoin)

				host.POST("/transmission/start", h.StartTransmission)
				host.POST("/transmission/stop", h.StopTransmission)
				host.GET("/transmission", h.TransmissionStatus)
				host.GET("/transmissions", h.ListTransmissions)
			}
		}
	}
}

// eventScopedLogger tags the request logger with the event id from the
// route, so every handler log line below carries it.
func eventScopedLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(log.WithEvent(c.Request.Context(), c.Param("id")))
		c.Next()
	}
}

// Health returns service health status.
func (h *Handler) Health(c *gin.Context) {
	response.Success(c, gin.H{"status": "healthy"})
}

// GetStage returns the current stage state for an event.
func (h *Handler) GetStage(c *gin.Context) {
	ctx := c.Request.Context()

	state, err := h.stageService.GetStage(ctx, c.Param("id"))
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("failed to get stage state")
		response.InternalError(c, "failed to get stage state")
		return
	}
	response.Success(c, state)
}

// Promote brings a participant on stage.
func (h *Handler) Promote(c *gin.Context) {
	h.stageTarget(c, h.stageService.Promote)
}

// Demote removes a participant from stage.
func (h *Handler) Demote(c *gin.Context) {
	h.stageTarget(c, h.stageService.Demote)
}

// Pin focuses a participant.
func (h *Handler) Pin(c *gin.Context) {
	h.stageTarget(c, h.stageService.Pin)
}

// stageTarget binds a {uid} body and applies a per-participant stage op.
func (h *Handler) stageTarget(c *gin.Context, op func(ctx context.Context, eventID, hostUID, uid string) error) {
	ctx := c.Request.Context()

	var req domain.StageTargetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := op(ctx, c.Param("id"), middleware.GetUserID(c), req.UID); err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("stage operation failed")
		response.InternalError(c, "stage operation failed")
		return
	}
	response.Success(c, nil)
}

// Unpin clears the focused participant.
func (h *Handler) Unpin(c *gin.Context) {
	ctx := c.Request.Context()

	if err := h.stageService.Unpin(ctx, c.Param("id"), middleware.GetUserID(c)); err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("failed to clear pin")
		response.InternalError(c, "failed to clear pin")
		return
	}
	response.Success(c, nil)
}

// SetLayout changes the fine-grained compositor layout.
func (h *Handler) SetLayout(c *gin.Context) {
	ctx := c.Request.Context()

	var req domain.SetLayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.stageService.SetLayout(ctx, c.Param("id"), middleware.GetUserID(c), req.Layout); err != nil {
		if errors.Is(err, service.ErrInvalidLayout) {
			response.BadRequest(c, "unknown layout mode")
			return
		}
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("failed to set layout")
		response.InternalError(c, "failed to set layout")
		return
	}
	response.Success(c, nil)
}

// SetProgramMode changes the coarse program toggle.
func (h *Handler) SetProgramMode(c *gin.Context) {
	ctx := c.Request.Context()

	var req domain.SetProgramModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.stageService.SetProgramMode(ctx, c.Param("id"), middleware.GetUserID(c), req.Mode); err != nil {
		if errors.Is(err, service.ErrInvalidProgramMode) {
			response.BadRequest(c, "unknown program mode")
			return
		}
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("failed to set program mode")
		response.InternalError(c, "failed to set program mode")
		return
	}
	response.Success(c, nil)
}

// Kick removes a participant from the broadcast entirely.
func (h *Handler) Kick(c *gin.Context) {
	h.stageTarget(c, h.stageService.Kick)
}

// RequestToJoin creates a pending join request for the caller.
func (h *Handler) RequestToJoin(c *gin.Context) {
	ctx := c.Request.Context()

	req, err := h.stageService.RequestToJoin(ctx, c.Param("id"), middleware.GetUserID(c), middleware.GetName(c))
	if err != nil {
		if errors.Is(err, service.ErrDuplicateRequest) {
			response.Conflict(c, "a pending join request already exists")
			return
		}
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("failed to create join request")
		response.InternalError(c, "failed to create join request")
		return
	}
	response.Created(c, req)
}

// CancelJoin withdraws the caller's own pending request.
func (h *Handler) CancelJoin(c *gin.Context) {
	ctx := c.Request.Context()

	err := h.stageService.CancelJoin(ctx, c.Param("id"), c.Param("rid"), middleware.GetUserID(c))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRequestNotFound):
			response.NotFound(c, "join request not found")
		case errors.Is(err, service.ErrNotRequestOwner):
			response.Forbidden(c, "only the requesting participant can cancel")
		case errors.Is(err, service.ErrRequestResolved):
			response.Conflict(c, "join request was already resolved")
		default:
			l := log.Ctx(ctx)
			l.Error().Err(err).Msg("failed to cancel join request")
			response.InternalError(c, "failed to cancel join request")
		}
		return
	}
	response.Success(c, nil)
}

// ListPending returns the host moderation queue.
func (h *Handler) ListPending(c *gin.Context) {
	ctx := c.Request.Context()

	pending, err := h.stageService.ListPending(ctx, c.Param("id"))
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("failed to list join requests")
		response.InternalError(c, "failed to list join requests")
		return
	}
	response.Success(c, pending)
}

// ApproveJoin approves a pending request and issues the speaker token.
func (h *Handler) ApproveJoin(c *gin.Context) {
	ctx := c.Request.Context()

	req, err := h.stageService.ApproveJoin(ctx, c.Param("id"), middleware.GetUserID(c), c.Param("rid"))
	if err != nil {
		h.resolveError(c, err, "failed to approve join request")
		return
	}
	response.Success(c, req)
}

// RejectJoin rejects a pending request with an optional message.
func (h *Handler) RejectJoin(c *gin.Context) {
	ctx := c.Request.Context()

	var body domain.RejectJoinRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
	}

	req, err := h.stageService.RejectJoin(ctx, c.Param("id"), middleware.GetUserID(c), c.Param("rid"), body.Message)
	if err != nil {
		h.resolveError(c, err, "failed to reject join request")
		return
	}
	response.Success(c, req)
}

func (h *Handler) resolveError(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, service.ErrRequestNotFound):
		response.NotFound(c, "join request not found")
	case errors.Is(err, service.ErrRequestResolved):
		response.Conflict(c, "join request was already resolved")
	default:
		l := log.Ctx(c.Request.Context())
		l.Error().Err(err).Msg(msg)
		response.InternalError(c, msg)
	}
}

// GetDecision returns the caller's current decision mailbox value.
func (h *Handler) GetDecision(c *gin.Context) {
	ctx := c.Request.Context()

	d, ok, err := h.stageService.GetDecision(ctx, c.Param("id"), middleware.GetUserID(c))
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("failed to get decision")
		response.InternalError(c, "failed to get decision")
		return
	}
	if !ok {
		response.NotFound(c, "no decision yet")
		return
	}
	response.Success(c, d)
}

// GetProgram returns the current render plan for the program view.
func (h *Handler) GetProgram(c *gin.Context) {
	ctx := c.Request.Context()

	view, err := h.stageService.Program(ctx, c.Param("id"), domain.LayoutMode(c.Query("layout")))
	if err != nil {
		if errors.Is(err, service.ErrInvalidLayout) {
			response.BadRequest(c, "unknown layout mode")
			return
		}
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("failed to compute program")
		response.InternalError(c, "failed to compute program")
		return
	}
	response.Success(c, view)
}

// StartTransmission starts the egress job for an event.
func (h *Handler) StartTransmission(c *gin.Context) {
	ctx := c.Request.Context()

	job, err := h.stageService.StartTransmission(ctx, c.Param("id"), middleware.GetUserID(c))
	if err != nil {
		if errors.Is(err, egress.ErrAlreadyRunning) {
			response.Conflict(c, "transmission is already running")
			return
		}
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("failed to start transmission")
		response.BadGateway(c, "failed to start transmission")
		return
	}
	response.Success(c, job)
}

// StopTransmission stops the egress job for an event.
func (h *Handler) StopTransmission(c *gin.Context) {
	ctx := c.Request.Context()

	err := h.stageService.StopTransmission(ctx, c.Param("id"), middleware.GetUserID(c))
	if err != nil {
		if errors.Is(err, egress.ErrNotRunning) {
			response.NotFound(c, "no transmission is running")
			return
		}
		// Local state was cleared; report the provider failure.
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("egress provider stop failed")
		response.BadGateway(c, "egress provider stop failed")
		return
	}
	response.Success(c, nil)
}

// TransmissionStatus returns the current egress job status.
func (h *Handler) TransmissionStatus(c *gin.Context) {
	ctx := c.Request.Context()

	job, err := h.stageService.TransmissionStatus(ctx, c.Param("id"))
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("failed to get transmission status")
		response.InternalError(c, "failed to get transmission status")
		return
	}
	response.Success(c, job)
}

// ListTransmissions returns the archived egress runs for an event.
func (h *Handler) ListTransmissions(c *gin.Context) {
	ctx := c.Request.Context()

	sessions, err := h.stageService.ListTransmissions(ctx, c.Param("id"))
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("failed to list transmissions")
		response.InternalError(c, "failed to list transmissions")
		return
	}
	response.Success(c, sessions)
}
