package main

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/genialityco/gen-live-web-sub001/internal/client"
	"github.com/genialityco/gen-live-web-sub001/internal/config"
	"github.com/genialityco/gen-live-web-sub001/internal/domain"
	"github.com/genialityco/gen-live-web-sub001/internal/egress"
	"github.com/genialityco/gen-live-web-sub001/internal/handler"
	"github.com/genialityco/gen-live-web-sub001/internal/hub"
	"github.com/genialityco/gen-live-web-sub001/internal/middleware"
	"github.com/genialityco/gen-live-web-sub001/internal/repository"
	"github.com/genialityco/gen-live-web-sub001/internal/service"
	"github.com/genialityco/gen-live-web-sub001/internal/store"
	"github.com/genialityco/gen-live-web-sub001/pkg/database"
	pkglog "github.com/genialityco/gen-live-web-sub001/pkg/log"
	"github.com/genialityco/gen-live-web-sub001/pkg/pubsub"
	"github.com/genialityco/gen-live-web-sub001/pkg/token"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	// Initialize structured logger
	pkglog.Init(pkglog.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Pretty,
		ServiceName: cfg.Log.ServiceName,
	})
	logger := pkglog.L()

	// Change notification bus. With the redis driver the store shares its
	// own connection, so no separate bus is needed.
	var bus pubsub.PubSub
	if cfg.PubSub.Driver == pubsub.DriverKafka {
		bus, err = pubsub.NewPubSub(cfg.PubSub)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to pubsub")
		}
	}

	// Canonical stage store
	stageStore, err := store.NewRedisStore(cfg.Redis, bus)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer stageStore.Close()
	logger.Info().Str("addr", cfg.Redis.Address).Msg("stage store connected")

	// Transmission session archive. Optional: without a database the
	// archive lives in memory and disappears on restart.
	var sessions repository.SessionRepository
	if cfg.Database.Enabled {
		db, err := database.New(cfg.Database.ToDatabaseConfig())
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		if err := database.AutoMigrate(db, &domain.TransmissionSessionModel{}); err != nil {
			logger.Fatal().Err(err).Msg("failed to auto-migrate")
		}
		sessions = repository.NewGormSessionRepository(db)
		logger.Info().Str("driver", cfg.Database.Driver).Msg("session archive connected")
	} else {
		sessions = repository.NewMemorySessionRepository()
	}

	// Access tokens
	tokens, err := token.NewManager(cfg.Token.Duration, cfg.Token.Issuer)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create token manager")
	}

	// Live track feed from the conferencing layer
	mediaClient := client.NewMediaClient(cfg.Media.TracksURL, cfg.Media.CacheTTL)

	// Egress lifecycle
	provider := egress.NewHTTPProvider(cfg.Egress.ProviderURL)
	controller := egress.NewController(provider, stageStore, sessions, cfg.Egress.ViewBaseURL, cfg.Egress.PollInterval)
	defer controller.Close()

	// Business logic
	stageService := service.NewStageService(stageStore, tokens, controller, mediaClient)

	// Push surface
	stageHub := hub.NewHub(stageStore)
	go stageHub.Run()

	// HTTP surface
	authMiddleware := middleware.NewAuthMiddleware(tokens)
	wsHandler := handler.NewWSHandler(stageHub, tokens, cfg.WebSocket)
	httpHandler := handler.NewHandler(stageService, authMiddleware, wsHandler)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(pkglog.GinMiddleware(logger))
	httpHandler.RegisterRoutes(r)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Info().Str("addr", addr).Str("pubsub_driver", cfg.PubSub.Driver).Msg("stage-service starting")
	if err := r.Run(addr); err != nil {
		logger.Fatal().Err(err).Msg("failed to start server")
	}
}
