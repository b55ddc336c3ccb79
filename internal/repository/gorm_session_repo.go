package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/genialityco/gen-live-web-sub001/internal/domain"
	"github.com/genialityco/gen-live-web-sub001/pkg/log"
)

// GormSessionRepository implements SessionRepository using GORM.
type GormSessionRepository struct {
	db *gorm.DB
}

// NewGormSessionRepository creates a new GORM-based session repository.
func NewGormSessionRepository(db *gorm.DB) *GormSessionRepository {
	return &GormSessionRepository{db: db}
}

// Create opens a new session record.
func (r *GormSessionRepository) Create(ctx context.Context, session *domain.TransmissionSession) error {
	l := log.Ctx(ctx)

	session.ID = uuid.New().String()

	model := domain.SessionToModel(session)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		l.Error().Err(err).Msg("failed to create transmission session in db")
		return err
	}

	session.StartedAt = model.StartedAt
	l.Debug().Str("session_id", session.ID).Str(log.FieldEgressID, session.EgressID).Msg("transmission session opened")
	return nil
}

// UpdateStatus records the last provider-reported status for a running job.
func (r *GormSessionRepository) UpdateStatus(ctx context.Context, egressID, status, lastError string) error {
	result := r.db.WithContext(ctx).
		Model(&domain.TransmissionSessionModel{}).
		Where("egress_id = ? AND ended_at IS NULL", egressID).
		Updates(map[string]interface{}{
			"last_status": status,
			"last_error":  lastError,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// End closes the open session for an egress job.
func (r *GormSessionRepository) End(ctx context.Context, egressID string) error {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&domain.TransmissionSessionModel{}).
		Where("egress_id = ? AND ended_at IS NULL", egressID).
		Update("ended_at", &now)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// ListByEvent returns all sessions for an event, most recent first.
func (r *GormSessionRepository) ListByEvent(ctx context.Context, eventID string) ([]domain.TransmissionSession, error) {
	var models []domain.TransmissionSessionModel
	err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("started_at DESC").
		Find(&models).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	sessions := make([]domain.TransmissionSession, len(models))
	for i := range models {
		sessions[i] = *models[i].ToDomain()
	}
	return sessions, nil
}
