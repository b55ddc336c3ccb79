package domain

import "time"

// TransmissionSession records one egress run for an event: when it started,
// when it ended and the last provider-reported status. Sessions are an
// archive of egress jobs, not of stage states.
type TransmissionSession struct {
	ID         string     `json:"id"`
	EventID    string     `json:"event_id"`
	EgressID   string     `json:"egress_id"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	LastStatus string     `json:"last_status,omitempty"`
	LastError  string     `json:"last_error,omitempty"`
}

// TransmissionSessionModel is the GORM model for the transmission_sessions table.
type TransmissionSessionModel struct {
	ID         string    `gorm:"type:varchar(36);primaryKey"`
	EventID    string    `gorm:"type:varchar(64);index;not null"`
	EgressID   string    `gorm:"type:varchar(64);index;not null"`
	StartedAt  time.Time `gorm:"autoCreateTime"`
	EndedAt    *time.Time
	LastStatus string `gorm:"type:varchar(40)"`
	LastError  string `gorm:"type:text"`
}

// TableName specifies the table name for TransmissionSessionModel.
func (TransmissionSessionModel) TableName() string {
	return "transmission_sessions"
}

// ToDomain converts the model to a domain TransmissionSession.
func (m *TransmissionSessionModel) ToDomain() *TransmissionSession {
	return &TransmissionSession{
		ID:         m.ID,
		EventID:    m.EventID,
		EgressID:   m.EgressID,
		StartedAt:  m.StartedAt,
		EndedAt:    m.EndedAt,
		LastStatus: m.LastStatus,
		LastError:  m.LastError,
	}
}

// SessionToModel converts a domain TransmissionSession to its GORM model.
func SessionToModel(s *TransmissionSession) *TransmissionSessionModel {
	return &TransmissionSessionModel{
		ID:         s.ID,
		EventID:    s.EventID,
		EgressID:   s.EgressID,
		StartedAt:  s.StartedAt,
		EndedAt:    s.EndedAt,
		LastStatus: s.LastStatus,
		LastError:  s.LastError,
	}
}
