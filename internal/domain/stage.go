package domain

// ProgramMode is the coarse program toggle surfaced on the host toolbar.
type ProgramMode string

const (
	ProgramModeSpeaker ProgramMode = "speaker"
	ProgramModeGrid    ProgramMode = "grid"
)

// LayoutMode is the fine-grained compositor mode.
//
// ProgramMode and LayoutMode partially overlap; both are kept so older
// renderer clients that only understand the coarse toggle keep working.
type LayoutMode string

const (
	LayoutSpeaker      LayoutMode = "speaker"
	LayoutGrid         LayoutMode = "grid"
	LayoutPresentation LayoutMode = "presentation"
	LayoutPiP          LayoutMode = "pip"
	LayoutSideBySide   LayoutMode = "side_by_side"
)

// ValidLayoutMode reports whether m names a known layout.
func ValidLayoutMode(m LayoutMode) bool {
	switch m {
	case LayoutSpeaker, LayoutGrid, LayoutPresentation, LayoutPiP, LayoutSideBySide:
		return true
	}
	return false
}

// ValidProgramMode reports whether m names a known program mode.
func ValidProgramMode(m ProgramMode) bool {
	return m == ProgramModeSpeaker || m == ProgramModeGrid
}

// StageState is the canonical broadcast state for one event. It is a
// last-write-wins document with independently writable leaves; writers
// always touch the narrowest field, never the whole document.
type StageState struct {
	EventID string `json:"event_id"`

	// OnStage is the promoted-participant set. Absent/false means backstage.
	OnStage map[string]bool `json:"on_stage"`

	// ActiveID is the pinned participant, or empty for automatic selection.
	ActiveID string `json:"active_id,omitempty"`

	ProgramMode ProgramMode `json:"program_mode"`
	LayoutMode  LayoutMode  `json:"layout_mode"`

	// Denormalized mirror of the current egress job, written by the egress
	// controller so every subscriber sees transmission state without
	// polling the provider themselves.
	EgressID     string `json:"egress_id,omitempty"`
	EgressStatus string `json:"egress_status,omitempty"`
}

// DefaultStageState returns the materialized default for an event with no
// stored state yet. Callers never branch on "not found".
func DefaultStageState(eventID string) StageState {
	return StageState{
		EventID:     eventID,
		OnStage:     map[string]bool{},
		ProgramMode: ProgramModeSpeaker,
		LayoutMode:  LayoutSpeaker,
	}
}

// IsOnStage reports whether uid is currently promoted.
func (s StageState) IsOnStage(uid string) bool {
	return s.OnStage[uid]
}

// Transmitting reports whether an egress job is currently referenced.
func (s StageState) Transmitting() bool {
	return s.EgressID != ""
}

// StageTargetRequest addresses a moderation action at one participant.
type StageTargetRequest struct {
	UID string `json:"uid" binding:"required"`
}

// SetLayoutRequest carries the fine-grained layout selection.
type SetLayoutRequest struct {
	Layout LayoutMode `json:"layout" binding:"required"`
}

// SetProgramModeRequest carries the coarse program toggle.
type SetProgramModeRequest struct {
	Mode ProgramMode `json:"mode" binding:"required"`
}
