package domain

// TrackSource tags a published track with its capture kind.
type TrackSource string

const (
	SourceCamera      TrackSource = "camera"
	SourceScreenshare TrackSource = "screenshare"
)

// LiveTrack is a currently published track as reported by the conferencing
// layer. The media transport itself is external; only the tags matter here.
type LiveTrack struct {
	ParticipantID string      `json:"participant_id"`
	Source        TrackSource `json:"source"`
}
