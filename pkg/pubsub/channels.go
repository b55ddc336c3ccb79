package pubsub

import "fmt"

// Channel naming conventions for the stage coordination engine.
// Channels are tree-shaped per event, mirroring the store paths.
const (
	// Stage state change notifications (subscribers re-read the snapshot).
	ChannelStageState = "stage:event:%s:state"

	// Join-request list change notifications.
	ChannelJoinRequests = "stage:event:%s:requests"

	// Join-decision mailbox writes. The decision payload carries the
	// recipient uid; mailbox subscribers filter on it.
	ChannelJoinDecisions = "stage:event:%s:decisions"
)

// Event types published on the stage channels.
const (
	EventStageChanged    = "stage_changed"
	EventRequestsChanged = "requests_changed"
	EventDecisionPosted  = "decision_posted"
)

// StageStateChannel returns the state-change channel for an event.
func StageStateChannel(eventID string) string {
	return fmt.Sprintf(ChannelStageState, eventID)
}

// JoinRequestsChannel returns the join-request channel for an event.
func JoinRequestsChannel(eventID string) string {
	return fmt.Sprintf(ChannelJoinRequests, eventID)
}

// JoinDecisionsChannel returns the decision-mailbox channel for an event.
func JoinDecisionsChannel(eventID string) string {
	return fmt.Sprintf(ChannelJoinDecisions, eventID)
}
