package domain

// EgressJob references the external rendering job that captures the program
// feed and republishes it as a public stream. The provider is the source of
// truth for job status; this system only mirrors it.
type EgressJob struct {
	EgressID  string `json:"egress_id"`
	Status    string `json:"status"` // provider-defined string
	Error     string `json:"error,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
}

// Provider status strings observed from the egress service. The set is
// open-ended; these are the ones this system reacts to.
const (
	EgressStatusStarting = "EGRESS_STARTING"
	EgressStatusActive   = "EGRESS_ACTIVE"
	EgressStatusEnding   = "EGRESS_ENDING"
	EgressStatusFailed   = "EGRESS_FAILED"
)
