package audit

import (
	"context"

	"github.com/genialityco/gen-live-web-sub001/pkg/log"
)

// Audit actions for host moderation and transmission control.
const (
	ActionPromote     = "stage.promote"
	ActionDemote      = "stage.demote"
	ActionPin         = "stage.pin"
	ActionUnpin       = "stage.unpin"
	ActionSetLayout   = "stage.set_layout"
	ActionSetProgram  = "stage.set_program_mode"
	ActionKick        = "stage.kick"
	ActionApproveJoin = "join.approve"
	ActionRejectJoin  = "join.reject"
	ActionStartEgress = "egress.start"
	ActionStopEgress  = "egress.stop"
)

// Field constants for audit entries.
const (
	FieldAction  = "action"
	FieldSubject = "subject_uid"
	FieldDetail  = "detail"
)

// Log emits a structured audit log entry via the context logger.
func Log(ctx context.Context, action, eventID, userID, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldEventID, eventID).
		Str(log.FieldUserID, userID).
		Msg(msg)
}

// LogWithSubject emits an audit log for a moderation action taken on
// another participant.
func LogWithSubject(ctx context.Context, action, eventID, userID, subjectUID, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldEventID, eventID).
		Str(log.FieldUserID, userID).
		Str(FieldSubject, subjectUID).
		Msg(msg)
}

// LogWithDetail emits an audit log with an extra detail field.
func LogWithDetail(ctx context.Context, action, eventID, userID, detail, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldEventID, eventID).
		Str(log.FieldUserID, userID).
		Str(FieldDetail, detail).
		Msg(msg)
}
