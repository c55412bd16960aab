package logging

import (
	"time"

	"go.uber.org/zap"
)

// AuditEventType identifies an entry in the audit trail.
type AuditEventType string

const (
	AuditSessionStart   AuditEventType = "session_start"
	AuditSessionRebind  AuditEventType = "session_rebind"
	AuditTurnStart      AuditEventType = "turn_start"
	AuditTurnEnd        AuditEventType = "turn_end"
	AuditReviewRaised   AuditEventType = "review_raised"
	AuditReviewDecision AuditEventType = "review_decision"
	AuditUnauthorized   AuditEventType = "unauthorized"
)

// AuditEvent is one structured audit entry. Entries always go through the
// audit category so they can be routed or disabled independently.
type AuditEvent struct {
	EventType  AuditEventType
	CascadeID  string
	ThreadID   string
	UserID     string
	Target     string
	Success    bool
	DurationMs int64
	Error      string
	Message    string
}

// AuditLogger writes audit events scoped to a cascade.
type AuditLogger struct {
	cascadeID string
}

// Audit returns an unscoped audit logger.
func Audit() *AuditLogger {
	return &AuditLogger{}
}

// AuditWithCascade returns an audit logger that stamps every event with cascadeID.
func AuditWithCascade(cascadeID string) *AuditLogger {
	return &AuditLogger{cascadeID: cascadeID}
}

// Log writes the event.
func (a *AuditLogger) Log(event AuditEvent) {
	if event.CascadeID == "" {
		event.CascadeID = a.cascadeID
	}
	fields := []zap.Field{
		zap.String("event", string(event.EventType)),
		zap.Time("ts", time.Now()),
		zap.Bool("success", event.Success),
	}
	if event.CascadeID != "" {
		fields = append(fields, zap.String("cascade", event.CascadeID))
	}
	if event.ThreadID != "" {
		fields = append(fields, zap.String("thread", event.ThreadID))
	}
	if event.UserID != "" {
		fields = append(fields, zap.String("user", event.UserID))
	}
	if event.Target != "" {
		fields = append(fields, zap.String("target", event.Target))
	}
	if event.DurationMs > 0 {
		fields = append(fields, zap.Int64("dur_ms", event.DurationMs))
	}
	if event.Error != "" {
		fields = append(fields, zap.String("error", event.Error))
	}
	Get(CategoryAudit).Zap().Info(event.Message, fields...)
}

func (a *AuditLogger) SessionStart(threadID string) {
	a.Log(AuditEvent{EventType: AuditSessionStart, ThreadID: threadID, Success: true, Message: "cascade started"})
}

// SessionRebind records a thread whose binding was lost and silently replaced.
func (a *AuditLogger) SessionRebind(threadID string) {
	a.Log(AuditEvent{EventType: AuditSessionRebind, ThreadID: threadID, Success: true, Message: "thread rebound to new cascade"})
}

func (a *AuditLogger) TurnStart(target string) {
	a.Log(AuditEvent{EventType: AuditTurnStart, Target: target, Success: true, Message: "turn started"})
}

func (a *AuditLogger) TurnEnd(target string, durationMs int64, err error) {
	ev := AuditEvent{EventType: AuditTurnEnd, Target: target, DurationMs: durationMs, Success: err == nil, Message: "turn finished"}
	if err != nil {
		ev.Error = err.Error()
	}
	a.Log(ev)
}

func (a *AuditLogger) ReviewRaised(path string) {
	a.Log(AuditEvent{EventType: AuditReviewRaised, Target: path, Success: true, Message: "review panel raised"})
}

func (a *AuditLogger) ReviewDecision(userID string, approved bool) {
	msg := "review rejected"
	if approved {
		msg = "review approved"
	}
	a.Log(AuditEvent{EventType: AuditReviewDecision, UserID: userID, Success: approved, Message: msg})
}

func (a *AuditLogger) Unauthorized(userID, target string) {
	a.Log(AuditEvent{EventType: AuditUnauthorized, UserID: userID, Target: target, Message: "unauthorized interaction blocked"})
}
