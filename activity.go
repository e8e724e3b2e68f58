package authcard

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventLoginSuccess         ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure         ActivityEventType = "auth.login.failure"
	ActivityEventLoginRejected        ActivityEventType = "auth.login.rejected"
	ActivityEventRegisterSuccess      ActivityEventType = "auth.register.success"
	ActivityEventRegisterFailure      ActivityEventType = "auth.register.failure"
	ActivityEventRegisterRejected     ActivityEventType = "auth.register.rejected"
	ActivityEventProfileInsertFailure ActivityEventType = "auth.profile.insert_failure"
	ActivityEventModeChanged          ActivityEventType = "card.mode.changed"
	ActivityEventShellExit            ActivityEventType = "shell.exit"
	ActivityEventShellNavigate        ActivityEventType = "shell.navigate"
	ActivityEventPageFailed           ActivityEventType = "page.failed"
	ActivityEventSnapshotFailure      ActivityEventType = "page.snapshot.failure"
)

// ActivityEvent captures audit-friendly information about an action.
// It never carries credentials.
type ActivityEvent struct {
	EventType  ActivityEventType
	PageID     string
	UserID     string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

// MultiActivitySink fans an event out to every sink, returning the first error.
type MultiActivitySink []ActivitySink

// Record implements ActivitySink.
func (m MultiActivitySink) Record(ctx context.Context, event ActivityEvent) error {
	var first error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Record(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

// record is best-effort: sink errors are logged and dropped.
func (e *flowEnv) record(eventType ActivityEventType, userID string, metadata map[string]any) {
	event := ActivityEvent{
		EventType:  eventType,
		PageID:     e.pageID,
		UserID:     userID,
		Metadata:   metadata,
		OccurredAt: e.now(),
	}
	if err := e.activity.Record(context.Background(), event); err != nil {
		e.logger.Warn("activity sink failed", "event", string(eventType), "error", err)
	}
}
