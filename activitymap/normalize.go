package activitymap

import (
	"context"
	"strings"
	"time"

	authcard "github.com/goliatone/go-authcard"
)

const (
	// MetadataKeyPageID stores the page the event happened on.
	MetadataKeyPageID = "page_id"
	// MetadataKeyOutcome stores success, failure or rejected for auth verbs.
	MetadataKeyOutcome = "outcome"
)

const (
	defaultChannel    = "authcard"
	defaultObjectType = "page"
	defaultActorID    = "anonymous"
)

// Normalized is a transport-agnostic activity shape for downstream systems.
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Option customizes normalization behavior.
type Option func(*normalizeOptions)

type normalizeOptions struct {
	channel          string
	objectType       string
	actorFallback    string
	objectIDResolver func(authcard.ActivityEvent) string
	now              func() time.Time
}

// Normalize converts an authcard.ActivityEvent into the generic shape. The
// actor is the signed in user when known, the object is the page.
func Normalize(event authcard.ActivityEvent, opts ...Option) Normalized {
	options := defaultNormalizeOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	actorID := firstNonEmpty(
		strings.TrimSpace(event.UserID),
		strings.TrimSpace(options.actorFallback),
	)

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = options.now().UTC()
	}

	return Normalized{
		ActorID:    actorID,
		Verb:       string(event.EventType),
		ObjectType: strings.TrimSpace(options.objectType),
		ObjectID:   resolveObjectID(event, options.objectIDResolver),
		Channel:    strings.TrimSpace(options.channel),
		Metadata:   normalizeMetadata(event),
		OccurredAt: occurredAt,
	}
}

// WithDefaultChannel sets the default channel for normalized records.
func WithDefaultChannel(channel string) Option {
	return func(opts *normalizeOptions) {
		opts.channel = strings.TrimSpace(channel)
	}
}

// WithDefaultObjectType sets the default object type for normalized records.
func WithDefaultObjectType(objectType string) Option {
	return func(opts *normalizeOptions) {
		opts.objectType = strings.TrimSpace(objectType)
	}
}

// WithObjectIDResolver overrides object-id extraction from ActivityEvent.
func WithObjectIDResolver(resolver func(authcard.ActivityEvent) string) Option {
	return func(opts *normalizeOptions) {
		opts.objectIDResolver = resolver
	}
}

// WithActorFallback sets the actor id used before sign in.
func WithActorFallback(actorID string) Option {
	return func(opts *normalizeOptions) {
		opts.actorFallback = strings.TrimSpace(actorID)
	}
}

// WithClock stamps events that arrive without OccurredAt.
func WithClock(now func() time.Time) Option {
	return func(opts *normalizeOptions) {
		if now != nil {
			opts.now = now
		}
	}
}

// Sink records every event as a normalized structured log line.
type Sink struct {
	logger  authcard.Logger
	options []Option
}

var _ authcard.ActivitySink = (*Sink)(nil)

// NewSink builds a log sink. A nil logger yields a sink that drops events.
func NewSink(logger authcard.Logger, opts ...Option) *Sink {
	return &Sink{logger: logger, options: opts}
}

// Record implements authcard.ActivitySink.
func (s *Sink) Record(_ context.Context, event authcard.ActivityEvent) error {
	if s == nil || s.logger == nil {
		return nil
	}
	out := Normalize(event, s.options...)
	s.logger.Info("activity",
		"verb", out.Verb,
		"actor_id", out.ActorID,
		"object_type", out.ObjectType,
		"object_id", out.ObjectID,
		"channel", out.Channel,
		"metadata", out.Metadata,
		"occurred_at", out.OccurredAt,
	)
	return nil
}

func defaultNormalizeOptions() normalizeOptions {
	return normalizeOptions{
		channel:       defaultChannel,
		objectType:    defaultObjectType,
		actorFallback: defaultActorID,
		now:           time.Now,
	}
}

func resolveObjectID(event authcard.ActivityEvent, resolver func(authcard.ActivityEvent) string) string {
	if resolver != nil {
		return strings.TrimSpace(resolver(event))
	}
	return strings.TrimSpace(event.PageID)
}

func normalizeMetadata(event authcard.ActivityEvent) map[string]any {
	metadata := cloneMap(event.Metadata)

	if pageID := strings.TrimSpace(event.PageID); pageID != "" {
		if metadata == nil {
			metadata = map[string]any{}
		}
		if _, exists := metadata[MetadataKeyPageID]; !exists {
			metadata[MetadataKeyPageID] = pageID
		}
	}

	if outcome := outcomeOf(event.EventType); outcome != "" {
		if metadata == nil {
			metadata = map[string]any{}
		}
		metadata[MetadataKeyOutcome] = outcome
	}

	return metadata
}

func outcomeOf(eventType authcard.ActivityEventType) string {
	verb := string(eventType)
	if !strings.HasPrefix(verb, "auth.") {
		return ""
	}
	return verb[strings.LastIndex(verb, ".")+1:]
}

func cloneMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
