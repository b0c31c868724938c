// Package events provides a fire-and-forget NATS publisher for comment
// moderation events. Downstream consumers (search indexing, notifications,
// audit) subscribe to the comments.* subjects.
package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Subject constants for every comment event type.
const (
	SubjectCommentCreated   = "comments.created"
	SubjectCommentModerated = "comments.moderated"
	SubjectCommentsBulk     = "comments.bulk"
	SubjectCommentVoted     = "comments.voted"
)

// Event is the canonical envelope sent to all comments.* subjects.
type Event struct {
	EventID    string         `json:"event_id"`
	EventName  string         `json:"event_name"`
	UserID     string         `json:"user_id,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Sink is the subset of a JetStream context the publisher needs.
type Sink interface {
	PublishAsync(subj string, data []byte, opts ...nats.PubOpt) (nats.PubAckFuture, error)
}

// Publisher publishes comment events to NATS JetStream.
// The zero value and a nil pointer are both safe no-op stubs.
type Publisher struct {
	js  Sink
	log *zap.Logger
	now func() time.Time
}

// New creates a Publisher on top of a JetStream context.
// Pass js=nil to get a no-op stub (useful in tests and tools without NATS).
func New(js Sink, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{js: js, log: log, now: time.Now}
}

// Publish sends an event asynchronously. Failures are logged as warnings and
// never surface to the caller.
func (p *Publisher) Publish(subject, eventName, userID string, props map[string]any) {
	if p == nil || p.js == nil {
		return
	}
	ev := Event{
		EventID:    uuid.NewString(),
		EventName:  eventName,
		UserID:     userID,
		OccurredAt: p.now().UTC(),
		Properties: props,
	}
	data, err := json.Marshal(ev)
	if err != nil {
		p.log.Warn("events: marshal failed", zap.String("event", eventName), zap.Error(err))
		return
	}
	if _, err := p.js.PublishAsync(subject, data); err != nil {
		p.log.Warn("events: publish failed", zap.String("subject", subject), zap.Error(err))
	}
}

// EnsureStream creates the COMMENTS stream covering comments.* when missing.
func EnsureStream(js nats.JetStreamContext) error {
	if _, err := js.StreamInfo("COMMENTS"); err == nil {
		return nil
	}
	_, err := js.AddStream(&nats.StreamConfig{
		Name:     "COMMENTS",
		Subjects: []string{"comments.>"},
		MaxAge:   7 * 24 * time.Hour,
	})
	return err
}
