package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"economy/events"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// SubjectPrefix starts every subject events are forwarded to
const SubjectPrefix = "economy"

// EventEnvelope wraps a forwarded event
type EventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	Timestamp     time.Time       `json:"timestamp"`
	SourceService string          `json:"source_service"`
	Payload       json.RawMessage `json:"payload"`
}

// SubjectFor returns the subject an event type is forwarded to
func SubjectFor(eventType events.EventType) string {
	return fmt.Sprintf("%s.%s", SubjectPrefix, eventType)
}

// AllSubjects returns every subject the forwarder publishes to
func AllSubjects() []string {
	types := events.AllEventTypes()
	subjects := make([]string, 0, len(types))
	for _, eventType := range types {
		subjects = append(subjects, SubjectFor(eventType))
	}
	return subjects
}

// EventForwarder republishes committed domain events onto the message bus
type EventForwarder struct {
	publisher     MessagePublisher
	sourceService string
	onPublished   func(eventType string)
}

// NewEventForwarder creates a forwarder publishing through publisher.
// onPublished, if non-nil, is called after each successful publish.
func NewEventForwarder(publisher MessagePublisher, sourceService string, onPublished func(eventType string)) *EventForwarder {
	return &EventForwarder{
		publisher:     publisher,
		sourceService: sourceService,
		onPublished:   onPublished,
	}
}

// Register subscribes the forwarder to every event type on bus
func (f *EventForwarder) Register(bus *events.Bus) {
	for _, eventType := range events.AllEventTypes() {
		bus.Subscribe(eventType, f.handle)
	}
	log.WithField("subjects", AllSubjects()).Info("Forwarding events to NATS")
}

func (f *EventForwarder) handle(ctx context.Context, event events.Event) {
	if err := f.Forward(ctx, event); err != nil {
		log.WithFields(log.Fields{
			"eventType": event.Type(),
			"error":     err,
		}).Error("Failed to forward event")
	}
}

// Forward wraps event in an envelope and publishes it
func (f *EventForwarder) Forward(ctx context.Context, event events.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	envelope := EventEnvelope{
		EventID:       uuid.NewString(),
		EventType:     string(event.Type()),
		Timestamp:     time.Now().UTC(),
		SourceService: f.sourceService,
		Payload:       payload,
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal event envelope: %w", err)
	}

	subject := SubjectFor(event.Type())
	if err := f.publisher.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish event to NATS: %w", err)
	}

	if f.onPublished != nil {
		f.onPublished(envelope.EventType)
	}

	log.WithFields(log.Fields{
		"eventType": envelope.EventType,
		"eventId":   envelope.EventID,
		"subject":   subject,
	}).Debug("Forwarded event to NATS")
	return nil
}
