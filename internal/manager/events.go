package manager

import (
	"encoding/json"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/tokenmart/marketd/internal/domain"
)

// subjectPrefix namespaces the marketplace subjects on the shared bus.
const subjectPrefix = "market.events."

// EventPublisher broadcasts committed market events to the NATS JetStream
// event bus for external observers. The transactional event log in the
// database is the source of truth; publishing happens after commit,
// asynchronously, and a publish failure is logged but never fails the
// originating operation.
type EventPublisher struct {
	js     nats.JetStreamContext
	logger zerolog.Logger
}

// NewEventPublisher creates a new EventPublisher instance.
func NewEventPublisher(js nats.JetStreamContext, logger zerolog.Logger) *EventPublisher {
	return &EventPublisher{
		js:     js,
		logger: logger,
	}
}

// Publish sends one committed event to the bus.
// Subject: market.events.<type>.
func (p *EventPublisher) Publish(event *domain.Event) {
	if p == nil || p.js == nil {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Error().
			Err(err).
			Str("event_id", event.ID).
			Str("type", string(event.Type)).
			Msg("Failed to encode event")
		return
	}

	subject := subjectPrefix + string(event.Type)
	go func() {
		if _, err := p.js.Publish(subject, data); err != nil {
			p.logger.Error().
				Err(err).
				Str("event_id", event.ID).
				Str("type", string(event.Type)).
				Int64("seq", event.Seq).
				Msg("Failed to publish event")
		} else {
			p.logger.Info().
				Str("event_id", event.ID).
				Str("type", string(event.Type)).
				Int64("seq", event.Seq).
				Msg("Published event")
		}
	}()
}

// PublishAll sends every event recorded by one committed operation, in order.
func (p *EventPublisher) PublishAll(events []*domain.Event) {
	for _, event := range events {
		p.Publish(event)
	}
}
