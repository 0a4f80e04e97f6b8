// Package notify publishes audio-artifact events to NATS so downstream
// pipeline stages learn about freshly generated audio without polling the
// gateway.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// Publisher emits an AudioChunkCreatedEvent for every completed synthesis.
// The gateway treats publication as best-effort; a broker outage never
// fails a request.
type Publisher struct {
	natsConnection *nats.Conn
	subject        string
	log            *logger.Logger
}

// NewPublisher creates a publisher on an established NATS connection.
func NewPublisher(natsConnection *nats.Conn, subject string, log *logger.Logger) *Publisher {
	return &Publisher{
		natsConnection: natsConnection,
		subject:        subject,
		log:            log,
	}
}

// AudioCreated publishes the event announcing a stored audio artifact.
func (p *Publisher) AudioCreated(_ context.Context, audioKey string) error {
	event := &events.AudioChunkCreatedEvent{
		Header: events.EventHeader{
			Timestamp:  time.Now(),
			WorkflowID: uuid.NewString(),
			EventID:    uuid.NewString(),
			UserID:     "",
			TenantID:   "",
		},
		AudioKey:   audioKey,
		PageNumber: 0,
		TotalPages: 0,
	}

	data, marshalErr := json.Marshal(event)
	if marshalErr != nil {
		return fmt.Errorf("failed to marshal audio created event: %w", marshalErr)
	}

	publishErr := p.natsConnection.Publish(p.subject, data)
	if publishErr != nil {
		return fmt.Errorf("failed to publish audio created event to %s: %w",
			p.subject, publishErr)
	}

	p.log.Info("Published audio created event for %s on %s", audioKey, p.subject)

	return nil
}
