// Package sink is the asynchronous message-processing boundary. It
// replaces what used to be an external processing subprocess with an
// in-process worker behind a narrow interface; delivery never waits on it.
package sink

import (
	"context"

	"chat-backend/internal/metrics"
	"chat-backend/internal/models"

	"github.com/rs/zerolog"
)

// Notifier receives a copy of every routed message, best-effort.
type Notifier interface {
	Notify(msg *models.Message)
}

// Noop is used when no processing sink is configured.
type Noop struct{}

func (Noop) Notify(*models.Message) {}

// Processor consumes routed messages on a bounded queue. When the queue
// is full the notification is dropped and counted, never blocking the
// router.
type Processor struct {
	queue chan *models.Message
	log   zerolog.Logger
}

func NewProcessor(buffer int, log zerolog.Logger) *Processor {
	if buffer <= 0 {
		buffer = 1024
	}
	return &Processor{
		queue: make(chan *models.Message, buffer),
		log:   log.With().Str("component", "sink").Logger(),
	}
}

func (p *Processor) Notify(msg *models.Message) {
	select {
	case p.queue <- msg:
	default:
		metrics.SinkDropsTotal.Inc()
		p.log.Debug().Str("message_id", msg.ID).Msg("sink queue full, notification dropped")
	}
}

// Run drains the queue until the context is cancelled. Processing is
// observational: the message has already been delivered by the time it
// arrives here.
func (p *Processor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.log.Debug().Msg("stopping sink")
			return
		case msg := <-p.queue:
			p.process(msg)
		}
	}
}

func (p *Processor) process(msg *models.Message) {
	evt := p.log.Info().
		Str("message_id", msg.ID).
		Str("room", msg.Room).
		Int("sender_id", msg.SenderID).
		Int("receiver_id", msg.ReceiverID).
		Int("content_len", len(msg.Content))
	if msg.ExpiresAt != nil {
		evt = evt.Time("expires_at", *msg.ExpiresAt)
	}
	evt.Msg("message processed")
}
