// Package router validates messages and fans them out to room members.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"chat-backend/internal/database"
	"chat-backend/internal/metrics"
	"chat-backend/internal/models"
	"chat-backend/internal/sink"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Membership yields the current delivery scope for a room.
// Implemented by the room directory.
type Membership interface {
	Members(room string) []models.Conn
}

// Presence yields every live connection, for system-wide broadcast.
// Implemented by the session registry.
type Presence interface {
	Conns() []models.Conn
}

// Router owns the message lifecycle: validation, expiration policy,
// persistence and fan-out. Persistence and sink notification are
// fire-and-forget; their failure never blocks or fails delivery.
type Router struct {
	store    database.Store
	rooms    Membership
	presence Presence
	notifier sink.Notifier
	log      zerolog.Logger

	// persistTimeout bounds the async store write.
	persistTimeout time.Duration
}

func New(store database.Store, rooms Membership, presence Presence, notifier sink.Notifier, log zerolog.Logger) *Router {
	if notifier == nil {
		notifier = sink.Noop{}
	}
	return &Router{
		store:          store,
		rooms:          rooms,
		presence:       presence,
		notifier:       notifier,
		log:            log.With().Str("component", "router").Logger(),
		persistTimeout: 5 * time.Second,
	}
}

// Route validates a message, attaches its expiration, kicks off the
// asynchronous persist and sink notification, and delivers the payload to
// every current member of the target room. The named receiver is
// metadata; the room is the delivery scope.
func (rt *Router) Route(ctx context.Context, data *models.MessageData) (*models.Message, error) {
	if data.Content == "" {
		metrics.MessagesRoutedTotal.WithLabelValues("empty_content").Inc()
		return nil, models.ErrEmptyContent
	}

	sender, err := rt.lookupUser(ctx, data.Sender)
	if err != nil {
		return nil, err
	}
	receiver, err := rt.lookupUser(ctx, data.Receiver)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	msg := &models.Message{
		ID:         uuid.NewString(),
		SenderID:   sender.ID,
		ReceiverID: receiver.ID,
		Room:       data.Room,
		Content:    data.Content,
		CreatedAt:  now,
	}
	// expires_at must sit strictly after created_at; nonpositive hours
	// mean no expiration.
	if data.ExpirationTime != nil && *data.ExpirationTime > 0 {
		expires := now.Add(time.Duration(*data.ExpirationTime) * time.Hour)
		msg.ExpiresAt = &expires
	}

	rt.persistAsync(msg)
	rt.notifier.Notify(msg)

	frame, err := json.Marshal(models.Outbound{Event: models.EventMessage, Data: data})
	if err != nil {
		return nil, fmt.Errorf("failed to encode message event: %w", err)
	}
	rt.deliver(rt.rooms.Members(data.Room), frame, data.Room)

	metrics.MessagesRoutedTotal.WithLabelValues("delivered").Inc()
	return msg, nil
}

// React broadcasts a reaction to every currently connected client,
// regardless of room. Deliberately wider than message routing.
func (rt *Router) React(data *models.ReactionData) error {
	frame, err := json.Marshal(models.Outbound{Event: models.EventReaction, Data: data})
	if err != nil {
		return fmt.Errorf("failed to encode reaction event: %w", err)
	}

	rt.deliver(rt.presence.Conns(), frame, "")
	metrics.ReactionsTotal.Inc()
	return nil
}

// deliver pushes one frame to each recipient, best-effort. A slow or
// dead client loses the frame; it never stalls the rest.
func (rt *Router) deliver(conns []models.Conn, frame []byte, room string) {
	for _, c := range conns {
		if c.Send(frame) {
			metrics.DeliveriesTotal.Inc()
			continue
		}
		metrics.DeliveryDropsTotal.Inc()
		rt.log.Warn().Str("conn", c.ID()).Str("room", room).Msg("dropped frame for recipient")
	}
}

func (rt *Router) persistAsync(msg *models.Message) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), rt.persistTimeout)
		defer cancel()

		if err := rt.store.SaveMessage(ctx, msg); err != nil {
			metrics.PersistenceFailuresTotal.Inc()
			rt.log.Error().Err(err).Str("message_id", msg.ID).Msg("failed to persist message")
		}
	}()
}

func (rt *Router) lookupUser(ctx context.Context, username string) (*models.User, error) {
	user, err := rt.store.FindUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			metrics.MessagesRoutedTotal.WithLabelValues("unknown_user").Inc()
			return nil, fmt.Errorf("%w: %s", models.ErrUnknownUser, username)
		}
		return nil, fmt.Errorf("failed to resolve user %s: %w", username, err)
	}
	return user, nil
}
