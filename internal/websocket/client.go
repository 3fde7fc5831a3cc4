// Package websocket is the real-time transport boundary: one Client per
// upgraded connection, with a reader and a writer goroutine.
package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"chat-backend/internal/database"
	"chat-backend/internal/metrics"
	"chat-backend/internal/models"
	"chat-backend/internal/rooms"
	"chat-backend/internal/router"
	"chat-backend/internal/session"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	writeWait      = 10 * time.Second
	dispatchWait   = 5 * time.Second
	maxMessageSize = 64 * 1024
)

// Client binds one websocket connection to the shared chat state. It
// implements models.Conn: frames are queued on a bounded channel and a
// full or closed queue drops the frame instead of blocking the sender.
type Client struct {
	id   string
	conn *websocket.Conn
	user *models.User

	send chan []byte
	done chan struct{}
	once sync.Once

	sessions *session.Registry
	rooms    *rooms.Directory
	router   *router.Router
	store    database.Store

	historyLimit int
	log          zerolog.Logger
}

type Deps struct {
	Sessions     *session.Registry
	Rooms        *rooms.Directory
	Router       *router.Router
	Store        database.Store
	SendBuffer   int
	HistoryLimit int
	Log          zerolog.Logger
}

func NewClient(conn *websocket.Conn, user *models.User, deps Deps) *Client {
	if deps.SendBuffer <= 0 {
		deps.SendBuffer = 256
	}
	id := uuid.NewString()
	return &Client{
		id:           id,
		conn:         conn,
		user:         user,
		send:         make(chan []byte, deps.SendBuffer),
		done:         make(chan struct{}),
		sessions:     deps.Sessions,
		rooms:        deps.Rooms,
		router:       deps.Router,
		store:        deps.Store,
		historyLimit: deps.HistoryLimit,
		log: deps.Log.With().
			Str("conn", id).
			Str("username", user.Username).
			Logger(),
	}
}

func (c *Client) ID() string { return c.id }

// Send queues a frame for the writer, best-effort. The send channel is
// never closed, so a late fan-out after disconnect is a harmless drop.
func (c *Client) Send(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// ReadPump consumes inbound frames until the connection dies, then tears
// the session down. Terminating the session cascades the connection out
// of every room.
func (c *Client) ReadPump() {
	defer func() {
		c.once.Do(func() { close(c.done) })
		c.sessions.Terminate(c)
		c.conn.Close()
		metrics.ActiveConnections.Dec()
		c.log.Info().Msg("client disconnected")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Error().Err(err).Msg("websocket read error")
			}
			return
		}

		var env models.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.log.Warn().Err(err).Msg("malformed frame")
			continue
		}
		c.dispatch(&env)
	}
}

// WritePump drains the send queue onto the wire and keeps the connection
// alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.log.Debug().Err(err).Msg("websocket write error")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) dispatch(env *models.Envelope) {
	ctx, cancel := context.WithTimeout(context.Background(), dispatchWait)
	defer cancel()

	switch env.Event {
	case models.EventJoin:
		var data models.JoinData
		if err := json.Unmarshal(env.Data, &data); err != nil || data.Room == "" {
			c.sendStatus("invalid join payload")
			return
		}
		c.rooms.Join(data.Room, c)
		c.replayRecent(ctx, data.Room)

	case models.EventLeave:
		var data models.LeaveData
		if err := json.Unmarshal(env.Data, &data); err != nil || data.Room == "" {
			c.sendStatus("invalid leave payload")
			return
		}
		c.rooms.Leave(data.Room, c)

	case models.EventMessage:
		var data models.MessageData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			c.sendStatus("invalid message payload")
			return
		}
		if _, err := c.router.Route(ctx, &data); err != nil {
			c.sendStatus(err.Error())
		}

	case models.EventReaction:
		var data models.ReactionData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			c.sendStatus("invalid reaction payload")
			return
		}
		if err := c.router.React(&data); err != nil {
			c.sendStatus(err.Error())
		}

	default:
		c.log.Debug().Str("event", env.Event).Msg("unknown event")
	}
}

// replayRecent sends the room's recent history to this client only.
// Expired messages are already filtered by the store.
func (c *Client) replayRecent(ctx context.Context, room string) {
	if c.historyLimit <= 0 {
		return
	}

	messages, err := c.store.RecentRoomMessages(ctx, room, c.historyLimit)
	if err != nil {
		c.log.Error().Err(err).Str("room", room).Msg("failed to load recent messages")
		return
	}

	for _, msg := range messages {
		frame, err := json.Marshal(models.Outbound{
			Event: models.EventMessage,
			Data: models.MessageData{
				Content:  msg.Content,
				Sender:   msg.SenderName,
				Receiver: msg.ReceiverName,
				Room:     msg.Room,
			},
		})
		if err != nil {
			continue
		}
		if !c.Send(frame) {
			return
		}
	}
}

func (c *Client) sendStatus(msg string) {
	frame, err := json.Marshal(models.Outbound{
		Event: models.EventStatus,
		Data:  models.StatusData{Msg: msg},
	})
	if err != nil {
		return
	}
	c.Send(frame)
}
