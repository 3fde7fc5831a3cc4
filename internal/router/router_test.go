package router

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"chat-backend/internal/models"
	"chat-backend/internal/rooms"
	"chat-backend/internal/session"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	id string

	mu     sync.Mutex
	frames [][]byte
	full   bool
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.full {
		return false
	}
	c.frames = append(c.frames, frame)
	return true
}

// received returns the decoded payloads of a given event type.
func (c *fakeConn) received(t *testing.T, event string) []json.RawMessage {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()

	var payloads []json.RawMessage
	for _, frame := range c.frames {
		var env models.Envelope
		require.NoError(t, json.Unmarshal(frame, &env))
		if env.Event == event {
			payloads = append(payloads, env.Data)
		}
	}
	return payloads
}

type stubStore struct {
	mu    sync.Mutex
	users map[string]*models.User
	saved chan *models.Message

	saveErr error
}

func newStubStore(usernames ...string) *stubStore {
	s := &stubStore{
		users: make(map[string]*models.User),
		saved: make(chan *models.Message, 16),
	}
	for i, name := range usernames {
		s.users[name] = &models.User{ID: i + 1, Username: name}
	}
	return s
}

func (s *stubStore) FindUserByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[username]; ok {
		return u, nil
	}
	return nil, models.ErrUserNotFound
}

func (s *stubStore) FindUserByEmail(context.Context, string) (*models.User, error) {
	return nil, models.ErrUserNotFound
}

func (s *stubStore) FindUserByID(context.Context, int) (*models.User, error) {
	return nil, models.ErrUserNotFound
}

func (s *stubStore) CreateUser(context.Context, string, string, string) (*models.User, error) {
	return nil, models.ErrUserNotFound
}

func (s *stubStore) SaveMessage(_ context.Context, msg *models.Message) error {
	s.mu.Lock()
	err := s.saveErr
	s.mu.Unlock()
	s.saved <- msg
	return err
}

func (s *stubStore) RecentRoomMessages(context.Context, string, int) ([]*models.Message, error) {
	return nil, nil
}

func (s *stubStore) Close() error { return nil }

func (s *stubStore) waitSaved(t *testing.T) *models.Message {
	t.Helper()
	select {
	case msg := <-s.saved:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for SaveMessage")
		return nil
	}
}

type stubRooms struct {
	members map[string][]models.Conn
}

func (s stubRooms) Members(room string) []models.Conn { return s.members[room] }

type stubPresence struct {
	conns []models.Conn
}

func (s stubPresence) Conns() []models.Conn { return s.conns }

func msgData(sender, receiver, room, content string) *models.MessageData {
	return &models.MessageData{Content: content, Sender: sender, Receiver: receiver, Room: room}
}

func TestRoute_FansOutToRoomMembersOnly(t *testing.T) {
	store := newStubStore("alice", "bob")
	alice := &fakeConn{id: "c1"}
	bob := &fakeConn{id: "c2"}
	outsider := &fakeConn{id: "c3"}

	rt := New(store, stubRooms{members: map[string][]models.Conn{
		"lobby": {alice, bob},
		"other": {outsider},
	}}, stubPresence{}, nil, zerolog.Nop())

	_, err := rt.Route(context.Background(), msgData("alice", "bob", "lobby", "hi"))
	require.NoError(t, err)

	require.Len(t, alice.received(t, models.EventMessage), 1, "sender gets exactly one copy")
	require.Len(t, bob.received(t, models.EventMessage), 1, "receiver gets exactly one copy")
	require.Empty(t, outsider.received(t, models.EventMessage), "non-members get nothing")

	var payload models.MessageData
	require.NoError(t, json.Unmarshal(bob.received(t, models.EventMessage)[0], &payload))
	require.Equal(t, "hi", payload.Content)
	require.Equal(t, "alice", payload.Sender)
	require.Equal(t, "bob", payload.Receiver)
	require.Equal(t, "lobby", payload.Room)
}

func TestRoute_PersistsWithResolvedIDs(t *testing.T) {
	store := newStubStore("alice", "bob")
	rt := New(store, stubRooms{}, stubPresence{}, nil, zerolog.Nop())

	_, err := rt.Route(context.Background(), msgData("alice", "bob", "lobby", "hi"))
	require.NoError(t, err)

	saved := store.waitSaved(t)
	require.Equal(t, 1, saved.SenderID)
	require.Equal(t, 2, saved.ReceiverID)
	require.Equal(t, "lobby", saved.Room)
	require.Equal(t, "hi", saved.Content)
	require.NotEmpty(t, saved.ID)
}

func TestRoute_ExpirationPolicy(t *testing.T) {
	store := newStubStore("alice", "bob")
	rt := New(store, stubRooms{}, stubPresence{}, nil, zerolog.Nop())

	hours := 2
	data := msgData("alice", "bob", "lobby", "ephemeral")
	data.ExpirationTime = &hours

	msg, err := rt.Route(context.Background(), data)
	require.NoError(t, err)
	require.NotNil(t, msg.ExpiresAt)
	require.Equal(t, msg.CreatedAt.Add(2*time.Hour), *msg.ExpiresAt)
	require.True(t, msg.ExpiresAt.After(msg.CreatedAt))
}

func TestRoute_NonpositiveExpirationIgnored(t *testing.T) {
	store := newStubStore("alice", "bob")
	rt := New(store, stubRooms{}, stubPresence{}, nil, zerolog.Nop())

	zero := 0
	data := msgData("alice", "bob", "lobby", "hi")
	data.ExpirationTime = &zero

	msg, err := rt.Route(context.Background(), data)
	require.NoError(t, err)
	require.Nil(t, msg.ExpiresAt)
}

func TestRoute_NoExpirationByDefault(t *testing.T) {
	store := newStubStore("alice", "bob")
	rt := New(store, stubRooms{}, stubPresence{}, nil, zerolog.Nop())

	msg, err := rt.Route(context.Background(), msgData("alice", "bob", "lobby", "hi"))
	require.NoError(t, err)
	require.Nil(t, msg.ExpiresAt)
	require.False(t, msg.Expired(time.Now().Add(100*365*24*time.Hour)))
}

func TestRoute_UnknownUser(t *testing.T) {
	store := newStubStore("alice")
	rt := New(store, stubRooms{}, stubPresence{}, nil, zerolog.Nop())

	_, err := rt.Route(context.Background(), msgData("alice", "ghost", "lobby", "hi"))
	require.ErrorIs(t, err, models.ErrUnknownUser)

	_, err = rt.Route(context.Background(), msgData("ghost", "alice", "lobby", "hi"))
	require.ErrorIs(t, err, models.ErrUnknownUser)
}

func TestRoute_EmptyContent(t *testing.T) {
	store := newStubStore("alice", "bob")
	rt := New(store, stubRooms{}, stubPresence{}, nil, zerolog.Nop())

	_, err := rt.Route(context.Background(), msgData("alice", "bob", "lobby", ""))
	require.ErrorIs(t, err, models.ErrEmptyContent)
}

func TestRoute_PersistenceFailureDoesNotFailDelivery(t *testing.T) {
	store := newStubStore("alice", "bob")
	store.saveErr = context.DeadlineExceeded
	bob := &fakeConn{id: "c2"}

	rt := New(store, stubRooms{members: map[string][]models.Conn{
		"lobby": {bob},
	}}, stubPresence{}, nil, zerolog.Nop())

	_, err := rt.Route(context.Background(), msgData("alice", "bob", "lobby", "hi"))
	require.NoError(t, err, "persistence failure must not surface to the sender")
	require.Len(t, bob.received(t, models.EventMessage), 1)
	store.waitSaved(t)
}

func TestRoute_DeadRecipientDoesNotAbortFanOut(t *testing.T) {
	store := newStubStore("alice", "bob")
	dead := &fakeConn{id: "c1", full: true}
	bob := &fakeConn{id: "c2"}

	rt := New(store, stubRooms{members: map[string][]models.Conn{
		"lobby": {dead, bob},
	}}, stubPresence{}, nil, zerolog.Nop())

	_, err := rt.Route(context.Background(), msgData("alice", "bob", "lobby", "hi"))
	require.NoError(t, err)
	require.Len(t, bob.received(t, models.EventMessage), 1, "remaining recipients still get the message")
}

func TestReact_BroadcastsToAllConnectedClients(t *testing.T) {
	store := newStubStore("alice", "bob")
	inLobby := &fakeConn{id: "c1"}
	elsewhere := &fakeConn{id: "c2"}

	rt := New(store, stubRooms{members: map[string][]models.Conn{
		"lobby": {inLobby},
	}}, stubPresence{conns: []models.Conn{inLobby, elsewhere}}, nil, zerolog.Nop())

	err := rt.React(&models.ReactionData{Content: "👍", Target: "msg-1", Sender: "alice"})
	require.NoError(t, err)

	require.Len(t, inLobby.received(t, models.EventReaction), 1)
	require.Len(t, elsewhere.received(t, models.EventReaction), 1, "reactions are system-wide, not room-scoped")

	var payload models.ReactionData
	require.NoError(t, json.Unmarshal(elsewhere.received(t, models.EventReaction)[0], &payload))
	require.Equal(t, "👍", payload.Content)
	require.Equal(t, "msg-1", payload.Target)
}

// Full path: registry + directory + router wired like in main.
func TestRoute_LobbyScenario(t *testing.T) {
	store := newStubStore("alice", "bob")
	registry := session.NewRegistry()
	directory := rooms.NewDirectory(registry, zerolog.Nop())
	registry.OnTerminate(directory.RemoveFromAll)

	rt := New(store, directory, registry, nil, zerolog.Nop())

	alice := &fakeConn{id: "c1"}
	bob := &fakeConn{id: "c2"}
	registry.Establish(alice, &models.User{ID: 1, Username: "alice"})
	registry.Establish(bob, &models.User{ID: 2, Username: "bob"})
	directory.Join("lobby", alice)
	directory.Join("lobby", bob)

	_, err := rt.Route(context.Background(), msgData("alice", "bob", "lobby", "hi"))
	require.NoError(t, err)

	aliceCopy := alice.received(t, models.EventMessage)
	bobCopy := bob.received(t, models.EventMessage)
	require.Len(t, aliceCopy, 1)
	require.Len(t, bobCopy, 1)
	require.JSONEq(t, string(aliceCopy[0]), string(bobCopy[0]), "both members receive the identical payload")

	saved := store.waitSaved(t)
	require.Equal(t, 1, saved.SenderID)
	require.Equal(t, 2, saved.ReceiverID)

	// Alice disconnects; subsequent messages reach only bob.
	registry.Terminate(alice)
	require.Len(t, directory.Members("lobby"), 1)

	_, err = rt.Route(context.Background(), msgData("bob", "alice", "lobby", "still there?"))
	require.NoError(t, err)
	require.Len(t, alice.received(t, models.EventMessage), 1, "no delivery after disconnect")
	require.Len(t, bob.received(t, models.EventMessage), 2)
}
