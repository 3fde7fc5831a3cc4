package session

import (
	"testing"

	"chat-backend/internal/models"

	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	id string
}

func (c *fakeConn) ID() string       { return c.id }
func (c *fakeConn) Send([]byte) bool { return true }

func testUser(id int, username string) *models.User {
	return &models.User{ID: id, Username: username}
}

func TestEstablishAndResolve(t *testing.T) {
	reg := NewRegistry()
	conn := &fakeConn{id: "c1"}

	reg.Establish(conn, testUser(1, "alice"))

	user, ok := reg.Resolve("c1")
	require.True(t, ok)
	require.Equal(t, "alice", user.Username)
	require.Equal(t, 1, reg.Len())
}

func TestResolve_Unknown(t *testing.T) {
	reg := NewRegistry()

	_, ok := reg.Resolve("nope")
	require.False(t, ok)
}

func TestEstablish_AtMostOneSessionPerConn(t *testing.T) {
	reg := NewRegistry()
	conn := &fakeConn{id: "c1"}

	reg.Establish(conn, testUser(1, "alice"))
	reg.Establish(conn, testUser(2, "bob"))

	require.Equal(t, 1, reg.Len(), "re-establishing must replace, not duplicate")
	user, ok := reg.Resolve("c1")
	require.True(t, ok)
	require.Equal(t, "bob", user.Username)
}

func TestTerminate_RunsCleanupHooks(t *testing.T) {
	reg := NewRegistry()
	conn := &fakeConn{id: "c1"}

	var cleaned []string
	reg.OnTerminate(func(c models.Conn) {
		cleaned = append(cleaned, c.ID())
	})

	reg.Establish(conn, testUser(1, "alice"))
	reg.Terminate(conn)

	require.Equal(t, []string{"c1"}, cleaned)
	_, ok := reg.Resolve("c1")
	require.False(t, ok)
	require.Equal(t, 0, reg.Len())
}

func TestTerminate_SessionResolvableDuringCleanup(t *testing.T) {
	reg := NewRegistry()
	conn := &fakeConn{id: "c1"}

	var resolved string
	reg.OnTerminate(func(c models.Conn) {
		if user, ok := reg.Resolve(c.ID()); ok {
			resolved = user.Username
		}
	})

	reg.Establish(conn, testUser(1, "alice"))
	reg.Terminate(conn)

	require.Equal(t, "alice", resolved, "identity must stay resolvable while hooks run")
	_, ok := reg.Resolve("c1")
	require.False(t, ok, "session must be gone once Terminate returns")
}

func TestTerminate_HooksRunOnce(t *testing.T) {
	reg := NewRegistry()
	conn := &fakeConn{id: "c1"}

	count := 0
	reg.OnTerminate(func(models.Conn) { count++ })

	reg.Establish(conn, testUser(1, "alice"))
	reg.Terminate(conn)
	reg.Terminate(conn)

	require.Equal(t, 1, count)
}

func TestTerminate_UnknownConnIsNoop(t *testing.T) {
	reg := NewRegistry()

	hookRan := false
	reg.OnTerminate(func(models.Conn) { hookRan = true })

	reg.Terminate(&fakeConn{id: "ghost"})
	require.False(t, hookRan, "hooks must not run for unknown connections")
}

func TestConns_Snapshot(t *testing.T) {
	reg := NewRegistry()
	c1 := &fakeConn{id: "c1"}
	c2 := &fakeConn{id: "c2"}

	reg.Establish(c1, testUser(1, "alice"))
	reg.Establish(c2, testUser(2, "bob"))

	conns := reg.Conns()
	require.Len(t, conns, 2)

	reg.Terminate(c1)
	require.Len(t, reg.Conns(), 1)
	require.Len(t, conns, 2, "snapshot must not change after terminate")
}
