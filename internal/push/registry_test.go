package push

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edtsync/edt-sync-api/pkg/timetable"
)

// fakeConn records everything written to it.
type fakeConn struct {
	id string

	mu       sync.Mutex
	messages []interface{}
	writeErr error
	closed   bool
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.messages = append(c.messages, v)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) sent() []interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]interface{}, len(c.messages))
	copy(out, c.messages)
	return out
}

func TestRegistrySubscribeAndMatch(t *testing.T) {
	r := NewRegistry()
	conn := newFakeConn("c1")

	require.NoError(t, r.Subscribe(conn, "lycee-a", timetable.TeacherIdentity("t1")))

	targets := r.Matching(timetable.TeacherIdentity("t1"))
	require.Len(t, targets, 1)
	assert.Equal(t, "c1", targets[0].Conn.ID())
	assert.Equal(t, "lycee-a", targets[0].SchoolID)

	assert.Empty(t, r.Matching(timetable.TeacherIdentity("t2")))
	assert.Empty(t, r.Matching(timetable.ClassIdentity("t1")))
}

func TestRegistrySubscribeReplacesIdentity(t *testing.T) {
	r := NewRegistry()
	conn := newFakeConn("c1")

	require.NoError(t, r.Subscribe(conn, "lycee-a", timetable.TeacherIdentity("t1")))
	require.NoError(t, r.Subscribe(conn, "lycee-a", timetable.ClassIdentity("3B")))

	// One identity per connection: the old one no longer matches.
	assert.Empty(t, r.Matching(timetable.TeacherIdentity("t1")))
	require.Len(t, r.Matching(timetable.ClassIdentity("3B")), 1)
	assert.Equal(t, 1, r.Count())
}

func TestRegistryRejectsAmbiguousIdentity(t *testing.T) {
	r := NewRegistry()
	err := r.Subscribe(newFakeConn("c1"), "lycee-a", timetable.Identity{TeacherID: "t1", ClassName: "3B"})
	assert.ErrorIs(t, err, timetable.ErrAmbiguousIdentity)
	assert.Equal(t, 0, r.Count())
}

func TestRegistryDisconnect(t *testing.T) {
	r := NewRegistry()
	c1 := newFakeConn("c1")
	c2 := newFakeConn("c2")

	require.NoError(t, r.Subscribe(c1, "lycee-a", timetable.ClassIdentity("3B")))
	require.NoError(t, r.Subscribe(c2, "lycee-a", timetable.ClassIdentity("3B")))

	r.Disconnect("c1")

	targets := r.Matching(timetable.ClassIdentity("3B"))
	require.Len(t, targets, 1)
	assert.Equal(t, "c2", targets[0].Conn.ID())
	assert.Equal(t, 1, r.Count())

	// Disconnecting an unknown id is a no-op.
	r.Disconnect("c9")
	assert.Equal(t, 1, r.Count())
}

func TestRegistryMultipleConnectionsPerIdentity(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Subscribe(newFakeConn("c1"), "lycee-a", timetable.TeacherIdentity("t1")))
	require.NoError(t, r.Subscribe(newFakeConn("c2"), "lycee-b", timetable.TeacherIdentity("t1")))

	targets := r.Matching(timetable.TeacherIdentity("t1"))
	assert.Len(t, targets, 2)
}
