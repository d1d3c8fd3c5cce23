package syncclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edtsync/edt-sync-api/pkg/timetable"
)

// pushServer accepts socket connections, records subscribe frames and
// lets tests push payloads or drop connections.
type pushServer struct {
	*httptest.Server

	mu         sync.Mutex
	subscribes []subscribeFrame
	conns      []*websocket.Conn
}

func newPushServer(t *testing.T) *pushServer {
	t.Helper()
	ps := &pushServer{}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/socket", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		var frame subscribeFrame
		if err := conn.ReadJSON(&frame); err != nil {
			conn.Close()
			return
		}
		ps.mu.Lock()
		ps.subscribes = append(ps.subscribes, frame)
		ps.conns = append(ps.conns, conn)
		ps.mu.Unlock()
		// Keep reading so close frames are processed.
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	})
	ps.Server = httptest.NewServer(mux)
	t.Cleanup(ps.Close)
	return ps
}

func (ps *pushServer) subscribeCount() int {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return len(ps.subscribes)
}

func (ps *pushServer) push(t *testing.T, payload string) {
	t.Helper()
	ps.mu.Lock()
	defer ps.mu.Unlock()
	require.NotEmpty(t, ps.conns)
	conn := ps.conns[len(ps.conns)-1]
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(payload)))
}

func (ps *pushServer) dropLast(t *testing.T) {
	t.Helper()
	ps.mu.Lock()
	defer ps.mu.Unlock()
	require.NotEmpty(t, ps.conns)
	ps.conns[len(ps.conns)-1].Close()
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func newTestSocket(t *testing.T, srv *pushServer, handler SnapshotHandler) *Socket {
	t.Helper()
	profile := newTestProfile(srv.URL)
	sock, err := NewSocket(profile, timetable.ClassIdentity("3B"), handler, nil)
	require.NoError(t, err)
	sock.backoff = 20 * time.Millisecond
	t.Cleanup(sock.Close)
	return sock
}

func TestSocketSubscribes(t *testing.T) {
	srv := newPushServer(t)
	sock := newTestSocket(t, srv, nil)

	require.NoError(t, sock.Connect(context.Background()))
	waitFor(t, func() bool { return srv.subscribeCount() == 1 })

	srv.mu.Lock()
	frame := srv.subscribes[0]
	srv.mu.Unlock()
	assert.Equal(t, "subscribe", frame.Event)
	assert.Equal(t, "lycee-a", frame.SchoolID)
	assert.Equal(t, "3B", frame.ClassName)
	assert.Empty(t, frame.TeacherID)
}

func TestSocketDeliversSnapshots(t *testing.T) {
	srv := newPushServer(t)

	var mu sync.Mutex
	var got []timetable.Snapshot
	sock := newTestSocket(t, srv, func(s timetable.Snapshot) {
		mu.Lock()
		got = append(got, s)
		mu.Unlock()
	})

	require.NoError(t, sock.Connect(context.Background()))
	waitFor(t, func() bool { return srv.subscribeCount() == 1 })

	srv.push(t, `{"event":"snapshot","schedule_entries":[{"class_name":"3B","subject":"Maths","week":10,"year":2026}],"week":10,"year":2026}`)

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	})
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 10, got[0].Week)
	assert.Equal(t, "Maths", got[0].ScheduleEntries[0].Subject)
}

func TestSocketResubscribesAfterDrop(t *testing.T) {
	srv := newPushServer(t)
	sock := newTestSocket(t, srv, nil)

	require.NoError(t, sock.Connect(context.Background()))
	waitFor(t, func() bool { return srv.subscribeCount() == 1 })

	// The server loses the connection; subscription state dies with
	// it, so the client must subscribe again, not just redial.
	srv.dropLast(t)
	waitFor(t, func() bool { return srv.subscribeCount() == 2 })
}

func TestSocketCloseStopsReconnect(t *testing.T) {
	srv := newPushServer(t)
	sock := newTestSocket(t, srv, nil)

	require.NoError(t, sock.Connect(context.Background()))
	waitFor(t, func() bool { return srv.subscribeCount() == 1 })

	sock.Close()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, srv.subscribeCount())

	assert.Error(t, sock.Connect(context.Background()))
}

func TestSocketCloseDuringRedial(t *testing.T) {
	srv := newPushServer(t)
	sock := newTestSocket(t, srv, nil)

	require.NoError(t, sock.Connect(context.Background()))
	waitFor(t, func() bool { return srv.subscribeCount() == 1 })

	// Close racing a redial: a connection dialed after Close must not be
	// installed, or it would keep a server-side subscription alive with
	// no reader to ever tear it down.
	sock.Close()

	conn, err := sock.dialAndSubscribe(context.Background())
	require.Error(t, err)
	assert.Nil(t, conn)

	sock.mu.Lock()
	assert.Nil(t, sock.conn)
	sock.mu.Unlock()
}

func TestSocketRejectsRoomIdentity(t *testing.T) {
	profile := newTestProfile("http://localhost:1")
	_, err := NewSocket(profile, timetable.RoomIdentity("B204"), nil, nil)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "push"))
}
