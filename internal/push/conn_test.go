package push

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newUpgradedConn returns both halves of a live websocket connection.
func newUpgradedConn(t *testing.T) (server, client *websocket.Conn) {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	ch := make(chan *websocket.Conn, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ch <- ws
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	server = <-ch
	return server, client
}

func TestWSConnClampsZeroConfig(t *testing.T) {
	server, client := newUpgradedConn(t)

	// A zeroed push config must not reach the writer pump as-is: a
	// zero ping interval would blow up its ticker.
	conn := newWSConn("c1", server, 0, 0, 0)
	defer conn.Close()

	assert.Greater(t, conn.writeTimeout, time.Duration(0))
	assert.Greater(t, conn.pingInterval, time.Duration(0))
	assert.Greater(t, cap(conn.send), 0)

	require.NoError(t, conn.WriteJSON(map[string]string{"event": "snapshot"}))

	var got map[string]string
	require.NoError(t, client.ReadJSON(&got))
	assert.Equal(t, "snapshot", got["event"])
}

func TestWSConnWriteAfterClose(t *testing.T) {
	server, _ := newUpgradedConn(t)

	conn := newWSConn("c1", server, time.Second, time.Minute, 4)
	require.NoError(t, conn.Close())
	assert.Error(t, conn.WriteJSON(map[string]string{"event": "snapshot"}))
}
