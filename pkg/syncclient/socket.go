package syncclient

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/edtsync/edt-sync-api/pkg/timetable"
)

// SnapshotHandler receives every normalized snapshot pushed by the
// backend, including the immediate one sent after subscribing.
type SnapshotHandler func(timetable.Snapshot)

// Socket keeps one push subscription alive against the backend. It is
// opened when the planning screen gains focus and closed when it loses
// it; while open it reconnects on its own and resubscribes after every
// reconnect, since server-side subscription state dies with the
// connection.
type Socket struct {
	url      string
	schoolID string
	identity timetable.Identity
	handler  SnapshotHandler
	logger   *zap.Logger

	backoff time.Duration

	mu     sync.Mutex
	conn   *websocket.Conn
	cancel context.CancelFunc
	closed bool
}

type subscribeFrame struct {
	Event     string `json:"event"`
	SchoolID  string `json:"school_id"`
	TeacherID string `json:"teacher_id,omitempty"`
	ClassName string `json:"class_name,omitempty"`
	Room      string `json:"room,omitempty"`
}

type pushFrame struct {
	Event   string `json:"event"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// NewSocket prepares a subscription for one identity. Connect starts it.
func NewSocket(profile *Profile, identity timetable.Identity, handler SnapshotHandler, logger *zap.Logger) (*Socket, error) {
	if err := identity.Validate(); err != nil {
		return nil, err
	}
	if !identity.Pushable() {
		return nil, errors.New("syncclient: identity cannot receive pushes")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	wsURL := strings.Replace(profile.BaseURL, "http", "ws", 1)
	return &Socket{
		url:      wsURL + "/api/v1/socket?token=" + profile.Bearer(),
		schoolID: profile.SchoolID,
		identity: identity,
		handler:  handler,
		logger:   logger,
		backoff:  2 * time.Second,
	}, nil
}

// Connect dials the backend and subscribes. It returns after the first
// successful subscribe; reading and reconnecting continue in the
// background until Close or ctx cancellation.
func (s *Socket) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.New("syncclient: socket already closed")
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	conn, err := s.dialAndSubscribe(runCtx)
	if err != nil {
		cancel()
		return err
	}
	go s.run(runCtx, conn)
	return nil
}

// Close tears the subscription down. Reconnection is disabled before
// the connection drops so the read loop does not race a redial.
func (s *Socket) Close() {
	s.mu.Lock()
	s.closed = true
	if s.cancel != nil {
		s.cancel()
	}
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

func (s *Socket) dialAndSubscribe(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return nil, err
	}
	frame := subscribeFrame{
		Event:     "subscribe",
		SchoolID:  s.schoolID,
		TeacherID: s.identity.TeacherID,
		ClassName: s.identity.ClassName,
	}
	if err := conn.WriteJSON(frame); err != nil {
		conn.Close()
		return nil, err
	}

	// Close may have run while dialing; installing the conn anyway would
	// leak it and keep a server-side subscription alive.
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return nil, errors.New("syncclient: socket already closed")
	}
	s.conn = conn
	s.mu.Unlock()
	return conn, nil
}

func (s *Socket) run(ctx context.Context, conn *websocket.Conn) {
	for {
		s.readLoop(conn)
		conn.Close()

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.backoff):
		}

		for {
			var err error
			conn, err = s.dialAndSubscribe(ctx)
			if err == nil {
				s.logger.Info("socket reconnected, subscription renewed")
				break
			}
			s.logger.Warn("socket reconnect failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.backoff):
			}
		}
	}
}

func (s *Socket) readLoop(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		s.dispatch(raw)
	}
}

func (s *Socket) dispatch(raw []byte) {
	var frame pushFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		s.logger.Warn("unreadable push frame", zap.Error(err))
		return
	}
	switch frame.Event {
	case "error":
		s.logger.Warn("push subscription error",
			zap.String("code", frame.Code), zap.String("message", frame.Message))
	case "snapshot", "":
		snap, err := timetable.NormalizeSnapshot(raw)
		if err != nil {
			s.logger.Warn("unreadable push snapshot", zap.Error(err))
			return
		}
		if s.handler != nil {
			s.handler(snap)
		}
	}
}
