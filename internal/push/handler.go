package push

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/edtsync/edt-sync-api/pkg/config"
	"github.com/edtsync/edt-sync-api/pkg/timetable"
)

// subscribeEvent is the client-to-server subscription request.
type subscribeEvent struct {
	Event     string `json:"event"`
	SchoolID  string `json:"school_id"`
	TeacherID string `json:"teacher_id"`
	ClassName string `json:"class_name"`
	Room      string `json:"room"`
}

// Handler upgrades HTTP requests to socket connections and runs their read
// loop. Writes go through the connection's writer pump.
type Handler struct {
	dispatcher *Dispatcher
	upgrader   websocket.Upgrader
	cfg        config.PushConfig
	logger     *zap.Logger
}

// NewHandler constructs the socket handler.
func NewHandler(dispatcher *Dispatcher, cfg config.PushConfig, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		dispatcher: dispatcher,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Browser origins are already filtered by the CORS layer.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		cfg:    cfg,
		logger: logger,
	}
}

// Serve handles one socket connection for its whole lifetime.
func (h *Handler) Serve(c *gin.Context) {
	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	conn := newWSConn(uuid.NewString(), ws, h.cfg.WriteTimeout, h.cfg.PingInterval, h.cfg.SendBufferSize)
	h.logger.Info("socket connected", zap.String("conn_id", conn.ID()))

	defer func() {
		h.dispatcher.Disconnect(conn.ID())
		_ = conn.Close()
		h.logger.Info("socket disconnected", zap.String("conn_id", conn.ID()))
	}()

	for {
		var event subscribeEvent
		if err := ws.ReadJSON(&event); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("socket read failed", zap.String("conn_id", conn.ID()), zap.Error(err))
			}
			return
		}
		if event.Event != "subscribe" {
			h.sendError(conn, "SUBSCRIPTION_ERROR", "unsupported event: "+event.Event)
			continue
		}

		identity := timetable.Identity{
			TeacherID: event.TeacherID,
			ClassName: event.ClassName,
			Room:      event.Room,
		}
		if err := h.dispatcher.Subscribe(c.Request.Context(), conn, event.SchoolID, identity); err != nil {
			h.logger.Warn("subscribe rejected",
				zap.String("conn_id", conn.ID()),
				zap.String("identity", identity.Key()),
				zap.Error(err),
			)
			h.sendError(conn, "SUBSCRIPTION_ERROR", err.Error())
			continue
		}
		h.logger.Info("subscribed",
			zap.String("conn_id", conn.ID()),
			zap.String("identity", identity.Key()),
		)
	}
}

func (h *Handler) sendError(conn Conn, code, message string) {
	_ = conn.WriteJSON(ErrorMessage{Event: EventError, Code: code, Message: message})
}
