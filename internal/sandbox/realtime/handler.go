package realtime

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/eaglebank/webclient/shared/events"
	"github.com/eaglebank/webclient/shared/middleware"
)

const (
	DefaultWait  = 25 * time.Second
	MaxWait      = 60 * time.Second
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
)

// PollResponse is the body answered to GET /socket/poll.
type PollResponse struct {
	Cursor int64          `json:"cursor"`
	Frames []events.Frame `json:"frames"`
}

// Handler serves the socket endpoints. Both expect the user id to be set by
// middleware.AuthMiddleware.
type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
	log      *zap.SugaredLogger
}

func NewHandler(hub *Hub, log *zap.SugaredLogger) *Handler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Local development server, any origin may connect.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log: log,
	}
}

func (h *Handler) WebSocket(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warnw("websocket upgrade failed", "userId", userID, "error", err)
		return
	}
	client := h.hub.Register(userID)
	h.log.Infow("socket connected", "userId", userID, "transport", "websocket")

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		h.hub.Unregister(userID, client)
		_ = conn.Close()
		h.log.Infow("socket disconnected", "userId", userID, "transport", "websocket")
	}()

	for {
		select {
		case frame, ok := <-client.Frames():
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(frame); err != nil {
				h.log.Debugw("socket write failed", "userId", userID, "error", err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}

// Poll answers a negative cursor with the current position and no frames.
// Otherwise it holds the request until frames newer than cursor exist or
// wait elapses.
func (h *Handler) Poll(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	cursor := int64(-1)
	if v := c.Query("cursor"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			middleware.RespondWithError(c, http.StatusBadRequest, "Invalid cursor")
			return
		}
		cursor = parsed
	}

	wait := DefaultWait
	if v := c.Query("wait"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			middleware.RespondWithError(c, http.StatusBadRequest, "Invalid wait")
			return
		}
		wait = d
	}
	if wait > MaxWait {
		wait = MaxWait
	}

	if cursor < 0 {
		c.JSON(http.StatusOK, PollResponse{Cursor: h.hub.Cursor(userID), Frames: []events.Frame{}})
		return
	}

	frames, next := h.hub.Poll(c.Request.Context(), userID, cursor, wait)
	c.JSON(http.StatusOK, PollResponse{Cursor: next, Frames: frames})
}
