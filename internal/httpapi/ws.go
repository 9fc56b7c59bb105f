package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/watchhub/signalhub/internal/protocol"
	"github.com/watchhub/signalhub/internal/signaling"
)

// wsChannel adapts a gorilla/websocket connection to registry.Channel. All
// writes (both the read pump's replies and the registry's forwarded
// frames) go through writeMu, since gorilla/websocket forbids concurrent
// writers on the same connection.
type wsChannel struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (w *wsChannel) Send(frame []byte, timeout time.Duration) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	if err := w.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	return w.conn.WriteMessage(websocket.TextMessage, frame)
}

func (w *wsChannel) Close(code int, reason string) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	deadline := time.Now().Add(time.Second)
	_ = w.conn.SetWriteDeadline(deadline)
	_ = w.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	return w.conn.Close()
}

func (s *Server) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.cfg.CORSHosts) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, allowed := range s.cfg.CORSHosts {
		if origin == allowed {
			return true
		}
	}
	return false
}

// handleDeviceWS upgrades a camera/device connection and runs its read pump
// for the lifetime of the socket (spec.md §4.4).
func (s *Server) handleDeviceWS(c *gin.Context) {
	conn, err := s.upgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("device websocket upgrade failed", "error", err)
		return
	}
	conn.SetReadLimit(protocol.MaxFrameSize)

	ch := &wsChannel{conn: conn}
	sess := signaling.NewDeviceSession(s.router)
	ctx := context.Background()
	defer func() {
		if sess.DeviceID() != "" {
			s.registry.DetachDevice(ctx, sess.DeviceID(), ch)
		}
		_ = conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		env, err := protocol.Decode(raw)
		if err != nil {
			_ = ch.Close(websocket.CloseMessageTooBig, protocol.ReasonMessageTooLarge)
			return
		}
		if err := sess.Handle(ctx, ch, env); err != nil {
			slog.Warn("device message handling failed", "device_id", sess.DeviceID(), "type", env.Type, "error", err)
			if errors.Is(err, signaling.ErrPolicyViolation) {
				_ = ch.Close(websocket.ClosePolicyViolation, protocol.ReasonPolicyViolation)
				return
			}
		}
	}
}

// handleViewerWS upgrades a viewer connection and runs its read pump.
func (s *Server) handleViewerWS(c *gin.Context) {
	conn, err := s.upgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("viewer websocket upgrade failed", "error", err)
		return
	}
	conn.SetReadLimit(protocol.MaxFrameSize)

	ch := &wsChannel{conn: conn}
	sess := signaling.NewViewerSession(s.router, s.cfg.Secret)
	ctx := context.Background()
	defer func() {
		if sess.UserID() != 0 {
			s.registry.DetachViewer(ctx, sess.UserID(), ch)
		}
		_ = conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		env, err := protocol.Decode(raw)
		if err != nil {
			_ = ch.Close(websocket.CloseMessageTooBig, protocol.ReasonMessageTooLarge)
			return
		}
		if err := sess.Handle(ctx, ch, env); err != nil {
			slog.Warn("viewer message handling failed", "user_id", sess.UserID(), "type", env.Type, "error", err)
			if errors.Is(err, signaling.ErrPolicyViolation) {
				_ = ch.Close(websocket.ClosePolicyViolation, protocol.ReasonPolicyViolation)
				return
			}
		}
	}
}
