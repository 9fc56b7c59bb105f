package signaling

import (
	"context"
	"fmt"

	"github.com/watchhub/signalhub/internal/protocol"
	"github.com/watchhub/signalhub/internal/registry"
)

// ViewerSession tracks the identity a viewer WebSocket connection becomes
// once it completes `hello` with a valid bearer token.
type ViewerSession struct {
	router *Router
	secret string
	userID uint
}

// NewViewerSession constructs an unauthenticated viewer session; secret is
// the key used to validate the bearer token presented in hello.
func NewViewerSession(r *Router, secret string) *ViewerSession {
	return &ViewerSession{router: r, secret: secret}
}

// Handle dispatches a single envelope per spec.md §4.4's viewer message
// table.
func (v *ViewerSession) Handle(ctx context.Context, ch registry.Channel, env protocol.Envelope) error {
	v.router.recordMessage(env.Type)
	switch env.Type {
	case protocol.TypeHello:
		return v.handleHello(ctx, ch, env)
	case protocol.TypeHeartbeat:
		return v.handleHeartbeat(ctx, ch, env)
	case protocol.TypeWatchRequest:
		return v.handleWatchRequest(ctx, ch, env)
	case protocol.TypeSignalOffer:
		return v.forwardToDevice(ctx, env, true)
	case protocol.TypeSignalICE:
		return v.forwardToDevice(ctx, env, false)
	case protocol.TypeEndWatch:
		return v.handleEndWatch(ctx, env)
	default:
		v.router.recordDrop("unknown_viewer_message")
		return fmt.Errorf("signaling: unexpected viewer message type %q", env.Type)
	}
}

func (v *ViewerSession) handleHello(ctx context.Context, ch registry.Channel, env protocol.Envelope) error {
	var payload protocol.HelloViewerPayload
	if err := protocol.DecodePayload(env, &payload); err != nil {
		return fmt.Errorf("signaling: decode viewer hello: %w", err)
	}
	userID, err := validateViewerToken(v.secret, payload.Token)
	if err != nil {
		return violationErrorf("signaling: viewer hello: bad token: %v", err)
	}
	v.userID = userID

	v.router.reg.AttachViewer(ctx, v.userID, ch)
	return sendDirect(ch, protocol.TypeHelloAck, protocol.HelloAckPayload{ServerTime: nowRFC3339()})
}

func (v *ViewerSession) handleHeartbeat(_ context.Context, ch registry.Channel, env protocol.Envelope) error {
	if v.userID == 0 {
		return fmt.Errorf("signaling: heartbeat before hello")
	}
	v.router.reg.Touch(registry.KindViewer, "", v.userID)
	ack, err := protocol.NewWithRequestID(protocol.TypeHeartbeatAck, env.RequestID, protocol.HeartbeatPayload{})
	if err != nil {
		return err
	}
	frame, err := protocol.Encode(ack)
	if err != nil {
		return err
	}
	return ch.Send(frame, directSendTimeout)
}

func (v *ViewerSession) handleWatchRequest(ctx context.Context, ch registry.Channel, env protocol.Envelope) error {
	if v.userID == 0 {
		return fmt.Errorf("signaling: watch_request before hello")
	}
	var payload protocol.WatchRequestViewerPayload
	if err := protocol.DecodePayload(env, &payload); err != nil {
		return fmt.Errorf("signaling: decode watch_request: %w", err)
	}

	device, err := v.router.store.GetDeviceByDeviceID(ctx, payload.DeviceID)
	if err != nil || !device.Online || !v.router.reg.IsDeviceOnline(payload.DeviceID) {
		v.router.recordDrop("device_offline")
		return sendDirect(ch, protocol.TypeError, protocol.ErrorPayload{Message: "device offline"})
	}

	sessionID := newSessionID()
	if _, err := v.router.store.CreateWatchSession(ctx, sessionID, v.userID, device.ID); err != nil {
		return fmt.Errorf("signaling: create watch session: %w", err)
	}
	v.router.recordTransition("pending")

	deviceICE := v.router.mintICEServers(firstNonEmpty(v.router.turn.InternalHost, v.router.turn.PublicHost))
	viewerICE := v.router.mintICEServers(v.router.turn.PublicHost)

	reqEnv, err := protocol.New(protocol.TypeWatchRequest, protocol.WatchRequestDevicePayload{
		SessionID:  sessionID,
		UserID:     v.userID,
		ICEServers: deviceICE,
	})
	if err != nil {
		return fmt.Errorf("signaling: build watch_request: %w", err)
	}
	frame, err := protocol.Encode(reqEnv)
	if err != nil {
		return fmt.Errorf("signaling: encode watch_request: %w", err)
	}
	if err := v.router.reg.SendToDevice(ctx, payload.DeviceID, frame); err != nil {
		v.router.recordDrop("device_unreachable")
		_ = v.router.store.EndWatchSession(ctx, sessionID, storeEndReason("device_disconnected"))
		return sendDirect(ch, protocol.TypeError, protocol.ErrorPayload{Message: "device unreachable"})
	}

	return sendDirect(ch, protocol.TypeWatchReady, protocol.WatchReadyPayload{SessionID: sessionID, ICEServers: viewerICE})
}

// forwardToDevice relays a signal_offer/signal_ice envelope from the viewer
// to the device owning its session. promote is true for signal_offer,
// which moves the session pending -> active (spec.md: "promoted to active
// on the first signal_offer").
func (v *ViewerSession) forwardToDevice(ctx context.Context, env protocol.Envelope, promote bool) error {
	if v.userID == 0 {
		return fmt.Errorf("signaling: signaling message before hello")
	}
	sessionID, err := sessionIDFromPayload(env)
	if err != nil {
		return err
	}

	session, err := v.router.store.GetWatchSession(ctx, sessionID)
	if err != nil {
		v.router.recordDrop("unknown_session")
		return fmt.Errorf("signaling: lookup session %s: %w", sessionID, err)
	}
	if session.UserID != v.userID {
		v.router.recordDrop("session_viewer_mismatch")
		return fmt.Errorf("signaling: session %s does not belong to viewer %d", sessionID, v.userID)
	}

	device, err := v.router.store.GetDeviceByID(ctx, session.DeviceID)
	if err != nil {
		return fmt.Errorf("signaling: resolve device for session %s: %w", sessionID, err)
	}

	frame, err := protocol.Encode(env)
	if err != nil {
		return fmt.Errorf("signaling: re-encode %s: %w", env.Type, err)
	}
	if err := v.router.reg.SendToDevice(ctx, device.DeviceID, frame); err != nil {
		v.router.recordDrop("device_unreachable")
		return fmt.Errorf("signaling: forward %s to device: %w", env.Type, err)
	}

	if promote {
		if err := v.router.store.PromoteWatchSession(ctx, sessionID); err != nil {
			return fmt.Errorf("signaling: promote session %s: %w", sessionID, err)
		}
		v.router.recordTransition("active")
	}
	return nil
}

func (v *ViewerSession) handleEndWatch(ctx context.Context, env protocol.Envelope) error {
	if v.userID == 0 {
		return fmt.Errorf("signaling: end_watch before hello")
	}
	var payload protocol.EndWatchPayload
	if err := protocol.DecodePayload(env, &payload); err != nil {
		return fmt.Errorf("signaling: decode end_watch: %w", err)
	}

	session, err := v.router.store.GetWatchSession(ctx, payload.SessionID)
	if err != nil {
		v.router.recordDrop("unknown_session")
		return fmt.Errorf("signaling: lookup session %s: %w", payload.SessionID, err)
	}
	if session.UserID != v.userID {
		v.router.recordDrop("session_viewer_mismatch")
		return fmt.Errorf("signaling: session %s does not belong to viewer %d", payload.SessionID, v.userID)
	}

	v.router.endSession(ctx, payload.SessionID, "user_ended")

	device, err := v.router.store.GetDeviceByID(ctx, session.DeviceID)
	if err != nil {
		return fmt.Errorf("signaling: resolve device for session %s: %w", payload.SessionID, err)
	}
	v.router.notifyDevice(ctx, device.DeviceID, payload.SessionID, "user_ended")
	return nil
}

// UserID reports the identity this session authenticated as, or 0 before
// hello completes.
func (v *ViewerSession) UserID() uint { return v.userID }

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
