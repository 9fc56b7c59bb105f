package signaling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/watchhub/signalhub/internal/protocol"
	"github.com/watchhub/signalhub/internal/registry"
	"github.com/watchhub/signalhub/internal/store"
)

// directSendTimeout bounds a reply written straight back to the connection
// that sent the triggering message, outside the registry's send path.
const directSendTimeout = 5 * time.Second

// DeviceSession tracks the identity a device WebSocket connection becomes
// once it completes `hello`. One DeviceSession is created per connection by
// the transport layer (internal/httpapi) and fed every inbound envelope.
type DeviceSession struct {
	router   *Router
	deviceID string
	rowID    uint
}

// NewDeviceSession constructs an unauthenticated device session; it becomes
// usable once a hello envelope passed to Handle succeeds.
func NewDeviceSession(r *Router) *DeviceSession {
	return &DeviceSession{router: r}
}

// Handle dispatches a single envelope per spec.md §4.4's device message
// table. ch is the connection the envelope arrived on.
func (d *DeviceSession) Handle(ctx context.Context, ch registry.Channel, env protocol.Envelope) error {
	d.router.recordMessage(env.Type)
	switch env.Type {
	case protocol.TypeHello:
		return d.handleHello(ctx, ch, env)
	case protocol.TypeHeartbeat:
		return d.handleHeartbeat(ctx, ch, env)
	case protocol.TypeCapabilities:
		return d.handleCapabilities(ctx, env)
	case protocol.TypeSignalAnswer:
		return d.forwardToViewer(ctx, env)
	case protocol.TypeSignalICE:
		return d.forwardToViewer(ctx, env)
	case protocol.TypeProxyHTTPResp:
		return d.handleProxyResp(ctx, env)
	default:
		d.router.recordDrop("unknown_device_message")
		return fmt.Errorf("signaling: unexpected device message type %q", env.Type)
	}
}

func sendDirect(ch registry.Channel, msgType string, payload any) error {
	env, err := protocol.New(msgType, payload)
	if err != nil {
		return err
	}
	frame, err := protocol.Encode(env)
	if err != nil {
		return err
	}
	return ch.Send(frame, directSendTimeout)
}

func (d *DeviceSession) handleHello(ctx context.Context, ch registry.Channel, env protocol.Envelope) error {
	var payload protocol.HelloDevicePayload
	if err := protocol.DecodePayload(env, &payload); err != nil {
		return fmt.Errorf("signaling: decode device hello: %w", err)
	}
	if payload.DeviceID == "" {
		return violationErrorf("signaling: device hello missing device_id")
	}

	device, err := d.router.store.GetDeviceByDeviceID(ctx, payload.DeviceID)
	if errors.Is(err, store.ErrNotFound) {
		return violationErrorf("signaling: device hello for unregistered device %q", payload.DeviceID)
	}
	if err != nil {
		return fmt.Errorf("signaling: look up device: %w", err)
	}
	d.deviceID = payload.DeviceID
	d.rowID = device.ID

	d.router.reg.AttachDevice(ctx, d.deviceID, ch)
	if err := d.router.store.SetDeviceOnline(ctx, d.deviceID, true, time.Now()); err != nil {
		return fmt.Errorf("signaling: mark device online: %w", err)
	}
	if err := d.router.presence.HSet(ctx, devicesOnlineHashKey, d.deviceID, []byte("1")); err != nil {
		return fmt.Errorf("signaling: set presence hash: %w", err)
	}

	return sendDirect(ch, protocol.TypeHelloAck, protocol.HelloAckPayload{ServerTime: time.Now().UTC().Format(time.RFC3339)})
}

func (d *DeviceSession) handleHeartbeat(_ context.Context, ch registry.Channel, env protocol.Envelope) error {
	if d.deviceID == "" {
		return fmt.Errorf("signaling: heartbeat before hello")
	}
	d.router.reg.Touch(registry.KindDevice, d.deviceID, 0)
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

func (d *DeviceSession) handleCapabilities(ctx context.Context, env protocol.Envelope) error {
	if d.deviceID == "" {
		return fmt.Errorf("signaling: capabilities before hello")
	}
	var payload protocol.CapabilitiesPayload
	if err := protocol.DecodePayload(env, &payload); err != nil {
		return fmt.Errorf("signaling: decode capabilities: %w", err)
	}
	stored, err := marshalCapabilities(payload)
	if err != nil {
		return err
	}
	if err := d.router.presence.Set(ctx, capabilitiesKey(d.deviceID), stored); err != nil {
		return fmt.Errorf("signaling: store capabilities: %w", err)
	}
	return nil
}

// forwardToViewer relays a signal_answer or signal_ice envelope from the
// device to the viewer that owns its session, verifying the session really
// belongs to this device connection (spec.md §3 invariant).
func (d *DeviceSession) forwardToViewer(ctx context.Context, env protocol.Envelope) error {
	if d.deviceID == "" {
		return fmt.Errorf("signaling: signaling message before hello")
	}
	sessionID, err := sessionIDFromPayload(env)
	if err != nil {
		return err
	}

	session, err := d.router.store.GetWatchSession(ctx, sessionID)
	if err != nil {
		d.router.recordDrop("unknown_session")
		return fmt.Errorf("signaling: lookup session %s: %w", sessionID, err)
	}
	if session.DeviceID != d.rowID {
		d.router.recordDrop("session_device_mismatch")
		return fmt.Errorf("signaling: session %s does not belong to device %s", sessionID, d.deviceID)
	}

	frame, err := protocol.Encode(env)
	if err != nil {
		return fmt.Errorf("signaling: re-encode %s: %w", env.Type, err)
	}
	if err := d.router.reg.SendToViewer(ctx, session.UserID, frame); err != nil {
		d.router.recordDrop("viewer_unreachable")
		return fmt.Errorf("signaling: forward %s to viewer: %w", env.Type, err)
	}
	return nil
}

func (d *DeviceSession) handleProxyResp(ctx context.Context, env protocol.Envelope) error {
	var payload protocol.ProxyHTTPRespPayload
	if err := protocol.DecodePayload(env, &payload); err != nil {
		return fmt.Errorf("signaling: decode proxy_http_resp: %w", err)
	}
	if payload.RID == "" {
		return fmt.Errorf("signaling: proxy_http_resp missing rid")
	}
	raw, err := protocol.Encode(env)
	if err != nil {
		return fmt.Errorf("signaling: re-encode proxy_http_resp: %w", err)
	}
	if err := d.router.presence.Set(ctx, proxyResponseKey(payload.RID), raw); err != nil {
		return fmt.Errorf("signaling: store proxy response: %w", err)
	}
	if err := d.router.presence.Expire(ctx, proxyResponseKey(payload.RID), proxyResponseTTLSeconds*time.Second); err != nil {
		return fmt.Errorf("signaling: expire proxy response: %w", err)
	}
	return nil
}

// DeviceID reports the identity this session authenticated as, or "" before
// hello completes.
func (d *DeviceSession) DeviceID() string { return d.deviceID }
