// Package signaling is the Signaling Router (spec.md §4.4): the heart of
// the hub. It dispatches per-message-type handlers for device and viewer
// connections, enforces the watch session state machine, forwards SDP/ICE
// between the two ends of a session, and correlates tunneled HTTP
// request/response pairs via `rid`. It never blocks on a peer: every
// cross-connection forward goes through the Connection Registry's
// non-blocking send.
package signaling

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/watchhub/signalhub/internal/config"
	"github.com/watchhub/signalhub/internal/db/models"
	"github.com/watchhub/signalhub/internal/kv"
	"github.com/watchhub/signalhub/internal/protocol"
	"github.com/watchhub/signalhub/internal/registry"
	"github.com/watchhub/signalhub/internal/store"
	"github.com/watchhub/signalhub/internal/turncred"
)

// ErrPolicyViolation marks an error as a protocol/auth violation that must
// close the connection with code policy_violation (spec.md §4.4, §7),
// rather than an ordinary application-level failure that the caller should
// just log and keep the connection open for. Wrap with violationErrorf;
// test with errors.Is.
var ErrPolicyViolation = fmt.Errorf("signaling: policy violation")

// violationErrorf wraps msg so errors.Is(err, ErrPolicyViolation) reports
// true, while still carrying msg's own text for logging.
func violationErrorf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrPolicyViolation)...)
}

// Metrics is the subset of metrics.Metrics the router records against.
type Metrics interface {
	RecordRouterMessage(messageType string)
	RecordRouterDrop(reason string)
	RecordSessionTransition(status string)
}

// Registry is the subset of *registry.Registry the router depends on,
// narrowed to an interface so tests can substitute a fake.
type Registry interface {
	AttachDevice(ctx context.Context, deviceID string, ch registry.Channel)
	AttachViewer(ctx context.Context, userID uint, ch registry.Channel)
	DetachDevice(ctx context.Context, deviceID string, ch registry.Channel)
	DetachViewer(ctx context.Context, userID uint, ch registry.Channel)
	SendToDevice(ctx context.Context, deviceID string, msg []byte) error
	SendToViewer(ctx context.Context, userID uint, msg []byte) error
	Touch(kind registry.Kind, deviceID string, userID uint)
	IsDeviceOnline(deviceID string) bool
}

// Router wires together the Persistence Store, Presence Store, and
// Connection Registry into the message-handling logic of spec.md §4.4. One
// Router is shared by every connection; per-connection mutable state
// (which identity a socket has become, if any) lives in DeviceSession and
// ViewerSession.
type Router struct {
	store    store.Store
	presence kv.KV
	reg      Registry
	metrics  Metrics
	turn     config.Turn
}

// New constructs a Router and wires it as the registry's disconnect
// listener so detaches run §4.4's disconnect fanout.
func New(st store.Store, presence kv.KV, reg Registry, m Metrics, turn config.Turn) *Router {
	r := &Router{store: st, presence: presence, reg: reg, metrics: m, turn: turn}
	if full, ok := reg.(*registry.Registry); ok {
		full.SetDisconnectListener(r)
	}
	return r
}

func (r *Router) recordMessage(msgType string) {
	if r.metrics != nil {
		r.metrics.RecordRouterMessage(msgType)
	}
}

func (r *Router) recordDrop(reason string) {
	if r.metrics != nil {
		r.metrics.RecordRouterDrop(reason)
	}
}

func (r *Router) recordTransition(status string) {
	if r.metrics != nil {
		r.metrics.RecordSessionTransition(status)
	}
}

func (r *Router) mintICEServers(host string) []protocol.ICEServer {
	if host == "" {
		return nil
	}
	cred := turncred.Mint(r.turn.Secret, uuid.NewString(), r.turn.TTL, []string{
		fmt.Sprintf("turn:%s:%d?transport=udp", host, r.turn.Port),
		fmt.Sprintf("turn:%s:%d?transport=tcp", host, r.turn.Port),
	})
	return []protocol.ICEServer{{
		URLs:           cred.URIs,
		Username:       cred.Username,
		Credential:     cred.Password,
		CredentialType: "password",
	}}
}

func newSessionID() string {
	return uuid.NewString()
}

// OnDeviceDisconnect implements registry.DisconnectListener: disconnect
// fanout for a device (spec.md §4.4, §8 scenario 2).
func (r *Router) OnDeviceDisconnect(deviceID string) {
	ctx := context.Background()
	now := time.Now()

	if err := r.store.SetDeviceOnline(ctx, deviceID, false, now); err != nil {
		slog.Warn("failed to mark device offline", "device_id", deviceID, "error", err)
	}
	if err := r.presence.HDel(ctx, devicesOnlineHashKey, deviceID); err != nil {
		slog.Warn("failed to clear presence hash", "device_id", deviceID, "error", err)
	}
	_ = r.presence.Delete(ctx, presenceKey(deviceID))

	device, err := r.store.GetDeviceByDeviceID(ctx, deviceID)
	if err != nil {
		slog.Warn("disconnect fanout: device lookup failed", "device_id", deviceID, "error", err)
		return
	}

	sessions, err := r.store.ActiveSessionsForDevice(ctx, device.ID)
	if err != nil {
		slog.Warn("disconnect fanout: session lookup failed", "device_id", deviceID, "error", err)
		return
	}
	for _, session := range sessions {
		r.endSession(ctx, session.SessionID, "device_disconnected")
		r.notifyViewer(ctx, session.UserID, session.SessionID, "device_disconnected")
	}
}

// OnViewerDisconnect implements registry.DisconnectListener: disconnect
// fanout for a viewer.
func (r *Router) OnViewerDisconnect(userID uint) {
	ctx := context.Background()

	sessions, err := r.store.ActiveSessionsForUser(ctx, userID)
	if err != nil {
		slog.Warn("disconnect fanout: session lookup failed", "user_id", userID, "error", err)
		return
	}
	for _, session := range sessions {
		r.endSession(ctx, session.SessionID, "viewer_disconnected")

		device, err := r.store.GetDeviceByID(ctx, session.DeviceID)
		if err != nil {
			slog.Warn("disconnect fanout: device lookup failed", "session_id", session.SessionID, "error", err)
			continue
		}
		r.notifyDevice(ctx, device.DeviceID, session.SessionID, "viewer_disconnected")
	}
}

func (r *Router) endSession(ctx context.Context, sessionID, reason string) {
	if err := r.store.EndWatchSession(ctx, sessionID, storeEndReason(reason)); err != nil {
		slog.Warn("failed to end session", "session_id", sessionID, "error", err)
	}
	_ = r.presence.Delete(ctx, sessionKey(sessionID))
	r.recordTransition("ended")
}

func (r *Router) notifyViewer(ctx context.Context, userID uint, sessionID, reason string) {
	env, err := protocol.New(protocol.TypeWatchEnded, protocol.WatchEndedPayload{SessionID: sessionID, Reason: reason})
	if err != nil {
		slog.Error("failed to build watch_ended envelope", "error", err)
		return
	}
	frame, err := protocol.Encode(env)
	if err != nil {
		slog.Error("failed to encode watch_ended envelope", "error", err)
		return
	}
	if err := r.reg.SendToViewer(ctx, userID, frame); err != nil {
		r.recordDrop("viewer_unreachable")
	}
}

func (r *Router) notifyDevice(ctx context.Context, deviceID, sessionID, reason string) {
	env, err := protocol.New(protocol.TypeWatchEnded, protocol.WatchEndedPayload{SessionID: sessionID, Reason: reason})
	if err != nil {
		slog.Error("failed to build watch_ended envelope", "error", err)
		return
	}
	frame, err := protocol.Encode(env)
	if err != nil {
		slog.Error("failed to encode watch_ended envelope", "error", err)
		return
	}
	if err := r.reg.SendToDevice(ctx, deviceID, frame); err != nil {
		r.recordDrop("device_unreachable")
	}
}

// storeEndReason maps the fanout/handler reason strings used internally by
// the router onto the persisted WatchSessionEndReason enum.
func storeEndReason(reason string) models.WatchSessionEndReason {
	switch reason {
	case "device_disconnected":
		return models.EndReasonDeviceDisconnected
	case "viewer_disconnected":
		return models.EndReasonViewerDisconnected
	case "timeout":
		return models.EndReasonTimeout
	default:
		return models.EndReasonUserEnded
	}
}

func marshalCapabilities(payload protocol.CapabilitiesPayload) ([]byte, error) {
	type stored struct {
		Streams     []string  `json:"streams"`
		LastUpdated time.Time `json:"last_updated"`
	}
	b, err := json.Marshal(stored{Streams: payload.Streams, LastUpdated: time.Now().UTC()})
	if err != nil {
		return nil, fmt.Errorf("signaling: marshal capabilities: %w", err)
	}
	return b, nil
}

// sessionIDFromPayload extracts the session_id carried by a signal_offer,
// signal_answer, signal_ice, or end_watch envelope without needing the
// caller to know which of the three payload shapes applies.
func sessionIDFromPayload(env protocol.Envelope) (string, error) {
	switch env.Type {
	case protocol.TypeSignalOffer, protocol.TypeSignalAnswer:
		var payload protocol.SignalSDPPayload
		if err := protocol.DecodePayload(env, &payload); err != nil {
			return "", fmt.Errorf("signaling: decode %s: %w", env.Type, err)
		}
		return payload.SessionID, nil
	case protocol.TypeSignalICE:
		var payload protocol.SignalICEPayload
		if err := protocol.DecodePayload(env, &payload); err != nil {
			return "", fmt.Errorf("signaling: decode %s: %w", env.Type, err)
		}
		return payload.SessionID, nil
	case protocol.TypeEndWatch:
		var payload protocol.EndWatchPayload
		if err := protocol.DecodePayload(env, &payload); err != nil {
			return "", fmt.Errorf("signaling: decode %s: %w", env.Type, err)
		}
		return payload.SessionID, nil
	default:
		return "", fmt.Errorf("signaling: %s has no session_id", env.Type)
	}
}
