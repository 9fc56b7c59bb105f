// Package registry is the Connection Registry (spec.md §4.2): the
// process-local, authoritative mapping from a stable identity (device-id or
// user-id) to its live bidirectional channel. It is the only thing the rest
// of the hub trusts to answer "is this identity connected right now" — the
// presence store is advisory soft state, never the source of truth
// (spec.md §9).
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
)

const (
	// defaultWriteTimeout is the bounded write deadline applied to every
	// send (spec.md §5): a stalled peer is evicted rather than allowed to
	// block the router indefinitely.
	defaultWriteTimeout = 5 * time.Second

	// heartbeatTimeout evicts a connection whose last heartbeat is older
	// than this (spec.md §5).
	heartbeatTimeout = 90 * time.Second
)

// Channel is the transport-agnostic abstraction the registry holds per
// identity. Implementations wrap a WebSocket (or, in tests, a fake) and own
// their own write deadline enforcement.
type Channel interface {
	// Send writes a single frame, returning an error if it could not be
	// written within timeout.
	Send(frame []byte, timeout time.Duration) error
	// Close closes the underlying connection with a protocol close code
	// and machine-readable reason.
	Close(code int, reason string) error
}

// Kind distinguishes device from viewer identities, purely for logging and
// metrics labels — the two live in separate shard sets.
type Kind string

const (
	KindDevice Kind = "device"
	KindViewer Kind = "viewer"
)

// DisconnectListener is notified when an identity detaches, so the
// Signaling Router can run disconnect fanout (spec.md §4.4) without the
// registry importing the router (which would create an import cycle, since
// the router already depends on the registry to send).
type DisconnectListener interface {
	OnDeviceDisconnect(deviceID string)
	OnViewerDisconnect(userID uint)
}

// Metrics is the subset of metrics.Metrics the registry records against.
// Defined as an interface here (rather than importing internal/metrics) to
// keep the registry from depending on the metrics package.
type Metrics interface {
	RecordConnection(role, event string)
}

type entry struct {
	mu            sync.Mutex
	channel       Channel
	lastHeartbeat time.Time
	attachedAt    time.Time
}

// Registry is the Connection Registry. The zero value is not usable; build
// one with New. Device and viewer identities live in separate lock-free
// maps (puzpuzpuz/xsync), so a hot path never contends with the other kind.
type Registry struct {
	devices      *xsync.Map[string, *entry]
	viewers      *xsync.Map[string, *entry]
	writeTimeout time.Duration

	listenerMu sync.RWMutex
	listener   DisconnectListener

	metrics Metrics
}

// New constructs an empty Registry. SetDisconnectListener must be called
// before DetachDevice/DetachViewer can run fanout; until then, detaches are
// silently not forwarded (acceptable only during startup wiring).
func New(m Metrics) *Registry {
	return &Registry{
		devices:      xsync.NewMap[string, *entry](),
		viewers:      xsync.NewMap[string, *entry](),
		writeTimeout: defaultWriteTimeout,
		metrics:      m,
	}
}

// SetDisconnectListener wires the Signaling Router's fanout callback.
func (r *Registry) SetDisconnectListener(l DisconnectListener) {
	r.listenerMu.Lock()
	r.listener = l
	r.listenerMu.Unlock()
}

func (r *Registry) notifyDisconnect(kind Kind, deviceID string, userID uint) {
	r.listenerMu.RLock()
	l := r.listener
	r.listenerMu.RUnlock()
	if l == nil {
		return
	}
	switch kind {
	case KindDevice:
		l.OnDeviceDisconnect(deviceID)
	case KindViewer:
		l.OnViewerDisconnect(userID)
	}
}

// AttachDevice inserts ch as the live channel for deviceID. If one already
// exists, it is closed with ReasonSuperseded first (spec.md §4.2, §8
// scenario 3); the registry's online state is not interrupted by the swap.
func (r *Registry) AttachDevice(_ context.Context, deviceID string, ch Channel) {
	r.attach(r.devices, deviceID, ch)
	if r.metrics != nil {
		r.metrics.RecordConnection(string(KindDevice), "attach")
	}
}

// AttachViewer is AttachDevice's viewer counterpart.
func (r *Registry) AttachViewer(_ context.Context, userID uint, ch Channel) {
	r.attach(r.viewers, fmt.Sprintf("%d", userID), ch)
	if r.metrics != nil {
		r.metrics.RecordConnection(string(KindViewer), "attach")
	}
}

const supersededCloseCode = 1008 // policy_violation family; superseded is a specific reason string

func (r *Registry) attach(m *xsync.Map[string, *entry], identity string, ch Channel) {
	now := time.Now()
	newEntry := &entry{channel: ch, lastHeartbeat: now, attachedAt: now}

	prior, existed := m.LoadAndStore(identity, newEntry)

	if existed {
		if err := prior.channel.Close(supersededCloseCode, "superseded"); err != nil {
			slog.Warn("failed to close superseded connection", "identity", identity, "error", err)
		}
	}
}

// detach removes identity's entry only if it is still the one holding ch —
// a superseded connection's read loop notices the close after a new attach
// has already installed a fresh entry, and must not tear down the new one.
func (r *Registry) detach(m *xsync.Map[string, *entry], identity string, ch Channel) bool {
	e, ok := m.Load(identity)
	if !ok {
		return false
	}
	e.mu.Lock()
	match := e.channel == ch
	e.mu.Unlock()
	if !match {
		return false
	}
	return m.CompareAndDelete(identity, e)
}

// DetachDevice removes deviceID's channel, if it is still the current one,
// and runs disconnect fanout. ch must be the channel the caller observed
// close; a stale caller (superseded by a reconnect) is a no-op.
func (r *Registry) DetachDevice(_ context.Context, deviceID string, ch Channel) {
	if !r.detach(r.devices, deviceID, ch) {
		return
	}
	if r.metrics != nil {
		r.metrics.RecordConnection(string(KindDevice), "detach")
	}
	r.notifyDisconnect(KindDevice, deviceID, 0)
}

// DetachViewer is DetachDevice's viewer counterpart.
func (r *Registry) DetachViewer(_ context.Context, userID uint, ch Channel) {
	if !r.detach(r.viewers, fmt.Sprintf("%d", userID), ch) {
		return
	}
	if r.metrics != nil {
		r.metrics.RecordConnection(string(KindViewer), "detach")
	}
	r.notifyDisconnect(KindViewer, "", userID)
}

// SendToDevice is a best-effort, non-blocking send (spec.md §4.2). A write
// that can't complete within the bounded timeout drops the message and
// evicts the connection; it never blocks the caller past writeTimeout.
func (r *Registry) SendToDevice(ctx context.Context, deviceID string, msg []byte) error {
	return r.send(ctx, r.devices, KindDevice, deviceID, 0, msg)
}

// SendToViewer is SendToDevice's viewer counterpart.
func (r *Registry) SendToViewer(ctx context.Context, userID uint, msg []byte) error {
	return r.send(ctx, r.viewers, KindViewer, "", userID, msg)
}

// ErrNotConnected is returned by Send* when the identity has no live channel.
var ErrNotConnected = fmt.Errorf("registry: identity not connected")

func (r *Registry) send(ctx context.Context, m *xsync.Map[string, *entry], kind Kind, deviceID string, userID uint, msg []byte) error {
	identity := deviceID
	if kind == KindViewer {
		identity = fmt.Sprintf("%d", userID)
	}

	e, ok := m.Load(identity)
	if !ok {
		return ErrNotConnected
	}

	e.mu.Lock()
	ch := e.channel
	e.mu.Unlock()

	err := ch.Send(msg, r.writeTimeout)
	if err != nil {
		slog.Warn("dropping message to stalled connection", "kind", kind, "identity", identity, "error", err)
		// Evict asynchronously: detaching here would recurse into fanout
		// while callers may be holding other locks up the stack.
		go func() {
			_ = ch.Close(1011, "slow consumer")
			if kind == KindDevice {
				r.DetachDevice(ctx, deviceID, ch)
			} else {
				r.DetachViewer(ctx, userID, ch)
			}
		}()
		return fmt.Errorf("registry: send to %s %s failed: %w", kind, identity, err)
	}
	return nil
}

// Touch updates an identity's last-heartbeat timestamp.
func (r *Registry) Touch(kind Kind, deviceID string, userID uint) {
	identity := deviceID
	m := r.devices
	if kind == KindViewer {
		identity = fmt.Sprintf("%d", userID)
		m = r.viewers
	}
	e, ok := m.Load(identity)
	if !ok {
		return
	}
	e.mu.Lock()
	e.lastHeartbeat = time.Now()
	e.mu.Unlock()
}

// IsDeviceOnline reports whether deviceID currently has a live channel.
func (r *Registry) IsDeviceOnline(deviceID string) bool {
	_, ok := r.devices.Load(deviceID)
	return ok
}

// IsViewerOnline reports whether userID currently has a live channel.
func (r *Registry) IsViewerOnline(userID uint) bool {
	_, ok := r.viewers.Load(fmt.Sprintf("%d", userID))
	return ok
}

// SweepStaleConnections evicts any connection whose last heartbeat is older
// than heartbeatTimeout (spec.md §5). Intended to run periodically from a
// scheduled job.
func (r *Registry) SweepStaleConnections(ctx context.Context) {
	r.sweepMap(ctx, r.devices, KindDevice)
	r.sweepMap(ctx, r.viewers, KindViewer)
}

func (r *Registry) sweepMap(ctx context.Context, m *xsync.Map[string, *entry], kind Kind) {
	cutoff := time.Now().Add(-heartbeatTimeout)
	stale := make([]string, 0)
	m.Range(func(identity string, e *entry) bool {
		e.mu.Lock()
		isStale := e.lastHeartbeat.Before(cutoff)
		e.mu.Unlock()
		if isStale {
			stale = append(stale, identity)
		}
		return true
	})

	for _, identity := range stale {
		e, ok := m.Load(identity)
		if !ok {
			continue
		}
		_ = e.channel.Close(1011, "heartbeat timeout")
		if kind == KindDevice {
			r.DetachDevice(ctx, identity, e.channel)
		} else {
			var userID uint
			_, _ = fmt.Sscanf(identity, "%d", &userID)
			r.DetachViewer(ctx, userID, e.channel)
		}
	}
}
