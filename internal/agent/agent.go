// Package agent is the Device Agent (spec.md §4.6): the edge counterpart
// that runs alongside a camera's local HTTP service and maintains a
// resilient outbound WebSocket connection to the hub. It answers tunneled
// HTTP requests, sends heartbeats, reports capabilities, and reconnects
// with exponential backoff and jitter on any disconnect.
package agent

import (
	"context"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/watchhub/signalhub/internal/protocol"
)

// state is the connection lifecycle's state machine (spec.md §4.6).
type state int

const (
	stateDisconnected state = iota
	stateConnecting
	stateConnected
	stateReconnecting
	stateStopping
)

const (
	backoffBase = 1 * time.Second
	backoffCap  = 30 * time.Second

	heartbeatInterval    = 15 * time.Second
	capabilitiesInterval = 30 * time.Second
	healthProbeInterval  = 10 * time.Second
	capabilitiesTimeout  = 5 * time.Second
	defaultLocalTimeout  = 30 * time.Second
	writeTimeout         = 5 * time.Second
	dialTimeout          = 10 * time.Second
)

// Config configures one Device Agent instance.
type Config struct {
	HubURL       string // e.g. "wss://hub.example.com/ws/device"
	DeviceID     string
	DeviceSecret string
	AgentVersion string
	LocalHTTPURL string // e.g. "http://127.0.0.1:8555"
}

// Agent is a resilient outbound client of the hub (spec.md §4.6).
type Agent struct {
	cfg        Config
	httpClient *http.Client

	mu      sync.Mutex
	state   state
	conn    *websocket.Conn
	attempt int

	healthyMu sync.Mutex
	healthy   bool

	// writeMu serializes every write to conn: gorilla/websocket forbids
	// concurrent writers, and writeEnvelope is called from the heartbeat
	// and capabilities loops plus a fresh goroutine per inbound proxy_http.
	writeMu sync.Mutex
}

// New builds an Agent. Call Run to start the connection loop.
func New(cfg Config) *Agent {
	return &Agent{
		cfg:        cfg,
		httpClient: &http.Client{},
		state:      stateDisconnected,
	}
}

// Run drives the reconnect loop until ctx is cancelled. It never returns an
// error: every failure is logged and retried with backoff.
func (a *Agent) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			a.setState(stateStopping)
			return
		}

		a.setState(stateConnecting)
		err := a.connect(ctx)
		if ctx.Err() != nil {
			a.setState(stateStopping)
			return
		}
		if err != nil {
			slog.Warn("device agent connection failed", "device_id", a.cfg.DeviceID, "error", err)
		}

		a.setState(stateReconnecting)
		sleep := a.nextBackoff()
		slog.Info("device agent reconnecting", "device_id", a.cfg.DeviceID, "backoff", sleep)
		select {
		case <-ctx.Done():
			a.setState(stateStopping)
			return
		case <-time.After(sleep):
		}
	}
}

func (a *Agent) setState(s state) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}

func (a *Agent) isConnected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state == stateConnected
}

// nextBackoff implements spec.md §4.6: min(base·2^(n−1), cap) + uniform[0,1)
// seconds, where n is the attempt counter.
func (a *Agent) nextBackoff() time.Duration {
	a.mu.Lock()
	a.attempt++
	n := a.attempt
	a.mu.Unlock()

	exp := backoffBase * time.Duration(1<<uint(n-1))
	if exp > backoffCap || exp <= 0 {
		exp = backoffCap
	}
	jitter := time.Duration(rand.Float64() * float64(time.Second))
	return exp + jitter
}

func (a *Agent) resetBackoff() {
	a.mu.Lock()
	a.attempt = 0
	a.mu.Unlock()
}

// connect dials the hub, performs the hello handshake, and runs the
// background loops and read pump until the connection closes.
func (a *Agent) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, _, err := dialer.DialContext(ctx, a.cfg.HubURL, nil)
	if err != nil {
		return err
	}
	conn.SetReadLimit(protocol.MaxFrameSize)

	a.mu.Lock()
	a.conn = conn
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		a.conn = nil
		a.mu.Unlock()
		_ = conn.Close()
	}()
	stopCloseOnCancel := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stopCloseOnCancel()

	if err := a.handshake(conn); err != nil {
		return err
	}

	a.setState(stateConnected)
	a.resetBackoff()
	slog.Info("device agent connected", "device_id", a.cfg.DeviceID)

	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); a.heartbeatLoop(loopCtx) }()
	go func() { defer wg.Done(); a.capabilitiesLoop(loopCtx) }()
	go func() { defer wg.Done(); a.healthProbeLoop(loopCtx) }()

	err = a.readPump(loopCtx, conn)
	cancel()
	wg.Wait()
	return err
}

// handshake sends hello and waits for hello_ack before returning.
func (a *Agent) handshake(conn *websocket.Conn) error {
	env, err := protocol.New(protocol.TypeHello, protocol.HelloDevicePayload{
		DeviceID:     a.cfg.DeviceID,
		AgentVersion: a.cfg.AgentVersion,
		LocalHTTPURL: a.cfg.LocalHTTPURL,
		DeviceSecret: a.cfg.DeviceSecret,
	})
	if err != nil {
		return err
	}
	if err := a.writeEnvelope(conn, env); err != nil {
		return err
	}

	_, raw, err := conn.ReadMessage()
	if err != nil {
		return err
	}
	ack, err := protocol.Decode(raw)
	if err != nil {
		return err
	}
	if ack.Type != protocol.TypeHelloAck {
		return errUnexpectedHandshakeReply(ack.Type)
	}
	return nil
}

func (a *Agent) writeEnvelope(conn *websocket.Conn, env protocol.Envelope) error {
	b, err := protocol.Encode(env)
	if err != nil {
		return err
	}
	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, b)
}

// readPump is the connection's single reader task; it dispatches inbound
// proxy_http requests to their own goroutine (spec.md §4.6) and returns
// when the socket closes.
func (a *Agent) readPump(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		env, err := protocol.Decode(raw)
		if err != nil {
			slog.Warn("device agent dropping malformed frame", "device_id", a.cfg.DeviceID, "error", err)
			continue
		}
		switch env.Type {
		case protocol.TypeProxyHTTP:
			go a.handleProxyHTTP(ctx, conn, env)
		case protocol.TypeWatchRequest, protocol.TypeSignalOffer, protocol.TypeSignalICE, protocol.TypeWatchEnded:
			// WebRTC signaling payloads are consumed by the embedded media
			// stack, not this agent; nothing to do at the transport layer.
		default:
			slog.Debug("device agent ignoring message", "device_id", a.cfg.DeviceID, "type", env.Type)
		}
	}
}
