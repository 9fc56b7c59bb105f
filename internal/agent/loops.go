package agent

import (
	"context"
	"net/http"
	"time"

	"github.com/watchhub/signalhub/internal/protocol"
)

// heartbeatLoop sends heartbeat every 15s while connected, dropping the
// send silently if the outbound channel is not connected (spec.md §4.6).
func (a *Agent) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.sendNonEssential(protocol.TypeHeartbeat, protocol.HeartbeatPayload{})
		}
	}
}

// capabilitiesLoop reports this device's available streams every 30s by
// probing the local HTTP service's /api/streams endpoint.
func (a *Agent) capabilitiesLoop(ctx context.Context) {
	ticker := time.NewTicker(capabilitiesInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !a.isHealthy() {
				continue
			}
			streams, ok := a.fetchStreams(ctx)
			if !ok {
				continue
			}
			a.sendNonEssential(protocol.TypeCapabilities, protocol.CapabilitiesPayload{Streams: streams})
		}
	}
}

func (a *Agent) fetchStreams(ctx context.Context) ([]string, bool) {
	reqCtx, cancel := context.WithTimeout(ctx, capabilitiesTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, a.cfg.LocalHTTPURL+"/api/streams", nil)
	if err != nil {
		return nil, false
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, false
	}

	var payload protocol.CapabilitiesPayload
	if err := decodeJSON(resp, &payload); err != nil {
		return nil, false
	}
	return payload.Streams, true
}

// healthProbeLoop flips the internal healthy flag every 10s based on whether
// the local HTTP service answers GET /api/streams with 200 OK.
func (a *Agent) healthProbeLoop(ctx context.Context) {
	ticker := time.NewTicker(healthProbeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.probeHealth(ctx)
		}
	}
}

func (a *Agent) probeHealth(ctx context.Context) {
	reqCtx, cancel := context.WithTimeout(ctx, capabilitiesTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, a.cfg.LocalHTTPURL+"/api/streams", nil)
	if err != nil {
		a.setHealthy(false)
		return
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		a.setHealthy(false)
		return
	}
	_ = resp.Body.Close()
	a.setHealthy(resp.StatusCode == http.StatusOK)
}

func (a *Agent) setHealthy(healthy bool) {
	a.healthyMu.Lock()
	a.healthy = healthy
	a.healthyMu.Unlock()
}

func (a *Agent) isHealthy() bool {
	a.healthyMu.Lock()
	defer a.healthyMu.Unlock()
	return a.healthy
}

// sendNonEssential writes a heartbeat/capabilities message, silently
// dropping it if the agent is not currently connected (spec.md §4.6's send
// discipline).
func (a *Agent) sendNonEssential(msgType string, payload any) {
	if !a.isConnected() {
		return
	}
	env, err := protocol.New(msgType, payload)
	if err != nil {
		return
	}
	a.mu.Lock()
	conn := a.conn
	a.mu.Unlock()
	if conn == nil {
		return
	}
	_ = a.writeEnvelope(conn, env)
}
