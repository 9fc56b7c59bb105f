// Package tunnel is the Tunnel Proxy Frontend (spec.md §4.5): an ordinary
// HTTP handler that turns a request into a `proxy_http` envelope sent down
// a device's WebSocket, then blocks the HTTP client until the matching
// `proxy_http_resp` lands in the Presence Store under the same `rid`, or
// the configured deadline expires.
package tunnel

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/watchhub/signalhub/internal/config"
	"github.com/watchhub/signalhub/internal/kv"
	"github.com/watchhub/signalhub/internal/protocol"
)

// pollInterval is how often the frontend re-checks the Presence Store for a
// response while waiting. Short enough to feel interactive, long enough not
// to hammer Redis under concurrent proxy traffic.
const pollInterval = 50 * time.Millisecond

// Registry is the subset of *registry.Registry the tunnel frontend depends on.
type Registry interface {
	SendToDevice(ctx context.Context, deviceID string, msg []byte) error
	IsDeviceOnline(deviceID string) bool
}

// Metrics is the subset of metrics.Metrics the tunnel frontend records against.
type Metrics interface {
	RecordTunnelProxy(outcome string, durationSeconds float64)
}

// hopByHopHeaders are stripped before forwarding, per RFC 7230 §6.1 — they
// describe this hop's connection, not the proxied request/response.
var hopByHopHeaders = map[string]struct{}{
	"Connection":          {},
	"Keep-Alive":          {},
	"Proxy-Authenticate":  {},
	"Proxy-Authorization": {},
	"Te":                  {},
	"Trailer":             {},
	"Transfer-Encoding":   {},
	"Upgrade":             {},
}

// Frontend handles tunneled HTTP requests over gin.
type Frontend struct {
	reg      Registry
	presence kv.KV
	metrics  Metrics
	cfg      config.Tunnel
}

// New constructs a tunnel Frontend.
func New(reg Registry, presence kv.KV, m Metrics, cfg config.Tunnel) *Frontend {
	return &Frontend{reg: reg, presence: presence, metrics: m, cfg: cfg}
}

// Handle is the gin handler for /devices/:device_id/proxy/*path, mounted for
// every HTTP method.
func (f *Frontend) Handle(c *gin.Context) {
	start := time.Now()
	deviceID := c.Param("device_id")
	tail := c.Param("path")
	if c.Request.URL.RawQuery != "" {
		tail += "?" + c.Request.URL.RawQuery
	}

	if !f.reg.IsDeviceOnline(deviceID) {
		f.finish(c, http.StatusServiceUnavailable, "device_offline", start)
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, f.cfg.MaxBodyBytes+1))
	if err != nil {
		f.finish(c, http.StatusBadRequest, "bad_request", start)
		return
	}
	if int64(len(body)) > f.cfg.MaxBodyBytes {
		f.finish(c, http.StatusRequestEntityTooLarge, "body_too_large", start)
		return
	}

	rid := uuid.NewString()
	payload := protocol.ProxyHTTPPayload{
		RID:       rid,
		Method:    c.Request.Method,
		Path:      tail,
		Headers:   forwardableHeaders(c.Request.Header),
		TimeoutMs: f.cfg.RequestTimeout.Milliseconds(),
	}
	if len(body) > 0 {
		payload.BodyB64 = base64.StdEncoding.EncodeToString(body)
	}

	env, err := protocol.New(protocol.TypeProxyHTTP, payload)
	if err != nil {
		f.finish(c, http.StatusInternalServerError, "encode_error", start)
		return
	}
	frame, err := protocol.Encode(env)
	if err != nil {
		f.finish(c, http.StatusInternalServerError, "encode_error", start)
		return
	}

	if err := f.reg.SendToDevice(c.Request.Context(), deviceID, frame); err != nil {
		f.finish(c, http.StatusServiceUnavailable, "device_unreachable", start)
		return
	}

	resp, err := f.awaitResponse(c.Request.Context(), rid)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			f.finish(c, http.StatusGatewayTimeout, "timeout", start)
			return
		}
		f.finish(c, http.StatusInternalServerError, "decode_error", start)
		return
	}

	for k, v := range resp.Headers {
		c.Writer.Header().Set(k, v)
	}
	body, err = base64.StdEncoding.DecodeString(resp.BodyB64)
	if err != nil {
		f.finish(c, http.StatusInternalServerError, "decode_error", start)
		return
	}
	c.Data(resp.Status, c.Writer.Header().Get("Content-Type"), body)
	f.finish(c, resp.Status, "ok", start)
}

func (f *Frontend) awaitResponse(ctx context.Context, rid string) (protocol.ProxyHTTPRespPayload, error) {
	key := proxyResponseKey(rid)
	deadline, cancel := context.WithTimeout(ctx, f.cfg.RequestTimeout)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		raw, err := f.presence.Get(deadline, key)
		if err == nil {
			_ = f.presence.Delete(context.Background(), key)
			var env protocol.Envelope
			if err := json.Unmarshal(raw, &env); err != nil {
				return protocol.ProxyHTTPRespPayload{}, fmt.Errorf("tunnel: decode stored response: %w", err)
			}
			var payload protocol.ProxyHTTPRespPayload
			if err := protocol.DecodePayload(env, &payload); err != nil {
				return protocol.ProxyHTTPRespPayload{}, fmt.Errorf("tunnel: decode response payload: %w", err)
			}
			return payload, nil
		}

		select {
		case <-deadline.Done():
			return protocol.ProxyHTTPRespPayload{}, deadline.Err()
		case <-ticker.C:
		}
	}
}

func (f *Frontend) finish(c *gin.Context, status int, outcome string, start time.Time) {
	c.Status(status)
	if f.metrics != nil {
		f.metrics.RecordTunnelProxy(outcome, time.Since(start).Seconds())
	}
}

func forwardableHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if _, skip := hopByHopHeaders[k]; skip {
			continue
		}
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

func proxyResponseKey(rid string) string {
	return fmt.Sprintf("proxy:response:%s", rid)
}
