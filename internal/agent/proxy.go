package agent

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/watchhub/signalhub/internal/protocol"
)

// handleProxyHTTP answers one tunneled HTTP request (spec.md §4.5, §4.6) by
// calling the local HTTP service and replying with a proxy_http_resp carrying
// the same rid. It runs on its own goroutine per request so a slow local
// service never blocks the read pump or other in-flight requests.
func (a *Agent) handleProxyHTTP(ctx context.Context, conn *websocket.Conn, env protocol.Envelope) {
	var req protocol.ProxyHTTPPayload
	if err := protocol.DecodePayload(env, &req); err != nil {
		slog.Warn("device agent dropping malformed proxy_http", "device_id", a.cfg.DeviceID, "error", err)
		return
	}

	timeout := defaultLocalTimeout
	if req.TimeoutMs > 0 {
		timeout = time.Duration(req.TimeoutMs) * time.Millisecond
	}

	resp := a.proxyLocal(ctx, req, timeout)

	respEnv, err := protocol.New(protocol.TypeProxyHTTPResp, resp)
	if err != nil {
		slog.Error("device agent failed encoding proxy_http_resp", "device_id", a.cfg.DeviceID, "rid", req.RID, "error", err)
		return
	}

	// The response is essential: it unblocks a waiting viewer-facing HTTP
	// call. It is still only attempted while connected — if the connection
	// has already dropped, the hub's own deadline will have passed by the
	// time we could reconnect, so there is nothing useful left to deliver.
	if !a.isConnected() {
		return
	}
	if err := a.writeEnvelope(conn, respEnv); err != nil {
		slog.Warn("device agent failed sending proxy_http_resp", "device_id", a.cfg.DeviceID, "rid", req.RID, "error", err)
	}
}

func (a *Agent) proxyLocal(ctx context.Context, req protocol.ProxyHTTPPayload, timeout time.Duration) protocol.ProxyHTTPRespPayload {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if req.BodyB64 != "" {
		raw, err := base64.StdEncoding.DecodeString(req.BodyB64)
		if err != nil {
			return errorResponse(req.RID, http.StatusBadRequest, "bad request body encoding")
		}
		body = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(reqCtx, req.Method, a.cfg.LocalHTTPURL+req.Path, body)
	if err != nil {
		return errorResponse(req.RID, http.StatusBadRequest, "bad request")
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		if reqCtx.Err() != nil {
			return errorResponse(req.RID, http.StatusGatewayTimeout, "local service timed out")
		}
		return errorResponse(req.RID, http.StatusBadGateway, "local service unreachable")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errorResponse(req.RID, http.StatusBadGateway, "failed reading local response")
	}

	headers := make(map[string]string, len(resp.Header))
	for k, v := range resp.Header {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}

	return protocol.ProxyHTTPRespPayload{
		RID:     req.RID,
		Status:  resp.StatusCode,
		Headers: headers,
		BodyB64: base64.StdEncoding.EncodeToString(respBody),
	}
}

func errorResponse(rid string, status int, message string) protocol.ProxyHTTPRespPayload {
	return protocol.ProxyHTTPRespPayload{
		RID:     rid,
		Status:  status,
		Headers: map[string]string{"Content-Type": "text/plain"},
		BodyB64: base64.StdEncoding.EncodeToString([]byte(message)),
	}
}

// errUnexpectedHandshakeReply is returned when the hub's first reply to a
// hello is not hello_ack.
func errUnexpectedHandshakeReply(gotType string) error {
	return fmt.Errorf("agent: expected hello_ack, got %q", gotType)
}

func decodeJSON(resp *http.Response, dst any) error {
	return json.NewDecoder(resp.Body).Decode(dst)
}
