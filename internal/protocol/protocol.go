// Package protocol is the Protocol Codec (spec.md §4.3): framing of typed
// JSON messages exchanged over the device/viewer WebSocket channels. It only
// knows the envelope shape and size bound; payload semantics live in the
// Signaling Router.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// MaxFrameSize bounds a single message per spec.md §4.3. A frame larger than
// this closes the connection with websocket.CloseMessageTooBig.
const MaxFrameSize = 10 * 1024 * 1024 // 10 MiB

// Message types (spec.md §6).
const (
	TypeHello          = "hello"
	TypeHelloAck       = "hello_ack"
	TypeHeartbeat      = "heartbeat"
	TypeHeartbeatAck   = "heartbeat_ack"
	TypeCapabilities   = "capabilities"
	TypeWatchRequest   = "watch_request"
	TypeWatchReady     = "watch_ready"
	TypeSignalOffer    = "signal_offer"
	TypeSignalAnswer   = "signal_answer"
	TypeSignalICE      = "signal_ice"
	TypeEndWatch       = "end_watch"
	TypeWatchEnded     = "watch_ended"
	TypeProxyHTTP      = "proxy_http"
	TypeProxyHTTPResp  = "proxy_http_resp"
	TypeError          = "error"
)

// Close reasons (spec.md §6, §7). Numeric WebSocket close codes live next to
// their callers (gorilla/websocket's CloseMessage constants); these are the
// machine-readable reason strings carried in the close frame body.
const (
	ReasonPolicyViolation = "policy_violation"
	ReasonGoingAway       = "going_away"
	ReasonInternalError   = "internal_error"
	ReasonMessageTooLarge = "message too large"
	ReasonSuperseded      = "superseded"
	ReasonSlowConsumer    = "slow consumer"
)

// ErrFrameTooLarge is returned by Decode when a frame exceeds MaxFrameSize.
var ErrFrameTooLarge = errors.New("protocol: frame exceeds maximum size")

// Envelope is the wire format every message shares (spec.md §6).
type Envelope struct {
	Type      string          `json:"type"`
	TS        time.Time       `json:"ts"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// New builds an envelope with the given type and a JSON-marshaled payload.
func New(msgType string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("protocol: marshal %s payload: %w", msgType, err)
	}
	return Envelope{
		Type:    msgType,
		TS:      time.Now().UTC(),
		Payload: raw,
	}, nil
}

// NewWithRequestID is New plus a client correlation ID echoed back verbatim.
func NewWithRequestID(msgType, requestID string, payload any) (Envelope, error) {
	env, err := New(msgType, payload)
	if err != nil {
		return Envelope{}, err
	}
	env.RequestID = requestID
	return env, nil
}

// Encode serializes an envelope to bytes.
func Encode(env Envelope) ([]byte, error) {
	b, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode: %w", err)
	}
	return b, nil
}

// Decode parses a raw frame into an envelope, enforcing MaxFrameSize.
func Decode(frame []byte) (Envelope, error) {
	if len(frame) > MaxFrameSize {
		return Envelope{}, ErrFrameTooLarge
	}
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("protocol: decode: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, errors.New("protocol: missing type field")
	}
	return env, nil
}

// DecodePayload unmarshals an envelope's payload into dst.
func DecodePayload(env Envelope, dst any) error {
	if len(env.Payload) == 0 {
		return errors.New("protocol: empty payload")
	}
	if err := json.Unmarshal(env.Payload, dst); err != nil {
		return fmt.Errorf("protocol: decode %s payload: %w", env.Type, err)
	}
	return nil
}
