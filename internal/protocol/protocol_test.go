package protocol_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/watchhub/signalhub/internal/protocol"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()
	env, err := protocol.New(protocol.TypeHeartbeat, map[string]string{})
	require.NoError(t, err)

	frame, err := protocol.Encode(env)
	require.NoError(t, err)

	decoded, err := protocol.Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, protocol.TypeHeartbeat, decoded.Type)
}

func TestNewWithRequestIDEchoesID(t *testing.T) {
	t.Parallel()
	env, err := protocol.NewWithRequestID(protocol.TypeHeartbeat, "req-123", map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, "req-123", env.RequestID)
}

func TestDecodeRejectsOversizeFrame(t *testing.T) {
	t.Parallel()
	huge := make([]byte, protocol.MaxFrameSize+1)
	_, err := protocol.Decode(huge)
	assert.ErrorIs(t, err, protocol.ErrFrameTooLarge)
}

func TestDecodeRejectsMissingType(t *testing.T) {
	t.Parallel()
	_, err := protocol.Decode([]byte(`{"ts":"2026-01-01T00:00:00Z"}`))
	assert.Error(t, err)
}

func TestDecodeRejectsMalformedJSON(t *testing.T) {
	t.Parallel()
	_, err := protocol.Decode([]byte(`not json`))
	assert.Error(t, err)
}

func TestDecodePayloadRoundTrip(t *testing.T) {
	t.Parallel()
	payload := protocol.WatchRequestViewerPayload{DeviceID: "cam-1"}
	env, err := protocol.New(protocol.TypeWatchRequest, payload)
	require.NoError(t, err)

	var decoded protocol.WatchRequestViewerPayload
	require.NoError(t, protocol.DecodePayload(env, &decoded))
	assert.Equal(t, payload, decoded)
}

func TestDecodePayloadEmptyPayloadErrors(t *testing.T) {
	t.Parallel()
	env := protocol.Envelope{Type: protocol.TypeHeartbeat}
	var dst protocol.HeartbeatPayload
	err := protocol.DecodePayload(env, &dst)
	assert.Error(t, err)
}

func TestEnvelopeJSONShape(t *testing.T) {
	t.Parallel()
	env, err := protocol.New(protocol.TypeHello, protocol.HelloViewerPayload{Token: "abc"})
	require.NoError(t, err)
	frame, err := protocol.Encode(env)
	require.NoError(t, err)
	s := string(frame)
	assert.True(t, strings.Contains(s, `"type":"hello"`))
	assert.True(t, strings.Contains(s, `"payload"`))
}
