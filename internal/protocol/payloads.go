package protocol

// ICEServer mirrors the RTCIceServer shape passed to WebRTC peer connections
// (spec.md §6).
type ICEServer struct {
	URLs           []string `json:"urls"`
	Username       string   `json:"username"`
	Credential     string   `json:"credential"`
	CredentialType string   `json:"credentialType"`
}

// HelloDevicePayload is the device variant of `hello`.
type HelloDevicePayload struct {
	DeviceID     string `json:"device_id"`
	AgentVersion string `json:"agent_version,omitempty"`
	LocalHTTPURL string `json:"go2rtc_http,omitempty"`
	DeviceSecret string `json:"device_secret,omitempty"`
}

// HelloViewerPayload is the viewer variant of `hello`.
type HelloViewerPayload struct {
	Token string `json:"token"`
}

// HeartbeatPayload is the (empty) body of heartbeat/heartbeat_ack; liveness
// is carried by the envelope's request_id and ts fields, not the payload.
type HeartbeatPayload struct{}

// HelloAckPayload acknowledges a successful hello.
type HelloAckPayload struct {
	ServerTime string `json:"server_time"`
}

// CapabilitiesPayload reports a device's available streams.
type CapabilitiesPayload struct {
	Streams []string `json:"streams"`
}

// WatchRequestViewerPayload is the viewer's request to watch a device.
type WatchRequestViewerPayload struct {
	DeviceID string `json:"device_id"`
}

// WatchRequestDevicePayload is what the hub forwards to the device.
type WatchRequestDevicePayload struct {
	SessionID  string      `json:"session_id"`
	UserID     uint        `json:"user_id"`
	ICEServers []ICEServer `json:"ice_servers"`
}

// WatchReadyPayload is the hub's reply to the requesting viewer.
type WatchReadyPayload struct {
	SessionID  string      `json:"session_id"`
	ICEServers []ICEServer `json:"ice_servers"`
}

// SDP mirrors the RTCSessionDescriptionInit shape.
type SDP struct {
	SDP  string `json:"sdp"`
	Type string `json:"type"`
}

// SignalSDPPayload carries signal_offer/signal_answer.
type SignalSDPPayload struct {
	SessionID string `json:"session_id"`
	SDP       SDP    `json:"sdp"`
}

// ICECandidate mirrors the RTCIceCandidateInit shape.
type ICECandidate struct {
	Candidate     string `json:"candidate"`
	SDPMid        string `json:"sdpMid"`
	SDPMLineIndex int    `json:"sdpMLineIndex"`
}

// SignalICEPayload carries signal_ice.
type SignalICEPayload struct {
	SessionID string       `json:"session_id"`
	Candidate ICECandidate `json:"candidate"`
}

// EndWatchPayload requests a session be ended.
type EndWatchPayload struct {
	SessionID string `json:"session_id"`
}

// WatchEndedPayload notifies a peer that a session ended.
type WatchEndedPayload struct {
	SessionID string `json:"session_id"`
	Reason    string `json:"reason"`
}

// ProxyHTTPPayload is the hub→device tunneled HTTP request envelope.
type ProxyHTTPPayload struct {
	RID       string            `json:"rid"`
	Method    string            `json:"method"`
	Path      string            `json:"path"`
	Headers   map[string]string `json:"headers"`
	BodyB64   string            `json:"body_b64,omitempty"`
	TimeoutMs int64             `json:"timeout_ms"`
}

// ProxyHTTPRespPayload is the device→hub tunneled HTTP response envelope.
type ProxyHTTPRespPayload struct {
	RID     string            `json:"rid"`
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers"`
	BodyB64 string            `json:"body_b64"`
}

// ErrorPayload carries a human-readable protocol error.
type ErrorPayload struct {
	Message string `json:"message"`
}
