// Package turncred implements the ephemeral TURN REST API credential
// minter (spec.md §4.1): short-lived username/password pairs derived from a
// shared secret, following the same time-limited-turn-rest convention the
// coturn/rfc5766-turn-server ecosystem uses. The hub never talks to the TURN
// server directly; it only mints credentials the TURN server can verify
// independently from the same shared secret.
package turncred

import (
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // required by the TURN REST API credential convention, not used for anything security-sensitive on its own
	"encoding/base64"
	"fmt"
	"time"
)

// Credential is a single minted TURN credential, ready to hand to a WebRTC
// peer connection's iceServers list.
type Credential struct {
	Username string `json:"username"`
	Password string `json:"credential"`
	TTL      int64  `json:"ttl"`
	URIs     []string `json:"uris"`
}

// Mint derives a time-limited username/password pair for principal (any
// opaque identifier; the Signaling Router passes a fresh random UUID), valid
// for ttl from now. The username is
// "{expiry-unix}:{principal}" and the password is the base64-standard
// encoding of HMAC-SHA1(secret, username) — the exact construction coturn's
// REST API expects (spec.md §4.1).
func Mint(secret, principal string, ttl time.Duration, uris []string) Credential {
	expiry := time.Now().Add(ttl).Unix()
	username := fmt.Sprintf("%d:%s", expiry, principal)

	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write([]byte(username))
	password := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return Credential{
		Username: username,
		Password: password,
		TTL:      int64(ttl.Seconds()),
		URIs:     uris,
	}
}
