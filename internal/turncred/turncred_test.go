package turncred_test

import (
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // matching the production construction under test
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/watchhub/signalhub/internal/turncred"
)

func TestMintIsDeterministicForSameExpiry(t *testing.T) {
	t.Parallel()
	cred := turncred.Mint("shared-secret", "device-1", time.Hour, []string{"turn:example.com:3478"})

	mac := hmac.New(sha1.New, []byte("shared-secret"))
	mac.Write([]byte(cred.Username))
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	assert.Equal(t, expected, cred.Password)
	assert.True(t, strings.HasSuffix(cred.Username, ":device-1"))
	assert.Equal(t, int64(3600), cred.TTL)
}

func TestMintDifferentSecretsProduceDifferentPasswords(t *testing.T) {
	t.Parallel()
	a := turncred.Mint("secret-a", "device-1", time.Minute, nil)
	b := turncred.Mint("secret-b", "device-1", time.Minute, nil)
	assert.NotEqual(t, a.Password, b.Password)
}

func TestMintCarriesURIs(t *testing.T) {
	t.Parallel()
	uris := []string{"turn:turn.example.com:3478?transport=udp"}
	cred := turncred.Mint("s", "p", time.Minute, uris)
	assert.Equal(t, uris, cred.URIs)
}
