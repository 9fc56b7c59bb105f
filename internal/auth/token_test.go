package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/watchhub/signalhub/internal/auth"
)

func TestIssueAndValidateToken(t *testing.T) {
	t.Parallel()
	token, err := auth.IssueToken("secret", 7, time.Hour)
	require.NoError(t, err)

	userID, err := auth.ValidateToken("secret", token)
	require.NoError(t, err)
	assert.Equal(t, uint(7), userID)
}

func TestValidateTokenWrongSecret(t *testing.T) {
	t.Parallel()
	token, err := auth.IssueToken("secret", 1, time.Hour)
	require.NoError(t, err)

	_, err = auth.ValidateToken("other-secret", token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestValidateTokenExpired(t *testing.T) {
	t.Parallel()
	token, err := auth.IssueToken("secret", 1, -time.Minute)
	require.NoError(t, err)

	_, err = auth.ValidateToken("secret", token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestValidateTokenGarbage(t *testing.T) {
	t.Parallel()
	_, err := auth.ValidateToken("secret", "not-a-token")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}
