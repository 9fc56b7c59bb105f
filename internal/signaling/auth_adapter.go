package signaling

import (
	"fmt"
	"time"

	"github.com/watchhub/signalhub/internal/auth"
)

// validateViewerToken wraps internal/auth so viewer.go doesn't need to
// import it directly; kept separate so a future auth backend swap touches
// one file.
func validateViewerToken(secret, token string) (uint, error) {
	userID, err := auth.ValidateToken(secret, token)
	if err != nil {
		return 0, fmt.Errorf("invalid bearer token: %w", err)
	}
	return userID, nil
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}
