// Package pairing implements the device pairing flow of spec.md §4.7: a
// device-displayed code that a viewer redeems once to claim ownership.
// Generation retries on collision; redemption itself is delegated to
// store.Store.RedeemPairingCode, which is the only place atomicity is
// enforced.
package pairing

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/watchhub/signalhub/internal/config"
	"github.com/watchhub/signalhub/internal/db/models"
	"github.com/watchhub/signalhub/internal/store"
)

// ErrGenerationExhausted is returned if no unused code could be found after
// maxGenerationAttempts tries, which would only happen under a pathological
// rate of concurrent generation relative to the configured code length.
var ErrGenerationExhausted = errors.New("pairing: could not generate a unique code")

const maxGenerationAttempts = 10

const codeAlphabet = "0123456789"

// Service generates and redeems pairing codes for a single hub instance.
type Service struct {
	store store.Store
	cfg   config.Pairing
}

// Metrics is the subset of metrics.Metrics that covers pairing redemptions.
// Service does not hold a Metrics and records nothing itself.
type Metrics interface {
	RecordPairingRedemption(outcome string)
}

// New constructs a pairing Service.
func New(st store.Store, cfg config.Pairing) *Service {
	return &Service{store: st, cfg: cfg}
}

// Generate creates a fresh pairing code for deviceID, retrying on the rare
// collision with an outstanding code until one is found or
// maxGenerationAttempts is exhausted.
func (s *Service) Generate(ctx context.Context, deviceID uint) (*models.PairingCode, error) {
	for attempt := 0; attempt < maxGenerationAttempts; attempt++ {
		code, err := randomCode(s.cfg.CodeLength)
		if err != nil {
			return nil, fmt.Errorf("pairing: generate code: %w", err)
		}

		outstanding, err := s.store.CodeOutstanding(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("pairing: check code uniqueness: %w", err)
		}
		if outstanding {
			continue
		}

		pc, err := s.store.CreatePairingCode(ctx, code, deviceID, s.cfg.TTL)
		if err != nil {
			return nil, fmt.Errorf("pairing: create code: %w", err)
		}
		return pc, nil
	}
	return nil, ErrGenerationExhausted
}

// Redeem claims the device identified by code on behalf of userID. Safe
// under concurrent callers racing to redeem the same code (spec.md §8
// scenario 6): exactly one succeeds, the rest see store.ErrAlreadyUsed.
func (s *Service) Redeem(ctx context.Context, code string, userID uint) (*models.Device, error) {
	device, err := s.store.RedeemPairingCode(ctx, code, userID)
	if err != nil {
		return nil, err
	}
	return device, nil
}

func randomCode(length int) (string, error) {
	buf := make([]byte, length)
	alphabetLen := big.NewInt(int64(len(codeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", err
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf), nil
}
