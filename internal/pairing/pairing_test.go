package pairing_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/watchhub/signalhub/internal/config"
	"github.com/watchhub/signalhub/internal/db"
	"github.com/watchhub/signalhub/internal/pairing"
	"github.com/watchhub/signalhub/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	database, err := db.MakeDB(&config.Config{Database: config.Database{Driver: config.DatabaseDriverSQLite}})
	require.NoError(t, err)
	return store.NewGormStore(database)
}

func TestGenerateProducesRedeemableCode(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	device, err := st.RegisterDevice(ctx, "cam-1", "Front Door", "")
	require.NoError(t, err)

	svc := pairing.New(st, config.Pairing{CodeLength: 8, TTL: time.Minute})
	code, err := svc.Generate(ctx, device.ID)
	require.NoError(t, err)
	assert.Len(t, code.Code, 8)

	claimed, err := svc.Redeem(ctx, code.Code, 42)
	require.NoError(t, err)
	assert.Equal(t, device.ID, claimed.ID)

	_, err = svc.Redeem(ctx, code.Code, 43)
	assert.ErrorIs(t, err, store.ErrAlreadyUsed)
}

func TestRedeemUnknownCodeFails(t *testing.T) {
	st := newTestStore(t)
	svc := pairing.New(st, config.Pairing{CodeLength: 8, TTL: time.Minute})
	_, err := svc.Redeem(context.Background(), "ghost-code", 1)
	assert.ErrorIs(t, err, store.ErrAlreadyUsed)
}
