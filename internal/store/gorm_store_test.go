package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/watchhub/signalhub/internal/config"
	"github.com/watchhub/signalhub/internal/db"
	"github.com/watchhub/signalhub/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	cfg := config.Database{
		Driver:   config.DatabaseDriverSQLite,
		Database: "",
	}
	database, err := db.MakeDB(&config.Config{Database: cfg})
	require.NoError(t, err)
	return store.NewGormStore(database)
}

func TestRegisterDeviceIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.RegisterDevice(ctx, "cam-1", "Front Door", "")
	require.NoError(t, err)
	assert.Equal(t, "camera", first.Type)

	second, err := s.RegisterDevice(ctx, "cam-1", "Different Name", "doorbell")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Front Door", second.Name)
}

func TestGetDeviceByDeviceIDNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetDeviceByDeviceID(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSetDeviceOnline(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.RegisterDevice(ctx, "cam-2", "", "")
	require.NoError(t, err)

	now := time.Now().Truncate(time.Second)
	require.NoError(t, s.SetDeviceOnline(ctx, "cam-2", true, now))

	got, err := s.GetDeviceByDeviceID(ctx, "cam-2")
	require.NoError(t, err)
	assert.True(t, got.Online)
}

func TestRedeemPairingCodeSucceedsOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	dev, err := s.RegisterDevice(ctx, "cam-3", "", "")
	require.NoError(t, err)

	pc, err := s.CreatePairingCode(ctx, "12345678", dev.ID, time.Minute)
	require.NoError(t, err)
	assert.False(t, pc.Used)

	outstanding, err := s.CodeOutstanding(ctx, "12345678")
	require.NoError(t, err)
	assert.True(t, outstanding)

	redeemed, err := s.RedeemPairingCode(ctx, "12345678", 1)
	require.NoError(t, err)
	assert.Equal(t, dev.ID, redeemed.ID)

	outstanding, err = s.CodeOutstanding(ctx, "12345678")
	require.NoError(t, err)
	assert.False(t, outstanding)
}

func TestRedeemPairingCodeRejectsSecondRedemption(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	dev, err := s.RegisterDevice(ctx, "cam-4", "", "")
	require.NoError(t, err)
	_, err = s.CreatePairingCode(ctx, "99999999", dev.ID, time.Minute)
	require.NoError(t, err)

	_, err = s.RedeemPairingCode(ctx, "99999999", 1)
	require.NoError(t, err)

	_, err = s.RedeemPairingCode(ctx, "99999999", 2)
	assert.ErrorIs(t, err, store.ErrAlreadyUsed)
}

func TestRedeemPairingCodeRejectsExpired(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	dev, err := s.RegisterDevice(ctx, "cam-5", "", "")
	require.NoError(t, err)
	_, err = s.CreatePairingCode(ctx, "00000001", dev.ID, -time.Minute)
	require.NoError(t, err)

	_, err = s.RedeemPairingCode(ctx, "00000001", 1)
	assert.ErrorIs(t, err, store.ErrAlreadyUsed)
}

func TestRedeemPairingCodeUnknownCode(t *testing.T) {
	s := newTestStore(t)
	_, err := s.RedeemPairingCode(context.Background(), "nope", 1)
	assert.ErrorIs(t, err, store.ErrAlreadyUsed)
}

// TestRedeemPairingCodeConcurrentRedemption exercises spec.md §8 scenario 6:
// two users race to redeem the same code and exactly one must win.
func TestRedeemPairingCodeConcurrentRedemption(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	dev, err := s.RegisterDevice(ctx, "cam-6", "", "")
	require.NoError(t, err)
	_, err = s.CreatePairingCode(ctx, "55555555", dev.ID, time.Minute)
	require.NoError(t, err)

	const racers = 8
	var wg sync.WaitGroup
	successes := make([]bool, racers)
	wg.Add(racers)
	for i := 0; i < racers; i++ {
		go func(i int) {
			defer wg.Done()
			_, err := s.RedeemPairingCode(ctx, "55555555", uint(i+1))
			successes[i] = err == nil
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, ok := range successes {
		if ok {
			winners++
		}
	}
	assert.Equal(t, 1, winners, "exactly one redemption attempt should succeed")
}

func TestWatchSessionLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	dev, err := s.RegisterDevice(ctx, "cam-7", "", "")
	require.NoError(t, err)

	session, err := s.CreateWatchSession(ctx, "sess-1", 1, dev.ID)
	require.NoError(t, err)
	assert.Equal(t, "pending", string(session.Status))

	require.NoError(t, s.PromoteWatchSession(ctx, "sess-1"))
	got, err := s.GetWatchSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "active", string(got.Status))

	active, err := s.ActiveSessionsForDevice(ctx, dev.ID)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	require.NoError(t, s.EndWatchSession(ctx, "sess-1", "device_disconnected"))
	got, err = s.GetWatchSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "ended", string(got.Status))
	assert.NotNil(t, got.EndedAt)

	active, err = s.ActiveSessionsForDevice(ctx, dev.ID)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestPromoteWatchSessionIsNoOpWhenAlreadyActive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	dev, err := s.RegisterDevice(ctx, "cam-8", "", "")
	require.NoError(t, err)
	_, err = s.CreateWatchSession(ctx, "sess-2", 1, dev.ID)
	require.NoError(t, err)

	require.NoError(t, s.PromoteWatchSession(ctx, "sess-2"))
	require.NoError(t, s.PromoteWatchSession(ctx, "sess-2"))

	got, err := s.GetWatchSession(ctx, "sess-2")
	require.NoError(t, err)
	assert.Equal(t, "active", string(got.Status))
}

func TestEndWatchSessionIsImmutableOnceEnded(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	dev, err := s.RegisterDevice(ctx, "cam-9", "", "")
	require.NoError(t, err)
	_, err = s.CreateWatchSession(ctx, "sess-3", 1, dev.ID)
	require.NoError(t, err)

	require.NoError(t, s.EndWatchSession(ctx, "sess-3", "user_ended"))
	first, err := s.GetWatchSession(ctx, "sess-3")
	require.NoError(t, err)

	require.NoError(t, s.EndWatchSession(ctx, "sess-3", "timeout"))
	second, err := s.GetWatchSession(ctx, "sess-3")
	require.NoError(t, err)
	assert.Equal(t, first.EndedReason, second.EndedReason, "an already-ended session must not be rewritten")
}
