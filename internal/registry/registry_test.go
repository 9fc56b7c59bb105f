package registry_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/watchhub/signalhub/internal/registry"
)

type fakeChannel struct {
	mu       sync.Mutex
	sent     [][]byte
	closed   bool
	closeMsg string
	fail     bool
	block    time.Duration
}

func (f *fakeChannel) Send(frame []byte, timeout time.Duration) error {
	if f.block > 0 {
		if f.block > timeout {
			return errors.New("i/o timeout")
		}
		time.Sleep(f.block)
	}
	if f.fail {
		return errors.New("send failed")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, frame)
	return nil
}

func (f *fakeChannel) Close(_ int, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.closeMsg = reason
	return nil
}

func (f *fakeChannel) sentMessages() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte{}, f.sent...)
}

func (f *fakeChannel) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type fakeListener struct {
	mu             sync.Mutex
	devicesGone    []string
	viewersGone    []uint
}

func (f *fakeListener) OnDeviceDisconnect(deviceID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.devicesGone = append(f.devicesGone, deviceID)
}

func (f *fakeListener) OnViewerDisconnect(userID uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.viewersGone = append(f.viewersGone, userID)
}

func TestAttachAndSendToDevice(t *testing.T) {
	t.Parallel()
	r := registry.New(nil)
	ch := &fakeChannel{}
	r.AttachDevice(context.Background(), "cam-1", ch)

	assert.True(t, r.IsDeviceOnline("cam-1"))

	err := r.SendToDevice(context.Background(), "cam-1", []byte("hi"))
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("hi")}, ch.sentMessages())
}

func TestSendToUnknownDeviceReturnsNotConnected(t *testing.T) {
	t.Parallel()
	r := registry.New(nil)
	err := r.SendToDevice(context.Background(), "ghost", []byte("hi"))
	assert.ErrorIs(t, err, registry.ErrNotConnected)
}

func TestSecondAttachSupersedesFirst(t *testing.T) {
	t.Parallel()
	r := registry.New(nil)
	first := &fakeChannel{}
	second := &fakeChannel{}

	r.AttachDevice(context.Background(), "cam-1", first)
	r.AttachDevice(context.Background(), "cam-1", second)

	assert.True(t, first.isClosed())
	assert.Equal(t, "superseded", first.closeMsg)
	assert.True(t, r.IsDeviceOnline("cam-1"))

	err := r.SendToDevice(context.Background(), "cam-1", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("x")}, second.sentMessages())
}

func TestDetachDeviceTriggersFanout(t *testing.T) {
	t.Parallel()
	r := registry.New(nil)
	listener := &fakeListener{}
	r.SetDisconnectListener(listener)

	ch := &fakeChannel{}
	r.AttachDevice(context.Background(), "cam-1", ch)
	r.DetachDevice(context.Background(), "cam-1", ch)

	assert.False(t, r.IsDeviceOnline("cam-1"))
	listener.mu.Lock()
	defer listener.mu.Unlock()
	assert.Equal(t, []string{"cam-1"}, listener.devicesGone)
}

func TestDetachViewerTriggersFanout(t *testing.T) {
	t.Parallel()
	r := registry.New(nil)
	listener := &fakeListener{}
	r.SetDisconnectListener(listener)

	ch := &fakeChannel{}
	r.AttachViewer(context.Background(), 42, ch)
	r.DetachViewer(context.Background(), 42, ch)

	assert.False(t, r.IsViewerOnline(42))
	listener.mu.Lock()
	defer listener.mu.Unlock()
	assert.Equal(t, []uint{42}, listener.viewersGone)
}

func TestDetachDeviceIgnoresStaleChannelAfterReconnect(t *testing.T) {
	t.Parallel()
	r := registry.New(nil)
	listener := &fakeListener{}
	r.SetDisconnectListener(listener)

	first := &fakeChannel{}
	second := &fakeChannel{}
	r.AttachDevice(context.Background(), "cam-1", first)
	r.AttachDevice(context.Background(), "cam-1", second) // supersedes first

	// The old connection's read loop notices the close after the fact and
	// detaches with its own (now stale) channel; it must not tear down the
	// entry the reconnect just installed.
	r.DetachDevice(context.Background(), "cam-1", first)

	assert.True(t, r.IsDeviceOnline("cam-1"))
	listener.mu.Lock()
	defer listener.mu.Unlock()
	assert.Empty(t, listener.devicesGone)
}

func TestSendToStalledConnectionEvicts(t *testing.T) {
	r := registry.New(nil)
	listener := &fakeListener{}
	r.SetDisconnectListener(listener)

	ch := &fakeChannel{block: 50 * time.Millisecond, fail: true}
	r.AttachDevice(context.Background(), "cam-1", ch)

	err := r.SendToDevice(context.Background(), "cam-1", []byte("x"))
	assert.Error(t, err)

	// Eviction runs asynchronously; give it a moment to land.
	require.Eventually(t, func() bool {
		return !r.IsDeviceOnline("cam-1")
	}, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		listener.mu.Lock()
		defer listener.mu.Unlock()
		return len(listener.devicesGone) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestTouchToleratesKnownAndUnknownIdentities(t *testing.T) {
	t.Parallel()
	r := registry.New(nil)
	ch := &fakeChannel{}
	r.AttachDevice(context.Background(), "cam-1", ch)

	// Touch should not panic and should be a no-op for unknown identities.
	r.Touch(registry.KindDevice, "cam-1", 0)
	r.Touch(registry.KindDevice, "ghost", 0)
}

func TestSweepStaleConnectionsLeavesFreshAlone(t *testing.T) {
	t.Parallel()
	r := registry.New(nil)
	ch := &fakeChannel{}
	r.AttachDevice(context.Background(), "cam-1", ch)
	r.Touch(registry.KindDevice, "cam-1", 0)

	r.SweepStaleConnections(context.Background())

	assert.True(t, r.IsDeviceOnline("cam-1"))
}
