// Package store is the Persistence Store (spec.md §2.3): an interface over
// device/user/session records backed by SQL. It is not in the hot path of
// signaling — the Connection Registry and Signaling Router consult it only
// for durable ownership and audit, never to decide whether a peer is live.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/watchhub/signalhub/internal/db/models"
)

var (
	// ErrNotFound is returned when a lookup finds no matching row.
	ErrNotFound = errors.New("store: not found")
	// ErrAlreadyUsed is returned when a pairing code has already been redeemed.
	ErrAlreadyUsed = errors.New("store: pairing code already used or expired")
)

// Store is the opaque persistence interface consulted by the rest of the
// hub. Implementations must make RedeemPairingCode atomic under concurrent
// callers (spec.md §8 scenario 6).
type Store interface {
	// RegisterDevice creates a Device if DeviceID is unseen, or returns the
	// existing row unchanged otherwise (spec.md §8: "registering the same
	// device_id twice yields the same record").
	RegisterDevice(ctx context.Context, deviceID, name, deviceType string) (*models.Device, error)
	GetDeviceByDeviceID(ctx context.Context, deviceID string) (*models.Device, error)
	GetDeviceByID(ctx context.Context, id uint) (*models.Device, error)

	// SetDeviceOnline is called by the Signaling Router on device hello and
	// on device disconnect.
	SetDeviceOnline(ctx context.Context, deviceID string, online bool, lastSeen time.Time) error

	GetUser(ctx context.Context, userID uint) (*models.User, error)

	CreatePairingCode(ctx context.Context, code string, deviceID uint, ttl time.Duration) (*models.PairingCode, error)
	// CodeOutstanding reports whether an unused, unexpired code with this
	// value already exists, for uniqueness-on-generation checks.
	CodeOutstanding(ctx context.Context, code string) (bool, error)
	// RedeemPairingCode atomically marks the code used and creates a
	// DeviceOwnership row. Returns ErrAlreadyUsed if the code is already
	// used, expired, or unknown.
	RedeemPairingCode(ctx context.Context, code string, userID uint) (*models.Device, error)

	CreateWatchSession(ctx context.Context, sessionID string, userID, deviceID uint) (*models.WatchSession, error)
	GetWatchSession(ctx context.Context, sessionID string) (*models.WatchSession, error)
	// PromoteWatchSession moves a session from pending to active. It is a
	// no-op (not an error) if the session is already active.
	PromoteWatchSession(ctx context.Context, sessionID string) error
	EndWatchSession(ctx context.Context, sessionID string, reason models.WatchSessionEndReason) error
	// ActiveSessionsForDevice/ForUser list sessions in pending or active
	// status referencing the given identity, for disconnect fanout.
	ActiveSessionsForDevice(ctx context.Context, deviceID uint) ([]models.WatchSession, error)
	ActiveSessionsForUser(ctx context.Context, userID uint) ([]models.WatchSession, error)
}
