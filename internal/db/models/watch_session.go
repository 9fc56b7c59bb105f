package models

import "time"

// WatchSessionStatus is a session's position in the state machine
// authoritatively defined in spec.md §4.4. Once Ended, a row is immutable.
type WatchSessionStatus string

const (
	WatchSessionPending WatchSessionStatus = "pending"
	WatchSessionActive  WatchSessionStatus = "active"
	WatchSessionEnded   WatchSessionStatus = "ended"
)

// WatchSessionEndReason records why a session left the active/pending state.
type WatchSessionEndReason string

const (
	EndReasonUserEnded           WatchSessionEndReason = "user_ended"
	EndReasonDeviceDisconnected  WatchSessionEndReason = "device_disconnected"
	EndReasonViewerDisconnected  WatchSessionEndReason = "viewer_disconnected"
	EndReasonTimeout             WatchSessionEndReason = "timeout"
)

// WatchSession is a single viewer/device watch interaction, named by its
// opaque SessionID. Created at watch_request, promoted to active on the
// first signal_offer, terminated by either end or by a disconnect.
type WatchSession struct {
	ID          uint               `gorm:"primaryKey"`
	SessionID   string             `gorm:"uniqueIndex;not null"`
	UserID      uint               `gorm:"not null"`
	DeviceID    uint               `gorm:"not null"`
	Status      WatchSessionStatus `gorm:"not null;default:pending"`
	StartedAt   time.Time          `gorm:"not null"`
	EndedAt     *time.Time
	EndedReason WatchSessionEndReason

	User   User   `gorm:"foreignKey:UserID"`
	Device Device `gorm:"foreignKey:DeviceID"`
}
