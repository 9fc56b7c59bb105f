package models

import "time"

// PairingCode is a short-lived numeric code generated on device demand
// (spec.md §4.7). Redemption must consume the row atomically: the same
// code must never produce two DeviceOwnership rows, even under concurrent
// redemption attempts (spec.md §8 scenario 6).
type PairingCode struct {
	ID        uint   `gorm:"primaryKey"`
	Code      string `gorm:"uniqueIndex;not null"`
	DeviceID  uint   `gorm:"not null"`
	Used      bool   `gorm:"not null;default:false"`
	ExpiresAt time.Time `gorm:"not null"`
	CreatedAt time.Time

	Device Device `gorm:"foreignKey:DeviceID"`
}
