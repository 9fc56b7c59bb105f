package models

import "time"

// DeviceOwnership is a (user, device, role) triple created by the pairing
// flow (spec.md §4.7). Unique on (UserID, DeviceID) so a viewer can only
// claim a given device once.
type DeviceOwnership struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    uint   `gorm:"uniqueIndex:idx_user_device;not null"`
	DeviceID  uint   `gorm:"uniqueIndex:idx_user_device;not null"`
	Role      string `gorm:"not null;default:owner"`
	CreatedAt time.Time

	User   User   `gorm:"foreignKey:UserID"`
	Device Device `gorm:"foreignKey:DeviceID"`
}
