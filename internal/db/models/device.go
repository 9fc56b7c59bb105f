package models

import "time"

// DeviceTypeCamera is the default Device.Type set by the registration endpoint.
const DeviceTypeCamera = "camera"

// Device is a durable record for an edge camera. Online and LastSeen are
// owned by the hub (set on connect/disconnect via the Connection Registry);
// every other field is set once by the registration endpoint.
type Device struct {
	ID         uint      `gorm:"primaryKey"`
	DeviceID   string    `gorm:"uniqueIndex;not null"`
	Name       string
	Type       string    `gorm:"not null;default:camera"`
	Online     bool      `gorm:"not null;default:false"`
	LastSeen   time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
