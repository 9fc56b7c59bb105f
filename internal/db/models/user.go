package models

import "time"

// User is a viewer account. Registration, login, and password hashing are
// external collaborators (spec.md §1); the hub never reads or writes
// PasswordHash or Active: bearer tokens are validated from their signature
// and claims alone, without a database lookup.
type User struct {
	ID           uint   `gorm:"primaryKey"`
	Username     string `gorm:"uniqueIndex;not null"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	Active       bool   `gorm:"not null;default:true"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
