package models

import "gorm.io/gorm"

// User is the trimmed account record the engine needs for API auth.
// Registration, passwords and OAuth live in the account service.
type User struct {
	gorm.Model
	Email string `gorm:"not null;uniqueIndex" json:"email"`
	Name  string `json:"name"`

	IsActive bool `gorm:"default:true" json:"is_active"`

	// TokenVersion invalidates outstanding JWTs when bumped.
	TokenVersion int `gorm:"default:1" json:"-"`
}
