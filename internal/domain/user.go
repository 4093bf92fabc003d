package domain

import "time"

// User is the identity root. TokenVersion is an opaque marker embedded in
// every access token; regenerating it invalidates all previously issued
// access tokens without enumerating them.
type User struct {
	ID           uint             `gorm:"primaryKey" json:"id"`
	TokenVersion string           `gorm:"size:64;not null" json:"-"`
	Credential   *LocalCredential `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// LocalCredential holds the bcrypt hash for username/password login.
// One per user; never mutated by the auth core.
type LocalCredential struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	Username     string    `gorm:"size:128;uniqueIndex;not null" json:"username"`
	PasswordHash string    `gorm:"size:128;not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
