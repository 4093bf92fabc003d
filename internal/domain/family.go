package domain

import "time"

// TokenFamily anchors one refresh-token lineage. A refresh token is valid
// only while the family it encodes still has a row here; rotation replaces
// the row under a new family id, so presenting an already-rotated token
// finds nothing and is treated as replay.
type TokenFamily struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	FamilyID  string    `gorm:"size:64;uniqueIndex;not null" json:"-"`
	UserAgent string    `gorm:"size:512" json:"user_agent"`
	IP        string    `gorm:"size:64" json:"ip"`
	ExpiresAt time.Time `gorm:"index;not null" json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
