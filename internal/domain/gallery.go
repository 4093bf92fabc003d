package domain

import "time"

type Painter struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Name      string     `gorm:"size:256;not null" json:"name"`
	BornAt    *time.Time `json:"born_at,omitempty"`
	DiedAt    *time.Time `json:"died_at,omitempty"`
	Paintings []Painting `json:"paintings,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type Painting struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	Title       string      `gorm:"size:256;not null" json:"title"`
	Year        *int        `json:"year,omitempty"`
	PainterID   uint        `gorm:"index;not null" json:"painter_id"`
	Techniques  []Technique `gorm:"many2many:painting_techniques" json:"techniques,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

type Technique struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:128;uniqueIndex;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
