package db

import (
	"time"

	"gorm.io/datatypes"
)

// Room stores one room document. Revision increases on every write so
// pollers can tell a changed document from one they already delivered.
type Room struct {
	Code         string         `gorm:"primaryKey;size:6"`
	Document     datatypes.JSON `gorm:"type:jsonb;not null"`
	Status       string         `gorm:"size:16;index;not null"`
	Revision     int64          `gorm:"not null;default:1"`
	CreatedAt    time.Time      `gorm:"not null"`
	LastActivity time.Time      `gorm:"index;not null"`
	UpdatedAt    time.Time      `gorm:"not null"`
}

// Event is an append-only record of room lifecycle changes.
type Event struct {
	ID        uint           `gorm:"primaryKey"`
	RoomCode  string         `gorm:"size:6;index;not null"`
	Type      string         `gorm:"size:64;not null"`
	Payload   datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt time.Time      `gorm:"not null"`
}
