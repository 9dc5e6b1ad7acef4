package models

import (
	"time"
)

type User struct {
	ID            uint   `gorm:"primaryKey"`
	UserID        int64  `gorm:"uniqueIndex;not null"`
	ReferrerID    *int64 `gorm:"index"`
	ReferralCount int    `gorm:"not null;default:0"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
