package models

import (
	"time"
)

// ReferralCredit is one member of a referrer's referred-users set.
type ReferralCredit struct {
	ID             uint  `gorm:"primaryKey"`
	ReferrerID     int64 `gorm:"not null;uniqueIndex:idx_referral_credit_pair"`
	ReferredUserID int64 `gorm:"not null;uniqueIndex:idx_referral_credit_pair"`
	CreatedAt      time.Time
}
