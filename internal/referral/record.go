package referral

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrNotFound is returned by a Store when no record exists for a user.
	ErrNotFound = errors.New("referral: record not found")
	// ErrCorruptRecord is returned when a stored record cannot be decoded or
	// violates the ledger invariants.
	ErrCorruptRecord = errors.New("referral: corrupt record")
	// ErrInvalidUserID is returned for non-positive user identifiers.
	ErrInvalidUserID = errors.New("referral: invalid user id")
)

// Record is one ledger entry per Telegram user.
type Record struct {
	UserID int64
	// ReferrerID is informational only; credit lives on the referrer's record.
	ReferrerID    *int64
	ReferralCount int
	ReferredUsers []int64
}

// NewRecord returns a fresh record with no credits.
func NewRecord(userID, referrerID int64) Record {
	rec := Record{UserID: userID, ReferredUsers: []int64{}}
	if referrerID > 0 && referrerID != userID {
		ref := referrerID
		rec.ReferrerID = &ref
	}
	return rec
}

// HasReferred reports whether userID was already credited to this record.
func (r Record) HasReferred(userID int64) bool {
	for _, id := range r.ReferredUsers {
		if id == userID {
			return true
		}
	}
	return false
}

// Validate checks the invariants every stored record must satisfy.
func (r Record) Validate() error {
	if r.UserID <= 0 {
		return fmt.Errorf("%w: user id %d", ErrCorruptRecord, r.UserID)
	}
	if r.ReferrerID != nil && *r.ReferrerID == r.UserID {
		return fmt.Errorf("%w: user %d refers itself", ErrCorruptRecord, r.UserID)
	}
	if r.ReferralCount != len(r.ReferredUsers) {
		return fmt.Errorf("%w: user %d has count %d but %d referred users",
			ErrCorruptRecord, r.UserID, r.ReferralCount, len(r.ReferredUsers))
	}
	seen := make(map[int64]struct{}, len(r.ReferredUsers))
	for _, id := range r.ReferredUsers {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: user %d credited twice for %d", ErrCorruptRecord, r.UserID, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// ParseToken decodes a /start deep-link payload. Anything that is not a
// positive decimal user id means "no referrer".
func ParseToken(token string) (int64, bool) {
	if token == "" {
		return 0, false
	}
	for _, c := range token {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	id, err := strconv.ParseInt(token, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
