package referral

import "context"

// Store is the ledger persistence contract.
//
// IncrementAndAppend must add referredID to the referrer's set and bump the
// referrer's count as one indivisible update. It reports applied=false, with
// no mutation, when the referrer has no record or referredID is already in the
// set. newCount is the count produced by that same update.
type Store interface {
	FindByID(ctx context.Context, userID int64) (*Record, error)
	InsertIfAbsent(ctx context.Context, rec Record) (created bool, err error)
	IncrementAndAppend(ctx context.Context, referrerID, referredID int64) (applied bool, newCount int, err error)
}
