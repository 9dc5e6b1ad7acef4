package referral

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// AttributionResult classifies what Attribute did.
type AttributionResult string

const (
	AttributionApplied         AttributionResult = "applied"
	AttributionDuplicate       AttributionResult = "duplicate"
	AttributionSelf            AttributionResult = "self"
	AttributionReferrerMissing AttributionResult = "referrer_missing"
	AttributionFailed          AttributionResult = "failed"
)

// AttributionOutcome describes a credit attempt and the notifications it owes.
type AttributionOutcome struct {
	Result         AttributionResult
	ReferrerID     int64
	ReferredID     int64
	Count          int
	Threshold      int
	RewardUnlocked bool
	RewardPayload  string
}

// Applied reports whether the referrer was credited.
func (o AttributionOutcome) Applied() bool { return o.Result == AttributionApplied }

// Notifications lists the side effects owed for this outcome: a progress
// message for every credit and a single reward message on the increment that
// first reaches the threshold.
func (o AttributionOutcome) Notifications() []Notification {
	if !o.Applied() {
		return nil
	}
	notes := []Notification{{
		Kind:      NotificationProgress,
		UserID:    o.ReferrerID,
		Count:     o.Count,
		Threshold: o.Threshold,
	}}
	if o.RewardUnlocked {
		notes = append(notes, Notification{
			Kind:    NotificationReward,
			UserID:  o.ReferrerID,
			Payload: o.RewardPayload,
		})
	}
	return notes
}

// RegistrationOutcome is returned by Register.
type RegistrationOutcome struct {
	UserID       int64
	FirstContact bool
	SelfReferral bool
	// Attribution is set only when a first-contact registration carried a
	// usable referrer.
	Attribution *AttributionOutcome
}

// Settings is the constant part of the referral program.
type Settings struct {
	Threshold     int
	RewardPayload string
}

// Engine registers users and credits referrers. It holds no state between
// calls beyond the Store.
type Engine struct {
	store    Store
	settings Settings
	logger   *zap.Logger
}

func NewEngine(store Store, settings Settings, logger *zap.Logger) (*Engine, error) {
	if store == nil {
		return nil, errors.New("referral: store is required")
	}
	if settings.Threshold < 1 {
		return nil, fmt.Errorf("referral: threshold must be >= 1, got %d", settings.Threshold)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:    store,
		settings: settings,
		logger:   logger.Named("referral"),
	}, nil
}

// Threshold returns the configured referral threshold.
func (e *Engine) Threshold() int { return e.settings.Threshold }

// Register creates the user's record on first contact and, only then,
// attributes the referral. Returning users are left untouched whatever token
// they arrive with.
func (e *Engine) Register(ctx context.Context, userID, referrerID int64) (RegistrationOutcome, error) {
	if userID <= 0 {
		return RegistrationOutcome{}, fmt.Errorf("%w: %d", ErrInvalidUserID, userID)
	}

	out := RegistrationOutcome{UserID: userID}
	if referrerID == userID {
		out.SelfReferral = true
		referrerID = 0
	}
	if referrerID < 0 {
		referrerID = 0
	}

	created, err := e.store.InsertIfAbsent(ctx, NewRecord(userID, referrerID))
	if err != nil {
		return out, fmt.Errorf("register user %d: %w", userID, err)
	}
	if !created {
		e.logger.Debug("returning user", zap.Int64("user_id", userID))
		return out, nil
	}

	out.FirstContact = true
	e.logger.Info("registered user", zap.Int64("user_id", userID), zap.Int64("referrer_id", referrerID))

	if referrerID > 0 {
		attribution := e.Attribute(ctx, referrerID, userID)
		out.Attribution = &attribution
	}
	return out, nil
}

// Attribute credits referrerID for newUserID at most once. Every failure mode
// is a no-op on the ledger; store errors are logged and reported as
// AttributionFailed.
func (e *Engine) Attribute(ctx context.Context, referrerID, newUserID int64) AttributionOutcome {
	out := AttributionOutcome{
		ReferrerID: referrerID,
		ReferredID: newUserID,
		Threshold:  e.settings.Threshold,
	}
	log := e.logger.With(zap.Int64("referrer_id", referrerID), zap.Int64("referred_id", newUserID))

	if referrerID == newUserID {
		out.Result = AttributionSelf
		return out
	}

	referrer, err := e.store.FindByID(ctx, referrerID)
	switch {
	case errors.Is(err, ErrNotFound):
		log.Info("referrer has no record, skipping attribution")
		out.Result = AttributionReferrerMissing
		return out
	case err != nil:
		log.Error("failed to load referrer", zap.Error(err))
		out.Result = AttributionFailed
		return out
	}
	out.Count = referrer.ReferralCount
	if referrer.HasReferred(newUserID) {
		out.Result = AttributionDuplicate
		return out
	}

	applied, count, err := e.store.IncrementAndAppend(ctx, referrerID, newUserID)
	if err != nil {
		log.Error("failed to credit referrer", zap.Error(err))
		out.Result = AttributionFailed
		return out
	}
	if !applied {
		// lost a race with a concurrent credit for the same pair
		out.Result = AttributionDuplicate
		return out
	}

	out.Result = AttributionApplied
	out.Count = count
	if count == e.settings.Threshold {
		out.RewardUnlocked = true
		out.RewardPayload = e.settings.RewardPayload
	}
	log.Info("referral credited", zap.Int("count", count), zap.Bool("reward_unlocked", out.RewardUnlocked))
	return out
}

// GetProgress reads the current count straight from the store.
func (e *Engine) GetProgress(ctx context.Context, userID int64) (Progress, error) {
	progress := Progress{Threshold: e.settings.Threshold}

	rec, err := e.store.FindByID(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return progress, nil
	}
	if err != nil {
		return progress, fmt.Errorf("load progress for %d: %w", userID, err)
	}
	progress.Count = rec.ReferralCount
	return progress, nil
}
