package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"referral-bot/internal/models"
	"referral-bot/internal/referral"
)

var errNotApplied = errors.New("ledger: credit not applied")

// PostgresStore keeps records in the users table and each referred-users set
// in referral_credits. Any gorm dialect with ON CONFLICT support works; the
// tests run it on SQLite.
type PostgresStore struct {
	db *gorm.DB
}

func NewPostgresStore(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) FindByID(ctx context.Context, userID int64) (*referral.Record, error) {
	var rec referral.Record

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Where("user_id = ?", userID).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return referral.ErrNotFound
			}
			return err
		}

		referred := []int64{}
		if err := tx.Model(&models.ReferralCredit{}).
			Where("referrer_id = ?", userID).
			Order("id").
			Pluck("referred_user_id", &referred).Error; err != nil {
			return err
		}

		rec = referral.Record{
			UserID:        user.UserID,
			ReferrerID:    user.ReferrerID,
			ReferralCount: user.ReferralCount,
			ReferredUsers: referred,
		}
		return rec.Validate()
	}, s.readOptions())

	switch {
	case err == nil:
		return &rec, nil
	case errors.Is(err, referral.ErrNotFound), errors.Is(err, referral.ErrCorruptRecord):
		return nil, err
	default:
		return nil, fmt.Errorf("find user %d: %w", userID, err)
	}
}

func (s *PostgresStore) InsertIfAbsent(ctx context.Context, rec referral.Record) (bool, error) {
	if rec.ReferralCount != 0 || len(rec.ReferredUsers) != 0 {
		return false, fmt.Errorf("insert user %d: only fresh records can be inserted", rec.UserID)
	}
	if err := rec.Validate(); err != nil {
		return false, err
	}

	user := models.User{UserID: rec.UserID, ReferrerID: rec.ReferrerID}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(&user)
	if res.Error != nil {
		return false, fmt.Errorf("insert user %d: %w", rec.UserID, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// IncrementAndAppend runs the set insert, the counter bump and the read-back
// in one transaction. A missing referrer rolls the credit row back.
func (s *PostgresStore) IncrementAndAppend(ctx context.Context, referrerID, referredID int64) (bool, int, error) {
	var count int

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		credit := models.ReferralCredit{ReferrerID: referrerID, ReferredUserID: referredID}
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "referrer_id"}, {Name: "referred_user_id"}},
			DoNothing: true,
		}).Create(&credit)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errNotApplied
		}

		res = tx.Model(&models.User{}).
			Where("user_id = ?", referrerID).
			UpdateColumns(map[string]interface{}{
				"referral_count": gorm.Expr("referral_count + ?", 1),
				"updated_at":     time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errNotApplied
		}

		return tx.Model(&models.User{}).
			Select("referral_count").
			Where("user_id = ?", referrerID).
			Scan(&count).Error
	})

	switch {
	case err == nil:
		return true, count, nil
	case errors.Is(err, errNotApplied):
		return false, 0, nil
	default:
		return false, 0, fmt.Errorf("credit %d to %d: %w", referredID, referrerID, err)
	}
}

// readOptions gives FindByID a single snapshot on Postgres so the count and
// the set are read consistently.
func (s *PostgresStore) readOptions() *sql.TxOptions {
	if s.db.Dialector.Name() == "postgres" {
		return &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	}
	return nil
}

var _ referral.Store = (*PostgresStore)(nil)
