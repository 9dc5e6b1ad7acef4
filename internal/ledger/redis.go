package ledger

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"referral-bot/internal/referral"
)

const defaultKeyPrefix = "referral:user:"

// insertScript creates the record hash only when it does not exist yet.
var insertScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('HSET', KEYS[1], 'user_id', ARGV[1], 'referrer_id', ARGV[2], 'referral_count', 0, 'created_at', ARGV[3])
return 1
`)

// creditScript returns -1 when the referrer is missing, -2 when the referred
// user is already in the set, otherwise the new count.
var creditScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return -1
end
if redis.call('SADD', KEYS[2], ARGV[1]) == 0 then
	return -2
end
return redis.call('HINCRBY', KEYS[1], 'referral_count', 1)
`)

// RedisStore keeps each record as a hash plus a set of referred users. Both
// keys share a hash tag so the scripts stay valid on Redis Cluster.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

func NewRedisStore(client redis.UniversalClient, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix}
}

func (s *RedisStore) recordKey(userID int64) string {
	return fmt.Sprintf("%s{%d}", s.keyPrefix, userID)
}

func (s *RedisStore) referredKey(userID int64) string {
	return fmt.Sprintf("%s{%d}:referred", s.keyPrefix, userID)
}

func (s *RedisStore) FindByID(ctx context.Context, userID int64) (*referral.Record, error) {
	var (
		fields  *redis.MapStringStringCmd
		members *redis.StringSliceCmd
	)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		fields = pipe.HGetAll(ctx, s.recordKey(userID))
		members = pipe.SMembers(ctx, s.referredKey(userID))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("find user %d: %w", userID, err)
	}
	if len(fields.Val()) == 0 {
		return nil, referral.ErrNotFound
	}

	rec, err := decodeRecord(fields.Val(), members.Val())
	if err != nil {
		return nil, fmt.Errorf("user %d: %w", userID, err)
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *RedisStore) InsertIfAbsent(ctx context.Context, rec referral.Record) (bool, error) {
	if rec.ReferralCount != 0 || len(rec.ReferredUsers) != 0 {
		return false, fmt.Errorf("insert user %d: only fresh records can be inserted", rec.UserID)
	}
	if err := rec.Validate(); err != nil {
		return false, err
	}

	referrer := ""
	if rec.ReferrerID != nil {
		referrer = strconv.FormatInt(*rec.ReferrerID, 10)
	}
	created, err := insertScript.Run(ctx, s.client,
		[]string{s.recordKey(rec.UserID)},
		rec.UserID, referrer, time.Now().UTC().Format(time.RFC3339),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("insert user %d: %w", rec.UserID, err)
	}
	return created == 1, nil
}

func (s *RedisStore) IncrementAndAppend(ctx context.Context, referrerID, referredID int64) (bool, int, error) {
	res, err := creditScript.Run(ctx, s.client,
		[]string{s.recordKey(referrerID), s.referredKey(referrerID)},
		referredID,
	).Int64()
	if err != nil {
		return false, 0, fmt.Errorf("credit %d to %d: %w", referredID, referrerID, err)
	}
	if res < 0 {
		return false, 0, nil
	}
	return true, int(res), nil
}

func decodeRecord(fields map[string]string, members []string) (*referral.Record, error) {
	userID, err := strconv.ParseInt(fields["user_id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: user_id %q", referral.ErrCorruptRecord, fields["user_id"])
	}
	count, err := strconv.Atoi(fields["referral_count"])
	if err != nil {
		return nil, fmt.Errorf("%w: referral_count %q", referral.ErrCorruptRecord, fields["referral_count"])
	}

	rec := &referral.Record{UserID: userID, ReferralCount: count, ReferredUsers: make([]int64, 0, len(members))}
	if raw := fields["referrer_id"]; raw != "" {
		referrerID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: referrer_id %q", referral.ErrCorruptRecord, raw)
		}
		rec.ReferrerID = &referrerID
	}
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: referred user %q", referral.ErrCorruptRecord, m)
		}
		rec.ReferredUsers = append(rec.ReferredUsers, id)
	}
	sort.Slice(rec.ReferredUsers, func(i, j int) bool { return rec.ReferredUsers[i] < rec.ReferredUsers[j] })
	return rec, nil
}

var _ referral.Store = (*RedisStore)(nil)
