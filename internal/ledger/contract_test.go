package ledger

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"referral-bot/internal/referral"
)

// runStoreContract exercises the behaviour every referral.Store must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) referral.Store) {
	ctx := context.Background()

	t.Run("missing record", func(t *testing.T) {
		store := newStore(t)
		_, err := store.FindByID(ctx, 100)
		assert.ErrorIs(t, err, referral.ErrNotFound)
	})

	t.Run("insert is idempotent", func(t *testing.T) {
		store := newStore(t)

		created, err := store.InsertIfAbsent(ctx, referral.NewRecord(200, 100))
		require.NoError(t, err)
		assert.True(t, created)

		created, err = store.InsertIfAbsent(ctx, referral.NewRecord(200, 300))
		require.NoError(t, err)
		assert.False(t, created)

		rec, err := store.FindByID(ctx, 200)
		require.NoError(t, err)
		require.NotNil(t, rec.ReferrerID)
		assert.Equal(t, int64(100), *rec.ReferrerID)
		assert.Zero(t, rec.ReferralCount)
		assert.Empty(t, rec.ReferredUsers)
	})

	t.Run("insert without referrer", func(t *testing.T) {
		store := newStore(t)

		created, err := store.InsertIfAbsent(ctx, referral.NewRecord(100, 0))
		require.NoError(t, err)
		assert.True(t, created)

		rec, err := store.FindByID(ctx, 100)
		require.NoError(t, err)
		assert.Nil(t, rec.ReferrerID)
	})

	t.Run("insert rejects records with credits", func(t *testing.T) {
		store := newStore(t)
		_, err := store.InsertIfAbsent(ctx, referral.Record{UserID: 100, ReferralCount: 1, ReferredUsers: []int64{5}})
		assert.Error(t, err)
	})

	t.Run("credit to missing referrer", func(t *testing.T) {
		store := newStore(t)

		applied, _, err := store.IncrementAndAppend(ctx, 100, 200)
		require.NoError(t, err)
		assert.False(t, applied)

		// no stray set member survives once the referrer shows up
		_, err = store.InsertIfAbsent(ctx, referral.NewRecord(100, 0))
		require.NoError(t, err)
		rec, err := store.FindByID(ctx, 100)
		require.NoError(t, err)
		assert.Empty(t, rec.ReferredUsers)

		applied, count, err := store.IncrementAndAppend(ctx, 100, 200)
		require.NoError(t, err)
		assert.True(t, applied)
		assert.Equal(t, 1, count)
	})

	t.Run("credit is deduplicated", func(t *testing.T) {
		store := newStore(t)
		_, err := store.InsertIfAbsent(ctx, referral.NewRecord(100, 0))
		require.NoError(t, err)

		applied, count, err := store.IncrementAndAppend(ctx, 100, 200)
		require.NoError(t, err)
		assert.True(t, applied)
		assert.Equal(t, 1, count)

		applied, _, err = store.IncrementAndAppend(ctx, 100, 200)
		require.NoError(t, err)
		assert.False(t, applied)

		applied, count, err = store.IncrementAndAppend(ctx, 100, 201)
		require.NoError(t, err)
		assert.True(t, applied)
		assert.Equal(t, 2, count)

		rec, err := store.FindByID(ctx, 100)
		require.NoError(t, err)
		assert.Equal(t, 2, rec.ReferralCount)
		assert.ElementsMatch(t, []int64{200, 201}, rec.ReferredUsers)
	})

	t.Run("concurrent credits", func(t *testing.T) {
		store := newStore(t)
		_, err := store.InsertIfAbsent(ctx, referral.NewRecord(100, 0))
		require.NoError(t, err)

		const distinct = 10
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			applied int
			counts  = map[int]int{}
		)
		for i := 0; i < distinct*3; i++ {
			wg.Add(1)
			go func(referred int64) {
				defer wg.Done()
				ok, count, err := store.IncrementAndAppend(ctx, 100, referred)
				assert.NoError(t, err)
				if ok {
					mu.Lock()
					applied++
					counts[count]++
					mu.Unlock()
				}
			}(int64(1000 + i%distinct))
		}
		wg.Wait()

		assert.Equal(t, distinct, applied)
		for c := 1; c <= distinct; c++ {
			assert.Equal(t, 1, counts[c], "count %d observed once", c)
		}

		rec, err := store.FindByID(ctx, 100)
		require.NoError(t, err)
		assert.Equal(t, distinct, rec.ReferralCount)
		assert.Len(t, rec.ReferredUsers, distinct)
	})
}
