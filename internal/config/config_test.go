package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("PREMIUM_GROUP_LINK", "https://t.me/+premium")
}

func TestLoadConfig_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg := LoadConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, []int64{-1002390829801, -1002364162931}, cfg.ChannelIDs)
	assert.Equal(t, 4, cfg.ReferralThreshold)
	assert.Equal(t, StoreDriverPostgres, cfg.StoreDriver)
	assert.Equal(t, 24*time.Hour, cfg.UpdateDedupTTL)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
}

func TestLoadConfig_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CHANNEL_IDS", " -100123 , -100456,")
	t.Setenv("REFERRAL_THRESHOLD", "10")
	t.Setenv("STORE_DRIVER", "REDIS")
	t.Setenv("UPDATE_DEDUP_TTL", "0s")

	cfg := LoadConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, []int64{-100123, -100456}, cfg.ChannelIDs)
	assert.Equal(t, 10, cfg.ReferralThreshold)
	assert.Equal(t, StoreDriverRedis, cfg.StoreDriver)
	assert.Zero(t, cfg.UpdateDedupTTL)
}

func TestValidate(t *testing.T) {
	t.Run("missing token and link", func(t *testing.T) {
		t.Setenv("TELEGRAM_BOT_TOKEN", "")
		t.Setenv("PREMIUM_GROUP_LINK", "")

		err := LoadConfig().Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "TELEGRAM_BOT_TOKEN")
		assert.Contains(t, err.Error(), "PREMIUM_GROUP_LINK")
	})

	t.Run("threshold below one", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("REFERRAL_THRESHOLD", "0")

		err := LoadConfig().Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "REFERRAL_THRESHOLD must be >= 1")
	})

	t.Run("non numeric threshold is not defaulted", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("REFERRAL_THRESHOLD", "four")

		err := LoadConfig().Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "REFERRAL_THRESHOLD")
	})

	t.Run("empty channel list", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("CHANNEL_IDS", " , ")

		err := LoadConfig().Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "CHANNEL_IDS")
	})

	t.Run("bad channel id", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("CHANNEL_IDS", "-100123,@channel")

		err := LoadConfig().Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "@channel")
	})

	t.Run("unknown store driver", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("STORE_DRIVER", "mongo")

		err := LoadConfig().Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "STORE_DRIVER")
	})
}
