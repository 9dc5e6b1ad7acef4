package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mymmrac/telego"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"referral-bot/internal/bot"
	"referral-bot/internal/cache"
	"referral-bot/internal/config"
	"referral-bot/internal/database"
	"referral-bot/internal/gate"
	"referral-bot/internal/ledger"
	"referral-bot/internal/logger"
	"referral-bot/internal/metrics"
	"referral-bot/internal/notify"
	"referral-bot/internal/referral"
)

func main() {
	// Load Configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logg := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	defer func() { _ = logg.Sync() }()

	if err := run(cfg, logg); err != nil {
		logg.Fatal("bot stopped with error", zap.Error(err))
	}
	logg.Info("bot stopped")
}

func run(cfg *config.Config, logg *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Redis backs the update guard and, optionally, the ledger
	rdb, err := database.ConnectRedis(cfg, logg)
	if err != nil {
		return err
	}
	defer func() { _ = rdb.Close() }()

	store, err := openStore(cfg, rdb, logg)
	if err != nil {
		return err
	}

	tgBot, err := telego.NewBot(cfg.BotToken)
	if err != nil {
		return err
	}

	m := metrics.New()

	g, err := gate.New(gate.NewTelegramOracle(tgBot), cfg.ChannelIDs, m, logg)
	if err != nil {
		return err
	}
	engine, err := referral.NewEngine(store, referral.Settings{
		Threshold:     cfg.ReferralThreshold,
		RewardPayload: cfg.PremiumLink,
	}, logg)
	if err != nil {
		return err
	}
	flow, err := referral.NewStartFlow(g, engine, notify.NewNotifier(tgBot, m, logg), logg)
	if err != nil {
		return err
	}

	guard := cache.NewUpdateGuard(rdb, "", cfg.UpdateDedupTTL)
	b := bot.NewBot(tgBot, flow, cfg.ChannelIDs, cfg.PremiumLink, guard, m, logg)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return b.Start(ctx)
	})
	if cfg.MetricsAddr != "" {
		group.Go(func() error {
			return m.Serve(ctx, cfg.MetricsAddr, logg)
		})
	}

	logg.Info("Service started successfully",
		zap.String("store", cfg.StoreDriver),
		zap.Int("threshold", cfg.ReferralThreshold),
		zap.Int("channels", len(cfg.ChannelIDs)),
	)
	return group.Wait()
}

func openStore(cfg *config.Config, rdb *redis.Client, logg *zap.Logger) (referral.Store, error) {
	if cfg.StoreDriver == config.StoreDriverRedis {
		return ledger.NewRedisStore(rdb, ""), nil
	}

	db, err := database.ConnectPostgres(cfg, logg)
	if err != nil {
		return nil, err
	}
	return ledger.NewPostgresStore(db), nil
}
