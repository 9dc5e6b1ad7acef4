package bot

import (
	"context"
	"fmt"
	"strings"

	"referral-bot/internal/cache"
	"referral-bot/internal/metrics"
	"referral-bot/internal/referral"

	"github.com/google/uuid"
	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	tu "github.com/mymmrac/telego/telegoutil"
	"go.uber.org/zap"
)

// API is the slice of *telego.Bot the handlers use.
type API interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *telego.AnswerCallbackQueryParams) error
}

type Bot struct {
	Instance   *telego.Bot
	Flow       *referral.StartFlow
	Channels   []int64
	RewardLink string
	Guard      *cache.UpdateGuard
	Metrics    *metrics.Metrics
	Logger     *zap.Logger

	username string
}

func NewBot(instance *telego.Bot, flow *referral.StartFlow, channels []int64, rewardLink string, guard *cache.UpdateGuard, m *metrics.Metrics, logger *zap.Logger) *Bot {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bot{
		Instance:   instance,
		Flow:       flow,
		Channels:   channels,
		RewardLink: rewardLink,
		Guard:      guard,
		Metrics:    m,
		Logger:     logger.Named("bot"),
	}
}

// Start long-polls until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	me, err := b.Instance.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("failed to get bot info: %w", err)
	}
	b.username = me.Username

	updates, err := b.Instance.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start long polling: %w", err)
	}

	handler, err := th.NewBotHandler(b.Instance, updates)
	if err != nil {
		return fmt.Errorf("failed to create bot handler: %w", err)
	}

	handler.Use(b.skipRedelivered)

	// /start command
	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		return b.onStart(ctx, ctx.Bot(), *update.Message)
	}, th.CommandEqual("start"))

	// "Joined!" button
	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		return b.onCheckJoin(ctx, ctx.Bot(), *update.CallbackQuery)
	}, th.CallbackDataEqual(callbackCheckJoin))

	// "Check Referrals" button
	handler.Handle(func(ctx *th.Context, update telego.Update) error {
		return b.onCheckReferrals(ctx, ctx.Bot(), *update.CallbackQuery)
	}, th.CallbackDataEqual(callbackCheckReferrals))

	go func() {
		<-ctx.Done()
		_ = handler.Stop()
	}()

	b.Logger.Info("bot started", zap.String("username", b.username))
	return handler.Start()
}

// skipRedelivered drops updates Telegram already delivered once. Guard errors
// let the update through; the ledger is idempotent on its own.
func (b *Bot) skipRedelivered(ctx *th.Context, update telego.Update) error {
	fresh, err := b.Guard.MarkProcessed(ctx, update.UpdateID)
	if err != nil {
		b.Logger.Warn("update guard unavailable", zap.Int("update_id", update.UpdateID), zap.Error(err))
		return ctx.Next(update)
	}
	if !fresh {
		b.Logger.Debug("skipping redelivered update", zap.Int("update_id", update.UpdateID))
		return nil
	}
	return ctx.Next(update)
}

func (b *Bot) requestLogger(userID int64) *zap.Logger {
	return b.Logger.With(zap.String("request_id", uuid.NewString()), zap.Int64("user_id", userID))
}

func (b *Bot) onStart(ctx context.Context, api API, message telego.Message) error {
	if message.From == nil {
		return nil
	}
	userID := message.From.ID
	chatID := message.Chat.ID
	log := b.requestLogger(userID)

	res, err := b.Flow.Start(ctx, userID, startPayload(message.Text))
	if err != nil {
		log.Error("failed to handle start", zap.Error(err))
		_, _ = api.SendMessage(ctx, tu.Message(tu.ID(chatID), "❌ Something went wrong. Please try /start again later."))
		return nil
	}

	if res.Blocked {
		if _, err := api.SendMessage(ctx, joinPrompt(chatID, b.Channels)); err != nil {
			log.Warn("failed to send join prompt", zap.Error(err))
		}
		return nil
	}

	b.Metrics.Registration(res.Registration.FirstContact)
	if att := res.Registration.Attribution; att != nil {
		b.Metrics.Attribution(string(att.Result), att.RewardUnlocked)
	}

	link := referralLink(b.username, userID)
	if _, err := api.SendMessage(ctx, welcomeMessage(chatID, message.From.FirstName, link, res.Progress)); err != nil {
		log.Warn("failed to send welcome message", zap.Error(err))
	}
	if res.Progress.Eligible() {
		if _, err := api.SendMessage(ctx, rewardMessage(chatID, b.RewardLink)); err != nil {
			log.Warn("failed to send reward message", zap.Error(err))
		}
	}
	return nil
}

func (b *Bot) onCheckJoin(ctx context.Context, api API, callback telego.CallbackQuery) error {
	userID := callback.From.ID

	text := "⚠️ Please join all channels to proceed!"
	if b.Flow.CheckJoin(ctx, userID) {
		text = "✅ Thank you for joining! Now use /start to continue."
	}

	_, _ = api.SendMessage(ctx, tu.Message(tu.ID(userID), text))
	_ = api.AnswerCallbackQuery(ctx, tu.CallbackQuery(callback.ID))
	return nil
}

func (b *Bot) onCheckReferrals(ctx context.Context, api API, callback telego.CallbackQuery) error {
	userID := callback.From.ID
	defer func() {
		_ = api.AnswerCallbackQuery(ctx, tu.CallbackQuery(callback.ID))
	}()

	progress, err := b.Flow.CheckReferrals(ctx, userID)
	if err != nil {
		b.requestLogger(userID).Error("failed to load progress", zap.Error(err))
		_, _ = api.SendMessage(ctx, tu.Message(tu.ID(userID), "❌ Could not load your referrals. Please try again later."))
		return nil
	}

	_, _ = api.SendMessage(ctx, progressMessage(userID, progress, b.RewardLink))
	return nil
}

// startPayload returns the deep-link argument of "/start <payload>".
func startPayload(text string) string {
	parts := strings.Fields(text)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}
