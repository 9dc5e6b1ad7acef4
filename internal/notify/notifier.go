package notify

import (
	"context"
	"fmt"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"go.uber.org/zap"

	"referral-bot/internal/referral"
)

// MessageSender is the slice of *telego.Bot the notifier needs.
type MessageSender interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
}

// FailureRecorder counts undelivered notifications.
type FailureRecorder interface {
	NotificationFailed(kind string)
}

// Notifier sends referral notifications over Telegram. Delivery errors are
// logged and dropped.
type Notifier struct {
	api      MessageSender
	recorder FailureRecorder
	logger   *zap.Logger
}

func NewNotifier(api MessageSender, recorder FailureRecorder, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{api: api, recorder: recorder, logger: logger.Named("notify")}
}

func ProgressText(count, threshold int) string {
	return fmt.Sprintf("🎉 New Referral! Total: %d/%d", count, threshold)
}

func (n *Notifier) SendProgress(ctx context.Context, userID int64, count, threshold int) {
	msg := tu.Message(tu.ID(userID), ProgressText(count, threshold))
	n.send(ctx, referral.NotificationProgress, userID, msg)
}

func (n *Notifier) SendReward(ctx context.Context, userID int64, payload string) {
	msg := tu.Message(tu.ID(userID), "🎉 Congratulations! You've unlocked Premium Access:").
		WithReplyMarkup(RewardKeyboard(payload))
	n.send(ctx, referral.NotificationReward, userID, msg)
}

// RewardKeyboard is the single "Join Premium" button pointing at the reward.
func RewardKeyboard(payload string) *telego.InlineKeyboardMarkup {
	return tu.InlineKeyboard(
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("Join Premium").WithURL(payload),
		),
	)
}

func (n *Notifier) send(ctx context.Context, kind referral.NotificationKind, userID int64, msg *telego.SendMessageParams) {
	if _, err := n.api.SendMessage(ctx, msg); err != nil {
		n.logger.Warn("failed to deliver notification",
			zap.String("kind", string(kind)),
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
		if n.recorder != nil {
			n.recorder.NotificationFailed(string(kind))
		}
		return
	}
	n.logger.Debug("notification sent", zap.String("kind", string(kind)), zap.Int64("user_id", userID))
}

var _ referral.Dispatcher = (*Notifier)(nil)
