package bot

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"referral-bot/internal/notify"
	"referral-bot/internal/referral"
)

const (
	callbackCheckJoin      = "check_join"
	callbackCheckReferrals = "check_referrals"
)

var markdownEscaper = strings.NewReplacer("_", "", "*", "", "`", "", "[", "", "]", "")

// channelLink turns a -100 prefixed channel id into its t.me/c link.
func channelLink(channelID int64) string {
	id := strconv.FormatInt(channelID, 10)
	if strings.HasPrefix(id, "-100") {
		id = id[4:]
	} else {
		id = strings.TrimPrefix(id, "-")
	}
	return "https://t.me/c/" + id
}

func referralLink(botUsername string, userID int64) string {
	return fmt.Sprintf("https://t.me/%s?start=%d", botUsername, userID)
}

func shareLink(link string) string {
	return "https://t.me/share/url?url=" + url.QueryEscape(link)
}

func progressLine(p referral.Progress) string {
	return fmt.Sprintf("%s (%d/%d)", p.Bar(), p.Count, p.Threshold)
}

func joinPrompt(chatID int64, channels []int64) *telego.SendMessageParams {
	joinRow := make([]telego.InlineKeyboardButton, 0, len(channels))
	for i, id := range channels {
		joinRow = append(joinRow, tu.InlineKeyboardButton(fmt.Sprintf("📌 Join Channel %d", i+1)).WithURL(channelLink(id)))
	}

	keyboard := tu.InlineKeyboard(
		joinRow,
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("✅ Joined!").WithCallbackData(callbackCheckJoin),
		),
	)

	return tu.Message(tu.ID(chatID), "⚠️ Please join the following channels to use the bot:").
		WithReplyMarkup(keyboard)
}

func welcomeMessage(chatID int64, firstName, link string, p referral.Progress) *telego.SendMessageParams {
	text := fmt.Sprintf("👋 Hello *%s*!\n\n"+
		"🌟 *Earn Premium Access!*\n\n"+
		"🔗 *Your Referral Link:*\n`%s`\n\n"+
		"📊 *Progress:* %s",
		markdownEscaper.Replace(firstName), link, progressLine(p))

	keyboard := tu.InlineKeyboard(
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("✅ Check Referrals").WithCallbackData(callbackCheckReferrals),
		),
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("📤 Share Referral Link").WithURL(shareLink(link)),
		),
	)

	return tu.Message(tu.ID(chatID), text).
		WithParseMode(telego.ModeMarkdown).
		WithReplyMarkup(keyboard)
}

func rewardMessage(chatID int64, rewardLink string) *telego.SendMessageParams {
	return tu.Message(tu.ID(chatID), "🎉 Congratulations! You've unlocked Premium Access:").
		WithReplyMarkup(notify.RewardKeyboard(rewardLink))
}

func progressMessage(chatID int64, p referral.Progress, rewardLink string) *telego.SendMessageParams {
	text := "📊 Your Progress: " + progressLine(p)
	msg := tu.Message(tu.ID(chatID), text)
	if p.Eligible() {
		msg.Text += "\n\n🎉 Premium Access unlocked!"
		msg = msg.WithReplyMarkup(notify.RewardKeyboard(rewardLink))
	}
	return msg
}
