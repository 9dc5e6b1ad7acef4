package gate

import (
	"context"
	"fmt"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

// ChatMemberGetter is the slice of *telego.Bot the oracle needs.
type ChatMemberGetter interface {
	GetChatMember(ctx context.Context, params *telego.GetChatMemberParams) (telego.ChatMember, error)
}

// TelegramOracle asks the Bot API for a user's status in a channel. The bot
// must be an administrator of every channel it checks.
type TelegramOracle struct {
	api ChatMemberGetter
}

func NewTelegramOracle(api ChatMemberGetter) *TelegramOracle {
	return &TelegramOracle{api: api}
}

func (o *TelegramOracle) CheckMembership(ctx context.Context, channelID, userID int64) (Status, error) {
	member, err := o.api.GetChatMember(ctx, &telego.GetChatMemberParams{
		ChatID: tu.ID(channelID),
		UserID: userID,
	})
	if err != nil {
		return StatusOther, fmt.Errorf("get chat member %d in %d: %w", userID, channelID, err)
	}
	if member == nil {
		return StatusOther, fmt.Errorf("get chat member %d in %d: empty response", userID, channelID)
	}
	return statusFromTelegram(member.MemberStatus()), nil
}

func statusFromTelegram(status string) Status {
	switch status {
	case telego.MemberStatusCreator:
		return StatusCreator
	case telego.MemberStatusAdministrator:
		return StatusAdministrator
	case telego.MemberStatusMember:
		return StatusMember
	default:
		// restricted, left, kicked
		return StatusOther
	}
}
