package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vi13x/coinbot/internal/command"
	"github.com/vi13x/coinbot/internal/domain"
)

func (b *Bot) Reply(_ context.Context, msg command.Message, text string) error {
	out := tgbotapi.NewMessage(msg.ChatID, text)
	out.ReplyToMessageID = msg.ID
	_, err := b.api.Send(out)
	return err
}

func (b *Bot) Send(_ context.Context, chatID int64, text string) error {
	_, err := b.api.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

// SendFile sends path to the user's private chat, which only works once the
// user has started the bot.
func (b *Bot) SendFile(_ context.Context, user domain.UserID, path string) error {
	id, err := chatID(user)
	if err != nil {
		return err
	}
	_, err = b.api.Send(tgbotapi.NewDocument(id, tgbotapi.FilePath(path)))
	return err
}

// SendToChannel accepts @channelusername or a numeric chat id.
func (b *Bot) SendToChannel(_ context.Context, ref, text string) error {
	var out tgbotapi.MessageConfig
	if strings.HasPrefix(ref, "@") && len(ref) > 1 {
		out = tgbotapi.NewMessageToChannel(ref, text)
	} else if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		out = tgbotapi.NewMessage(id, text)
	} else {
		return command.ErrInvalidChannel
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("empty message for %s", ref)
	}
	_, err := b.api.Send(out)
	if isChatNotFound(err) {
		return command.ErrInvalidChannel
	}
	return err
}

func isChatNotFound(err error) bool {
	var apiErr *tgbotapi.Error
	return errors.As(err, &apiErr) && strings.Contains(strings.ToLower(apiErr.Message), "chat not found")
}

// SendAuditLine posts to the configured log chat; without one it does nothing.
func (b *Bot) SendAuditLine(_ context.Context, text string) error {
	if b.logChat == 0 {
		return nil
	}
	_, err := b.api.Send(tgbotapi.NewMessage(b.logChat, text))
	return err
}

func (b *Bot) member(chat, user int64) (tgbotapi.ChatMember, error) {
	return b.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: chat, UserID: user},
	})
}

func (b *Bot) IsMember(_ context.Context, chat int64, user domain.UserID) (bool, error) {
	id, err := chatID(user)
	if err != nil {
		return false, err
	}
	m, err := b.member(chat, id)
	if err != nil {
		return false, err
	}
	return !m.HasLeft() && !m.WasKicked(), nil
}

// CanModerate reports whether the bot itself may restrict members of chat.
func (b *Bot) CanModerate(_ context.Context, chat int64) (bool, error) {
	m, err := b.member(chat, b.selfID)
	if err != nil {
		return false, err
	}
	return m.IsCreator() || (m.IsAdministrator() && m.CanRestrictMembers), nil
}

func memberConfig(chat int64, user domain.UserID) (tgbotapi.ChatMemberConfig, error) {
	id, err := chatID(user)
	if err != nil {
		return tgbotapi.ChatMemberConfig{}, err
	}
	return tgbotapi.ChatMemberConfig{ChatID: chat, UserID: id}, nil
}

// Kick removes the user but lets them rejoin: Telegram has no kick, so it is
// a ban immediately lifted.
func (b *Bot) Kick(_ context.Context, chat int64, user domain.UserID, reason string) error {
	mc, err := memberConfig(chat, user)
	if err != nil {
		return err
	}
	if _, err := b.api.Request(tgbotapi.BanChatMemberConfig{ChatMemberConfig: mc}); err != nil {
		return err
	}
	_, err = b.api.Request(tgbotapi.UnbanChatMemberConfig{ChatMemberConfig: mc, OnlyIfBanned: true})
	return err
}

func (b *Bot) Ban(_ context.Context, chat int64, user domain.UserID, reason string) error {
	mc, err := memberConfig(chat, user)
	if err != nil {
		return err
	}
	_, err = b.api.Request(tgbotapi.BanChatMemberConfig{ChatMemberConfig: mc})
	return err
}

// Timeout mutes the user until now+d.
func (b *Bot) Timeout(_ context.Context, chat int64, user domain.UserID, d time.Duration, reason string) error {
	mc, err := memberConfig(chat, user)
	if err != nil {
		return err
	}
	_, err = b.api.Request(tgbotapi.RestrictChatMemberConfig{
		ChatMemberConfig: mc,
		UntilDate:        time.Now().Add(d).Unix(),
		Permissions:      &tgbotapi.ChatPermissions{},
	})
	return err
}

// DeleteRecent walks message ids downward from beforeID-1. Telegram has no bulk
// delete and no history listing, so ids that are gone or too old just fail.
func (b *Bot) DeleteRecent(_ context.Context, chat int64, beforeID, n int) (int, error) {
	deleted := 0
	var last error
	for id := beforeID - 1; id > 0 && id >= beforeID-n; id-- {
		if _, err := b.api.Request(tgbotapi.NewDeleteMessage(chat, id)); err != nil {
			last = err
			continue
		}
		deleted++
	}
	if deleted == 0 && last != nil {
		return 0, last
	}
	return deleted, nil
}
