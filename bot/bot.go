package bot

import (
	"context"
	"log"
	"strconv"
	"strings"
	"unicode/utf16"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"

	"github.com/vi13x/coinbot/internal/command"
	"github.com/vi13x/coinbot/internal/domain"
)

// API is the part of *tgbotapi.BotAPI the adapter uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetChatMember(config tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Directory maps Telegram usernames to ledger users.
type Directory interface {
	Touch(ctx context.Context, id domain.UserID, username string) error
	Resolve(ctx context.Context, username string) (domain.UserID, error)
}

// Handler consumes normalised messages.
type Handler interface {
	Handle(ctx context.Context, msg command.Message)
}

type Bot struct {
	api     API
	selfID  int64
	dir     Directory
	log     *log.Logger
	logChat int64
	workers int
}

func New(api API, selfID int64, dir Directory, logChat int64, logger *log.Logger) *Bot {
	if logger == nil {
		logger = log.Default()
	}
	return &Bot{api: api, selfID: selfID, dir: dir, log: logger, logChat: logChat, workers: 8}
}

// Run polls updates until ctx is done. Messages are handled concurrently;
// the ledger serializes per user.
func (b *Bot) Run(ctx context.Context, h Handler) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	g := new(errgroup.Group)
	g.SetLimit(b.workers)
	defer g.Wait()

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil || update.Message.From == nil {
				continue
			}
			m := update.Message
			g.Go(func() error {
				h.Handle(ctx, b.normalize(ctx, m))
				return nil
			})
		}
	}
}

func userID(id int64) domain.UserID { return domain.UserID(strconv.FormatInt(id, 10)) }

func chatID(id domain.UserID) (int64, error) { return strconv.ParseInt(string(id), 10, 64) }

func tag(u *tgbotapi.User) string {
	if u.UserName != "" {
		return "@" + u.UserName
	}
	name := u.FirstName
	if u.LastName != "" {
		name += " " + u.LastName
	}
	return name
}

func toUser(u *tgbotapi.User) command.User {
	return command.User{ID: userID(u.ID), Tag: tag(u), IsBot: u.IsBot}
}

// entitySpan converts an entity's UTF-16 offset and length to byte offsets
// into text.
func entitySpan(text string, offset, length int) (start, end int, ok bool) {
	if offset < 0 || length <= 0 {
		return 0, 0, false
	}
	start, end = -1, -1
	units := 0
	for i, r := range text {
		if units == offset {
			start = i
		}
		if units == offset+length {
			end = i
			break
		}
		units += utf16.RuneLen(r)
	}
	if end < 0 && units == offset+length {
		end = len(text)
	}
	if start < 0 || end < 0 {
		return 0, 0, false
	}
	return start, end, true
}

// normalize records the author's username, then resolves mentions in order.
// Text mentions carry the user and @username mentions go through the
// directory. A reply stands in for a mention when there is none.
func (b *Bot) normalize(ctx context.Context, m *tgbotapi.Message) command.Message {
	if m.From.UserName != "" {
		if err := b.dir.Touch(ctx, userID(m.From.ID), m.From.UserName); err != nil {
			b.log.Printf("touch %d: %v", m.From.ID, err)
		}
	}
	msg := command.Message{
		ID:     m.MessageID,
		Author: toUser(m.From),
		Text:   m.Text,
	}
	if m.Chat != nil {
		msg.ChatID = m.Chat.ID
	}
	for _, e := range m.Entities {
		start, end, ok := entitySpan(m.Text, e.Offset, e.Length)
		switch e.Type {
		case "text_mention":
			if e.User == nil {
				continue
			}
			mention := command.Mention{User: toUser(e.User)}
			if ok {
				mention.Start, mention.End = start, end
			}
			msg.Mentions = append(msg.Mentions, mention)
		case "mention":
			if !ok {
				continue
			}
			name := strings.TrimPrefix(m.Text[start:end], "@")
			if name == "" {
				continue
			}
			id, err := b.dir.Resolve(ctx, name)
			if err != nil {
				continue
			}
			msg.Mentions = append(msg.Mentions, command.Mention{
				User:  command.User{ID: id, Tag: "@" + name},
				Start: start,
				End:   end,
			})
		}
	}
	if len(msg.Mentions) == 0 && m.ReplyToMessage != nil && m.ReplyToMessage.From != nil {
		msg.Mentions = append(msg.Mentions, command.Mention{User: toUser(m.ReplyToMessage.From)})
	}
	return msg
}
