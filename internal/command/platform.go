package command

import (
	"context"
	"errors"
	"time"

	"github.com/vi13x/coinbot/internal/domain"
)

// ErrInvalidChannel is returned by SendToChannel for references that do not
// name a reachable chat.
var ErrInvalidChannel = errors.New("invalid channel")

type User struct {
	ID    domain.UserID
	Tag   string
	IsBot bool
}

// Message is one inbound chat message, already normalised by the transport.
type Message struct {
	ID       int
	ChatID   int64
	Author   User
	Text     string
	Mentions []Mention // resolved users in order of appearance
}

// Mention is a resolved user. Start and End are byte offsets of the mention in
// Message.Text; both are zero when the user came from a replied-to message.
type Mention struct {
	User
	Start, End int
}

// Platform is everything the interpreter asks of the chat transport.
type Platform interface {
	Reply(ctx context.Context, msg Message, text string) error
	Send(ctx context.Context, chatID int64, text string) error
	SendFile(ctx context.Context, user domain.UserID, path string) error
	SendToChannel(ctx context.Context, ref, text string) error

	IsMember(ctx context.Context, chatID int64, user domain.UserID) (bool, error)
	CanModerate(ctx context.Context, chatID int64) (bool, error)
	Kick(ctx context.Context, chatID int64, user domain.UserID, reason string) error
	Ban(ctx context.Context, chatID int64, user domain.UserID, reason string) error
	Timeout(ctx context.Context, chatID int64, user domain.UserID, d time.Duration, reason string) error
	// DeleteRecent removes up to n messages sent before beforeID and returns how many went.
	DeleteRecent(ctx context.Context, chatID int64, beforeID, n int) (int, error)
}

type Auditor interface {
	Log(ctx context.Context, kind string, user domain.UserID, text string)
}
