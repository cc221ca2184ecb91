// Package audit publishes human-readable economy events. Every sink is best
// effort: a failed send is logged and dropped, never returned to the caller.
package audit

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/vi13x/coinbot/internal/domain"
)

// Event kinds.
const (
	KindChat     = "chat"
	KindPay      = "pay"
	KindDeposit  = "deposit"
	KindWithdraw = "withdraw"
	KindPurchase = "purchase"
	KindMystery  = "mystery"
	KindAdmin    = "admin"
)

type Event struct {
	ID   string        `json:"id"`
	At   time.Time     `json:"at"`
	Kind string        `json:"kind"`
	User domain.UserID `json:"user,omitempty"`
	Text string        `json:"text"`
}

// ChannelSink posts a line to the designated log chat.
type ChannelSink interface {
	SendAuditLine(ctx context.Context, text string) error
}

type Logger struct {
	channel ChannelSink
	archive *Archive
	log     *log.Logger
	now     func() time.Time
}

// New builds a Logger. channel and archive may be nil.
func New(channel ChannelSink, archive *Archive, logger *log.Logger) *Logger {
	if logger == nil {
		logger = log.Default()
	}
	return &Logger{channel: channel, archive: archive, log: logger, now: time.Now}
}

func (l *Logger) Log(ctx context.Context, kind string, user domain.UserID, text string) {
	ev := Event{ID: uuid.NewString(), At: l.now().UTC(), Kind: kind, User: user, Text: text}
	if l.channel != nil {
		if err := l.channel.SendAuditLine(ctx, text); err != nil {
			l.log.Printf("audit: channel send %s: %v", ev.ID, err)
		}
	}
	if l.archive != nil {
		if err := l.archive.Write(ev); err != nil {
			l.log.Printf("audit: archive %s: %v", ev.ID, err)
		}
	}
}

func (l *Logger) Close() error {
	if l.archive == nil {
		return nil
	}
	return l.archive.Close()
}
