// Package command turns prefixed chat lines into economy and admin operations.
package command

import (
	"context"
	"log"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/vi13x/coinbot/internal/audit"
	"github.com/vi13x/coinbot/internal/domain"
	"github.com/vi13x/coinbot/internal/service"
)

type Options struct {
	Prefix  string
	Admins  []string
	BotName string // verbs addressed as verb@BotName are accepted
	Logger  *log.Logger
}

type Interpreter struct {
	econ     *service.Economy
	bank     *service.Bank
	platform Platform
	audit    Auditor
	prefix   string
	botName  string
	admins   map[domain.UserID]bool
	log      *log.Logger
	p        *message.Printer
}

func New(econ *service.Economy, platform Platform, auditor Auditor, opts Options) *Interpreter {
	if opts.Prefix == "" {
		opts.Prefix = "!"
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if auditor == nil {
		auditor = nopAuditor{}
	}
	admins := make(map[domain.UserID]bool, len(opts.Admins))
	for _, a := range opts.Admins {
		admins[domain.UserID(strings.TrimSpace(a))] = true
	}
	return &Interpreter{
		econ:     econ,
		bank:     econ.Bank(),
		platform: platform,
		audit:    auditor,
		prefix:   opts.Prefix,
		botName:  strings.ToLower(strings.TrimPrefix(opts.BotName, "@")),
		admins:   admins,
		log:      opts.Logger,
		p:        message.NewPrinter(language.English),
	}
}

// request is one parsed command line. args holds the arguments with the
// target's mention cut out; raw holds them as typed.
type request struct {
	msg    Message
	verb   string
	args   []string
	raw    []string
	target *User
}

// parse splits a prefixed line into verb and arguments. ok is false for lines
// that are not commands for this bot.
func (in *Interpreter) parse(msg Message) (request, bool) {
	if !strings.HasPrefix(msg.Text, in.prefix) {
		return request{}, false
	}
	body := msg.Text[len(in.prefix):]
	fields := strings.Fields(body)
	if len(fields) == 0 {
		return request{}, false
	}
	verb := strings.ToLower(fields[0])
	if i := strings.IndexByte(verb, '@'); i > 0 {
		if in.botName != "" && verb[i+1:] != in.botName {
			return request{}, false
		}
		verb = verb[:i]
	}
	req := request{msg: msg, verb: verb, args: fields[1:], raw: fields[1:]}
	if len(msg.Mentions) > 0 {
		m := msg.Mentions[0]
		req.target = &m.User
		verbEnd := len(in.prefix) + strings.Index(body, fields[0]) + len(fields[0])
		if m.Start >= verbEnd && m.End > m.Start && m.End <= len(msg.Text) {
			req.args = strings.Fields(msg.Text[verbEnd:m.Start] + " " + msg.Text[m.End:])
		}
	}
	return req, true
}

func (r request) intArg(i int) (int, bool) {
	if i >= len(r.args) {
		return 0, false
	}
	n, err := strconv.Atoi(r.args[i])
	return n, err == nil
}

func (r request) floatArg(i int) (float64, bool) {
	if i >= len(r.args) {
		return 0, false
	}
	f, err := strconv.ParseFloat(r.args[i], 64)
	return f, err == nil
}

func (in *Interpreter) isAdmin(u User) bool { return in.admins[u.ID] }

// Handle runs the passive chat reward for every non-bot message, then at most
// one command.
func (in *Interpreter) Handle(ctx context.Context, msg Message) {
	if msg.Author.IsBot {
		return
	}
	in.chatReward(ctx, msg)

	req, ok := in.parse(msg)
	if !ok {
		return
	}
	if handler, ok := in.economyVerbs()[req.verb]; ok {
		handler(ctx, req)
		return
	}
	if handler, ok := in.adminVerbs()[req.verb]; ok {
		if !in.isAdmin(msg.Author) {
			return
		}
		handler(ctx, req)
	}
}

func (in *Interpreter) chatReward(ctx context.Context, msg Message) {
	ok, bal, err := in.econ.ChatReward(ctx, msg.Author.ID)
	if err != nil {
		in.log.Printf("chat reward %s: %v", msg.Author.ID, err)
		return
	}
	if ok {
		in.audit.Log(ctx, audit.KindChat, msg.Author.ID,
			in.p.Sprintf("💬 %s earned %v coins (Balance: %.2f)", msg.Author.Tag, in.econ.Tuning().ChatReward, bal))
	}
}

type nopAuditor struct{}

func (nopAuditor) Log(context.Context, string, domain.UserID, string) {}

type handler func(ctx context.Context, req request)

func (in *Interpreter) economyVerbs() map[string]handler {
	return map[string]handler{
		"balance":  in.balance,
		"bal":      in.balance,
		"balall":   in.balall,
		"pay":      in.pay,
		"deposit":  in.deposit,
		"withdraw": in.withdraw,
		"gamble":   in.gamble,
		"mystery":  in.mystery,
		"buy":      in.buy,
		"work":     in.work,
		"help":     in.help,
	}
}

func (in *Interpreter) adminVerbs() map[string]handler {
	return map[string]handler{
		"give":       in.give,
		"giveall":    in.giveAll,
		"remove":     in.remove,
		"removeall":  in.removeAll,
		"send":       in.sendChannel,
		"kick":       in.kick,
		"ban":        in.ban,
		"timeout":    in.timeout,
		"clear":      in.clear,
		"boost":      in.boost,
		"multiplier": in.multiplier,
	}
}

func (in *Interpreter) reply(ctx context.Context, req request, text string) {
	if err := in.platform.Reply(ctx, req.msg, text); err != nil {
		in.log.Printf("reply to %d: %v", req.msg.ID, err)
	}
}

func (in *Interpreter) say(ctx context.Context, req request, text string) {
	if err := in.platform.Send(ctx, req.msg.ChatID, text); err != nil {
		in.log.Printf("send to %d: %v", req.msg.ChatID, err)
	}
}

func (in *Interpreter) usage(ctx context.Context, req request, form string) {
	in.reply(ctx, req, "❌ Usage: "+in.prefix+form)
}

// fail reports an unexpected (storage) error.
func (in *Interpreter) fail(ctx context.Context, req request, err error) {
	in.log.Printf("%s by %s: %v", req.verb, req.msg.Author.ID, err)
	in.reply(ctx, req, "❌ Something went wrong, try again later.")
}
