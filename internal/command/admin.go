package command

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/vi13x/coinbot/internal/audit"
)

const maxClear = 100

func (in *Interpreter) give(ctx context.Context, req request) {
	amount, ok := req.intArg(0)
	if req.target == nil || !ok || amount < 1 {
		in.usage(ctx, req, "give @user <amount>")
		return
	}
	if _, err := in.bank.Give(ctx, req.target.ID, float64(amount)); err != nil {
		in.fail(ctx, req, err)
		return
	}
	in.adminAudit(ctx, req, in.p.Sprintf("gave %d coins to %s", amount, req.target.Tag))
	in.reply(ctx, req, in.p.Sprintf("✅ Gave %d coins to %s", amount, req.target.Tag))
}

func (in *Interpreter) giveAll(ctx context.Context, req request) {
	amount, ok := req.intArg(0)
	if !ok || amount < 1 {
		in.usage(ctx, req, "giveall <amount>")
		return
	}
	n, err := in.bank.GiveAll(ctx, float64(amount))
	if err != nil {
		in.fail(ctx, req, err)
		return
	}
	in.adminAudit(ctx, req, in.p.Sprintf("gave %d coins to %d accounts", amount, n))
	in.reply(ctx, req, in.p.Sprintf("✅ Gave %d coins to everyone", amount))
}

func (in *Interpreter) remove(ctx context.Context, req request) {
	amount, ok := req.intArg(0)
	if req.target == nil || !ok || amount < 1 {
		in.usage(ctx, req, "remove @user <amount>")
		return
	}
	if _, err := in.bank.Remove(ctx, req.target.ID, float64(amount)); err != nil {
		in.fail(ctx, req, err)
		return
	}
	in.adminAudit(ctx, req, in.p.Sprintf("removed %d coins from %s", amount, req.target.Tag))
	in.reply(ctx, req, in.p.Sprintf("✅ Removed %d coins from %s", amount, req.target.Tag))
}

func (in *Interpreter) removeAll(ctx context.Context, req request) {
	amount, ok := req.intArg(0)
	if !ok || amount < 1 {
		in.usage(ctx, req, "removeall <amount>")
		return
	}
	n, err := in.bank.RemoveAll(ctx, float64(amount))
	if err != nil {
		in.fail(ctx, req, err)
		return
	}
	in.adminAudit(ctx, req, in.p.Sprintf("removed %d coins from %d accounts", amount, n))
	in.reply(ctx, req, in.p.Sprintf("✅ Removed %d coins from everyone", amount))
}

func (in *Interpreter) sendChannel(ctx context.Context, req request) {
	if len(req.raw) == 0 {
		in.usage(ctx, req, "send @channel <message>")
		return
	}
	text := strings.Join(req.raw[1:], " ")
	err := in.platform.SendToChannel(ctx, req.raw[0], text)
	switch {
	case errors.Is(err, ErrInvalidChannel):
		in.reply(ctx, req, "❌ Invalid channel.")
	case err != nil:
		in.log.Printf("send to %s: %v", req.raw[0], err)
		in.reply(ctx, req, "❌ Message could not be sent.")
	default:
		in.reply(ctx, req, "✅ Message sent.")
	}
}

// reason joins the arguments after the first skip ones.
func (r request) reason(skip int) string {
	if len(r.args) <= skip {
		return "No reason"
	}
	if s := strings.Join(r.args[skip:], " "); s != "" {
		return s
	}
	return "No reason"
}

// moderatable runs the member and permission checks shared by kick and ban.
func (in *Interpreter) moderatable(ctx context.Context, req request, verb string) bool {
	member, err := in.platform.IsMember(ctx, req.msg.ChatID, req.target.ID)
	if err != nil {
		in.log.Printf("%s: member lookup %s: %v", verb, req.target.ID, err)
	}
	if !member {
		in.reply(ctx, req, "❌ User not in chat")
		return false
	}
	can, err := in.platform.CanModerate(ctx, req.msg.ChatID)
	if err != nil {
		in.log.Printf("%s: permission lookup: %v", verb, err)
	}
	if !can {
		in.reply(ctx, req, "❌ I cannot "+verb+".")
		return false
	}
	return true
}

func (in *Interpreter) kick(ctx context.Context, req request) {
	if req.target == nil {
		in.usage(ctx, req, "kick @user <reason>")
		return
	}
	if !in.moderatable(ctx, req, "kick") {
		return
	}
	if err := in.platform.Kick(ctx, req.msg.ChatID, req.target.ID, req.reason(0)); err != nil {
		in.log.Printf("kick %s: %v", req.target.ID, err)
		in.reply(ctx, req, "❌ Kick failed.")
		return
	}
	in.adminAudit(ctx, req, "kicked "+req.target.Tag+": "+req.reason(0))
	in.reply(ctx, req, "✅ Kicked "+req.target.Tag)
}

func (in *Interpreter) ban(ctx context.Context, req request) {
	if req.target == nil {
		in.usage(ctx, req, "ban @user <reason>")
		return
	}
	if !in.moderatable(ctx, req, "ban") {
		return
	}
	if err := in.platform.Ban(ctx, req.msg.ChatID, req.target.ID, req.reason(0)); err != nil {
		in.log.Printf("ban %s: %v", req.target.ID, err)
		in.reply(ctx, req, "❌ Ban failed.")
		return
	}
	in.adminAudit(ctx, req, "banned "+req.target.Tag+": "+req.reason(0))
	in.reply(ctx, req, "✅ Banned "+req.target.Tag)
}

func (in *Interpreter) timeout(ctx context.Context, req request) {
	minutes, ok := req.intArg(0)
	if req.target == nil || !ok || minutes < 1 {
		in.usage(ctx, req, "timeout @user <minutes> <reason>")
		return
	}
	member, err := in.platform.IsMember(ctx, req.msg.ChatID, req.target.ID)
	if err != nil {
		in.log.Printf("timeout: member lookup %s: %v", req.target.ID, err)
	}
	if !member {
		in.reply(ctx, req, "❌ User not in chat")
		return
	}
	d := time.Duration(minutes) * time.Minute
	if err := in.platform.Timeout(ctx, req.msg.ChatID, req.target.ID, d, req.reason(1)); err != nil {
		in.log.Printf("timeout %s: %v", req.target.ID, err)
		in.reply(ctx, req, "❌ Timeout failed.")
		return
	}
	in.reply(ctx, req, in.p.Sprintf("✅ Timed out %s for %d minutes", req.target.Tag, minutes))
}

func (in *Interpreter) clear(ctx context.Context, req request) {
	n, ok := req.intArg(0)
	if !ok || n < 1 {
		in.usage(ctx, req, "clear <1-100>")
		return
	}
	n = min(n, maxClear)
	deleted, err := in.platform.DeleteRecent(ctx, req.msg.ChatID, req.msg.ID, n)
	if err != nil {
		in.log.Printf("clear in %d: %d of %d deleted: %v", req.msg.ChatID, deleted, n, err)
	}
	in.reply(ctx, req, in.p.Sprintf("✅ Cleared %d messages", n))
}

func (in *Interpreter) boost(ctx context.Context, req request) {
	mult, ok1 := req.floatArg(0)
	minutes, ok2 := req.intArg(1)
	if req.target == nil || !ok1 || !ok2 || mult <= 0 || minutes < 1 {
		in.usage(ctx, req, "boost @user <multiplier> <minutes>")
		return
	}
	if _, err := in.bank.SetBoost(req.target.ID, mult, time.Duration(minutes)*time.Minute); err != nil {
		in.fail(ctx, req, err)
		return
	}
	in.adminAudit(ctx, req, in.p.Sprintf("boosted %s x%v for %d minutes", req.target.Tag, mult, minutes))
	in.reply(ctx, req, in.p.Sprintf("✅ Boosted %s x%v for %d minutes", req.target.Tag, mult, minutes))
}

func (in *Interpreter) multiplier(ctx context.Context, req request) {
	mult, ok := req.floatArg(0)
	if req.target == nil || !ok || mult <= 0 {
		in.usage(ctx, req, "multiplier @user <value>")
		return
	}
	if err := in.bank.SetMultiplier(ctx, req.target.ID, mult); err != nil {
		in.fail(ctx, req, err)
		return
	}
	in.adminAudit(ctx, req, in.p.Sprintf("set %s multiplier to %v", req.target.Tag, mult))
	in.reply(ctx, req, in.p.Sprintf("✅ Set %s multiplier to %v", req.target.Tag, mult))
}

func (in *Interpreter) adminAudit(ctx context.Context, req request, what string) {
	in.audit.Log(ctx, audit.KindAdmin, req.msg.Author.ID, "🛠 "+req.msg.Author.Tag+" "+what)
}
