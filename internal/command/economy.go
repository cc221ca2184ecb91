package command

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/vi13x/coinbot/internal/audit"
	"github.com/vi13x/coinbot/internal/domain"
	"github.com/vi13x/coinbot/internal/shop"
)

// balall output is split once a chunk grows past this many bytes.
const balallChunk = 1800

func (in *Interpreter) balance(ctx context.Context, req request) {
	who := req.msg.Author
	switch {
	case req.target != nil:
		who = *req.target
	case len(req.args) > 0 && strings.HasPrefix(req.args[0], "@"):
		in.reply(ctx, req, "❌ Unknown user "+req.args[0])
		return
	}
	acc, err := in.bank.Account(ctx, who.ID)
	if err != nil {
		in.fail(ctx, req, err)
		return
	}
	in.reply(ctx, req, in.p.Sprintf("💰 %s has %.2f coins, Bank: %.2f", who.Tag, acc.Balance, acc.Bank))
}

func (in *Interpreter) balall(ctx context.Context, req request) {
	accs, err := in.bank.Accounts(ctx)
	if err != nil {
		in.fail(ctx, req, err)
		return
	}
	var b strings.Builder
	b.WriteString("📊 All balances:\n")
	for _, a := range accs {
		b.WriteString(in.p.Sprintf("%s: %.2f coins, Bank: %.2f\n", accountTag(a), a.Balance, a.Bank))
		if b.Len() > balallChunk {
			in.say(ctx, req, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		in.say(ctx, req, b.String())
	}
}

func accountTag(a domain.Account) string {
	if a.Username != "" {
		return "@" + a.Username
	}
	return "user " + string(a.ID)
}

func (in *Interpreter) pay(ctx context.Context, req request) {
	amount, ok := req.intArg(0)
	if req.target == nil || !ok || amount < 1 {
		in.usage(ctx, req, "pay @user <amount>")
		return
	}
	if req.target.ID == req.msg.Author.ID {
		in.reply(ctx, req, "❌ You cannot pay yourself.")
		return
	}
	err := in.bank.Transfer(ctx, req.msg.Author.ID, req.target.ID, float64(amount))
	switch {
	case errors.Is(err, domain.ErrInsufficientFunds):
		in.reply(ctx, req, "❌ Not enough coins.")
	case err != nil:
		in.fail(ctx, req, err)
	default:
		in.audit.Log(ctx, audit.KindPay, req.msg.Author.ID,
			in.p.Sprintf("💰 %s paid %d coins to %s", req.msg.Author.Tag, amount, req.target.Tag))
		in.reply(ctx, req, in.p.Sprintf("✅ Paid %d coins to %s", amount, req.target.Tag))
	}
}

func (in *Interpreter) deposit(ctx context.Context, req request) {
	amount, ok := req.intArg(0)
	if !ok || amount < 1 {
		in.usage(ctx, req, "deposit <amount>")
		return
	}
	_, err := in.bank.Deposit(ctx, req.msg.Author.ID, float64(amount))
	switch {
	case errors.Is(err, domain.ErrInsufficientFunds):
		in.reply(ctx, req, "❌ Not enough coins.")
	case err != nil:
		in.fail(ctx, req, err)
	default:
		in.audit.Log(ctx, audit.KindDeposit, req.msg.Author.ID,
			in.p.Sprintf("💰 %s deposited %d coins to bank", req.msg.Author.Tag, amount))
		in.reply(ctx, req, in.p.Sprintf("✅ Deposited %d coins to your bank", amount))
	}
}

func (in *Interpreter) withdraw(ctx context.Context, req request) {
	amount, ok := req.intArg(0)
	if !ok || amount < 1 {
		in.usage(ctx, req, "withdraw <amount>")
		return
	}
	_, err := in.bank.Withdraw(ctx, req.msg.Author.ID, float64(amount))
	switch {
	case errors.Is(err, domain.ErrInsufficientBank):
		in.reply(ctx, req, "❌ Not enough in bank.")
	case err != nil:
		in.fail(ctx, req, err)
	default:
		in.audit.Log(ctx, audit.KindWithdraw, req.msg.Author.ID,
			in.p.Sprintf("💰 %s withdrew %d coins from bank", req.msg.Author.Tag, amount))
		in.reply(ctx, req, in.p.Sprintf("✅ Withdrew %d coins from your bank", amount))
	}
}

func (in *Interpreter) gamble(ctx context.Context, req request) {
	bet, ok := req.intArg(0)
	if !ok {
		// still goes through the service so the cooldown is reported first
		bet = -1
	}
	res, err := in.econ.Gamble(ctx, req.msg.Author.ID, bet)
	var de *domain.Error
	switch {
	case errors.As(err, &de) && de.Code == domain.CodeCooldownActive:
		in.reply(ctx, req, in.p.Sprintf("❌ Wait %ds before gambling.", int(math.Ceil(de.Remaining.Seconds()))))
	case errors.Is(err, domain.ErrValidation):
		g := in.econ.Tuning().Gamble
		in.reply(ctx, req, in.p.Sprintf("❌ Bet must be %d-%d coins.", g.MinBet, g.MaxBet))
	case errors.Is(err, domain.ErrInsufficientFunds):
		in.reply(ctx, req, "❌ Not enough coins.")
	case err != nil:
		in.fail(ctx, req, err)
	case res.Won:
		in.reply(ctx, req, in.p.Sprintf("🎉 You won %v coins!", res.Amount))
	default:
		in.reply(ctx, req, in.p.Sprintf("💀 You lost %v coins.", res.Amount))
	}
}

func (in *Interpreter) mystery(ctx context.Context, req request) {
	res, err := in.econ.Mystery(ctx, req.msg.Author.ID, in.platform)
	switch {
	case errors.Is(err, domain.ErrInsufficientFunds):
		in.reply(ctx, req, "❌ Not enough coins.")
		return
	case err != nil:
		in.fail(ctx, req, err)
		return
	}
	if res.Item == nil {
		in.audit.Log(ctx, audit.KindMystery, req.msg.Author.ID,
			in.p.Sprintf("🎲 %s opened a mystery box and got %d coins", req.msg.Author.Tag, res.Coins))
		in.reply(ctx, req, in.p.Sprintf("💰 Mystery gave %d coins.", res.Coins))
		return
	}
	if res.OutOfStock {
		in.reply(ctx, req, in.p.Sprintf("❌ %s is out of stock.", res.Item.Name))
		return
	}
	in.audit.Log(ctx, audit.KindMystery, req.msg.Author.ID,
		in.p.Sprintf("🎲 %s opened a mystery box and got %s", req.msg.Author.Tag, res.Item.Name))
	in.deliveryNotice(ctx, req, *res.Item, res.Delivery)
	in.reply(ctx, req, in.p.Sprintf("🎁 Mystery gave %s", res.Item.Name))
}

func (in *Interpreter) buy(ctx context.Context, req request) {
	if len(req.args) == 0 {
		in.reply(ctx, req, "❌ Provide an item ID.")
		return
	}
	p, err := in.econ.Buy(ctx, req.msg.Author.ID, req.args[0], in.platform)
	switch {
	case errors.Is(err, domain.ErrItemNotFound):
		in.reply(ctx, req, "❌ Item not found.")
		return
	case errors.Is(err, domain.ErrInsufficientFunds):
		in.reply(ctx, req, "❌ Not enough coins.")
		return
	case errors.Is(err, domain.ErrOutOfStock):
		in.say(ctx, req, in.p.Sprintf("❌ %s is out of stock.", p.Item.Name))
		return
	case err != nil:
		in.fail(ctx, req, err)
		return
	}
	in.audit.Log(ctx, audit.KindPurchase, req.msg.Author.ID,
		in.p.Sprintf("%s purchased %s for %v coins.", req.msg.Author.Tag, p.Item.Name, p.Item.Price))
	in.deliveryNotice(ctx, req, p.Item, p.Delivery)
}

// deliveryNotice announces a delivery attempt in the chat. Individual file
// failures are only logged.
func (in *Interpreter) deliveryNotice(ctx context.Context, req request, item domain.ShopItem, r shop.Report) {
	if r.NoPayload() {
		in.say(ctx, req, in.noPayloadText())
		return
	}
	if r.Failed > 0 {
		in.log.Printf("delivery of %s to %s: %d of %d files failed", item.ID, req.msg.Author.ID, r.Failed, r.Files)
	}
	in.say(ctx, req, in.p.Sprintf("✅ Delivered %s to %s", item.Name, req.msg.Author.Tag))
}

func (in *Interpreter) noPayloadText() string {
	ext := strings.ToUpper(strings.TrimPrefix(in.econ.Tuning().PayloadExt, "."))
	if ext == "" {
		return "❌ No files to deliver."
	}
	return "❌ No " + ext + " files to deliver."
}

func (in *Interpreter) work(ctx context.Context, req request) {
	earned, _, err := in.econ.Work(ctx, req.msg.Author.ID)
	switch {
	case errors.Is(err, domain.ErrCooldownActive):
		in.reply(ctx, req, "❌ Work cooldown "+humanDuration(in.econ.Tuning().Work.Cooldown)+".")
	case err != nil:
		in.fail(ctx, req, err)
	default:
		in.reply(ctx, req, in.p.Sprintf("💼 You worked and earned %d coins.", earned))
	}
}

func (in *Interpreter) help(ctx context.Context, req request) {
	in.say(ctx, req, helpText(in.prefix))
}
