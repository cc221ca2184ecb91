package service

import (
	"context"

	"github.com/vi13x/coinbot/internal/config"
	"github.com/vi13x/coinbot/internal/cooldown"
	"github.com/vi13x/coinbot/internal/domain"
	"github.com/vi13x/coinbot/internal/shop"
)

// Economy runs the cooldown-gated and randomized commands on top of Bank.
type Economy struct {
	bank      *Bank
	tune      config.Economy
	cooldowns *cooldown.Tracker
	catalog   *shop.Catalog
	payloads  shop.PayloadSource
	rng       Rand
}

func NewEconomy(bank *Bank, tune config.Economy, cooldowns *cooldown.Tracker, catalog *shop.Catalog, payloads shop.PayloadSource, rng Rand) *Economy {
	if cooldowns == nil {
		cooldowns = cooldown.NewTracker()
	}
	if rng == nil {
		rng = SystemRand()
	}
	return &Economy{bank: bank, tune: tune, cooldowns: cooldowns, catalog: catalog, payloads: payloads, rng: rng}
}

func (e *Economy) Bank() *Bank { return e.bank }

func (e *Economy) Catalog() *shop.Catalog { return e.catalog }

func (e *Economy) Tuning() config.Economy { return e.tune }

// ChatReward credits the passive chat reward when the chat cooldown allows it.
// The cooldown is recorded on every accepted message.
func (e *Economy) ChatReward(ctx context.Context, id domain.UserID) (bool, float64, error) {
	ok, _ := e.cooldowns.TryFire(id, domain.ActionChat, e.tune.ChatCooldown, e.bank.now())
	if !ok {
		return false, 0, nil
	}
	bal, err := e.bank.AddCoins(ctx, id, e.tune.ChatReward)
	return err == nil, bal, err
}

// Work pays Min + [0, Span) coins, multiplier-scaled, once per work cooldown.
func (e *Economy) Work(ctx context.Context, id domain.UserID) (int, float64, error) {
	defer e.bank.lock(id)()
	now := e.bank.now()
	if ok, left := e.cooldowns.Check(id, domain.ActionWork, e.tune.Work.Cooldown, now); !ok {
		return 0, 0, domain.Cooldown(domain.ActionWork, left)
	}
	acc, err := e.bank.load(ctx, id)
	if err != nil {
		return 0, 0, err
	}
	earned := e.tune.Work.Min + e.rng.IntN(e.tune.Work.Span)
	bal, err := e.bank.addCoinsLocked(ctx, &acc, float64(earned))
	if err != nil {
		return 0, 0, err
	}
	e.cooldowns.Fire(id, domain.ActionWork, now)
	return earned, bal, nil
}

type GambleResult struct {
	Won     bool
	Amount  float64 // payout on a win, the bet on a loss
	Balance float64
}

// Gamble checks the cooldown, then the bet range, then funds. The cooldown is
// recorded only when the bet was actually settled.
func (e *Economy) Gamble(ctx context.Context, id domain.UserID, bet int) (GambleResult, error) {
	defer e.bank.lock(id)()
	now := e.bank.now()
	g := e.tune.Gamble
	if ok, left := e.cooldowns.Check(id, domain.ActionGamble, g.Cooldown, now); !ok {
		return GambleResult{}, domain.Cooldown(domain.ActionGamble, left)
	}
	if bet < g.MinBet || bet > g.MaxBet {
		return GambleResult{}, domain.Validation("bet out of range")
	}
	acc, err := e.bank.load(ctx, id)
	if err != nil {
		return GambleResult{}, err
	}
	if acc.Balance < float64(bet) {
		return GambleResult{}, domain.ErrInsufficientFunds
	}

	var res GambleResult
	if e.rng.Float64() < g.WinChance {
		res.Won = true
		res.Amount = float64(bet) * g.Payout
		res.Balance, err = e.bank.addCoinsLocked(ctx, &acc, res.Amount)
	} else {
		res.Amount = float64(bet)
		res.Balance, err = e.bank.spendLocked(ctx, &acc, res.Amount)
	}
	if err != nil {
		return GambleResult{}, err
	}
	e.cooldowns.Fire(id, domain.ActionGamble, now)
	return res, nil
}

// Purchase is the outcome of buying a catalog item. Debit and stock
// reservation form the transaction; Delivery only reports what was attempted.
type Purchase struct {
	Item     domain.ShopItem
	Balance  float64
	Delivery shop.Report
}

// Buy reserves one unit and debits the price under the buyer's lock, then
// fans the payload out to sender. An empty payload is not refunded, but its
// unit goes back into stock.
func (e *Economy) Buy(ctx context.Context, id domain.UserID, itemID string, sender shop.FileSender) (Purchase, error) {
	item, ok := e.catalog.Lookup(itemID)
	if !ok {
		return Purchase{}, domain.ErrItemNotFound
	}
	unlock := e.bank.lock(id)
	acc, err := e.bank.load(ctx, id)
	if err != nil {
		unlock()
		return Purchase{}, err
	}
	if acc.Balance < item.Price {
		unlock()
		return Purchase{Item: item}, domain.ErrInsufficientFunds
	}
	if item, err = e.catalog.Reserve(item.ID); err != nil {
		unlock()
		return Purchase{Item: item}, err
	}
	bal, err := e.bank.spendLocked(ctx, &acc, item.Price)
	unlock()
	if err != nil {
		e.catalog.Release(item.ID)
		return Purchase{Item: item}, err
	}
	p := Purchase{Item: item, Balance: bal, Delivery: e.deliver(ctx, id, item, sender)}
	if p.Delivery.NoPayload() {
		e.catalog.Release(item.ID)
		p.Item.Stock++
	}
	return p, nil
}

func (e *Economy) deliver(ctx context.Context, id domain.UserID, item domain.ShopItem, sender shop.FileSender) shop.Report {
	if e.payloads == nil || sender == nil {
		return shop.Report{}
	}
	files, err := e.payloads.Files(item.ID)
	if err != nil {
		// an unreadable folder is reported the same way as an empty one
		return shop.Report{}
	}
	return shop.Deliver(ctx, sender, id, files)
}

type MysteryResult struct {
	// Item is set when the draw picked a catalog item.
	Item       *domain.ShopItem
	OutOfStock bool
	Delivery   shop.Report
	Coins      int
	Balance    float64
}

// Mystery charges the fixed cost, then either hands out a random catalog item
// (subject to its stock, not its price) or a coin reward. The cost is kept
// even when the drawn item is out of stock.
func (e *Economy) Mystery(ctx context.Context, id domain.UserID, sender shop.FileSender) (MysteryResult, error) {
	m := e.tune.Mystery
	unlock := e.bank.lock(id)
	acc, err := e.bank.load(ctx, id)
	if err != nil {
		unlock()
		return MysteryResult{}, err
	}
	if acc.Balance < m.Cost {
		unlock()
		return MysteryResult{}, domain.ErrInsufficientFunds
	}
	var res MysteryResult
	if res.Balance, err = e.bank.spendLocked(ctx, &acc, m.Cost); err != nil {
		unlock()
		return MysteryResult{}, err
	}

	if n := e.catalog.Len(); n > 0 && e.rng.Float64() < m.ItemChance {
		picked := e.catalog.At(e.rng.IntN(n))
		unlock()
		item, err := e.catalog.Reserve(picked.ID)
		if err != nil {
			picked.Stock = 0
			res.Item = &picked
			res.OutOfStock = true
			return res, nil
		}
		res.Delivery = e.deliver(ctx, id, item, sender)
		if res.Delivery.NoPayload() {
			e.catalog.Release(item.ID)
			item.Stock++
		}
		res.Item = &item
		return res, nil
	}

	res.Coins = m.CoinMin + e.rng.IntN(m.CoinSpan)
	res.Balance, err = e.bank.addCoinsLocked(ctx, &acc, float64(res.Coins))
	unlock()
	return res, err
}
