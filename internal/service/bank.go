package service

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/vi13x/coinbot/internal/boost"
	"github.com/vi13x/coinbot/internal/domain"
	"github.com/vi13x/coinbot/internal/storage"
)

// Repository is the durable ledger. Every Put is write-through.
type Repository interface {
	Account(ctx context.Context, id domain.UserID) (domain.Account, error)
	AccountByUsername(ctx context.Context, username string) (domain.Account, error)
	Accounts(ctx context.Context) ([]domain.Account, error)
	PutBalance(ctx context.Context, id domain.UserID, coins float64) error
	PutBank(ctx context.Context, id domain.UserID, bank float64) error
	PutMultiplier(ctx context.Context, id domain.UserID, multiplier float64) error
	PutUsername(ctx context.Context, id domain.UserID, username string) error
	Close() error
}

const lockStripes = 64

// Bank owns every balance mutation. Mutations of one user are serialized on a
// striped mutex, so read-modify-write cycles never lose updates.
type Bank struct {
	store       Repository
	boosts      *boost.Table
	now         func() time.Time
	scaleDebits bool

	locks [lockStripes]sync.Mutex
}

type Option func(*Bank)

// WithClock replaces time.Now for boost expiry checks.
func WithClock(now func() time.Time) Option {
	return func(b *Bank) { b.now = now }
}

// WithScaledDebits makes spending multiplier-scaled like rewards.
func WithScaledDebits(on bool) Option {
	return func(b *Bank) { b.scaleDebits = on }
}

func NewBank(store Repository, boosts *boost.Table, opts ...Option) *Bank {
	if boosts == nil {
		boosts = boost.NewTable()
	}
	b := &Bank{store: store, boosts: boosts, now: time.Now}
	for _, o := range opts {
		o(b)
	}
	return b
}

func (b *Bank) Now() time.Time { return b.now() }

func stripe(id domain.UserID) int {
	h := fnv.New32a()
	h.Write([]byte(id))
	return int(h.Sum32() % lockStripes)
}

func (b *Bank) lock(id domain.UserID) func() {
	m := &b.locks[stripe(id)]
	m.Lock()
	return m.Unlock
}

// lockPair locks two users in stripe order.
func (b *Bank) lockPair(x, y domain.UserID) func() {
	i, j := stripe(x), stripe(y)
	if i == j {
		b.locks[i].Lock()
		return b.locks[i].Unlock
	}
	if i > j {
		i, j = j, i
	}
	b.locks[i].Lock()
	b.locks[j].Lock()
	return func() {
		b.locks[j].Unlock()
		b.locks[i].Unlock()
	}
}

// load returns the stored record, or the implicit zero record for unknown users.
func (b *Bank) load(ctx context.Context, id domain.UserID) (domain.Account, error) {
	acc, err := b.store.Account(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return domain.NewAccount(id), nil
	}
	return acc, err
}

func (b *Bank) Account(ctx context.Context, id domain.UserID) (domain.Account, error) {
	return b.load(ctx, id)
}

func (b *Bank) Accounts(ctx context.Context) ([]domain.Account, error) {
	return b.store.Accounts(ctx)
}

func (b *Bank) GetBalance(ctx context.Context, id domain.UserID) (float64, error) {
	acc, err := b.load(ctx, id)
	return acc.Balance, err
}

func (b *Bank) GetBank(ctx context.Context, id domain.UserID) (float64, error) {
	acc, err := b.load(ctx, id)
	return acc.Bank, err
}

// SetBalance stores amount, negative values clamp to zero.
func (b *Bank) SetBalance(ctx context.Context, id domain.UserID, amount float64) error {
	defer b.lock(id)()
	return b.store.PutBalance(ctx, id, domain.ClampZero(amount))
}

// EffectiveMultiplier is the persisted multiplier times any active boost.
func (b *Bank) EffectiveMultiplier(ctx context.Context, id domain.UserID) (float64, error) {
	acc, err := b.load(ctx, id)
	if err != nil {
		return 0, err
	}
	return b.boosts.Effective(id, acc.Multiplier, b.now()), nil
}

// AddCoins scales delta by the effective multiplier, of either sign, and
// returns the clamped new balance.
func (b *Bank) AddCoins(ctx context.Context, id domain.UserID, delta float64) (float64, error) {
	defer b.lock(id)()
	acc, err := b.load(ctx, id)
	if err != nil {
		return 0, err
	}
	return b.addCoinsLocked(ctx, &acc, delta)
}

func (b *Bank) addCoinsLocked(ctx context.Context, acc *domain.Account, delta float64) (float64, error) {
	m := b.boosts.Effective(acc.ID, acc.Multiplier, b.now())
	acc.Balance = domain.ClampZero(acc.Balance + delta*m)
	return acc.Balance, b.store.PutBalance(ctx, acc.ID, acc.Balance)
}

// AddBank is never multiplier-scaled.
func (b *Bank) AddBank(ctx context.Context, id domain.UserID, delta float64) (float64, error) {
	defer b.lock(id)()
	acc, err := b.load(ctx, id)
	if err != nil {
		return 0, err
	}
	acc.Bank = domain.ClampZero(acc.Bank + delta)
	return acc.Bank, b.store.PutBank(ctx, id, acc.Bank)
}

// spendLocked removes amount from the balance, clamped. The caller has checked funds.
func (b *Bank) spendLocked(ctx context.Context, acc *domain.Account, amount float64) (float64, error) {
	if b.scaleDebits {
		return b.addCoinsLocked(ctx, acc, -amount)
	}
	acc.Balance = domain.ClampZero(acc.Balance - amount)
	return acc.Balance, b.store.PutBalance(ctx, acc.ID, acc.Balance)
}

func (b *Bank) creditLocked(ctx context.Context, acc *domain.Account, amount float64) (float64, error) {
	acc.Balance += amount
	return acc.Balance, b.store.PutBalance(ctx, acc.ID, acc.Balance)
}

// Debit spends amount, failing with ErrInsufficientFunds when the balance is short.
func (b *Bank) Debit(ctx context.Context, id domain.UserID, amount float64) (float64, error) {
	if amount <= 0 {
		return 0, domain.Validation("amount must be positive")
	}
	defer b.lock(id)()
	acc, err := b.load(ctx, id)
	if err != nil {
		return 0, err
	}
	if acc.Balance < amount {
		return acc.Balance, domain.ErrInsufficientFunds
	}
	return b.spendLocked(ctx, &acc, amount)
}

// Credit adds amount without the multiplier. Used for coins that already exist.
func (b *Bank) Credit(ctx context.Context, id domain.UserID, amount float64) (float64, error) {
	if amount <= 0 {
		return 0, domain.Validation("amount must be positive")
	}
	defer b.lock(id)()
	acc, err := b.load(ctx, id)
	if err != nil {
		return 0, err
	}
	return b.creditLocked(ctx, &acc, amount)
}

// Transfer moves amount from one user to another under both users' locks.
func (b *Bank) Transfer(ctx context.Context, from, to domain.UserID, amount float64) error {
	if amount <= 0 {
		return domain.Validation("amount must be positive")
	}
	if from == to {
		return domain.Validation("cannot pay yourself")
	}
	defer b.lockPair(from, to)()
	src, err := b.load(ctx, from)
	if err != nil {
		return err
	}
	if src.Balance < amount {
		return domain.ErrInsufficientFunds
	}
	dst, err := b.load(ctx, to)
	if err != nil {
		return err
	}
	before := src.Balance
	if _, err := b.spendLocked(ctx, &src, amount); err != nil {
		return err
	}
	if _, err := b.creditLocked(ctx, &dst, amount); err != nil {
		if rerr := b.store.PutBalance(ctx, from, before); rerr != nil {
			return errors.Join(err, fmt.Errorf("restore balance of %s: %w", from, rerr))
		}
		return err
	}
	return nil
}

// Deposit moves amount from the balance into the bank.
func (b *Bank) Deposit(ctx context.Context, id domain.UserID, amount float64) (domain.Account, error) {
	if amount <= 0 {
		return domain.Account{}, domain.Validation("amount must be positive")
	}
	defer b.lock(id)()
	acc, err := b.load(ctx, id)
	if err != nil {
		return acc, err
	}
	if acc.Balance < amount {
		return acc, domain.ErrInsufficientFunds
	}
	before := acc.Balance
	if _, err := b.spendLocked(ctx, &acc, amount); err != nil {
		return acc, err
	}
	acc.Bank += amount
	if err := b.store.PutBank(ctx, id, acc.Bank); err != nil {
		acc.Bank -= amount
		acc.Balance = before
		if rerr := b.store.PutBalance(ctx, id, before); rerr != nil {
			return acc, errors.Join(err, fmt.Errorf("restore balance of %s: %w", id, rerr))
		}
		return acc, err
	}
	return acc, nil
}

// Withdraw moves amount from the bank back into the balance, unscaled.
func (b *Bank) Withdraw(ctx context.Context, id domain.UserID, amount float64) (domain.Account, error) {
	if amount <= 0 {
		return domain.Account{}, domain.Validation("amount must be positive")
	}
	defer b.lock(id)()
	acc, err := b.load(ctx, id)
	if err != nil {
		return acc, err
	}
	if acc.Bank < amount {
		return acc, domain.ErrInsufficientBank
	}
	before := acc.Bank
	acc.Bank = domain.ClampZero(acc.Bank - amount)
	if err := b.store.PutBank(ctx, id, acc.Bank); err != nil {
		return acc, err
	}
	if _, err := b.creditLocked(ctx, &acc, amount); err != nil {
		acc.Balance -= amount
		acc.Bank = before
		if rerr := b.store.PutBank(ctx, id, before); rerr != nil {
			return acc, errors.Join(err, fmt.Errorf("restore bank of %s: %w", id, rerr))
		}
		return acc, err
	}
	return acc, nil
}

func (b *Bank) SetMultiplier(ctx context.Context, id domain.UserID, multiplier float64) error {
	if multiplier <= 0 {
		return domain.Validation("multiplier must be positive")
	}
	defer b.lock(id)()
	return b.store.PutMultiplier(ctx, id, multiplier)
}

// SetBoost grants a transient multiplier for d.
func (b *Bank) SetBoost(id domain.UserID, multiplier float64, d time.Duration) (domain.Boost, error) {
	if multiplier <= 0 || d <= 0 {
		return domain.Boost{}, domain.Validation("boost needs a positive multiplier and duration")
	}
	expires := b.now().Add(d)
	b.boosts.Set(id, multiplier, expires)
	return domain.Boost{Multiplier: multiplier, Expires: expires}, nil
}

// Touch records the platform username of id for later mention lookups.
func (b *Bank) Touch(ctx context.Context, id domain.UserID, username string) error {
	if username == "" {
		return nil
	}
	return b.store.PutUsername(ctx, id, username)
}

// Resolve finds a user by a recorded username, with or without the leading @.
func (b *Bank) Resolve(ctx context.Context, username string) (domain.UserID, error) {
	acc, err := b.store.AccountByUsername(ctx, username)
	if err != nil {
		return "", err
	}
	return acc.ID, nil
}
