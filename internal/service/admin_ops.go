package service

import (
	"context"

	"github.com/vi13x/coinbot/internal/domain"
)

// Give credits amount to one user through AddCoins, so it is multiplier-scaled.
func (b *Bank) Give(ctx context.Context, id domain.UserID, amount float64) (float64, error) {
	if amount <= 0 {
		return 0, domain.Validation("amount must be positive")
	}
	return b.AddCoins(ctx, id, amount)
}

// Remove takes amount from one user, clamping at zero instead of failing.
func (b *Bank) Remove(ctx context.Context, id domain.UserID, amount float64) (float64, error) {
	if amount <= 0 {
		return 0, domain.Validation("amount must be positive")
	}
	defer b.lock(id)()
	acc, err := b.load(ctx, id)
	if err != nil {
		return 0, err
	}
	return b.spendLocked(ctx, &acc, amount)
}

// GiveAll applies Give to every known account and returns how many were touched.
// Accounts are locked one at a time; the broadcast as a whole is not atomic.
func (b *Bank) GiveAll(ctx context.Context, amount float64) (int, error) {
	return b.broadcast(ctx, amount, b.Give)
}

func (b *Bank) RemoveAll(ctx context.Context, amount float64) (int, error) {
	return b.broadcast(ctx, amount, b.Remove)
}

func (b *Bank) broadcast(ctx context.Context, amount float64, op func(context.Context, domain.UserID, float64) (float64, error)) (int, error) {
	if amount <= 0 {
		return 0, domain.Validation("amount must be positive")
	}
	accs, err := b.store.Accounts(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, a := range accs {
		if _, err := op(ctx, a.ID, amount); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
