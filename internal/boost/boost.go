// Package boost resolves the effective reward multiplier of a user.
package boost

import (
	"sync"
	"time"

	"github.com/vi13x/coinbot/internal/domain"
)

// Table holds transient boosts. Expired entries stay until overwritten; they are
// ignored at read time.
type Table struct {
	mu     sync.RWMutex
	boosts map[domain.UserID]domain.Boost
}

func NewTable() *Table {
	return &Table{boosts: map[domain.UserID]domain.Boost{}}
}

func (t *Table) Set(user domain.UserID, multiplier float64, expires time.Time) {
	t.mu.Lock()
	t.boosts[user] = domain.Boost{Multiplier: multiplier, Expires: expires}
	t.mu.Unlock()
}

// Active returns the boost of user if it has not expired at now.
func (t *Table) Active(user domain.UserID, now time.Time) (domain.Boost, bool) {
	t.mu.RLock()
	b, ok := t.boosts[user]
	t.mu.RUnlock()
	if !ok || !b.ActiveAt(now) {
		return domain.Boost{}, false
	}
	return b, true
}

// Effective combines the persisted multiplier with any active boost. A zero or
// negative persisted value counts as 1.
func (t *Table) Effective(user domain.UserID, persisted float64, now time.Time) float64 {
	m := persisted
	if m <= 0 {
		m = 1
	}
	if b, ok := t.Active(user, now); ok {
		m *= b.Multiplier
	}
	return m
}
