// Package cooldown tracks per-user, per-action last-fire times in memory.
//
// Entries are never persisted; a restart forgets every cooldown.
package cooldown

import (
	"sync"
	"time"

	"github.com/vi13x/coinbot/internal/domain"
)

type key struct {
	user domain.UserID
	kind domain.ActionKind
}

type Tracker struct {
	mu   sync.Mutex
	last map[key]time.Time
}

func NewTracker() *Tracker {
	return &Tracker{last: map[key]time.Time{}}
}

// Check reports whether kind may fire for user at now. It does not record anything;
// callers record with Fire only once the action actually ran.
func (t *Tracker) Check(user domain.UserID, kind domain.ActionKind, window time.Duration, now time.Time) (bool, time.Duration) {
	t.mu.Lock()
	last, ok := t.last[key{user, kind}]
	t.mu.Unlock()
	if !ok {
		return true, 0
	}
	elapsed := now.Sub(last)
	if elapsed >= window {
		return true, 0
	}
	return false, window - elapsed
}

func (t *Tracker) Fire(user domain.UserID, kind domain.ActionKind, now time.Time) {
	t.mu.Lock()
	t.last[key{user, kind}] = now
	t.mu.Unlock()
}

// TryFire checks and records in one step. Used by the passive chat reward, which
// records on every accepted message.
func (t *Tracker) TryFire(user domain.UserID, kind domain.ActionKind, window time.Duration, now time.Time) (bool, time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	k := key{user, kind}
	if last, ok := t.last[k]; ok {
		if elapsed := now.Sub(last); elapsed < window {
			return false, window - elapsed
		}
	}
	t.last[k] = now
	return true, 0
}
