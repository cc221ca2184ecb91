package domain

import (
	"time"
)

type UserID string

type ActionKind string

const (
	ActionChat   ActionKind = "chat"
	ActionWork   ActionKind = "work"
	ActionGamble ActionKind = "gamble"
)

// Account is the persisted ledger record of one chat user.
type Account struct {
	ID         UserID    `json:"id"`
	Username   string    `json:"username,omitempty"`
	Balance    float64   `json:"coins"`
	Bank       float64   `json:"bank"`
	Multiplier float64   `json:"boost_multiplier"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewAccount returns the implicit record of a user that was never written.
func NewAccount(id UserID) Account {
	return Account{ID: id, Multiplier: 1}
}

// Boost is a transient multiplier that stops applying at Expires.
type Boost struct {
	Multiplier float64   `json:"multiplier"`
	Expires    time.Time `json:"expires"`
}

func (b Boost) ActiveAt(now time.Time) bool {
	return b.Expires.After(now)
}

// ShopItem is a catalog entry; Stock is process-local and resets on restart.
type ShopItem struct {
	ID    string  `json:"id" yaml:"id"`
	Name  string  `json:"name" yaml:"name"`
	Price float64 `json:"price" yaml:"price"`
	Stock int     `json:"stock" yaml:"stock"`
}

type Snapshot struct {
	Version   int                 `json:"version"`
	Accounts  map[UserID]*Account `json:"accounts"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// ClampZero floors a ledger amount at zero.
func ClampZero(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
