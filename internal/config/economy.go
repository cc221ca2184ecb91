package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vi13x/coinbot/internal/domain"
)

// Economy holds the reward, cooldown and shop tuning. Fields missing from the
// yaml file keep their Defaults value.
type Economy struct {
	ChatReward   float64       `yaml:"chat_reward"`
	ChatCooldown time.Duration `yaml:"chat_cooldown"`

	Work    Work    `yaml:"work"`
	Gamble  Gamble  `yaml:"gamble"`
	Mystery Mystery `yaml:"mystery"`

	// PayloadExt filters delivered files by extension; empty delivers every file.
	PayloadExt string `yaml:"payload_ext"`
	// ScaleDebits applies the reward multiplier to spending as well.
	ScaleDebits bool `yaml:"scale_debits"`

	Shop []domain.ShopItem `yaml:"shop"`
}

type Work struct {
	Min      int           `yaml:"min"`
	Span     int           `yaml:"span"`
	Cooldown time.Duration `yaml:"cooldown"`
}

type Gamble struct {
	MinBet    int           `yaml:"min_bet"`
	MaxBet    int           `yaml:"max_bet"`
	WinChance float64       `yaml:"win_chance"`
	Payout    float64       `yaml:"payout"`
	Cooldown  time.Duration `yaml:"cooldown"`
}

type Mystery struct {
	Cost       float64 `yaml:"cost"`
	ItemChance float64 `yaml:"item_chance"`
	CoinMin    int     `yaml:"coin_min"`
	CoinSpan   int     `yaml:"coin_span"`
}

func Defaults() Economy {
	return Economy{
		ChatReward:   2,
		ChatCooldown: time.Minute,
		Work:         Work{Min: 50, Span: 50, Cooldown: time.Hour},
		Gamble:       Gamble{MinBet: 50, MaxBet: 500, WinChance: 0.20, Payout: 2, Cooldown: 45 * time.Second},
		Mystery:      Mystery{Cost: 300, ItemChance: 0.05, CoinMin: 100, CoinSpan: 201},
		PayloadExt:   ".ffx",
		Shop: []domain.ShopItem{
			{ID: "omino", Name: "Omino Diffusion", Price: 800, Stock: 10},
			{ID: "ripple", Name: "Ripple", Price: 500, Stock: 15},
			{ID: "cc3", Name: "3 CC Pack", Price: 300, Stock: 10},
			{ID: "cc5", Name: "5 CC Pack", Price: 450, Stock: 5},
			{ID: "cc10", Name: "10 CC Pack", Price: 700, Stock: 3},
			{ID: "helper", Name: "Helper Role", Price: 1000, Stock: 3},
			{ID: "zoom", Name: "Zoom Pack", Price: 400, Stock: 5},
			{ID: "twixtor", Name: "Twixtor Pack", Price: 500, Stock: 5},
		},
	}
}

// LoadEconomy reads path over Defaults. An empty path returns Defaults.
func LoadEconomy(path string) (Economy, error) {
	e := Defaults()
	if strings.TrimSpace(path) == "" {
		return e, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return e, err
	}
	if err := yaml.Unmarshal(raw, &e); err != nil {
		return e, fmt.Errorf("economy.yaml: %w", err)
	}
	return e, e.Validate()
}

func (e Economy) Validate() error {
	if e.ChatCooldown <= 0 || e.Work.Cooldown <= 0 || e.Gamble.Cooldown <= 0 {
		return fmt.Errorf("economy: cooldowns must be positive")
	}
	if e.ChatReward < 0 {
		return fmt.Errorf("economy: chat_reward must not be negative")
	}
	if e.Work.Span <= 0 || e.Mystery.CoinSpan <= 0 {
		return fmt.Errorf("economy: reward spans must be positive")
	}
	if e.Gamble.MinBet <= 0 || e.Gamble.MaxBet < e.Gamble.MinBet {
		return fmt.Errorf("economy: gamble bet range %d-%d is invalid", e.Gamble.MinBet, e.Gamble.MaxBet)
	}
	if !inUnit(e.Gamble.WinChance) || !inUnit(e.Mystery.ItemChance) {
		return fmt.Errorf("economy: chances must be within [0,1]")
	}
	if e.Mystery.Cost < 0 {
		return fmt.Errorf("economy: mystery cost must not be negative")
	}
	seen := map[string]bool{}
	for _, it := range e.Shop {
		id := strings.ToLower(strings.TrimSpace(it.ID))
		if id == "" {
			return fmt.Errorf("economy: shop item with empty id")
		}
		if seen[id] {
			return fmt.Errorf("economy: duplicate shop item %q", id)
		}
		if it.Price < 0 || it.Stock < 0 {
			return fmt.Errorf("economy: shop item %q has negative price or stock", id)
		}
		seen[id] = true
	}
	return nil
}

func inUnit(v float64) bool { return v >= 0 && v <= 1 }
