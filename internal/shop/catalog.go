package shop

import (
	"strings"
	"sync"

	"github.com/vi13x/coinbot/internal/domain"
)

// Catalog is the fixed item list with process-local stock counters.
// Stock starts from the configured values on every restart.
type Catalog struct {
	mu    sync.Mutex
	items []domain.ShopItem
	index map[string]int
}

func NewCatalog(items []domain.ShopItem) *Catalog {
	c := &Catalog{index: make(map[string]int, len(items))}
	for _, it := range items {
		it.ID = strings.ToLower(strings.TrimSpace(it.ID))
		c.index[it.ID] = len(c.items)
		c.items = append(c.items, it)
	}
	return c
}

func (c *Catalog) Lookup(id string) (domain.ShopItem, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i, ok := c.index[strings.ToLower(strings.TrimSpace(id))]
	if !ok {
		return domain.ShopItem{}, false
	}
	return c.items[i], true
}

// Items returns a copy of the catalog in configured order.
func (c *Catalog) Items() []domain.ShopItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.ShopItem, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Catalog) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// At returns the i-th item in configured order.
func (c *Catalog) At(i int) domain.ShopItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items[i]
}

// Reserve takes one unit of stock. It is the only way stock goes down.
func (c *Catalog) Reserve(id string) (domain.ShopItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i, ok := c.index[strings.ToLower(strings.TrimSpace(id))]
	if !ok {
		return domain.ShopItem{}, domain.ErrItemNotFound
	}
	if c.items[i].Stock <= 0 {
		return c.items[i], domain.ErrOutOfStock
	}
	c.items[i].Stock--
	return c.items[i], nil
}

// Release returns a unit taken by Reserve when the debit failed or there was
// nothing to deliver.
func (c *Catalog) Release(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i, ok := c.index[strings.ToLower(strings.TrimSpace(id))]; ok {
		c.items[i].Stock++
	}
}
