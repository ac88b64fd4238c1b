package usecase

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"PriceHunter/internal/domain/models"
	drepo "PriceHunter/internal/domain/repository"
	"PriceHunter/pkg/logger"
)

type catalogKey struct {
	query string
	store models.Store
}

// observationOfferer accepts merged observations without blocking.
// The observation pipeline implements it; nil means no sink is configured.
type observationOfferer interface {
	Offer(obs *models.PriceObservation)
}

// Catalog is the authoritative in-memory set of tracked products and the
// only writer of product state. Every mutation runs under one mutex, so
// upserts from concurrent sessions serialize and a product is never
// observed with an inconsistent name/history pairing.
type Catalog struct {
	mu          sync.Mutex
	products    []*models.Product // insertion order
	byKey       map[catalogKey]*models.Product
	collapsed   map[string]bool
	maxProducts int

	metrics drepo.Metrics
	pipe    observationOfferer
	logger  *logger.Logger
}

// NewCatalog creates an empty catalog capped at maxProducts entries.
func NewCatalog(maxProducts int, metrics drepo.Metrics, pipe observationOfferer, lgr *logger.Logger) *Catalog {
	if maxProducts <= 0 {
		maxProducts = 10
	}
	return &Catalog{
		byKey:       make(map[catalogKey]*models.Product),
		collapsed:   make(map[string]bool),
		maxProducts: maxProducts,
		metrics:     metrics,
		pipe:        pipe,
		logger:      lgr,
	}
}

// Upsert merges one scrape result into the catalog and returns the id of
// the affected product. Identity is the exact (queryTerm, store) pair.
func (c *Catalog) Upsert(res *models.StoreResult, observedAt time.Time) string {
	queryTerm := res.DedupKey()
	key := catalogKey{query: queryTerm, store: res.Store}
	entry := models.PriceEntry{ObservedAt: observedAt, Price: res.Price}

	c.mu.Lock()
	p, ok := c.byKey[key]
	if ok {
		// History records observation events, not value changes: append
		// even when the price is unchanged. Name and URL may refine over
		// repeated scrapes, so the incoming values win.
		p.PriceHistory = append(p.PriceHistory, entry)
		p.Name = res.Name
		p.URL = res.URL
	} else {
		p = &models.Product{
			ID:           uuid.NewString(),
			Query:        queryTerm,
			Name:         res.Name,
			Store:        res.Store,
			URL:          res.URL,
			PriceHistory: []models.PriceEntry{entry},
		}
		c.products = append(c.products, p)
		c.byKey[key] = p
	}
	id := p.ID
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.RecordResultMerged(string(res.Store))
		c.metrics.RecordLastPrice(queryTerm, string(res.Store), res.Price)
	}
	if c.pipe != nil {
		c.pipe.Offer(&models.PriceObservation{
			Query:      queryTerm,
			Store:      res.Store,
			Name:       res.Name,
			Price:      res.Price,
			URL:        res.URL,
			ObservedAt: observedAt,
		})
	}
	return id
}

// Delete removes the product entirely. No tombstone is retained; the same
// (query, store) pair may be re-created later with a fresh id.
func (c *Catalog) Delete(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, p := range c.products {
		if p.ID == id {
			delete(c.byKey, catalogKey{query: p.Query, store: p.Store})
			c.products = append(c.products[:i], c.products[i+1:]...)
			return nil
		}
	}
	return models.ErrProductNotFound
}

// DeleteGroup removes every product whose query equals key and clears the
// group's collapse flag. Returns the number of products removed.
func (c *Catalog) DeleteGroup(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.products[:0]
	removed := 0
	for _, p := range c.products {
		if p.Query == key {
			delete(c.byKey, catalogKey{query: p.Query, store: p.Store})
			removed++
			continue
		}
		kept = append(kept, p)
	}
	c.products = kept
	delete(c.collapsed, key)
	return removed
}

// Product returns a snapshot of the product with the given id.
func (c *Catalog) Product(id string) (models.Product, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range c.products {
		if p.ID == id {
			return p.Clone(), true
		}
	}
	return models.Product{}, false
}

// Products returns snapshots of all products in insertion order.
func (c *Catalog) Products() []models.Product {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]models.Product, 0, len(c.products))
	for _, p := range c.products {
		out = append(out, p.Clone())
	}
	return out
}

// Groups partitions the catalog by query. Group keys appear in the order
// their first product was inserted; products within a group keep their
// relative insertion order.
func (c *Catalog) Groups() []models.GroupView {
	c.mu.Lock()
	defer c.mu.Unlock()

	var order []string
	grouped := make(map[string][]models.Product)
	for _, p := range c.products {
		if _, ok := grouped[p.Query]; !ok {
			order = append(order, p.Query)
		}
		grouped[p.Query] = append(grouped[p.Query], p.Clone())
	}

	out := make([]models.GroupView, 0, len(order))
	for _, key := range order {
		out = append(out, models.GroupView{
			Key:       key,
			Products:  grouped[key],
			Collapsed: c.collapsed[key],
		})
	}
	return out
}

// HasGroup reports whether any product carries the given query key.
func (c *Catalog) HasGroup(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range c.products {
		if p.Query == key {
			return true
		}
	}
	return false
}

// Len returns the total product count across all groups.
func (c *Catalog) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.products)
}

// ToggleCollapsed flips the collapse flag for a group key and returns the
// new value. The flag is pure view state: it survives catalog mutation and
// is only cleared by DeleteGroup.
func (c *Catalog) ToggleCollapsed(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.collapsed[key] = !c.collapsed[key]
	return c.collapsed[key]
}

// EnsureCapacity returns ErrCatalogFull when starting a session for query
// would create a new group past the product cap. Refreshing an existing
// group is always allowed.
func (c *Catalog) EnsureCapacity(query string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range c.products {
		if p.Query == query {
			return nil
		}
	}
	if len(c.products) >= c.maxProducts {
		return models.ErrCatalogFull
	}
	return nil
}
