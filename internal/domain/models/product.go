package models

import (
	"strings"
	"time"
)

// Store identifies one of the scraped online stores.
type Store string

const (
	StoreAmazonMX     Store = "Amazon México"
	StoreCyberpuerta  Store = "Cyberpuerta"
	StoreMercadoLibre Store = "Mercado Libre"
	StoreDDtech       Store = "DDtech"
)

// StoreInfo carries static metadata for a known store.
type StoreInfo struct {
	Name    Store  `json:"name"`
	HomeURL string `json:"home_url"`
	Domain  string `json:"domain"`
}

// KnownStores lists the stores the scraper backend covers, in display order.
func KnownStores() []StoreInfo {
	return []StoreInfo{
		{Name: StoreAmazonMX, HomeURL: "https://www.amazon.com.mx", Domain: "amazon.com.mx"},
		{Name: StoreCyberpuerta, HomeURL: "https://www.cyberpuerta.mx", Domain: "cyberpuerta.mx"},
		{Name: StoreMercadoLibre, HomeURL: "https://www.mercadolibre.com.mx", Domain: "mercadolibre.com.mx"},
		{Name: StoreDDtech, HomeURL: "https://www.ddtech.mx", Domain: "ddtech.mx"},
	}
}

// Domain returns the expected URL domain for the store, empty if unknown.
func (s Store) Domain() string {
	for _, info := range KnownStores() {
		if info.Name == s {
			return info.Domain
		}
	}
	return ""
}

// StoreResult is a single finding emitted by the scraper for one store.
// QueryTerm carries the search term that produced the result; when the
// scraper omits it, Name is used as the deduplication key instead.
type StoreResult struct {
	Name      string  `json:"name"`
	Store     Store   `json:"store"`
	Price     float64 `json:"price"`
	Status    string  `json:"status,omitempty"`
	URL       string  `json:"url"`
	QueryTerm string  `json:"query_term,omitempty"`
}

// DedupKey returns the query term used for catalog identity.
func (r *StoreResult) DedupKey() string {
	if r.QueryTerm != "" {
		return r.QueryTerm
	}
	return r.Name
}

// PriceEntry is one price observation. Immutable once appended to a history.
type PriceEntry struct {
	ObservedAt time.Time `json:"observed_at"`
	Price      float64   `json:"price"`
}

// significantDropRatio is the relative drop vs the previous observation
// above which a product is flagged as a buying opportunity.
const significantDropRatio = 0.10

// Product is one tracked (query, store) pair with its full observation
// history. PriceHistory is append-only and ordered by observation time.
type Product struct {
	ID           string       `json:"id"`
	Query        string       `json:"query"`
	Name         string       `json:"name"`
	Store        Store        `json:"store"`
	URL          string       `json:"url"`
	PriceHistory []PriceEntry `json:"price_history"`
}

// LatestPrice returns the most recent observation.
func (p *Product) LatestPrice() (PriceEntry, bool) {
	if len(p.PriceHistory) == 0 {
		return PriceEntry{}, false
	}
	return p.PriceHistory[len(p.PriceHistory)-1], true
}

// PreviousPrice returns the second most recent observation.
func (p *Product) PreviousPrice() (PriceEntry, bool) {
	if len(p.PriceHistory) < 2 {
		return PriceEntry{}, false
	}
	return p.PriceHistory[len(p.PriceHistory)-2], true
}

// PriceDelta returns latest minus previous price. False when the history
// has fewer than two entries.
func (p *Product) PriceDelta() (float64, bool) {
	latest, ok := p.LatestPrice()
	if !ok {
		return 0, false
	}
	prev, ok := p.PreviousPrice()
	if !ok {
		return 0, false
	}
	return latest.Price - prev.Price, true
}

// IsSignificantDrop reports whether the latest observation dropped more
// than 10% below the previous one.
func (p *Product) IsSignificantDrop() bool {
	latest, ok := p.LatestPrice()
	if !ok {
		return false
	}
	prev, ok := p.PreviousPrice()
	if !ok {
		return false
	}
	if latest.Price >= prev.Price {
		return false
	}
	return (prev.Price-latest.Price)/prev.Price > significantDropRatio
}

// URLVerified reports whether the product URL points at the store's
// expected domain. Scrapers occasionally return redirect or search URLs.
func (p *Product) URLVerified() bool {
	domain := p.Store.Domain()
	if domain == "" {
		return false
	}
	return strings.Contains(p.URL, domain)
}

// Clone returns a deep copy so callers can hold a product snapshot without
// racing against catalog mutation.
func (p *Product) Clone() Product {
	out := *p
	out.PriceHistory = make([]PriceEntry, len(p.PriceHistory))
	copy(out.PriceHistory, p.PriceHistory)
	return out
}

// PriceObservation is the record forwarded to the observation sink for
// every merged result.
type PriceObservation struct {
	Query      string    `json:"query"`
	Store      Store     `json:"store"`
	Name       string    `json:"name"`
	Price      float64   `json:"price"`
	URL        string    `json:"url"`
	ObservedAt time.Time `json:"observed_at"`
}

// GroupView is the derived projection of all products sharing a query.
type GroupView struct {
	Key       string    `json:"key"`
	Products  []Product `json:"products"`
	Collapsed bool      `json:"collapsed"`
}

// StoreOption is one comparison option from the pre-computed snapshot store.
type StoreOption struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	URL   string  `json:"url"`
	Store Store   `json:"store"`
}
