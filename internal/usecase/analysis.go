package usecase

import (
	"fmt"
	"time"

	"PriceHunter/internal/domain/models"
	icache "PriceHunter/internal/service/cache"
)

// trendThreshold is the absolute price delta (MXN) between the last two
// observations that separates "stable" from a real move.
const trendThreshold = 50.0

// Analyzer produces a short trend readout for a product's price history.
// Texts are cached per (product, history length) so repeated reads of an
// unchanged history cost nothing.
type Analyzer struct {
	cache *icache.TTLCache
	ttl   time.Duration
}

// NewAnalyzer creates an Analyzer with the given cache TTL.
func NewAnalyzer(ttl time.Duration) *Analyzer {
	return &Analyzer{cache: icache.NewTTLCache(), ttl: ttl}
}

// Analyze returns the trend text for p.
func (a *Analyzer) Analyze(p *models.Product) string {
	key := fmt.Sprintf("%s:%d", p.ID, len(p.PriceHistory))
	if v, ok := a.cache.Get(key); ok {
		if text, ok := v.(string); ok {
			return text
		}
	}
	text := analyzeTrend(p)
	a.cache.Set(key, text, a.ttl)
	return text
}

func analyzeTrend(p *models.Product) string {
	delta, ok := p.PriceDelta()
	if !ok {
		return "Not enough data for a trend analysis yet."
	}
	latest, _ := p.LatestPrice()

	head := fmt.Sprintf("Analysis for %s:\n", p.Name)
	switch {
	case delta < -trendThreshold:
		return head + fmt.Sprintf("A significant recent price drop suggests a good buying opportunity. The current price is $%.2f MXN.", latest.Price)
	case delta > trendThreshold:
		return head + fmt.Sprintf("The price went up recently. Consider monitoring for a few days before buying. The current price is $%.2f MXN.", latest.Price)
	default:
		return head + fmt.Sprintf("The price has stayed relatively stable. A fine moment to buy if you need the product soon. The current price is $%.2f MXN.", latest.Price)
	}
}
