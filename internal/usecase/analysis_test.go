package usecase

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"PriceHunter/internal/domain/models"
)

func productWithPrices(prices ...float64) *models.Product {
	p := &models.Product{ID: "p1", Name: "Mouse Gamer"}
	for _, price := range prices {
		p.PriceHistory = append(p.PriceHistory, models.PriceEntry{Price: price})
	}
	return p
}

func TestAnalyzeTrend(t *testing.T) {
	tests := []struct {
		name   string
		prices []float64
		want   string
	}{
		{"no history", nil, "Not enough data"},
		{"single entry", []float64{499}, "Not enough data"},
		{"big drop", []float64{1000, 900}, "buying opportunity"},
		{"big rise", []float64{900, 1000}, "went up recently"},
		{"stable", []float64{1000, 980}, "stayed relatively stable"},
		{"drop at threshold", []float64{1000, 950}, "stayed relatively stable"},
		{"rise at threshold", []float64{950, 1000}, "stayed relatively stable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := analyzeTrend(productWithPrices(tt.prices...))
			assert.Contains(t, got, tt.want)
		})
	}
}

func TestAnalyzeReportsCurrentPrice(t *testing.T) {
	got := analyzeTrend(productWithPrices(1000, 880))
	assert.Contains(t, got, "$880.00 MXN")
	assert.True(t, strings.HasPrefix(got, "Analysis for Mouse Gamer:"))
}

func TestAnalyzerCachesPerHistoryLength(t *testing.T) {
	a := NewAnalyzer(time.Minute)
	p := productWithPrices(1000, 880)

	first := a.Analyze(p)
	assert.Contains(t, first, "buying opportunity")

	// Same history length hits the cache even if the entries changed.
	p.PriceHistory[1].Price = 2000
	assert.Equal(t, first, a.Analyze(p))

	// A new observation invalidates the readout. The last two entries are
	// now 2000 and 2200, a rise above the stability threshold.
	p.PriceHistory = append(p.PriceHistory, models.PriceEntry{Price: 2200})
	refreshed := a.Analyze(p)
	assert.Contains(t, refreshed, "went up recently")
}
