package advisory

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func newTestPoller() *Poller {
	return &Poller{lastBroadcast: make(map[uuid.UUID]map[string]decimal.Decimal)}
}

func TestSignificantChange_FirstTickAlwaysSignificant(t *testing.T) {
	p := newTestPoller()
	eventID := uuid.New()
	prices := map[string]decimal.Decimal{"YES": decimal.NewFromFloat(0.5)}
	if !p.significantChange(eventID, prices) {
		t.Error("expected first tick to be significant")
	}
}

func TestSignificantChange_BelowThreshold(t *testing.T) {
	p := newTestPoller()
	eventID := uuid.New()
	p.lastBroadcast[eventID] = map[string]decimal.Decimal{"YES": decimal.NewFromFloat(0.50)}
	prices := map[string]decimal.Decimal{"YES": decimal.NewFromFloat(0.502)} // 0.4% change
	if p.significantChange(eventID, prices) {
		t.Error("expected sub-1%% change to not be significant")
	}
}

func TestSignificantChange_AboveThreshold(t *testing.T) {
	p := newTestPoller()
	eventID := uuid.New()
	p.lastBroadcast[eventID] = map[string]decimal.Decimal{"YES": decimal.NewFromFloat(0.50)}
	prices := map[string]decimal.Decimal{"YES": decimal.NewFromFloat(0.52)} // 4% change
	if !p.significantChange(eventID, prices) {
		t.Error("expected 4%% change to be significant")
	}
}

func TestAMMPrices_SumsToOne(t *testing.T) {
	outcomes := []string{"YES", "NO"}
	q := map[string]decimal.Decimal{"YES": decimal.NewFromInt(10), "NO": decimal.NewFromInt(5)}
	prices := ammPrices(outcomes, q, defaultLiquidity)

	sum := decimal.Zero
	for _, p := range prices {
		sum = sum.Add(p)
	}
	diff := sum.Sub(decimal.NewFromInt(1)).Abs()
	if diff.GreaterThan(decimal.NewFromFloat(0.01)) {
		t.Errorf("expected prices to sum close to 1, got %s", sum.String())
	}
}
