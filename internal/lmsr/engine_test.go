package lmsr

import (
	"testing"

	"github.com/shopspring/decimal"
)

func tol(a, b decimal.Decimal, eps string) bool {
	return a.Sub(b).Abs().LessThanOrEqual(decimal.RequireFromString(eps))
}

func TestEngine_Prices_EqualPrior(t *testing.T) {
	e := New(decimal.NewFromInt(100), []string{"YES", "NO"})
	q := map[string]decimal.Decimal{"YES": decimal.Zero, "NO": decimal.Zero}

	p := e.Prices(q)
	if !tol(p["YES"], decimal.NewFromFloat(0.5), "0.001") {
		t.Errorf("YES price = %s, want ~0.5", p["YES"])
	}
	if !tol(p["NO"], decimal.NewFromFloat(0.5), "0.001") {
		t.Errorf("NO price = %s, want ~0.5", p["NO"])
	}
}

func TestEngine_Prices_SimplexSum(t *testing.T) {
	e := New(decimal.NewFromInt(100), []string{"YES", "NO", "MAYBE"})
	q := map[string]decimal.Decimal{
		"YES":   decimal.NewFromInt(40),
		"NO":    decimal.NewFromInt(10),
		"MAYBE": decimal.NewFromInt(5),
	}
	p := e.Prices(q)

	sum := decimal.Zero
	for _, v := range p {
		sum = sum.Add(v)
		if v.LessThan(priceMin) || v.GreaterThan(priceMax) {
			t.Errorf("price %s outside [0.01,0.99]", v)
		}
	}
	if !tol(sum, decimal.NewFromInt(1), "0.000001") {
		t.Errorf("price sum = %s, want ~1", sum)
	}
}

func TestEngine_Buy_ShiftsPriceUp(t *testing.T) {
	e := New(decimal.NewFromInt(100), []string{"YES", "NO"})
	q := map[string]decimal.Decimal{"YES": decimal.Zero, "NO": decimal.Zero}

	res, err := e.Buy(q, "YES", decimal.NewFromInt(10))
	if err != nil {
		t.Fatalf("Buy: %v", err)
	}
	if !res.Shares.IsPositive() {
		t.Errorf("shares = %s, want positive", res.Shares)
	}
	if res.NewPrices["YES"].LessThanOrEqual(decimal.NewFromFloat(0.5)) {
		t.Errorf("new YES price = %s, want > 0.5", res.NewPrices["YES"])
	}
	if res.NewPrices["NO"].GreaterThanOrEqual(decimal.NewFromFloat(0.5)) {
		t.Errorf("new NO price = %s, want < 0.5", res.NewPrices["NO"])
	}
}

func TestEngine_Buy_CostExact(t *testing.T) {
	e := New(decimal.NewFromInt(100), []string{"YES", "NO"})
	q := map[string]decimal.Decimal{"YES": decimal.NewFromInt(20), "NO": decimal.NewFromInt(5)}
	amount := decimal.NewFromInt(25)

	baseCost := e.Cost(q)
	res, err := e.Buy(q, "YES", amount)
	if err != nil {
		t.Fatalf("Buy: %v", err)
	}

	trial := cloneShares(q)
	trial["YES"] = trial["YES"].Add(res.Shares)
	actualDelta := e.Cost(trial).Sub(baseCost)

	if actualDelta.Sub(amount).Abs().GreaterThan(decimal.RequireFromString("0.01")) {
		t.Errorf("cost delta = %s, want within 0.01 of %s", actualDelta, amount)
	}
}

func TestEngine_Buy_UnknownOutcome(t *testing.T) {
	e := New(decimal.NewFromInt(100), []string{"YES", "NO"})
	q := map[string]decimal.Decimal{"YES": decimal.Zero, "NO": decimal.Zero}

	if _, err := e.Buy(q, "MAYBE", decimal.NewFromInt(10)); err == nil {
		t.Error("expected error for unknown outcome")
	}
}

func TestEngine_Buy_Deterministic(t *testing.T) {
	e := New(decimal.NewFromInt(100), []string{"YES", "NO"})
	q := map[string]decimal.Decimal{"YES": decimal.NewFromInt(15), "NO": decimal.NewFromInt(8)}

	r1, _ := e.Buy(q, "YES", decimal.NewFromInt(7))
	r2, _ := e.Buy(q, "YES", decimal.NewFromInt(7))

	if !r1.Shares.Equal(r2.Shares) || !r1.FillPrice.Equal(r2.FillPrice) {
		t.Errorf("Buy not deterministic: %+v vs %+v", r1, r2)
	}
}
