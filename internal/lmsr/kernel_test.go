package lmsr

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestExpApprox_Zero(t *testing.T) {
	got := ExpApprox(decimal.Zero)
	if !tol(got, decimal.NewFromInt(1), "0.0001") {
		t.Errorf("ExpApprox(0) = %s, want ~1", got)
	}
}

func TestExpApprox_NeverNegative(t *testing.T) {
	got := ExpApprox(decimal.NewFromInt(-50))
	if got.LessThan(decimal.Zero) {
		t.Errorf("ExpApprox(-50) = %s, want >= 0", got)
	}
	// The degree-4 polynomial has no real root, so the floor is not reached:
	// 1 - 50 + 1250 - 20833.33 + 260416.67 = 240784.33.
	if !tol(got, decimal.RequireFromString("240784.3333"), "0.001") {
		t.Errorf("ExpApprox(-50) = %s, want ~240784.3333", got)
	}
}

func TestLnApprox_NearOne(t *testing.T) {
	got := LnApprox(decimal.NewFromFloat(1.05))
	if !tol(got, decimal.NewFromFloat(0.04879), "0.001") {
		t.Errorf("LnApprox(1.05) = %s, want ~0.04879", got)
	}
}

func TestLnApprox_ClampedRange(t *testing.T) {
	got := LnApprox(decimal.NewFromInt(1000))
	if got.GreaterThan(lnClampH) {
		t.Errorf("LnApprox(1000) = %s, want <= %s", got, lnClampH)
	}
}
