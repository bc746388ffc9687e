// Package lmsr implements the decimal-domain Logarithmic Market Scoring Rule
// pricing and order engine: the decimal math kernel (exp/ln approximations)
// and the LMSR engine itself (pricing, cost function, buy-quantity solver).
//
// Reference: "Logarithmic Market Scoring Rules for Modular Combinatorial
// Information Aggregation", Robin Hanson, 2003.
package lmsr

import "github.com/shopspring/decimal"

var (
	expFloor = decimal.New(1, -10) // 10^-10, exp_approx never returns below this
	two      = decimal.NewFromInt(2)
	three    = decimal.NewFromInt(3)
	six      = decimal.NewFromInt(6)
	twentyF  = decimal.NewFromInt(24)
	lnClampL = decimal.NewFromInt(-10)
	lnClampH = decimal.NewFromInt(10)
	lnBand   = decimal.NewFromFloat(0.1)
)

// ExpApprox approximates e^x with the degree-4 Taylor expansion
// 1 + x + x²/2 + x³/6 + x⁴/24, clamped at a floor of 10⁻¹⁰ so the result
// stays strictly positive. Accuracy degrades for large |x|; nothing in the
// engine bounds x, and Engine.MaxQOverB reports the largest |q_i/b|.
func ExpApprox(x decimal.Decimal) decimal.Decimal {
	x2 := x.Mul(x)
	x3 := x2.Mul(x)
	x4 := x3.Mul(x)

	result := decimal.NewFromInt(1).
		Add(x).
		Add(x2.Div(two)).
		Add(x3.Div(six)).
		Add(x4.Div(twentyF))

	if result.LessThan(expFloor) {
		return expFloor
	}
	return result
}

// LnApprox approximates ln(x). For |x-1| < 0.1 it uses the series
// 2*(t + t^3/3) where t = (x-1)/(x+1); otherwise it uses
// (x-1) - (x-1)^2/2, clamped to [-10, 10]. Never called with x <= 0
// (caller guarantees this, per spec).
func LnApprox(x decimal.Decimal) decimal.Decimal {
	xm1 := x.Sub(decimal.NewFromInt(1))

	if xm1.Abs().LessThan(lnBand) {
		t := xm1.Div(x.Add(decimal.NewFromInt(1)))
		t3 := t.Mul(t).Mul(t)
		return two.Mul(t.Add(t3.Div(three)))
	}

	approx := xm1.Sub(xm1.Mul(xm1).Div(two))
	if approx.LessThan(lnClampL) {
		return lnClampL
	}
	if approx.GreaterThan(lnClampH) {
		return lnClampH
	}
	return approx
}
