package lmsr

import (
	"github.com/mitra-labs/predcore/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	maxIterations  = 10
	costTolerance  = "0.0001" // 10^-4
	minFill        = "0.000001"
	defaultB       = "100"
	safeQOverB     = "1.5" // spec §9: monitor max(|q_i/b|); this is the documented safe bound
)

var (
	priceMin      = decimal.NewFromFloat(0.01)
	priceMax      = decimal.NewFromFloat(0.99)
	costToleranceD = decimal.RequireFromString(costTolerance)
	minFillD       = decimal.RequireFromString(minFill)
)

// Engine holds the LMSR state for one event: the liquidity parameter b and
// the current outstanding shares per outcome. Outcomes is kept as an
// explicit ordered slice (not map iteration order) so that summations are
// reproducible bit-for-bit across executions, per the determinism
// requirement of spec §4.B.
type Engine struct {
	B        decimal.Decimal
	Outcomes []string
}

// New creates an Engine with the given liquidity parameter and ordered
// outcome set. liquidity <= 0 falls back to the default of 100.
func New(liquidity decimal.Decimal, outcomes []string) *Engine {
	if !liquidity.IsPositive() {
		liquidity = decimal.RequireFromString(defaultB)
	}
	out := make([]string, len(outcomes))
	copy(out, outcomes)
	return &Engine{B: liquidity, Outcomes: out}
}

// Prices computes p_i for every outcome given the current shares vector q,
// per spec §4.B:
//  1. If all q_i = 0, return uniform 1/n.
//  2. e_i = exp_approx(q_i/b), S = Σe_i; if S = 0, return uniform.
//  3. Raw p_i = e_i/S; clamp to [P_MIN,P_MAX]; renormalize; reclamp; renormalize.
func (e *Engine) Prices(q map[string]decimal.Decimal) map[string]decimal.Decimal {
	n := len(e.Outcomes)
	if n == 0 {
		return map[string]decimal.Decimal{}
	}

	allZero := true
	for _, o := range e.Outcomes {
		if v, ok := q[o]; ok && !v.IsZero() {
			allZero = false
			break
		}
	}
	if allZero {
		return e.uniform()
	}

	expVals := make(map[string]decimal.Decimal, n)
	sum := decimal.Zero
	for _, o := range e.Outcomes {
		qi := q[o]
		ei := ExpApprox(qi.Div(e.B))
		expVals[o] = ei
		sum = sum.Add(ei)
	}
	if sum.IsZero() {
		return e.uniform()
	}

	raw := make(map[string]decimal.Decimal, n)
	for _, o := range e.Outcomes {
		raw[o] = expVals[o].Div(sum)
	}
	return e.twoPassRenormalize(raw)
}

// twoPassRenormalize implements the clamp→renormalize→reclamp→renormalize
// sequence that guarantees |Σp_i − 1| ≤ ε while preserving [P_MIN,P_MAX].
func (e *Engine) twoPassRenormalize(raw map[string]decimal.Decimal) map[string]decimal.Decimal {
	pass := raw
	for i := 0; i < 2; i++ {
		clamped := make(map[string]decimal.Decimal, len(pass))
		sum := decimal.Zero
		for _, o := range e.Outcomes {
			p := pass[o]
			if p.LessThan(priceMin) {
				p = priceMin
			} else if p.GreaterThan(priceMax) {
				p = priceMax
			}
			clamped[o] = p
			sum = sum.Add(p)
		}
		normalized := make(map[string]decimal.Decimal, len(clamped))
		for _, o := range e.Outcomes {
			if sum.IsZero() {
				normalized[o] = clamped[o]
				continue
			}
			normalized[o] = clamped[o].Div(sum)
		}
		pass = normalized
	}
	return pass
}

func (e *Engine) uniform() map[string]decimal.Decimal {
	n := decimal.NewFromInt(int64(len(e.Outcomes)))
	out := make(map[string]decimal.Decimal, len(e.Outcomes))
	for _, o := range e.Outcomes {
		out[o] = decimal.NewFromInt(1).Div(n)
	}
	return out
}

// Cost computes the LMSR cost function C(q) = b * ln(Σ exp(q_i/b)) using the
// package's decimal exp/ln approximations.
func (e *Engine) Cost(q map[string]decimal.Decimal) decimal.Decimal {
	sum := decimal.Zero
	for _, o := range e.Outcomes {
		sum = sum.Add(ExpApprox(q[o].Div(e.B)))
	}
	return e.B.Mul(LnApprox(sum))
}

// BuyResult is the outcome of a successful Buy call.
type BuyResult struct {
	Shares    decimal.Decimal
	FillPrice decimal.Decimal
	NewPrices map[string]decimal.Decimal
}

// Buy solves for Δ ≥ 0 such that C(q + Δ·e_k) − C(q) = A, per spec §4.B:
//  1. Reject if k unknown or A ≤ 0.
//  2. Initial estimate Δ₀ = A / prices(q)[k].
//  3. Iterate at most 10 times, adjusting Δ by (A − ΔC)/prices(q)[k].
//  4. Guard: Δ ≥ 10⁻⁶ (minimum fill).
//  5. Return (shares=Δ, fill_price, new_prices).
func (e *Engine) Buy(q map[string]decimal.Decimal, outcome string, amount decimal.Decimal) (*BuyResult, error) {
	found := false
	for _, o := range e.Outcomes {
		if o == outcome {
			found = true
			break
		}
	}
	if !found {
		return nil, domain.ErrUnknownOutcome
	}
	if !amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}

	currentPrices := e.Prices(q)
	pk := currentPrices[outcome]
	if pk.IsZero() {
		pk = priceMin
	}

	delta := amount.Div(pk)
	baseCost := e.Cost(q)

	for i := 0; i < maxIterations; i++ {
		trial := cloneShares(q)
		trial[outcome] = trial[outcome].Add(delta)
		deltaCost := e.Cost(trial).Sub(baseCost)

		diff := deltaCost.Sub(amount)
		if diff.Abs().LessThan(costToleranceD) {
			break
		}
		if pk.IsZero() {
			break
		}
		delta = delta.Add(amount.Sub(deltaCost).Div(pk))
		if delta.IsNegative() {
			delta = decimal.Zero
		}
	}

	if delta.LessThan(minFillD) {
		delta = minFillD
	}

	newShares := cloneShares(q)
	newShares[outcome] = newShares[outcome].Add(delta)
	newPrices := e.Prices(newShares)

	return &BuyResult{
		Shares:    delta,
		FillPrice: newPrices[outcome],
		NewPrices: newPrices,
	}, nil
}

// MaxQOverB reports the largest |q_i/b| across outcomes, so callers can
// monitor the LMSR domain bound flagged in spec §9 (raise b or use a
// higher-order polynomial once this exceeds ~1.5).
func (e *Engine) MaxQOverB(q map[string]decimal.Decimal) decimal.Decimal {
	max := decimal.Zero
	for _, o := range e.Outcomes {
		v := q[o].Div(e.B).Abs()
		if v.GreaterThan(max) {
			max = v
		}
	}
	return max
}

func cloneShares(q map[string]decimal.Decimal) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(q))
	for k, v := range q {
		out[k] = v
	}
	return out
}
