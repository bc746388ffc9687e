// Package advisory implements spec §4.G's periodic model-advisory poller:
// for every Active event, compute AMM prices, gate on significant change,
// optionally ask an external advisory service for a recommendation, and
// broadcast. The advisory service is purely informative — its output never
// changes stored bet prices or ledger state.
package advisory

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mitra-labs/predcore/internal/domain"
	"github.com/mitra-labs/predcore/internal/lmsr"
	"github.com/mitra-labs/predcore/internal/repository"
)

// defaultLiquidity is the LMSR liquidity parameter b, matching the default
// used to price bets in internal/service so the poller's "current prices"
// agree with what BettingService just computed. Overridable via
// Poller.SetLiquidity, wired from config.LMSRConfig at boot.
var defaultLiquidity = decimal.NewFromInt(100)

// ammPrices recomputes the current AMM price vector from a share vector.
func ammPrices(outcomes []string, q map[string]decimal.Decimal, liquidity decimal.Decimal) map[string]decimal.Decimal {
	engine := lmsr.New(liquidity, outcomes)
	return engine.Prices(q)
}

// Broadcaster is the minimal interface the poller needs from the WS hub.
type Broadcaster interface {
	PublishPriceUpdate(eventID uuid.UUID, prices map[string]decimal.Decimal, volume decimal.Decimal)
}

// significanceThreshold is the default max relative per-outcome price change
// (1%) that must be exceeded before a broadcast is worth sending.
var significanceThreshold = decimal.NewFromFloat(0.01)

// request is the payload POSTed to the external advisory service.
type request struct {
	EventID       uuid.UUID                  `json:"event_id"`
	CurrentPrices map[string]decimal.Decimal `json:"current_prices"`
	Volume        decimal.Decimal            `json:"volume"`
	BetCount      int                        `json:"bet_count"`
	AgeHours      float64                    `json:"age_hours"`
}

// response is the advisory service's optional recommendation. A nil or
// incomplete Prices map means "use the AMM prices as-is".
type response struct {
	Prices map[string]decimal.Decimal `json:"prices"`
}

// Poller runs the periodic advisory sweep described in spec §4.G.
// Grounded structurally on PriceService's parallel-fetch-with-timeout and
// TTL-cache idiom, adapted here to one HTTP call per Active event instead
// of N parallel exchange calls for one global price.
type Poller struct {
	events   *repository.EventRepository
	bets     *repository.BetRepository
	bcast    Broadcaster
	client   *http.Client
	endpoint string
	log      *slog.Logger
	interval time.Duration

	// snapshotMu guards lastBroadcast, the advisory poller's single writer
	// cache of the last prices published per event (spec §5: "Advisory
	// last-price cache: RW-locked, single writer").
	snapshotMu    sync.RWMutex
	lastBroadcast map[uuid.UUID]map[string]decimal.Decimal

	liquidity decimal.Decimal
}

// SetLiquidity overrides the LMSR liquidity parameter b (default 100).
func (p *Poller) SetLiquidity(b decimal.Decimal) { p.liquidity = b }

// NewPoller constructs a Poller. endpoint may be empty, in which case step 3
// (the optional external recommendation) is skipped and AMM prices are
// always broadcast as-is.
func NewPoller(events *repository.EventRepository, bets *repository.BetRepository, bcast Broadcaster, endpoint string, timeout, interval time.Duration, logger *slog.Logger) *Poller {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if interval <= 0 {
		interval = 3 * time.Second
	}
	return &Poller{
		events: events, bets: bets, bcast: bcast,
		client:        &http.Client{Timeout: timeout},
		endpoint:      endpoint,
		log:           logger,
		interval:      interval,
		lastBroadcast: make(map[uuid.UUID]map[string]decimal.Decimal),
		liquidity:     defaultLiquidity,
	}
}

// Run blocks, ticking on the configured interval until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	defer p.recoverAndLog()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info("advisory poller: shutting down")
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	events, err := p.events.ListActive(ctx)
	if err != nil {
		p.log.Error("advisory poller: list events failed", "error", err)
		return
	}
	for _, event := range events {
		p.pollOne(ctx, event)
	}
}

func (p *Poller) pollOne(ctx context.Context, event *domain.Event) {
	bets, err := p.bets.ListByEvent(ctx, event.ID)
	if err != nil {
		p.log.Error("advisory poller: list bets failed", "event_id", event.ID, "error", err)
		return
	}

	q := make(map[string]decimal.Decimal, len(event.Outcomes))
	for _, o := range event.Outcomes {
		q[o] = decimal.Zero
	}
	volume := decimal.Zero
	for _, b := range bets {
		q[b.Outcome] = q[b.Outcome].Add(b.Shares)
		volume = volume.Add(b.AmountUSDC)
	}

	// 1. Compute AMM-derived current prices.
	prices := ammPrices(event.Outcomes, q, p.liquidity)

	// 2. Significance gate against the last broadcast snapshot.
	if !p.significantChange(event.ID, prices) {
		return
	}

	// 3. Optionally ask the advisory service for a recommendation.
	broadcastPrices := prices
	if p.endpoint != "" {
		if recommended, ok := p.fetchRecommendation(ctx, event, prices, volume, len(bets)); ok {
			broadcastPrices = recommended
		}
	}

	// 4. Publish.
	if p.bcast != nil {
		p.bcast.PublishPriceUpdate(event.ID, broadcastPrices, volume)
	}

	// 5. Update the last-broadcast snapshot (the gate compares against
	// the AMM prices, not the advisory recommendation, since the AMM
	// state is what actually evolves between ticks).
	p.snapshotMu.Lock()
	p.lastBroadcast[event.ID] = prices
	p.snapshotMu.Unlock()
}

// significantChange reports whether any outcome's price moved by more than
// significanceThreshold relative to the last broadcast snapshot. A missing
// snapshot (first tick for this event) always counts as significant.
func (p *Poller) significantChange(eventID uuid.UUID, prices map[string]decimal.Decimal) bool {
	p.snapshotMu.RLock()
	last, ok := p.lastBroadcast[eventID]
	p.snapshotMu.RUnlock()
	if !ok {
		return true
	}
	for outcome, price := range prices {
		prior, seen := last[outcome]
		if !seen || prior.IsZero() {
			return true
		}
		relChange := price.Sub(prior).Abs().Div(prior)
		if relChange.GreaterThan(significanceThreshold) {
			return true
		}
	}
	return false
}

// fetchRecommendation POSTs the advisory request and returns the
// recommended prices if the service responded with a complete price
// vector; otherwise (ok == false) the caller should broadcast AMM prices.
func (p *Poller) fetchRecommendation(ctx context.Context, event *domain.Event, prices map[string]decimal.Decimal, volume decimal.Decimal, betCount int) (map[string]decimal.Decimal, bool) {
	reqBody := request{
		EventID: event.ID, CurrentPrices: prices, Volume: volume,
		BetCount: betCount, AgeHours: time.Since(event.CreatedAt).Hours(),
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, false
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, false
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		p.log.Warn("advisory poller: recommendation request failed, using AMM prices", "event_id", event.ID, "error", err)
		return nil, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, false
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false
	}

	var parsed response
	if err := json.Unmarshal(body, &parsed); err != nil || len(parsed.Prices) != len(prices) {
		return nil, false
	}
	for o := range prices {
		if _, ok := parsed.Prices[o]; !ok {
			return nil, false
		}
	}
	return parsed.Prices, true
}

func (p *Poller) recoverAndLog() {
	if r := recover(); r != nil {
		p.log.Error("PANIC recovered in advisory poller", "panic", r)
	}
}
