package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// FinanceReport aggregates settlement and volume data for a date range.
// Kept and adapted from the teacher's backoffice finance report — the
// house-treasury/MM-PnL columns it aggregated don't exist in this domain
// (no house market-maker here), but the "aggregate money movement over a
// date range for observability" shape is reused as-is.
type FinanceReport struct {
	From            time.Time `json:"from"`
	To              time.Time `json:"to"`
	TotalVolume     string    `json:"total_volume"`
	TotalPayouts    string    `json:"total_payouts"`
	SettlementCount int       `json:"settlement_count"`
	EventCount      int       `json:"event_count"`
}

// ReportService computes aggregate views over settled activity.
type ReportService struct {
	db *sqlx.DB
}

func NewReportService(db *sqlx.DB) *ReportService {
	return &ReportService{db: db}
}

// GetFinanceReport aggregates bets and settlements created within [from, to).
func (s *ReportService) GetFinanceReport(ctx context.Context, from, to time.Time) (*FinanceReport, error) {
	type volRow struct {
		TotalVolume string `db:"total_volume"`
		EventCount  int    `db:"event_count"`
	}
	var vol volRow
	if err := s.db.GetContext(ctx, &vol, `
		SELECT
			COALESCE(SUM(amount_usdc), 0)::text AS total_volume,
			COUNT(DISTINCT event_id)            AS event_count
		FROM bets
		WHERE "timestamp" >= $1 AND "timestamp" < $2`, from, to); err != nil {
		return nil, fmt.Errorf("report.GetFinanceReport bets: %w", err)
	}

	type settleRow struct {
		TotalPayouts    string `db:"total_payouts"`
		SettlementCount int    `db:"settlement_count"`
	}
	var settle settleRow
	if err := s.db.GetContext(ctx, &settle, `
		SELECT
			COALESCE(SUM(p.payout_amount), 0)::text AS total_payouts,
			COUNT(DISTINCT s.id)                     AS settlement_count
		FROM settlements s
		LEFT JOIN payouts p ON p.settlement_id = s.id
		WHERE s.settled_at >= $1 AND s.settled_at < $2`, from, to); err != nil {
		return nil, fmt.Errorf("report.GetFinanceReport settlements: %w", err)
	}

	return &FinanceReport{
		From:            from,
		To:              to,
		TotalVolume:     vol.TotalVolume,
		TotalPayouts:    settle.TotalPayouts,
		SettlementCount: settle.SettlementCount,
		EventCount:      vol.EventCount,
	}, nil
}
