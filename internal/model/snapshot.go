package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountSnapshot 是规则引擎的唯一输入。
// All data sources (mock, Tradovate bridge, NinjaTrader add-on) must convert
// to this format before evaluation. The field set is frozen for wire
// compatibility: downstream consumers serialize it to JSON as-is.
//
// Monetary fields use decimal.Decimal: thresholds are compared at cent
// precision and boundary equality decides violation, so float64 is forbidden
// here.
type AccountSnapshot struct {
	AccountID    string          `json:"account_id"`
	Timestamp    time.Time       `json:"timestamp"`
	Equity       decimal.Decimal `json:"equity"`
	Balance      decimal.Decimal `json:"balance"`
	RealizedPnL  decimal.Decimal `json:"realized_pnl"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`

	// HighWaterMark 由后端维护（只升不降），引擎不计算它。
	HighWaterMark decimal.Decimal `json:"high_water_mark"`

	// DailyPnL is realized PnL since the last daily reset. Unrealized PnL
	// must already be excluded by the producer.
	DailyPnL        decimal.Decimal `json:"daily_pnl"`
	StartingBalance decimal.Decimal `json:"starting_balance"`

	// DailyPnLHistory maps YYYY-MM-DD to that day's realized PnL. Only the
	// consistency and minimum-trading-days rules need it; nil is fine for
	// everything else.
	DailyPnLHistory map[string]decimal.Decimal `json:"daily_pnl_history,omitempty"`

	OpenPositions []PositionSnapshot `json:"open_positions"`
}

// PositionSnapshot 当前持仓快照。
type PositionSnapshot struct {
	Symbol       string          `json:"symbol"`
	Quantity     int64           `json:"quantity"` // positive = long, negative = short
	AvgPrice     decimal.Decimal `json:"avg_price"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	OpenedAt     time.Time       `json:"opened_at"`

	// PeakUnrealizedLoss is the most negative unrealized PnL this position
	// has ever reached. Monotonically non-increasing while the position is
	// open; the MAE rule evaluates against this peak, not the current loss.
	PeakUnrealizedLoss decimal.Decimal `json:"peak_unrealized_loss"`
}

// GrossPositionSize 跨品种的总手数 (Σ |quantity|)，不做多空轧差。
func (s *AccountSnapshot) GrossPositionSize() int64 {
	var total int64
	for _, pos := range s.OpenPositions {
		q := pos.Quantity
		if q < 0 {
			q = -q
		}
		total += q
	}
	return total
}
