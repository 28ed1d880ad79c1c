package rules

import (
	"errors"
	"testing"

	"github.com/propgate/propgate/internal/model"
	"github.com/propgate/propgate/internal/pkg/apperrors"
	"github.com/shopspring/decimal"
)

func TestLoaderUnknownFirm(t *testing.T) {
	_, err := NewLoader(nil).Get("ftmo", "eval", "")
	if err == nil {
		t.Fatal("expected error for unknown firm")
	}
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Type != apperrors.ErrUnknownFirm {
		t.Fatalf("error = %v, want UNKNOWN_FIRM", err)
	}
}

func TestLoaderCaseInsensitiveFirmAndAliases(t *testing.T) {
	loader := NewLoader(nil)
	upper, err := loader.Get("APEX", "eval", "")
	if err != nil {
		t.Fatalf("Get(APEX): %v", err)
	}
	if upper.TrailingDrawdown == nil || !upper.TrailingDrawdown.Enabled {
		t.Fatal("apex rules missing trailing drawdown")
	}

	alias, err := loader.Get("myfundedfutures", "funded", "")
	if err != nil {
		t.Fatalf("Get(myfundedfutures): %v", err)
	}
	if alias.Consistency == nil {
		t.Fatal("mff alias did not resolve funded consistency rule")
	}
}

func TestLoaderMemoizesThroughCache(t *testing.T) {
	cache := NewMemoryCache()
	loader := NewLoader(cache)

	first, err := loader.Get("topstep", "eval", "")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	cached, ok := cache.Get(CacheKey("topstep", "eval", DefaultVersion))
	if !ok {
		t.Fatal("rule set not placed in cache")
	}
	if cached != first {
		t.Fatal("cache holds a different instance than the one returned")
	}

	second, err := loader.Get("topstep", "eval", DefaultVersion)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if second != first {
		t.Fatal("second lookup did not hit the cache")
	}
}

func TestMemoryCacheInvalidate(t *testing.T) {
	cache := NewMemoryCache()
	loader := NewLoader(cache)

	if _, err := loader.Get("apex", "pa", ""); err != nil {
		t.Fatalf("Get: %v", err)
	}
	key := CacheKey("apex", "pa", DefaultVersion)
	cache.Invalidate(key)
	if _, ok := cache.Get(key); ok {
		t.Fatal("entry survived invalidation")
	}
}

func TestApexPresets(t *testing.T) {
	loader := NewLoader(nil)

	eval, err := loader.Get("apex", "eval", "")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !eval.TrailingDrawdown.IncludeUnrealizedPnL {
		t.Fatal("apex drawdown must be intraday equity-based")
	}
	if !eval.TrailingDrawdown.MaxDrawdownPercent.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("apex drawdown = %s%%, want 5", eval.TrailingDrawdown.MaxDrawdownPercent)
	}
	if eval.DailyLossLimit != nil {
		t.Fatal("apex has no daily loss limit")
	}
	if eval.MAE == nil || eval.MAE.Recoverable != model.NonRecoverable {
		t.Fatal("apex MAE rule missing or recoverable")
	}
	if eval.MinimumTradingDays == nil || eval.MinimumTradingDays.MinDays != 7 {
		t.Fatal("apex eval requires 7 trading days")
	}
	if !eval.MinimumTradingDays.MinProfitPerDay.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("apex min profit per day = %s, want 50", eval.MinimumTradingDays.MinProfitPerDay)
	}
	if eval.TradingHours.ForcedCloseTime != "16:59" || eval.TradingHours.Timezone != "America/New_York" {
		t.Fatalf("apex close = %s %s, want 16:59 America/New_York", eval.TradingHours.ForcedCloseTime, eval.TradingHours.Timezone)
	}

	pa, err := loader.Get("apex", "pa", "")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if pa.Consistency == nil || !pa.Consistency.MaxSingleDayPercent.Equal(decimal.NewFromInt(30)) {
		t.Fatal("apex PA should carry the 30% consistency rule")
	}
	if pa.ProfitTarget != nil {
		t.Fatal("apex PA has no profit target")
	}
}

func TestTopstepPresets(t *testing.T) {
	eval, err := NewLoader(nil).Get("topstep", "eval", "")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if eval.TrailingDrawdown.IncludeUnrealizedPnL {
		t.Fatal("topstep drawdown is end-of-day balance only")
	}
	if !eval.TrailingDrawdown.MaxDrawdownPercent.Equal(decimal.NewFromInt(4)) {
		t.Fatalf("topstep drawdown = %s%%, want 4", eval.TrailingDrawdown.MaxDrawdownPercent)
	}
	if eval.DailyLossLimit == nil || !eval.DailyLossLimit.MaxLossAmount.Equal(decimal.NewFromInt(1000)) {
		t.Fatal("topstep daily loss limit should be $1000")
	}
	if eval.DailyLossLimit.ResetTime != "16:00" || eval.DailyLossLimit.Timezone != "America/Chicago" {
		t.Fatal("topstep daily loss resets at 16:00 CT")
	}
	if eval.MinimumTradingDays.MinDays != 2 || !eval.MinimumTradingDays.MinProfitPerDay.IsZero() {
		t.Fatal("topstep eval: 2 min days, losing days count")
	}
	if !eval.Consistency.MaxSingleDayPercent.Equal(decimal.NewFromInt(50)) {
		t.Fatal("topstep eval consistency should be 50%")
	}
}

func TestFundedPresets(t *testing.T) {
	loader := NewLoader(nil)

	mff, err := loader.Get("mff", "funded", "")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !mff.Consistency.MaxSingleDayPercent.Equal(decimal.NewFromInt(40)) {
		t.Fatal("mff funded consistency should be 40%")
	}
	if !mff.DailyLossLimit.MaxLossAmount.Equal(decimal.NewFromInt(2500)) {
		t.Fatal("mff funded daily loss should be $2500")
	}
	if mff.MinimumTradingDays.MinDays != 5 {
		t.Fatal("mff funded requires 5 trading days")
	}

	bulenox, err := loader.Get("bulenox", "funded", "")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bulenox.DailyLossLimit.MaxLossAmount.Equal(decimal.NewFromInt(2000)) {
		t.Fatal("bulenox funded daily loss should be $2000")
	}
	if bulenox.MinimumTradingDays != nil {
		t.Fatal("bulenox has no minimum trading days")
	}

	tp, err := loader.Get("takeprofit", "funded", "")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !tp.TrailingDrawdown.IncludeUnrealizedPnL {
		t.Fatal("takeprofit funded drawdown is intraday")
	}
	tpEval, err := loader.Get("takeprofitrader", "eval", "")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if tpEval.TrailingDrawdown.IncludeUnrealizedPnL {
		t.Fatal("takeprofit eval drawdown is end-of-day")
	}
}
