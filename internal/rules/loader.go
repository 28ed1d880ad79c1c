// Package rules resolves firm rule configurations. Presets exist for the
// major futures prop firms; lookups are memoized through an injected cache so
// cache lifetime and invalidation are owned by the caller, not by hidden
// process state.
package rules

import (
	"fmt"
	"strings"
	"sync"

	"github.com/propgate/propgate/internal/model"
	"github.com/propgate/propgate/internal/pkg/apperrors"
	"github.com/shopspring/decimal"
)

// DefaultVersion 默认规则版本。
const DefaultVersion = "1.0"

// RuleCache memoizes resolved rule sets keyed by firm:account_type:version.
// Implementations must be safe for concurrent use.
type RuleCache interface {
	Get(key string) (*model.FirmRules, bool)
	Put(key string, rules *model.FirmRules)
}

// MemoryCache is the default in-process RuleCache.
type MemoryCache struct {
	mu    sync.RWMutex
	rules map[string]*model.FirmRules
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{rules: make(map[string]*model.FirmRules)}
}

func (c *MemoryCache) Get(key string) (*model.FirmRules, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.rules[key]
	return r, ok
}

func (c *MemoryCache) Put(key string, rules *model.FirmRules) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rules[key] = rules
}

// Invalidate drops a single cached entry, e.g. on a rules version bump.
func (c *MemoryCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rules, key)
}

// Loader resolves (firm, account type, version) to a FirmRules preset.
type Loader struct {
	cache RuleCache
}

func NewLoader(cache RuleCache) *Loader {
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &Loader{cache: cache}
}

// CacheKey builds the canonical cache key for a rule set.
func CacheKey(firm, accountType, version string) string {
	return fmt.Sprintf("%s:%s:%s", firm, accountType, version)
}

// Get returns the rule set for a firm and account type. An empty version
// means DefaultVersion. Unknown firms return an UNKNOWN_FIRM error.
func (l *Loader) Get(firm, accountType, version string) (*model.FirmRules, error) {
	if version == "" {
		version = DefaultVersion
	}
	key := CacheKey(firm, accountType, version)
	if cached, ok := l.cache.Get(key); ok {
		return cached, nil
	}

	var rules *model.FirmRules
	switch strings.ToLower(firm) {
	case "apex":
		rules = apexRules(accountType)
	case "topstep":
		rules = topstepRules(accountType)
	case "mff", "myfundedfutures":
		rules = mffRules(accountType)
	case "bulenox":
		rules = bulenoxRules(accountType)
	case "takeprofit", "takeprofitrader":
		rules = takeprofitRules(accountType)
	default:
		return nil, apperrors.New(apperrors.ErrUnknownFirm,
			fmt.Sprintf("unknown firm: %s (supported: %s)", firm, strings.Join(SupportedFirms(), ", ")), nil)
	}

	l.cache.Put(key, rules)
	return rules, nil
}

func SupportedFirms() []string {
	return []string{"apex", "topstep", "mff", "bulenox", "takeprofit"}
}

func SupportedAccountTypes() []string {
	return []string{"eval", "pa", "funded"}
}

var (
	d4    = decimal.NewFromInt(4)
	d5    = decimal.NewFromInt(5)
	d30   = decimal.NewFromInt(30)
	d40   = decimal.NewFromInt(40)
	d50   = decimal.NewFromInt(50)
	d1000 = decimal.NewFromInt(1000)
	d2000 = decimal.NewFromInt(2000)
	d2500 = decimal.NewFromInt(2500)
	d3000 = decimal.NewFromInt(3000)
)

func hardObjective(r model.RuleRecoverability) model.RuleTags {
	return model.RuleTags{Recoverable: r, Severity: model.HardFail, RuleType: model.Objective}
}

func payoutObjective() model.RuleTags {
	return model.RuleTags{Recoverable: model.Recoverable, Severity: model.PayoutBlock, RuleType: model.Objective}
}

// apexRules Apex Trader Funding 规则。
// Intraday equity-based 5% trailing drawdown plus MAE; no daily loss limit.
// Eval adds the profit target and 7 qualifying trading days; PA adds the 30%
// payout consistency rule.
func apexRules(accountType string) *model.FirmRules {
	rules := &model.FirmRules{
		TrailingDrawdown: &model.TrailingDrawdownRule{
			Enabled:              true,
			MaxDrawdownPercent:   d5,
			IncludeUnrealizedPnL: true,
			RuleTags:             hardObjective(model.NonRecoverable),
		},
		MAE: &model.MAERule{
			Enabled:                    true,
			MaxAdverseExcursionPercent: d5,
			RuleTags:                   hardObjective(model.NonRecoverable),
		},
		TradingHours: &model.TradingHoursRule{
			Enabled:         true,
			ForcedCloseTime: "16:59",
			Timezone:        "America/New_York",
			RuleTags:        hardObjective(model.NonRecoverable),
		},
	}

	switch accountType {
	case "eval":
		rules.ProfitTarget = &model.ProfitTargetRule{
			Enabled:      true,
			TargetAmount: d3000,
			RuleTags:     hardObjective(model.Recoverable),
		}
		rules.MinimumTradingDays = &model.MinimumTradingDaysRule{
			Enabled:         true,
			MinDays:         7,
			MinProfitPerDay: d50,
			RuleTags:        hardObjective(model.Recoverable),
		}
		// Contract limits scale with account size and are configured per
		// account rather than preset here.
	case "pa":
		rules.Consistency = &model.ConsistencyRule{
			Enabled:             true,
			MaxSingleDayPercent: d30,
			RuleTags:            payoutObjective(),
		}
	}

	return rules
}

// topstepRules Topstep 规则。
// End-of-day (balance-only) 4% drawdown, $1000 daily loss limit that resets
// at 16:00 CT, flat by 15:10 CT. Eval adds target, 50% consistency and a
// 2-day minimum where losing days still count.
func topstepRules(accountType string) *model.FirmRules {
	rules := &model.FirmRules{
		TrailingDrawdown: &model.TrailingDrawdownRule{
			Enabled:              true,
			MaxDrawdownPercent:   d4,
			IncludeUnrealizedPnL: false,
			RuleTags:             hardObjective(model.NonRecoverable),
		},
		DailyLossLimit: &model.DailyLossLimitRule{
			Enabled:       true,
			MaxLossAmount: d1000,
			ResetTime:     "16:00",
			Timezone:      "America/Chicago",
			RuleTags:      hardObjective(model.Recoverable),
		},
		TradingHours: &model.TradingHoursRule{
			Enabled:         true,
			ForcedCloseTime: "15:10",
			Timezone:        "America/Chicago",
			RuleTags:        hardObjective(model.NonRecoverable),
		},
	}

	if accountType == "eval" {
		rules.ProfitTarget = &model.ProfitTargetRule{
			Enabled:      true,
			TargetAmount: d3000,
			RuleTags:     hardObjective(model.Recoverable),
		}
		rules.Consistency = &model.ConsistencyRule{
			Enabled:             true,
			MaxSingleDayPercent: d50,
			RuleTags:            hardObjective(model.Recoverable),
		}
		rules.MinimumTradingDays = &model.MinimumTradingDaysRule{
			Enabled:         true,
			MinDays:         2,
			MinProfitPerDay: decimal.Zero,
			RuleTags:        hardObjective(model.Recoverable),
		}
	}

	return rules
}

// mffRules My Funded Futures 规则。
func mffRules(accountType string) *model.FirmRules {
	rules := &model.FirmRules{
		TrailingDrawdown: &model.TrailingDrawdownRule{
			Enabled:              true,
			MaxDrawdownPercent:   d5,
			IncludeUnrealizedPnL: true,
			RuleTags:             hardObjective(model.NonRecoverable),
		},
	}

	switch accountType {
	case "eval":
		rules.ProfitTarget = &model.ProfitTargetRule{
			Enabled:      true,
			TargetAmount: d3000,
			RuleTags:     hardObjective(model.Recoverable),
		}
	case "funded":
		rules.Consistency = &model.ConsistencyRule{
			Enabled:             true,
			MaxSingleDayPercent: d40,
			RuleTags:            payoutObjective(),
		}
		rules.MinimumTradingDays = &model.MinimumTradingDaysRule{
			Enabled:         true,
			MinDays:         5,
			MinProfitPerDay: decimal.Zero,
			RuleTags:        hardObjective(model.Recoverable),
		}
		rules.DailyLossLimit = &model.DailyLossLimitRule{
			Enabled:       true,
			MaxLossAmount: d2500,
			ResetTime:     "17:00",
			Timezone:      "America/Chicago",
			RuleTags:      hardObjective(model.Recoverable),
		}
	}

	return rules
}

// bulenoxRules Bulenox 规则。Eval 无最少交易天数要求。
func bulenoxRules(accountType string) *model.FirmRules {
	rules := &model.FirmRules{
		TrailingDrawdown: &model.TrailingDrawdownRule{
			Enabled:              true,
			MaxDrawdownPercent:   d5,
			IncludeUnrealizedPnL: true,
			RuleTags:             hardObjective(model.NonRecoverable),
		},
	}

	switch accountType {
	case "eval":
		rules.ProfitTarget = &model.ProfitTargetRule{
			Enabled:      true,
			TargetAmount: d3000,
			RuleTags:     hardObjective(model.Recoverable),
		}
	case "funded":
		rules.Consistency = &model.ConsistencyRule{
			Enabled:             true,
			MaxSingleDayPercent: d40,
			RuleTags:            payoutObjective(),
		}
		rules.DailyLossLimit = &model.DailyLossLimitRule{
			Enabled:       true,
			MaxLossAmount: d2000,
			ResetTime:     "17:00",
			Timezone:      "America/Chicago",
			RuleTags:      hardObjective(model.Recoverable),
		}
	}

	return rules
}

// takeprofitRules TakeProfitTrader 规则。
// Eval uses an end-of-day drawdown; funded switches to intraday equity and
// carries the 50% consistency review.
func takeprofitRules(accountType string) *model.FirmRules {
	if accountType == "eval" {
		return &model.FirmRules{
			TrailingDrawdown: &model.TrailingDrawdownRule{
				Enabled:              true,
				MaxDrawdownPercent:   d5,
				IncludeUnrealizedPnL: false,
				RuleTags:             hardObjective(model.NonRecoverable),
			},
			ProfitTarget: &model.ProfitTargetRule{
				Enabled:      true,
				TargetAmount: d3000,
				RuleTags:     hardObjective(model.Recoverable),
			},
			TradingHours: &model.TradingHoursRule{
				Enabled:         true,
				ForcedCloseTime: "16:00",
				Timezone:        "America/Chicago",
				RuleTags:        hardObjective(model.NonRecoverable),
			},
			MinimumTradingDays: &model.MinimumTradingDaysRule{
				Enabled:         true,
				MinDays:         5,
				MinProfitPerDay: decimal.Zero,
				RuleTags:        hardObjective(model.Recoverable),
			},
		}
	}

	return &model.FirmRules{
		TrailingDrawdown: &model.TrailingDrawdownRule{
			Enabled:              true,
			MaxDrawdownPercent:   d5,
			IncludeUnrealizedPnL: true,
			RuleTags:             hardObjective(model.NonRecoverable),
		},
		Consistency: &model.ConsistencyRule{
			Enabled:             true,
			MaxSingleDayPercent: d50,
			RuleTags:            payoutObjective(),
		},
	}
}
