package model

import "github.com/shopspring/decimal"

// RuleRecoverability 规则违反后能否恢复
type RuleRecoverability string

const (
	NonRecoverable RuleRecoverability = "non_recoverable" // 无法挽回，账户直接失败
	Recoverable    RuleRecoverability = "recoverable"     // 可以修复
	Sometimes      RuleRecoverability = "sometimes"       // 视具体情况而定
)

// RuleSeverity 违规后果的严重程度
type RuleSeverity string

const (
	HardFail    RuleSeverity = "hard_fail"    // 账户立即失败
	PayoutBlock RuleSeverity = "payout_block" // 阻止出金，账户继续
	SoftRule    RuleSeverity = "soft_rule"    // 可能触发人工审查
)

// RuleType objective 规则可以纯数学判定，subjective 只能给建议
type RuleType string

const (
	Objective     RuleType = "objective"
	Subjective    RuleType = "subjective"
	SemiObjective RuleType = "semi_objective"
)

// RuleTags carries the classification metadata every rule configuration
// shares. The tags never change the numeric calculation, only the advisory
// text attached to the resulting state.
type RuleTags struct {
	Recoverable RuleRecoverability `json:"recoverable" mapstructure:"recoverable"`
	Severity    RuleSeverity       `json:"severity" mapstructure:"severity"`
	RuleType    RuleType           `json:"rule_type" mapstructure:"rule_type"`
}

// TrailingDrawdownRule 跟踪回撤：从历史最高权益 (HWM) 回撤超过百分比即失败。
type TrailingDrawdownRule struct {
	Enabled              bool            `json:"enabled" mapstructure:"enabled"`
	MaxDrawdownPercent   decimal.Decimal `json:"max_drawdown_percent" mapstructure:"max_drawdown_percent"` // e.g. 5 for 5%
	IncludeUnrealizedPnL bool            `json:"include_unrealized_pnl" mapstructure:"include_unrealized_pnl"`
	RuleTags             `mapstructure:",squash"`
}

// DailyLossLimitRule 单日亏损上限，仅计已实现盈亏，按 ResetTime 重置。
type DailyLossLimitRule struct {
	Enabled       bool            `json:"enabled" mapstructure:"enabled"`
	MaxLossAmount decimal.Decimal `json:"max_loss_amount" mapstructure:"max_loss_amount"`
	ResetTime     string          `json:"reset_time" mapstructure:"reset_time"` // "17:00"
	Timezone      string          `json:"timezone" mapstructure:"timezone"`
	RuleTags      `mapstructure:",squash"`
}

// OverallMaxLossRule 总亏损上限。
type OverallMaxLossRule struct {
	Enabled             bool            `json:"enabled" mapstructure:"enabled"`
	MaxLossAmount       decimal.Decimal `json:"max_loss_amount" mapstructure:"max_loss_amount"`
	FromStartingBalance bool            `json:"from_starting_balance" mapstructure:"from_starting_balance"`
	RuleTags            `mapstructure:",squash"`
}

// MaxPositionSizeRule 最大持仓手数（跨品种毛持仓，不换算微型合约）。
type MaxPositionSizeRule struct {
	Enabled      bool  `json:"enabled" mapstructure:"enabled"`
	MaxContracts int64 `json:"max_contracts" mapstructure:"max_contracts"`
	RuleTags     `mapstructure:",squash"`
}

// MAERule 最大不利偏移：按持仓曾经达到的最差浮亏评估，回本也不豁免。
type MAERule struct {
	Enabled                    bool            `json:"enabled" mapstructure:"enabled"`
	MaxAdverseExcursionPercent decimal.Decimal `json:"max_adverse_excursion_percent" mapstructure:"max_adverse_excursion_percent"`
	RuleTags                   `mapstructure:",squash"`
}

// ConsistencyRule 一致性规则：单日盈利占总盈利的比例上限。
type ConsistencyRule struct {
	Enabled             bool            `json:"enabled" mapstructure:"enabled"`
	MaxSingleDayPercent decimal.Decimal `json:"max_single_day_percent" mapstructure:"max_single_day_percent"` // e.g. 50 for 50%
	RuleTags            `mapstructure:",squash"`
}

// TradingHoursRule 强制平仓时间，例如 Topstep 的 3:10 PM CT。
type TradingHoursRule struct {
	Enabled         bool   `json:"enabled" mapstructure:"enabled"`
	ForcedCloseTime string `json:"forced_close_time" mapstructure:"forced_close_time"` // "15:10"
	Timezone        string `json:"timezone" mapstructure:"timezone"`
	RuleTags        `mapstructure:",squash"`
}

// MinimumTradingDaysRule 最少交易天数要求。
type MinimumTradingDaysRule struct {
	Enabled         bool            `json:"enabled" mapstructure:"enabled"`
	MinDays         int             `json:"min_days" mapstructure:"min_days"`
	MinProfitPerDay decimal.Decimal `json:"min_profit_per_day" mapstructure:"min_profit_per_day"`
	RuleTags        `mapstructure:",squash"`
}

// ProfitTargetRule 盈利目标。
type ProfitTargetRule struct {
	Enabled      bool            `json:"enabled" mapstructure:"enabled"`
	TargetAmount decimal.Decimal `json:"target_amount" mapstructure:"target_amount"`
	RuleTags     `mapstructure:",squash"`
}

// FirmRules is the complete rule set for one firm / account type / version.
// Each pointer is an optional, independently enabled rule: nil means the firm
// simply does not have that rule. "Enabled if present and Enabled" is the
// contract the engine evaluates against.
type FirmRules struct {
	TrailingDrawdown   *TrailingDrawdownRule   `json:"trailing_drawdown,omitempty" mapstructure:"trailing_drawdown"`
	DailyLossLimit     *DailyLossLimitRule     `json:"daily_loss_limit,omitempty" mapstructure:"daily_loss_limit"`
	OverallMaxLoss     *OverallMaxLossRule     `json:"overall_max_loss,omitempty" mapstructure:"overall_max_loss"`
	MaxPositionSize    *MaxPositionSizeRule    `json:"max_position_size,omitempty" mapstructure:"max_position_size"`
	MAE                *MAERule                `json:"mae,omitempty" mapstructure:"mae"`
	Consistency        *ConsistencyRule        `json:"consistency,omitempty" mapstructure:"consistency"`
	TradingHours       *TradingHoursRule       `json:"trading_hours,omitempty" mapstructure:"trading_hours"`
	MinimumTradingDays *MinimumTradingDaysRule `json:"minimum_trading_days,omitempty" mapstructure:"minimum_trading_days"`
	ProfitTarget       *ProfitTargetRule       `json:"profit_target,omitempty" mapstructure:"profit_target"`
}
