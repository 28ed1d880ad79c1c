package model

import "github.com/shopspring/decimal"

// RateLimitConfig 定义账户接入方的限流规则
type RateLimitConfig struct {
	QPS   float64 `json:"qps"`
	Burst int     `json:"burst"`
}

// TrackedAccount 代表一个被跟踪的资助账户 (funded account)。
// Firm/AccountType/RuleVersion select the rule set the engine evaluates
// against; APIKey is the gateway credential the snapshot producer uses.
type TrackedAccount struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Firm            string          `json:"firm"`         // apex, topstep, mff, bulenox, takeprofit
	AccountType     string          `json:"account_type"` // eval, pa, funded
	RuleVersion     string          `json:"rule_version"`
	StartingBalance decimal.Decimal `json:"starting_balance"`
	APIKey          string          `json:"api_key,omitempty"`
	Rate            RateLimitConfig `json:"rate_limit"`
}

// AccountGroup 账户组：一组账户共享弱账户评估。
type AccountGroup struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	AccountIDs []string `json:"account_ids"`
}
