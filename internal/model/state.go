package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// RuleStatus 规则状态，按严重程度全序排列。
type RuleStatus string

const (
	StatusSafe     RuleStatus = "safe"
	StatusCaution  RuleStatus = "caution"
	StatusCritical RuleStatus = "critical"
	StatusViolated RuleStatus = "violated"
)

var statusPriority = map[RuleStatus]int{
	StatusViolated: 4,
	StatusCritical: 3,
	StatusCaution:  2,
	StatusSafe:     1,
}

// Priority returns the severity rank: violated > critical > caution > safe.
// Unknown values rank as safe.
func (s RuleStatus) Priority() int {
	if p, ok := statusPriority[s]; ok {
		return p
	}
	return 1
}

// WorseThan reports whether s is strictly more severe than other.
func (s RuleStatus) WorseThan(other RuleStatus) bool {
	return s.Priority() > other.Priority()
}

// DistanceMetric 距离违规还有多远，按规则的自然单位表达。
// Only the fields meaningful for a given rule are set.
type DistanceMetric struct {
	Dollars   *decimal.Decimal `json:"dollars,omitempty"`
	Ticks     *decimal.Decimal `json:"ticks,omitempty"`
	Contracts *int64           `json:"contracts,omitempty"`
	Percent   *decimal.Decimal `json:"percent,omitempty"`
}

// RuleState 单条规则的评估结果。
// RemainingBuffer is signed: negative means already violated. BufferPercent
// is the buffer expressed as 0-100% of the rule's threshold span.
type RuleState struct {
	RuleName            string             `json:"rule_name"`
	CurrentValue        decimal.Decimal    `json:"current_value"`
	Threshold           decimal.Decimal    `json:"threshold"`
	RemainingBuffer     decimal.Decimal    `json:"remaining_buffer"`
	BufferPercent       decimal.Decimal    `json:"buffer_percent"`
	Status              RuleStatus         `json:"status"`
	DistanceToViolation DistanceMetric     `json:"distance_to_violation"`
	Warnings            []string           `json:"warnings"`
	Recoverable         RuleRecoverability `json:"recoverable"`
	Severity            RuleSeverity       `json:"severity"`
	RuleType            RuleType           `json:"rule_type"`
	RecoveryPath        string             `json:"recovery_path,omitempty"`
}

// RuleEvaluationResult 一次完整评估的输出（FROZEN OUTPUT INTERFACE）。
// MaxAllowedRisk holds calculated safe limits, currently max_loss_allowed and
// optionally max_contracts_allowed.
type RuleEvaluationResult struct {
	AccountID        string                     `json:"account_id"`
	Timestamp        time.Time                  `json:"timestamp"`
	RuleStates       map[string]RuleState       `json:"rule_states"`
	MaxAllowedRisk   map[string]decimal.Decimal `json:"max_allowed_risk"`
	OverallRiskLevel RuleStatus                 `json:"overall_risk_level"`
}

// RuleStateSummary 组维度单条规则的最差状态摘要。
type RuleStateSummary struct {
	Status             RuleStatus      `json:"status"`
	RemainingBuffer    decimal.Decimal `json:"remaining_buffer"`
	BufferPercent      decimal.Decimal `json:"buffer_percent"`
	WeakestAccountID   string          `json:"weakest_account_id"`
	WeakestAccountName string          `json:"weakest_account_name"`
}

// GroupStatusDisconnected 组里没有任何已持久化状态时的整体状态。
// It sits outside the RuleStatus order on purpose: it means "no data", not a
// severity level.
const GroupStatusDisconnected = "disconnected"

// GroupRiskEvaluation 账户组的弱账户评估结果。
// 组的安全性由最弱成员决定：同状态下 buffer 最小者胜出。
type GroupRiskEvaluation struct {
	GroupID            string                      `json:"group_id"`
	GroupName          string                      `json:"group_name"`
	OverallStatus      string                      `json:"overall_status"`
	WeakestAccountID   string                      `json:"weakest_account_id"`
	WeakestAccountName string                      `json:"weakest_account_name"`
	RuleStates         map[string]RuleStateSummary `json:"rule_states"`
	Timestamp          time.Time                   `json:"timestamp"`
}
