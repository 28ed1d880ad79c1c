package model

import "time"

// RuleEventType 审计事件类型
type RuleEventType string

const (
	EventStateChange   RuleEventType = "state_change"   // 状态跃迁
	EventWarning       RuleEventType = "warning"        // caution/critical
	EventViolation     RuleEventType = "violation"      // 违规
	EventAccountUpdate RuleEventType = "account_update" // HWM 更新等账户级变化
	EventDailyReset    RuleEventType = "daily_reset"    // 日内计数器重置
)

// RuleEvent 代表一条规则审计记录。
// 每次评估产生的告警、违规和状态跃迁都会落到这里，供事后回放取证。
type RuleEvent struct {
	ID        string        `json:"id"` // UUID
	AccountID string        `json:"account_id"`
	EventType RuleEventType `json:"event_type"`

	RuleName       string `json:"rule_name,omitempty"`
	PreviousStatus string `json:"previous_status,omitempty"`
	CurrentStatus  string `json:"current_status,omitempty"`
	Message        string `json:"message"`

	// 业务上下文 (remaining buffer, buffer percent, warnings...)
	Details map[string]interface{} `json:"details"`

	CreatedAt time.Time `json:"created_at"`
}
