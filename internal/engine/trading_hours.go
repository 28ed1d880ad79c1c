package engine

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/propgate/propgate/internal/model"
	"github.com/shopspring/decimal"
)

// tradingHours 强制平仓时间规则。
//
// The only rule whose state depends on wall-clock time (via the engine's
// injected clock) rather than purely on the snapshot's financial fields.
// With no open positions the rule is SAFE no matter the time; with open
// positions it escalates as the forced-close deadline approaches:
// CAUTION <= 30 min, CRITICAL <= 10 min, VIOLATED at or past the deadline.
func (e *Engine) tradingHours(snap *model.AccountSnapshot) model.RuleState {
	rule := e.rules.TradingHours

	loc, err := time.LoadLocation(rule.Timezone)
	if err != nil {
		loc = time.UTC
	}
	now := e.now().In(loc)

	closeHour, closeMinute := parseClockTime(rule.ForcedCloseTime)
	closeTime := time.Date(now.Year(), now.Month(), now.Day(), closeHour, closeMinute, 0, 0, loc)

	hasOpenPositions := len(snap.OpenPositions) > 0

	var secondsUntil int64
	if now.Before(closeTime) {
		secondsUntil = int64(closeTime.Sub(now) / time.Second)
	}
	minutesUntil := decimal.NewFromInt(secondsUntil).Div(decimal.NewFromInt(60))

	var status model.RuleStatus
	switch {
	case hasOpenPositions && !now.Before(closeTime):
		status = model.StatusViolated
	case hasOpenPositions && secondsUntil <= 600:
		status = model.StatusCritical
	case hasOpenPositions && secondsUntil <= 1800:
		status = model.StatusCaution
	default:
		status = model.StatusSafe
	}

	distancePercent := decimal.Zero
	bufferPercent := decimal.Zero
	if secondsUntil > 0 {
		distancePercent = decimal.NewFromInt(secondsUntil).Div(decimal.NewFromInt(3600)).Mul(d100)
		bufferPercent = d100
	}

	var warnings []string
	switch status {
	case model.StatusViolated:
		warnings = append(warnings, fmt.Sprintf("Trading hours VIOLATION: Positions must be closed by %s. Account failed.", rule.ForcedCloseTime))
	case model.StatusCritical:
		warnings = append(warnings, fmt.Sprintf("Trading hours critical: %d minutes until forced close at %s", secondsUntil/60, rule.ForcedCloseTime))
	case model.StatusCaution:
		warnings = append(warnings, fmt.Sprintf("Trading hours caution: %d minutes until forced close at %s", secondsUntil/60, rule.ForcedCloseTime))
	}

	recovery := ""
	if rule.Recoverable == model.NonRecoverable {
		recovery = recoveryNone
	}

	return model.RuleState{
		RuleName:        RuleTradingHours,
		CurrentValue:    minutesUntil,
		Threshold:       decimal.Zero, // must be flat before this time
		RemainingBuffer: minutesUntil,
		BufferPercent:   bufferPercent,
		Status:          status,
		DistanceToViolation: model.DistanceMetric{
			Percent: decPtr(distancePercent),
		},
		Warnings:     warnings,
		Recoverable:  rule.Recoverable,
		Severity:     rule.Severity,
		RuleType:     rule.RuleType,
		RecoveryPath: recovery,
	}
}

// parseClockTime parses "HH:MM". Malformed input yields 00:00, which makes
// the deadline already passed rather than silently disabling the rule.
func parseClockTime(s string) (hour, minute int) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0
	}
	hour, _ = strconv.Atoi(parts[0])
	minute, _ = strconv.Atoi(parts[1])
	return hour, minute
}
