package engine

import (
	"fmt"

	"github.com/propgate/propgate/internal/model"
	"github.com/shopspring/decimal"
)

// maxPositionSize 最大持仓手数。
//
// Position size is gross across instruments (Σ |quantity|): no per-instrument
// netting and no micro/standard contract conversion. 10 MES therefore counts
// the same as 10 ES here; known limitation.
//
// Unlike the loss rules, the violation predicate is STRICT: sitting exactly
// at the limit is SAFE, only exceeding it violates.
func (e *Engine) maxPositionSize(snap *model.AccountSnapshot) model.RuleState {
	rule := e.rules.MaxPositionSize

	size := snap.GrossPositionSize()
	limit := decimal.NewFromInt(rule.MaxContracts)
	current := decimal.NewFromInt(size)
	buffer := limit.Sub(current)

	bufferPercent := decimal.Zero
	if rule.MaxContracts > 0 {
		bufferPercent = buffer.Div(limit).Mul(d100)
	}

	// The warning bands only cover sizes strictly below the limit; sitting
	// exactly on the limit is compliant.
	var status model.RuleStatus
	switch {
	case current.Cmp(limit) > 0:
		status = model.StatusViolated
	case current.Equal(limit):
		status = model.StatusSafe
	case current.Cmp(limit.Mul(frac95)) > 0:
		status = model.StatusCritical
	case current.Cmp(limit.Mul(frac80)) > 0:
		status = model.StatusCaution
	default:
		status = model.StatusSafe
	}

	contractsLeft := rule.MaxContracts - size
	if contractsLeft < 0 {
		contractsLeft = 0
	}

	var warnings []string
	switch status {
	case model.StatusViolated:
		warnings = append(warnings, fmt.Sprintf("Max position size VIOLATED: %d contracts exceeds limit of %d", size, rule.MaxContracts))
	case model.StatusCritical:
		warnings = append(warnings, fmt.Sprintf("Max position size critical: %d contracts remaining (95%%+ of limit used)", contractsLeft))
	case model.StatusCaution:
		warnings = append(warnings, fmt.Sprintf("Max position size caution: %d contracts remaining (80%%+ of limit used)", contractsLeft))
	}

	recovery := ""
	if rule.Recoverable == model.NonRecoverable {
		recovery = recoveryNone
	}

	return model.RuleState{
		RuleName:        RuleMaxPositionSize,
		CurrentValue:    current,
		Threshold:       limit,
		RemainingBuffer: buffer,
		BufferPercent:   bufferPercent,
		Status:          status,
		DistanceToViolation: model.DistanceMetric{
			Contracts: intPtr(contractsLeft),
			Percent:   decPtr(bufferPercent),
		},
		Warnings:     warnings,
		Recoverable:  rule.Recoverable,
		Severity:     rule.Severity,
		RuleType:     rule.RuleType,
		RecoveryPath: recovery,
	}
}
