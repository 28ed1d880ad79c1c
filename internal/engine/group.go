package engine

import (
	"sort"
	"time"

	"github.com/propgate/propgate/internal/model"
	"github.com/shopspring/decimal"
)

// AccountResult pairs a group member with its latest persisted evaluation.
// Result is nil when the account has no snapshot yet.
type AccountResult struct {
	AccountID   string
	AccountName string
	Result      *model.RuleEvaluationResult
}

// weakestEntry is the running accumulator of the weakest-account fold.
type weakestEntry struct {
	found         bool
	status        model.RuleStatus
	buffer        decimal.Decimal
	bufferPercent decimal.Decimal
	accountID     string
	accountName   string
}

// weakerThan is the comparison the whole group reduction hangs on: worse
// status dominates, ties on status are broken by the LOWEST remaining
// buffer. Equal status and equal buffer keeps the incumbent (first found).
func weakerThan(status model.RuleStatus, buffer decimal.Decimal, best weakestEntry) bool {
	if !best.found {
		return true
	}
	if status.Priority() != best.status.Priority() {
		return status.WorseThan(best.status)
	}
	return buffer.LessThan(best.buffer)
}

// EvaluateGroup 计算账户组的弱账户评估。
//
// For every rule name appearing in ANY member's state set, the member with
// the worst state for that rule is selected; the group's overall status and
// weakest account come from the worst rule/account pair found. A group is
// only as compliant as its weakest member.
//
// Degenerate cases: an empty group is SAFE; a group whose members have no
// persisted state at all is "disconnected".
func EvaluateGroup(group *model.AccountGroup, members []AccountResult, ts time.Time) *model.GroupRiskEvaluation {
	eval := &model.GroupRiskEvaluation{
		GroupID:    group.ID,
		GroupName:  group.Name,
		RuleStates: make(map[string]model.RuleStateSummary),
		Timestamp:  ts,
	}

	if len(members) == 0 {
		eval.OverallStatus = string(model.StatusSafe)
		return eval
	}

	withState := members[:0:0]
	for _, m := range members {
		if m.Result != nil && len(m.Result.RuleStates) > 0 {
			withState = append(withState, m)
		}
	}
	if len(withState) == 0 {
		eval.OverallStatus = model.GroupStatusDisconnected
		return eval
	}

	// Stable rule-name order keeps tie-breaks deterministic across runs.
	nameSet := make(map[string]struct{})
	for _, m := range withState {
		for name := range m.Result.RuleStates {
			nameSet[name] = struct{}{}
		}
	}
	ruleNames := make([]string, 0, len(nameSet))
	for name := range nameSet {
		ruleNames = append(ruleNames, name)
	}
	sort.Strings(ruleNames)

	overall := weakestEntry{status: model.StatusSafe}

	for _, name := range ruleNames {
		var worst weakestEntry
		for _, m := range withState {
			st, ok := m.Result.RuleStates[name]
			if !ok {
				continue
			}
			if weakerThan(st.Status, st.RemainingBuffer, worst) {
				worst = weakestEntry{
					found:         true,
					status:        st.Status,
					buffer:        st.RemainingBuffer,
					bufferPercent: st.BufferPercent,
					accountID:     m.AccountID,
					accountName:   m.AccountName,
				}
			}
		}
		if !worst.found {
			continue
		}

		if worst.status.WorseThan(overall.status) {
			overall = worst
		}

		eval.RuleStates[name] = model.RuleStateSummary{
			Status:             worst.status,
			RemainingBuffer:    worst.buffer,
			BufferPercent:      worst.bufferPercent,
			WeakestAccountID:   worst.accountID,
			WeakestAccountName: worst.accountName,
		}
	}

	// All members SAFE: no rule strictly dominated, fall back to the first
	// member so the result still names an account.
	if overall.accountID == "" {
		overall.accountID = withState[0].AccountID
		overall.accountName = withState[0].AccountName
	}

	eval.OverallStatus = string(overall.status)
	eval.WeakestAccountID = overall.accountID
	eval.WeakestAccountName = overall.accountName
	return eval
}
