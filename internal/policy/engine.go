// Package policy evaluates ordered authorization rules against classified
// tasks. The engine never fails open: an empty or exhausted rule set falls
// back to require_approval.
package policy

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// FallbackRuleName labels decisions produced when no rule matched.
const FallbackRuleName = "default fallback"

// Engine iterates an ordered rule set, first match wins. The rule set is
// swapped atomically as a whole; evaluations in flight keep the set they
// started with.
type Engine struct {
	rules atomic.Pointer[[]Rule]
}

// NewEngine builds an engine over the given ordered rules.
func NewEngine(rules []Rule) *Engine {
	e := &Engine{}
	e.Swap(rules)
	return e
}

// Swap replaces the whole rule set. Visible to subsequent evaluations only.
func (e *Engine) Swap(rules []Rule) {
	copied := make([]Rule, len(rules))
	copy(copied, rules)
	e.rules.Store(&copied)
}

// Rules returns the current rule set.
func (e *Engine) Rules() []Rule {
	rules := *e.rules.Load()
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}

// Evaluate returns the first matching rule's decision. A rule matches when
// its risk-tier filter is empty or equal to the input tier, and its prefix
// filter is empty or a case-insensitive prefix of the task text.
func (e *Engine) Evaluate(input Input) Decision {
	text := strings.ToLower(strings.TrimSpace(input.TaskText))

	for _, rule := range *e.rules.Load() {
		if rule.RiskTier != "" && rule.RiskTier != input.RiskTier {
			continue
		}
		if rule.TaskPrefix != "" && !strings.HasPrefix(text, strings.ToLower(rule.TaskPrefix)) {
			continue
		}
		return Decision{
			Action:   normalizeAction(rule.Action),
			RuleName: rule.Name,
			Reason:   fmt.Sprintf("matched policy rule %q", rule.Name),
		}
	}

	return Decision{
		Action:   ActionRequireApproval,
		RuleName: FallbackRuleName,
		Reason:   "no policy rule matched; requiring approval by default",
	}
}

func normalizeAction(action Action) Action {
	switch Action(strings.ToLower(strings.TrimSpace(string(action)))) {
	case ActionAllow:
		return ActionAllow
	case ActionDeny:
		return ActionDeny
	case ActionRequireApproval:
		return ActionRequireApproval
	default:
		// Unknown actions fail toward human review.
		return ActionRequireApproval
	}
}
