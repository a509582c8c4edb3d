package policy

import "github.com/akrambak/aegis-planner/internal/risk"

// Action is the policy decision for a task execution request.
type Action string

const (
	ActionAllow           Action = "allow"
	ActionDeny            Action = "deny"
	ActionRequireApproval Action = "require_approval"
)

// Rule is one ordered policy entry. Empty filters match everything; the
// prefix filter is a case-insensitive prefix test on the normalized task
// text.
type Rule struct {
	Name       string    `json:"name" mapstructure:"name"`
	RiskTier   risk.Tier `json:"risk_tier,omitempty" mapstructure:"risk_tier"`
	TaskPrefix string    `json:"task_prefix,omitempty" mapstructure:"task_prefix"`
	Action     Action    `json:"action" mapstructure:"action"`
}

// Input is the evaluation context.
type Input struct {
	TaskText  string
	RiskTier  risk.Tier
	Requester string
}

// Decision is the deterministic policy result.
type Decision struct {
	Action   Action
	RuleName string
	Reason   string
}

// DefaultRules returns the shipped rule set: low risk runs, medium risk
// waits for a human, high risk is denied outright.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "low risk auto-approved", RiskTier: risk.TierLow, Action: ActionAllow},
		{Name: "medium risk requires approval", RiskTier: risk.TierMedium, Action: ActionRequireApproval},
		{Name: "high risk denied", RiskTier: risk.TierHigh, Action: ActionDeny},
	}
}
