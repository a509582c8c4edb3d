package policy

import (
	"testing"

	"github.com/akrambak/aegis-planner/internal/risk"
)

func TestEvaluateFirstMatchWins(t *testing.T) {
	e := NewEngine([]Rule{
		{Name: "git always allowed", TaskPrefix: "git ", Action: ActionAllow},
		{Name: "low risk requires approval", RiskTier: risk.TierLow, Action: ActionRequireApproval},
	})

	d := e.Evaluate(Input{TaskText: "git pull origin main", RiskTier: risk.TierLow})
	if d.Action != ActionAllow {
		t.Fatalf("expected allow, got %s", d.Action)
	}
	if d.RuleName != "git always allowed" {
		t.Fatalf("unexpected rule name: %q", d.RuleName)
	}
}

func TestEvaluateTierFilter(t *testing.T) {
	e := NewEngine([]Rule{
		{Name: "high denied", RiskTier: risk.TierHigh, Action: ActionDeny},
	})

	if d := e.Evaluate(Input{TaskText: "rm -rf /", RiskTier: risk.TierHigh}); d.Action != ActionDeny {
		t.Fatalf("expected deny for high, got %s", d.Action)
	}
	if d := e.Evaluate(Input{TaskText: "echo hi", RiskTier: risk.TierLow}); d.RuleName != FallbackRuleName {
		t.Fatalf("expected fallback for low, got rule %q", d.RuleName)
	}
}

func TestEvaluatePrefixCaseInsensitive(t *testing.T) {
	e := NewEngine([]Rule{
		{Name: "docker allowed", TaskPrefix: "docker ", Action: ActionAllow},
	})
	if d := e.Evaluate(Input{TaskText: "Docker ps", RiskTier: risk.TierMedium}); d.Action != ActionAllow {
		t.Fatalf("expected allow, got %s", d.Action)
	}
}

func TestEvaluateDefaultFallback(t *testing.T) {
	e := NewEngine(nil)
	d := e.Evaluate(Input{TaskText: "rm -rf /data", RiskTier: risk.TierHigh})
	if d.Action != ActionRequireApproval {
		t.Fatalf("expected require_approval fallback, got %s", d.Action)
	}
	if d.RuleName != FallbackRuleName {
		t.Fatalf("unexpected fallback rule name: %q", d.RuleName)
	}
}

func TestEvaluateUnknownActionRequiresApproval(t *testing.T) {
	e := NewEngine([]Rule{
		{Name: "typo rule", Action: Action("alow")},
	})
	if d := e.Evaluate(Input{TaskText: "anything"}); d.Action != ActionRequireApproval {
		t.Fatalf("expected require_approval for unknown action, got %s", d.Action)
	}
}

func TestSwapVisibleToNextEvaluation(t *testing.T) {
	e := NewEngine([]Rule{{Name: "deny all", Action: ActionDeny}})
	if d := e.Evaluate(Input{TaskText: "echo hi"}); d.Action != ActionDeny {
		t.Fatalf("expected deny before swap, got %s", d.Action)
	}

	e.Swap([]Rule{{Name: "allow all", Action: ActionAllow}})
	if d := e.Evaluate(Input{TaskText: "echo hi"}); d.Action != ActionAllow {
		t.Fatalf("expected allow after swap, got %s", d.Action)
	}
}
