package task

import "testing"

func TestCommandTextTextTask(t *testing.T) {
	tk := NewText("  git pull origin main  ")
	if got := tk.CommandText(); got != "git pull origin main" {
		t.Fatalf("unexpected command text: %q", got)
	}
	if tk.Kind != KindText {
		t.Fatalf("expected text kind, got %q", tk.Kind)
	}
}

func TestCommandTextStructuredFallsBackToType(t *testing.T) {
	tk := NewStructured(TypeWorkflow, "")
	if got := tk.CommandText(); got != "workflow" {
		t.Fatalf("unexpected command text: %q", got)
	}
}

func TestIsShellClass(t *testing.T) {
	cases := []struct {
		typ  Type
		want bool
	}{
		{TypeShell, true},
		{TypeGit, true},
		{TypeScript, true},
		{TypeCode, false},
		{TypeWorkflow, false},
		{TypeAPI, false},
	}
	for _, tc := range cases {
		if got := NewStructured(tc.typ, "x").IsShellClass(); got != tc.want {
			t.Fatalf("IsShellClass(%s) = %v, want %v", tc.typ, got, tc.want)
		}
	}
}

func TestLeadingToken(t *testing.T) {
	tk := NewText("Docker ps -a")
	if got := tk.LeadingToken(); got != "docker" {
		t.Fatalf("unexpected leading token: %q", got)
	}
	if got := NewText("   ").LeadingToken(); got != "" {
		t.Fatalf("expected empty token, got %q", got)
	}
}

func TestKeyStableAcrossCase(t *testing.T) {
	a := NewText("rm -rf /data")
	b := NewText("RM -RF /data")
	if a.Key() != b.Key() {
		t.Fatal("expected case-insensitive keys to match")
	}
	c := NewStructured(TypeAPI, "rm -rf /data")
	if a.Key() == c.Key() {
		t.Fatal("expected different type tags to produce different keys")
	}
}

func TestIsEmpty(t *testing.T) {
	if !NewText("").IsEmpty() {
		t.Fatal("expected empty text task to be empty")
	}
	if NewStructured(TypeShell, "echo hi").IsEmpty() {
		t.Fatal("expected structured task with payload to be non-empty")
	}
}
