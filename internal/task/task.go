package task

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Kind distinguishes plain-text tasks from structured payloads.
type Kind string

const (
	KindText       Kind = "text"
	KindStructured Kind = "structured"
)

// Type routes a structured task to its executor.
type Type string

const (
	TypeShell    Type = "shell"
	TypeGit      Type = "git"
	TypeScript   Type = "script"
	TypeCode     Type = "code"
	TypeWorkflow Type = "workflow"
	TypeAPI      Type = "api"
)

// shellClass maps types that execute as an allow-listed subprocess.
var shellClass = map[Type]bool{
	TypeShell:  true,
	TypeGit:    true,
	TypeScript: true,
}

// Task is the unit of work submitted to the control plane.
// Immutable once submitted.
type Task struct {
	Kind        Kind      `json:"kind"`
	Type        Type      `json:"type,omitempty"`
	Text        string    `json:"text,omitempty"`
	Payload     string    `json:"payload,omitempty"`
	Requester   string    `json:"requester"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// NewText creates a plain-text task. The text is interpreted as a shell
// command line unless later reclassified by the dispatcher.
func NewText(text string) Task {
	return Task{
		Kind: KindText,
		Type: TypeShell,
		Text: strings.TrimSpace(text),
	}
}

// NewStructured creates a typed task with an opaque payload body.
func NewStructured(typ Type, payload string) Task {
	return Task{
		Kind:    KindStructured,
		Type:    typ,
		Payload: payload,
	}
}

// CommandText normalizes the task to its textual form. Text tasks return
// their text; structured tasks return the payload body, falling back to the
// type tag when the payload is empty.
func (t Task) CommandText() string {
	if t.Kind == KindText {
		return strings.TrimSpace(t.Text)
	}
	payload := strings.TrimSpace(t.Payload)
	if payload != "" {
		return payload
	}
	return strings.TrimSpace(string(t.Type))
}

// IsShellClass reports whether the task executes as a subprocess.
func (t Task) IsShellClass() bool {
	return shellClass[t.Type]
}

// IsEmpty reports whether the task carries no executable content.
func (t Task) IsEmpty() bool {
	return t.CommandText() == ""
}

// LeadingToken returns the first whitespace-delimited token of the
// normalized command text, lowercased. Used for allow-list checks.
func (t Task) LeadingToken() string {
	fields := strings.Fields(t.CommandText())
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[0])
}

// Key returns a stable identity for duplicate-pending detection. Two tasks
// with the same kind, type and normalized text share a key.
func (t Task) Key() string {
	sum := sha256.Sum256([]byte(string(t.Kind) + "|" + string(t.Type) + "|" + strings.ToLower(t.CommandText())))
	return hex.EncodeToString(sum[:16])
}
