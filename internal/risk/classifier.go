// Package risk classifies tasks into coarse risk tiers by prefix matching.
package risk

import (
	"strings"

	"github.com/akrambak/aegis-planner/internal/task"
)

// Tier is the coarse risk classification of a task.
type Tier string

const (
	TierLow    Tier = "LOW"
	TierMedium Tier = "MEDIUM"
	TierHigh   Tier = "HIGH"
)

// Matrix holds the indicative command prefixes per tier. It is configuration,
// not policy: operators extend it without a rebuild.
type Matrix struct {
	Low    []string `json:"low" mapstructure:"low"`
	Medium []string `json:"medium" mapstructure:"medium"`
	High   []string `json:"high" mapstructure:"high"`
}

// DefaultMatrix returns the shipped prefix matrix. Trailing spaces are part
// of the data: "dd " must not match "ddclient".
func DefaultMatrix() Matrix {
	return Matrix{
		Low:    []string{"git ", "pip ", "python ", "pytest ", "echo "},
		Medium: []string{"docker ", "bash ", "sh ", "make "},
		High:   []string{"rm ", "sudo ", "shutdown", "reboot", "mkfs", "dd ", ":(){"},
	}
}

// Classifier assigns a risk tier to a task. Pure and deterministic; no I/O.
type Classifier struct {
	matrix Matrix
}

// NewClassifier builds a classifier over the given matrix.
func NewClassifier(matrix Matrix) Classifier {
	return Classifier{matrix: matrix}
}

// Classify returns the risk tier for a task. Tiers are checked in a fixed
// order, HIGH then MEDIUM then LOW, and the first matching prefix wins, so
// an overlap between tier prefix sets resolves toward scrutiny. Embedded
// code is HIGH by construction. Anything unmatched, empty included, is
// MEDIUM.
func (c Classifier) Classify(t task.Task) Tier {
	if t.Type == task.TypeCode {
		return TierHigh
	}

	text := strings.ToLower(t.CommandText())
	if text == "" {
		return TierMedium
	}

	for _, set := range []struct {
		tier     Tier
		prefixes []string
	}{
		{TierHigh, c.matrix.High},
		{TierMedium, c.matrix.Medium},
		{TierLow, c.matrix.Low},
	} {
		for _, prefix := range set.prefixes {
			if prefix == "" {
				continue
			}
			if strings.HasPrefix(text, strings.ToLower(prefix)) {
				return set.tier
			}
		}
	}
	return TierMedium
}
