// Package detection - Severity tiers and urgency derivation for cavity findings.
package detection

import (
	"fmt"
	"strings"

	"github.com/nvr-ai/go-cavity/common"
)

// Severity is the ordered tier of a finding: mild < moderate < severe.
//
// SeverityNone is the zero value and only appears as the most severe tier of
// an empty summary.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityMild
	SeverityModerate
	SeveritySevere
)

var severityNames = [...]string{"none", "mild", "moderate", "severe"}

func (s Severity) String() string {
	if s < 0 || int(s) >= len(severityNames) {
		return fmt.Sprintf("severity(%d)", int(s))
	}
	return severityNames[s]
}

// MarshalText encodes the tier as its lowercase name.
func (s Severity) MarshalText() ([]byte, error) {
	if s < 0 || int(s) >= len(severityNames) {
		return nil, fmt.Errorf("invalid severity %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText decodes a lowercase tier name.
func (s *Severity) UnmarshalText(text []byte) error {
	name := strings.ToLower(string(text))
	for i, n := range severityNames {
		if n == name {
			*s = Severity(i)
			return nil
		}
	}
	return fmt.Errorf("unknown severity %q", text)
}

// Urgency is the recommended follow-up for a whole image.
type Urgency int

const (
	UrgencyRoutine Urgency = iota
	UrgencyModerate
	UrgencyUrgent
	// UrgencyEmergency is part of the result vocabulary; no severity maps to it.
	UrgencyEmergency
)

var urgencyNames = [...]string{"routine", "moderate", "urgent", "emergency"}

func (u Urgency) String() string {
	if u < 0 || int(u) >= len(urgencyNames) {
		return fmt.Sprintf("urgency(%d)", int(u))
	}
	return urgencyNames[u]
}

// MarshalText encodes the urgency as its lowercase name.
func (u Urgency) MarshalText() ([]byte, error) {
	if u < 0 || int(u) >= len(urgencyNames) {
		return nil, fmt.Errorf("invalid urgency %d", int(u))
	}
	return []byte(u.String()), nil
}

// UnmarshalText decodes a lowercase urgency name.
func (u *Urgency) UnmarshalText(text []byte) error {
	name := strings.ToLower(string(text))
	for i, n := range urgencyNames {
		if n == name {
			*u = Urgency(i)
			return nil
		}
	}
	return fmt.Errorf("unknown urgency %q", text)
}

// UrgencyFor maps the most severe tier present to an urgency.
func UrgencyFor(mostSevere Severity) Urgency {
	switch mostSevere {
	case SeveritySevere:
		return UrgencyUrgent
	case SeverityModerate:
		return UrgencyModerate
	default:
		return UrgencyRoutine
	}
}

// Thresholds are the severity cut points.
type Thresholds struct {
	// SevereConfidence is the minimum confidence of a severe finding.
	SevereConfidence float32 `json:"severe_confidence" yaml:"severe_confidence"`
	// SevereArea is the normalized box area a severe finding must exceed.
	SevereArea float32 `json:"severe_area" yaml:"severe_area"`
	// ModerateConfidence is the minimum confidence of a moderate finding.
	ModerateConfidence float32 `json:"moderate_confidence" yaml:"moderate_confidence"`
}

// DefaultThresholds returns severe at 0.8 confidence over 1% area, moderate at 0.65.
func DefaultThresholds() Thresholds {
	return Thresholds{
		SevereConfidence:   0.8,
		SevereArea:         0.01,
		ModerateConfidence: 0.65,
	}
}

// Validate checks every threshold lies in [0, 1].
func (t Thresholds) Validate() error {
	for name, v := range map[string]float32{
		"severe_confidence":   t.SevereConfidence,
		"severe_area":         t.SevereArea,
		"moderate_confidence": t.ModerateConfidence,
	} {
		if v < 0 || v > 1 {
			return common.Errorf(common.KindInvalidConfig, "severity", "%s must lie in [0, 1], got %v", name, v)
		}
	}
	return nil
}

// Classify returns the severity of a finding.
//
// Arguments:
//   - confidence: The detection confidence.
//   - area: The normalized box area in original-image space.
//
// Returns:
//   - Severity: severe if confidence >= SevereConfidence and area > SevereArea,
//     else moderate if confidence >= ModerateConfidence, else mild.
func (t Thresholds) Classify(confidence, area float32) Severity {
	switch {
	case confidence >= t.SevereConfidence && area > t.SevereArea:
		return SeveritySevere
	case confidence >= t.ModerateConfidence:
		return SeverityModerate
	default:
		return SeverityMild
	}
}
