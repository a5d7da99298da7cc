package types

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fatih/color"
)

const (
	// DateTimeFormat is the canonical date-time layout of every normalized report.
	DateTimeFormat = "2006-01-02 15:04:05"

	// BlackDuckDateTimeFormat is the layout of the component-analysis API.
	BlackDuckDateTimeFormat = "2006-01-02T15:04:05.000Z"
	// TwistlockDateTimeFormat is the layout of the image-scanning API.
	TwistlockDateTimeFormat = "2006-01-02T15:04:05Z07:00"
)

// Provider names a scanning service whose output can be normalized.
type Provider string

const (
	ProviderBlackDuck Provider = "blackduck"
	ProviderTwistlock Provider = "twistlock"
)

var Providers = []Provider{ProviderBlackDuck, ProviderTwistlock}

type Severity int

const (
	SeverityUnknown Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

var (
	SeverityNames = []string{
		"UNKNOWN",
		"LOW",
		"MEDIUM",
		"HIGH",
		"CRITICAL",
	}
	SeverityColor = []func(a ...interface{}) string{
		color.New(color.FgCyan).SprintFunc(),
		color.New(color.FgBlue).SprintFunc(),
		color.New(color.FgYellow).SprintFunc(),
		color.New(color.FgHiRed).SprintFunc(),
		color.New(color.FgRed).SprintFunc(),
	}
)

// NewSeverity maps a provider severity label onto Severity. Providers disagree
// on casing ("high", "HIGH") and the image scanner reports "important" and
// "moderate" for some distros.
func NewSeverity(severity string) (Severity, error) {
	s := strings.ToUpper(strings.TrimSpace(severity))
	switch s {
	case "IMPORTANT":
		return SeverityHigh, nil
	case "MODERATE":
		return SeverityMedium, nil
	case "NEGLIGIBLE":
		return SeverityLow, nil
	}
	for i, name := range SeverityNames {
		if s == name {
			return Severity(i), nil
		}
	}
	return SeverityUnknown, fmt.Errorf("unknown severity: %s", severity)
}

func CompareSeverityString(sev1, sev2 string) int {
	s1, _ := NewSeverity(sev1)
	s2, _ := NewSeverity(sev2)
	return int(s2) - int(s1)
}

func ColorizeSeverity(severity string) string {
	if s, err := NewSeverity(severity); err == nil {
		return SeverityColor[s](severity)
	}
	return color.New(color.FgBlue).SprintFunc()(severity)
}

func (s Severity) String() string {
	return SeverityNames[s]
}

// Score is an optional CVSS score. It is a plain value so records holding it
// stay comparable.
type Score struct {
	Value float64
	Valid bool
}

func NewScore(v float64) Score {
	return Score{Value: v, Valid: true}
}

func (s Score) MarshalJSON() ([]byte, error) {
	if !s.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(s.Value)
}

func (s *Score) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*s = Score{}
		return nil
	}
	if err := json.Unmarshal(b, &s.Value); err != nil {
		return err
	}
	s.Valid = true
	return nil
}
