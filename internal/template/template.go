// Package template holds SMS personas, message templates and outreach
// blueprints.
package template

import (
	"strings"
	"unicode/utf8"
)

// SegmentSize is the character capacity of a single SMS segment.
const SegmentSize = 160

// Stage is the position of a message in an outreach sequence.
type Stage string

const (
	StageOpener Stage = "opener"
	StageNudge  Stage = "nudge"
	StageValue  Stage = "value"
	StageClose  Stage = "close"
)

// Valid reports whether s is a known template stage.
func (s Stage) Valid() bool {
	switch s {
	case StageOpener, StageNudge, StageValue, StageClose:
		return true
	}
	return false
}

// Persona is a buyer persona targeted by a set of templates.
type Persona struct {
	ID         string   `yaml:"id" json:"id"`
	Name       string   `yaml:"name" json:"name"`
	Tone       string   `yaml:"tone" json:"tone"`
	Urgency    string   `yaml:"urgency" json:"urgency"`
	ValueProps []string `yaml:"value_props" json:"value_props"`
	CTA        string   `yaml:"cta" json:"cta"`
}

// Template is one SMS message body with {placeholder} variables.
type Template struct {
	ID        string   `yaml:"id" json:"id"`
	PersonaID string   `yaml:"persona_id" json:"persona_id"`
	Stage     Stage    `yaml:"stage" json:"stage"`
	Message   string   `yaml:"message" json:"message"`
	Variables []string `yaml:"variables" json:"variables"`
}

// CharCount returns the raw message length.
func (t Template) CharCount() int {
	return utf8.RuneCountInString(t.Message)
}

// Render replaces every {key} in the template message.
func (t Template) Render(vars map[string]string) string {
	return Render(t.Message, vars)
}

// Render replaces every occurrence of {key} with vars[key]. Placeholders
// without a value are left intact.
func Render(message string, vars map[string]string) string {
	if len(vars) == 0 {
		return message
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(message)
}

// CharCountResult describes how a message fits into SMS segments.
type CharCountResult struct {
	Valid    bool `json:"valid"`
	Count    int  `json:"count"`
	Segments int  `json:"segments"`
}

// ValidateCharCount checks a message against the single-segment limit.
func ValidateCharCount(message string) CharCountResult {
	n := utf8.RuneCountInString(message)
	return CharCountResult{
		Valid:    n <= SegmentSize,
		Count:    n,
		Segments: (n + SegmentSize - 1) / SegmentSize,
	}
}
