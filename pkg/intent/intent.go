// Package intent detects conversational intents in caller speech.
//
// Detectors are deliberately small: the call state machine only needs a yes
// or no answer, so a regular expression can later be swapped for a semantic
// check without touching the orchestrator.
package intent

import "regexp"

// Detector reports whether text expresses an intent.
type Detector interface {
	Match(text string) bool
}

// DetectorFunc adapts a function to Detector.
type DetectorFunc func(text string) bool

func (f DetectorFunc) Match(text string) bool { return f(text) }

// RegexDetector matches text against a regular expression.
type RegexDetector struct {
	re *regexp.Regexp
}

// NewRegexDetector compiles pattern. Patterns are matched as written; add
// (?i) for case-insensitive matching.
func NewRegexDetector(pattern string) (*RegexDetector, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return &RegexDetector{re: re}, nil
}

func (d *RegexDetector) Match(text string) bool {
	return d.re.MatchString(text)
}

const (
	doingFinePattern = `(?i)\b(i am|i'm|im)\s+(ok|okay|fine|good|alright|well|better)\b`
	crisisPattern    = `(?i)\b(hurt|harm|suicide|kill|die|end it all)\b`
)

// DoingFine matches self-reports where the adjective directly follows the
// subject, such as "I'm okay" or "I am better". "I am feeling better" does not
// match.
func DoingFine() Detector {
	return &RegexDetector{re: regexp.MustCompile(doingFinePattern)}
}

// Crisis matches self-harm and crisis keywords.
func Crisis() Detector {
	return &RegexDetector{re: regexp.MustCompile(crisisPattern)}
}
