package event

import (
	"strings"
)

// Classifier turns output lines into events. It is not safe for concurrent use;
// every wallet session owns its own instance.
type Classifier struct {
	matchers []Matcher
}

// NewClassifier returns a classifier trying matchers in the given order.
func NewClassifier(matchers ...Matcher) *Classifier {
	return &Classifier{matchers: matchers}
}

// DefaultClassifier knows every mwc713 pattern the wallet front-end relies on.
func DefaultClassifier() *Classifier {
	return NewClassifier(
		NodeAPIErrorMatcher,
		GenericErrorMatcher,
		SlateReceivedBackMatcher,
		SlateReceivedFromMatcher,
		SetReceiveAccountMatcher,
		ListenerStartedMatcher,
		ListenerStoppedMatcher,
		NewRecoveryPhraseMatcher(),
	)
}

// Classify returns the events of one output line in output order. Every matcher
// which recognizes the line contributes an event; a line nobody recognizes becomes
// a single Line event. A leading prompt becomes a Prompt event followed by the
// events of the text behind it.
func (c *Classifier) Classify(raw string) []Event {
	line := strings.TrimRight(stripANSI(raw), "\r\n")

	var out []Event
	for {
		trimmed := strings.TrimLeft(line, " \t")
		rest, ok := strings.CutPrefix(trimmed, PromptPrefix)
		if !ok {
			break
		}
		out = append(out, New(Prompt, line, PromptPrefix))
		line = rest
	}

	line = strings.TrimSpace(line)
	if line == "" {
		return out
	}

	matched := false
	for _, m := range c.matchers {
		if ev, ok := m.Match(line); ok {
			out = append(out, ev)
			matched = true
		}
	}
	if !matched {
		out = append(out, New(Line, line, line))
	}
	return out
}
