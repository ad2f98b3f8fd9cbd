// Package event turns raw mwc713 output lines into typed events.
//
// mwc713 has no machine readable protocol: every pattern the wallet front-end
// depends on lives in this package as a named Matcher, so a change of wording
// in the binary is fixed in exactly one place. Nothing outside of this package
// looks at raw output text.
package event

import (
	"slices"
	"strings"
)

// Kind classifies an Event.
type Kind int

const (
	Line              Kind = iota // not recognized by any matcher
	GenericError                  // error: ...
	NodeAPIError                  // node rejected a request, fields: code, detail
	Prompt                        // interactive prompt, the previous command is done
	SlateReceivedFrom             // incoming slate, fields: slate, address, amount, message
	SlateReceivedBack             // slate returned to the sender, fields: slate, address, amount
	SetReceiveAccount             // fields: account
	ListenerStarted               // fields: address
	ListenerStopped               // fields: listener
	RecoveryPhrase                // fields: seed words
)

var kindNames = [...]string{
	Line:              "line",
	GenericError:      "generic_error",
	NodeAPIError:      "node_api_error",
	Prompt:            "prompt",
	SlateReceivedFrom: "slate_received_from",
	SlateReceivedBack: "slate_received_back",
	SetReceiveAccount: "set_receive_account",
	ListenerStarted:   "listener_started",
	ListenerStopped:   "listener_stopped",
	RecoveryPhrase:    "recovery_phrase",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// IsError reports whether events of kind k describe a failure.
func (k Kind) IsError() bool {
	return k == GenericError || k == NodeAPIError
}

// Event is a single classified unit of mwc713 output. Events are values and
// never change once created; copies can be handed to many consumers.
type Event struct {
	Kind    Kind
	Raw     string // line as read from the process, ANSI codes removed
	Message string // kind specific text, pipe separated fields for notifications
	fields  []string
}

// New creates an event. Message defaults to the fields joined by '|'.
func New(kind Kind, raw, message string, fields ...string) Event {
	if message == "" && len(fields) > 0 {
		message = strings.Join(fields, "|")
	}
	return Event{
		Kind:    kind,
		Raw:     raw,
		Message: message,
		fields:  slices.Clone(fields),
	}
}

// Field returns the i-th extracted field or an empty string.
func (e Event) Field(i int) string {
	if i < 0 || i >= len(e.fields) {
		return ""
	}
	return e.fields[i]
}

// Fields returns a copy of the extracted fields.
func (e Event) Fields() []string {
	return slices.Clone(e.fields)
}

func (e Event) String() string {
	return e.Kind.String() + ": " + e.Message
}

// Filter returns events of the given kinds, keeping their order.
func Filter(events []Event, kinds ...Kind) []Event {
	var out []Event
	for _, e := range events {
		if slices.Contains(kinds, e.Kind) {
			out = append(out, e)
		}
	}
	return out
}

// Messages returns Message of every event.
func Messages(events []Event) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.Message)
	}
	return out
}
