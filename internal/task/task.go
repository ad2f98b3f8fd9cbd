// Package task implements the closed set of mwc713 commands and listeners.
//
// A Task is a OneShot unit of work: the dispatcher writes Command to mwc713,
// collects the events produced in response and asks Ready after every batch.
// Once Ready reports true, Finalize turns the batch into exactly one Result.
//
// A Listener never completes. It receives a copy of every event it subscribes to
// and turns each one into its own Result.
//
// Both are sealed: only the variants of this package can be dispatched.
package task

import (
	"time"

	"github.com/mwcproject/mwcwallet/internal/event"
)

// Kind identifies a task or listener variant.
type Kind int

const (
	KindSendOnline Kind = iota + 1
	KindSendFile
	KindReceiveFile
	KindFinalizeFile
	KindSetReceiveAccount
	KindNodeInfo
	KindGenerateSeed
	KindRecover
	KindUnlock
	KindSlateListener
	KindListenerStatus
)

var kindNames = map[Kind]string{
	KindSendOnline:        "send_online",
	KindSendFile:          "send_file",
	KindReceiveFile:       "receive_file",
	KindFinalizeFile:      "finalize_file",
	KindSetReceiveAccount: "set_receive_account",
	KindNodeInfo:          "node_info",
	KindGenerateSeed:      "generate_seed",
	KindRecover:           "recover",
	KindUnlock:            "unlock",
	KindSlateListener:     "slate_listener",
	KindListenerStatus:    "listener_status",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// State is the lifecycle position of a submitted task.
type State int32

const (
	Pending State = iota
	AwaitingResult
	Completed
	TimedOut
	Cancelled
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case AwaitingResult:
		return "awaiting_result"
	case Completed:
		return "completed"
	case TimedOut:
		return "timed_out"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Task is a OneShot command.
type Task interface {
	Kind() Kind
	// Command is the line written to mwc713 stdin.
	Command() string
	// LogCommand is Command with secrets masked.
	LogCommand() string
	// Timeout overrides the dispatcher default when not zero.
	Timeout() time.Duration
	// Ready reports whether the events collected so far contain a terminal pattern.
	Ready(events []event.Event) bool
	// Finalize interprets the collected events. Called exactly once.
	Finalize(events []event.Event) Result

	oneShot()
}

// Listener is a standing subscription.
type Listener interface {
	Kind() Kind
	Subscribes(k event.Kind) bool
	// Handle turns a single event into a Result. False drops the event.
	Handle(ev event.Event) (Result, bool)

	listener()
}

// TimeoutPolicy is embedded by every Task. The zero value uses the dispatcher default.
type TimeoutPolicy struct {
	After time.Duration
}

func (p TimeoutPolicy) Timeout() time.Duration { return p.After }

type sealed struct{}

func (sealed) oneShot() {}

// finished reports whether mwc713 is done with the command: it printed
// an error or came back to the prompt.
func finished(events []event.Event) bool {
	for _, e := range events {
		if e.Kind == event.Prompt || e.Kind.IsError() {
			return true
		}
	}
	return false
}

func genericErrors(events []event.Event) []string {
	return event.Messages(event.Filter(events, event.GenericError))
}

func hasErrors(events []event.Event) bool {
	for _, e := range events {
		if e.Kind.IsError() {
			return true
		}
	}
	return false
}

func lines(events []event.Event) []event.Event {
	return event.Filter(events, event.Line)
}
