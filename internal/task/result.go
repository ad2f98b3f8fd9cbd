package task

import (
	"fmt"
	"strings"

	"github.com/mwcproject/mwcwallet/internal/model"
)

const (
	MsgNoExpectedOutput = "Not found expected output from mwc713"
	MsgRecipientOffline = "Recipient wallet is offline. Please retry to send when recipient wallet will be online."
	MsgTimeout          = "mwc713 didn't respond in time"
	MsgUnavailable      = "mwc713 process is not running"
	MsgCancelled        = "Cancelled by user"
)

type Outcome int

const (
	Failure Outcome = iota
	Success
)

func (o Outcome) String() string {
	if o == Success {
		return "success"
	}
	return "failure"
}

// Result is delivered once per OneShot task, once per matched event for listeners.
type Result struct {
	TaskID  string
	Kind    Kind
	Outcome Outcome
	// Err is nil on success, otherwise it matches one of model.ErrTaskFailure,
	// model.ErrTaskTimeout, model.ErrProcessUnavailable or model.ErrTaskCancelled.
	Err     error
	Errors  []string
	Payload Payload
}

func (r Result) OK() bool {
	return r.Outcome == Success
}

func (r Result) String() string {
	if r.OK() {
		return fmt.Sprintf("%s %s: %v", r.Kind, r.Outcome, r.Payload)
	}
	return fmt.Sprintf("%s %s: %s", r.Kind, r.Outcome, strings.Join(r.Errors, "; "))
}

func succeeded(kind Kind, payload Payload) Result {
	return Result{Kind: kind, Outcome: Success, Payload: payload}
}

func failed(kind Kind, errs []string, payload Payload) Result {
	if len(errs) == 0 {
		errs = []string{MsgNoExpectedOutput}
	}
	return Result{
		Kind:    kind,
		Outcome: Failure,
		Err:     model.ErrTaskFailure,
		Errors:  errs,
		Payload: payload,
	}
}

// TimeoutResult is delivered for a task with no terminal output before its deadline.
func TimeoutResult(kind Kind) Result {
	return Result{Kind: kind, Outcome: Failure, Err: model.ErrTaskTimeout, Errors: []string{MsgTimeout}}
}

// UnavailableResult is delivered to everything outstanding when mwc713 is gone.
func UnavailableResult(kind Kind, cause error) Result {
	msgs := []string{MsgUnavailable}
	if cause != nil {
		msgs = append(msgs, cause.Error())
	}
	return Result{Kind: kind, Outcome: Failure, Err: model.ErrProcessUnavailable, Errors: msgs}
}

func CancelledResult(kind Kind) Result {
	return Result{Kind: kind, Outcome: Failure, Err: model.ErrTaskCancelled, Errors: []string{MsgCancelled}}
}

// Payload is the kind specific part of a Result.
type Payload interface {
	payload()
}

type SendPayload struct {
	TxID    int64
	Slate   string
	Amount  string
	Address string
	// Responded is set when the receiver returned the slate within the same batch.
	Responded bool
}

type SendFilePayload struct {
	File string
}

type ReceiveFilePayload struct {
	InFile  string
	OutFile string
}

type FinalizePayload struct {
	File string
}

type AccountPayload struct {
	Account string
}

type NodeStatus struct {
	Online          bool
	NodeHeight      int64
	PeerHeight      int64
	TotalDifficulty int64
	Connections     int
}

// Healthy reports a connected node which is at most 5 blocks behind its peers.
func (n NodeStatus) Healthy() bool {
	return n.Online && n.Connections > 0 && n.NodeHeight > 0 && n.NodeHeight+5 >= n.PeerHeight
}

type SeedPayload struct {
	Words []string
}

type SlatePayload struct {
	Slate   string
	Address string
	Amount  string
	Message string
	// Back is true for a slate returned to its sender.
	Back bool
}

type ListenerPayload struct {
	Name    string
	Running bool
}

func (SendPayload) payload()        {}
func (SendFilePayload) payload()    {}
func (ReceiveFilePayload) payload() {}
func (FinalizePayload) payload()    {}
func (AccountPayload) payload()     {}
func (NodeStatus) payload()         {}
func (SeedPayload) payload()        {}
func (SlatePayload) payload()       {}
func (ListenerPayload) payload()    {}
