// Package state implements the wallet workflow as a directed graph of states.
//
// States talk to mwc713 only through Wallet and to the user only through
// Display. Results of tasks are awaited on their handles, so a state action
// blocks until mwc713 answered, the deadline passed or ctx is done.
package state

import (
	"context"
	"slices"

	"github.com/mwcproject/mwcwallet/internal/dispatch"
	"github.com/mwcproject/mwcwallet/internal/node"
	"github.com/mwcproject/mwcwallet/internal/task"
)

type ID int

const (
	None ID = iota
	Init
	InputPassword
	NewWallet
	GenerateNewSeed
	ShowNewSeed
	TestNewSeed
	CreateWithSeed
	FromSeedFile
	Accounts
	Events
	Hodl
	SendCoins
	FileTransactions
	NodeStatus
	NodeChange
)

var idNames = [...]string{
	None:             "none",
	Init:             "init",
	InputPassword:    "input_password",
	NewWallet:        "new_wallet",
	GenerateNewSeed:  "generate_new_seed",
	ShowNewSeed:      "show_new_seed",
	TestNewSeed:      "test_new_seed",
	CreateWithSeed:   "create_with_seed",
	FromSeedFile:     "from_seed_file",
	Accounts:         "accounts",
	Events:           "events",
	Hodl:             "hodl",
	SendCoins:        "send_coins",
	FileTransactions: "file_transactions",
	NodeStatus:       "node_status",
	NodeChange:       "node_change",
}

func (id ID) String() string {
	if id < 0 || int(id) >= len(idNames) {
		return "unknown"
	}
	return idNames[id]
}

// ParseID is the reverse of String.
func ParseID(name string) (ID, bool) {
	i := slices.Index(idNames[:], name)
	return ID(i), i > 0
}

type Verdict int

const (
	// VerdictNext moves to Response.Next right away.
	VerdictNext Verdict = iota + 1
	// VerdictWait keeps the state current until a user action.
	VerdictWait
	// VerdictDone hands control back to the caller of the machine.
	VerdictDone
)

type Response struct {
	Verdict Verdict
	Next    ID
}

func NextState(id ID) Response { return Response{Verdict: VerdictNext, Next: id} }

var (
	WaitForAction = Response{Verdict: VerdictWait}
	Done          = Response{Verdict: VerdictDone}
)

// State is a single step of the workflow.
type State interface {
	ID() ID
	Execute(ctx context.Context) Response
}

// Wallet is the mwc713 session as seen by states. *dispatch.Dispatcher satisfies it.
type Wallet interface {
	Submit(t task.Task) (*dispatch.Handle, error)
	Listen(l task.Listener) (*dispatch.Subscription, error)
	Cancel(id string) bool
}

// Display is everything a state may do with the user.
type Display interface {
	ShowResult(res task.Result)
	ShowError(title string, msgs ...string)
	Confirm(ctx context.Context, title, message string) bool
}

// Health is the cached node status. *node.Monitor satisfies it.
type Health interface {
	Healthy() bool
	Status() node.Status
	Check()
}
