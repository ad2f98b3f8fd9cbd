package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/mwcproject/mwcwallet/internal/dispatch"
	"github.com/mwcproject/mwcwallet/internal/model"
	"github.com/mwcproject/mwcwallet/internal/task"
)

// Context carries the collaborators shared by all states.
type Context struct {
	Wallet  Wallet
	Display Display
	Health  Health
	Send    model.Send
	// WalletExists selects between unlocking and creating a wallet.
	WalletExists bool
}

// hub states are reachable from each other, the navigation of an open wallet.
var hub = []ID{Accounts, Events, Hodl, SendCoins, FileTransactions, NodeStatus, NodeChange}

var graph = map[ID][]ID{
	None:            {Init},
	Init:            {InputPassword, NewWallet},
	InputPassword:   {Accounts},
	NewWallet:       {GenerateNewSeed, CreateWithSeed, FromSeedFile},
	GenerateNewSeed: {ShowNewSeed, NewWallet},
	ShowNewSeed:     {TestNewSeed},
	TestNewSeed:     {Accounts, ShowNewSeed},
	CreateWithSeed:  {Accounts, NewWallet},
	FromSeedFile:    {Accounts, NewWallet},
}

func init() {
	for _, id := range hub {
		graph[id] = hub
	}
}

// Allowed reports whether the graph has an edge from -> to.
func Allowed(from, to ID) bool {
	return slices.Contains(graph[from], to)
}

// Machine runs the workflow. Transitions are serialized, actions of
// different states may run concurrently.
type Machine struct {
	c *Context

	mx      sync.Mutex
	current ID
	states  map[ID]State

	secretMx sync.RWMutex
	password string
	seed     []string

	sendLog *SendLog
	events  *EventLog
}

func NewMachine(c *Context) (*Machine, error) {
	sendLog, err := NewSendLog(c.Send.SendLogSize, c.Send.StaleAge())
	if err != nil {
		return nil, err
	}
	m := &Machine{
		c:       c,
		sendLog: sendLog,
		events:  NewEventLog(c.Send.SendLogSize),
	}
	m.states = map[ID]State{
		Init:             &InitState{m: m},
		InputPassword:    &InputPasswordState{m: m},
		NewWallet:        &NewWalletState{m: m},
		GenerateNewSeed:  &GenerateNewSeedState{m: m},
		ShowNewSeed:      &ShowNewSeedState{m: m},
		TestNewSeed:      &TestNewSeedState{m: m},
		CreateWithSeed:   &CreateWithSeedState{m: m},
		FromSeedFile:     &FromSeedFileState{m: m},
		Accounts:         &AccountsState{m: m},
		Events:           &EventsState{m: m},
		Hodl:             &HodlState{m: m},
		SendCoins:        newSendCoinsState(m, c.Send),
		FileTransactions: &FileTransactionsState{m: m},
		NodeStatus:       &NodeStatusState{m: m},
		NodeChange:       &NodeChangeState{m: m},
	}
	return m, nil
}

// Start enters Init.
func (m *Machine) Start(ctx context.Context) error {
	return m.SetState(ctx, Init)
}

// Current returns the active state.
func (m *Machine) Current() ID {
	m.mx.Lock()
	defer m.mx.Unlock()
	return m.current
}

// State returns the state implementation, callers type assert to reach its actions.
func (m *Machine) State(id ID) State {
	return m.states[id]
}

// SetState moves to id and follows NextState responses until a state waits
// or is done. An edge missing in the graph fails with model.ErrInvalidTransition.
func (m *Machine) SetState(ctx context.Context, id ID) error {
	m.mx.Lock()
	defer m.mx.Unlock()

	for {
		if !Allowed(m.current, id) {
			return fmt.Errorf("%w: %s -> %s", model.ErrInvalidTransition, m.current, id)
		}
		slog.DebugContext(ctx, "state transition", "from", m.current, "to", id)
		m.current = id
		resp := m.states[id].Execute(ctx)
		if resp.Verdict != VerdictNext {
			return nil
		}
		id = resp.Next
	}
}

// in checks an action is invoked on the active state.
func (m *Machine) in(id ID) error {
	if cur := m.Current(); cur != id {
		return fmt.Errorf("%w: %s is active, not %s", model.ErrWrongState, cur, id)
	}
	return nil
}

// run submits t and waits for its result. The result is shown either way,
// failures come back as results and never as errors.
func (m *Machine) run(ctx context.Context, t task.Task) task.Result {
	res := m.await(ctx, t)
	if res.OK() {
		m.c.Display.ShowResult(res)
	} else {
		m.c.Display.ShowError(t.Kind().String(), res.Errors...)
	}
	return res
}

func (m *Machine) await(ctx context.Context, t task.Task) task.Result {
	h, err := m.c.Wallet.Submit(t)
	if err != nil {
		return task.UnavailableResult(t.Kind(), err)
	}
	res, err := h.Wait(ctx)
	if err != nil {
		if m.c.Wallet.Cancel(h.ID()) {
			slog.DebugContext(ctx, "abandoned task cancelled", "task_id", h.ID(), "kind", t.Kind())
		}
		return task.CancelledResult(t.Kind())
	}
	return res
}

// Watch subscribes to slate and listener notifications and records them
// until ctx is done or the wallet is gone.
func (m *Machine) Watch(ctx context.Context) error {
	slates, err := m.c.Wallet.Listen(task.SlateListener{})
	if err != nil {
		return err
	}
	defer unsubscribe(slates)
	listeners, err := m.c.Wallet.Listen(task.ListenerStatus{})
	if err != nil {
		return err
	}
	defer unsubscribe(listeners)

	for {
		var res task.Result
		var ok bool
		select {
		case <-ctx.Done():
			return nil
		case res, ok = <-slates.Results():
		case res, ok = <-listeners.Results():
		}
		if !ok {
			return nil
		}
		if errors.Is(res.Err, model.ErrProcessUnavailable) {
			slog.DebugContext(ctx, "watch stopped", "errors", res.Errors)
			return nil
		}
		m.record(ctx, res)
	}
}

func unsubscribe(s *dispatch.Subscription) {
	s.Close()
	for range s.Results() {
	}
}

func (m *Machine) record(ctx context.Context, res task.Result) {
	m.events.Add(res)
	if p, ok := res.Payload.(task.SlatePayload); ok && p.Back {
		m.sendLog.Responded(p.Slate)
	}
	slog.InfoContext(ctx, "wallet notification", "kind", res.Kind, "payload", res.Payload)
	m.c.Display.ShowResult(res)
}

func (m *Machine) setPassword(pw string) {
	m.secretMx.Lock()
	defer m.secretMx.Unlock()
	m.password = pw
}

func (m *Machine) getPassword() string {
	m.secretMx.RLock()
	defer m.secretMx.RUnlock()
	return m.password
}

func (m *Machine) setSeed(words []string) {
	m.secretMx.Lock()
	defer m.secretMx.Unlock()
	m.seed = slices.Clone(words)
}

func (m *Machine) getSeed() []string {
	m.secretMx.RLock()
	defer m.secretMx.RUnlock()
	return slices.Clone(m.seed)
}

// SendLog returns the record of online sends.
func (m *Machine) SendLog() *SendLog { return m.sendLog }

// EventLog returns the notifications received so far.
func (m *Machine) EventLog() *EventLog { return m.events }
