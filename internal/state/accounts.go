package state

import (
	"context"
	"errors"

	"github.com/mwcproject/mwcwallet/internal/task"
)

var ErrEmptyAccount = errors.New("account name is empty")

// AccountsState is the hub of an open wallet.
type AccountsState struct {
	m *Machine
}

func (s *AccountsState) ID() ID                           { return Accounts }
func (s *AccountsState) Execute(context.Context) Response { return WaitForAction }

// SetReceiveAccount selects the account incoming slates are credited to.
func (s *AccountsState) SetReceiveAccount(ctx context.Context, account string) (task.Result, error) {
	if err := s.m.in(Accounts); err != nil {
		return task.Result{}, err
	}
	if account == "" {
		return task.Result{}, ErrEmptyAccount
	}
	return s.m.run(ctx, task.SetReceiveAccount{Account: account}), nil
}

// EventsState lists the slates received while the wallet is open.
type EventsState struct {
	m *Machine
}

func (s *EventsState) ID() ID { return Events }

func (s *EventsState) Execute(context.Context) Response {
	for _, res := range s.m.events.All() {
		s.m.c.Display.ShowResult(res)
	}
	return WaitForAction
}

// Slates returns received slates, oldest first.
func (s *EventsState) Slates() []task.SlatePayload {
	return s.m.events.Slates()
}

// HodlState shows whether the wallet can take part in the HODL program,
// which needs a healthy node.
type HodlState struct {
	m *Machine
}

func (s *HodlState) ID() ID { return Hodl }

func (s *HodlState) Execute(context.Context) Response {
	if !s.Eligible() {
		s.m.c.Display.ShowError("HODL", "MWC-NODE is not healthy, HODL status is not available")
	}
	return WaitForAction
}

func (s *HodlState) Eligible() bool {
	return s.m.c.Health != nil && s.m.c.Health.Healthy()
}

// NodeStatusState shows the cached node status and asks for a refresh.
type NodeStatusState struct {
	m *Machine
}

func (s *NodeStatusState) ID() ID { return NodeStatus }

func (s *NodeStatusState) Execute(context.Context) Response {
	if s.m.c.Health == nil {
		s.m.c.Display.ShowError("Node status", "node health check is disabled")
		return WaitForAction
	}
	st := s.m.c.Health.Status()
	if st.Checked.IsZero() || len(st.Errors) > 0 {
		s.m.c.Display.ShowError("Node status", append([]string{"MWC-NODE status is not known"}, st.Errors...)...)
	} else {
		s.m.c.Display.ShowResult(task.Result{Kind: task.KindNodeInfo, Outcome: task.Success, Payload: st.NodeStatus})
	}
	s.m.c.Health.Check()
	return WaitForAction
}

// NodeChangeState ends the workflow segment: switching the node needs a new
// mwc713 session, which the owner of the machine starts.
type NodeChangeState struct {
	m *Machine
}

func (s *NodeChangeState) ID() ID                           { return NodeChange }
func (s *NodeChangeState) Execute(context.Context) Response { return Done }
