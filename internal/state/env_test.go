package state_test

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mwcproject/mwcwallet/internal/dispatch"
	"github.com/mwcproject/mwcwallet/internal/model"
	"github.com/mwcproject/mwcwallet/internal/node"
	"github.com/mwcproject/mwcwallet/internal/state"
	"github.com/mwcproject/mwcwallet/internal/task"
)

const prompt = "wallet713> "

// scripted answers every command with the lines returned by reply.
type scripted struct {
	lines chan string
	done  chan struct{}
	reply func(cmd string) []string

	mx   sync.Mutex
	sent []string
}

func newScripted(reply func(cmd string) []string) *scripted {
	p := &scripted{
		lines: make(chan string, 256),
		done:  make(chan struct{}),
		reply: reply,
	}
	p.lines <- "mwc713 wallet"
	p.lines <- prompt
	return p
}

func (p *scripted) Send(cmd string) error {
	p.mx.Lock()
	p.sent = append(p.sent, cmd)
	p.mx.Unlock()
	for _, l := range p.reply(cmd) {
		p.lines <- l
	}
	return nil
}

func (p *scripted) Lines() <-chan string  { return p.lines }
func (p *scripted) Done() <-chan struct{} { return p.done }
func (p *scripted) Err() error            { return nil }

func (p *scripted) emit(lines ...string) {
	for _, l := range lines {
		p.lines <- l
	}
}

func (p *scripted) commands() []string {
	p.mx.Lock()
	defer p.mx.Unlock()
	return append([]string(nil), p.sent...)
}

// verb answers by the first word of the command.
func verb(replies map[string][]string) func(string) []string {
	return func(cmd string) []string {
		v, _, _ := strings.Cut(cmd, " ")
		if r, ok := replies[v]; ok {
			return r
		}
		return []string{"error: unknown command " + v, prompt}
	}
}

// wallet records the tasks states gave up on.
type wallet struct {
	*dispatch.Dispatcher

	mx        sync.Mutex
	cancelled []string
}

func (w *wallet) Cancel(id string) bool {
	ok := w.Dispatcher.Cancel(id)
	if ok {
		w.mx.Lock()
		w.cancelled = append(w.cancelled, id)
		w.mx.Unlock()
	}
	return ok
}

func (w *wallet) cancels() []string {
	w.mx.Lock()
	defer w.mx.Unlock()
	return append([]string(nil), w.cancelled...)
}

type display struct {
	mx      sync.Mutex
	results []task.Result
	errors  []string
	confirm atomic.Bool
	asked   []string
}

func (d *display) ShowResult(res task.Result) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.results = append(d.results, res)
}

func (d *display) ShowError(title string, msgs ...string) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.errors = append(d.errors, title+": "+strings.Join(msgs, "; "))
}

func (d *display) Confirm(_ context.Context, title, message string) bool {
	d.mx.Lock()
	d.asked = append(d.asked, message)
	d.mx.Unlock()
	return d.confirm.Load()
}

func (d *display) lastError() string {
	d.mx.Lock()
	defer d.mx.Unlock()
	if len(d.errors) == 0 {
		return ""
	}
	return d.errors[len(d.errors)-1]
}

func (d *display) lastResult() task.Result {
	d.mx.Lock()
	defer d.mx.Unlock()
	if len(d.results) == 0 {
		return task.Result{}
	}
	return d.results[len(d.results)-1]
}

type health struct {
	status node.Status
	checks atomic.Int32
}

func (h *health) Healthy() bool       { return h.status.Healthy() }
func (h *health) Status() node.Status { return h.status }
func (h *health) Check()              { h.checks.Add(1) }

type env struct {
	m       *state.Machine
	proc    *scripted
	wallet  *wallet
	display *display
	health  *health
	ctx     context.Context
}

func newEnv(t *testing.T, exists bool, replies map[string][]string) *env {
	t.Helper()
	ctx, cancel := context.WithCancel(t.Context())
	proc := newScripted(verb(replies))
	d := dispatch.New(proc)
	go func() { _ = d.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-d.Stopped()
	})

	e := &env{
		proc:    proc,
		wallet:  &wallet{Dispatcher: d},
		display: &display{},
		health:  &health{},
		ctx:     ctx,
	}
	e.display.confirm.Store(true)
	// sends are reported unconfirmed right away
	send := model.DefaultConfig(ctx).Send
	send.StaleAfter = "PT0S"
	m, err := state.NewMachine(&state.Context{
		Wallet:       e.wallet,
		Display:      e.display,
		Health:       e.health,
		Send:         send,
		WalletExists: exists,
	})
	require.NoError(t, err)
	e.m = m
	require.NoError(t, m.Start(ctx))
	return e
}

// unlocked opens an existing wallet and stops at the accounts hub.
func unlocked(t *testing.T, replies map[string][]string) *env {
	t.Helper()
	if _, ok := replies["unlock"]; !ok {
		replies["unlock"] = []string{prompt}
	}
	e := newEnv(t, true, replies)
	res, err := e.m.State(state.InputPassword).(*state.InputPasswordState).Unlock(e.ctx, "pw")
	require.NoError(t, err)
	require.True(t, res.OK())
	require.Equal(t, state.Accounts, e.m.Current())
	return e
}
