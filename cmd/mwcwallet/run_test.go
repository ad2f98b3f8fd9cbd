package main

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/mwcproject/mwcwallet/internal/dispatch"
	"github.com/mwcproject/mwcwallet/internal/display"
	"github.com/mwcproject/mwcwallet/internal/model"
	"github.com/mwcproject/mwcwallet/internal/node"
	"github.com/mwcproject/mwcwallet/internal/state"
)

const prompt = "wallet713> "

// wallet answers commands by their first word.
type wallet struct {
	lines   chan string
	done    chan struct{}
	replies map[string][]string
}

func (w *wallet) Send(cmd string) error {
	v, _, _ := strings.Cut(cmd, " ")
	reply, ok := w.replies[v]
	if !ok {
		reply = []string{"error: unknown command " + v, prompt}
	}
	for _, l := range reply {
		w.lines <- l
	}
	return nil
}

func (w *wallet) Lines() <-chan string  { return w.lines }
func (w *wallet) Done() <-chan struct{} { return w.done }
func (w *wallet) Err() error            { return nil }

type syncBuffer struct {
	mx  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mx.Lock()
	defer b.mx.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mx.Lock()
	defer b.mx.Unlock()
	return b.buf.String()
}

func newREPL(t *testing.T, replies map[string][]string) (*repl, *syncBuffer) {
	t.Helper()
	ctx, cancel := context.WithCancel(t.Context())
	w := &wallet{
		lines:   make(chan string, 256),
		done:    make(chan struct{}),
		replies: replies,
	}
	w.lines <- prompt

	out := &syncBuffer{}
	s := &session{
		dispatcher: dispatch.New(w),
		console:    display.New(out, display.WithStyles(display.PlainStyles()), display.WithAssumeYes(true)),
	}
	var err error
	s.monitor, err = node.NewMonitor(ctx, model.Health{}, s.dispatcher)
	require.NoError(t, err)
	s.machine, err = state.NewMachine(&state.Context{
		Wallet:       s.dispatcher,
		Display:      s.console,
		Health:       s.monitor,
		Send:         model.DefaultConfig(ctx).Send,
		WalletExists: true,
	})
	require.NoError(t, err)

	s.g, s.gctx = errgroup.WithContext(ctx)
	s.g.Go(func() error {
		return s.dispatcher.Run(s.gctx)
	})
	t.Cleanup(func() {
		cancel()
		require.NoError(t, s.g.Wait())
	})

	require.NoError(t, s.machine.Start(ctx))
	r := &repl{s: s, out: out}
	r.announce()
	return r, out
}

func TestREPL(t *testing.T) {
	t.Parallel()
	r, out := newREPL(t, map[string][]string{
		"unlock":   {prompt},
		"set-recv": {`Incoming funds will be received in account: "savings"`, prompt},
	})
	ctx := t.Context()
	require.Contains(t, out.String(), "wallet is locked")

	require.False(t, r.exec(ctx, ""))
	require.False(t, r.exec(ctx, "bogus"))
	require.Contains(t, out.String(), "unknown command, try help")

	require.False(t, r.exec(ctx, "unlock"))
	require.Contains(t, out.String(), "usage: unlock PASSWORD")

	require.False(t, r.exec(ctx, "go send_coins"))
	require.Contains(t, out.String(), model.ErrInvalidTransition.Error())

	require.False(t, r.exec(ctx, "unlock secret"))
	require.Equal(t, state.Accounts, r.s.machine.Current())
	require.Contains(t, out.String(), "accounts, other states: events hodl send_coins")

	require.False(t, r.exec(ctx, "account savings"))
	require.Contains(t, out.String(), "receive account is savings")

	require.False(t, r.exec(ctx, "go nowhere"))
	require.Contains(t, out.String(), `unknown state "nowhere"`)

	require.False(t, r.exec(ctx, "help"))
	require.Contains(t, out.String(), "send ADDRESS AMOUNT [MESSAGE]")

	require.True(t, r.exec(ctx, "go node_change"))
	require.True(t, r.exec(ctx, "quit"))
}

func TestParseAnswers(t *testing.T) {
	t.Parallel()
	words, err := parseAnswers([]string{"3=ribbon", "11=owl"})
	require.NoError(t, err)
	require.Equal(t, map[int]string{3: "ribbon", 11: "owl"}, words)

	for _, bad := range [][]string{nil, {"ribbon"}, {"0=x"}, {"x=y"}, {"4="}} {
		_, err := parseAnswers(bad)
		require.ErrorIs(t, err, errUsage)
	}
}

func TestLineReader(t *testing.T) {
	t.Parallel()
	l := readLines(strings.NewReader("unlock pw\nquit\n"))
	ctx := t.Context()

	line, err := l.next(ctx)
	require.NoError(t, err)
	require.Equal(t, "unlock pw", line)
	line, err = l.next(ctx)
	require.NoError(t, err)
	require.Equal(t, "quit", line)
	_, err = l.next(ctx)
	require.ErrorIs(t, err, io.EOF)
}
