package node_test

import (
	"context"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mwcproject/mwcwallet/internal/dispatch"
	"github.com/mwcproject/mwcwallet/internal/model"
	"github.com/mwcproject/mwcwallet/internal/node"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// wallet answers node-info with a fixed height, it grows on every call.
type wallet struct {
	lines  chan string
	done   chan struct{}
	height atomic.Int64
	peers  int64
	// silent leaves every command unanswered.
	silent bool
	sent   atomic.Int32
}

const prompt = "wallet713> "

func newWallet(peers int64) *wallet {
	w := &wallet{lines: make(chan string, 64), done: make(chan struct{}), peers: peers}
	w.lines <- prompt
	return w
}

func (w *wallet) Send(line string) error {
	w.sent.Add(1)
	if w.silent {
		return nil
	}
	if line != "node-info" {
		w.lines <- "error: unknown command"
		w.lines <- prompt
		return nil
	}
	h := w.height.Add(1)
	w.lines <- "Node height: " + itoa(h)
	w.lines <- "Peers height: " + itoa(w.peers)
	w.lines <- "Total difficulty: 100"
	w.lines <- "Connections: 4"
	w.lines <- prompt
	return nil
}

func (w *wallet) Lines() <-chan string  { return w.lines }
func (w *wallet) Done() <-chan struct{} { return w.done }
func (w *wallet) Err() error            { return nil }

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}

func runDispatcher(t *testing.T, w *wallet) (*dispatch.Dispatcher, context.Context) {
	t.Helper()
	ctx, cancel := context.WithCancel(t.Context())
	d := dispatch.New(w)
	go func() { _ = d.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-d.Stopped()
	})
	return d, ctx
}

func TestMonitor(t *testing.T) {
	t.Parallel()
	w := newWallet(1)
	d, ctx := runDispatcher(t, w)

	m, err := node.NewMonitor(ctx, model.Health{Enabled: false}, d)
	require.NoError(t, err)
	require.False(t, m.Healthy())
	updates := m.Updates()

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	select {
	case st := <-updates:
		require.Equal(t, int64(1), st.NodeHeight)
		require.Equal(t, 4, st.Connections)
		require.False(t, st.Checked.IsZero())
	case <-time.After(5 * time.Second):
		t.Fatal("no status")
	}
	require.True(t, m.Healthy())

	m.Check()
	select {
	case st := <-updates:
		require.Equal(t, int64(2), st.NodeHeight)
	case <-time.After(5 * time.Second):
		t.Fatal("no status")
	}

	cancel()
	require.NoError(t, <-done)
	_, ok := <-updates
	require.False(t, ok)
}

func TestMonitorUnhealthy(t *testing.T) {
	t.Parallel()
	w := newWallet(100)
	d, ctx := runDispatcher(t, w)

	m, err := node.NewMonitor(ctx, model.Health{}, d)
	require.NoError(t, err)
	updates := m.Updates()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() { _ = m.Run(ctx) }()

	var st node.Status
	select {
	case st = <-updates:
	case <-time.After(5 * time.Second):
		t.Fatal("no status")
	}
	require.True(t, st.Online)
	require.False(t, st.Healthy())
	require.False(t, m.Healthy())
}

func TestMonitorDispatcherGone(t *testing.T) {
	t.Parallel()
	ctx, stop := context.WithCancel(t.Context())
	d := dispatch.New(newWallet(1))
	go func() { _ = d.Run(ctx) }()
	stop()
	<-d.Stopped()

	m, err := node.NewMonitor(t.Context(), model.Health{}, d)
	require.NoError(t, err)
	require.NoError(t, m.Run(t.Context()))
	require.Equal(t, []string{model.ErrProcessUnavailable.Error()}, m.Status().Errors)
	require.False(t, m.Healthy())
}

type cancels struct {
	*dispatch.Dispatcher
	ids chan string
}

func (c cancels) Cancel(id string) bool {
	c.ids <- id
	return c.Dispatcher.Cancel(id)
}

func TestMonitorCancelsUnansweredCheck(t *testing.T) {
	t.Parallel()
	w := newWallet(1)
	w.silent = true
	d, ctx := runDispatcher(t, w)
	c := cancels{Dispatcher: d, ids: make(chan string, 1)}

	m, err := node.NewMonitor(ctx, model.Health{}, c)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	require.Eventually(t, func() bool { return w.sent.Load() == 1 }, 5*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	select {
	case id := <-c.ids:
		require.NotEmpty(t, id)
	case <-time.After(5 * time.Second):
		t.Fatal("check was not cancelled")
	}
}

func TestNewMonitorSchedule(t *testing.T) {
	t.Parallel()
	cases := []struct {
		scenario string
		given    model.Health
		then     string
	}{
		{"cron", model.Health{Enabled: true, Cron: "*/5 * * * *"}, ""},
		{"duration", model.Health{Enabled: true, Duration: "PT30S"}, ""},
		{"bad cron", model.Health{Enabled: true, Cron: "* * *"}, "parsing node.health.cron"},
		{"bad duration", model.Health{Enabled: true, Duration: "30s"}, "parsing node.health.duration"},
		{"empty", model.Health{Enabled: true}, "both cron and duration are empty"},
	}
	for _, tc := range cases {
		t.Run(tc.scenario, func(t *testing.T) {
			m, err := node.NewMonitor(t.Context(), tc.given, nil)
			if tc.then != "" {
				require.ErrorContains(t, err, tc.then)
				return
			}
			require.NoError(t, err)
			require.NoError(t, m.Close())
		})
	}
}
