package dispatch_test

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mwcproject/mwcwallet/internal/dispatch"
	"github.com/mwcproject/mwcwallet/internal/model"
	"github.com/mwcproject/mwcwallet/internal/task"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	sentLine = "slate [abc-123] for [0.321000000] MWCs sent successfully to [xmgEv]"
	wait     = 5 * time.Second
)

type fakeProc struct {
	sent    chan string
	lines   chan string
	done    chan struct{}
	err     error
	sendErr error
}

const prompt = "wallet713> "

// newFakeProc starts with the banner prompt mwc713 prints before any command.
func newFakeProc() *fakeProc {
	p := &fakeProc{
		sent:  make(chan string, 64),
		lines: make(chan string, 64),
		done:  make(chan struct{}),
	}
	p.lines <- prompt
	return p
}

func (p *fakeProc) Send(line string) error {
	if p.sendErr != nil {
		return p.sendErr
	}
	p.sent <- line
	return nil
}

func (p *fakeProc) Lines() <-chan string  { return p.lines }
func (p *fakeProc) Done() <-chan struct{} { return p.done }
func (p *fakeProc) Err() error            { return p.err }

func (p *fakeProc) emit(lines ...string) {
	for _, l := range lines {
		p.lines <- l
	}
}

func (p *fakeProc) exit(err error) {
	p.err = err
	close(p.lines)
	close(p.done)
}

func start(t *testing.T, p *fakeProc, opts ...dispatch.Option) (*dispatch.Dispatcher, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(t.Context())
	d := dispatch.New(p, opts...)
	errs := make(chan error, 1)
	go func() {
		errs <- d.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-d.Stopped()
	})
	return d, errs
}

func sent(t *testing.T, p *fakeProc) string {
	t.Helper()
	select {
	case cmd := <-p.sent:
		return cmd
	case <-time.After(wait):
		t.Fatal("no command sent")
		return ""
	}
}

func noneSent(t *testing.T, p *fakeProc) {
	t.Helper()
	select {
	case cmd := <-p.sent:
		t.Fatalf("unexpected command %q", cmd)
	case <-time.After(50 * time.Millisecond):
	}
}

func result(t *testing.T, h *dispatch.Handle) task.Result {
	t.Helper()
	res, err := h.Wait(newTimeout(t))
	require.NoError(t, err)
	return res
}

func newTimeout(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(t.Context(), wait)
	t.Cleanup(cancel)
	return ctx
}

func TestSubmitFIFO(t *testing.T) {
	t.Parallel()
	p := newFakeProc()
	d, _ := start(t, p)

	first, err := d.Submit(task.SendOnline{Address: "xmgEv"})
	require.NoError(t, err)
	second, err := d.Submit(task.SetReceiveAccount{Account: "savings"})
	require.NoError(t, err)
	require.NotEqual(t, first.ID(), second.ID())

	require.Equal(t, `send --to "xmgEv"`, sent(t, p))
	noneSent(t, p)
	require.Equal(t, task.AwaitingResult, first.State())
	require.Equal(t, task.Pending, second.State())

	p.emit(sentLine, "txid=34", prompt)
	res := result(t, first)
	require.True(t, res.OK())
	require.Equal(t, first.ID(), res.TaskID)
	require.Equal(t, task.KindSendOnline, res.Kind)
	require.Equal(t, int64(34), res.Payload.(task.SendPayload).TxID)
	require.Equal(t, task.Completed, first.State())

	require.Equal(t, `set-recv "savings"`, sent(t, p))
	p.emit(`Incoming funds will be received in account: "savings"`)
	res = result(t, second)
	require.True(t, res.OK())
	require.Equal(t, task.AccountPayload{Account: "savings"}, res.Payload)
}

func TestSameCommandTwice(t *testing.T) {
	t.Parallel()
	p := newFakeProc()
	d, _ := start(t, p)

	a, err := d.Submit(task.NodeInfo{})
	require.NoError(t, err)
	b, err := d.Submit(task.NodeInfo{})
	require.NoError(t, err)

	for _, h := range []*dispatch.Handle{a, b} {
		require.Equal(t, "node-info", sent(t, p))
		p.emit("Node height: 10", "Peers height: 10", "Total difficulty: 1", "Connections: 2", prompt)
		res := result(t, h)
		require.True(t, res.OK())
		require.Equal(t, h.ID(), res.TaskID)
	}
}

func TestErrorCompletesTask(t *testing.T) {
	t.Parallel()
	p := newFakeProc()
	d, _ := start(t, p)

	h, err := d.Submit(task.SendOnline{Address: "xmgEv"})
	require.NoError(t, err)
	sent(t, p)
	p.emit("error: Unable to connect, is recipient listening?")

	res := result(t, h)
	require.False(t, res.OK())
	require.ErrorIs(t, res.Err, model.ErrTaskFailure)
	require.Equal(t, task.MsgRecipientOffline, res.Errors[0])
}

func TestTimeout(t *testing.T) {
	t.Parallel()
	p := newFakeProc()
	d, _ := start(t, p, dispatch.WithTimeout(200*time.Millisecond), dispatch.WithTick(10*time.Millisecond))

	inflight, err := d.Submit(task.NodeInfo{})
	require.NoError(t, err)
	queued, err := d.Submit(task.NodeInfo{TimeoutPolicy: task.TimeoutPolicy{After: 20 * time.Millisecond}})
	require.NoError(t, err)
	require.Equal(t, "node-info", sent(t, p))

	res := result(t, queued)
	require.ErrorIs(t, res.Err, model.ErrTaskTimeout)
	require.Equal(t, task.TimedOut, queued.State())
	require.Equal(t, task.AwaitingResult, inflight.State())

	res = result(t, inflight)
	require.ErrorIs(t, res.Err, model.ErrTaskTimeout)
	require.Equal(t, task.TimedOut, inflight.State())

	next, err := d.Submit(task.GenerateSeed{})
	require.NoError(t, err)
	require.Equal(t, "init", sent(t, p))
	require.Equal(t, task.AwaitingResult, next.State())
}

func TestCancel(t *testing.T) {
	t.Parallel()
	p := newFakeProc()
	d, _ := start(t, p)

	inflight, err := d.Submit(task.NodeInfo{})
	require.NoError(t, err)
	queued, err := d.Submit(task.GenerateSeed{})
	require.NoError(t, err)
	last, err := d.Submit(task.Unlock{Password: "pw"})
	require.NoError(t, err)
	require.Equal(t, "node-info", sent(t, p))

	t.Run("queued", func(t *testing.T) {
		require.True(t, d.Cancel(queued.ID()))
		res := result(t, queued)
		require.ErrorIs(t, res.Err, model.ErrTaskCancelled)
		require.Equal(t, task.Cancelled, queued.State())
		noneSent(t, p)
	})

	t.Run("in flight", func(t *testing.T) {
		require.True(t, d.Cancel(inflight.ID()))
		res := result(t, inflight)
		require.ErrorIs(t, res.Err, model.ErrTaskCancelled)
		require.Equal(t, `unlock --password "pw"`, sent(t, p))
		require.Equal(t, task.AwaitingResult, last.State())
	})

	t.Run("unknown", func(t *testing.T) {
		require.False(t, d.Cancel("nope"))
		require.False(t, d.Cancel(inflight.ID()))
	})
}

func TestListener(t *testing.T) {
	t.Parallel()
	p := newFakeProc()
	d, _ := start(t, p)

	sub, err := d.Listen(task.SlateListener{})
	require.NoError(t, err)

	p.emit(
		"some noise nobody cares about",
		"slate [0436] received from [xmgEv] for [1.000000000] MWCs. Message: [lunch]",
	)
	select {
	case res := <-sub.Results():
		require.True(t, res.OK())
		require.Equal(t, sub.ID(), res.TaskID)
		require.Equal(t, task.SlatePayload{Slate: "0436", Address: "xmgEv", Amount: "1.000000000", Message: "lunch"}, res.Payload)
	case <-time.After(wait):
		t.Fatal("no listener result")
	}

	// a slate returning during a send reaches both the listener and the task
	h, err := d.Submit(task.SendOnline{Address: "xmgEv"})
	require.NoError(t, err)
	sent(t, p)
	p.emit("slate [abc-123] received back from [xmgEv] for [0.321000000] MWCs", sentLine, "txid=34")

	res := result(t, h)
	require.True(t, res.OK())
	require.True(t, res.Payload.(task.SendPayload).Responded)
	select {
	case res := <-sub.Results():
		require.True(t, res.Payload.(task.SlatePayload).Back)
	case <-time.After(wait):
		t.Fatal("no listener result")
	}

	sub.Close()
	_, ok := <-sub.Results()
	require.False(t, ok)
}

func TestListenerFallsBehind(t *testing.T) {
	t.Parallel()
	p := newFakeProc()
	d, _ := start(t, p, dispatch.WithListenerQueue(2))

	sub, err := d.Listen(task.SlateListener{})
	require.NoError(t, err)
	for i := range 10 {
		p.emit("slate [s" + strconv.Itoa(i) + "] received from [xmgEv] for [1.000000000] MWCs")
	}
	// one result waits in the channel, two in the queue
	require.Eventually(t, func() bool { return sub.Dropped() == 7 }, wait, 5*time.Millisecond)

	sub.Close()
	var slates []string
	for res := range sub.Results() {
		slates = append(slates, res.Payload.(task.SlatePayload).Slate)
	}
	require.Equal(t, []string{"s0", "s8", "s9"}, slates)
}

func TestProcessExit(t *testing.T) {
	t.Parallel()
	p := newFakeProc()
	d, errs := start(t, p)

	sub, err := d.Listen(task.SlateListener{})
	require.NoError(t, err)
	inflight, err := d.Submit(task.NodeInfo{})
	require.NoError(t, err)
	queued, err := d.Submit(task.GenerateSeed{})
	require.NoError(t, err)
	sent(t, p)

	boom := errors.New("exit status 1")
	p.exit(boom)

	select {
	case err := <-errs:
		require.ErrorIs(t, err, model.ErrProcessUnavailable)
		require.ErrorIs(t, err, boom)
	case <-time.After(wait):
		t.Fatal("dispatcher did not stop")
	}

	for _, h := range []*dispatch.Handle{inflight, queued} {
		res := result(t, h)
		require.ErrorIs(t, res.Err, model.ErrProcessUnavailable)
		select {
		case <-h.Done():
			t.Fatal("second result delivered")
		default:
		}
	}

	var got []task.Result
	for res := range sub.Results() {
		got = append(got, res)
	}
	require.Len(t, got, 1)
	require.ErrorIs(t, got[0].Err, model.ErrProcessUnavailable)

	_, err = d.Submit(task.NodeInfo{})
	require.ErrorIs(t, err, model.ErrProcessUnavailable)
	_, err = d.Listen(task.ListenerStatus{})
	require.ErrorIs(t, err, model.ErrProcessUnavailable)
	require.False(t, d.Available())
}

func TestSendFailure(t *testing.T) {
	t.Parallel()
	p := newFakeProc()
	p.sendErr = errors.New("broken pipe")
	d, _ := start(t, p)

	h, err := d.Submit(task.NodeInfo{})
	require.NoError(t, err)
	res := result(t, h)
	require.ErrorIs(t, res.Err, model.ErrProcessUnavailable)
}

func TestMultiLineOutput(t *testing.T) {
	t.Parallel()
	p := newFakeProc()
	d, _ := start(t, p)

	h, err := d.Submit(task.NodeInfo{})
	require.NoError(t, err)
	sent(t, p)
	p.emit("Node height: 10", "Peers height: 12", "Total difficulty: 5", "Connections: 3", prompt)

	res := result(t, h)
	require.True(t, res.OK())
	require.Equal(t, task.NodeStatus{Online: true, NodeHeight: 10, PeerHeight: 12, TotalDifficulty: 5, Connections: 3}, res.Payload)
}

func TestPromptAttribution(t *testing.T) {
	t.Parallel()
	p := newFakeProc()
	d, _ := start(t, p)

	// a second banner prompt has no owner
	p.emit("mwc713 wallet", prompt)

	unlock, err := d.Submit(task.Unlock{Password: "pw"})
	require.NoError(t, err)
	sent(t, p)
	require.Equal(t, task.AwaitingResult, unlock.State())
	p.emit(prompt)
	require.True(t, result(t, unlock).OK())

	set, err := d.Submit(task.SetReceiveAccount{Account: "default"})
	require.NoError(t, err)
	sent(t, p)
	p.emit(`Incoming funds will be received in account: "default"`)
	require.True(t, result(t, set).OK())

	info, err := d.Submit(task.NodeInfo{})
	require.NoError(t, err)
	sent(t, p)
	// the prompt closing set-recv must not finish node-info
	p.emit(prompt + "Node height: 7")
	select {
	case res := <-info.Done():
		t.Fatalf("finished too early: %v", res)
	case <-time.After(50 * time.Millisecond):
	}
	p.emit("Peers height: 7", "Total difficulty: 1", "Connections: 1")
	res := result(t, info)
	require.True(t, res.OK())
	require.Equal(t, int64(7), res.Payload.(task.NodeStatus).NodeHeight)
}

func TestTrailingOutputOfPreviousCommand(t *testing.T) {
	t.Parallel()
	p := newFakeProc()
	d, _ := start(t, p)

	send, err := d.Submit(task.SendFile{SendOptions: task.SendOptions{Amount: 5}, File: "out.tx"})
	require.NoError(t, err)
	set, err := d.Submit(task.SetReceiveAccount{Account: "savings"})
	require.NoError(t, err)
	sent(t, p)

	p.emit("error: not enough funds")
	res := result(t, send)
	require.False(t, res.OK())
	require.Equal(t, `set-recv "savings"`, sent(t, p))

	// the second error line still belongs to send
	p.emit("error: required 5, available 1")
	select {
	case res := <-set.Done():
		t.Fatalf("finished by output of a previous command: %v", res)
	case <-time.After(50 * time.Millisecond):
	}
	require.Equal(t, task.AwaitingResult, set.State())

	p.emit(prompt, `Incoming funds will be received in account: "savings"`)
	res = result(t, set)
	require.True(t, res.OK())
	require.Equal(t, task.AccountPayload{Account: "savings"}, res.Payload)
}

func TestFromConfig(t *testing.T) {
	t.Parallel()
	opts := dispatch.FromConfig(model.Dispatch{TaskTimeout: "PT30S", Tick: "PT5S"})
	require.Len(t, opts, 2)
}

func TestBatch(t *testing.T) {
	t.Parallel()
	p := newFakeProc()
	d, _ := start(t, p)

	ctx := newTimeout(t)
	go func() {
		for range 3 {
			select {
			case cmd := <-p.sent:
				account := strings.Trim(strings.TrimPrefix(cmd, "set-recv "), `"`)
				p.emit(`Incoming funds will be received in account: "`+account+`"`, prompt)
			case <-ctx.Done():
				return
			}
		}
	}()

	tasks := []task.Task{
		task.SetReceiveAccount{Account: "a"},
		task.SetReceiveAccount{Account: "b"},
		task.SetReceiveAccount{Account: "c"},
	}
	var accounts []string
	for res, err := range d.Batch(ctx, 2, slices.Values(tasks)) {
		require.NoError(t, err)
		require.True(t, res.OK())
		accounts = append(accounts, res.Payload.(task.AccountPayload).Account)
	}
	require.ElementsMatch(t, []string{"a", "b", "c"}, accounts)
}

func TestBatchStopped(t *testing.T) {
	t.Parallel()
	p := newFakeProc()
	d, errs := start(t, p)
	p.exit(nil)
	require.ErrorIs(t, <-errs, model.ErrProcessUnavailable)

	var failures []error
	for _, err := range d.Batch(t.Context(), 4, slices.Values([]task.Task{task.NodeInfo{}, task.NodeInfo{}})) {
		failures = append(failures, err)
	}
	require.Len(t, failures, 1)
	require.ErrorIs(t, failures[0], model.ErrProcessUnavailable)
}
