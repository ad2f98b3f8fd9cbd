// Package process runs the mwc713 wallet as a long lived child process.
// Commands go to its stdin one per line, stdout is delivered line by line.
package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"
)

var (
	ErrNotStarted = errors.New("process not started")
	ErrInProgress = errors.New("process already started")
	ErrExited     = errors.New("process exited")
)

// lineBuffer is how many stdout lines may wait for the reader.
const lineBuffer = 256

// stopDelay is how long a stopped process may take before it is killed.
const stopDelay = 5 * time.Second

type StderrFunc func(ctx context.Context, line string)

type Command struct {
	Path string
	Args []string
	Env  []string
	Dir  string
}

type Result struct {
	Path    string
	Args    []string
	Started time.Time
	Stopped time.Time
	State   *os.ProcessState
	Err     error
}

// Runner owns one mwc713 session. A Runner is started at most once,
// a new session needs a new Runner.
type Runner struct {
	mx      sync.RWMutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	cancel  context.CancelFunc
	lines   chan string
	done    chan struct{}
	started bool
	exited  bool
	result  Result
}

func NewRunner() *Runner {
	return &Runner{
		lines:  make(chan string, lineBuffer),
		done:   make(chan struct{}),
		result: Result{Err: ErrNotStarted},
	}
}

// Start runs the process and returns once it is spawned. It spawns internal
// goroutines reading stdout and stderr; Done is closed after stdout was
// consumed and the process was reaped.
func (r *Runner) Start(ctx context.Context, proto Command, stderrFunc StderrFunc) error {
	r.mx.Lock()
	defer r.mx.Unlock()
	if r.started {
		return ErrInProgress
	}
	r.started = true

	r.result = Result{
		Path: proto.Path,
		Args: append([]string(nil), proto.Args...),
	}

	ctx, r.cancel = context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, proto.Path, proto.Args...)
	cmd.Env = proto.Env
	cmd.Dir = proto.Dir
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = stopDelay

	fail := func(err error) error {
		r.cancel()
		r.result.Err = err
		r.result.Stopped = time.Now().UTC()
		r.exited = true
		close(r.lines)
		close(r.done)
		return err
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fail(fmt.Errorf("stdin: %w", err))
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fail(fmt.Errorf("stdout: %w", err))
	}
	var stderr io.ReadCloser
	if stderrFunc != nil {
		stderr, err = cmd.StderrPipe()
		if err != nil {
			return fail(fmt.Errorf("stderr: %w", err))
		}
	}

	r.result.Started = time.Now().UTC()
	if err := cmd.Start(); err != nil {
		return fail(err)
	}
	r.cmd = cmd
	r.stdin = stdin
	slog.DebugContext(ctx, "mwc713 started", "path", proto.Path, "pid", cmd.Process.Pid)

	stdoutDone := make(chan struct{})
	go func() {
		defer close(stdoutDone)
		r.processStdout(ctx, stdout)
	}()
	if stderr != nil {
		go r.processStderr(ctx, stderr, stderrFunc)
	}
	go r.wait(ctx, cmd, stdoutDone)
	return nil
}

func (r *Runner) processStdout(ctx context.Context, stdout io.Reader) {
	defer close(r.lines)
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		select {
		case r.lines <- scanner.Text():
		case <-ctx.Done():
			return
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, os.ErrClosed) {
		slog.ErrorContext(ctx, "processing stdout", "error", err)
	}
}

func (r *Runner) processStderr(ctx context.Context, stderr io.Reader, stderrFunc StderrFunc) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		stderrFunc(ctx, scanner.Text())
	}
	err := scanner.Err()
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
		slog.ErrorContext(ctx, "processing stderr", "error", err)
	}
}

// wait reaps the process once stdout is consumed or the session is cancelled.
// Stderr is closed by cmd.Wait.
func (r *Runner) wait(ctx context.Context, cmd *exec.Cmd, stdoutDone <-chan struct{}) {
	<-stdoutDone
	err := cmd.Wait()
	r.cancel()
	stopped := time.Now().UTC()

	r.mx.Lock()
	r.result.Stopped = stopped
	r.result.State = cmd.ProcessState
	r.result.Err = err
	r.exited = true
	r.mx.Unlock()

	slog.DebugContext(ctx, "mwc713 exited", "state", cmd.ProcessState, "error", err)
	close(r.done)
}

// Send writes a single command line.
func (r *Runner) Send(line string) error {
	r.mx.RLock()
	defer r.mx.RUnlock()
	switch {
	case !r.started:
		return ErrNotStarted
	case r.exited || r.stdin == nil:
		return ErrExited
	}
	_, err := io.WriteString(r.stdin, line+"\n")
	return err
}

// Lines delivers stdout lines. The channel is closed at EOF.
func (r *Runner) Lines() <-chan string {
	return r.lines
}

// Done is closed once the process exited.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

// Err returns the exit error, valid after Done is closed.
func (r *Runner) Err() error {
	r.mx.RLock()
	defer r.mx.RUnlock()
	if !r.exited {
		return nil
	}
	if r.result.Err == nil {
		return ErrExited
	}
	return fmt.Errorf("%w: %w", ErrExited, r.result.Err)
}

// Stop closes stdin and interrupts the process, it is killed when it
// does not exit in time. Stop does not wait, use Done.
func (r *Runner) Stop() {
	r.mx.Lock()
	defer r.mx.Unlock()
	if !r.started || r.exited {
		return
	}
	if r.stdin != nil {
		_ = r.stdin.Close()
	}
	r.cancel()
}

// Result returns the last known state of the process.
func (r *Runner) Result() Result {
	r.mx.RLock()
	defer r.mx.RUnlock()
	return r.result
}
