package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mwcproject/mwcwallet/internal/dispatch"
	"github.com/mwcproject/mwcwallet/internal/display"
	"github.com/mwcproject/mwcwallet/internal/log"
	"github.com/mwcproject/mwcwallet/internal/node"
	"github.com/mwcproject/mwcwallet/internal/process"
	"github.com/mwcproject/mwcwallet/internal/state"
	"github.com/mwcproject/mwcwallet/internal/task"
)

var (
	errNoPassword = errors.New("wallet password is required, use --password or $" + envPassword)
	errNoWallet   = errors.New("wallet is not initialized, create it with mwcwallet run")
)

// session is one running mwc713 with everything driving it.
type session struct {
	dispatcher *dispatch.Dispatcher
	monitor    *node.Monitor
	machine    *state.Machine
	console    *display.Console

	g           *errgroup.Group
	gctx        context.Context
	monitorOnce sync.Once
}

func newConsole() *display.Console {
	opts := []display.Option{
		display.WithInput(os.Stdin),
		display.WithAssumeYes(flagYes),
	}
	if flagJSON {
		opts = append(opts, display.WithJSON())
	}
	if fi, err := os.Stdout.Stat(); err == nil && fi.Mode()&os.ModeCharDevice == 0 {
		opts = append(opts, display.WithStyles(display.PlainStyles()))
	}
	return display.New(os.Stdout, opts...)
}

// withSession starts mwc713 and runs fn next to the dispatcher loop, the node
// monitor and the notification watcher. mwc713 is stopped once fn returns.
func withSession(ctx context.Context, name string, fn func(ctx context.Context, s *session) error) error {
	ctx = log.ContextAttrs(ctx, slog.Group("mwcwallet",
		slog.String("cmd", name),
		slog.Int("pid", os.Getpid()),
	))

	pcfg, err := process.ParseConfig("process")
	if err != nil {
		return fmt.Errorf("parsing process config: %w", err)
	}
	runner := process.NewRunner()
	if err := runner.Start(ctx, pcfg.Cmd(), logStderr); err != nil {
		return fmt.Errorf("starting mwc713: %w", err)
	}
	defer func() {
		runner.Stop()
		<-runner.Done()
		res := runner.Result()
		slog.DebugContext(ctx, "mwc713 stopped", "path", res.Path, "started", res.Started, "stopped", res.Stopped, "err", res.Err)
	}()

	s := &session{
		dispatcher: dispatch.New(runner, dispatch.FromConfig(config.Dispatch)...),
		console:    newConsole(),
	}
	s.monitor, err = node.NewMonitor(ctx, config.Node.Health, s.dispatcher)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.monitor.Close(); err != nil {
			slog.WarnContext(ctx, "closing node monitor", "err", err)
		}
	}()
	s.machine, err = state.NewMachine(&state.Context{
		Wallet:       s.dispatcher,
		Display:      s.console,
		Health:       s.monitor,
		Send:         config.Send,
		WalletExists: walletExists(),
	})
	if err != nil {
		return err
	}

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	s.g, s.gctx = errgroup.WithContext(runCtx)
	s.g.Go(func() error {
		return s.dispatcher.Run(s.gctx)
	})
	s.g.Go(func() error {
		return s.machine.Watch(s.gctx)
	})
	s.g.Go(func() error {
		defer stop()
		return fn(s.gctx, s)
	})
	return s.g.Wait()
}

// startMonitor begins polling the node, mwc713 answers node-info only for
// an open wallet.
func (s *session) startMonitor() {
	s.monitorOnce.Do(func() {
		s.g.Go(func() error {
			return s.monitor.Run(s.gctx)
		})
	})
}

// walletExists looks for the configured seed file, without one the wallet
// is assumed to exist.
func walletExists() bool {
	if config.Process.SeedFile == "" {
		return true
	}
	return exists(config.Process.SeedFile)
}

func logStderr(ctx context.Context, line string) {
	slog.DebugContext(ctx, "mwc713 stderr", "line", line)
}

// open unlocks the wallet and leaves the machine in the accounts state.
func (s *session) open(ctx context.Context) error {
	if err := s.machine.Start(ctx); err != nil {
		return err
	}
	switch s.machine.Current() {
	case state.InputPassword:
	case state.Init:
		return errNoWallet
	default:
		return fmt.Errorf("unexpected state %s", s.machine.Current())
	}
	if flagPassword == "" {
		return errNoPassword
	}
	unlock := s.machine.State(state.InputPassword).(*state.InputPasswordState)
	res, err := unlock.Unlock(ctx, flagPassword)
	if err != nil {
		return err
	}
	if err := failure(res); err != nil {
		return err
	}
	s.startMonitor()
	return nil
}

// goTo moves an open wallet to one of the hub states.
func (s *session) goTo(ctx context.Context, id state.ID) error {
	if s.machine.Current() == id {
		return nil
	}
	return s.machine.SetState(ctx, id)
}

func (s *session) sendCoins(ctx context.Context) (*state.SendCoinsState, error) {
	if err := s.goTo(ctx, state.SendCoins); err != nil {
		return nil, err
	}
	return s.machine.State(state.SendCoins).(*state.SendCoinsState), nil
}

func (s *session) files(ctx context.Context) (*state.FileTransactionsState, error) {
	if err := s.goTo(ctx, state.FileTransactions); err != nil {
		return nil, err
	}
	return s.machine.State(state.FileTransactions).(*state.FileTransactionsState), nil
}

// failure turns a failed result, which was already shown, into an exit error.
func failure(res task.Result) error {
	if res.OK() {
		return nil
	}
	return fmt.Errorf("%s: %w: %s", res.Kind, res.Err, strings.Join(res.Errors, "; "))
}
