package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mwcproject/mwcwallet/internal/state"
)

var errUsage = errors.New("usage")

// verb is one command of the interactive console.
type verb struct {
	usage string
	help  string
	run   func(r *repl, ctx context.Context, args []string) error
}

var verbs map[string]verb

func init() {
	verbs = map[string]verb{
		"help":     {"help", "list commands", (*repl).help},
		"state":    {"state", "show the current state", (*repl).current},
		"go":       {"go STATE", "move to a state of an open wallet", (*repl).goTo},
		"password": {"password PASSWORD", "choose the password of a new wallet", (*repl).password},
		"unlock":   {"unlock PASSWORD", "open an existing wallet", (*repl).unlock},
		"new":      {"new", "create a wallet with a new recovery phrase", (*repl).newSeed},
		"recover":  {"recover WORD...", "create a wallet from a recovery phrase", (*repl).recoverSeed},
		"seedfile": {"seedfile PATH", "create a wallet from a file with the recovery phrase", (*repl).seedFile},
		"saved":    {"saved", "confirm the recovery phrase was written down", (*repl).saved},
		"answer":   {"answer N=WORD...", "retype the asked words of the recovery phrase", (*repl).answer},
		"account":  {"account NAME", "set the account receiving coins", (*repl).account},
		"send":     {"send ADDRESS AMOUNT [MESSAGE]", "send MWC to a listening wallet", (*repl).send},
		"sendfile": {"sendfile AMOUNT [FILE]", "store the initial slate into a file", (*repl).sendFile},
		"receive":  {"receive FILE [ACCOUNT]", "sign a slate file", (*repl).receive},
		"finalize": {"finalize FILE", "finalize a returned slate file", (*repl).finalize},
		"stale":    {"stale", "list sends whose slate never came back", (*repl).stale},
		"quit":     {"quit", "stop mwc713 and exit", nil},
	}
}

type repl struct {
	s   *session
	out io.Writer
}

func doRun(cmd *cobra.Command, _ []string) error {
	return withSession(cmd.Context(), "run", func(ctx context.Context, s *session) error {
		r := &repl{s: s, out: os.Stdout}
		if err := s.machine.Start(ctx); err != nil {
			return err
		}
		r.announce()
		lines := readLines(os.Stdin)
		for {
			fmt.Fprintf(r.out, "%s> ", s.machine.Current())
			line, err := lines.next(ctx)
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			if err != nil {
				return err
			}
			if r.exec(ctx, line) {
				return nil
			}
		}
	})
}

// exec runs one console line and reports whether the console is over.
func (r *repl) exec(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	v, ok := verbs[fields[0]]
	if !ok {
		r.s.console.ShowError(fields[0], "unknown command, try help")
		return false
	}
	if v.run == nil {
		return true
	}
	before := r.s.machine.Current()
	err := v.run(r, ctx, fields[1:])
	if errors.Is(err, errUsage) {
		r.s.console.ShowError(fields[0], "usage: "+v.usage)
	} else if err != nil {
		r.s.console.ShowError(fields[0], err.Error())
	}
	if r.s.machine.Current() != before {
		r.announce()
	}
	return r.s.machine.Current() == state.NodeChange
}

// announce tells what the current state waits for.
func (r *repl) announce() {
	cur := r.s.machine.Current()
	switch cur {
	case state.Init:
		fmt.Fprintln(r.out, "no wallet yet, choose a password with: password PASSWORD")
	case state.InputPassword:
		fmt.Fprintln(r.out, "wallet is locked, open it with: unlock PASSWORD")
	case state.NewWallet:
		fmt.Fprintln(r.out, "create the wallet with: new | recover WORD... | seedfile PATH")
	case state.ShowNewSeed:
		fmt.Fprintln(r.out, "write the phrase down, then: saved")
	case state.TestNewSeed:
		test := r.s.machine.State(state.TestNewSeed).(*state.TestNewSeedState)
		var asked []string
		for _, q := range test.Questions() {
			asked = append(asked, strconv.Itoa(q))
		}
		fmt.Fprintf(r.out, "retype words %s with: answer N=WORD...\n", strings.Join(asked, ", "))
	case state.NodeChange:
		fmt.Fprintln(r.out, "change the node in the mwc713 config and start mwcwallet again")
	default:
		r.s.startMonitor()
		fmt.Fprintf(r.out, "%s, other states: %s\n", cur, strings.Join(hubNames(cur), " "))
	}
}

func hubNames(except state.ID) []string {
	var names []string
	for id := state.Accounts; id <= state.NodeChange; id++ {
		if id != except && state.Allowed(except, id) {
			names = append(names, id.String())
		}
	}
	return names
}

func (r *repl) help(context.Context, []string) error {
	names := make([]string, 0, len(verbs))
	for name := range verbs {
		names = append(names, name)
	}
	slices.Sort(names)
	tw := tabwriter.NewWriter(r.out, 0, 4, 2, ' ', 0)
	for _, name := range names {
		fmt.Fprintf(tw, "%s\t%s\n", verbs[name].usage, verbs[name].help)
	}
	return tw.Flush()
}

func (r *repl) current(context.Context, []string) error {
	fmt.Fprintln(r.out, r.s.machine.Current())
	return nil
}

func (r *repl) goTo(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	id, ok := state.ParseID(args[0])
	if !ok {
		return fmt.Errorf("unknown state %q", args[0])
	}
	return r.s.goTo(ctx, id)
}

func (r *repl) password(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	return r.s.machine.State(state.Init).(*state.InitState).CreatePassword(ctx, args[0])
}

func (r *repl) unlock(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	_, err := r.s.machine.State(state.InputPassword).(*state.InputPasswordState).Unlock(ctx, args[0])
	return err
}

func (r *repl) choose(ctx context.Context, origin state.Origin) error {
	return r.s.machine.State(state.NewWallet).(*state.NewWalletState).Choose(ctx, origin)
}

func (r *repl) newSeed(ctx context.Context, _ []string) error {
	return r.choose(ctx, state.OriginNewSeed)
}

func (r *repl) recoverSeed(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	if err := r.choose(ctx, state.OriginRecoveryPhrase); err != nil {
		return err
	}
	_, err := r.s.machine.State(state.CreateWithSeed).(*state.CreateWithSeedState).Recover(ctx, args)
	return err
}

func (r *repl) seedFile(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	if err := r.choose(ctx, state.OriginSeedFile); err != nil {
		return err
	}
	_, err := r.s.machine.State(state.FromSeedFile).(*state.FromSeedFileState).Load(ctx, args[0])
	return err
}

func (r *repl) saved(ctx context.Context, _ []string) error {
	return r.s.machine.State(state.ShowNewSeed).(*state.ShowNewSeedState).Saved(ctx)
}

func (r *repl) answer(ctx context.Context, args []string) error {
	words, err := parseAnswers(args)
	if err != nil {
		return err
	}
	return r.s.machine.State(state.TestNewSeed).(*state.TestNewSeedState).Answer(ctx, words)
}

// parseAnswers reads N=WORD pairs, N is the 1 based position in the phrase.
func parseAnswers(args []string) (map[int]string, error) {
	if len(args) == 0 {
		return nil, errUsage
	}
	words := make(map[int]string, len(args))
	for _, a := range args {
		n, word, ok := strings.Cut(a, "=")
		pos, err := strconv.Atoi(n)
		if !ok || err != nil || pos < 1 || word == "" {
			return nil, fmt.Errorf("%w: %q is not N=WORD", errUsage, a)
		}
		words[pos] = word
	}
	return words, nil
}

func (r *repl) account(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	if err := r.s.goTo(ctx, state.Accounts); err != nil {
		return err
	}
	_, err := r.s.machine.State(state.Accounts).(*state.AccountsState).SetReceiveAccount(ctx, args[0])
	return err
}

func (r *repl) send(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errUsage
	}
	amount, err := state.ParseAmount(args[1])
	if err != nil {
		return err
	}
	sc, err := r.s.sendCoins(ctx)
	if err != nil {
		return err
	}
	_, err = sc.SendOnline(ctx, state.OnlineRequest{
		Address: args[0],
		Amount:  amount,
		Message: strings.Join(args[2:], " "),
	})
	return err
}

func (r *repl) sendFile(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return errUsage
	}
	amount, err := state.ParseAmount(args[0])
	if err != nil {
		return err
	}
	req := state.FileRequest{Amount: amount}
	if len(args) == 2 {
		req.File = args[1]
	}
	sc, err := r.s.sendCoins(ctx)
	if err != nil {
		return err
	}
	_, err = sc.SendFile(ctx, req)
	return err
}

func (r *repl) receive(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return errUsage
	}
	var account string
	if len(args) == 2 {
		account = args[1]
	}
	files, err := r.s.files(ctx)
	if err != nil {
		return err
	}
	_, err = files.Receive(ctx, args[0], account)
	return err
}

func (r *repl) finalize(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	files, err := r.s.files(ctx)
	if err != nil {
		return err
	}
	_, err = files.Finalize(ctx, args[0])
	return err
}

func (r *repl) stale(context.Context, []string) error {
	for _, rec := range r.s.machine.SendLog().Stale() {
		fmt.Fprintf(r.out, "%s  %s MWC to %s, slate %s\n", rec.Time.Format("2006-01-02 15:04:05"), rec.Amount, rec.Address, rec.Slate)
	}
	return nil
}

// lineReader reads stdin only when asked, so a confirmation prompt gets
// the keys typed while a command runs.
type lineReader struct {
	req   chan struct{}
	lines chan string
	err   error
}

func readLines(in io.Reader) *lineReader {
	l := &lineReader{
		req:   make(chan struct{}),
		lines: make(chan string),
	}
	go func() {
		defer close(l.lines)
		sc := bufio.NewScanner(in)
		for range l.req {
			if !sc.Scan() {
				l.err = sc.Err()
				return
			}
			l.lines <- sc.Text()
		}
	}()
	return l
}

func (l *lineReader) next(ctx context.Context) (string, error) {
	select {
	case l.req <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	select {
	case line, ok := <-l.lines:
		if !ok {
			if l.err != nil {
				return "", l.err
			}
			return "", io.EOF
		}
		return line, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
