package main

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/mwcproject/mwcwallet/internal/state"
	"github.com/mwcproject/mwcwallet/internal/task"
)

var errNodeUnhealthy = errors.New("node is not healthy")

var (
	sendFlags struct {
		message       string
		apiSecret     string
		outputs       []string
		confirmations int
		changeOutputs int
		ttlBlocks     int
		fluff         bool
		dir           string
	}
	receiveAccount string
	finalizeFluff  bool
)

func init() {
	for _, c := range []*cobra.Command{sendCmd, sendFileCmd} {
		f := c.Flags()
		f.StringVarP(&sendFlags.message, "message", "m", "", "message attached to the slate")
		f.StringSliceVar(&sendFlags.outputs, "outputs", nil, "commitments of the outputs to spend")
		f.IntVar(&sendFlags.confirmations, "confirmations", 0, "minimum confirmations of spent outputs, default from config")
		f.IntVar(&sendFlags.changeOutputs, "change-outputs", 0, "number of change outputs, default from config")
		f.IntVar(&sendFlags.ttlBlocks, "ttl-blocks", 0, "blocks after which an unfinished transaction is cancelled")
	}
	sendCmd.Flags().StringVar(&sendFlags.apiSecret, "apisecret", "", "api secret of the receiving wallet")
	sendCmd.Flags().BoolVar(&sendFlags.fluff, "fluff", false, "skip the dandelion stem phase")
	sendFileCmd.Flags().StringVar(&sendFlags.dir, "dir", "", "directory for generated slates, default from config")
	receiveCmd.Flags().StringVarP(&receiveAccount, "account", "a", "", "account receiving the coins")
	finalizeCmd.Flags().BoolVar(&finalizeFluff, "fluff", false, "skip the dandelion stem phase")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "interactive console walking the wallet workflow",
	RunE:  doRun,
}

var sendCmd = &cobra.Command{
	Use:   "send ADDRESS AMOUNT",
	Short: "send MWC to a listening wallet, AMOUNT is a decimal or all",
	Args:  cobra.ExactArgs(2),
	RunE:  doSend,
}

var sendFileCmd = &cobra.Command{
	Use:   "send-file AMOUNT [FILE]",
	Short: "store the initial slate of an offline send into a file",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  doSendFile,
}

var receiveCmd = &cobra.Command{
	Use:   "receive FILE...",
	Short: "sign slate files from senders, responses are stored next to them",
	Args:  cobra.MinimumNArgs(1),
	RunE:  doReceive,
}

var finalizeCmd = &cobra.Command{
	Use:   "finalize FILE...",
	Short: "finalize and publish returned slate files",
	Args:  cobra.MinimumNArgs(1),
	RunE:  doFinalize,
}

var accountCmd = &cobra.Command{
	Use:   "account NAME",
	Short: "set the account receiving incoming coins",
	Args:  cobra.ExactArgs(1),
	RunE:  doAccount,
}

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "print incoming slates and listener changes until interrupted",
	RunE:  doListen,
}

var nodeCmd = &cobra.Command{
	Use:   "node",
	Short: "show the status of the MWC node, fails when it is not healthy",
	RunE:  doNode,
}

func applySendFlags(cmd *cobra.Command, sc *state.SendCoinsState) error {
	p := sc.Params()
	if cmd.Flags().Changed("confirmations") {
		p.Confirmations = sendFlags.confirmations
	}
	if cmd.Flags().Changed("change-outputs") {
		p.ChangeOutputs = sendFlags.changeOutputs
	}
	if err := sc.UpdateParams(p); err != nil {
		return err
	}
	if cmd.Flags().Changed("ttl-blocks") {
		sc.SetTTLBlocks(sendFlags.ttlBlocks)
	}
	if cmd.Flags().Changed("fluff") {
		sc.SetFluff(sendFlags.fluff)
	}
	if cmd.Flags().Changed("dir") {
		sc.UpdateFileGenerationPath(sendFlags.dir)
	}
	return nil
}

func doSend(cmd *cobra.Command, args []string) error {
	amount, err := state.ParseAmount(args[1])
	if err != nil {
		return err
	}
	return withSession(cmd.Context(), "send", func(ctx context.Context, s *session) error {
		sc, err := openSendCoins(ctx, cmd, s)
		if err != nil {
			return err
		}
		res, err := sc.SendOnline(ctx, state.OnlineRequest{
			Address:   args[0],
			Amount:    amount,
			Message:   sendFlags.message,
			APISecret: sendFlags.apiSecret,
			Outputs:   sendFlags.outputs,
		})
		if err != nil {
			return err
		}
		return failure(res)
	})
}

func doSendFile(cmd *cobra.Command, args []string) error {
	amount, err := state.ParseAmount(args[0])
	if err != nil {
		return err
	}
	var file string
	if len(args) == 2 {
		file = args[1]
	}
	return withSession(cmd.Context(), "send-file", func(ctx context.Context, s *session) error {
		sc, err := openSendCoins(ctx, cmd, s)
		if err != nil {
			return err
		}
		res, err := sc.SendFile(ctx, state.FileRequest{
			Amount:  amount,
			Message: sendFlags.message,
			File:    file,
			Outputs: sendFlags.outputs,
		})
		if err != nil {
			return err
		}
		return failure(res)
	})
}

func openSendCoins(ctx context.Context, cmd *cobra.Command, s *session) (*state.SendCoinsState, error) {
	if err := s.open(ctx); err != nil {
		return nil, err
	}
	sc, err := s.sendCoins(ctx)
	if err != nil {
		return nil, err
	}
	return sc, applySendFlags(cmd, sc)
}

func doReceive(cmd *cobra.Command, args []string) error {
	tasks := make([]task.Task, 0, len(args))
	for _, f := range args {
		tasks = append(tasks, task.ReceiveFile{File: f, Account: receiveAccount})
	}
	return withSession(cmd.Context(), "receive", batch(tasks))
}

func doFinalize(cmd *cobra.Command, args []string) error {
	tasks := make([]task.Task, 0, len(args))
	for _, f := range args {
		tasks = append(tasks, task.FinalizeFile{File: f, Fluff: finalizeFluff || config.Send.Fluff})
	}
	return withSession(cmd.Context(), "finalize", batch(tasks))
}

// batch opens the wallet and runs tasks, every result is shown and all
// failures are reported.
func batch(tasks []task.Task) func(context.Context, *session) error {
	return func(ctx context.Context, s *session) error {
		if err := s.open(ctx); err != nil {
			return err
		}
		var errs []error
		for res, err := range s.dispatcher.Batch(ctx, len(tasks), slices.Values(tasks)) {
			if err != nil {
				return errors.Join(append(errs, err)...)
			}
			s.console.ShowResult(res)
			errs = append(errs, failure(res))
		}
		return errors.Join(errs...)
	}
}

func doAccount(cmd *cobra.Command, args []string) error {
	return withSession(cmd.Context(), "account", func(ctx context.Context, s *session) error {
		if err := s.open(ctx); err != nil {
			return err
		}
		accounts := s.machine.State(state.Accounts).(*state.AccountsState)
		res, err := accounts.SetReceiveAccount(ctx, args[0])
		if err != nil {
			return err
		}
		return failure(res)
	})
}

func doListen(cmd *cobra.Command, _ []string) error {
	return withSession(cmd.Context(), "listen", func(ctx context.Context, s *session) error {
		if err := s.open(ctx); err != nil {
			return err
		}
		if err := s.goTo(ctx, state.Events); err != nil {
			return err
		}
		<-ctx.Done()
		return nil
	})
}

func doNode(cmd *cobra.Command, _ []string) error {
	return withSession(cmd.Context(), "node", func(ctx context.Context, s *session) error {
		if err := s.open(ctx); err != nil {
			return err
		}
		h, err := s.dispatcher.Submit(task.NodeInfo{})
		if err != nil {
			return err
		}
		res, err := h.Wait(ctx)
		if err != nil {
			s.dispatcher.Cancel(h.ID())
			return err
		}
		s.console.ShowResult(res)
		if err := failure(res); err != nil {
			return err
		}
		if st, ok := res.Payload.(task.NodeStatus); ok && !st.Healthy() {
			return fmt.Errorf("%w: height %d, peers height %d, connections %d",
				errNodeUnhealthy, st.NodeHeight, st.PeerHeight, st.Connections)
		}
		return nil
	})
}
