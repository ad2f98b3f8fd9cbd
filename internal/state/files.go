package state

import (
	"context"
	"errors"

	"github.com/mwcproject/mwcwallet/internal/task"
)

var ErrEmptyFile = errors.New("slate file is empty")

// FileTransactionsState exchanges slates through files.
type FileTransactionsState struct {
	m *Machine
}

func (s *FileTransactionsState) ID() ID                           { return FileTransactions }
func (s *FileTransactionsState) Execute(context.Context) Response { return WaitForAction }

// Receive signs an incoming slate file into account, or the receive account when empty.
func (s *FileTransactionsState) Receive(ctx context.Context, file, account string) (task.Result, error) {
	if err := s.m.in(FileTransactions); err != nil {
		return task.Result{}, err
	}
	if file == "" {
		return task.Result{}, ErrEmptyFile
	}
	return s.m.run(ctx, task.ReceiveFile{File: file, Account: account}), nil
}

// Finalize publishes a response slate file, fluff follows the send settings.
func (s *FileTransactionsState) Finalize(ctx context.Context, file string) (task.Result, error) {
	if err := s.m.in(FileTransactions); err != nil {
		return task.Result{}, err
	}
	if file == "" {
		return task.Result{}, ErrEmptyFile
	}
	fluff := s.m.states[SendCoins].(*SendCoinsState).Fluff()
	return s.m.run(ctx, task.FinalizeFile{File: file, Fluff: fluff}), nil
}
