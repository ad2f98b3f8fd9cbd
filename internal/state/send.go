package state

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mwcproject/mwcwallet/internal/model"
	"github.com/mwcproject/mwcwallet/internal/task"
)

var (
	ErrConfirmations = errors.New("minimum number of confirmations must be positive")
	ErrChangeOutputs = errors.New("number of change outputs must be positive")
	ErrAmount        = errors.New("amount must be positive or all")
	ErrAddress       = errors.New("recipient address is empty")
	ErrFilePath      = errors.New("file generation path is empty")
)

// AmountAll sends the whole spendable balance.
const AmountAll int64 = -1

// ParseAmount reads a decimal MWC amount or "all" into nano coins.
func ParseAmount(s string) (int64, error) {
	if strings.EqualFold(strings.TrimSpace(s), "all") {
		return AmountAll, nil
	}
	n, err := task.ParseNano(s)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrAmount
	}
	return n, nil
}

// SendParams are the user adjustable defaults of a send.
type SendParams struct {
	Confirmations int
	ChangeOutputs int
}

// OnlineRequest is a send to a listening wallet.
type OnlineRequest struct {
	Address   string
	Amount    int64 // nano coins or AmountAll
	Message   string
	APISecret string
	Outputs   []string
}

// FileRequest writes the initial slate into a file. File defaults to a
// timestamped name in the file generation path.
type FileRequest struct {
	Amount  int64
	Message string
	File    string
	Outputs []string
}

type SendCoinsState struct {
	m *Machine

	mx       sync.RWMutex
	params   SendParams
	filePath string
	fluff    bool
	ttl      int
	now      func() time.Time
}

func newSendCoinsState(m *Machine, cfg model.Send) *SendCoinsState {
	return &SendCoinsState{
		m: m,
		params: SendParams{
			Confirmations: max(cfg.Confirmations, 1),
			ChangeOutputs: max(cfg.ChangeOutputs, 1),
		},
		filePath: cfg.FilePath,
		fluff:    cfg.Fluff,
		ttl:      cfg.TTLBlocks,
		now:      time.Now,
	}
}

func (s *SendCoinsState) ID() ID { return SendCoins }

func (s *SendCoinsState) Execute(context.Context) Response {
	if stale := s.m.sendLog.Stale(); len(stale) > 0 {
		msgs := make([]string, 0, len(stale))
		for _, rec := range stale {
			msgs = append(msgs, fmt.Sprintf("slate %s to %s was never returned", rec.Slate, rec.Address))
		}
		s.m.c.Display.ShowError("Unconfirmed sends", msgs...)
	}
	return WaitForAction
}

func (s *SendCoinsState) Params() SendParams {
	s.mx.RLock()
	defer s.mx.RUnlock()
	return s.params
}

func (s *SendCoinsState) UpdateParams(p SendParams) error {
	if p.Confirmations <= 0 {
		return ErrConfirmations
	}
	if p.ChangeOutputs <= 0 {
		return ErrChangeOutputs
	}
	s.mx.Lock()
	defer s.mx.Unlock()
	s.params = p
	return nil
}

func (s *SendCoinsState) FileGenerationPath() string {
	s.mx.RLock()
	defer s.mx.RUnlock()
	return s.filePath
}

func (s *SendCoinsState) UpdateFileGenerationPath(path string) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.filePath = path
}

func (s *SendCoinsState) Fluff() bool {
	s.mx.RLock()
	defer s.mx.RUnlock()
	return s.fluff
}

func (s *SendCoinsState) SetFluff(fluff bool) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.fluff = fluff
}

func (s *SendCoinsState) TTLBlocks() int {
	s.mx.RLock()
	defer s.mx.RUnlock()
	return s.ttl
}

func (s *SendCoinsState) SetTTLBlocks(blocks int) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.ttl = max(blocks, 0)
}

// IsNodeHealthy answers from the cached node status.
func (s *SendCoinsState) IsNodeHealthy() bool {
	return s.m.c.Health != nil && s.m.c.Health.Healthy()
}

func (s *SendCoinsState) options(amount int64, message string, outputs []string) task.SendOptions {
	p := s.Params()
	return task.SendOptions{
		Amount:        amount,
		Message:       message,
		Confirmations: p.Confirmations,
		ChangeOutputs: p.ChangeOutputs,
		Outputs:       outputs,
		TTLBlocks:     s.TTLBlocks(),
	}
}

func amountText(amount int64) string {
	if amount == AmountAll {
		return "all funds"
	}
	return task.FormatNano(amount) + " MWC"
}

// SendOnline asks for confirmation and sends. A declined confirmation
// returns a cancelled result without touching the wallet.
func (s *SendCoinsState) SendOnline(ctx context.Context, req OnlineRequest) (task.Result, error) {
	if err := s.m.in(SendCoins); err != nil {
		return task.Result{}, err
	}
	if req.Amount == 0 || req.Amount < AmountAll {
		return task.Result{}, ErrAmount
	}
	if req.Address == "" {
		return task.Result{}, ErrAddress
	}

	msg := fmt.Sprintf("You are sending %s to %s", amountText(req.Amount), req.Address)
	if !s.m.c.Display.Confirm(ctx, "Confirm send request", msg) {
		return task.CancelledResult(task.KindSendOnline), nil
	}

	res := s.m.run(ctx, task.SendOnline{
		SendOptions: s.options(req.Amount, req.Message, req.Outputs),
		Address:     req.Address,
		APISecret:   req.APISecret,
		Fluff:       s.Fluff(),
	})
	if p, ok := res.Payload.(task.SendPayload); ok && res.OK() {
		s.m.sendLog.Sent(p)
	}
	return res, nil
}

// SendFile writes the initial slate of an offline send.
func (s *SendCoinsState) SendFile(ctx context.Context, req FileRequest) (task.Result, error) {
	if err := s.m.in(SendCoins); err != nil {
		return task.Result{}, err
	}
	if req.Amount == 0 || req.Amount < AmountAll {
		return task.Result{}, ErrAmount
	}
	file := req.File
	if file == "" {
		dir := s.FileGenerationPath()
		if dir == "" {
			return task.Result{}, ErrFilePath
		}
		file = filepath.Join(dir, s.now().UTC().Format("20060102-150405")+".tx")
	}

	msg := fmt.Sprintf("You are sending %s into file %s", amountText(req.Amount), file)
	if !s.m.c.Display.Confirm(ctx, "Confirm send request", msg) {
		return task.CancelledResult(task.KindSendFile), nil
	}

	return s.m.run(ctx, task.SendFile{
		SendOptions: s.options(req.Amount, req.Message, req.Outputs),
		File:        file,
	}), nil
}
