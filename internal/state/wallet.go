package state

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"slices"
	"strings"

	"github.com/mwcproject/mwcwallet/internal/task"
)

var (
	ErrEmptyPassword = errors.New("password is empty")
	ErrSeedLength    = errors.New("recovery phrase must have 12 or 24 words")
	ErrSeedMismatch  = errors.New("recovery phrase words do not match")
)

// seedChecks is how many words the user retypes to prove the phrase was saved.
const seedChecks = 3

// InitState is the first run, a password for the wallet is chosen here.
type InitState struct {
	m *Machine
}

func (s *InitState) ID() ID { return Init }

func (s *InitState) Execute(context.Context) Response {
	if s.m.c.WalletExists {
		return NextState(InputPassword)
	}
	return WaitForAction
}

// CreatePassword stores the password of a new wallet and asks how to create it.
func (s *InitState) CreatePassword(ctx context.Context, password string) error {
	if err := s.m.in(Init); err != nil {
		return err
	}
	if password == "" {
		return ErrEmptyPassword
	}
	s.m.setPassword(password)
	return s.m.SetState(ctx, NewWallet)
}

type InputPasswordState struct {
	m *Machine
}

func (s *InputPasswordState) ID() ID                           { return InputPassword }
func (s *InputPasswordState) Execute(context.Context) Response { return WaitForAction }

// Unlock opens the wallet, on success the accounts are shown.
func (s *InputPasswordState) Unlock(ctx context.Context, password string) (task.Result, error) {
	if err := s.m.in(InputPassword); err != nil {
		return task.Result{}, err
	}
	if password == "" {
		return task.Result{}, ErrEmptyPassword
	}
	res := s.m.run(ctx, task.Unlock{Password: password})
	if !res.OK() {
		return res, nil
	}
	s.m.setPassword(password)
	return res, s.m.SetState(ctx, Accounts)
}

// Origin is how a new wallet gets its seed.
type Origin int

const (
	OriginNewSeed Origin = iota
	OriginRecoveryPhrase
	OriginSeedFile
)

type NewWalletState struct {
	m *Machine
}

func (s *NewWalletState) ID() ID                           { return NewWallet }
func (s *NewWalletState) Execute(context.Context) Response { return WaitForAction }

func (s *NewWalletState) Choose(ctx context.Context, origin Origin) error {
	if err := s.m.in(NewWallet); err != nil {
		return err
	}
	switch origin {
	case OriginNewSeed:
		return s.m.SetState(ctx, GenerateNewSeed)
	case OriginRecoveryPhrase:
		return s.m.SetState(ctx, CreateWithSeed)
	case OriginSeedFile:
		return s.m.SetState(ctx, FromSeedFile)
	default:
		return fmt.Errorf("unknown wallet origin %d", origin)
	}
}

// GenerateNewSeedState runs init right away and moves on to show the phrase.
type GenerateNewSeedState struct {
	m *Machine
}

func (s *GenerateNewSeedState) ID() ID { return GenerateNewSeed }

func (s *GenerateNewSeedState) Execute(ctx context.Context) Response {
	res := s.m.await(ctx, task.GenerateSeed{Password: s.m.getPassword()})
	p, ok := res.Payload.(task.SeedPayload)
	if !res.OK() || !ok {
		s.m.c.Display.ShowError("Unable to create a wallet", res.Errors...)
		return NextState(NewWallet)
	}
	s.m.setSeed(p.Words)
	return NextState(ShowNewSeed)
}

type ShowNewSeedState struct {
	m *Machine
}

func (s *ShowNewSeedState) ID() ID { return ShowNewSeed }

func (s *ShowNewSeedState) Execute(context.Context) Response {
	s.m.c.Display.ShowResult(task.Result{
		Kind:    task.KindGenerateSeed,
		Outcome: task.Success,
		Payload: task.SeedPayload{Words: s.m.getSeed()},
	})
	return WaitForAction
}

// Saved is called once the user wrote the phrase down.
func (s *ShowNewSeedState) Saved(ctx context.Context) error {
	if err := s.m.in(ShowNewSeed); err != nil {
		return err
	}
	return s.m.SetState(ctx, TestNewSeed)
}

type TestNewSeedState struct {
	m *Machine

	// positions is guarded by m.secretMx.
	positions []int
}

func (s *TestNewSeedState) ID() ID { return TestNewSeed }

func (s *TestNewSeedState) Execute(context.Context) Response {
	seed := s.m.getSeed()
	positions := rand.Perm(len(seed))[:min(seedChecks, len(seed))]
	slices.Sort(positions)
	s.m.secretMx.Lock()
	s.positions = positions
	s.m.secretMx.Unlock()
	return WaitForAction
}

// Questions returns the zero based word positions the user must retype.
func (s *TestNewSeedState) Questions() []int {
	s.m.secretMx.RLock()
	defer s.m.secretMx.RUnlock()
	return slices.Clone(s.positions)
}

// Answer checks the retyped words. A mismatch shows the phrase again.
func (s *TestNewSeedState) Answer(ctx context.Context, words map[int]string) error {
	if err := s.m.in(TestNewSeed); err != nil {
		return err
	}
	seed := s.m.getSeed()
	for _, pos := range s.Questions() {
		if !strings.EqualFold(strings.TrimSpace(words[pos]), seed[pos]) {
			s.m.c.Display.ShowError("Verification failed", fmt.Sprintf("word #%d does not match", pos+1))
			if err := s.m.SetState(ctx, ShowNewSeed); err != nil {
				return err
			}
			return ErrSeedMismatch
		}
	}
	return s.m.SetState(ctx, Accounts)
}

type CreateWithSeedState struct {
	m *Machine
}

func (s *CreateWithSeedState) ID() ID                           { return CreateWithSeed }
func (s *CreateWithSeedState) Execute(context.Context) Response { return WaitForAction }

// Recover restores the wallet from a typed recovery phrase.
func (s *CreateWithSeedState) Recover(ctx context.Context, words []string) (task.Result, error) {
	if err := s.m.in(CreateWithSeed); err != nil {
		return task.Result{}, err
	}
	return recoverWallet(ctx, s.m, words)
}

type FromSeedFileState struct {
	m *Machine
}

func (s *FromSeedFileState) ID() ID                           { return FromSeedFile }
func (s *FromSeedFileState) Execute(context.Context) Response { return WaitForAction }

// Load restores the wallet from a file holding the recovery phrase.
func (s *FromSeedFileState) Load(ctx context.Context, path string) (task.Result, error) {
	if err := s.m.in(FromSeedFile); err != nil {
		return task.Result{}, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return task.Result{}, fmt.Errorf("reading seed file: %w", err)
	}
	return recoverWallet(ctx, s.m, strings.Fields(string(raw)))
}

func recoverWallet(ctx context.Context, m *Machine, words []string) (task.Result, error) {
	if len(words) != 12 && len(words) != 24 {
		return task.Result{}, ErrSeedLength
	}
	res := m.run(ctx, task.Recover{Words: words, Password: m.getPassword()})
	if !res.OK() {
		return res, nil
	}
	m.setSeed(words)
	return res, m.SetState(ctx, Accounts)
}
