package task

import (
	"strings"

	"github.com/mwcproject/mwcwallet/internal/event"
)

// GenerateSeed creates a new wallet and returns its recovery phrase.
type GenerateSeed struct {
	sealed
	TimeoutPolicy

	Password string
}

func (t GenerateSeed) Kind() Kind { return KindGenerateSeed }

func (t GenerateSeed) build() *command {
	return newCommand("init").secret("password", t.Password)
}

func (t GenerateSeed) Command() string    { return t.build().String() }
func (t GenerateSeed) LogCommand() string { return t.build().Log() }

func (t GenerateSeed) Ready(events []event.Event) bool {
	return finished(events) || len(event.Filter(events, event.RecoveryPhrase)) > 0
}

func (t GenerateSeed) Finalize(events []event.Event) Result {
	errs := genericErrors(events)
	if phrase := event.Filter(events, event.RecoveryPhrase); len(phrase) > 0 && len(errs) == 0 {
		return succeeded(KindGenerateSeed, SeedPayload{Words: phrase[0].Fields()})
	}
	return failed(KindGenerateSeed, errs, nil)
}

// Recover restores a wallet from its recovery phrase.
type Recover struct {
	sealed
	TimeoutPolicy

	Words    []string
	Password string
}

func (t Recover) Kind() Kind { return KindRecover }

func (t Recover) build() *command {
	return newCommand("recover").
		secret("mnemonic", strings.Join(t.Words, " ")).
		secret("password", t.Password)
}

func (t Recover) Command() string                 { return t.build().String() }
func (t Recover) LogCommand() string              { return t.build().Log() }
func (t Recover) Ready(events []event.Event) bool { return finished(events) }

func (t Recover) Finalize(events []event.Event) Result {
	return promptResult(KindRecover, events)
}

// Unlock opens an existing wallet.
type Unlock struct {
	sealed
	TimeoutPolicy

	Password string
}

func (t Unlock) Kind() Kind { return KindUnlock }

func (t Unlock) build() *command {
	return newCommand("unlock").secret("password", t.Password)
}

func (t Unlock) Command() string                 { return t.build().String() }
func (t Unlock) LogCommand() string              { return t.build().Log() }
func (t Unlock) Ready(events []event.Event) bool { return finished(events) }

func (t Unlock) Finalize(events []event.Event) Result {
	return promptResult(KindUnlock, events)
}

// promptResult succeeds when mwc713 came back to the prompt without complaining.
func promptResult(kind Kind, events []event.Event) Result {
	if hasErrors(events) {
		return failed(kind, genericErrors(events), nil)
	}
	if len(event.Filter(events, event.Prompt)) == 0 {
		return failed(kind, nil, nil)
	}
	return succeeded(kind, nil)
}
