package task

import "github.com/mwcproject/mwcwallet/internal/event"

const msgSetReceiveUnknown = "Unknown error, didn't get expected respond from mwc713"

// SetReceiveAccount selects the account incoming funds are credited to.
type SetReceiveAccount struct {
	sealed
	TimeoutPolicy

	Account string
}

func (t SetReceiveAccount) Kind() Kind { return KindSetReceiveAccount }

func (t SetReceiveAccount) Command() string {
	return newCommand("set-recv").arg(Quote(t.Account)).String()
}

func (t SetReceiveAccount) LogCommand() string { return t.Command() }

func (t SetReceiveAccount) Ready(events []event.Event) bool {
	return finished(events) || len(event.Filter(events, event.SetReceiveAccount)) > 0
}

func (t SetReceiveAccount) Finalize(events []event.Event) Result {
	if ok := event.Filter(events, event.SetReceiveAccount); len(ok) > 0 {
		return succeeded(KindSetReceiveAccount, AccountPayload{Account: ok[0].Field(0)})
	}
	msgs := genericErrors(events)
	if len(msgs) == 0 {
		msgs = []string{msgSetReceiveUnknown}
	}
	return failed(KindSetReceiveAccount, msgs, AccountPayload{Account: t.Account})
}
