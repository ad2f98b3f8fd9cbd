package task

import "github.com/mwcproject/mwcwallet/internal/event"

type listenerOnly struct{}

func (listenerOnly) listener() {}

// SlateListener reports every slate arriving from or returning to the wallet.
type SlateListener struct {
	listenerOnly
}

func (SlateListener) Kind() Kind { return KindSlateListener }

func (SlateListener) Subscribes(k event.Kind) bool {
	return k == event.SlateReceivedFrom || k == event.SlateReceivedBack
}

// Handle takes slate|address|amount[|message], at least three fields are required.
func (SlateListener) Handle(ev event.Event) (Result, bool) {
	if len(ev.Fields()) < 3 || ev.Field(0) == "" {
		return Result{}, false
	}
	return succeeded(KindSlateListener, SlatePayload{
		Slate:   ev.Field(0),
		Address: ev.Field(1),
		Amount:  ev.Field(2),
		Message: ev.Field(3),
		Back:    ev.Kind == event.SlateReceivedBack,
	}), true
}

// ListenerStatus follows mwcmqs/keybase listener start and stop notifications.
type ListenerStatus struct {
	listenerOnly
}

func (ListenerStatus) Kind() Kind { return KindListenerStatus }

func (ListenerStatus) Subscribes(k event.Kind) bool {
	return k == event.ListenerStarted || k == event.ListenerStopped
}

func (ListenerStatus) Handle(ev event.Event) (Result, bool) {
	return succeeded(KindListenerStatus, ListenerPayload{
		Name:    ev.Field(0),
		Running: ev.Kind == event.ListenerStarted,
	}), true
}
