package task

import (
	"strconv"
	"strings"

	"github.com/mwcproject/mwcwallet/internal/event"
)

// SendOnline sends coins to a listening recipient.
type SendOnline struct {
	sealed
	TimeoutPolicy
	SendOptions

	Address   string
	APISecret string
	Fluff     bool
}

func (t SendOnline) Kind() Kind { return KindSendOnline }

func (t SendOnline) build() *command {
	c := t.head()
	c.quoted("to", t.Address)
	c.secret("apisecret", t.APISecret)
	if t.Fluff {
		c.flag("fluff")
	}
	return t.tail(c)
}

func (t SendOnline) Command() string    { return t.build().String() }
func (t SendOnline) LogCommand() string { return t.build().Log() }

func (t SendOnline) Ready(events []event.Event) bool {
	if finished(events) {
		return true
	}
	_, ok := parseSent(events)
	return ok
}

// txid=34
// slate [59c6f53f-...] for [0.321000000] MWCs sent successfully to [xmgEvZ4...]
func parseSent(events []event.Event) (SendPayload, bool) {
	p := SendPayload{TxID: -1}
	for _, ln := range lines(events) {
		if id, ok := strings.CutPrefix(ln.Message, "txid="); ok {
			n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
			if err != nil {
				n = -1
			}
			p.TxID = n
		}
		if strings.Contains(ln.Message, "sent successfully to") {
			p.Slate, _ = event.First(ln.Message)
			p.Amount, _ = event.After(ln.Message, "for [")
			p.Address, _ = event.Last(ln.Message)
		}
	}
	ok := p.TxID > 0 && p.Slate != "" && p.Address != "" && p.Amount != ""
	return p, ok
}

func (t SendOnline) Finalize(events []event.Event) Result {
	if p, ok := parseSent(events); ok {
		for _, back := range event.Filter(events, event.SlateReceivedBack) {
			if back.Field(0) == p.Slate {
				p.Responded = true
			}
		}
		return succeeded(KindSendOnline, p)
	}

	var msgs []string
	for _, e := range event.Filter(events, event.GenericError) {
		if strings.Contains(e.Message, "is recipient listening") {
			msgs = append(msgs, MsgRecipientOffline)
		}
		msgs = append(msgs, e.Message)
	}
	return failed(KindSendOnline, msgs, nil)
}

// SendFile writes an initial slate into a file for offline exchange.
type SendFile struct {
	sealed
	TimeoutPolicy
	SendOptions

	File string
}

func (t SendFile) Kind() Kind { return KindSendFile }

func (t SendFile) build() *command {
	return t.tail(t.head().quoted("file", t.File))
}

func (t SendFile) Command() string    { return t.build().String() }
func (t SendFile) LogCommand() string { return t.Command() }

func (t SendFile) Ready(events []event.Event) bool {
	if finished(events) {
		return true
	}
	_, ok := createdFile(events)
	return ok
}

// /tmp/tx.mwctx created successfully.
func createdFile(events []event.Event) (string, bool) {
	for _, ln := range lines(events) {
		if idx := strings.Index(ln.Message, "created successfully."); idx > 0 {
			return strings.TrimSpace(ln.Message[:idx]), true
		}
	}
	return "", false
}

func (t SendFile) Finalize(events []event.Event) Result {
	if fn, ok := createdFile(events); ok {
		return succeeded(KindSendFile, SendFilePayload{File: fn})
	}
	return failed(KindSendFile, genericErrors(events), nil)
}
