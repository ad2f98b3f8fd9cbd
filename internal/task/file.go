package task

import (
	"strings"

	"github.com/mwcproject/mwcwallet/internal/event"
)

// ReceiveFile signs a slate received as a file and writes the response file.
type ReceiveFile struct {
	sealed
	TimeoutPolicy

	File string
	// Account the funds are received into, current receive account when empty.
	Account string
}

func (t ReceiveFile) Kind() Kind { return KindReceiveFile }

func (t ReceiveFile) Command() string {
	c := newCommand("receive").quoted("file", t.File)
	if t.Account != "" {
		c.arg("-k").arg(Quote(t.Account))
	}
	return c.String()
}

func (t ReceiveFile) LogCommand() string { return t.Command() }

func (t ReceiveFile) Ready(events []event.Event) bool {
	if finished(events) {
		return true
	}
	_, _, ok := receivedFiles(events)
	return ok
}

// /tmp/tx.mwctx received. amount = [1.5]
// /tmp/tx.mwctx.response created successfully
//
// The response line only counts after the received line.
func receivedFiles(events []event.Event) (in, out string, ok bool) {
	lns := lines(events)
	i := 0
	for ; i < len(lns); i++ {
		if idx := strings.Index(lns[i].Message, "received. amount ="); idx >= 0 {
			in = strings.TrimSpace(lns[i].Message[:idx])
			break
		}
	}
	for ; i < len(lns); i++ {
		if idx := strings.Index(lns[i].Message, "created successfully"); idx >= 0 {
			out = strings.TrimSpace(lns[i].Message[:idx])
			break
		}
	}
	return in, out, in != "" && out != ""
}

func (t ReceiveFile) Finalize(events []event.Event) Result {
	if in, out, ok := receivedFiles(events); ok {
		return succeeded(KindReceiveFile, ReceiveFilePayload{InFile: in, OutFile: out})
	}
	return failed(KindReceiveFile, genericErrors(events), ReceiveFilePayload{InFile: t.File})
}

// FinalizeFile finalizes a response slate file and publishes the transaction.
type FinalizeFile struct {
	sealed
	TimeoutPolicy

	File  string
	Fluff bool
}

func (t FinalizeFile) Kind() Kind { return KindFinalizeFile }

func (t FinalizeFile) Command() string {
	c := newCommand("finalize").quoted("file", t.File)
	if t.Fluff {
		c.flag("fluff")
	}
	return c.String()
}

func (t FinalizeFile) LogCommand() string { return t.Command() }

func (t FinalizeFile) Ready(events []event.Event) bool {
	if finished(events) {
		return true
	}
	_, ok := finalizedFile(events)
	return ok
}

// /tmp/tx.mwctx.response finalized.
func finalizedFile(events []event.Event) (string, bool) {
	for _, ln := range lines(events) {
		if idx := strings.Index(ln.Message, " finalized."); idx > 0 {
			return strings.TrimSpace(ln.Message[:idx]), true
		}
	}
	return "", false
}

const msgNodePublishFailed = "MWC-NODE failed to publish the slate. "

func (t FinalizeFile) Finalize(events []event.Event) Result {
	if fn, ok := finalizedFile(events); ok {
		return succeeded(KindFinalizeFile, FinalizePayload{File: fn})
	}
	return failed(KindFinalizeFile, nodeErrors(events, msgNodePublishFailed), nil)
}

// nodeErrors prefers node API failures over the wallet's own error lines,
// the wallet does not carry the node's details.
func nodeErrors(events []event.Event, prefix string) []string {
	var msgs []string
	for _, e := range event.Filter(events, event.NodeAPIError) {
		if len(e.Fields()) == 2 {
			msgs = append(msgs, prefix+e.Field(1))
		}
	}
	if len(msgs) > 0 {
		return msgs
	}
	return genericErrors(events)
}
