// Package display shows task results and asks the user for confirmation
// on a terminal, or prints results as JSON lines for scripts.
package display

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/bytedance/sonic"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mwcproject/mwcwallet/internal/task"
)

type Console struct {
	mx        sync.Mutex
	out       io.Writer
	in        io.Reader
	styles    Styles
	json      bool
	assumeYes bool
}

type Option func(*Console)

// WithJSON prints one JSON object per result or error.
func WithJSON() Option {
	return func(c *Console) { c.json = true }
}

func WithInput(r io.Reader) Option {
	return func(c *Console) { c.in = r }
}

func WithStyles(s Styles) Option {
	return func(c *Console) { c.styles = s }
}

// WithAssumeYes answers every confirmation with yes without asking.
func WithAssumeYes(yes bool) Option {
	return func(c *Console) { c.assumeYes = yes }
}

func New(out io.Writer, opts ...Option) *Console {
	c := &Console{
		out:    out,
		styles: DefaultStyles(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type record struct {
	Kind    string   `json:"kind"`
	TaskID  string   `json:"task_id,omitempty"`
	OK      bool     `json:"ok"`
	Title   string   `json:"title,omitempty"`
	Errors  []string `json:"errors,omitempty"`
	Payload any      `json:"payload,omitempty"`
}

func (c *Console) ShowResult(res task.Result) {
	if c.json {
		c.emit(record{
			Kind:    res.Kind.String(),
			TaskID:  res.TaskID,
			OK:      res.OK(),
			Errors:  res.Errors,
			Payload: res.Payload,
		})
		return
	}
	if !res.OK() {
		c.ShowError(res.Kind.String(), res.Errors...)
		return
	}
	c.write(c.styles.Success.Render("✓ "+res.Kind.String()) + "\n" + Describe(res.Payload) + "\n")
}

func (c *Console) ShowError(title string, msgs ...string) {
	if c.json {
		c.emit(record{Kind: "error", Title: title, Errors: msgs})
		return
	}
	body := c.styles.Failure.Render("✗ "+title) + "\n" + strings.Join(msgs, "\n")
	c.write(c.styles.Box.Render(body) + "\n")
}

// Confirm asks a yes/no question. A cancelled ctx, a closed input or any
// program failure count as no.
func (c *Console) Confirm(ctx context.Context, title, message string) bool {
	if c.assumeYes {
		return true
	}
	if c.json || c.in == nil {
		return false
	}
	c.mx.Lock()
	defer c.mx.Unlock()
	p := tea.NewProgram(
		NewPrompt(title, message, c.styles),
		tea.WithContext(ctx),
		tea.WithInput(c.in),
		tea.WithOutput(c.out),
		tea.WithoutSignalHandler(),
	)
	final, err := p.Run()
	if err != nil {
		slog.DebugContext(ctx, "confirm", "title", title, "err", err)
		return false
	}
	prompt, ok := final.(Prompt)
	return ok && prompt.Answer()
}

func (c *Console) emit(r record) {
	b, err := sonic.Marshal(r)
	if err != nil {
		slog.Error("marshal result", "kind", r.Kind, "err", err)
		return
	}
	c.write(string(b) + "\n")
}

func (c *Console) write(s string) {
	c.mx.Lock()
	defer c.mx.Unlock()
	_, _ = io.WriteString(c.out, s)
}

// Describe renders a payload as human readable text.
func Describe(p task.Payload) string {
	switch p := p.(type) {
	case task.SendPayload:
		s := fmt.Sprintf("sent %s MWC to %s\nslate %s, tx %d", p.Amount, p.Address, p.Slate, p.TxID)
		if p.Responded {
			s += "\nrecipient returned the slate"
		}
		return s
	case task.SendFilePayload:
		return "slate stored at " + p.File
	case task.ReceiveFilePayload:
		return fmt.Sprintf("received %s\nresponse stored at %s", p.InFile, p.OutFile)
	case task.FinalizePayload:
		return "finalized " + p.File
	case task.AccountPayload:
		return "receive account is " + p.Account
	case task.NodeStatus:
		if !p.Online {
			return "node is offline"
		}
		return fmt.Sprintf("height %d, peers height %d, difficulty %d, connections %d",
			p.NodeHeight, p.PeerHeight, p.TotalDifficulty, p.Connections)
	case task.SeedPayload:
		var b strings.Builder
		for i, w := range p.Words {
			if i > 0 {
				b.WriteString(" ")
			}
			fmt.Fprintf(&b, "%d.%s", i+1, w)
		}
		return b.String()
	case task.SlatePayload:
		if p.Back {
			return fmt.Sprintf("slate %s returned from %s", p.Slate, p.Address)
		}
		s := fmt.Sprintf("received %s MWC from %s, slate %s", p.Amount, p.Address, p.Slate)
		if p.Message != "" {
			s += "\nmessage: " + p.Message
		}
		return s
	case task.ListenerPayload:
		if p.Running {
			return p.Name + " listener started"
		}
		return p.Name + " listener stopped"
	case nil:
		return ""
	}
	return fmt.Sprintf("%v", p)
}
