package task

import (
	"errors"
	"strconv"
	"strings"
	"unicode"
)

const nanoPerCoin = 1_000_000_000

// Quote makes a value safe to concatenate into an mwc713 command line. The
// result never spans lines, other control characters are dropped.
func Quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, r := range s {
		switch {
		case r == '\\' || r == '"':
			b.WriteByte('\\')
			b.WriteRune(r)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case unicode.IsControl(r):
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// FormatNano renders nano coins as a decimal amount without trailing zeros.
func FormatNano(nano int64) string {
	sign := ""
	if nano < 0 {
		sign = "-"
		nano = -nano
	}
	whole := nano / nanoPerCoin
	frac := nano % nanoPerCoin
	if frac == 0 {
		return sign + strconv.FormatInt(whole, 10)
	}
	f := strconv.FormatInt(frac, 10)
	f = strings.Repeat("0", 9-len(f)) + f
	return sign + strconv.FormatInt(whole, 10) + "." + strings.TrimRight(f, "0")
}

var ErrAmountSyntax = errors.New("invalid MWC amount")

// ParseNano reads a non negative decimal amount with at most 9 fraction
// digits into nano coins.
func ParseNano(s string) (int64, error) {
	whole, frac, found := strings.Cut(strings.TrimSpace(s), ".")
	if !digits(whole) && whole != "" || !digits(frac) && frac != "" ||
		whole == "" && frac == "" || found && frac == "" || len(frac) > 9 {
		return 0, ErrAmountSyntax
	}
	var w, f int64
	var err error
	if whole != "" {
		if w, err = strconv.ParseInt(whole, 10, 64); err != nil {
			return 0, ErrAmountSyntax
		}
	}
	if frac != "" {
		f, _ = strconv.ParseInt(frac+strings.Repeat("0", 9-len(frac)), 10, 64)
	}
	if w > (1<<63-1-f)/nanoPerCoin {
		return 0, ErrAmountSyntax
	}
	return w*nanoPerCoin + f, nil
}

// bare strips what would split an unquoted argument.
func bare(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

func digits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

const redacted = `"***"`

// command collects flags in order. Secret values are kept apart so the
// log form can mask them.
type command struct {
	parts  []string
	masked []string
}

func newCommand(verb string) *command {
	return &command{parts: []string{verb}, masked: []string{verb}}
}

func (c *command) arg(s string) *command {
	if s != "" {
		c.parts = append(c.parts, s)
		c.masked = append(c.masked, s)
	}
	return c
}

func (c *command) flag(name string) *command {
	return c.arg("--" + name)
}

func (c *command) quoted(name, value string) *command {
	if value == "" {
		return c
	}
	return c.flag(name).arg(Quote(value))
}

func (c *command) secret(name, value string) *command {
	if value == "" {
		return c
	}
	c.flag(name)
	c.parts = append(c.parts, Quote(value))
	c.masked = append(c.masked, redacted)
	return c
}

func (c *command) number(name string, n int) *command {
	if n <= 0 {
		return c
	}
	return c.flag(name).arg(strconv.Itoa(n))
}

func (c *command) String() string { return strings.Join(c.parts, " ") }
func (c *command) Log() string    { return strings.Join(c.masked, " ") }

// SendOptions are shared by online and file sends.
type SendOptions struct {
	// Amount in nano coins. Negative sends the whole balance.
	Amount        int64
	Message       string
	Confirmations int
	ChangeOutputs int
	// Outputs selects inputs explicitly, confirmations are forced to 1 then.
	Outputs   []string
	TTLBlocks int
}

func (o SendOptions) head() *command {
	c := newCommand("send")
	if o.Amount > 0 {
		c.arg(FormatNano(o.Amount))
	}
	c.quoted("message", o.Message)
	if len(o.Outputs) > 0 {
		outputs := make([]string, 0, len(o.Outputs))
		for _, out := range o.Outputs {
			outputs = append(outputs, bare(out))
		}
		c.flag("confirmations").arg("1").flag("strategy").arg("custom").flag("outputs").arg(strings.Join(outputs, ","))
	} else {
		c.number("confirmations", o.Confirmations)
	}
	c.number("change-outputs", o.ChangeOutputs)
	return c
}

func (o SendOptions) tail(c *command) *command {
	c.number("ttl-blocks", o.TTLBlocks)
	if o.Amount < 0 {
		c.arg("ALL")
	}
	return c
}
