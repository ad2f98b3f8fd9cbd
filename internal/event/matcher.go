package event

import (
	"strings"
	"unicode"
)

// PromptPrefix is printed by mwc713 when it is ready for the next command.
const PromptPrefix = "wallet713>"

// Matcher recognizes one output pattern. Match must never panic, whatever the input.
type Matcher struct {
	Name  string
	Match func(line string) (Event, bool)
}

var (
	GenericErrorMatcher = Matcher{Name: "generic_error", Match: matchGenericError}
	NodeAPIErrorMatcher = Matcher{Name: "node_api_error", Match: matchNodeAPIError}

	SlateReceivedFromMatcher = Matcher{Name: "slate_received_from", Match: matchSlateReceivedFrom}
	SlateReceivedBackMatcher = Matcher{Name: "slate_received_back", Match: matchSlateReceivedBack}
	SetReceiveAccountMatcher = Matcher{Name: "set_receive_account", Match: matchSetReceiveAccount}
	ListenerStartedMatcher   = Matcher{Name: "listener_started", Match: matchListenerStarted}
	ListenerStoppedMatcher   = Matcher{Name: "listener_stopped", Match: matchListenerStopped}
)

// error: <message>
func matchGenericError(line string) (Event, bool) {
	msg, ok := cutPrefixFold(line, "error:")
	if !ok {
		return Event{}, false
	}
	return New(GenericError, line, strings.TrimSpace(msg)), true
}

// error: ... Wrong response code: 500 Internal Server Error with data <detail>
func matchNodeAPIError(line string) (Event, bool) {
	const marker = "Wrong response code:"
	idx := strings.Index(line, marker)
	if idx < 0 {
		return Event{}, false
	}
	rest := strings.TrimSpace(line[idx+len(marker):])
	code := rest
	if sp := strings.IndexFunc(rest, unicode.IsSpace); sp >= 0 {
		code = rest[:sp]
	}
	detail := rest
	if _, data, ok := strings.Cut(rest, "with data"); ok {
		detail = strings.TrimSpace(data)
	}
	return New(NodeAPIError, line, "", code, detail), true
}

// slate [<uuid>] received from [<address>] for [<amount>] MWCs. Message: [<text>]
func matchSlateReceivedFrom(line string) (Event, bool) {
	if !strings.Contains(line, "received from [") {
		return Event{}, false
	}
	slate, _ := First(line)
	address, _ := After(line, "from [")
	amount, _ := After(line, "for [")
	message, _ := After(line, "Message: [")
	return New(SlateReceivedFrom, line, "", slate, address, amount, message), true
}

// slate [<uuid>] received back from [<address>] for [<amount>] MWCs
func matchSlateReceivedBack(line string) (Event, bool) {
	if !strings.Contains(line, "received back from [") {
		return Event{}, false
	}
	slate, _ := First(line)
	address, _ := After(line, "from [")
	amount, _ := After(line, "for [")
	return New(SlateReceivedBack, line, "", slate, address, amount), true
}

// Incoming funds will be received in account: "<name>"
func matchSetReceiveAccount(line string) (Event, bool) {
	const marker = "will be received in account:"
	idx := strings.Index(line, marker)
	if idx < 0 {
		return Event{}, false
	}
	account := strings.Trim(strings.TrimSpace(line[idx+len(marker):]), `"'`)
	return New(SetReceiveAccount, line, "", account), true
}

// mwcmqs listener started for [<address>]
func matchListenerStarted(line string) (Event, bool) {
	address, ok := After(line, "listener started for [")
	if !ok {
		return Event{}, false
	}
	return New(ListenerStarted, line, "", address), true
}

// listener [mwcmqs] stopped
func matchListenerStopped(line string) (Event, bool) {
	name, ok := After(line, "listener [")
	if !ok || !strings.Contains(line, "stopped") {
		return Event{}, false
	}
	return New(ListenerStopped, line, "", name), true
}

// NewRecoveryPhraseMatcher returns a stateful matcher: the seed words are printed on
// the first non empty line after "Your recovery phrase is:".
func NewRecoveryPhraseMatcher() Matcher {
	armed := false
	return Matcher{
		Name: "recovery_phrase",
		Match: func(line string) (Event, bool) {
			if strings.Contains(strings.ToLower(line), "recovery phrase is") {
				armed = true
				return Event{}, false
			}
			if !armed || strings.TrimSpace(line) == "" {
				return Event{}, false
			}
			if _, isErr := cutPrefixFold(line, "error:"); isErr {
				armed = false
				return Event{}, false
			}
			armed = false
			words := strings.Fields(line)
			return New(RecoveryPhrase, line, strings.Join(words, " "), words...), true
		},
	}
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return "", false
	}
	return s[len(prefix):], true
}
