package event_test

import (
	"testing"

	"github.com/mwcproject/mwcwallet/internal/event"
	"github.com/stretchr/testify/require"
)

func TestBrackets(t *testing.T) {
	t.Parallel()
	line := "slate [abc-123] for [0.321000000] MWCs sent successfully to [xmgEv...]"

	first, ok := event.First(line)
	require.True(t, ok)
	require.Equal(t, "abc-123", first)

	amount, ok := event.After(line, "for [")
	require.True(t, ok)
	require.Equal(t, "0.321000000", amount)

	last, ok := event.Last(line)
	require.True(t, ok)
	require.Equal(t, "xmgEv...", last)

	_, ok = event.First("no brackets")
	require.False(t, ok)
	_, ok = event.Last("open [ never closed")
	require.False(t, ok)
	_, ok = event.After(line, "missing [")
	require.False(t, ok)
	_, ok = event.After(line, "for")
	require.False(t, ok)

	// '[' at the very beginning counts
	first, ok = event.First("[x]")
	require.True(t, ok)
	require.Equal(t, "x", first)
}
