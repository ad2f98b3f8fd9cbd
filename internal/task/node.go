package task

import (
	"strconv"
	"strings"

	"github.com/mwcproject/mwcwallet/internal/event"
)

// NodeInfo queries the connected node.
type NodeInfo struct {
	sealed
	TimeoutPolicy
}

func (t NodeInfo) Kind() Kind         { return KindNodeInfo }
func (t NodeInfo) Command() string    { return "node-info" }
func (t NodeInfo) LogCommand() string { return t.Command() }

const (
	nodeHeight      = "Node height:"
	peersHeight     = "Peers height:"
	totalDifficulty = "Total difficulty:"
	connections     = "Connections:"
)

func (t NodeInfo) Ready(events []event.Event) bool {
	if finished(events) {
		return true
	}
	for _, ln := range lines(events) {
		if strings.HasPrefix(ln.Message, connections) {
			return true
		}
	}
	return false
}

func (t NodeInfo) Finalize(events []event.Event) Result {
	var (
		st    NodeStatus
		found bool
	)
	for _, ln := range lines(events) {
		switch {
		case strings.HasPrefix(ln.Message, nodeHeight):
			st.NodeHeight, found = parseInt(ln.Message[len(nodeHeight):]), true
		case strings.HasPrefix(ln.Message, peersHeight):
			st.PeerHeight = parseInt(ln.Message[len(peersHeight):])
		case strings.HasPrefix(ln.Message, totalDifficulty):
			st.TotalDifficulty = parseInt(ln.Message[len(totalDifficulty):])
		case strings.HasPrefix(ln.Message, connections):
			st.Connections = int(parseInt(ln.Message[len(connections):]))
		}
	}
	if found && !hasErrors(events) {
		st.Online = st.NodeHeight > 0 && st.Connections > 0
		return succeeded(KindNodeInfo, st)
	}
	return failed(KindNodeInfo, nodeErrors(events, "MWC-NODE is not reachable. "), NodeStatus{})
}

func parseInt(s string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return n
}
