package state

import (
	"slices"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mwcproject/mwcwallet/internal/task"
)

const defaultSendLogSize = 256

// SendRecord tracks an online send until the recipient returned the slate.
type SendRecord struct {
	Slate     string
	Address   string
	Amount    string
	TxID      int64
	Time      time.Time
	Sent      bool
	Responded bool
}

// Pending reports a slate which was sent and has not come back yet.
func (r SendRecord) Pending() bool {
	return r.Sent && !r.Responded
}

// SendLog keeps the most recent sends, the oldest are evicted first.
type SendLog struct {
	mx         sync.Mutex
	cache      *lru.Cache[string, SendRecord]
	staleAfter time.Duration
	now        func() time.Time
}

// NewSendLog keeps up to size sends. A pending send becomes stale once it
// is staleAfter old.
func NewSendLog(size int, staleAfter time.Duration) (*SendLog, error) {
	if size <= 0 {
		size = defaultSendLogSize
	}
	cache, err := lru.New[string, SendRecord](size)
	if err != nil {
		return nil, err
	}
	return &SendLog{cache: cache, staleAfter: staleAfter, now: time.Now}, nil
}

// Sent records a successful send.
func (l *SendLog) Sent(p task.SendPayload) {
	l.mx.Lock()
	defer l.mx.Unlock()
	rec, _ := l.cache.Get(p.Slate)
	rec.Slate = p.Slate
	rec.Address = p.Address
	rec.Amount = p.Amount
	rec.TxID = p.TxID
	rec.Time = l.now().UTC()
	rec.Sent = true
	rec.Responded = rec.Responded || p.Responded
	l.cache.Add(p.Slate, rec)
}

// Responded marks the slate returned. It may arrive before the send result.
func (l *SendLog) Responded(slate string) {
	l.mx.Lock()
	defer l.mx.Unlock()
	rec, _ := l.cache.Get(slate)
	rec.Slate = slate
	rec.Responded = true
	l.cache.Add(slate, rec)
}

func (l *SendLog) Get(slate string) (SendRecord, bool) {
	return l.cache.Peek(slate)
}

// Stale returns pending sends older than the stale age, oldest first.
func (l *SendLog) Stale() []SendRecord {
	now := l.now()
	var out []SendRecord
	for _, rec := range l.cache.Values() {
		if rec.Pending() && now.Sub(rec.Time) >= l.staleAfter {
			out = append(out, rec)
		}
	}
	slices.SortFunc(out, func(a, b SendRecord) int {
		if c := a.Time.Compare(b.Time); c != 0 {
			return c
		}
		return strings.Compare(a.Slate, b.Slate)
	})
	return out
}

func (l *SendLog) Len() int {
	return l.cache.Len()
}

// EventLog keeps the latest wallet notifications.
type EventLog struct {
	mx    sync.Mutex
	size  int
	items []task.Result
}

func NewEventLog(size int) *EventLog {
	if size <= 0 {
		size = defaultSendLogSize
	}
	return &EventLog{size: size}
}

func (l *EventLog) Add(res task.Result) {
	l.mx.Lock()
	defer l.mx.Unlock()
	if len(l.items) == l.size {
		l.items = slices.Delete(l.items, 0, 1)
	}
	l.items = append(l.items, res)
}

// All returns the notifications, oldest first.
func (l *EventLog) All() []task.Result {
	l.mx.Lock()
	defer l.mx.Unlock()
	return slices.Clone(l.items)
}

// Slates returns received slate notifications, oldest first.
func (l *EventLog) Slates() []task.SlatePayload {
	var out []task.SlatePayload
	for _, res := range l.All() {
		if p, ok := res.Payload.(task.SlatePayload); ok {
			out = append(out, p)
		}
	}
	return out
}
