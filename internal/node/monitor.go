// Package node keeps a cached view of the node health, refreshed by
// node-info tasks on a schedule.
package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	gocron "github.com/go-co-op/gocron/v2"

	"github.com/mwcproject/mwcwallet/internal/dispatch"
	"github.com/mwcproject/mwcwallet/internal/model"
	"github.com/mwcproject/mwcwallet/internal/task"
)

type Submitter interface {
	Submit(t task.Task) (*dispatch.Handle, error)
	Cancel(id string) bool
}

// Status is the outcome of the last node-info task.
type Status struct {
	task.NodeStatus
	Checked time.Time
	Errors  []string
}

type Monitor struct {
	submit    Submitter
	scheduler gocron.Scheduler
	trigger   chan struct{}

	closeOnce sync.Once
	closeErr  error

	mx      sync.RWMutex
	status  Status
	updates []chan Status
}

func NewMonitor(ctx context.Context, cfg model.Health, submit Submitter) (*Monitor, error) {
	m := &Monitor{
		submit:  submit,
		trigger: make(chan struct{}, 1),
	}
	if !cfg.Enabled {
		return m, nil
	}
	scheduler, err := newScheduler(ctx, cfg, m.Check)
	if err != nil {
		return nil, fmt.Errorf("node health: %w", err)
	}
	m.scheduler = scheduler
	return m, nil
}

func newScheduler(ctx context.Context, cfg model.Health, startFunc func()) (gocron.Scheduler, error) {
	var job gocron.JobDefinition
	switch {
	case cfg.Cron != "":
		if _, err := model.ParseCron(cfg.Cron); err != nil {
			return nil, fmt.Errorf("parsing node.health.cron: %w", err)
		}
		job = gocron.CronJob(cfg.Cron, false)
		slog.DebugContext(ctx, "successfully parsed", "cron", cfg.Cron)
	case cfg.Duration != "":
		d, err := model.ParseISODuration(cfg.Duration)
		if err != nil {
			return nil, fmt.Errorf("parsing node.health.duration: %w", err)
		}
		slog.DebugContext(ctx, "successfully parsed", "duration", d.String())
		job = gocron.DurationJob(d)
	default:
		return nil, errors.New("both cron and duration are empty")
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("initializing gocron scheduler: %w", err)
	}
	_, err = s.NewJob(
		job,
		gocron.NewTask(startFunc),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, fmt.Errorf("initializing gocron job: %w", err)
	}
	return s, nil
}

// Check asks for a refresh. It never blocks, a pending request absorbs new ones.
func (m *Monitor) Check() {
	select {
	case m.trigger <- struct{}{}:
	default:
	}
}

// Run refreshes the status on every Check until ctx is done or the
// dispatcher is gone. The first check runs immediately.
func (m *Monitor) Run(ctx context.Context) error {
	if m.scheduler != nil {
		m.scheduler.Start()
	}
	defer func() {
		if err := m.Close(); err != nil {
			slog.ErrorContext(ctx, "shutting down gocron has failed", "error", err)
		}
	}()
	defer m.closeUpdates()

	m.Check()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-m.trigger:
			err := m.refresh(ctx)
			if errors.Is(err, model.ErrProcessUnavailable) {
				slog.DebugContext(ctx, "node monitor stopped", "error", err)
				return nil
			}
			if err != nil {
				return err
			}
		}
	}
}

// Close stops the scheduler. Run calls it on return, a monitor which never
// ran must be closed explicitly.
func (m *Monitor) Close() error {
	m.closeOnce.Do(func() {
		if m.scheduler != nil {
			m.closeErr = m.scheduler.Shutdown()
		}
	})
	return m.closeErr
}

func (m *Monitor) refresh(ctx context.Context) error {
	h, err := m.submit.Submit(task.NodeInfo{})
	if err != nil {
		m.store(Status{Checked: time.Now().UTC(), Errors: []string{err.Error()}})
		return err
	}
	res, err := h.Wait(ctx)
	if err != nil {
		// ctx is done, Run returns on the next loop
		m.submit.Cancel(h.ID())
		return nil
	}
	st := Status{Checked: time.Now().UTC(), Errors: res.Errors}
	if ns, ok := res.Payload.(task.NodeStatus); ok {
		st.NodeStatus = ns
	}
	m.store(st)
	if res.OK() {
		slog.DebugContext(ctx, "node status", "height", st.NodeHeight, "peers", st.PeerHeight, "connections", st.Connections, "healthy", st.Healthy())
	} else {
		slog.WarnContext(ctx, "node status check failed", "errors", res.Errors)
	}
	if errors.Is(res.Err, model.ErrProcessUnavailable) {
		return res.Err
	}
	return nil
}

func (m *Monitor) store(st Status) {
	m.mx.Lock()
	defer m.mx.Unlock()
	m.status = st
	for _, ch := range m.updates {
		select {
		case ch <- st:
		default:
		}
	}
}

// Status returns the cached result of the last check.
func (m *Monitor) Status() Status {
	m.mx.RLock()
	defer m.mx.RUnlock()
	return m.status
}

// Healthy reports the cached health, false before the first check.
func (m *Monitor) Healthy() bool {
	return m.Status().Healthy()
}

// Updates returns a channel receiving every new status. Slow readers miss
// updates, Status always has the latest one. It is closed when Run returns.
func (m *Monitor) Updates() <-chan Status {
	ch := make(chan Status, 1)
	m.mx.Lock()
	m.updates = append(m.updates, ch)
	m.mx.Unlock()
	return ch
}

func (m *Monitor) closeUpdates() {
	m.mx.Lock()
	defer m.mx.Unlock()
	for _, ch := range m.updates {
		close(ch)
	}
	m.updates = nil
}
