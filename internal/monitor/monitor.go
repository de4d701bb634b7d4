package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"raybox-panel/internal/device"
	"raybox-panel/internal/job"
)

var ErrAlreadyRunning = errors.New("monitoring is already running")

const (
	defaultPollInterval = 2 * time.Second
	defaultErrorBackoff = 5 * time.Second
)

// Poller is the slice of the device client the monitor needs.
type Poller interface {
	CutSystemState(ctx context.Context, machineIP, appName string) (*device.Snapshot, error)
}

// Broadcaster receives monitor-driven updates for connected UI clients.
type Broadcaster interface {
	JobUpdated(r *job.Record)
	MachineState(state MachineState)
}

type MachineState struct {
	SysState   int       `json:"sys_state"`
	Label      string    `json:"label"`
	CutPercent int       `json:"cut_percent"`
	TaskName   string    `json:"task_name,omitempty"`
	PolledAt   time.Time `json:"polled_at"`
}

type Config struct {
	PollInterval time.Duration
	ErrorBackoff time.Duration
}

type Status struct {
	Running   bool          `json:"running"`
	MachineIP string        `json:"machine_ip,omitempty"`
	Machine   *MachineState `json:"machine,omitempty"`
	LastError string        `json:"last_error,omitempty"`
}

// Monitor runs at most one background polling loop against one machine.
// All store mutations for tracked jobs happen on the loop goroutine, so
// snapshots are applied strictly in arrival order.
type Monitor struct {
	store  *job.Store
	events Broadcaster
	cfg    Config

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
	status Status
}

func New(store *job.Store, events Broadcaster, cfg Config) *Monitor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = defaultErrorBackoff
	}
	return &Monitor{store: store, events: events, cfg: cfg}
}

func (m *Monitor) Start(poller Poller, machineIP, appName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.status = Status{Running: true, MachineIP: machineIP}

	tracker := NewTracker(m.store, machineIP)
	m.wg.Add(1)
	go m.run(ctx, poller, tracker, machineIP, appName)

	log.Info().Str("machine_ip", machineIP).Msg("monitoring started")
	return nil
}

// Stop cancels the loop and waits for at most one in-flight poll to finish.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	m.wg.Wait()

	m.mu.Lock()
	m.status.Running = false
	m.mu.Unlock()
	log.Info().Msg("monitoring stopped")
}

func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.status
	if st.Machine != nil {
		machine := *st.Machine
		st.Machine = &machine
	}
	return st
}

func (m *Monitor) run(ctx context.Context, poller Poller, tracker *Tracker, machineIP, appName string) {
	defer m.wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}

		snap, err := poller.CutSystemState(ctx, machineIP, appName)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			// A failed poll never transitions a job; back off and retry.
			log.Warn().Err(err).Str("machine_ip", machineIP).Msg("status poll failed")
			m.setError(err)
			if !sleep(ctx, m.cfg.ErrorBackoff) {
				return
			}
			continue
		}

		upd := tracker.Observe(*snap)
		state := MachineState{
			SysState:   snap.SysState,
			Label:      upd.Label,
			CutPercent: snap.CutPercent,
			TaskName:   snap.TaskName,
			PolledAt:   time.Now(),
		}
		m.setMachine(state)

		if m.events != nil {
			m.events.MachineState(state)
			if upd.Record != nil {
				m.events.JobUpdated(upd.Record)
			}
		}

		if !sleep(ctx, m.cfg.PollInterval) {
			return
		}
	}
}

func (m *Monitor) setMachine(state MachineState) {
	m.mu.Lock()
	m.status.Machine = &state
	m.status.LastError = ""
	m.mu.Unlock()
}

func (m *Monitor) setError(err error) {
	m.mu.Lock()
	m.status.LastError = err.Error()
	m.mu.Unlock()
}

// sleep waits for d unless the context is cancelled first.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
