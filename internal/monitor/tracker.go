package monitor

import (
	"time"

	"github.com/rs/zerolog/log"

	"raybox-panel/internal/device"
	"raybox-panel/internal/job"
)

// Tracker infers job lifecycle transitions from polled machine state.
// The device has no push notifications and no completion event, so the
// tracker is edge-triggered: it compares each snapshot's sysState with the
// previous one and only mutates records on the busy entry and exit edges.
// The polled task name is treated as the single currently active job.
type Tracker struct {
	store     *job.Store
	machineIP string

	current   *job.Record
	prevState int
	hasPrev   bool
	startMark time.Time

	now func() time.Time
}

// Update describes the outcome of one observation.
type Update struct {
	Record *job.Record
	Label  string
}

func NewTracker(store *job.Store, machineIP string) *Tracker {
	return &Tracker{
		store:     store,
		machineIP: machineIP,
		now:       time.Now,
	}
}

// Observe applies one snapshot to the tracked job. Only successful,
// parseable snapshots ever reach this method; poll failures must not.
func (t *Tracker) Observe(snap device.Snapshot) Update {
	upd := Update{Label: snap.Label()}

	if name := snap.TaskName; name != "" && (t.current == nil || t.current.ID != name) {
		t.begin(name)
		upd.Record = t.current.Clone()
	}

	prev := t.prevState
	hadPrev := t.hasPrev
	t.prevState = snap.SysState
	t.hasPrev = true

	if t.current == nil {
		return upd
	}

	switch {
	case snap.Busy() && (!hadPrev || prev != device.StateBusy):
		// Start edge: the machine began cutting since the last poll.
		now := t.now()
		t.current.Status = job.StatusInProgress
		t.current.StartedAt = &now
		t.current.EndedAt = nil
		t.current.Duration = ""
		t.current.Progress = snap.CutPercent
		t.startMark = now
		t.store.Upsert(t.current)
		upd.Record = t.current.Clone()
		log.Info().Str("job", t.current.ID).Msg("job started cutting")

	case snap.Busy():
		if snap.CutPercent != t.current.Progress {
			t.current.Progress = snap.CutPercent
			t.store.Upsert(t.current)
			upd.Record = t.current.Clone()
		}

	case hadPrev && prev == device.StateBusy:
		// Completion edge: elapsed comes from the monotonic start mark,
		// not from the stored wall-clock timestamps.
		now := t.now()
		elapsed := now.Sub(t.startMark)
		t.current.Status = job.StatusCompleted
		t.current.EndedAt = &now
		t.current.Duration = job.FormatDuration(elapsed)
		t.current.Progress = 100
		t.store.Upsert(t.current)
		upd.Record = t.current.Clone()
		log.Info().Str("job", t.current.ID).Str("duration", t.current.Duration).Msg("job completed")
	}

	return upd
}

// begin switches tracking to the named job, reusing an existing record or
// creating one in the uploaded state. Progress resets for the new run.
func (t *Tracker) begin(name string) {
	rec, err := t.store.Get(name)
	if err != nil {
		rec = &job.Record{
			ID:         name,
			Name:       name,
			MachineIP:  t.machineIP,
			Status:     job.StatusUploaded,
			UploadedAt: t.now(),
		}
		log.Info().Str("job", name).Msg("tracking new job from polled state")
	}
	if rec.Progress != 0 {
		rec.Progress = 0
	}
	t.current = rec
	t.store.Upsert(rec)
}
