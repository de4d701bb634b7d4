package job

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusUploaded   Status = "uploaded"
	StatusAssigned   Status = "assigned"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Record is one cutting task tracked from upload through completion.
// Timestamps are set at most once; Notes is never written by the monitor.
type Record struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Material   string     `json:"material,omitempty"`
	Thickness  string     `json:"thickness,omitempty"`
	Copies     int        `json:"copies,omitempty"`
	FilePath   string     `json:"file_path,omitempty"`
	MachineIP  string     `json:"machine_ip,omitempty"`
	Status     Status     `json:"status"`
	UploadedAt time.Time  `json:"uploaded_at"`
	AssignedAt *time.Time `json:"assigned_at,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	Duration   string     `json:"duration,omitempty"`
	Progress   int        `json:"progress"`
	Notes      string     `json:"notes,omitempty"`
}

func (r *Record) Clone() *Record {
	c := *r
	if r.AssignedAt != nil {
		t := *r.AssignedAt
		c.AssignedAt = &t
	}
	if r.StartedAt != nil {
		t := *r.StartedAt
		c.StartedAt = &t
	}
	if r.EndedAt != nil {
		t := *r.EndedAt
		c.EndedAt = &t
	}
	return &c
}

// FormatDuration renders an elapsed span as HH:MM:SS, the format the
// job table and exports use.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// ParseDuration reverses FormatDuration. Used when averaging stored records.
func ParseDuration(v string) (time.Duration, bool) {
	var h, m, s int
	if _, err := fmt.Sscanf(v, "%d:%d:%d", &h, &m, &s); err != nil {
		return 0, false
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second, true
}
