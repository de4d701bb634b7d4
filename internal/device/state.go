package device

import "fmt"

// Numeric machine states reported by cutSystemState. Only StateBusy drives
// lifecycle transitions; everything else is display-only.
const (
	StateStandby    = 0
	StateHoming     = 1
	StateSimulation = 2
	StatePaused     = 3
	StateAlarm      = 4
	StateDoorOpen   = 5
	StateFraming    = 6
	StateFinishing  = 7
	StateBusy       = 8
)

var stateLabels = map[int]string{
	StateStandby:    "standby",
	StateHoming:     "homing",
	StateSimulation: "simulation",
	StatePaused:     "paused",
	StateAlarm:      "alarm",
	StateDoorOpen:   "door_open",
	StateFraming:    "framing",
	StateFinishing:  "finishing",
	StateBusy:       "cutting",
}

func StateLabel(code int) string {
	if label, ok := stateLabels[code]; ok {
		return label
	}
	return fmt.Sprintf("unknown_%d", code)
}

// Snapshot is one polled observation of the machine state.
type Snapshot struct {
	SysState   int    `json:"sys_state"`
	CutPercent int    `json:"cut_percent"`
	TaskName   string `json:"task_name"`
}

func (s Snapshot) Busy() bool {
	return s.SysState == StateBusy
}

func (s Snapshot) Label() string {
	return StateLabel(s.SysState)
}

func parseSnapshot(env Envelope) (*Snapshot, error) {
	data, ok := env.Data()
	if !ok {
		return nil, fmt.Errorf("%w: missing data field", ErrNonJSONResponse)
	}

	snap := &Snapshot{}
	if v, ok := data["sysState"].(float64); ok {
		snap.SysState = int(v)
	}
	if v, ok := data["cutPercent"].(float64); ok {
		snap.CutPercent = int(v)
	}
	if v, ok := data["taskName"].(string); ok {
		snap.TaskName = v
	}
	if snap.CutPercent < 0 {
		snap.CutPercent = 0
	}
	if snap.CutPercent > 100 {
		snap.CutPercent = 100
	}
	return snap, nil
}
