// Package printer holds the live model of the connected machine: a set of
// observable fields fused from Moonraker query replies and
// notify_status_update deltas. The model knows nothing about the transport;
// frames are handed to it through a function reference registered at
// startup, and malformed fields are ignored one by one so the last good
// value always survives.
package printer

import (
	"math"
	"strings"

	"helixscreen/observable"
)

// JobState is the print_stats state machine.
type JobState int

const (
	JobStandby JobState = iota
	JobPrinting
	JobPaused
	JobComplete
	JobCancelled
	JobError
)

func (s JobState) String() string {
	switch s {
	case JobStandby:
		return "standby"
	case JobPrinting:
		return "printing"
	case JobPaused:
		return "paused"
	case JobComplete:
		return "complete"
	case JobCancelled:
		return "cancelled"
	case JobError:
		return "error"
	default:
		return "unknown"
	}
}

// ConnectionState is driven by the transport's connect hooks, never by
// notifications.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
)

func (c ConnectionState) String() string {
	switch c {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// ExcludeInfo mirrors the exclude_object status object.
type ExcludeInfo struct {
	CurrentObject   string
	ExcludedObjects []string
	Objects         []string
}

// State is the process-wide observable projection of the printer. Create it
// once at init; it lives until shutdown and is only touched from the UI
// loop.
type State struct {
	limits *Limits

	ExtruderTemp   *observable.Observable[int]
	ExtruderTarget *observable.Observable[int]
	BedTemp        *observable.Observable[int]
	BedTarget      *observable.Observable[int]

	PrintJobState *observable.Observable[JobState]
	PrintFilename *observable.Observable[string]
	Progress      *observable.Observable[int] // 0..100
	CurrentLayer  *observable.Observable[int]
	TotalLayers   *observable.Observable[int]
	Elapsed       *observable.Observable[int] // seconds
	Remaining     *observable.Observable[int] // seconds, estimated

	SpeedPercent *observable.Observable[int]
	FlowPercent  *observable.Observable[int]
	FanPercent   *observable.Observable[int]

	PosX *observable.Observable[float64]
	PosY *observable.Observable[float64]
	PosZ *observable.Observable[float64]

	HomedAxes *observable.Observable[string]

	Connection *observable.Observable[ConnectionState]
	LedOn      *observable.Observable[int]

	Mesh    *observable.Observable[*BedMesh]
	Exclude *observable.Observable[ExcludeInfo]

	trackedLed       string
	sawDisplayStatus bool
	sawLivePosition  bool
}

// NewState builds the singleton model. limits bounds incoming targets; a
// nil limits falls back to defaults.
func NewState(limits *Limits) *State {
	if limits == nil {
		limits = NewLimits()
	}
	return &State{
		limits: limits,

		ExtruderTemp:   observable.New(0),
		ExtruderTarget: observable.New(0),
		BedTemp:        observable.New(0),
		BedTarget:      observable.New(0),

		PrintJobState: observable.New(JobStandby),
		PrintFilename: observable.New(""),
		Progress:      observable.New(0),
		CurrentLayer:  observable.New(0),
		TotalLayers:   observable.New(0),
		Elapsed:       observable.New(0),
		Remaining:     observable.New(0),

		SpeedPercent: observable.New(100),
		FlowPercent:  observable.New(100),
		FanPercent:   observable.New(0),

		PosX: observable.New(0.0),
		PosY: observable.New(0.0),
		PosZ: observable.New(0.0),

		HomedAxes: observable.New(""),

		Connection: observable.New(Disconnected),
		LedOn:      observable.New(0),

		Mesh:    observable.New[*BedMesh](nil),
		Exclude: observable.New(ExcludeInfo{}),
	}
}

// SetTrackedLed names the LED object whose frames feed LedOn.
func (s *State) SetTrackedLed(name string) { s.trackedLed = name }

// TrackedLed returns the tracked LED object name.
func (s *State) TrackedLed() string { return s.trackedLed }

// SetConnection is called by the transport hooks.
func (s *State) SetConnection(c ConnectionState) {
	s.Connection.Set(c)
	if c != Connected {
		// LED state is unknowable while disconnected; the post-reconnect
		// subscribe snapshot repopulates it.
		s.LedOn.Set(0)
	}
}

// ApplyStatusUpdate consumes one notify_status_update params payload: a
// list whose first element maps object names to changed fields. Unknown
// objects and malformed fields are skipped.
func (s *State) ApplyStatusUpdate(params []any) {
	if len(params) == 0 {
		return
	}
	objects, ok := params[0].(map[string]any)
	if !ok {
		return
	}
	for name, raw := range objects {
		fields, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		s.applyObject(name, fields)
	}
}

func (s *State) applyObject(name string, fields map[string]any) {
	switch {
	case name == "extruder":
		s.applyHeater(fields, s.ExtruderTemp, s.ExtruderTarget)
	case name == "heater_bed":
		s.applyHeater(fields, s.BedTemp, s.BedTarget)
	case name == "print_stats":
		s.applyPrintStats(fields)
	case name == "display_status":
		if p, ok := floatField(fields, "progress"); ok {
			s.sawDisplayStatus = true
			s.setProgress(p * 100)
		}
	case name == "virtual_sdcard":
		if p, ok := floatField(fields, "progress"); ok && !s.sawDisplayStatus {
			s.setProgress(p * 100)
		}
	case name == "gcode_move":
		s.applyGcodeMove(fields)
	case name == "motion_report":
		if pos, ok := fields["live_position"].([]any); ok {
			s.sawLivePosition = true
			s.setPosition(pos)
		}
	case name == "toolhead":
		s.applyToolhead(fields)
	case name == "fan" || strings.HasPrefix(name, "fan_generic"):
		if v, ok := floatField(fields, "speed"); ok {
			s.FanPercent.Set(clampPercent(v * 100))
		}
	case name == s.trackedLed && s.trackedLed != "":
		s.applyLed(fields)
	case name == "bed_mesh":
		s.Mesh.Set(parseBedMesh(fields, s.Mesh.Get()))
	case name == "exclude_object":
		s.applyExclude(fields)
	}
}

func (s *State) applyHeater(fields map[string]any, temp, target *observable.Observable[int]) {
	if v, ok := floatField(fields, "temperature"); ok {
		temp.Set(int(math.Round(v)))
	}
	if v, ok := floatField(fields, "target"); ok {
		if max := s.limits.MaxTemp; v > max {
			v = max
		}
		target.Set(int(math.Round(v)))
	}
}

func (s *State) applyPrintStats(fields map[string]any) {
	if raw, ok := fields["state"].(string); ok {
		state, known := jobStateFromString(raw)
		switch {
		case !known:
		case state == JobPrinting && s.filenameFor(fields) == "":
			// A print without a filename is a partial frame; wait for one
			// that carries it.
		default:
			s.PrintJobState.Set(state)
			if state == JobComplete {
				s.Progress.Set(100)
			}
		}
	}
	if fname, ok := fields["filename"].(string); ok {
		s.PrintFilename.Set(fname)
	}
	if v, ok := floatField(fields, "total_duration"); ok {
		s.Elapsed.Set(int(v))
		s.updateRemaining()
	}
	if info, ok := fields["info"].(map[string]any); ok {
		if v, ok := floatField(info, "current_layer"); ok && v >= 0 {
			s.CurrentLayer.Set(int(v))
		}
		if v, ok := floatField(info, "total_layer"); ok && v >= 0 {
			s.TotalLayers.Set(int(v))
		}
	}
}

// filenameFor resolves the filename a printing transition would take
// effect with: the one in the same frame if present, else the last known.
func (s *State) filenameFor(fields map[string]any) string {
	if fname, ok := fields["filename"].(string); ok {
		return fname
	}
	return s.PrintFilename.Get()
}

func (s *State) applyGcodeMove(fields map[string]any) {
	if v, ok := floatField(fields, "speed_factor"); ok {
		s.SpeedPercent.Set(clampFactor(v * 100))
	}
	if v, ok := floatField(fields, "extrude_factor"); ok {
		s.FlowPercent.Set(clampFactor(v * 100))
	}
	if pos, ok := fields["gcode_position"].([]any); ok && !s.sawLivePosition {
		s.setPosition(pos)
	}
}

func (s *State) applyToolhead(fields map[string]any) {
	if axes, ok := fields["homed_axes"].(string); ok {
		s.HomedAxes.Set(axes)
	}
	// Position fallback only when nothing better has ever arrived.
	if pos, ok := fields["position"].([]any); ok && !s.sawLivePosition {
		s.setPosition(pos)
	}
}

func (s *State) applyLed(fields map[string]any) {
	colors, ok := fields["color_data"].([]any)
	if !ok || len(colors) == 0 {
		return
	}
	on := 0
	for _, chip := range colors {
		channels, ok := chip.([]any)
		if !ok {
			continue
		}
		for _, ch := range channels {
			if v, ok := ch.(float64); ok && v > 0 {
				on = 1
			}
		}
	}
	s.LedOn.Set(on)
}

func (s *State) applyExclude(fields map[string]any) {
	info := s.Exclude.Get()
	if cur, ok := fields["current_object"].(string); ok {
		info.CurrentObject = cur
	}
	if raw, ok := fields["excluded_objects"].([]any); ok {
		info.ExcludedObjects = stringList(raw)
	}
	if raw, ok := fields["objects"].([]any); ok {
		names := make([]string, 0, len(raw))
		for _, o := range raw {
			if obj, ok := o.(map[string]any); ok {
				if name, ok := obj["name"].(string); ok {
					names = append(names, name)
				}
			}
		}
		info.Objects = names
	}
	s.Exclude.Set(info)
}

func (s *State) setProgress(percent float64) {
	s.Progress.Set(clampPercent(percent))
	s.updateRemaining()
}

func (s *State) updateRemaining() {
	p := s.Progress.Get()
	elapsed := s.Elapsed.Get()
	if p <= 0 || p >= 100 || elapsed <= 0 {
		s.Remaining.Set(0)
		return
	}
	s.Remaining.Set(elapsed * (100 - p) / p)
}

func (s *State) setPosition(pos []any) {
	if len(pos) < 3 {
		return
	}
	if x, ok := pos[0].(float64); ok {
		s.PosX.Set(x)
	}
	if y, ok := pos[1].(float64); ok {
		s.PosY.Set(y)
	}
	if z, ok := pos[2].(float64); ok {
		s.PosZ.Set(z)
	}
}

func jobStateFromString(raw string) (JobState, bool) {
	switch raw {
	case "standby":
		return JobStandby, true
	case "printing":
		return JobPrinting, true
	case "paused":
		return JobPaused, true
	case "complete":
		return JobComplete, true
	case "cancelled":
		return JobCancelled, true
	case "error":
		return JobError, true
	}
	return JobStandby, false
}

func clampPercent(v float64) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return int(math.Round(v))
}

// clampFactor keeps speed/flow factors non-negative but lets them exceed
// 100, since Klipper allows overdrive.
func clampFactor(v float64) int {
	if v < 0 {
		return 0
	}
	return int(math.Round(v))
}

func stringList(raw []any) []string {
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
