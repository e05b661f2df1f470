package printer

import "testing"

func frame(objects map[string]any) []any {
	return []any{objects, 123.456}
}

func TestState_TemperatureAndJobFrame(t *testing.T) {
	s := NewState(nil)
	s.ApplyStatusUpdate(frame(map[string]any{
		"extruder":    map[string]any{"temperature": 205.3, "target": 210.0},
		"print_stats": map[string]any{"state": "printing", "filename": "benchy.gcode"},
	}))

	if got := s.ExtruderTemp.Get(); got != 205 {
		t.Errorf("ExtruderTemp = %d, want 205", got)
	}
	if got := s.ExtruderTarget.Get(); got != 210 {
		t.Errorf("ExtruderTarget = %d, want 210", got)
	}
	if got := s.PrintJobState.Get(); got != JobPrinting {
		t.Errorf("PrintJobState = %v, want printing", got)
	}
	if got := s.PrintFilename.Get(); got != "benchy.gcode" {
		t.Errorf("PrintFilename = %q, want benchy.gcode", got)
	}
}

func TestState_TargetClampedToLimits(t *testing.T) {
	limits := NewLimits()
	limits.MaxTemp = 260
	s := NewState(limits)
	s.ApplyStatusUpdate(frame(map[string]any{
		"extruder": map[string]any{"target": 999.0},
	}))
	if got := s.ExtruderTarget.Get(); got != 260 {
		t.Errorf("ExtruderTarget = %d, want clamped 260", got)
	}
}

func TestState_ProgressMappingAndClamp(t *testing.T) {
	s := NewState(nil)
	s.ApplyStatusUpdate(frame(map[string]any{
		"display_status": map[string]any{"progress": 0.425},
	}))
	if got := s.Progress.Get(); got != 43 {
		t.Errorf("Progress = %d, want 43", got)
	}
	s.ApplyStatusUpdate(frame(map[string]any{
		"display_status": map[string]any{"progress": 1.7},
	}))
	if got := s.Progress.Get(); got != 100 {
		t.Errorf("Progress = %d, want clamped 100", got)
	}
}

func TestState_VirtualSDCardIsOnlyAFallback(t *testing.T) {
	s := NewState(nil)
	s.ApplyStatusUpdate(frame(map[string]any{
		"virtual_sdcard": map[string]any{"progress": 0.5},
	}))
	if got := s.Progress.Get(); got != 50 {
		t.Errorf("fallback Progress = %d, want 50", got)
	}
	s.ApplyStatusUpdate(frame(map[string]any{
		"display_status": map[string]any{"progress": 0.6},
	}))
	s.ApplyStatusUpdate(frame(map[string]any{
		"virtual_sdcard": map[string]any{"progress": 0.9},
	}))
	if got := s.Progress.Get(); got != 60 {
		t.Errorf("Progress = %d, want display_status value 60", got)
	}
}

func TestState_CompleteForcesFullProgress(t *testing.T) {
	s := NewState(nil)
	s.ApplyStatusUpdate(frame(map[string]any{
		"print_stats":    map[string]any{"state": "printing", "filename": "x.gcode"},
		"display_status": map[string]any{"progress": 0.97},
	}))
	s.ApplyStatusUpdate(frame(map[string]any{
		"print_stats": map[string]any{"state": "complete"},
	}))
	if got := s.PrintJobState.Get(); got != JobComplete {
		t.Errorf("PrintJobState = %v, want complete", got)
	}
	if got := s.Progress.Get(); got != 100 {
		t.Errorf("Progress = %d, want 100 on complete", got)
	}
}

func TestState_PrintingNeedsFilename(t *testing.T) {
	s := NewState(nil)
	s.ApplyStatusUpdate(frame(map[string]any{
		"print_stats": map[string]any{"state": "printing"},
	}))
	if got := s.PrintJobState.Get(); got != JobStandby {
		t.Errorf("PrintJobState = %v, want standby until filename arrives", got)
	}
}

func TestState_MotionReportOverridesGcodeMove(t *testing.T) {
	s := NewState(nil)
	s.ApplyStatusUpdate(frame(map[string]any{
		"gcode_move": map[string]any{"gcode_position": []any{10.0, 20.0, 0.3, 0.0}},
	}))
	if s.PosX.Get() != 10 || s.PosY.Get() != 20 {
		t.Errorf("gcode_move position not applied: %v %v", s.PosX.Get(), s.PosY.Get())
	}
	s.ApplyStatusUpdate(frame(map[string]any{
		"motion_report": map[string]any{"live_position": []any{11.5, 21.5, 0.4, 0.0}},
	}))
	s.ApplyStatusUpdate(frame(map[string]any{
		"gcode_move": map[string]any{"gcode_position": []any{99.0, 99.0, 9.0, 0.0}},
	}))
	if s.PosX.Get() != 11.5 || s.PosZ.Get() != 0.4 {
		t.Errorf("live_position should win once seen, got x=%v z=%v", s.PosX.Get(), s.PosZ.Get())
	}
}

func TestState_FactorsAndFan(t *testing.T) {
	s := NewState(nil)
	s.ApplyStatusUpdate(frame(map[string]any{
		"gcode_move": map[string]any{"speed_factor": 1.5, "extrude_factor": 0.95},
		"fan":        map[string]any{"speed": 0.55},
	}))
	if got := s.SpeedPercent.Get(); got != 150 {
		t.Errorf("SpeedPercent = %d, want 150", got)
	}
	if got := s.FlowPercent.Get(); got != 95 {
		t.Errorf("FlowPercent = %d, want 95", got)
	}
	if got := s.FanPercent.Get(); got != 55 {
		t.Errorf("FanPercent = %d, want 55", got)
	}
}

func TestState_TrackedLed(t *testing.T) {
	s := NewState(nil)
	s.SetTrackedLed("neopixel chamber_light")
	s.ApplyStatusUpdate(frame(map[string]any{
		"neopixel chamber_light": map[string]any{
			"color_data": []any{[]any{0.0, 0.0, 0.0, 0.8}},
		},
	}))
	if s.LedOn.Get() != 1 {
		t.Error("LedOn should be 1 when any channel is lit")
	}
	s.ApplyStatusUpdate(frame(map[string]any{
		"neopixel chamber_light": map[string]any{
			"color_data": []any{[]any{0.0, 0.0, 0.0, 0.0}},
		},
	}))
	if s.LedOn.Get() != 0 {
		t.Error("LedOn should be 0 when all channels are dark")
	}
}

func TestState_LedResetOnDisconnect(t *testing.T) {
	s := NewState(nil)
	s.SetTrackedLed("led caselight")
	s.ApplyStatusUpdate(frame(map[string]any{
		"led caselight": map[string]any{"color_data": []any{[]any{1.0, 1.0, 1.0}}},
	}))
	s.SetConnection(Disconnected)
	if s.LedOn.Get() != 0 {
		t.Error("LED state must reset to unknown/off across disconnects")
	}
	if s.Connection.Get() != Disconnected {
		t.Errorf("Connection = %v, want disconnected", s.Connection.Get())
	}
}

func TestState_MalformedFieldsIgnored(t *testing.T) {
	s := NewState(nil)
	s.ApplyStatusUpdate(frame(map[string]any{
		"extruder": map[string]any{"temperature": 199.6},
	}))
	s.ApplyStatusUpdate(frame(map[string]any{
		"extruder":    map[string]any{"temperature": "nonsense"},
		"print_stats": "not-a-map",
	}))
	s.ApplyStatusUpdate([]any{})
	s.ApplyStatusUpdate(nil)
	if got := s.ExtruderTemp.Get(); got != 200 {
		t.Errorf("last good value lost: ExtruderTemp = %d, want 200", got)
	}
}

func TestState_BedMeshFrame(t *testing.T) {
	s := NewState(nil)
	s.ApplyStatusUpdate(frame(map[string]any{
		"bed_mesh": map[string]any{
			"profile_name":  "default",
			"probed_matrix": []any{[]any{0.01, 0.02}, []any{0.03, 0.04}},
			"mesh_min":      []any{5.0, 5.0},
			"mesh_max":      []any{245.0, 245.0},
		},
	}))
	mesh := s.Mesh.Get()
	if !mesh.Valid() {
		t.Fatal("mesh should be valid")
	}
	cols, rows := mesh.Counts()
	if cols != 2 || rows != 2 {
		t.Errorf("mesh counts = %dx%d, want 2x2", cols, rows)
	}
	if mesh.Name != "default" {
		t.Errorf("mesh name = %q", mesh.Name)
	}
	min, max := mesh.ZRange()
	if min != 0.01 || max != 0.04 {
		t.Errorf("z range = [%v, %v]", min, max)
	}
}

func TestState_ExcludeObjectFrame(t *testing.T) {
	s := NewState(nil)
	s.ApplyStatusUpdate(frame(map[string]any{
		"exclude_object": map[string]any{
			"current_object":   "Benchy",
			"excluded_objects": []any{"Cube"},
			"objects": []any{
				map[string]any{"name": "Benchy"},
				map[string]any{"name": "Cube"},
			},
		},
	}))
	info := s.Exclude.Get()
	if info.CurrentObject != "Benchy" {
		t.Errorf("CurrentObject = %q", info.CurrentObject)
	}
	if len(info.ExcludedObjects) != 1 || info.ExcludedObjects[0] != "Cube" {
		t.Errorf("ExcludedObjects = %v", info.ExcludedObjects)
	}
	if len(info.Objects) != 2 {
		t.Errorf("Objects = %v", info.Objects)
	}
}
