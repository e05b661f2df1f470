package commands

import (
	"testing"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/rs/zerolog"

	"helixscreen/moonraker"
	"helixscreen/printer"
)

type rpcCall struct {
	method string
	params map[string]any
}

// fakeRPC records traffic and succeeds every request inline.
type fakeRPC struct {
	scripts []string
	calls   []rpcCall
	inv     *moonraker.Inventory
}

func (f *fakeRPC) Send(method string, params map[string]any, onSuccess moonraker.Callback, _ moonraker.ErrCallback, _ time.Duration) {
	f.calls = append(f.calls, rpcCall{method: method, params: params})
	if onSuccess != nil {
		onSuccess(nil)
	}
}

func (f *fakeRPC) SendGcode(script string, onSuccess moonraker.Callback, _ moonraker.ErrCallback) {
	f.scripts = append(f.scripts, script)
	if onSuccess != nil {
		onSuccess(nil)
	}
}

func (f *fakeRPC) Inventory() *moonraker.Inventory { return f.inv }

func readyInventory() *moonraker.Inventory {
	return &moonraker.Inventory{
		Heaters:     []string{"extruder", "heater_bed"},
		Fans:        []string{"fan"},
		Leds:        mapset.NewSet("neopixel chamber_light"),
		KlippyReady: true,
	}
}

func newTestController(inv *moonraker.Inventory) (*Controller, *fakeRPC) {
	rpc := &fakeRPC{inv: inv}
	return NewController(rpc, printer.NewLimits(), zerolog.Nop()), rpc
}

func expectValidation(t *testing.T) moonraker.ErrCallback {
	t.Helper()
	return func(err *moonraker.Error) {
		if err.Kind != moonraker.KindValidation {
			t.Errorf("kind = %v, want validation", err.Kind)
		}
	}
}

func TestGcodeSynthesis(t *testing.T) {
	c, rpc := newTestController(readyInventory())

	c.HomeAxes("", nil, nil)
	c.HomeAxes("xy", nil, nil)
	c.MoveRelative('Z', -0.05, 600, nil, nil)
	c.MoveAbsolute('X', 125, 6000, nil, nil)
	c.SetHeaterTemperature("extruder", 210, nil, nil)
	c.SetHeaterTemperature("heater_generic chamber", 50, nil, nil)
	c.SetFanSpeed("fan", 100, nil, nil)
	c.SetFanSpeed("fan_generic nevermore", 50, nil, nil)
	c.SetLed("neopixel chamber_light", 1, 0.5, 0, 0, nil, nil)
	c.ExcludeObject("benchy_1", nil, nil)

	want := []string{
		"G28",
		"G28 X Y",
		"G91\nG1 Z-0.050 F600\nG90",
		"G90\nG1 X125.000 F6000",
		"SET_HEATER_TEMPERATURE HEATER=extruder TARGET=210.0",
		"SET_HEATER_TEMPERATURE HEATER=chamber TARGET=50.0",
		"M106 S255",
		"SET_FAN_SPEED FAN=nevermore SPEED=0.500",
		"SET_LED LED=chamber_light RED=1.000 GREEN=0.500 BLUE=0.000 WHITE=0.000",
		"EXCLUDE_OBJECT NAME=benchy_1",
	}
	if len(rpc.scripts) != len(want) {
		t.Fatalf("sent %d scripts, want %d: %v", len(rpc.scripts), len(want), rpc.scripts)
	}
	for i, script := range want {
		if rpc.scripts[i] != script {
			t.Errorf("script[%d] = %q, want %q", i, rpc.scripts[i], script)
		}
	}
}

func TestValidationBlocksNetwork(t *testing.T) {
	c, rpc := newTestController(readyInventory())

	c.SetHeaterTemperature("extruder", 500, nil, expectValidation(t))
	c.SetHeaterTemperature("extruder", -10, nil, expectValidation(t))
	c.SetFanSpeed("fan", 130, nil, expectValidation(t))
	c.MoveRelative('X', 500, 6000, nil, expectValidation(t))
	c.MoveRelative('X', 10, 99999, nil, expectValidation(t))
	c.MoveAbsolute('X', 400, 6000, nil, expectValidation(t))
	c.MoveRelative('Q', 1, 600, nil, expectValidation(t))
	c.SetLed("neopixel chamber_light", 2, 0, 0, 0, nil, expectValidation(t))
	c.StartPrint("", nil, expectValidation(t))
	c.RunGcode("   ", nil, expectValidation(t))

	if len(rpc.scripts) != 0 || len(rpc.calls) != 0 {
		t.Errorf("rejected commands reached the network: scripts=%v calls=%v", rpc.scripts, rpc.calls)
	}
}

func TestHeaterOffAlwaysAllowed(t *testing.T) {
	c, rpc := newTestController(readyInventory())
	c.SetHeaterTemperature("extruder", 0, nil, func(err *moonraker.Error) {
		t.Errorf("turning a heater off rejected: %v", err)
	})
	if len(rpc.scripts) != 1 {
		t.Fatalf("scripts = %v", rpc.scripts)
	}
}

func TestPrintLifecycleRPCs(t *testing.T) {
	c, rpc := newTestController(readyInventory())

	c.StartPrint("benchy.gcode", nil, nil)
	c.PausePrint(nil, nil)
	c.ResumePrint(nil, nil)
	c.CancelPrint(nil, nil)
	c.EmergencyStop(nil, nil)
	c.FirmwareRestart(nil, nil)

	want := []string{
		"printer.print.start", "printer.print.pause", "printer.print.resume",
		"printer.print.cancel", "printer.emergency_stop", "printer.firmware_restart",
	}
	if len(rpc.calls) != len(want) {
		t.Fatalf("calls = %v", rpc.calls)
	}
	for i, method := range want {
		if rpc.calls[i].method != method {
			t.Errorf("call[%d] = %q, want %q", i, rpc.calls[i].method, method)
		}
	}
	if rpc.calls[0].params["filename"] != "benchy.gcode" {
		t.Errorf("start params = %v", rpc.calls[0].params)
	}
}

func TestKlippyNotReadyShortCircuit(t *testing.T) {
	inv := readyInventory()
	inv.KlippyReady = false
	c, rpc := newTestController(inv)

	sawKinds := []moonraker.ErrorKind{}
	record := func(err *moonraker.Error) { sawKinds = append(sawKinds, err.Kind) }

	c.HomeAxes("", nil, record)
	c.SetHeaterTemperature("extruder", 210, nil, record)
	c.RunGcode("M112", nil, record)

	if len(rpc.scripts) != 0 {
		t.Errorf("scripts sent while klippy down: %v", rpc.scripts)
	}
	for _, kind := range sawKinds {
		if kind != moonraker.KindKlippyNotReady {
			t.Errorf("kind = %v, want klippy_not_ready", kind)
		}
	}
	if len(sawKinds) != 3 {
		t.Errorf("got %d errors, want 3", len(sawKinds))
	}

	// Emergency stop and restarts must still go through.
	c.EmergencyStop(nil, nil)
	c.FirmwareRestart(nil, nil)
	if len(rpc.calls) != 2 {
		t.Errorf("emergency path blocked: %v", rpc.calls)
	}
}
