// Package commands is the typed façade between the UI and the transport.
// Every operation validates its arguments against the safety limits before
// any network traffic, then synthesizes a G-code script or a structured RPC
// and hands it to the transport.
package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"helixscreen/moonraker"
	"helixscreen/printer"
)

// RPCSender is the transport surface the façade needs. *moonraker.Client
// satisfies it; tests substitute a recorder.
type RPCSender interface {
	Send(method string, params map[string]any, onSuccess moonraker.Callback, onError moonraker.ErrCallback, timeout time.Duration)
	SendGcode(script string, onSuccess moonraker.Callback, onError moonraker.ErrCallback)
	Inventory() *moonraker.Inventory
}

// Controller exposes the domain operations. One instance per connection.
type Controller struct {
	rpc    RPCSender
	limits *printer.Limits
	log    zerolog.Logger
}

func NewController(rpc RPCSender, limits *printer.Limits, log zerolog.Logger) *Controller {
	return &Controller{rpc: rpc, limits: limits, log: log}
}

// Done is a success continuation that does not care about the result.
type Done func()

func (c *Controller) ok(done Done) moonraker.Callback {
	if done == nil {
		return nil
	}
	return func(any) { done() }
}

// fail invokes onError synchronously; validation failures never touch the
// network so there is nothing to wait for.
func (c *Controller) fail(onError moonraker.ErrCallback, err *moonraker.Error) {
	c.log.Warn().Err(err).Msg("command rejected")
	if onError != nil {
		onError(err)
	}
}

// notReady short-circuits motion and heater commands while Klippy is down.
// Emergency stop and restarts bypass this on purpose.
func (c *Controller) notReady(method string, onError moonraker.ErrCallback) bool {
	inv := c.rpc.Inventory()
	if inv != nil && !inv.KlippyReady {
		c.fail(onError, moonraker.NewError(moonraker.KindKlippyNotReady, method, "klippy not ready"))
		return true
	}
	return false
}

// HomeAxes homes the named axes ("XYZ", "XY", ...). Empty homes everything.
func (c *Controller) HomeAxes(axes string, done Done, onError moonraker.ErrCallback) {
	if c.notReady("home", onError) {
		return
	}
	script := "G28"
	for _, axis := range strings.ToUpper(axes) {
		switch axis {
		case 'X', 'Y', 'Z':
			script += fmt.Sprintf(" %c", axis)
		default:
			c.fail(onError, moonraker.NewError(moonraker.KindValidation, "home",
				fmt.Sprintf("unknown axis %q", axis)))
			return
		}
	}
	c.rpc.SendGcode(script, c.ok(done), onError)
}

// MoveRelative jogs one axis by dist millimeters at feedrate mm/min. The
// script brackets the move with G91/G90 so the printer's positioning mode
// is left untouched.
func (c *Controller) MoveRelative(axis rune, dist, feedrate float64, done Done, onError moonraker.ErrCallback) {
	if c.notReady("move", onError) {
		return
	}
	if axisIndex(axis) < 0 {
		c.fail(onError, moonraker.NewError(moonraker.KindValidation, "move",
			fmt.Sprintf("unknown axis %q", axis)))
		return
	}
	if err := c.limits.CheckRelativeMove(dist); err != nil {
		c.fail(onError, moonraker.NewError(moonraker.KindValidation, "move", err.Error()))
		return
	}
	if err := c.limits.CheckFeedrate(feedrate); err != nil {
		c.fail(onError, moonraker.NewError(moonraker.KindValidation, "move", err.Error()))
		return
	}
	script := fmt.Sprintf("G91\nG1 %c%.3f F%.0f\nG90", axis, dist, feedrate)
	c.rpc.SendGcode(script, c.ok(done), onError)
}

// MoveAbsolute moves one axis to pos millimeters at feedrate mm/min.
func (c *Controller) MoveAbsolute(axis rune, pos, feedrate float64, done Done, onError moonraker.ErrCallback) {
	if c.notReady("move", onError) {
		return
	}
	idx := axisIndex(axis)
	if idx < 0 {
		c.fail(onError, moonraker.NewError(moonraker.KindValidation, "move",
			fmt.Sprintf("unknown axis %q", axis)))
		return
	}
	if err := c.limits.CheckAbsoluteMove(idx, pos); err != nil {
		c.fail(onError, moonraker.NewError(moonraker.KindValidation, "move", err.Error()))
		return
	}
	if err := c.limits.CheckFeedrate(feedrate); err != nil {
		c.fail(onError, moonraker.NewError(moonraker.KindValidation, "move", err.Error()))
		return
	}
	script := fmt.Sprintf("G90\nG1 %c%.3f F%.0f", axis, pos, feedrate)
	c.rpc.SendGcode(script, c.ok(done), onError)
}

func axisIndex(axis rune) int {
	switch axis {
	case 'X', 'x':
		return 0
	case 'Y', 'y':
		return 1
	case 'Z', 'z':
		return 2
	}
	return -1
}

// SetHeaterTemperature targets a heater in °C. Zero turns it off.
func (c *Controller) SetHeaterTemperature(heater string, target float64, done Done, onError moonraker.ErrCallback) {
	if c.notReady("set_temperature", onError) {
		return
	}
	if heater == "" {
		c.fail(onError, moonraker.NewError(moonraker.KindValidation, "set_temperature", "empty heater name"))
		return
	}
	if err := c.limits.CheckTemperature(target); err != nil {
		c.fail(onError, moonraker.NewError(moonraker.KindValidation, "set_temperature", err.Error()))
		return
	}
	script := fmt.Sprintf("SET_HEATER_TEMPERATURE HEATER=%s TARGET=%.1f", gcodeName(heater), target)
	c.rpc.SendGcode(script, c.ok(done), onError)
}

// SetFanSpeed sets a fan to percent. The part cooling fan takes M106 with a
// 0..255 scale; named fans take SET_FAN_SPEED with a 0..1 scale.
func (c *Controller) SetFanSpeed(fan string, percent float64, done Done, onError moonraker.ErrCallback) {
	if c.notReady("set_fan", onError) {
		return
	}
	if err := c.limits.CheckFan(percent); err != nil {
		c.fail(onError, moonraker.NewError(moonraker.KindValidation, "set_fan", err.Error()))
		return
	}
	var script string
	if fan == "" || fan == "fan" {
		script = fmt.Sprintf("M106 S%d", int(percent*255/100+0.5))
	} else {
		script = fmt.Sprintf("SET_FAN_SPEED FAN=%s SPEED=%.3f", gcodeName(fan), percent/100)
	}
	c.rpc.SendGcode(script, c.ok(done), onError)
}

// SetLed sets RGBW channels, each in [0,1].
func (c *Controller) SetLed(led string, r, g, b, w float64, done Done, onError moonraker.ErrCallback) {
	if c.notReady("set_led", onError) {
		return
	}
	if led == "" {
		c.fail(onError, moonraker.NewError(moonraker.KindValidation, "set_led", "empty led name"))
		return
	}
	for _, v := range []float64{r, g, b, w} {
		if v < 0 || v > 1 {
			c.fail(onError, moonraker.NewError(moonraker.KindValidation, "set_led",
				fmt.Sprintf("channel %.2f outside [0, 1]", v)))
			return
		}
	}
	script := fmt.Sprintf("SET_LED LED=%s RED=%.3f GREEN=%.3f BLUE=%.3f WHITE=%.3f",
		gcodeName(led), r, g, b, w)
	c.rpc.SendGcode(script, c.ok(done), onError)
}

// gcodeName strips the Klipper module prefix: "neopixel chamber_light"
// becomes "chamber_light", which is what SET_LED and SET_FAN_SPEED expect.
func gcodeName(object string) string {
	if i := strings.LastIndexByte(object, ' '); i >= 0 {
		return object[i+1:]
	}
	return object
}

// ExcludeObject skips the named object for the rest of the print.
func (c *Controller) ExcludeObject(name string, done Done, onError moonraker.ErrCallback) {
	if c.notReady("exclude_object", onError) {
		return
	}
	if name == "" {
		c.fail(onError, moonraker.NewError(moonraker.KindValidation, "exclude_object", "empty object name"))
		return
	}
	c.rpc.SendGcode("EXCLUDE_OBJECT NAME="+name, c.ok(done), onError)
}

// StartPrint starts a job from the gcodes root.
func (c *Controller) StartPrint(filename string, done Done, onError moonraker.ErrCallback) {
	if c.notReady("printer.print.start", onError) {
		return
	}
	if filename == "" {
		c.fail(onError, moonraker.NewError(moonraker.KindValidation, "printer.print.start", "empty filename"))
		return
	}
	c.rpc.Send("printer.print.start", map[string]any{"filename": filename},
		c.ok(done), onError, moonraker.TimeoutState)
}

func (c *Controller) PausePrint(done Done, onError moonraker.ErrCallback) {
	c.rpc.Send("printer.print.pause", nil, c.ok(done), onError, moonraker.TimeoutState)
}

func (c *Controller) ResumePrint(done Done, onError moonraker.ErrCallback) {
	c.rpc.Send("printer.print.resume", nil, c.ok(done), onError, moonraker.TimeoutState)
}

func (c *Controller) CancelPrint(done Done, onError moonraker.ErrCallback) {
	c.rpc.Send("printer.print.cancel", nil, c.ok(done), onError, moonraker.TimeoutState)
}

// EmergencyStop halts the printer immediately. Never gated on readiness.
func (c *Controller) EmergencyStop(done Done, onError moonraker.ErrCallback) {
	c.rpc.Send("printer.emergency_stop", nil, c.ok(done), onError, moonraker.TimeoutFast)
}

// FirmwareRestart restarts the Klipper MCU connection.
func (c *Controller) FirmwareRestart(done Done, onError moonraker.ErrCallback) {
	c.rpc.Send("printer.firmware_restart", nil, c.ok(done), onError, moonraker.TimeoutState)
}

// RestartKlippy restarts the Klippy host process.
func (c *Controller) RestartKlippy(done Done, onError moonraker.ErrCallback) {
	c.rpc.Send("printer.restart", nil, c.ok(done), onError, moonraker.TimeoutState)
}

// RunGcode sends a raw script typed by the user. No synthesis, but still
// gated on readiness.
func (c *Controller) RunGcode(script string, done Done, onError moonraker.ErrCallback) {
	if c.notReady("gcode", onError) {
		return
	}
	script = strings.TrimSpace(script)
	if script == "" {
		c.fail(onError, moonraker.NewError(moonraker.KindValidation, "gcode", "empty script"))
		return
	}
	c.rpc.SendGcode(script, c.ok(done), onError)
}
