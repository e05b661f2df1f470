package moonraker

import (
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"helixscreen/printer"
)

// ServerInfo is the typed shape of the server.info reply.
type ServerInfo struct {
	KlippyConnected  bool
	KlippyState      string
	MoonrakerVersion string
}

// Inventory is the hardware discovered on one connection: three
// insertion-ordered lists plus the LED set. It is replaced wholesale on
// every (re)discovery and read-only for everyone but the client.
type Inventory struct {
	Heaters []string
	Sensors []string
	Fans    []string
	Leds    mapset.Set[string]

	Objects  []string
	Hostname string

	Server          ServerInfo
	KlippyReady     bool
	SoftwareVersion string
	Kinematics      string
}

// HasObject reports whether the named Klipper object was discovered.
func (inv *Inventory) HasObject(name string) bool {
	for _, o := range inv.Objects {
		if o == name {
			return true
		}
	}
	return false
}

// classifyObjects sorts Klipper object names into the inventory buckets.
// Heater names win over sensor names, sensor names over fan names, so
// "temperature_fan chamber" lands with the fans only if no earlier rule
// claimed it.
func classifyObjects(objects []string) *Inventory {
	inv := &Inventory{
		Objects: objects,
		Leds:    mapset.NewSet[string](),
	}
	for _, name := range objects {
		lower := strings.ToLower(name)
		switch {
		case strings.Contains(lower, "extruder") ||
			strings.Contains(lower, "heater_bed") ||
			strings.Contains(lower, "heater_generic"):
			inv.Heaters = append(inv.Heaters, name)
		case strings.Contains(lower, "temperature_sensor") ||
			strings.HasPrefix(lower, "temperature_"):
			inv.Sensors = append(inv.Sensors, name)
		case strings.Contains(lower, "fan"):
			inv.Fans = append(inv.Fans, name)
		case strings.Contains(lower, "neopixel") ||
			strings.Contains(lower, "dotstar") ||
			strings.Contains(lower, "led"):
			inv.Leds.Add(name)
		}
	}
	return inv
}

// DiscoverPrinter runs the fixed post-connect sequence: server.info,
// printer.info, printer.objects.list, a configfile/bed_mesh/exclude_object
// query that seeds limits, then the status subscription whose reply is
// replayed as the initial snapshot. Call only while connected; each step is
// gated on the previous one.
func (c *Client) DiscoverPrinter(limits *printer.Limits, onComplete func(*Inventory), onError ErrCallback) {
	fail := func(err *Error) {
		if onError != nil {
			onError(err)
		} else {
			c.log.Warn().Err(err).Msg("discovery failed")
		}
	}

	c.Send("server.info", nil, func(result any) {
		info := asMap(result)
		server := ServerInfo{
			KlippyConnected:  asBool(info["klippy_connected"]),
			KlippyState:      asString(info["klippy_state"]),
			MoonrakerVersion: asString(info["moonraker_version"]),
		}
		c.log.Info().Str("klippy_state", server.KlippyState).
			Str("moonraker", server.MoonrakerVersion).Msg("server.info")

		c.Send("printer.info", nil, func(result any) {
			pinfo := asMap(result)
			hostname := asString(pinfo["hostname"])
			software := asString(pinfo["software_version"])

			c.Send("printer.objects.list", nil, func(result any) {
				names := stringSlice(asMap(result)["objects"])
				inv := classifyObjects(names)
				inv.Hostname = hostname
				inv.Server = server
				inv.SoftwareVersion = software
				inv.KlippyReady = server.KlippyConnected && server.KlippyState == "ready"

				c.queryConfig(inv, limits, onComplete, fail)
			}, fail, TimeoutFast)
		}, fail, TimeoutFast)
	}, fail, TimeoutFast)
}

func (c *Client) queryConfig(inv *Inventory, limits *printer.Limits, onComplete func(*Inventory), fail ErrCallback) {
	params := map[string]any{
		"objects": map[string]any{
			"configfile":     []string{"settings"},
			"bed_mesh":       nil,
			"exclude_object": nil,
		},
	}
	c.Send("printer.objects.query", params, func(result any) {
		status := asMap(asMap(result)["status"])
		if cfg := asMap(status["configfile"]); cfg != nil {
			if settings := asMap(cfg["settings"]); settings != nil {
				if kin := asMap(settings["printer"]); kin != nil {
					inv.Kinematics = asString(kin["kinematics"])
				}
				if limits != nil {
					limits.ApplyConfig(settings)
				}
			}
		}
		c.subscribe(inv, onComplete, fail)
	}, fail, TimeoutState)
}

// subscribe asks for every object the panel tracks. The reply carries the
// full current status, which is replayed through the normal notification
// path so state consumers see one synthetic first frame.
func (c *Client) subscribe(inv *Inventory, onComplete func(*Inventory), fail ErrCallback) {
	union := mapset.NewSet[string](
		"print_stats", "display_status", "gcode_move", "motion_report",
		"virtual_sdcard", "toolhead", "bed_mesh", "exclude_object",
	)
	for _, names := range [][]string{inv.Heaters, inv.Sensors, inv.Fans} {
		for _, name := range names {
			union.Add(name)
		}
	}
	union = union.Union(inv.Leds)

	objects := make(map[string]any, union.Cardinality())
	for name := range union.Iter() {
		objects[name] = nil
	}

	c.Send("printer.objects.subscribe", map[string]any{"objects": objects}, func(result any) {
		c.mu.Lock()
		c.inventory = inv
		callbacks := c.statusCallbacks
		c.mu.Unlock()

		reply := asMap(result)
		if status := asMap(reply["status"]); status != nil {
			snapshot := []any{map[string]any(status), reply["eventtime"]}
			for _, fn := range callbacks {
				fn(snapshot)
			}
		}
		if onComplete != nil {
			onComplete(inv)
		}
	}, fail, TimeoutState)
}

// Snapshot for the detector.
func (inv *Inventory) DetectorSnapshot() (heaters, sensors, fans, leds []string, hostname string, objects []string) {
	return inv.Heaters, inv.Sensors, inv.Fans, inv.Leds.ToSlice(), inv.Hostname, inv.Objects
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func stringSlice(v any) []string {
	raw, _ := v.([]any)
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
