package commands

import (
	"strings"

	"helixscreen/moonraker"
)

// Heater and sensor guessing over the discovered inventory. Klipper names
// are free-form, so these walk a preference ladder: exact well-known names
// first, substring matches last. Empty string means no plausible candidate.

// GuessBedHeater picks the bed heater from the inventory.
func GuessBedHeater(inv *moonraker.Inventory) string {
	if inv == nil {
		return ""
	}
	return pick(inv.Heaters, []string{"heater_bed", "heated_bed"}, []string{"bed"})
}

// GuessHotendHeater picks the hotend heater from the inventory.
func GuessHotendHeater(inv *moonraker.Inventory) string {
	if inv == nil {
		return ""
	}
	return pick(inv.Heaters, []string{"extruder", "extruder0"}, []string{"extruder", "hotend", "e0"})
}

// GuessBedSensor picks the temperature source for the bed readout. Heaters
// embed their own sensor, so the matching heater wins; a standalone sensor
// is only used when no bed heater exists.
func GuessBedSensor(inv *moonraker.Inventory) string {
	if heater := GuessBedHeater(inv); heater != "" {
		return heater
	}
	if inv == nil {
		return ""
	}
	return pick(inv.Sensors, []string{"heater_bed", "heated_bed"}, []string{"bed"})
}

// GuessHotendSensor picks the temperature source for the hotend readout.
func GuessHotendSensor(inv *moonraker.Inventory) string {
	if heater := GuessHotendHeater(inv); heater != "" {
		return heater
	}
	if inv == nil {
		return ""
	}
	return pick(inv.Sensors, []string{"extruder", "extruder0"}, []string{"extruder", "hotend", "e0"})
}

// pick returns the first exact match, else the first name containing any of
// the substrings, else empty. Both ladders honor inventory order.
func pick(names []string, exact []string, substrings []string) string {
	for _, want := range exact {
		for _, name := range names {
			if name == want {
				return name
			}
		}
	}
	for _, name := range names {
		lower := strings.ToLower(name)
		for _, sub := range substrings {
			if strings.Contains(lower, sub) {
				return name
			}
		}
	}
	return ""
}
