package commands

import (
	"testing"

	mapset "github.com/deckarep/golang-set/v2"

	"helixscreen/moonraker"
)

func inventoryWith(heaters, sensors []string) *moonraker.Inventory {
	return &moonraker.Inventory{
		Heaters: heaters,
		Sensors: sensors,
		Leds:    mapset.NewSet[string](),
	}
}

func TestGuessStandardNames(t *testing.T) {
	inv := inventoryWith(
		[]string{"extruder", "heater_bed"},
		[]string{"temperature_sensor chamber"},
	)
	if got := GuessBedHeater(inv); got != "heater_bed" {
		t.Errorf("bed heater = %q", got)
	}
	if got := GuessHotendHeater(inv); got != "extruder" {
		t.Errorf("hotend heater = %q", got)
	}
	if got := GuessBedSensor(inv); got != "heater_bed" {
		t.Errorf("bed sensor = %q", got)
	}
	if got := GuessHotendSensor(inv); got != "extruder" {
		t.Errorf("hotend sensor = %q", got)
	}
}

func TestGuessSubstringFallback(t *testing.T) {
	inv := inventoryWith(
		[]string{"heater_generic bed_outer", "extruder1"},
		nil,
	)
	if got := GuessBedHeater(inv); got != "heater_generic bed_outer" {
		t.Errorf("bed heater = %q", got)
	}
	if got := GuessHotendHeater(inv); got != "extruder1" {
		t.Errorf("hotend heater = %q", got)
	}
}

func TestGuessSensorWhenNoHeater(t *testing.T) {
	inv := inventoryWith(
		nil,
		[]string{"temperature_sensor bed_edge", "temperature_sensor hotend_shroud"},
	)
	if got := GuessBedSensor(inv); got != "temperature_sensor bed_edge" {
		t.Errorf("bed sensor = %q", got)
	}
	if got := GuessHotendSensor(inv); got != "temperature_sensor hotend_shroud" {
		t.Errorf("hotend sensor = %q", got)
	}
}

func TestGuessEmptyInventory(t *testing.T) {
	if got := GuessBedHeater(nil); got != "" {
		t.Errorf("nil inventory guessed %q", got)
	}
	inv := inventoryWith(nil, nil)
	if got := GuessHotendHeater(inv); got != "" {
		t.Errorf("empty inventory guessed %q", got)
	}
}
