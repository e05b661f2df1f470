package printer

import (
	"fmt"
	"math"
	"strings"
)

// Limits holds the numeric bounds every synthesized command is validated
// against. A Limits starts with conservative defaults; discovery widens it
// from configfile.settings unless it has been locked by explicit
// configuration.
type Limits struct {
	locked bool

	MinTemp float64 // °C
	MaxTemp float64 // °C

	MaxFanPercent float64

	MaxFeedrate float64 // mm/min

	MaxRelativeMove float64 // mm, single relative jog

	PosMin [3]float64 // absolute travel, X Y Z
	PosMax [3]float64
}

// NewLimits returns defaults that suit a typical desktop FDM printer.
func NewLimits() *Limits {
	return &Limits{
		MinTemp:         0,
		MaxTemp:         300,
		MaxFanPercent:   100,
		MaxFeedrate:     18000,
		MaxRelativeMove: 100,
		PosMin:          [3]float64{0, 0, 0},
		PosMax:          [3]float64{250, 250, 250},
	}
}

// Lock pins the current bounds; later ApplyConfig calls become no-ops.
// Used when the panel config specifies limits explicitly.
func (l *Limits) Lock() { l.locked = true }

// Locked reports whether the bounds are pinned.
func (l *Limits) Locked() bool { return l.locked }

// ApplyConfig derives bounds from a Klipper configfile.settings map:
// max_velocity feeds the feedrate ceiling, stepper position_min/max feed the
// absolute travel box, and heater min_temp/max_temp feed the temperature
// band. Unknown or malformed entries are skipped.
func (l *Limits) ApplyConfig(settings map[string]any) {
	if l.locked || settings == nil {
		return
	}
	axisIndex := map[string]int{"stepper_x": 0, "stepper_y": 1, "stepper_z": 2}

	for section, raw := range settings {
		values, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		switch {
		case section == "printer":
			if v, ok := floatField(values, "max_velocity"); ok && v > 0 {
				l.MaxFeedrate = v * 60
			}
		case strings.HasPrefix(section, "stepper_"):
			idx, ok := axisIndex[section]
			if !ok {
				continue
			}
			if v, ok := floatField(values, "position_min"); ok {
				l.PosMin[idx] = v
			}
			if v, ok := floatField(values, "position_max"); ok {
				l.PosMax[idx] = v
			}
		case isHeaterSection(section):
			if v, ok := floatField(values, "min_temp"); ok {
				l.MinTemp = math.Min(l.MinTemp, v)
			}
			if v, ok := floatField(values, "max_temp"); ok {
				l.MaxTemp = math.Max(l.MaxTemp, v)
			}
		}
	}
}

func isHeaterSection(section string) bool {
	return section == "extruder" || section == "heater_bed" ||
		strings.HasPrefix(section, "extruder") ||
		strings.HasPrefix(section, "heater_generic")
}

func floatField(m map[string]any, key string) (float64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

// CheckTemperature validates a heater target. Zero is always allowed (it
// turns the heater off).
func (l *Limits) CheckTemperature(target float64) error {
	if target == 0 {
		return nil
	}
	if target < l.MinTemp || target > l.MaxTemp {
		return fmt.Errorf("temperature %.1f outside [%.1f, %.1f]", target, l.MinTemp, l.MaxTemp)
	}
	return nil
}

// CheckFan validates a fan percentage.
func (l *Limits) CheckFan(percent float64) error {
	if percent < 0 || percent > l.MaxFanPercent {
		return fmt.Errorf("fan %.0f%% outside [0, %.0f]", percent, l.MaxFanPercent)
	}
	return nil
}

// CheckFeedrate validates a feedrate in mm/min.
func (l *Limits) CheckFeedrate(feedrate float64) error {
	if feedrate <= 0 || feedrate > l.MaxFeedrate {
		return fmt.Errorf("feedrate %.0f outside (0, %.0f]", feedrate, l.MaxFeedrate)
	}
	return nil
}

// CheckRelativeMove validates a single jog distance.
func (l *Limits) CheckRelativeMove(dist float64) error {
	if math.Abs(dist) > l.MaxRelativeMove {
		return fmt.Errorf("relative move %.1f exceeds %.1f", dist, l.MaxRelativeMove)
	}
	return nil
}

// CheckAbsoluteMove validates an absolute target on axis 0..2 (X, Y, Z).
func (l *Limits) CheckAbsoluteMove(axis int, pos float64) error {
	if axis < 0 || axis > 2 {
		return fmt.Errorf("bad axis %d", axis)
	}
	if pos < l.PosMin[axis] || pos > l.PosMax[axis] {
		return fmt.Errorf("%c=%.1f outside [%.1f, %.1f]",
			'X'+axis, pos, l.PosMin[axis], l.PosMax[axis])
	}
	return nil
}
