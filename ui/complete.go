package ui

import (
	"sort"
	"strings"
)

// Completer tests an input prefix and returns the matching candidates.
type Completer func(input string) (bool, []string)

// NewListCompleter matches case-insensitively against a fixed option list.
func NewListCompleter(options ...string) Completer {
	lower := make([]string, len(options))
	for i, o := range options {
		lower[i] = strings.ToLower(o)
	}
	return func(input string) (bool, []string) {
		var matches []string
		in := strings.ToLower(input)
		for i, lo := range lower {
			if strings.HasPrefix(lo, in) {
				matches = append(matches, options[i])
			}
		}
		return len(matches) > 0, matches
	}
}

// Completions aggregates completers for the console input.
type Completions struct {
	completers []Completer
}

func (c *Completions) Register(completer Completer) {
	c.completers = append(c.completers, completer)
}

// Complete returns every candidate matching the input, deduplicated and
// sorted.
func (c *Completions) Complete(input string) []string {
	seen := map[string]bool{}
	var out []string
	for _, completer := range c.completers {
		if ok, matches := completer(input); ok {
			for _, m := range matches {
				if !seen[m] {
					seen[m] = true
					out = append(out, m)
				}
			}
		}
	}
	sort.Strings(out)
	return out
}

// All returns every candidate, for seeding input suggestions.
func (c *Completions) All() []string {
	return c.Complete("")
}

// DefaultCompletions covers the slash commands and the common Klipper
// console vocabulary.
func DefaultCompletions() *Completions {
	c := &Completions{}
	c.Register(NewListCompleter(
		"/home", "/temp", "/fan", "/print", "/pause", "/resume",
		"/cancel", "/estop", "/restart",
	))
	c.Register(NewListCompleter(
		"BED_MESH_CALIBRATE", "BED_MESH_CLEAR", "QUERY_PROBE",
		"SET_KINEMATIC_POSITION", "FIRMWARE_RESTART", "STATUS",
		"QUERY_ENDSTOPS", "SET_HEATER_TEMPERATURE", "SET_FAN_SPEED",
		"SET_LED", "EXCLUDE_OBJECT", "G28", "M104", "M140", "M106",
	))
	return c
}

// WithInventory extends the defaults with discovered object names so heater
// and fan arguments complete too.
func (c *Completions) WithInventory(names ...string) *Completions {
	if len(names) > 0 {
		c.Register(NewListCompleter(names...))
	}
	return c
}
