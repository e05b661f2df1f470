// Package detect classifies the connected machine from the discovered
// hardware. A JSON rule database lists candidate printers with scored
// heuristics; the candidate with the highest total wins.
package detect

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Rule kinds understood by the engine.
const (
	RuleSensorMatch   = "sensor_match"
	RuleFanMatch      = "fan_match"
	RuleHostnameMatch = "hostname_match"
	RuleFanCombo      = "fan_combo"
)

// HighConfidence is the score at which a match is trusted enough to seed
// UI defaults without asking.
const HighConfidence = 70

// Rule is one scored heuristic. Pattern is used by the single-pattern
// kinds, Patterns by fan_combo.
type Rule struct {
	Type     string   `json:"type"`
	Pattern  string   `json:"pattern,omitempty"`
	Patterns []string `json:"patterns,omitempty"`
	Score    int      `json:"score"`
}

// Printer is one candidate machine in the database.
type Printer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image"`
	Rules []Rule `json:"rules"`
}

// Database is an ordered list of candidates. Order breaks score ties.
type Database struct {
	Printers []Printer `json:"printers"`
}

// Snapshot is the hardware view the detector scores against.
type Snapshot struct {
	Heaters    []string
	Sensors    []string
	Fans       []string
	Leds       []string
	Hostname   string
	Objects    []string
	Kinematics string
}

// Result is the best match. Confidence 0 means nothing matched.
type Result struct {
	ID         string
	Name       string
	Image      string
	Confidence int
	Reason     string
}

// Detected reports whether any rule matched at all.
func (r Result) Detected() bool { return r.Confidence > 0 }

// HighConfidence reports whether the match is trustworthy on its own.
func (r Result) HighConfidence() bool { return r.Confidence >= HighConfidence }

//go:embed printers.json
var defaultDatabase []byte

// LoadDatabase parses a rule database document.
func LoadDatabase(data []byte) (*Database, error) {
	var db Database
	if err := json.Unmarshal(data, &db); err != nil {
		return nil, fmt.Errorf("detect: bad rule database: %w", err)
	}
	return &db, nil
}

// DefaultDatabase returns the compiled-in rule set.
func DefaultDatabase() *Database {
	db, err := LoadDatabase(defaultDatabase)
	if err != nil {
		// The embedded file is validated by tests; this cannot happen at
		// runtime without a broken build.
		panic(err)
	}
	return db
}

// Detect scores every candidate and returns the best. Candidates tie-break
// by database order, and the raw sum is clamped to 100.
func (db *Database) Detect(snap Snapshot, log zerolog.Logger) Result {
	best := Result{}
	bestScore := 0
	for _, p := range db.Printers {
		score, reasons := scorePrinter(p, snap)
		if score > bestScore {
			bestScore = score
			best = Result{
				ID:         p.ID,
				Name:       p.Name,
				Image:      p.Image,
				Confidence: score,
				Reason:     strings.Join(reasons, ", "),
			}
		}
	}
	if best.Confidence > 100 {
		best.Confidence = 100
	}
	if best.Detected() {
		log.Info().Str("printer", best.Name).Int("confidence", best.Confidence).
			Str("reason", best.Reason).Msg("printer detected")
	} else {
		log.Debug().Msg("no printer rule matched")
	}
	return best
}

func scorePrinter(p Printer, snap Snapshot) (int, []string) {
	total := 0
	var reasons []string
	for _, rule := range p.Rules {
		ok, reason := evalRule(rule, snap)
		if ok {
			total += rule.Score
			reasons = append(reasons, reason)
		}
	}
	return total, reasons
}

func evalRule(rule Rule, snap Snapshot) (bool, string) {
	switch rule.Type {
	case RuleSensorMatch:
		if anyContains(snap.Sensors, rule.Pattern) {
			return true, "sensor " + rule.Pattern
		}
	case RuleFanMatch:
		if anyContains(snap.Fans, rule.Pattern) {
			return true, "fan " + rule.Pattern
		}
	case RuleHostnameMatch:
		if contains(snap.Hostname, rule.Pattern) {
			return true, "hostname " + rule.Pattern
		}
	case RuleFanCombo:
		if len(rule.Patterns) == 0 {
			return false, ""
		}
		for _, pattern := range rule.Patterns {
			if !anyContains(snap.Fans, pattern) {
				return false, ""
			}
		}
		return true, "fans " + strings.Join(rule.Patterns, "+")
	}
	return false, ""
}

// Patterns are case-insensitive substrings.
func contains(name, pattern string) bool {
	return pattern != "" && strings.Contains(strings.ToLower(name), strings.ToLower(pattern))
}

func anyContains(names []string, pattern string) bool {
	for _, name := range names {
		if contains(name, pattern) {
			return true
		}
	}
	return false
}

// ImageForPrinter looks up the image filename by display name.
func (db *Database) ImageForPrinter(name string) string {
	for _, p := range db.Printers {
		if p.Name == name {
			return p.Image
		}
	}
	return ""
}

// ImageForPrinterID looks up the image filename by id.
func (db *Database) ImageForPrinterID(id string) string {
	for _, p := range db.Printers {
		if p.ID == id {
			return p.Image
		}
	}
	return ""
}
