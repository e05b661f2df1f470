package detect

import (
	"testing"

	"github.com/rs/zerolog"
)

func voronSnapshot() Snapshot {
	return Snapshot{
		Sensors:  []string{"temperature_sensor chamber"},
		Fans:     []string{"fan", "chamber_fan"},
		Hostname: "voron",
	}
}

func TestDetectHostnameOnly(t *testing.T) {
	db := DefaultDatabase()
	// "chamber" matches chamber_fan but "filter" matches no fan, so the
	// fan_combo rule stays unsatisfied and only the hostname rule scores.
	result := db.Detect(voronSnapshot(), zerolog.Nop())
	if result.Name != "Voron 2.4" {
		t.Errorf("name = %q, want Voron 2.4", result.Name)
	}
	if result.Confidence != 50 {
		t.Errorf("confidence = %d, want 50", result.Confidence)
	}
	if !result.Detected() {
		t.Error("Detected() = false")
	}
	if result.HighConfidence() {
		t.Error("50 reported as high confidence")
	}
}

func TestDetectDeterministic(t *testing.T) {
	db := DefaultDatabase()
	a := db.Detect(voronSnapshot(), zerolog.Nop())
	b := db.Detect(voronSnapshot(), zerolog.Nop())
	if a != b {
		t.Errorf("equal inputs gave %+v and %+v", a, b)
	}
}

func TestDetectScoreMonotonic(t *testing.T) {
	db := DefaultDatabase()
	base := db.Detect(voronSnapshot(), zerolog.Nop())

	withFilter := voronSnapshot()
	withFilter.Fans = append(withFilter.Fans, "filter_fan")
	more := db.Detect(withFilter, zerolog.Nop())

	if more.Confidence <= base.Confidence {
		t.Errorf("extra matching rule did not raise score: %d -> %d",
			base.Confidence, more.Confidence)
	}
	if more.Confidence != 90 {
		t.Errorf("confidence = %d, want 90", more.Confidence)
	}
	if !more.HighConfidence() {
		t.Error("90 not high confidence")
	}
}

func TestDetectNoMatch(t *testing.T) {
	db := DefaultDatabase()
	result := db.Detect(Snapshot{Hostname: "mainsailos"}, zerolog.Nop())
	if result.Detected() {
		t.Errorf("detected %q from nothing", result.Name)
	}
	if result.Name != "" || result.Confidence != 0 {
		t.Errorf("empty result expected, got %+v", result)
	}
}

func TestDetectClampsTo100(t *testing.T) {
	db := &Database{Printers: []Printer{{
		ID: "x", Name: "X",
		Rules: []Rule{
			{Type: RuleHostnameMatch, Pattern: "x", Score: 80},
			{Type: RuleHostnameMatch, Pattern: "box", Score: 80},
		},
	}}}
	result := db.Detect(Snapshot{Hostname: "xbox"}, zerolog.Nop())
	if result.Confidence != 100 {
		t.Errorf("confidence = %d, want clamp to 100", result.Confidence)
	}
}

func TestDetectTieBreaksByOrder(t *testing.T) {
	db := &Database{Printers: []Printer{
		{ID: "first", Name: "First", Rules: []Rule{{Type: RuleHostnameMatch, Pattern: "twin", Score: 50}}},
		{ID: "second", Name: "Second", Rules: []Rule{{Type: RuleHostnameMatch, Pattern: "twin", Score: 50}}},
	}}
	result := db.Detect(Snapshot{Hostname: "twin"}, zerolog.Nop())
	if result.ID != "first" {
		t.Errorf("tie went to %q, want first", result.ID)
	}
}

func TestImageLookup(t *testing.T) {
	db := DefaultDatabase()
	if got := db.ImageForPrinter("Voron 2.4"); got != "voron_24.png" {
		t.Errorf("by name = %q", got)
	}
	if got := db.ImageForPrinterID("voron_24"); got != "voron_24.png" {
		t.Errorf("by id = %q", got)
	}
	if got := db.ImageForPrinter("nope"); got != "" {
		t.Errorf("unknown name = %q", got)
	}
}

func TestLoadDatabaseRejectsGarbage(t *testing.T) {
	if _, err := LoadDatabase([]byte("{not json")); err == nil {
		t.Error("garbage accepted")
	}
}
