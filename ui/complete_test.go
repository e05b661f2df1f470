package ui

import (
	"slices"
	"testing"
)

func TestListCompleterPrefixMatch(t *testing.T) {
	complete := NewListCompleter("BED_MESH_CALIBRATE", "BED_MESH_CLEAR", "QUERY_PROBE")
	ok, matches := complete("bed_")
	if !ok {
		t.Fatal("no match for bed_")
	}
	if !slices.Equal(matches, []string{"BED_MESH_CALIBRATE", "BED_MESH_CLEAR"}) {
		t.Errorf("matches = %v", matches)
	}
	if ok, _ := complete("zzz"); ok {
		t.Error("matched nonsense prefix")
	}
}

func TestCompletionsDeduplicate(t *testing.T) {
	c := &Completions{}
	c.Register(NewListCompleter("G28", "G90"))
	c.Register(NewListCompleter("G28"))
	got := c.Complete("g2")
	if !slices.Equal(got, []string{"G28"}) {
		t.Errorf("got %v", got)
	}
}

func TestDefaultCompletionsCoverSlashCommands(t *testing.T) {
	all := DefaultCompletions().All()
	for _, want := range []string{"/home", "/estop", "G28"} {
		if !slices.Contains(all, want) {
			t.Errorf("missing %q in %v", want, all)
		}
	}
}

func TestWithInventory(t *testing.T) {
	c := DefaultCompletions().WithInventory("heater_bed", "fan_generic nevermore")
	got := c.Complete("heater")
	if !slices.Contains(got, "heater_bed") {
		t.Errorf("inventory name not completed: %v", got)
	}
}
