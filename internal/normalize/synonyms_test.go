package normalize

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSynonymTableExtraOverridesBuiltins(t *testing.T) {
	table := NewSynonymTable(map[string]string{
		"hx":  "hexagonal",
		"cbl": "cable",
	})
	snap := table.Snapshot()
	if snap["hx"] != "hexagonal" {
		t.Errorf("extra should override built-in: got %q", snap["hx"])
	}
	if snap["cbl"] != "cable" {
		t.Errorf("extra entry missing: got %q", snap["cbl"])
	}
	if snap["scr"] != "screw" {
		t.Errorf("built-in should survive merge: got %q", snap["scr"])
	}
}

func TestSynonymTableLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "synonyms.yaml")
	if err := os.WriteFile(path, []byte("brkt: bracket\nhx: hexagon\n"), 0644); err != nil {
		t.Fatal(err)
	}

	table := NewSynonymTable(nil)
	if err := table.LoadFile(path); err != nil {
		t.Fatal(err)
	}
	snap := table.Snapshot()
	if snap["brkt"] != "bracket" {
		t.Errorf("loaded entry missing: got %q", snap["brkt"])
	}
	if snap["hx"] != "hexagon" {
		t.Errorf("loaded entry should override built-in: got %q", snap["hx"])
	}

	n := NewNormalizerWithSynonyms(table)
	if got := n.Normalize("BRKT w/ HX bolt"); got != "bracket with hexagon bolt" {
		t.Errorf("Normalize with loaded table = %q", got)
	}
}

func TestSynonymTableLoadFileErrors(t *testing.T) {
	table := NewSynonymTable(nil)
	if err := table.LoadFile("/nonexistent/synonyms.yaml"); err == nil {
		t.Error("expected error for missing file")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("[not a map"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := table.LoadFile(path); err == nil {
		t.Error("expected error for malformed yaml")
	}
	// A failed load must keep the previous table intact.
	if table.Snapshot()["scr"] != "screw" {
		t.Error("failed load should not clear the table")
	}
}
