package escalation

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDetectMatchesCaseInsensitiveSubstring(t *testing.T) {
	d := NewDetector(DefaultPhrases)

	cases := []struct {
		text string
		want bool
	}{
		{"I have CHEST PAIN since this morning", true},
		{"mild chest pain when climbing stairs", true},
		{"I can't breathe properly", true},
		{"my knee hurts after running", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := d.Detect(tc.text); got != tc.want {
			t.Fatalf("Detect(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestDetectorNormalizesPhrases(t *testing.T) {
	d := NewDetector([]string{"  Seizure ", "", "FAINTED"})
	if !d.Detect("she fainted in the kitchen") {
		t.Fatal("expected match on normalized phrase")
	}
	if got := len(d.Phrases()); got != 2 {
		t.Fatalf("phrase count: got %d want 2", got)
	}
}

func TestLoadFileAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "phrases.yaml")
	if err := os.WriteFile(path, []byte("phrases:\n  - chest pain\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	d, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if d.Detect("numbness in my arm") {
		t.Fatal("unexpected match before reload")
	}

	if err := os.WriteFile(path, []byte("phrases:\n  - chest pain\n  - numbness\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := d.Reload(path); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if !d.Detect("numbness in my arm") {
		t.Fatal("expected match after reload")
	}
}

func TestLoadFileRejectsEmptySet(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "phrases.yaml")
	if err := os.WriteFile(path, []byte("phrases: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected error for empty phrase set")
	}
}

func TestReloadKeepsOldSetOnError(t *testing.T) {
	d := NewDetector([]string{"chest pain"})
	if err := d.Reload(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
	if !d.Detect("chest pain again") {
		t.Fatal("failed reload must keep previous phrases")
	}
}
