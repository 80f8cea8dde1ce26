// Package escalation scans patient-authored text for emergency signals.
// Detection is a best-effort safety net based on case-insensitive substring
// matching; it is not exhaustive medical triage.
package escalation

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// DefaultPhrases is the built-in trigger set, used when no phrase file is
// configured.
var DefaultPhrases = []string{
	"chest pain",
	"shortness of breath",
	"can't breathe",
	"severe bleeding",
	"unconscious",
	"stroke",
	"heart attack",
}

// Detector matches patient text against a configured set of trigger phrases.
// The phrase set can be swapped at runtime; Detect never observes a partial
// update.
type Detector struct {
	mu      sync.RWMutex
	phrases []string
}

// NewDetector constructs a detector over the given phrases.  Phrases are
// normalised to lower case once at load time.
func NewDetector(phrases []string) *Detector {
	d := &Detector{}
	d.swap(phrases)
	return d
}

// phraseFile is the on-disk shape of the phrase configuration.
type phraseFile struct {
	Phrases []string `yaml:"phrases"`
}

// LoadFile reads a YAML phrase file and returns a detector over its
// contents.  An empty phrase list is rejected so a bad file cannot silently
// disable escalation.
func LoadFile(path string) (*Detector, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read phrase file: %w", err)
	}
	var f phraseFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse phrase file %s: %w", path, err)
	}
	if len(f.Phrases) == 0 {
		return nil, fmt.Errorf("phrase file %s contains no phrases", path)
	}
	return NewDetector(f.Phrases), nil
}

// Reload re-reads the phrase file and swaps the phrase set atomically.  On
// error the previous set stays in effect.
func (d *Detector) Reload(path string) error {
	fresh, err := LoadFile(path)
	if err != nil {
		return err
	}
	fresh.mu.RLock()
	phrases := fresh.phrases
	fresh.mu.RUnlock()

	d.mu.Lock()
	d.phrases = phrases
	d.mu.Unlock()
	return nil
}

func (d *Detector) swap(phrases []string) {
	normalized := make([]string, 0, len(phrases))
	for _, p := range phrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		normalized = append(normalized, p)
	}
	d.mu.Lock()
	d.phrases = normalized
	d.mu.Unlock()
}

// Detect reports whether the text contains any configured trigger phrase.
func (d *Detector) Detect(text string) bool {
	t := strings.ToLower(text)
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, p := range d.phrases {
		if strings.Contains(t, p) {
			return true
		}
	}
	return false
}

// Phrases returns a copy of the active phrase set, for diagnostics.
func (d *Detector) Phrases() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, len(d.phrases))
	copy(out, d.phrases)
	return out
}
