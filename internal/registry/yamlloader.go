package registry

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// SeedFile is the top-level structure of an exercise catalogue YAML file.
//
// Example:
//
//	exercises:
//	  - id: barbell-bench-press
//	    name: "Barbell Bench Press"
//	    synonyms: ["bench press", "bench", "flat bench"]
//	  - id: pull-up
//	    name: "Pull-Up"
//	    synonyms: ["pull ups", "pullups"]
//	    bodyweight: true
type SeedFile struct {
	Exercises []Exercise `yaml:"exercises"`
}

// LoadSeedFile reads and parses a catalogue seed file from disk.
// Returns a descriptive error if the file cannot be opened or parsed.
func LoadSeedFile(path string) (*SeedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("registry: open seed file %q: %w", path, err)
	}
	defer f.Close()

	sf, err := LoadSeedFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("registry: parse seed file %q: %w", path, err)
	}
	return sf, nil
}

// LoadSeedFromReader parses catalogue YAML from an [io.Reader].
// The reader is consumed entirely; the caller is responsible for closing it.
func LoadSeedFromReader(r io.Reader) (*SeedFile, error) {
	var sf SeedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true) // reject unknown keys to catch typos in seed files
	if err := dec.Decode(&sf); err != nil {
		return nil, fmt.Errorf("registry: decode seed yaml: %w", err)
	}
	if err := validateSeed(&sf); err != nil {
		return nil, err
	}
	return &sf, nil
}

// validateSeed rejects seed files with missing IDs or names and duplicate IDs.
func validateSeed(sf *SeedFile) error {
	seen := make(map[string]struct{}, len(sf.Exercises))
	for i, ex := range sf.Exercises {
		if strings.TrimSpace(ex.ID) == "" {
			return fmt.Errorf("registry: exercise at index %d has no id", i)
		}
		if strings.TrimSpace(ex.Name) == "" {
			return fmt.Errorf("registry: exercise %q has no name", ex.ID)
		}
		if _, dup := seen[ex.ID]; dup {
			return fmt.Errorf("registry: duplicate exercise id %q", ex.ID)
		}
		seen[ex.ID] = struct{}{}
	}
	return nil
}
