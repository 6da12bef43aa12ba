package bias

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/ZanzyTHEbar/cultural-bias-shield/internal/types"
)

//go:embed data/patterns.yaml
var defaultPatterns []byte

const (
	minSeverity = 1
	maxSeverity = 10
)

// Pattern is one library rule mapping a text signature to a bias type
type Pattern struct {
	ID              string
	Type            types.BiasType
	Signature       *regexp.Regexp
	BaseSeverity    int
	Description     string
	ContextTemplate string
	MinMatches      int
}

// Library is the immutable, ordered pattern catalogue
type Library struct {
	patterns []Pattern
}

type rawPattern struct {
	ID           string `yaml:"id"`
	Type         string `yaml:"type"`
	Signature    string `yaml:"signature"`
	BaseSeverity int    `yaml:"base_severity"`
	Description  string `yaml:"description"`
	Context      string `yaml:"context"`
	MinMatches   int    `yaml:"min_matches"`
}

type rawLibrary struct {
	Patterns []rawPattern `yaml:"patterns"`
}

// DefaultLibrary loads the embedded pattern catalogue
func DefaultLibrary() (*Library, error) {
	return LoadLibrary(defaultPatterns)
}

// LoadLibraryFile loads patterns from path, or the embedded catalogue when
// path is empty
func LoadLibraryFile(path string) (*Library, error) {
	if path == "" {
		return DefaultLibrary()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pattern library: %w", err)
	}
	return LoadLibrary(data)
}

// LoadLibrary parses and compiles a YAML pattern catalogue. Declaration order
// is preserved.
func LoadLibrary(data []byte) (*Library, error) {
	var raw rawLibrary
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode pattern library: %w", err)
	}

	seen := make(map[string]struct{}, len(raw.Patterns))
	lib := &Library{patterns: make([]Pattern, 0, len(raw.Patterns))}

	for i, rp := range raw.Patterns {
		p, err := rp.compile()
		if err != nil {
			return nil, fmt.Errorf("pattern #%d (%q): %w", i, rp.ID, err)
		}
		if _, dup := seen[p.ID]; dup {
			return nil, fmt.Errorf("duplicate pattern id %q", p.ID)
		}
		seen[p.ID] = struct{}{}
		lib.patterns = append(lib.patterns, p)
	}

	return lib, nil
}

func (rp rawPattern) compile() (Pattern, error) {
	if rp.ID == "" {
		return Pattern{}, fmt.Errorf("missing id")
	}

	bt := types.BiasType(rp.Type)
	if !bt.Valid() {
		return Pattern{}, fmt.Errorf("unknown bias type %q", rp.Type)
	}

	if rp.BaseSeverity < minSeverity || rp.BaseSeverity > maxSeverity {
		return Pattern{}, fmt.Errorf("base_severity %d outside [%d,%d]", rp.BaseSeverity, minSeverity, maxSeverity)
	}

	if rp.Signature == "" {
		return Pattern{}, fmt.Errorf("missing signature")
	}
	re, err := regexp.Compile("(?i)" + rp.Signature)
	if err != nil {
		return Pattern{}, fmt.Errorf("invalid signature: %w", err)
	}

	minMatches := rp.MinMatches
	if minMatches < 1 {
		minMatches = 1
	}

	return Pattern{
		ID:              rp.ID,
		Type:            bt,
		Signature:       re,
		BaseSeverity:    rp.BaseSeverity,
		Description:     rp.Description,
		ContextTemplate: rp.Context,
		MinMatches:      minMatches,
	}, nil
}

// Patterns returns the catalogue in declaration order
func (l *Library) Patterns() []Pattern {
	out := make([]Pattern, len(l.patterns))
	copy(out, l.patterns)
	return out
}

// Len returns the number of patterns
func (l *Library) Len() int {
	return len(l.patterns)
}
