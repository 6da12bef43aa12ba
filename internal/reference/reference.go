package reference

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed data/countries.yaml
var defaultDataset []byte

// Dimension names one of the six Hofstede axes
type Dimension string

const (
	PowerDistance        Dimension = "power_distance"
	Individualism        Dimension = "individualism"
	Masculinity          Dimension = "masculinity"
	UncertaintyAvoidance Dimension = "uncertainty_avoidance"
	LongTermOrientation  Dimension = "long_term_orientation"
	Indulgence           Dimension = "indulgence"
)

// Dimensions returns the six axes in canonical order
func Dimensions() []Dimension {
	return []Dimension{
		PowerDistance,
		Individualism,
		Masculinity,
		UncertaintyAvoidance,
		LongTermOrientation,
		Indulgence,
	}
}

// Label returns a human readable name, e.g. "uncertainty avoidance"
func (d Dimension) Label() string {
	return strings.ReplaceAll(string(d), "_", " ")
}

// Vector holds one value per dimension on a 0-100 scale
type Vector struct {
	PowerDistance        float64 `json:"power_distance" yaml:"power_distance"`
	Individualism        float64 `json:"individualism" yaml:"individualism"`
	Masculinity          float64 `json:"masculinity" yaml:"masculinity"`
	UncertaintyAvoidance float64 `json:"uncertainty_avoidance" yaml:"uncertainty_avoidance"`
	LongTermOrientation  float64 `json:"long_term_orientation" yaml:"long_term_orientation"`
	Indulgence           float64 `json:"indulgence" yaml:"indulgence"`
}

// Get returns the value for d
func (v Vector) Get(d Dimension) float64 {
	switch d {
	case PowerDistance:
		return v.PowerDistance
	case Individualism:
		return v.Individualism
	case Masculinity:
		return v.Masculinity
	case UncertaintyAvoidance:
		return v.UncertaintyAvoidance
	case LongTermOrientation:
		return v.LongTermOrientation
	case Indulgence:
		return v.Indulgence
	}
	return 0
}

// With returns a copy of v with d set to value
func (v Vector) With(d Dimension, value float64) Vector {
	switch d {
	case PowerDistance:
		v.PowerDistance = value
	case Individualism:
		v.Individualism = value
	case Masculinity:
		v.Masculinity = value
	case UncertaintyAvoidance:
		v.UncertaintyAvoidance = value
	case LongTermOrientation:
		v.LongTermOrientation = value
	case Indulgence:
		v.Indulgence = value
	}
	return v
}

// Validate checks every value is within [0,100]
func (v Vector) Validate() error {
	for _, d := range Dimensions() {
		x := v.Get(d)
		if x < 0 || x > 100 || x != x {
			return fmt.Errorf("%s out of range: %v", d, x)
		}
	}
	return nil
}

// Country is the immutable reference record for one country code
type Country struct {
	Code       string      `json:"code"`
	Name       string      `json:"name"`
	Region     string      `json:"region"`
	Dimensions Vector      `json:"dimensions"`
	Estimated  []Dimension `json:"estimated,omitempty"`
	Context    string      `json:"context,omitempty"`
}

// Completeness is the share of dimensions backed by survey data rather than
// regional estimates
func (c Country) Completeness() float64 {
	return 1 - float64(len(c.Estimated))/float64(len(Dimensions()))
}

// Store is the read-only cultural reference dataset. It is safe for
// concurrent use because it is never mutated after Load.
type Store struct {
	countries map[string]Country
	aliases   map[string]string
	order     []string
}

type rawCountry struct {
	Code      string   `yaml:"code"`
	Name      string   `yaml:"name"`
	Region    string   `yaml:"region"`
	Context   string   `yaml:"context"`
	PDI       *float64 `yaml:"pdi"`
	IDV       *float64 `yaml:"idv"`
	MAS       *float64 `yaml:"mas"`
	UAI       *float64 `yaml:"uai"`
	LTO       *float64 `yaml:"lto"`
	IVR       *float64 `yaml:"ivr"`
	Estimated []string `yaml:"estimated"`
}

type rawDataset struct {
	Countries []rawCountry      `yaml:"countries"`
	Aliases   map[string]string `yaml:"aliases"`
}

var codeToDimension = map[string]Dimension{
	"pdi": PowerDistance,
	"idv": Individualism,
	"mas": Masculinity,
	"uai": UncertaintyAvoidance,
	"lto": LongTermOrientation,
	"ivr": Indulgence,
}

// Default loads the embedded dataset
func Default() (*Store, error) {
	return Load(defaultDataset)
}

// LoadFile loads a dataset from path, or the embedded dataset when path is empty
func LoadFile(path string) (*Store, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read reference dataset: %w", err)
	}
	return Load(data)
}

// Load parses a YAML dataset. Every country must carry all six dimensions.
func Load(data []byte) (*Store, error) {
	var raw rawDataset
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode reference dataset: %w", err)
	}
	if len(raw.Countries) == 0 {
		return nil, fmt.Errorf("reference dataset has no countries")
	}

	s := &Store{
		countries: make(map[string]Country, len(raw.Countries)),
		aliases:   make(map[string]string, len(raw.Aliases)),
	}

	for i, rc := range raw.Countries {
		c, err := rc.toCountry()
		if err != nil {
			return nil, fmt.Errorf("country #%d (%q): %w", i, rc.Code, err)
		}
		if _, dup := s.countries[c.Code]; dup {
			return nil, fmt.Errorf("duplicate country code %q", c.Code)
		}
		s.countries[c.Code] = c
		s.order = append(s.order, c.Code)
	}

	for alias, target := range raw.Aliases {
		alias, target = Normalize(alias), Normalize(target)
		if _, ok := s.countries[target]; !ok {
			return nil, fmt.Errorf("alias %q points at unknown country %q", alias, target)
		}
		s.aliases[alias] = target
	}

	sort.Strings(s.order)
	return s, nil
}

func (rc rawCountry) toCountry() (Country, error) {
	code := Normalize(rc.Code)
	if code == "" {
		return Country{}, fmt.Errorf("missing code")
	}

	values := map[string]*float64{
		"pdi": rc.PDI, "idv": rc.IDV, "mas": rc.MAS,
		"uai": rc.UAI, "lto": rc.LTO, "ivr": rc.IVR,
	}
	var v Vector
	for key, ptr := range values {
		if ptr == nil {
			return Country{}, fmt.Errorf("missing dimension %s", key)
		}
		v = v.With(codeToDimension[key], *ptr)
	}
	if err := v.Validate(); err != nil {
		return Country{}, err
	}

	var estimated []Dimension
	for _, key := range rc.Estimated {
		d, ok := codeToDimension[strings.ToLower(key)]
		if !ok {
			return Country{}, fmt.Errorf("unknown estimated dimension %q", key)
		}
		estimated = append(estimated, d)
	}

	name := rc.Name
	if name == "" {
		name = code
	}

	return Country{
		Code:       code,
		Name:       name,
		Region:     rc.Region,
		Dimensions: v,
		Estimated:  estimated,
		Context:    rc.Context,
	}, nil
}

// Normalize trims and upper-cases a country code
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Resolve maps a caller-supplied code to its canonical code
func (s *Store) Resolve(code string) (string, bool) {
	code = Normalize(code)
	if _, ok := s.countries[code]; ok {
		return code, true
	}
	if target, ok := s.aliases[code]; ok {
		return target, true
	}
	return "", false
}

// Lookup returns the reference record for code. An absent code is the
// "unknown country" state, never a zero vector.
func (s *Store) Lookup(code string) (Country, bool) {
	canonical, ok := s.Resolve(code)
	if !ok {
		return Country{}, false
	}
	return s.countries[canonical], true
}

// Countries returns all records sorted by code
func (s *Store) Countries() []Country {
	out := make([]Country, 0, len(s.order))
	for _, code := range s.order {
		out = append(out, s.countries[code])
	}
	return out
}

// Len returns the number of countries in the store
func (s *Store) Len() int {
	return len(s.countries)
}

// Interpret labels each dimension of c using a 60-point threshold
func Interpret(v Vector) map[Dimension]string {
	labels := map[Dimension][2]string{
		PowerDistance:        {"High hierarchy acceptance", "Low hierarchy acceptance"},
		Individualism:        {"Individualistic", "Collectivistic"},
		Masculinity:          {"Achievement-oriented", "Relationship-oriented"},
		UncertaintyAvoidance: {"High uncertainty avoidance", "Low uncertainty avoidance"},
		LongTermOrientation:  {"Long-term oriented", "Short-term oriented"},
		Indulgence:           {"Indulgent", "Restrained"},
	}

	out := make(map[Dimension]string, len(labels))
	for _, d := range Dimensions() {
		if v.Get(d) > 60 {
			out[d] = labels[d][0]
		} else {
			out[d] = labels[d][1]
		}
	}
	return out
}

// ContextFor returns the country's cultural context line, deriving one from
// the dimension labels when the dataset carries none.
func (s *Store) ContextFor(code string) string {
	c, ok := s.Lookup(code)
	if !ok {
		return ""
	}
	if c.Context != "" {
		return c.Context
	}

	labels := Interpret(c.Dimensions)
	parts := make([]string, 0, len(labels))
	for _, d := range Dimensions() {
		parts = append(parts, strings.ToLower(labels[d]))
	}
	return fmt.Sprintf("%s culture: %s", c.Name, strings.Join(parts, ", "))
}
