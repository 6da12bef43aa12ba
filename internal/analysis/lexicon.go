package analysis

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ZanzyTHEbar/cultural-bias-shield/internal/reference"
)

//go:embed data/lexicon.yaml
var defaultLexicon []byte

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}]+(?:['-][\p{L}\p{N}]+)*`)

// keyword is a single stem, exact word or multi-word phrase
type keyword struct {
	words  []string
	prefix bool // last word matches as a stem
}

type poles struct {
	high []keyword
	low  []keyword
}

// Lexicon maps keywords and campaign metadata to dimension poles
type Lexicon struct {
	priorWeight   float64
	dimensions    map[reference.Dimension]poles
	industries    map[string]priorSet
	campaignTypes map[string]priorSet
}

type priorSet struct {
	high []reference.Dimension
	low  []reference.Dimension
}

type rawPoles struct {
	High []string `yaml:"high"`
	Low  []string `yaml:"low"`
}

type rawLexicon struct {
	PriorWeight   float64             `yaml:"prior_weight"`
	Dimensions    map[string]rawPoles `yaml:"dimensions"`
	Industries    map[string]rawPoles `yaml:"industries"`
	CampaignTypes map[string]rawPoles `yaml:"campaign_types"`
}

// DefaultLexicon returns the embedded lexicon
func DefaultLexicon() (*Lexicon, error) {
	return LoadLexicon(defaultLexicon)
}

// LoadLexiconFile loads a lexicon from a YAML file
func LoadLexiconFile(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lexicon: %w", err)
	}
	return LoadLexicon(data)
}

// LoadLexicon parses a YAML lexicon. Every dimension must be present.
func LoadLexicon(data []byte) (*Lexicon, error) {
	var raw rawLexicon
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse lexicon: %w", err)
	}
	if raw.PriorWeight < 0 {
		return nil, fmt.Errorf("prior_weight must not be negative")
	}

	lex := &Lexicon{
		priorWeight:   raw.PriorWeight,
		dimensions:    make(map[reference.Dimension]poles, len(reference.Dimensions())),
		industries:    make(map[string]priorSet, len(raw.Industries)),
		campaignTypes: make(map[string]priorSet, len(raw.CampaignTypes)),
	}

	known := make(map[string]reference.Dimension)
	for _, d := range reference.Dimensions() {
		known[string(d)] = d
		rp, ok := raw.Dimensions[string(d)]
		if !ok {
			return nil, fmt.Errorf("lexicon missing dimension %s", d)
		}
		lex.dimensions[d] = poles{high: parseKeywords(rp.High), low: parseKeywords(rp.Low)}
	}
	for name := range raw.Dimensions {
		if _, ok := known[name]; !ok {
			return nil, fmt.Errorf("lexicon has unknown dimension %q", name)
		}
	}

	for name, rp := range raw.Industries {
		ps, err := parsePriors(rp, known)
		if err != nil {
			return nil, fmt.Errorf("industry %q: %w", name, err)
		}
		lex.industries[normalizeTag(name)] = ps
	}
	for name, rp := range raw.CampaignTypes {
		ps, err := parsePriors(rp, known)
		if err != nil {
			return nil, fmt.Errorf("campaign type %q: %w", name, err)
		}
		lex.campaignTypes[normalizeTag(name)] = ps
	}

	return lex, nil
}

func parseKeywords(entries []string) []keyword {
	out := make([]keyword, 0, len(entries))
	for _, e := range entries {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		kw := keyword{}
		if strings.HasSuffix(e, "*") {
			kw.prefix = true
			e = strings.TrimSuffix(e, "*")
		}
		kw.words = strings.Fields(e)
		out = append(out, kw)
	}
	return out
}

func parsePriors(rp rawPoles, known map[string]reference.Dimension) (priorSet, error) {
	var ps priorSet
	for _, name := range rp.High {
		d, ok := known[name]
		if !ok {
			return ps, fmt.Errorf("unknown dimension %q", name)
		}
		ps.high = append(ps.high, d)
	}
	for _, name := range rp.Low {
		d, ok := known[name]
		if !ok {
			return ps, fmt.Errorf("unknown dimension %q", name)
		}
		ps.low = append(ps.low, d)
	}
	return ps, nil
}

// normalizeTag folds "Social Media", "social-media" and "social_media" together
func normalizeTag(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}

// Tokenize lower-cases text and splits it into words
func Tokenize(text string) []string {
	text = strings.ReplaceAll(strings.ToLower(text), "’", "'")
	return wordPattern.FindAllString(text, -1)
}

// PoleHits counts the high and low pole evidence for one dimension
type PoleHits struct {
	High float64 `json:"high"`
	Low  float64 `json:"low"`
}

// Hits counts keyword and prior evidence per dimension. Each keyword counts
// at most once.
func (l *Lexicon) Hits(tokens []string, campaignType, industry string) map[reference.Dimension]PoleHits {
	out := make(map[reference.Dimension]PoleHits, len(l.dimensions))
	for _, d := range reference.Dimensions() {
		p := l.dimensions[d]
		out[d] = PoleHits{
			High: float64(countKeywords(tokens, p.high)),
			Low:  float64(countKeywords(tokens, p.low)),
		}
	}

	apply := func(ps priorSet) {
		for _, d := range ps.high {
			h := out[d]
			h.High += l.priorWeight
			out[d] = h
		}
		for _, d := range ps.low {
			h := out[d]
			h.Low += l.priorWeight
			out[d] = h
		}
	}
	if ps, ok := l.industries[normalizeTag(industry)]; ok {
		apply(ps)
	}
	if ps, ok := l.campaignTypes[normalizeTag(campaignType)]; ok {
		apply(ps)
	}

	return out
}

func countKeywords(tokens []string, kws []keyword) int {
	n := 0
	for _, kw := range kws {
		if containsKeyword(tokens, kw) {
			n++
		}
	}
	return n
}

func containsKeyword(tokens []string, kw keyword) bool {
	if len(kw.words) == 0 || len(tokens) < len(kw.words) {
		return false
	}
	last := len(kw.words) - 1
	for i := 0; i+last < len(tokens); i++ {
		matched := true
		for j, w := range kw.words {
			tok := tokens[i+j]
			if j == last && kw.prefix {
				if !strings.HasPrefix(tok, w) {
					matched = false
					break
				}
			} else if tok != w {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
	}
	return false
}
