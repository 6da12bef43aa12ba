package bias

import (
	"sort"
	"strconv"
	"strings"

	"github.com/ZanzyTHEbar/cultural-bias-shield/internal/types"
)

// maxDensityBonus caps how much repeated matches raise a pattern's severity
const maxDensityBonus = 3

// Detector scans campaign text against a pattern library. It holds no
// mutable state and may be shared between goroutines.
type Detector struct {
	library *Library
}

// NewDetector creates a detector over lib
func NewDetector(lib *Library) *Detector {
	return &Detector{library: lib}
}

// Library returns the catalogue backing the detector
func (d *Detector) Library() *Library {
	return d.library
}

// Detect returns one flag per matching pattern, ordered by descending
// severity. Ties keep library declaration order. Blank text yields an empty,
// non-nil slice.
func (d *Detector) Detect(text string) []types.BiasFlag {
	flags := []types.BiasFlag{}
	if strings.TrimSpace(text) == "" || d.library == nil {
		return flags
	}

	for _, p := range d.library.patterns {
		matches := p.Signature.FindAllString(text, -1)
		if len(matches) == 0 || len(matches) < p.MinMatches {
			continue
		}

		flags = append(flags, types.BiasFlag{
			Type:            p.Type,
			PatternID:       p.ID,
			Severity:        Severity(p.BaseSeverity, len(matches)),
			Description:     p.Description,
			Matches:         matches,
			CulturalContext: resolveContext(p, matches),
		})
	}

	sort.SliceStable(flags, func(i, j int) bool {
		return flags[i].Severity > flags[j].Severity
	})

	return flags
}

// Severity adjusts base by match density: each match after the first adds one
// point, up to maxDensityBonus, and the result is clamped to [1,10].
func Severity(base, matches int) int {
	bonus := matches - 1
	if bonus < 0 {
		bonus = 0
	}
	if bonus > maxDensityBonus {
		bonus = maxDensityBonus
	}

	s := base + bonus
	if s < minSeverity {
		return minSeverity
	}
	if s > maxSeverity {
		return maxSeverity
	}
	return s
}

func resolveContext(p Pattern, matches []string) string {
	if p.ContextTemplate == "" {
		return p.Description
	}

	quoted := make([]string, len(matches))
	for i, m := range matches {
		quoted[i] = strconv.Quote(m)
	}

	r := strings.NewReplacer(
		"{match}", strconv.Quote(matches[0]),
		"{matches}", strings.Join(quoted, ", "),
		"{count}", strconv.Itoa(len(matches)),
	)
	return r.Replace(p.ContextTemplate)
}
