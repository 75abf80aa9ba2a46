package statement

import (
	"errors"
	"strings"
)

// ErrNoProfileMatched is returned when no registered profile recognizes the
// sheet's header region.
var ErrNoProfileMatched = errors.New("no bank profile matched the sheet")

var turkishFolder = strings.NewReplacer(
	"ç", "c", "Ç", "c",
	"ğ", "g", "Ğ", "g",
	"ı", "i", "I", "i",
	"İ", "i",
	"ö", "o", "Ö", "o",
	"ş", "s", "Ş", "s",
	"ü", "u", "Ü", "u",
)

// foldCell lowercases a cell and strips Turkish diacritics so header keyword
// matching is insensitive to the bank's capitalization and encoding quirks.
func foldCell(s string) string {
	return strings.ToLower(turkishFolder.Replace(strings.TrimSpace(s)))
}

// headerMatchRatio reports which fraction of the profile's roles have at
// least one keyword appearing somewhere in the row.
func headerMatchRatio(row []string, p *Profile) float64 {
	if len(p.Keywords) == 0 {
		return 0
	}

	joined := make([]string, 0, len(row))
	for _, cell := range row {
		joined = append(joined, foldCell(cell))
	}
	rowText := strings.Join(joined, " ")

	matched := 0
	for _, keywords := range p.Keywords {
		for _, kw := range keywords {
			if strings.Contains(rowText, kw) {
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(len(p.Keywords))
}

const headerMatchThreshold = 0.6

// LocateHeader finds the zero-based header row of the sheet. The first row
// within the profile's scan depth where at least 60% of the role keywords
// appear wins. When nothing qualifies the profile's fallback position is
// assumed; real statements from a given bank shift their preamble by a few
// rows between exports, so a miss here is a soft condition, not an error.
func LocateHeader(grid [][]string, p *Profile) int {
	limit := p.HeaderScanRows
	if limit > len(grid) {
		limit = len(grid)
	}
	for i := 0; i < limit; i++ {
		if headerMatchRatio(grid[i], p) >= headerMatchThreshold {
			return i
		}
	}
	return p.FallbackHeaderRow
}

// DetectProfile identifies which bank produced the sheet by probing each
// registered profile's header keywords against the top of the grid. Header
// rows of different banks share most keywords, so the profile with the
// highest match ratio wins rather than the first one over the threshold.
// Callers that know the bank should declare the profile instead.
func DetectProfile(grid [][]string) (*Profile, error) {
	var best *Profile
	bestRatio := 0.0

	for _, p := range registry {
		limit := p.HeaderScanRows
		if limit > len(grid) {
			limit = len(grid)
		}
		for i := 0; i < limit; i++ {
			ratio := headerMatchRatio(grid[i], p)
			if ratio >= headerMatchThreshold && ratio > bestRatio {
				best = p
				bestRatio = ratio
			}
		}
	}

	if best == nil {
		return nil, ErrNoProfileMatched
	}
	return best, nil
}
