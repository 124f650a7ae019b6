package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Where a year was found
const (
	YearFromParenthetical = "parenthetical"
	YearFromCitation      = "citation"
	YearFromContext       = "context"
)

const (
	pinCitePattern      = `(?:at\s+)?\d+(?:\s*[-–]\s*\d+)?(?:\s*n\.\s*\d+)?`
	parallelCitePattern = `\d{1,4}\s+[A-Z][A-Za-z0-9.'’ ]{0,24}?\s+\d{1,5}`
)

var (
	yearTokenRe = regexp.MustCompile(`\b(1[7-9]\d{2}|20\d{2})\b`)

	// trailingParenRe matches the court/date parenthetical after any pin cites and
	// parallel citations, e.g. ", 93 S. Ct. 705, 710 (1973)"
	trailingParenRe = regexp.MustCompile(`^\s*(?:,\s*(?:` + pinCitePattern + `|` + parallelCitePattern + `)\s*)*\(([^()]{0,80})\)`)
)

// YearResult is the outcome of year extraction
type YearResult struct {
	Year   *string
	Source string
}

// YearExtractor finds the decision year of a citation
type YearExtractor struct {
	minYear int
	now     func() time.Time
}

// NewYearExtractor creates a year extractor accepting years from minYear to next year
func NewYearExtractor(minYear int) *YearExtractor {
	if minYear <= 0 {
		minYear = 1750
	}
	return &YearExtractor{minYear: minYear, now: time.Now}
}

// Extract looks for the year in the parenthetical right after the citation, then in
// the citation itself (database citations lead with the year), then in the preceding
// clause. When several plausible years appear, the most recent wins.
func (y *YearExtractor) Extract(w Window, citation string) YearResult {
	if m := trailingParenRe.FindStringSubmatch(w.Trailing); m != nil {
		if year, ok := y.latest(m[1]); ok {
			return YearResult{Year: &year, Source: YearFromParenthetical}
		}
	}

	if w.Kind == ReporterUnpublished {
		if fields := strings.Fields(citation); len(fields) > 0 {
			if year, ok := y.latest(fields[0]); ok {
				return YearResult{Year: &year, Source: YearFromCitation}
			}
		}
	}

	// Only the current clause; earlier clauses belong to other citations in a string cite
	clause := w.Preceding
	if i := strings.LastIndex(clause, ";"); i >= 0 {
		clause = clause[i+1:]
	}
	if year, ok := y.latest(clause); ok {
		return YearResult{Year: &year, Source: YearFromContext}
	}

	return YearResult{}
}

// latest returns the most recent plausible year token in s
func (y *YearExtractor) latest(s string) (string, bool) {
	maxYear := y.now().Year() + 1
	best := 0
	for _, tok := range yearTokenRe.FindAllString(s, -1) {
		n, err := strconv.Atoi(tok)
		if err != nil || n < y.minYear || n > maxYear {
			continue
		}
		if n > best {
			best = n
		}
	}
	if best == 0 {
		return "", false
	}
	return strconv.Itoa(best), true
}
