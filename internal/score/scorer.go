package score

import (
	"strings"

	"github.com/ppiankov/casecite/internal/model"
	"github.com/ppiankov/casecite/internal/util"
)

// MaxScore is the highest confidence score a record can reach
const MaxScore = 5

// Badge thresholds
const (
	HighThreshold   = 4
	MediumThreshold = 2
)

// Badges
const (
	BadgeHigh   = "high"
	BadgeMedium = "medium"
	BadgeLow    = "low"
)

// Component is one contribution to a confidence score
type Component struct {
	Name   string `json:"name"`
	Points int    `json:"points"`
	Reason string `json:"reason"`
}

// Result is a scored record
type Result struct {
	Score      int
	Badge      string
	Status     model.Status
	Components []Component
}

// Scorer turns verification outcomes into confidence scores and statuses
type Scorer struct{}

// NewScorer creates a new scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// Calculate scores a record from its extracted and canonical fields
func (s *Scorer) Calculate(r model.CitationRecord) Result {
	var components []Component

	// 1. Canonical name present (2 points)
	hasName := r.CanonicalCaseName != nil && !isPlaceholder(*r.CanonicalCaseName)
	if hasName {
		components = append(components, Component{Name: "canonical_name", Points: 2, Reason: "source returned a case name"})
	}

	// 2. Extracted name agrees with the canonical one (1 point)
	if hasName && r.ExtractedCaseName != nil {
		overlap := util.TokenOverlap(*r.ExtractedCaseName, *r.CanonicalCaseName)
		if overlap >= 0.5 {
			components = append(components, Component{Name: "name_overlap", Points: 1, Reason: "extracted name matches canonical name"})
		}
	}

	// 3. Canonical date (1 point)
	if r.CanonicalDate != nil && *r.CanonicalDate != "" {
		components = append(components, Component{Name: "canonical_date", Points: 1, Reason: "source returned a decision date"})
	}

	// 4. Authoritative URL (1 point)
	if r.URL != nil && *r.URL != "" {
		components = append(components, Component{Name: "url", Points: 1, Reason: "source returned an opinion URL"})
	}

	total := 0
	for _, c := range components {
		total += c.Points
	}
	if total > MaxScore {
		total = MaxScore
	}

	return Result{
		Score:      total,
		Badge:      BadgeFor(total),
		Status:     StatusFor(r.Outcome, r.Normalized),
		Components: components,
	}
}

// Apply writes the score, badge and status onto r. With scoring disabled
// only the status is derived and the score stays zero.
func (s *Scorer) Apply(r *model.CitationRecord, scoring bool) {
	res := s.Calculate(*r)
	r.Status = res.Status

	if !scoring {
		r.ConfidenceScore = 0
		r.Badge = ""
		return
	}

	r.ConfidenceScore = res.Score
	r.Badge = res.Badge

	breakdown := make(map[string]int, len(res.Components))
	for _, c := range res.Components {
		breakdown[c.Name] = c.Points
	}
	r.SetMeta("score_breakdown", breakdown)
}

// BadgeFor maps a score to its badge
func BadgeFor(score int) string {
	switch {
	case score >= HighThreshold:
		return BadgeHigh
	case score >= MediumThreshold:
		return BadgeMedium
	default:
		return BadgeLow
	}
}

// StatusFor derives the verdict from a verification outcome. Only a definitive
// rejection of a well-formed citation counts as hallucinated.
func StatusFor(outcome model.Outcome, normalized bool) model.Status {
	switch outcome {
	case model.OutcomeMatch:
		return model.StatusVerified
	case model.OutcomeNotFound:
		if normalized {
			return model.StatusHallucinated
		}
	}
	return model.StatusUnverified
}

// isPlaceholder reports names that sources use for "no name on file"
func isPlaceholder(name string) bool {
	n := strings.TrimSpace(strings.ToUpper(name))
	return n == "" || n == "N/A" || n == "UNKNOWN"
}
