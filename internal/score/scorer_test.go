package score

import (
	"testing"

	"github.com/ppiankov/casecite/internal/model"
	"github.com/stretchr/testify/assert"
)

func ptr(s string) *string { return &s }

func TestScorer_Calculate(t *testing.T) {
	tests := []struct {
		name       string
		record     model.CitationRecord
		wantScore  int
		wantBadge  string
		wantStatus model.Status
	}{
		{
			name: "full match",
			record: model.CitationRecord{
				Normalized:        true,
				ExtractedCaseName: ptr("Brown v. Board of Education"),
				CanonicalCaseName: ptr("Brown v. Board of Education"),
				CanonicalDate:     ptr("1954-05-17"),
				URL:               ptr("https://www.courtlistener.com/opinion/105221/"),
				Outcome:           model.OutcomeMatch,
			},
			wantScore:  5,
			wantBadge:  BadgeHigh,
			wantStatus: model.StatusVerified,
		},
		{
			name: "match with different name",
			record: model.CitationRecord{
				Normalized:        true,
				ExtractedCaseName: ptr("Smith v. Jones"),
				CanonicalCaseName: ptr("Brown v. Board of Education"),
				CanonicalDate:     ptr("1954-05-17"),
				URL:               ptr("https://www.courtlistener.com/opinion/105221/"),
				Outcome:           model.OutcomeMatch,
			},
			wantScore:  4,
			wantBadge:  BadgeHigh,
			wantStatus: model.StatusVerified,
		},
		{
			name: "match with name only",
			record: model.CitationRecord{
				Normalized:        true,
				CanonicalCaseName: ptr("Roe v. Wade"),
				Outcome:           model.OutcomeMatch,
			},
			wantScore:  2,
			wantBadge:  BadgeMedium,
			wantStatus: model.StatusVerified,
		},
		{
			name: "placeholder name",
			record: model.CitationRecord{
				Normalized:        true,
				ExtractedCaseName: ptr("N/A"),
				CanonicalCaseName: ptr("N/A"),
				URL:               ptr("https://example.com"),
				Outcome:           model.OutcomeMatch,
			},
			wantScore:  1,
			wantBadge:  BadgeLow,
			wantStatus: model.StatusVerified,
		},
		{
			name:       "not found",
			record:     model.CitationRecord{Normalized: true, Outcome: model.OutcomeNotFound},
			wantScore:  0,
			wantBadge:  BadgeLow,
			wantStatus: model.StatusHallucinated,
		},
		{
			name:       "not found but unnormalized",
			record:     model.CitationRecord{Outcome: model.OutcomeNotFound},
			wantBadge:  BadgeLow,
			wantStatus: model.StatusUnverified,
		},
		{
			name:       "unavailable",
			record:     model.CitationRecord{Normalized: true, Outcome: model.OutcomeUnavailable},
			wantBadge:  BadgeLow,
			wantStatus: model.StatusUnverified,
		},
		{
			name:       "skipped",
			record:     model.CitationRecord{Normalized: true, Outcome: model.OutcomeSkipped},
			wantBadge:  BadgeLow,
			wantStatus: model.StatusUnverified,
		},
	}

	s := NewScorer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Calculate(tt.record)
			assert.Equal(t, tt.wantScore, got.Score)
			assert.Equal(t, tt.wantBadge, got.Badge)
			assert.Equal(t, tt.wantStatus, got.Status)
		})
	}
}

// Adding any single canonical field never lowers the score, and the score stays in range
func TestScorer_MonotonicAndBounded(t *testing.T) {
	s := NewScorer()
	fields := []func(*model.CitationRecord){
		func(r *model.CitationRecord) { r.CanonicalCaseName = ptr("Roe v. Wade") },
		func(r *model.CitationRecord) { r.CanonicalDate = ptr("1973-01-22") },
		func(r *model.CitationRecord) { r.URL = ptr("https://www.courtlistener.com/opinion/108713/") },
		func(r *model.CitationRecord) { r.ExtractedCaseName = ptr("Roe v. Wade") },
	}

	for mask := 0; mask < 1<<len(fields); mask++ {
		base := model.CitationRecord{Normalized: true, Outcome: model.OutcomeMatch}
		for i, set := range fields {
			if mask&(1<<i) != 0 {
				set(&base)
			}
		}
		before := s.Calculate(base).Score
		assert.GreaterOrEqual(t, before, 0)
		assert.LessOrEqual(t, before, MaxScore)

		for i, set := range fields {
			if mask&(1<<i) != 0 {
				continue
			}
			more := base
			set(&more)
			assert.GreaterOrEqual(t, s.Calculate(more).Score, before, "mask %b + field %d", mask, i)
		}
	}
}

func TestScorer_Apply(t *testing.T) {
	s := NewScorer()
	r := model.CitationRecord{
		Normalized:        true,
		CanonicalCaseName: ptr("Roe v. Wade"),
		CanonicalDate:     ptr("1973-01-22"),
		Outcome:           model.OutcomeMatch,
	}

	s.Apply(&r, true)
	assert.Equal(t, 3, r.ConfidenceScore)
	assert.Equal(t, BadgeMedium, r.Badge)
	assert.Equal(t, model.StatusVerified, r.Status)
	assert.Equal(t, map[string]int{"canonical_name": 2, "canonical_date": 1}, r.Metadata["score_breakdown"])

	plain := model.CitationRecord{Normalized: true, Outcome: model.OutcomeNotFound}
	s.Apply(&plain, false)
	assert.Equal(t, 0, plain.ConfidenceScore)
	assert.Empty(t, plain.Badge)
	assert.Equal(t, model.StatusHallucinated, plain.Status)
}

func TestBadgeFor(t *testing.T) {
	assert.Equal(t, BadgeLow, BadgeFor(0))
	assert.Equal(t, BadgeLow, BadgeFor(1))
	assert.Equal(t, BadgeMedium, BadgeFor(2))
	assert.Equal(t, BadgeMedium, BadgeFor(3))
	assert.Equal(t, BadgeHigh, BadgeFor(4))
	assert.Equal(t, BadgeHigh, BadgeFor(5))
}
