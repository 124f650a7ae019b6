// Package dedup collapses repeated and parallel citations of the same case.
package dedup

import (
	"sort"
	"strings"

	"github.com/ppiankov/casecite/internal/model"
)

// Key returns the grouping key of a record: the canonical case name and date
// when the source supplied a name, otherwise the normalized citation, otherwise
// the citation as written
func Key(r model.CitationRecord) string {
	if r.CanonicalCaseName != nil && strings.TrimSpace(*r.CanonicalCaseName) != "" {
		return "case:" + fold(*r.CanonicalCaseName) + "|" + fold(model.Deref(r.CanonicalDate))
	}
	if r.Normalized && r.NormalizedCitation != "" {
		return "cite:" + fold(r.NormalizedCitation)
	}
	return "raw:" + fold(r.Citation)
}

// Group collapses records into one entry per case, ordered by first occurrence.
// Records are expected in text order; the display record is the earliest one.
func Group(records []model.CitationRecord) []model.CaseGroup {
	ordered := make([]model.CitationRecord, len(records))
	copy(ordered, records)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Start < ordered[j].Start
	})

	index := make(map[string]int)
	var groups []model.CaseGroup

	for _, r := range ordered {
		key := Key(r)
		occ := model.Occurrence{Citation: r.Citation, Start: r.Start, End: r.End}

		i, ok := index[key]
		if !ok {
			index[key] = len(groups)
			groups = append(groups, model.CaseGroup{
				Key:         key,
				Display:     r,
				Citations:   []string{displayCitation(r)},
				Occurrences: []model.Occurrence{occ},
			})
			continue
		}

		g := &groups[i]
		g.Occurrences = append(g.Occurrences, occ)
		if c := displayCitation(r); !contains(g.Citations, c) {
			g.Citations = append(g.Citations, c)
		}
	}

	if groups == nil {
		groups = []model.CaseGroup{}
	}
	return groups
}

func displayCitation(r model.CitationRecord) string {
	if r.Normalized && r.NormalizedCitation != "" {
		return r.NormalizedCitation
	}
	return r.Citation
}

func fold(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
