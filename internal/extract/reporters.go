package extract

import (
	"strings"

	"github.com/ppiankov/casecite/internal/model"
)

// ReporterKind classifies a reporter series
type ReporterKind int

const (
	ReporterUnknown     ReporterKind = 0 // Not in the table
	ReporterPublished   ReporterKind = 1 // Official or regional reporter of published opinions
	ReporterUnpublished ReporterKind = 2 // Database or appendix reporter of unpublished opinions
	ReporterStatutory   ReporterKind = 3 // Code or statute compilation, not a case reporter
)

func (k ReporterKind) String() string {
	switch k {
	case ReporterPublished:
		return "published"
	case ReporterUnpublished:
		return "unpublished"
	case ReporterStatutory:
		return "statutory"
	default:
		return "unknown"
	}
}

// builtinReporters maps the compacted lowercase spelling of a reporter to its canonical form
var builtinReporters = map[string]string{
	"u.s.":        "U.S.",
	"us":          "U.S.",
	"s.ct.":       "S. Ct.",
	"l.ed.":       "L. Ed.",
	"l.ed.2d":     "L. Ed. 2d",
	"f.":          "F.",
	"f.2d":        "F.2d",
	"f.3d":        "F.3d",
	"f.4th":       "F.4th",
	"f.supp.":     "F. Supp.",
	"f.supp.2d":   "F. Supp. 2d",
	"f.supp.3d":   "F. Supp. 3d",
	"f.app'x":     "F. App'x",
	"f.appx.":     "F. App'x",
	"f.appx":      "F. App'x",
	"fed.appx.":   "F. App'x",
	"fed.app'x":   "F. App'x",
	"p.":          "P.",
	"p.2d":        "P.2d",
	"p.3d":        "P.3d",
	"wn.2d":       "Wn.2d",
	"wn.3d":       "Wn.3d",
	"wn.":         "Wn.",
	"wash.":       "Wn.",
	"wash.2d":     "Wn.2d",
	"wash.3d":     "Wn.3d",
	"wn.app.":     "Wn. App.",
	"wn.app.2d":   "Wn. App. 2d",
	"wash.app.":   "Wn. App.",
	"wash.app.2d": "Wn. App. 2d",
	"so.2d":       "So. 2d",
	"so.3d":       "So. 3d",
	"n.e.2d":      "N.E.2d",
	"n.e.3d":      "N.E.3d",
	"n.w.2d":      "N.W.2d",
	"s.e.2d":      "S.E.2d",
	"s.w.3d":      "S.W.3d",
	"a.2d":        "A.2d",
	"a.3d":        "A.3d",
	"cal.4th":     "Cal. 4th",
	"cal.5th":     "Cal. 5th",
	"cal.app.4th": "Cal. App. 4th",
	"cal.app.5th": "Cal. App. 5th",
	"cal.rptr.3d": "Cal. Rptr. 3d",
	"n.y.3d":      "N.Y.3d",
	"wl":          "WL",
}

// builtinUnpublished lists canonical reporters whose opinions are typically unpublished
var builtinUnpublished = []string{"WL", "LEXIS", "F. App'x"}

// builtinStatutory lists compacted tokens that identify statutory compilations
var builtinStatutory = []string{"u.s.c.", "u.s.c.a.", "c.f.r.", "stat.", "rcw", "wac", "fed.reg."}

// ReporterTable canonicalizes reporter abbreviations and classifies them
type ReporterTable struct {
	canonical   map[string]string
	unpublished map[string]bool
	statutory   map[string]bool
}

// NewReporterTable builds a table from the built-in entries plus configured aliases
func NewReporterTable(cfg *model.ReporterConfig) *ReporterTable {
	t := &ReporterTable{
		canonical:   make(map[string]string, len(builtinReporters)),
		unpublished: make(map[string]bool),
		statutory:   make(map[string]bool),
	}

	for k, v := range builtinReporters {
		t.canonical[k] = v
	}
	for _, r := range builtinUnpublished {
		t.unpublished[compactReporter(r)] = true
	}
	for _, r := range builtinStatutory {
		t.statutory[r] = true
	}

	if cfg != nil {
		for variant, canonical := range cfg.Aliases {
			t.canonical[compactReporter(variant)] = canonical
		}
		for _, r := range cfg.Unpublished {
			t.unpublished[compactReporter(r)] = true
		}
	}

	return t
}

// Canonical returns the canonical spelling of a reporter and whether it was known
func (t *ReporterTable) Canonical(reporter string) (string, bool) {
	key := compactReporter(reporter)
	if c, ok := t.canonical[key]; ok {
		return c, true
	}
	// Unknown reporters keep their spelling with whitespace collapsed
	return strings.Join(strings.Fields(reporter), " "), false
}

// Classify returns the kind of a reporter token sequence
func (t *ReporterTable) Classify(reporter string) ReporterKind {
	key := compactReporter(reporter)
	if key == "" {
		return ReporterUnknown
	}

	for s := range t.statutory {
		if key == s || strings.HasPrefix(key, s) {
			return ReporterStatutory
		}
	}

	if t.unpublished[key] || strings.Contains(key, "lexis") {
		return ReporterUnpublished
	}
	if c, ok := t.canonical[key]; ok && t.unpublished[compactReporter(c)] {
		return ReporterUnpublished
	}

	if _, ok := t.canonical[key]; ok {
		return ReporterPublished
	}
	return ReporterUnknown
}

// compactReporter lowercases a reporter and removes all whitespace
func compactReporter(reporter string) string {
	return strings.ToLower(strings.Join(strings.Fields(reporter), ""))
}
