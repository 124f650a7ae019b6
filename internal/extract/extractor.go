package extract

import (
	"github.com/ppiankov/casecite/internal/model"
)

// Extractor runs the pure, synchronous stages: matching, filtering, context
// resolution, name/year extraction and normalization
type Extractor struct {
	matcher    *Matcher
	filter     *Filter
	windows    *WindowResolver
	years      *YearExtractor
	normalizer *Normalizer
}

// NewExtractor wires the extraction stages around one reporter table
func NewExtractor(cfg model.ExtractionConfig, reporters *ReporterTable) *Extractor {
	if reporters == nil {
		reporters = NewReporterTable(nil)
	}
	return &Extractor{
		matcher:    NewMatcher(),
		filter:     NewFilter(reporters),
		windows:    NewWindowResolver(cfg, reporters),
		years:      NewYearExtractor(cfg.MinYear),
		normalizer: NewNormalizer(reporters),
	}
}

// Candidates finds citation candidates, optionally passing them through the
// false-positive filter
func (e *Extractor) Candidates(text string, filter bool) ([]model.CitationCandidate, []Rejection) {
	candidates := e.matcher.Find(text)
	if !filter {
		return candidates, nil
	}
	return e.filter.Apply(text, candidates)
}

// Records promotes candidates in document order. A citation that follows
// another one after only a comma (and maybe a pin cite) is a parallel citation
// of the same case; it inherits that case's name when it has none of its own.
func (e *Extractor) Records(text string, candidates []model.CitationCandidate, windowOverride int) []model.CitationRecord {
	records := make([]model.CitationRecord, 0, len(candidates))
	for i, c := range candidates {
		r := e.Record(text, c, windowOverride)
		if i > 0 && r.ExtractedCaseName == nil {
			prev := records[i-1]
			if prev.ExtractedCaseName != nil && prev.End <= c.Start && isParallelGap(text[prev.End:c.Start]) {
				r.ExtractedCaseName = model.StringPtr(*prev.ExtractedCaseName)
				r.ExtractionMethod = prev.ExtractionMethod
				r.SetMeta("extraction_confidence", prev.Metadata["extraction_confidence"])
				r.SetMeta("parallel_of", prev.Citation)
			}
		}
		records = append(records, r)
	}
	return records
}

// Record promotes a surviving candidate to a citation record
func (e *Extractor) Record(text string, c model.CitationCandidate, windowOverride int) model.CitationRecord {
	w := e.windows.Resolve(text, c, windowOverride)
	name := ExtractCaseName(w)
	year := e.years.Extract(w, c.Text)
	parts := e.normalizer.Normalize(c.Text)

	record := model.CitationRecord{
		Citation:           c.Text,
		NormalizedCitation: parts.Citation,
		Volume:             parts.Volume,
		Reporter:           parts.Reporter,
		Page:               parts.Page,
		Suffix:             parts.Suffix,
		Normalized:         parts.Normalized,
		Start:              c.Start,
		End:                c.End,
		ExtractedCaseName:  name.CaseName,
		ExtractedYear:      year.Year,
		ExtractionMethod:   name.Method,
		Status:             model.StatusUnverified,
		Suggestions:        []model.Suggestion{},
	}

	record.SetMeta("pattern_id", c.PatternID)
	record.SetMeta("reporter_kind", w.Kind.String())
	record.SetMeta("window_size", w.Size)
	record.SetMeta("extraction_confidence", name.Confidence)
	if w.Widened {
		record.SetMeta("window_widened", true)
	}
	if year.Source != "" {
		record.SetMeta("year_source", year.Source)
	}
	if !parts.Normalized {
		record.SetMeta("normalization_failure", true)
	}

	if parts.Normalized && parts.ReporterKnown && parts.Citation != c.Text {
		record.AddSuggestion(parts.Citation, "reporter abbreviation canonicalized from \""+parts.RawReporter+"\"")
	}

	return record
}
