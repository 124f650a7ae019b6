package extract

import (
	"regexp"
	"strings"

	"github.com/ppiankov/casecite/internal/model"
)

// Building blocks for party names. A party starts with a capitalized word and may
// continue with capitalized words or a small set of lowercase connectors.
const (
	partyWordPattern  = `[A-Z][A-Za-z0-9.'&\-]*`
	connectorPattern  = `(?:of|the|and|for|in|on|ex|rel\.|de|del|la|du|von|van|der|&|et\s+al\.)`
	corpSuffixPattern = `(?:,\s+(?:Inc|Co|Corp|Ltd|LLC|L\.L\.C|N\.A|P\.C|P\.S|LLP)\.?)?`
)

func partyPattern(sep string) string {
	return partyWordPattern + `(?:` + sep + `(?:` + partyWordPattern + `|` + connectorPattern + `))` + `{0,9}` + corpSuffixPattern
}

// caseNamePattern requires the literal "v." between two parties
func caseNamePattern(sep string) string {
	return partyPattern(sep) + sep + `v\.` + sep + partyPattern(sep)
}

var (
	signalNameRe = regexp.MustCompile(
		`(?:^|[\s(])(?:[Ss]ee(?:,?\s+also)?|[Cc]iting|[Aa]ccord|[Cc]f\.|[Ee]\.\s?g\.|[Cc]ompare)(?:,)?\s+(` +
			caseNamePattern(`\s+`) + `),\s*$`)

	parentheticalNameRe = regexp.MustCompile(`\(\s*(` + caseNamePattern(`\s+`) + `),\s*$`)

	docketFirstNameRe = regexp.MustCompile(
		`(?:\bNo\.|\bDocket(?:\s+No\.)?|\bDkt\.(?:\s+No\.)?)\s*[A-Za-z0-9][\w\-:./]*,\s*(` +
			caseNamePattern(`\s+`) + `),\s*$`)

	tableOfAuthoritiesNameRe = regexp.MustCompile(
		`(?:^|\n)[ \t]*(` + caseNamePattern(`[ \t]+`) + `)[ \t]*,?[ \t]*\r?\n[ \t]*(?:Docket[ \t]+)?No\.[^\n]*$`)

	genericNameRe = regexp.MustCompile(`(` + caseNamePattern(`\s+`) + `),\s*$`)

	// parallelGapRe matches the text between two parallel citations of one
	// case: a comma, optionally after a pin cite
	parallelGapRe = regexp.MustCompile(`^\s*(?:,\s*` + pinCitePattern + `\s*)?,\s*$`)
)

// nameMatcher is one heuristic; it reports whether it found a name in the preceding window
type nameMatcher struct {
	method     model.ExtractionMethod
	confidence float64
	match      func(preceding string) (string, bool)
}

func regexMatcher(re *regexp.Regexp) func(string) (string, bool) {
	return func(preceding string) (string, bool) {
		m := re.FindStringSubmatch(preceding)
		if m == nil {
			return "", false
		}
		return m[1], true
	}
}

// nameMatchers are ordered by specificity, most specific first
var nameMatchers = []nameMatcher{
	{method: model.MethodSignalPhrase, confidence: 0.9, match: regexMatcher(signalNameRe)},
	{method: model.MethodParenthetical, confidence: 0.85, match: regexMatcher(parentheticalNameRe)},
	{method: model.MethodDocketFirst, confidence: 0.8, match: regexMatcher(docketFirstNameRe)},
	{method: model.MethodTableOfAuthorities, confidence: 0.75, match: regexMatcher(tableOfAuthoritiesNameRe)},
	{method: model.MethodGeneric, confidence: 0.7, match: regexMatcher(genericNameRe)},
}

// leadingNoise are capitalized prose words that the generic pattern can absorb
// in front of the first party
var leadingNoise = map[string]bool{
	"In": true, "See": true, "Also": true, "Accord": true, "Citing": true, "Cf.": true,
	"Compare": true, "E.g.": true, "E.g.,": true, "But": true, "The": true, "As": true,
	"Under": true, "Per": true, "Following": true, "Quoting": true, "Contra": true,
	"Court": true, "Here": true, "Similarly": true, "Likewise": true, "Thus": true,
	"Moreover": true, "However": true, "Further": true, "Furthermore": true,
	"Because": true, "Since": true, "When": true, "While": true, "Although": true,
	"Unlike": true, "Like": true, "Applying": true, "Relying": true, "Our": true,
	"This": true, "That": true, "These": true, "Then": true, "Finally": true,
	"Supreme": true, "Appeals": true, "Division": true, "And": true, "Plaintiff": true,
	"Defendant": true, "Appellant": true, "Respondent": true, "Petitioner": true,
}

// nameAbbreviations end with a period but do not end a sentence
var nameAbbreviations = map[string]bool{
	"Inc.": true, "Co.": true, "Corp.": true, "Ltd.": true, "Bros.": true, "Dep't.": true,
	"Dept.": true, "Ass'n.": true, "Nat'l.": true, "Int'l.": true, "Univ.": true, "Bd.": true,
	"Comm'n.": true, "Sch.": true, "Dist.": true, "Cnty.": true, "Cty.": true, "Hosp.": true,
	"Mfg.": true, "Ins.": true, "Mut.": true, "Sav.": true, "Fed.": true, "Am.": true,
	"Gov't.": true, "Sec.": true, "Elec.": true, "Transp.": true, "Ry.": true, "Tel.": true,
	"Serv.": true, "Servs.": true, "Ctr.": true, "St.": true, "Mt.": true, "Ft.": true,
	"Jr.": true, "Sr.": true, "Dr.": true, "Mr.": true, "Mrs.": true, "Ms.": true,
	"Wash.": true, "Cal.": true, "Tex.": true, "Fla.": true, "Pa.": true, "Mass.": true,
	"Ill.": true, "Mich.": true, "Ariz.": true, "Or.": true, "Ore.": true, "Colo.": true,
	"Minn.": true, "Wis.": true, "Conn.": true, "Okla.": true, "Ala.": true, "Ga.": true,
}

// NameResult is the outcome of case name extraction
type NameResult struct {
	CaseName   *string
	Method     model.ExtractionMethod
	Confidence float64
}

// ExtractCaseName tries each heuristic against the preceding window and returns
// the first name found. A nil name with MethodNone is a normal outcome.
func ExtractCaseName(w Window) NameResult {
	for _, m := range nameMatchers {
		raw, ok := m.match(w.Preceding)
		if !ok {
			continue
		}
		name, ok := cleanCaseName(raw)
		if !ok {
			continue
		}
		return NameResult{CaseName: &name, Method: m.method, Confidence: m.confidence}
	}
	return NameResult{Method: model.MethodNone}
}

// cleanCaseName collapses whitespace, cuts any preceding sentence and strips
// leading prose words. It fails when no " v. " survives.
func cleanCaseName(raw string) (string, bool) {
	tokens := strings.Fields(raw)

	vIdx := -1
	for i, t := range tokens {
		if t == "v." {
			vIdx = i
			break
		}
	}
	if vIdx < 1 || vIdx == len(tokens)-1 {
		return "", false
	}

	// A long capitalized word ending in a period marks the end of an earlier sentence
	for i := vIdx - 2; i >= 0; i-- {
		if endsSentence(tokens[i]) {
			tokens = tokens[i+1:]
			vIdx -= i + 1
			break
		}
	}

	for vIdx > 1 && (leadingNoise[tokens[0]] || isLowerWord(tokens[0])) {
		tokens = tokens[1:]
		vIdx--
	}

	name := strings.Join(tokens, " ")
	if !strings.Contains(name, " v. ") {
		return "", false
	}
	return name, true
}

func endsSentence(token string) bool {
	if !strings.HasSuffix(token, ".") || nameAbbreviations[token] {
		return false
	}
	body := strings.TrimSuffix(token, ".")
	// Initials and dotted abbreviations such as "J." or "U.S."
	if len(body) <= 3 || strings.Contains(body, ".") || strings.Contains(body, "'") {
		return false
	}
	return true
}

func isLowerWord(token string) bool {
	return token != "" && token[0] >= 'a' && token[0] <= 'z'
}

// isParallelGap reports whether gap, the text between two citations, makes the
// second a parallel citation of the first
func isParallelGap(gap string) bool {
	return parallelGapRe.MatchString(gap)
}
