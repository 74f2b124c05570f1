package ingest

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// monthNames maps Swedish month names and their standard abbreviations to month
// numbers by position. DetectMonth and the supplier normalizer probe months in
// this fixed order (1..12, full name before abbreviation) so ties are stable.
var monthNames = [12]struct{ full, abbr string }{
	{"januari", "jan"}, {"februari", "feb"}, {"mars", "mar"}, {"april", "apr"},
	{"maj", "maj"}, {"juni", "jun"}, {"juli", "jul"}, {"augusti", "aug"},
	{"september", "sep"}, {"oktober", "okt"}, {"november", "nov"}, {"december", "dec"},
}

// legalForms are company-suffix tokens stripped when they end a name.
var legalForms = map[string]struct{}{
	"ab": {}, "hb": {}, "kb": {}, "aktiebolag": {},
	"ltd": {}, "inc": {}, "llc": {}, "gmbh": {}, "oy": {}, "as": {},
}

// supplierNoise are tokens that leak into supplier names from scanned file
// names: receipt/expense nouns plus month names and abbreviations.
var supplierNoise = buildSupplierNoise()

func buildSupplierNoise() map[string]struct{} {
	m := map[string]struct{}{
		"faktura": {}, "kvitto": {}, "utlägg": {}, "räkning": {},
		"invoice": {}, "receipt": {}, "expense": {},
	}
	for _, mn := range monthNames {
		m[mn.full] = struct{}{}
		m[mn.abbr] = struct{}{}
	}
	return m
}

var separatorPattern = regexp.MustCompile(`[-_&]`)

// NameNormalizer turns free-text company names into a comparable form.
// The zero value is the customer variant; the supplier variant additionally
// strips trailing month and receipt words.
type NameNormalizer struct {
	supplier bool
}

var (
	CustomerNames = NameNormalizer{}
	SupplierNames = NameNormalizer{supplier: true}
)

// Normalize lower-cases the name, drops a trailing legal-form token, replaces
// hyphen/underscore/ampersand with spaces and collapses whitespace. Pure and
// total: empty input yields an empty result.
func (n NameNormalizer) Normalize(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = separatorPattern.ReplaceAllString(s, " ")
	tokens := strings.Fields(s)
	tokens = stripTrailingLegalForm(tokens)
	if n.supplier {
		tokens = stripTrailingNoise(tokens)
	}
	return strings.Join(tokens, " ")
}

// CoreName reduces a name to its first two significant (>= 2 rune) words, a
// short fingerprint resistant to suffix noise. Callers must treat results
// shorter than 3 characters as unusable for matching.
func (n NameNormalizer) CoreName(name string) string {
	var keep []string
	for _, tok := range strings.Fields(n.Normalize(name)) {
		if utf8.RuneCountInString(tok) < 2 {
			continue
		}
		keep = append(keep, tok)
		if len(keep) == 2 {
			break
		}
	}
	return strings.Join(keep, " ")
}

func stripTrailingLegalForm(tokens []string) []string {
	if len(tokens) == 0 {
		return tokens
	}
	last := strings.TrimRight(tokens[len(tokens)-1], ".")
	if _, ok := legalForms[last]; ok {
		return tokens[:len(tokens)-1]
	}
	return tokens
}

func stripTrailingNoise(tokens []string) []string {
	for len(tokens) > 0 {
		last := strings.TrimRight(tokens[len(tokens)-1], ".")
		if _, ok := supplierNoise[last]; !ok {
			break
		}
		tokens = tokens[:len(tokens)-1]
	}
	// A single trailing one-letter token is scanner noise too.
	if len(tokens) > 0 && utf8.RuneCountInString(tokens[len(tokens)-1]) == 1 {
		tokens = tokens[:len(tokens)-1]
	}
	return tokens
}
