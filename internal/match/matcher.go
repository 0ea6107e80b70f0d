package match

import (
	"regexp"
	"sort"
	"strings"

	"github.com/rsummers/bidwatch/internal/catalog"
)

// Result is what the matcher found for one solicitation. The zero value
// means "no match", which is a normal outcome, not an error.
//
// ClassCode is populated only when NSNs is empty: an opportunity with an
// exact stock-number hit is never also reported as a class-only match.
type Result struct {
	NSNs         []string
	ClassCode    string
	KeywordRatio float64 // Best single-entry keyword overlap, 0..1
}

func (r Result) HasNSN() bool       { return len(r.NSNs) > 0 }
func (r Result) HasClassCode() bool { return r.ClassCode != "" }

var (
	// Dashed NSN, e.g. 6810-01-234-5678.
	nsnDashed = regexp.MustCompile(`\b\d{4}-\d{2}-\d{3}-\d{4}\b`)
	// Compact 13-digit form sometimes used in solicitation text.
	nsnCompact = regexp.MustCompile(`\b\d{13}\b`)

	tokenSplit = regexp.MustCompile(`[^a-z0-9]+`)
)

type Matcher struct {
	catalog *catalog.Catalog
}

func New(c *catalog.Catalog) *Matcher {
	return &Matcher{catalog: c}
}

// Match scans solicitation text and codes against the catalog.
// Tiers, in priority order: exact stock-number hits, then a class-code
// match (evaluated only when no stock number hit), then keyword overlap
// which feeds scoring only.
func (m *Matcher) Match(text, naics, psc string) Result {
	var res Result

	seen := make(map[string]struct{})
	for _, tok := range nsnDashed.FindAllString(text, -1) {
		if m.catalog.HasNSN(tok) {
			seen[tok] = struct{}{}
		}
	}
	for _, tok := range nsnCompact.FindAllString(text, -1) {
		dashed := dashNSN(tok)
		if m.catalog.HasNSN(dashed) {
			seen[dashed] = struct{}{}
		}
	}
	for nsn := range seen {
		res.NSNs = append(res.NSNs, nsn)
	}
	sort.Strings(res.NSNs)

	if len(res.NSNs) == 0 {
		if code := strings.TrimSpace(psc); m.catalog.HasClassCode(code) {
			res.ClassCode = code
		} else if code := strings.TrimSpace(naics); m.catalog.HasClassCode(code) {
			res.ClassCode = code
		}
	}

	res.KeywordRatio = m.keywordRatio(text)

	return res
}

// keywordRatio returns the best per-entry keyword overlap: the fraction
// of one catalog entry's keywords present in the text.
func (m *Matcher) keywordRatio(text string) float64 {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return 0
	}

	var best float64
	for _, entry := range m.catalog.Entries() {
		if len(entry.Keywords) == 0 {
			continue
		}
		hits := 0
		for _, kw := range entry.Keywords {
			if keywordPresent(tokens, text, kw) {
				hits++
			}
		}
		ratio := float64(hits) / float64(len(entry.Keywords))
		if ratio > best {
			best = ratio
		}
	}
	return best
}

// keywordPresent matches single-word keywords against the token set and
// multi-word keywords as a substring of the lowercased text.
func keywordPresent(tokens map[string]struct{}, text, keyword string) bool {
	kw := strings.ToLower(strings.TrimSpace(keyword))
	if kw == "" {
		return false
	}
	if strings.ContainsAny(kw, " -") {
		return strings.Contains(strings.ToLower(text), kw)
	}
	_, ok := tokens[kw]
	return ok
}

// Tokenize lowercases and splits text into alphanumeric tokens, dropping
// tokens shorter than three characters.
func Tokenize(text string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, tok := range tokenSplit.Split(strings.ToLower(text), -1) {
		if len(tok) >= 3 {
			out[tok] = struct{}{}
		}
	}
	return out
}

// dashNSN converts a compact 13-digit NSN to its dashed 4-2-3-4 form.
func dashNSN(raw string) string {
	if len(raw) != 13 {
		return raw
	}
	return raw[:4] + "-" + raw[4:6] + "-" + raw[6:9] + "-" + raw[9:]
}
