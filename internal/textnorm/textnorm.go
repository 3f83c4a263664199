// Package textnorm holds the text normalization shared by deduplication and
// scoring: tokenizing, title and company canonical forms, and similarity
// measures over them.
package textnorm

import (
	"sort"
	"strings"
	"unicode"
)

var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "the": true, "for": true, "with": true,
	"of": true, "in": true, "on": true, "at": true, "to": true, "or": true,
	"you": true, "are": true, "our": true, "your": true, "we": true, "is": true,
}

var abbreviations = map[string]string{
	"sr":    "senior",
	"snr":   "senior",
	"jr":    "junior",
	"jnr":   "junior",
	"mgr":   "manager",
	"eng":   "engineer",
	"engr":  "engineer",
	"dev":   "developer",
	"swe":   "software engineer",
	"sde":   "software engineer",
	"vp":    "vice president",
	"assoc": "associate",
	"admin": "administrator",
	"ops":   "operations",
}

var companySuffixes = map[string]bool{
	"inc": true, "incorporated": true, "llc": true, "ltd": true, "limited": true,
	"corp": true, "corporation": true, "co": true, "company": true, "gmbh": true,
	"plc": true, "ag": true, "sa": true, "bv": true, "oy": true, "ooo": true,
}

// Clean collapses whitespace, including non-breaking spaces.
func Clean(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.Join(strings.Fields(s), " ")
}

// Tokens splits text into lowercase tokens. The characters + # and inner dots
// are kept so that "c++", "c#" and "node.js" survive.
func Tokens(text string) []string {
	var out []string
	var word strings.Builder
	flush := func() {
		w := strings.Trim(word.String(), ".")
		word.Reset()
		if w != "" {
			out = append(out, w)
		}
	}
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '+' || r == '#' || r == '.' {
			word.WriteRune(r)
			continue
		}
		flush()
	}
	flush()
	return out
}

// TokenSet returns the distinct tokens of text, skipping stop words.
func TokenSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range Tokens(text) {
		if stopWords[tok] {
			continue
		}
		set[tok] = true
	}
	return set
}

// Title returns the canonical form of a job title: lower-cased, punctuation
// removed and common abbreviations expanded.
func Title(title string) string {
	toks := Tokens(title)
	out := make([]string, 0, len(toks))
	for _, tok := range toks {
		if full, ok := abbreviations[tok]; ok {
			out = append(out, full)
			continue
		}
		out = append(out, tok)
	}
	return strings.Join(out, " ")
}

// Company returns the canonical form of a company name with legal suffixes
// stripped, e.g. "Acme, Inc." and "ACME" both become "acme".
func Company(name string) string {
	toks := Tokens(strings.ReplaceAll(name, "&", " and "))
	for len(toks) > 1 && companySuffixes[toks[len(toks)-1]] {
		toks = toks[:len(toks)-1]
	}
	return strings.Join(toks, " ")
}

// Location splits a location string into its normalized comma separated
// parts. The first part is treated as the city and the last one as the region.
func Location(loc string) []string {
	loc = strings.TrimPrefix(Clean(loc), "Location:")
	parts := strings.Split(loc, ",")
	seen := make(map[string]bool, len(parts))
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Join(Tokens(p), " ")
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// Set lower-cases, trims and de-duplicates the values, returning them sorted.
func Set(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(Clean(v))
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// ContainsPhrase reports whether the token sequence of phrase appears in the
// token sequence of text.
func ContainsPhrase(textTokens []string, phrase string) bool {
	want := Tokens(phrase)
	if len(want) == 0 || len(want) > len(textTokens) {
		return false
	}
	for i := 0; i+len(want) <= len(textTokens); i++ {
		match := true
		for j := range want {
			if textTokens[i+j] != want[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
