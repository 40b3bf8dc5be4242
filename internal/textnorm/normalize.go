// Package textnorm canonicalizes strings so postings from different feeds
// can be compared.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var folder = cases.Fold()

func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimSpace(s)
}

// Normalize case-folds s, strips accents, turns every rune that is not a
// letter, digit, '+' or '#' into a space and collapses whitespace.
// "C++" and "C#" survive; "Node.js" becomes "node js".
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if out, _, err := transform.String(t, s); err == nil {
		s = out
	}
	s = folder.String(s)

	var b strings.Builder
	b.Grow(len(s))
	space := true
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '+' || r == '#' {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}

func Tokens(s string) []string {
	n := Normalize(s)
	if n == "" {
		return nil
	}
	return strings.Fields(n)
}

// FirstToken is the first normalized word of s, or "".
func FirstToken(s string) string {
	toks := Tokens(s)
	if len(toks) == 0 {
		return ""
	}
	return toks[0]
}

// ContainsPhrase reports whether needle occurs in haystack after both are
// normalized. With wholeWord the needle must match a run of complete tokens.
func ContainsPhrase(haystack, needle string, wholeWord bool) bool {
	n := Normalize(needle)
	if n == "" {
		return false
	}
	h := Normalize(haystack)
	if h == "" {
		return false
	}
	if !wholeWord {
		return strings.Contains(h, n)
	}
	return strings.Contains(" "+h+" ", " "+n+" ")
}

func NormalizeLocation(loc string) string {
	loc = CleanText(loc)
	if loc == "" {
		return ""
	}

	loc = strings.TrimPrefix(loc, "Location:")
	loc = strings.TrimPrefix(loc, "LOCATIONS:")
	loc = strings.TrimSpace(loc)

	parts := strings.Split(loc, ",")
	seen := map[string]bool{}
	var out []string
	for _, p := range parts {
		p = CleanText(p)
		if p == "" {
			continue
		}
		k := strings.ToLower(p)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, p)
	}
	return strings.Join(out, ", ")
}

// LocationParts splits a location on commas and slashes into normalized parts.
func LocationParts(loc string) []string {
	fields := strings.FieldsFunc(loc, func(r rune) bool { return r == ',' || r == '/' || r == ';' || r == '|' })
	var out []string
	for _, f := range fields {
		if n := Normalize(f); n != "" {
			out = append(out, n)
		}
	}
	return out
}
