package quality

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/cloudflare/ahocorasick"

	"jobintel-engine/internal/domain"
)

var hostPattern = regexp.MustCompile(`(?i)(?:[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z]{2,24}`)

type spamMatcher struct {
	keywords []string
	ac       *ahocorasick.Matcher
	domains  []string
	mail     *regexp.Regexp
}

func newSpamMatcher(cfg Config) *spamMatcher {
	m := &spamMatcher{}
	seen := map[string]bool{}
	for _, k := range cfg.SpamKeywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		m.keywords = append(m.keywords, k)
	}
	if len(m.keywords) > 0 {
		m.ac = ahocorasick.NewStringMatcher(m.keywords)
	}
	for _, d := range cfg.SpamDomains {
		d = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(d)), "www.")
		if d != "" {
			m.domains = append(m.domains, d)
		}
	}
	if len(cfg.PersonalMail) > 0 {
		quoted := make([]string, 0, len(cfg.PersonalMail))
		for _, p := range cfg.PersonalMail {
			quoted = append(quoted, regexp.QuoteMeta(strings.ToLower(p)))
		}
		m.mail = regexp.MustCompile(`(?i)@(?:` + strings.Join(quoted, "|") + `)\.(?:com|net|org)\b`)
	}
	return m
}

// keywordHits returns each configured keyword found in text once, in matcher
// order. A keyword only counts at word boundaries ("crypto" does not fire on
// "cryptography"), and an occurrence lying inside a longer keyword's
// occurrence is not counted again.
func (m *spamMatcher) keywordHits(text string) []string {
	if m.ac == nil || text == "" {
		return nil
	}
	lower := strings.ToLower(text)
	idx := m.ac.MatchThreadSafe([]byte(lower))
	if len(idx) == 0 {
		return nil
	}

	seen := make(map[int]bool, len(idx))
	found := make(map[int][]span, len(idx))
	var all []span
	for _, i := range idx {
		if seen[i] {
			continue
		}
		seen[i] = true
		if sp := wordSpans(lower, m.keywords[i]); len(sp) > 0 {
			found[i] = sp
			all = append(all, sp...)
		}
	}

	var hits []string
	for _, i := range idx {
		sp, ok := found[i]
		if !ok {
			continue
		}
		delete(found, i)
		for _, s := range sp {
			if !s.within(all) {
				hits = append(hits, m.keywords[i])
				break
			}
		}
	}
	return hits
}

type span struct{ start, end int }

// within reports whether s sits inside some strictly longer span.
func (s span) within(spans []span) bool {
	for _, o := range spans {
		if o.start <= s.start && s.end <= o.end && o.end-o.start > s.end-s.start {
			return true
		}
	}
	return false
}

// wordSpans finds the occurrences of kw in text that are not glued to a
// letter or digit on either side.
func wordSpans(text, kw string) []span {
	var out []span
	for from := 0; from < len(text); {
		at := strings.Index(text[from:], kw)
		if at < 0 {
			break
		}
		start := from + at
		end := start + len(kw)
		if boundary(text, start, end, kw) {
			out = append(out, span{start, end})
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		from = start + size
	}
	return out
}

func boundary(text string, start, end int, kw string) bool {
	if first, _ := utf8.DecodeRuneInString(kw); isWordRune(first) && start > 0 {
		if r, _ := utf8.DecodeLastRuneInString(text[:start]); isWordRune(r) {
			return false
		}
	}
	if last, _ := utf8.DecodeLastRuneInString(kw); isWordRune(last) && end < len(text) {
		if r, _ := utf8.DecodeRuneInString(text[end:]); isWordRune(r) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }

// domainHits returns each blocklisted domain that appears as a host in rawURL
// or anywhere in text.
func (m *spamMatcher) domainHits(rawURL, text string) []string {
	if len(m.domains) == 0 {
		return nil
	}
	var hosts []string
	if u, err := url.Parse(strings.TrimSpace(rawURL)); err == nil && u.Hostname() != "" {
		hosts = append(hosts, strings.ToLower(u.Hostname()))
	} else if rawURL != "" {
		hosts = append(hosts, hostPattern.FindAllString(strings.ToLower(rawURL), -1)...)
	}
	hosts = append(hosts, hostPattern.FindAllString(strings.ToLower(text), -1)...)

	var hits []string
	for _, d := range m.domains {
		for _, h := range hosts {
			if h == d || strings.HasSuffix(h, "."+d) {
				hits = append(hits, d)
				break
			}
		}
	}
	return hits
}

func (f *Filter) spamSignal(p domain.Posting) (int, []string) {
	var (
		signal  int
		reasons []string
	)
	for _, k := range f.spam.keywordHits(p.Title + " " + p.Description) {
		signal++
		reasons = append(reasons, "suspicious keyword: "+k)
	}
	for _, d := range f.spam.domainHits(p.URL, p.Description) {
		signal += f.cfg.DomainSignal
		reasons = append(reasons, "blocklisted domain: "+d)
	}
	if f.shouting(p.Title, f.cfg.SpamCapsRatio) {
		signal++
		reasons = append(reasons, "uppercase title")
	}
	if n := countEmoji(p.Description); n > f.cfg.MaxEmoji {
		signal++
		reasons = append(reasons, fmt.Sprintf("emoji in description (%d)", n))
	}
	if f.spam.mail != nil && f.spam.mail.MatchString(leadingRunes(p.Description, f.cfg.PersonalMailWindow)) {
		signal++
		reasons = append(reasons, "personal email in description")
	}
	if strings.Contains(p.Title, "!!") {
		signal++
		reasons = append(reasons, "repeated exclamation in title")
	}
	return signal, reasons
}

func countEmoji(s string) int {
	n := 0
	for _, r := range s {
		if isEmoji(r) {
			n++
		}
	}
	return n
}

func leadingRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
