package feed

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"jobintel-engine/internal/textnorm"
)

var blockEnd = regexp.MustCompile(`(?i)<(br\s*/?|/p|/div|/li|/h[1-6]|/tr|/td|/ul|/ol)>`)

// HTMLToText renders feed HTML as plain text with block boundaries kept as
// spaces. Input that does not parse is returned cleaned but otherwise as is.
func HTMLToText(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	if !strings.ContainsAny(s, "<&") {
		return textnorm.CleanText(s)
	}
	s = blockEnd.ReplaceAllString(s, "$0 ")
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return textnorm.CleanText(s)
	}
	doc.Find("script, style, noscript").Remove()
	return textnorm.CleanText(doc.Text())
}

// locationFromHTML looks for a labelled location in item HTML, the way job
// boards often embed "Location: Berlin" in the body.
func locationFromHTML(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(blockEnd.ReplaceAllString(s, "$0\n")))
	if err != nil {
		return ""
	}
	for _, sel := range []string{".location", ".job__location", "[data-testid='job-location']"} {
		if t := textnorm.CleanText(doc.Find(sel).First().Text()); t != "" {
			return textnorm.NormalizeLocation(t)
		}
	}
	if loc := locationFromLabeledText(doc.Text()); loc != "" {
		return textnorm.NormalizeLocation(loc)
	}
	return ""
}

func locationFromLabeledText(s string) string {
	low := strings.ToLower(s)
	for _, lab := range []string{"job location:", "locations:", "location:", "headquarters:"} {
		i := strings.Index(low, lab)
		if i < 0 {
			continue
		}
		rest := strings.TrimSpace(s[i+len(lab):])
		for _, cut := range []string{"\n", "\r", " | ", " · "} {
			if j := strings.Index(rest, cut); j >= 0 {
				rest = rest[:j]
			}
		}
		rest = textnorm.CleanText(rest)
		if rest != "" && len(rest) <= 80 {
			return rest
		}
	}
	return ""
}
