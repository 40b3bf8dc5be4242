package feed

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"jobintel-engine/internal/domain"
	"jobintel-engine/internal/textnorm"
)

var jobTypes = map[string]string{
	"full time":  "full-time",
	"fulltime":   "full-time",
	"part time":  "part-time",
	"parttime":   "part-time",
	"contract":   "contract",
	"contractor": "contract",
	"freelance":  "freelance",
	"internship": "internship",
	"intern":     "internship",
	"temporary":  "temporary",
}

// CanonicalJobType maps the spellings feeds use onto one value, or "".
func CanonicalJobType(s string) string {
	return jobTypes[textnorm.Normalize(s)]
}

var trailingParen = regexp.MustCompile(`\s*\(([^()]*)\)\s*$`)

// SplitTitle separates the company from an item title according to format.
func SplitTitle(title, format string) (string, string) {
	title = textnorm.CleanText(title)
	switch format {
	case TitleColon:
		if i := strings.Index(title, ":"); i > 0 {
			return strings.TrimSpace(title[i+1:]), strings.TrimSpace(title[:i])
		}
	case TitleAt:
		if i := strings.LastIndex(title, " at "); i > 0 {
			return strings.TrimSpace(title[:i]), strings.TrimSpace(title[i+len(" at "):])
		}
	case TitleDash:
		if i := strings.LastIndex(title, " - "); i > 0 {
			return strings.TrimSpace(title[:i]), strings.TrimSpace(title[i+len(" - "):])
		}
	}
	return title, ""
}

// stripJobType removes a trailing "(Full-Time)" style suffix and returns the
// job type it named.
func stripJobType(title string) (string, string) {
	m := trailingParen.FindStringSubmatchIndex(title)
	if m == nil {
		return title, ""
	}
	jt := CanonicalJobType(title[m[2]:m[3]])
	if jt == "" {
		return title, ""
	}
	return strings.TrimSpace(title[:m[0]]), jt
}

var salaryRange = regexp.MustCompile(`(?i)\$\s?(\d{1,3}(?:,\d{3})+|\d+(?:\.\d+)?)\s*(k)?\s*(?:-|–|—|to)\s*\$?\s?(\d{1,3}(?:,\d{3})+|\d+(?:\.\d+)?)\s*(k)?`)

// ParseSalary extracts the first "$80k - $120k" or "$80,000 to $120,000"
// range from text.
func ParseSalary(text string) (lo, hi *int) {
	m := salaryRange.FindStringSubmatch(text)
	if m == nil {
		return nil, nil
	}
	a, okA := salaryAmount(m[1], m[2] != "" || (m[4] != "" && !strings.Contains(m[1], ",")))
	b, okB := salaryAmount(m[3], m[4] != "")
	if !okA || !okB {
		return nil, nil
	}
	if a > b {
		a, b = b, a
	}
	return &a, &b
}

func salaryAmount(s string, thousands bool) (int, bool) {
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil || f < 0 {
		return 0, false
	}
	if thousands {
		f *= 1000
	}
	return int(f), true
}

// ItemToPosting maps one feed item onto a posting. It reports false when
// the item has no title or nothing to identify it by.
func ItemToPosting(src Source, it *gofeed.Item) (domain.Posting, bool) {
	if it == nil {
		return domain.Posting{}, false
	}
	link := Canonicalize(it.Link)
	id := strings.TrimSpace(it.GUID)
	if id == "" {
		id = link
	}
	if id == "" {
		return domain.Posting{}, false
	}

	rawHTML := it.Description
	if len(it.Content) > len(rawHTML) {
		rawHTML = it.Content
	}

	title, company := SplitTitle(it.Title, src.TitleFormat)
	title, jobType := stripJobType(title)
	if title == "" {
		return domain.Posting{}, false
	}
	if company == "" {
		company = textnorm.CleanText(src.Company)
	}
	if company == "" && it.Author != nil {
		company = textnorm.CleanText(it.Author.Name)
	}
	if jobType == "" {
		for _, c := range it.Categories {
			if jt := CanonicalJobType(c); jt != "" {
				jobType = jt
				break
			}
		}
	}
	if jobType == "" {
		jobType = CanonicalJobType(src.JobType)
	}

	desc := HTMLToText(rawHTML)

	location := locationFromHTML(rawHTML)
	if location == "" {
		location = textnorm.NormalizeLocation(src.Location)
	}

	p := domain.Posting{
		Source:      src.Name,
		SourceID:    id,
		URL:         link,
		Title:       title,
		Company:     company,
		Description: desc,
		Location:    location,
		JobType:     jobType,
		Remote:      src.Remote || isRemote(title, location, it.Categories),
		PostedAt:    itemTime(it),
	}
	p.SalaryMin, p.SalaryMax = ParseSalary(it.Title + " " + desc)
	return p, true
}

func isRemote(title, location string, categories []string) bool {
	for _, s := range append([]string{title, location}, categories...) {
		if textnorm.ContainsPhrase(s, "remote", true) {
			return true
		}
	}
	return false
}

func itemTime(it *gofeed.Item) *time.Time {
	switch {
	case it.PublishedParsed != nil:
		t := it.PublishedParsed.UTC()
		return &t
	case it.UpdatedParsed != nil:
		t := it.UpdatedParsed.UTC()
		return &t
	}
	return nil
}
