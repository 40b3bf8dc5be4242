package quality

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"jobintel-engine/internal/domain"
	"jobintel-engine/internal/textnorm"
)

var repeatedPunct = regexp.MustCompile(`[!?]{2,}`)

type Factors struct {
	Company     float64 `json:"company"`
	Description float64 `json:"description"`
	Location    float64 `json:"location"`
	Salary      float64 `json:"salary"`
	Title       float64 `json:"title"`
}

func (f *Filter) companyFactor(company string) float64 {
	n := textnorm.Normalize(company)
	if n == "" || utf8.RuneCountInString(n) < f.cfg.CompanyMinChars {
		return 0
	}
	if f.companyPlaceholders[n] {
		return 0
	}
	return 1
}

func (f *Filter) descriptionFactor(desc string) float64 {
	clean := textnorm.CleanText(desc)
	words := strings.Fields(clean)
	var s float64
	switch n := len(words); {
	case n == 0:
		return 0
	case n < f.cfg.DescShortWords:
		s = 0.3
	case n < f.cfg.DescMediumWords:
		s = 0.7
	default:
		s = 1.0
	}

	if upper, letters := caseCounts(clean); letters >= f.cfg.CapsMinLetters &&
		float64(upper)/float64(letters) > f.cfg.MaxCapsRatio {
		s *= 0.5
	}
	if repeatedPunct.MatchString(clean) {
		s *= 0.5
	}
	if f.boilerplate(clean) || f.lowVariety(clean) {
		s *= 0.5
	}
	return s
}

func (f *Filter) boilerplate(text string) bool {
	for _, phrase := range f.cfg.Boilerplate {
		if textnorm.ContainsPhrase(text, phrase, true) {
			return true
		}
	}
	return false
}

func (f *Filter) lowVariety(text string) bool {
	toks := textnorm.Tokens(text)
	if len(toks) < f.cfg.UniqueMinWords {
		return false
	}
	distinct := make(map[string]struct{}, len(toks))
	for _, t := range toks {
		distinct[t] = struct{}{}
	}
	return float64(len(distinct))/float64(len(toks)) < f.cfg.MinUniqueWordRatio
}

func (f *Filter) locationFactor(p domain.Posting) float64 {
	loc := textnorm.Normalize(p.Location)
	if f.isRemote(p) {
		return 1
	}
	if loc == "" {
		return 0
	}
	if f.vagueLocations[loc] {
		return 0.25
	}
	for v := range f.vagueLocations {
		if strings.Contains(v, " ") && textnorm.ContainsPhrase(loc, v, true) {
			return 0.25
		}
	}
	if !strings.ContainsFunc(loc, unicode.IsLetter) || utf8.RuneCountInString(loc) < f.cfg.LocationMinChars {
		return 0
	}
	return 1
}

func (f *Filter) isRemote(p domain.Posting) bool {
	if p.Remote {
		return true
	}
	for _, m := range f.cfg.RemoteMarkers {
		if textnorm.ContainsPhrase(p.Location, m, true) {
			return true
		}
	}
	return false
}

func salaryFactor(p domain.Posting) float64 {
	lo, hi := p.SalaryMin, p.SalaryMax
	switch {
	case lo == nil && hi == nil:
		return 0
	case (lo != nil && *lo < 0) || (hi != nil && *hi < 0):
		return 0
	case lo != nil && hi != nil && *lo > *hi:
		return 0.5
	}
	return 1
}

func (f *Filter) titleFactor(title string) float64 {
	clean := textnorm.CleanText(title)
	n := textnorm.Normalize(clean)
	if n == "" || f.titlePlaceholders[n] {
		return 0
	}
	s := 1.0
	if l := utf8.RuneCountInString(clean); l < f.cfg.TitleMinChars || l > f.cfg.TitleMaxChars {
		s = 0.4
	}
	if f.shouting(clean, f.cfg.MaxCapsRatio) {
		s *= 0.5
	}
	if symbolRatio(clean) > f.cfg.MaxSymbolRatio {
		s *= 0.5
	}
	if repeatedPunct.MatchString(clean) {
		s *= 0.5
	}
	return s
}

func (f *Filter) shouting(s string, ratio float64) bool {
	upper, letters := caseCounts(s)
	return letters >= f.cfg.CapsMinLetters && float64(upper)/float64(letters) > ratio
}

func caseCounts(s string) (upper, letters int) {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.IsUpper(r) {
			upper++
		}
	}
	return upper, letters
}

// symbolRatio is the share of non-space runes that are symbols or emoji.
func symbolRatio(s string) float64 {
	var total, sym int
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if isEmoji(r) || unicode.IsSymbol(r) || (unicode.IsPunct(r) && !strings.ContainsRune(allowedTitlePunct, r)) {
			sym++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(sym) / float64(total)
}

const allowedTitlePunct = "-,/&()+.#:'|"

func isEmoji(r rune) bool {
	return (r >= 0x1F300 && r <= 0x1FAFF) || (r >= 0x2600 && r <= 0x27BF)
}
