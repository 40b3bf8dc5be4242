package dedup

import (
	"unicode/utf8"

	"jobintel-engine/internal/domain"
)

// Richness counts the optional fields a posting actually carries.
func Richness(p domain.Posting) int {
	n := 0
	if p.SalaryMin != nil {
		n++
	}
	if p.SalaryMax != nil {
		n++
	}
	if present(p.Location) {
		n++
	}
	if present(p.Description) {
		n++
	}
	if present(p.Company) {
		n++
	}
	if present(p.JobType) {
		n++
	}
	if p.PostedAt != nil {
		n++
	}
	return n
}

// richer reports whether a should survive over b. Ties go to the longer
// description, then the earlier posting, then the smaller identity.
func richer(a, b domain.Posting) bool {
	if ra, rb := Richness(a), Richness(b); ra != rb {
		return ra > rb
	}
	if la, lb := utf8.RuneCountInString(a.Description), utf8.RuneCountInString(b.Description); la != lb {
		return la > lb
	}
	switch {
	case a.PostedAt != nil && b.PostedAt != nil && !a.PostedAt.Equal(*b.PostedAt):
		return a.PostedAt.Before(*b.PostedAt)
	case a.PostedAt != nil && b.PostedAt == nil:
		return true
	case a.PostedAt == nil && b.PostedAt != nil:
		return false
	}
	return !domain.IdentityLess(b, a)
}

// Backfill copies into dst the optional fields it lacks from src. Identity,
// title and secondary sources stay dst's.
func Backfill(dst, src domain.Posting) domain.Posting {
	if dst.SalaryMin == nil && src.SalaryMin != nil {
		v := *src.SalaryMin
		dst.SalaryMin = &v
	}
	if dst.SalaryMax == nil && src.SalaryMax != nil {
		v := *src.SalaryMax
		dst.SalaryMax = &v
	}
	if !present(dst.Company) && present(src.Company) {
		dst.Company = src.Company
	}
	if !present(dst.Description) && present(src.Description) {
		dst.Description = src.Description
	}
	if !present(dst.Location) && present(src.Location) {
		dst.Location = src.Location
	}
	if !present(dst.JobType) && present(src.JobType) {
		dst.JobType = src.JobType
	}
	if !present(dst.URL) && present(src.URL) {
		dst.URL = src.URL
	}
	if src.Remote {
		dst.Remote = true
	}
	return dst
}

// Merge collapses two duplicates into one record. The survivor keeps its own
// identity and content, back-fills fields it lacks from the absorbed record
// and lists the absorbed identity as a secondary source. Merge(a, b) and
// Merge(b, a) give the same survivor, and merging a survivor with its
// absorbed record again changes nothing.
func Merge(a, b domain.Posting) (survivor, absorbed domain.Posting) {
	if richer(a, b) {
		survivor, absorbed = a, b
	} else {
		survivor, absorbed = b, a
	}

	survivor = Backfill(survivor, absorbed)

	refs := make([]domain.SourceRef, 0, len(survivor.SecondarySources)+len(absorbed.SecondarySources)+1)
	refs = append(refs, survivor.SecondarySources...)
	refs = append(refs, absorbed.Ref())
	refs = append(refs, absorbed.SecondarySources...)
	own := survivor.Ref().Key()
	filtered := refs[:0]
	for _, r := range refs {
		if r.Key() != own {
			filtered = append(filtered, r)
		}
	}
	survivor.SecondarySources = domain.SortRefs(filtered)
	return survivor, absorbed
}
