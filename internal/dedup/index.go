package dedup

import "jobintel-engine/internal/domain"

// Index holds a batch of postings keyed by bucket so a new posting only
// meets the few records it could plausibly repeat.
type Index struct {
	engine  *Engine
	byKey   map[string][]string
	records map[string]domain.Posting
}

func NewIndex(e *Engine) *Index {
	return &Index{
		engine:  e,
		byKey:   make(map[string][]string),
		records: make(map[string]domain.Posting),
	}
}

func (ix *Index) Len() int { return len(ix.records) }

// Add inserts p, replacing any record with the same identity.
func (ix *Index) Add(p domain.Posting) {
	id := p.Ref().Key()
	if _, ok := ix.records[id]; ok {
		ix.remove(id)
	}
	ix.records[id] = p
	for _, k := range BucketKeys(p) {
		ix.byKey[k] = append(ix.byKey[k], id)
	}
}

// Replace swaps the record stored under old's identity for next. It is used
// after a merge, when the survivor takes over an absorbed record's slot.
func (ix *Index) Replace(old, next domain.Posting) {
	ix.remove(old.Ref().Key())
	ix.Add(next)
}

func (ix *Index) FindDuplicate(candidate domain.Posting) (domain.Posting, bool) {
	seen := make(map[string]bool)
	var pool []domain.Posting
	for _, k := range BucketKeys(candidate) {
		for _, id := range ix.byKey[k] {
			if seen[id] {
				continue
			}
			seen[id] = true
			pool = append(pool, ix.records[id])
		}
	}
	return ix.engine.FindDuplicate(candidate, pool)
}

func (ix *Index) remove(id string) {
	p, ok := ix.records[id]
	if !ok {
		return
	}
	delete(ix.records, id)
	for _, k := range BucketKeys(p) {
		ids := ix.byKey[k]
		out := ids[:0]
		for _, x := range ids {
			if x != id {
				out = append(out, x)
			}
		}
		if len(out) == 0 {
			delete(ix.byKey, k)
		} else {
			ix.byKey[k] = out
		}
	}
}
