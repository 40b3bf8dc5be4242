package feed

import (
	"net/url"
	"sort"
	"strings"
)

// Canonicalize lower-cases scheme and host, drops the fragment and tracking
// parameters and sorts the query so one job link always reads the same.
func Canonicalize(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for k := range q {
		if isTrackingParam(k) {
			q.Del(k)
		}
	}
	for k := range q {
		vals := q[k]
		sort.Strings(vals)
		q[k] = vals
	}
	// Encode sorts by key.
	u.RawQuery = q.Encode()
	if u.Path != "/" {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}
	return u.String()
}

func isTrackingParam(k string) bool {
	lk := strings.ToLower(k)
	if strings.HasPrefix(lk, "utm_") {
		return true
	}
	switch lk {
	case "gclid", "fbclid", "msclkid", "mc_cid", "mc_eid", "mkt_tok", "ref":
		return true
	}
	return false
}
