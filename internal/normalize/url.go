package normalize

import (
	"net/url"
	"sort"
	"strings"
)

// trackingParams are dropped from canonical URLs. Keys are lower case.
var trackingParams = map[string]struct{}{
	"gclid":   {},
	"fbclid":  {},
	"msclkid": {},
	// linkedin
	"trk":        {},
	"refid":      {},
	"trackingid": {},
	// hh.ru
	"from":          {},
	"hhtmfrom":      {},
	"hhtmfromlabel": {},
	// adzuna
	"se": {},
	"v":  {},
}

// CanonicalURL returns a form of raw that is equal for links differing only
// in casing, parameter order, tracking parameters, fragment or trailing slash.
// Unparseable or relative URLs yield "".
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme == "http" {
		scheme = "https"
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if port := u.Port(); port != "" && port != "80" && port != "443" {
		host += ":" + port
	}

	path := strings.TrimRight(strings.ToLower(u.EscapedPath()), "/")

	params := make([]string, 0)
	for key, values := range u.Query() {
		k := strings.ToLower(key)
		if _, drop := trackingParams[k]; drop || strings.HasPrefix(k, "utm_") {
			continue
		}
		for _, v := range values {
			params = append(params, url.QueryEscape(k)+"="+url.QueryEscape(strings.ToLower(v)))
		}
	}
	sort.Strings(params)

	out := scheme + "://" + host + path
	if len(params) > 0 {
		out += "?" + strings.Join(params, "&")
	}
	return out
}
