package siteinit

import (
	"iter"
	"strings"

	"golang.org/x/net/idna"
)

// Matches returns the entries applicable to host, lazily, in index order. An
// entry applies if its name equals the host, or is a parent domain of it,
// e.g. "example.com" applies to both "example.com" and "a.example.com", but
// not to "notexample.com".
//
// The snapshot is taken when iteration starts. The host is normalized using
// [NormalizeHost].
func (x *SiteIndex) Matches(host string) iter.Seq[SiteEntry] {
	return func(yield func(SiteEntry) bool) {
		host := NormalizeHost(host)
		if host == `` {
			return
		}
		for _, entry := range x.snapshot() {
			if MatchHost(entry.Name, host) && !yield(entry) {
				return
			}
		}
	}
}

// MatchHost reports whether the site name applies to the (normalized) host.
func MatchHost(name, host string) bool {
	return host == name || strings.HasSuffix(host, `.`+name)
}

// NormalizeHost converts host into the form used for matching: ASCII
// (punycode), lower case, without a trailing dot.
func NormalizeHost(host string) string {
	host = strings.TrimSuffix(host, `.`)
	if host == `` {
		return ``
	}
	if ascii, err := idna.Lookup.ToASCII(host); err == nil {
		return ascii
	}
	return strings.ToLower(host)
}
