package filter

import (
	"net"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/publicsuffix"
)

var urlHostRe = regexp.MustCompile(`\bhttps?://([^\s/?#"'<>]+)`)

// domainBlocklist matches hosts against blocked registrable domains. A blocked
// entry covers itself and every sub-domain.
type domainBlocklist struct {
	blocked map[string]struct{}
}

func newDomainBlocklist(domains []string) *domainBlocklist {
	d := &domainBlocklist{blocked: make(map[string]struct{}, len(domains))}
	for _, raw := range domains {
		if host := normalizeHost(raw); host != "" {
			d.blocked[host] = struct{}{}
		}
	}
	return d
}

func (d *domainBlocklist) size() int { return len(d.blocked) }

func (d *domainBlocklist) check(sourceHint, normalizedText string) Verdict {
	if len(d.blocked) == 0 {
		return Pass
	}
	if host := normalizeHost(sourceHint); host != "" && d.matches(host) {
		return Verdict{Blocked: true, Rule: "domain:" + host, Category: "blocked_domain", Reason: "source domain is blocklisted"}
	}
	for _, m := range urlHostRe.FindAllStringSubmatch(normalizedText, -1) {
		if host := normalizeHost(m[1]); host != "" && d.matches(host) {
			return Verdict{Blocked: true, Rule: "domain:" + host, Category: "blocked_domain", Reason: "links to a blocklisted domain"}
		}
	}
	return Pass
}

func (d *domainBlocklist) matches(host string) bool {
	if _, ok := d.blocked[host]; ok {
		return true
	}
	if etld1, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		if _, ok := d.blocked[etld1]; ok {
			return true
		}
	}
	// walk parents so a blocked sub-domain entry like "ads.example.com" also
	// covers "x.ads.example.com"
	for h := host; strings.Contains(h, "."); {
		h = h[strings.Index(h, ".")+1:]
		if _, ok := d.blocked[h]; ok {
			return true
		}
	}
	return false
}

// normalizeHost accepts a bare host, host:port or full URL and returns the
// lower-cased host without a leading "www.".
func normalizeHost(raw string) string {
	raw = strings.TrimSpace(strings.ToLower(raw))
	if raw == "" {
		return ""
	}
	if strings.Contains(raw, "://") {
		if u, err := url.Parse(raw); err == nil {
			raw = u.Host
		}
	}
	if i := strings.IndexAny(raw, "/?#"); i >= 0 {
		raw = raw[:i]
	}
	if h, _, err := net.SplitHostPort(raw); err == nil {
		raw = h
	}
	raw = strings.TrimSuffix(strings.TrimPrefix(raw, "www."), ".")
	return raw
}
