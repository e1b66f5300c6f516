// Package hostname classifies the Host header of an inbound request. The
// classifier is a pure function over immutable configuration; it performs no
// lookups and holds no per-request state.
package hostname

import (
	"strings"
)

// Kind is the category a hostname falls into.
type Kind int

const (
	// KindInvalid covers empty or malformed hostnames.
	KindInvalid Kind = iota
	// KindPlatformRoot is the SaaS's own domain, its www form, or a reserved
	// platform subdomain (admin, api, ...). Never tenant-bearing.
	KindPlatformRoot
	// KindPlatformSubdomain is a single non-reserved label in front of a
	// platform domain; the label is the candidate tenant slug.
	KindPlatformSubdomain
	// KindCustomDomain is any other hostname; the tenant directory decides
	// whether it is bound.
	KindCustomDomain
)

func (k Kind) String() string {
	switch k {
	case KindPlatformRoot:
		return "platform_root"
	case KindPlatformSubdomain:
		return "platform_subdomain"
	case KindCustomDomain:
		return "custom_domain"
	default:
		return "invalid"
	}
}

// Classification is the classifier's verdict for one hostname.
type Classification struct {
	Kind Kind
	// Slug is the candidate tenant slug for KindPlatformSubdomain.
	Slug string
	// Domain is the normalized hostname for KindCustomDomain.
	Domain string
}

// Classifier holds the fixed platform-domain and reserved-label sets. Built
// once at startup; safe for concurrent use.
type Classifier struct {
	platform map[string]struct{}
	reserved map[string]struct{}
}

// New builds a Classifier from the configured platform domains and reserved
// subdomain labels. Inputs are lowercased; the slices are not retained.
func New(platformDomains, reservedSubdomains []string) *Classifier {
	c := &Classifier{
		platform: make(map[string]struct{}, len(platformDomains)),
		reserved: make(map[string]struct{}, len(reservedSubdomains)),
	}
	for _, d := range platformDomains {
		c.platform[strings.ToLower(d)] = struct{}{}
	}
	for _, l := range reservedSubdomains {
		c.reserved[strings.ToLower(l)] = struct{}{}
	}
	return c
}

// Classify categorizes a request hostname. The port suffix is stripped before
// matching.
func (c *Classifier) Classify(host string) Classification {
	host = Normalize(host)
	if host == "" {
		return Classification{Kind: KindInvalid}
	}

	if _, ok := c.platform[host]; ok {
		return Classification{Kind: KindPlatformRoot}
	}

	for domain := range c.platform {
		suffix := "." + domain
		if !strings.HasSuffix(host, suffix) {
			continue
		}
		label := strings.TrimSuffix(host, suffix)
		if strings.Contains(label, ".") {
			// More than one label in front of a platform domain is not a
			// tenant slug; let the directory treat it as a custom-domain
			// candidate (it will miss).
			return Classification{Kind: KindCustomDomain, Domain: host}
		}
		if _, ok := c.reserved[label]; ok {
			// Reserved labels (www, admin, api, ...) are platform surfaces,
			// never tenant slugs.
			return Classification{Kind: KindPlatformRoot}
		}
		return Classification{Kind: KindPlatformSubdomain, Slug: label}
	}

	return Classification{Kind: KindCustomDomain, Domain: host}
}

// IsPlatform reports whether host (after normalization) is a platform domain
// or any subdomain of one. The www-strip redirect must not touch these.
func (c *Classifier) IsPlatform(host string) bool {
	host = Normalize(host)
	if _, ok := c.platform[host]; ok {
		return true
	}
	for domain := range c.platform {
		if strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

// Normalize lowercases a hostname and strips any port suffix.
func Normalize(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if i := strings.LastIndex(host, ":"); i >= 0 && !strings.Contains(host[i:], "]") {
		// Keep IPv6 literals like [::1] intact; strip only real port suffixes.
		if !strings.Contains(host[i+1:], ":") {
			host = host[:i]
		}
	}
	return strings.TrimSuffix(host, ".")
}

// StripWWW removes a leading "www." label. Callers redirect to the bare
// domain before tenant resolution so www and bare forms cannot resolve to
// two different tenants.
func StripWWW(host string) (string, bool) {
	host = Normalize(host)
	if rest, ok := strings.CutPrefix(host, "www."); ok && rest != "" {
		return rest, true
	}
	return host, false
}

// Labels splits a normalized hostname into its dot-separated labels.
func Labels(host string) []string {
	host = Normalize(host)
	if host == "" {
		return nil
	}
	return strings.Split(host, ".")
}

// RootDomain returns the last-two-label root of a hostname with three or
// more labels, for the subdomain-of-registered-domain fallback. ok is false
// when the hostname has fewer than three labels.
func RootDomain(host string) (root, sub string, ok bool) {
	labels := Labels(host)
	if len(labels) < 3 {
		return "", "", false
	}
	root = strings.Join(labels[len(labels)-2:], ".")
	sub = strings.Join(labels[:len(labels)-2], ".")
	return root, sub, true
}
