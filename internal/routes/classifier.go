// Package routes classifies URL paths into access categories. The classifier
// is an explicit ordered rule list evaluated top-down, first match wins, so
// each rule can be unit-tested in isolation.
package routes

import "strings"

// Kind is the access category of a path.
type Kind int

const (
	// KindAlwaysPublic short-circuits all further checks: static assets, the
	// capability-token endpoints, public storefront and payment-info pages.
	KindAlwaysPublic Kind = iota
	// KindBlockedLegacy paths unconditionally redirect to sign-in regardless
	// of auth state; they protect stale bookmarks to removed functionality.
	KindBlockedLegacy
	// KindPublicAuth paths (signin, signup, ...) are reachable without a
	// session; with one, the gate redirects to the tenant home.
	KindPublicAuth
	// KindStoreProtected paths are the staff dashboard; a session is
	// required here, tenant membership is enforced downstream.
	KindStoreProtected
	// KindClientProtected paths are the signed-in end-customer portal.
	KindClientProtected
	// KindProtected is the default-deny fallback for anything unclassified.
	KindProtected
)

func (k Kind) String() string {
	switch k {
	case KindAlwaysPublic:
		return "always_public"
	case KindBlockedLegacy:
		return "blocked_legacy"
	case KindPublicAuth:
		return "public_auth"
	case KindStoreProtected:
		return "store_protected"
	case KindClientProtected:
		return "client_protected"
	default:
		return "protected"
	}
}

// Protected reports whether the kind requires a session.
func (k Kind) Protected() bool {
	switch k {
	case KindStoreProtected, KindClientProtected, KindProtected:
		return true
	}
	return false
}

// Verdict is the classifier's output for one path.
type Verdict struct {
	Kind Kind
	// Slug is the tenant slug embedded in store dashboard paths, when present.
	Slug string
	// Rule names the rule that matched, for logs and tests.
	Rule string
}

// Rule is one predicate in the ordered chain.
type Rule struct {
	Name  string
	Match func(path string) (Verdict, bool)
}

// Classifier evaluates the rule chain. Built once at startup; stateless per
// request.
type Classifier struct {
	rules []Rule
}

// New returns a Classifier with the default rule chain. Order matters:
// always-public wins over blocked-legacy wins over everything else, so an
// asset path is never blocked even if it textually overlaps a blocked prefix.
func New() *Classifier {
	return &Classifier{rules: []Rule{
		{Name: "always_public", Match: matchAlwaysPublic},
		{Name: "blocked_legacy", Match: matchBlockedLegacy},
		{Name: "public_auth", Match: matchPublicAuth},
		{Name: "store", Match: matchStore},
		{Name: "client", Match: matchClient},
		{Name: "operator_api", Match: matchOperatorAPI},
	}}
}

// Classify runs the path through the rule chain. Anything unmatched is
// default-deny protected.
func (c *Classifier) Classify(path string) Verdict {
	if path == "" {
		path = "/"
	}
	for _, rule := range c.rules {
		if v, ok := rule.Match(path); ok {
			v.Rule = rule.Name
			return v
		}
	}
	return Verdict{Kind: KindProtected, Rule: "default_deny"}
}

// alwaysPublicPrefixes are matched segment-wise: "/c/" matches "/c/abc" but
// never "/clients".
var alwaysPublicPrefixes = []string{
	"/static",
	"/assets",
	"/site",
	"/c",
	"/pay",
	"/healthz",
}

var alwaysPublicExact = []string{
	"/favicon.ico",
	"/robots.txt",
	"/metrics",
}

func matchAlwaysPublic(path string) (Verdict, bool) {
	for _, p := range alwaysPublicExact {
		if path == p {
			return Verdict{Kind: KindAlwaysPublic}, true
		}
	}
	for _, p := range alwaysPublicPrefixes {
		if hasSegmentPrefix(path, p) {
			return Verdict{Kind: KindAlwaysPublic}, true
		}
	}
	return Verdict{}, false
}

// blockedLegacyPrefixes are deprecated surfaces that must redirect to
// sign-in no matter what.
var blockedLegacyPrefixes = []string{
	"/clients",
	"/quotes",
	"/portal",
}

func matchBlockedLegacy(path string) (Verdict, bool) {
	for _, p := range blockedLegacyPrefixes {
		if hasSegmentPrefix(path, p) {
			return Verdict{Kind: KindBlockedLegacy}, true
		}
	}
	return Verdict{}, false
}

var publicAuthPaths = []string{
	"/",
	"/signin",
	"/signup",
	"/reset-password",
}

func matchPublicAuth(path string) (Verdict, bool) {
	for _, p := range publicAuthPaths {
		if path == p {
			return Verdict{Kind: KindPublicAuth}, true
		}
	}
	return Verdict{}, false
}

func matchStore(path string) (Verdict, bool) {
	if !hasSegmentPrefix(path, "/store") {
		return Verdict{}, false
	}
	return Verdict{Kind: KindStoreProtected, Slug: pathSegment(path, 1)}, true
}

func matchClient(path string) (Verdict, bool) {
	if !hasSegmentPrefix(path, "/client") {
		return Verdict{}, false
	}
	return Verdict{Kind: KindClientProtected}, true
}

// matchOperatorAPI keeps the token management API out of the default-deny
// bucket so tenant hosts never rewrite it into a storefront path. It still
// requires a session like any protected surface.
func matchOperatorAPI(path string) (Verdict, bool) {
	if !hasSegmentPrefix(path, "/api") {
		return Verdict{}, false
	}
	return Verdict{Kind: KindProtected}, true
}

// hasSegmentPrefix reports whether path starts with prefix on a segment
// boundary, so "/client" matches "/client" and "/client/x" but not "/clients".
func hasSegmentPrefix(path, prefix string) bool {
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	rest := path[len(prefix):]
	return rest == "" || rest[0] == '/'
}

// pathSegment returns the n-th path segment (zero-based), or "".
func pathSegment(path string, n int) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if n < len(parts) {
		return parts[n]
	}
	return ""
}
