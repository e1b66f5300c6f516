package hostname

import "testing"

func newTestClassifier() *Classifier {
	return New(
		[]string{"storegate.io", "localhost"},
		[]string{"www", "admin", "api", "app", "dashboard"},
	)
}

func TestClassifyPlatformRoot(t *testing.T) {
	c := newTestClassifier()

	for _, host := range []string{"storegate.io", "storegate.io:443", "localhost:8080"} {
		got := c.Classify(host)
		if got.Kind != KindPlatformRoot {
			t.Fatalf("Classify(%q) = %v, want platform root", host, got.Kind)
		}
	}
}

func TestClassifyPlatformSubdomain(t *testing.T) {
	c := newTestClassifier()

	got := c.Classify("acme.storegate.io")
	if got.Kind != KindPlatformSubdomain {
		t.Fatalf("expected platform subdomain, got %v", got.Kind)
	}
	if got.Slug != "acme" {
		t.Fatalf("expected slug acme, got %q", got.Slug)
	}

	got = c.Classify("Acme.StoreGate.IO:443")
	if got.Kind != KindPlatformSubdomain || got.Slug != "acme" {
		t.Fatalf("expected case and port insensitive match, got %+v", got)
	}
}

func TestClassifyReservedSubdomains(t *testing.T) {
	c := newTestClassifier()

	for _, host := range []string{
		"www.storegate.io",
		"admin.storegate.io",
		"api.storegate.io",
		"app.storegate.io",
		"dashboard.storegate.io",
	} {
		got := c.Classify(host)
		if got.Kind != KindPlatformRoot {
			t.Fatalf("Classify(%q) = %v, want platform root", host, got.Kind)
		}
		if got.Slug != "" {
			t.Fatalf("reserved label %q must not produce a slug", host)
		}
	}
}

func TestClassifyMultiLabelUnderPlatform(t *testing.T) {
	c := newTestClassifier()

	// Two labels in front of the platform domain cannot be a slug.
	got := c.Classify("a.b.storegate.io")
	if got.Kind != KindCustomDomain {
		t.Fatalf("expected custom domain for deep platform prefix, got %v", got.Kind)
	}
	if got.Domain != "a.b.storegate.io" {
		t.Fatalf("expected normalized domain, got %q", got.Domain)
	}
}

func TestClassifyCustomDomain(t *testing.T) {
	c := newTestClassifier()

	got := c.Classify("shop.example.com:8443")
	if got.Kind != KindCustomDomain {
		t.Fatalf("expected custom domain, got %v", got.Kind)
	}
	if got.Domain != "shop.example.com" {
		t.Fatalf("expected port stripped, got %q", got.Domain)
	}
}

func TestClassifyInvalid(t *testing.T) {
	c := newTestClassifier()
	if got := c.Classify(""); got.Kind != KindInvalid {
		t.Fatalf("expected invalid for empty host, got %v", got.Kind)
	}
}

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"Example.COM":    "example.com",
		"example.com:80": "example.com",
		"[::1]:8080":     "[::1]",
		"[::1]":          "[::1]",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Fatalf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStripWWW(t *testing.T) {
	bare, had := StripWWW("www.example.com")
	if !had || bare != "example.com" {
		t.Fatalf("StripWWW(www.example.com) = %q, %v", bare, had)
	}

	// Idempotent: stripping an already-bare host changes nothing.
	bare, had = StripWWW("example.com")
	if had || bare != "example.com" {
		t.Fatalf("StripWWW(example.com) = %q, %v", bare, had)
	}
}

func TestRootDomain(t *testing.T) {
	root, sub, ok := RootDomain("shop.example.com")
	if !ok || root != "example.com" || sub != "shop" {
		t.Fatalf("RootDomain(shop.example.com) = %q, %q, %v", root, sub, ok)
	}

	root, sub, ok = RootDomain("a.b.example.com")
	if !ok || root != "example.com" || sub != "a.b" {
		t.Fatalf("RootDomain(a.b.example.com) = %q, %q, %v", root, sub, ok)
	}

	// Two labels have no root to fall back to.
	if _, _, ok := RootDomain("example.com"); ok {
		t.Fatalf("expected no root for two-label domain")
	}
}
