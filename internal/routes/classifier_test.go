package routes

import "testing"

func TestClassifyAlwaysPublic(t *testing.T) {
	c := New()

	for _, path := range []string{
		"/favicon.ico",
		"/robots.txt",
		"/healthz",
		"/healthz/ready",
		"/metrics",
		"/static/app.css",
		"/assets/logo.png",
		"/site/acme",
		"/site/acme/products",
		"/c/abc123",
		"/c/abc123/act",
		"/pay/invoice-7",
	} {
		v := c.Classify(path)
		if v.Kind != KindAlwaysPublic {
			t.Fatalf("Classify(%q) = %v (%s), want always public", path, v.Kind, v.Rule)
		}
	}
}

func TestClassifyBlockedLegacy(t *testing.T) {
	c := New()

	for _, path := range []string{"/clients", "/clients/42", "/quotes", "/portal/home"} {
		v := c.Classify(path)
		if v.Kind != KindBlockedLegacy {
			t.Fatalf("Classify(%q) = %v, want blocked legacy", path, v.Kind)
		}
	}
}

// The token prefix and the blocked legacy prefix share a leading letter; the
// segment boundary keeps them apart.
func TestTokenPrefixNotConfusedWithClients(t *testing.T) {
	c := New()

	if v := c.Classify("/c/tok"); v.Kind != KindAlwaysPublic {
		t.Fatalf("/c/tok classified %v, want always public", v.Kind)
	}
	if v := c.Classify("/clients"); v.Kind != KindBlockedLegacy {
		t.Fatalf("/clients classified %v, want blocked legacy", v.Kind)
	}
	if v := c.Classify("/client"); v.Kind != KindClientProtected {
		t.Fatalf("/client classified %v, want client protected", v.Kind)
	}
	if v := c.Classify("/client/orders"); v.Kind != KindClientProtected {
		t.Fatalf("/client/orders classified %v, want client protected", v.Kind)
	}
}

func TestClassifyPublicAuthExactOnly(t *testing.T) {
	c := New()

	for _, path := range []string{"/", "/signin", "/signup", "/reset-password"} {
		if v := c.Classify(path); v.Kind != KindPublicAuth {
			t.Fatalf("Classify(%q) = %v, want public auth", path, v.Kind)
		}
	}

	// Sub-paths of auth pages are not themselves public.
	if v := c.Classify("/signin/sso"); v.Kind != KindProtected {
		t.Fatalf("/signin/sso classified %v, want default deny", v.Kind)
	}
}

func TestClassifyStoreExtractsSlug(t *testing.T) {
	c := New()

	v := c.Classify("/store/acme/orders")
	if v.Kind != KindStoreProtected {
		t.Fatalf("expected store protected, got %v", v.Kind)
	}
	if v.Slug != "acme" {
		t.Fatalf("expected slug acme, got %q", v.Slug)
	}

	if v := c.Classify("/store"); v.Kind != KindStoreProtected || v.Slug != "" {
		t.Fatalf("bare /store: got %+v", v)
	}
}

func TestClassifyDefaultDeny(t *testing.T) {
	c := New()

	v := c.Classify("/totally/unknown")
	if v.Kind != KindProtected {
		t.Fatalf("expected default deny, got %v", v.Kind)
	}
	if v.Rule != "default_deny" {
		t.Fatalf("expected default_deny rule, got %q", v.Rule)
	}
	if !v.Kind.Protected() {
		t.Fatalf("default deny must require a session")
	}
}

func TestClassifyOperatorAPI(t *testing.T) {
	c := New()

	for _, path := range []string{"/api", "/api/tokens", "/api/tokens/abc"} {
		v := c.Classify(path)
		if v.Kind != KindProtected {
			t.Fatalf("%s classified %v, want protected", path, v.Kind)
		}
		if v.Rule != "operator_api" {
			t.Fatalf("%s matched rule %q, want operator_api", path, v.Rule)
		}
	}

	// Segment boundary: /apiary is not the API.
	if v := c.Classify("/apiary"); v.Rule != "default_deny" {
		t.Fatalf("/apiary matched rule %q, want default_deny", v.Rule)
	}
}

// Ordering: a path matching both always-public and blocked-legacy shape must
// resolve public, since always-public is evaluated first.
func TestRuleOrdering(t *testing.T) {
	c := New()

	if v := c.Classify("/site/portal"); v.Kind != KindAlwaysPublic {
		t.Fatalf("/site/portal classified %v, want always public", v.Kind)
	}
	if v := c.Classify("/metrics"); v.Kind != KindAlwaysPublic {
		t.Fatalf("/metrics classified %v, want always public", v.Kind)
	}
}

func TestEmptyPathTreatedAsRoot(t *testing.T) {
	c := New()
	if v := c.Classify(""); v.Kind != KindPublicAuth {
		t.Fatalf("empty path classified %v, want public auth (root)", v.Kind)
	}
}
