package persona

import (
	"strings"
	"testing"
)

func TestSeedHasSingleDefaultAndSpecialists(t *testing.T) {
	items := Seed()
	if len(items) < 2 {
		t.Fatalf("expected several personas, got %d", len(items))
	}

	defaults := 0
	seen := map[string]bool{}
	for _, p := range items {
		if seen[p.ID] {
			t.Fatalf("duplicate id %s", p.ID)
		}
		seen[p.ID] = true
		if p.Default {
			defaults++
			continue
		}
		if len(p.Specializations) == 0 || len(p.Expertise) == 0 {
			t.Fatalf("specialist %s has empty term sets", p.ID)
		}
	}
	if defaults != 1 {
		t.Fatalf("expected one default persona, got %d", defaults)
	}
}

func TestSeedReturnsCopy(t *testing.T) {
	first := Seed()
	first[1].Specializations[0] = "mutated"
	first[0].Greeting = "mutated"

	second := Seed()
	if second[1].Specializations[0] == "mutated" || second[0].Greeting == "mutated" {
		t.Fatal("Seed leaked the shared catalog")
	}
}

func TestMemoryStoreDefaultAndFind(t *testing.T) {
	store := NewMemoryStore(Seed())

	if got := store.Default(); got.ID != "general" {
		t.Fatalf("expected general default, got %s", got.ID)
	}

	p, ok := store.FindByID("mobile-dev")
	if !ok || p.Name != "Elif" {
		t.Fatalf("expected mobile-dev persona, got %+v ok=%v", p, ok)
	}

	if _, ok := store.FindByID("missing"); ok {
		t.Fatal("expected missing persona lookup to fail")
	}

	if got := Resolve(store, "missing"); got.ID != "general" {
		t.Fatalf("unknown id should resolve to default, got %s", got.ID)
	}
}

func TestParseCatalogRejectsDuplicates(t *testing.T) {
	raw := []byte(`
personas:
  - id: a
    default: true
  - id: a
    specializations: [x]
    expertise: [y]
`)
	if _, err := ParseCatalog(raw); err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("expected duplicate id error, got %v", err)
	}
}

func TestParseCatalogRequiresOneDefault(t *testing.T) {
	raw := []byte(`
personas:
  - id: a
    specializations: [x]
    expertise: [y]
`)
	if _, err := ParseCatalog(raw); err == nil {
		t.Fatal("expected error for catalog without default")
	}
}

func TestParseCatalogLowercasesTerms(t *testing.T) {
	raw := []byte(`
personas:
  - id: base
    default: true
  - id: shop
    specializations: ["  Shopify "]
    expertise: [Sepet]
    related: [ÜRÜN]
`)
	items, err := ParseCatalog(raw)
	if err != nil {
		t.Fatalf("ParseCatalog err: %v", err)
	}
	shop := items[1]
	if shop.Specializations[0] != "shopify" || shop.Expertise[0] != "sepet" || shop.RelatedWords[0] != "ürün" {
		t.Fatalf("terms not normalized: %+v", shop)
	}
}

func TestApplyGreetingOverrides(t *testing.T) {
	items := Seed()
	out := ApplyGreetingOverrides(items, map[string]string{
		"general": "Hoş geldiniz!",
		"unknown": "ignored",
		"web-dev": "   ",
	})

	if out[0].Greeting != "Hoş geldiniz!" {
		t.Fatalf("override not applied: %s", out[0].Greeting)
	}
	if items[0].Greeting == "Hoş geldiniz!" {
		t.Fatal("override mutated the input slice")
	}
	if out[1].Greeting != items[1].Greeting {
		t.Fatal("blank override should keep the catalog greeting")
	}
}
