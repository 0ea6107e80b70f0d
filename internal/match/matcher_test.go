package match

import (
	"reflect"
	"testing"

	"github.com/rsummers/bidwatch/internal/catalog"
	"github.com/rsummers/bidwatch/internal/models"
)

func testCatalog() *catalog.Catalog {
	return catalog.New([]models.CatalogEntry{
		{NSN: "6810-01-234-5678", FSC: "6810", Keywords: []string{"acetone", "solvent", "technical grade"}},
		{NSN: "9150-00-045-4317", FSC: "9150", Keywords: []string{"lubricant", "oil"}},
	})
}

func TestMatch_ExactNSNInText(t *testing.T) {
	m := New(testCatalog())

	res := m.Match("RFQ for 6810-01-234-5678 acetone, technical grade", "325199", "6810")

	want := []string{"6810-01-234-5678"}
	if !reflect.DeepEqual(res.NSNs, want) {
		t.Fatalf("expected %v, got %v", want, res.NSNs)
	}
	if res.ClassCode != "" {
		t.Fatalf("class code must stay empty when an NSN matched, got %q", res.ClassCode)
	}
}

func TestMatch_CompactNSNNormalized(t *testing.T) {
	m := New(testCatalog())

	res := m.Match("item 9150000454317 qty 24", "", "")

	want := []string{"9150-00-045-4317"}
	if !reflect.DeepEqual(res.NSNs, want) {
		t.Fatalf("expected %v, got %v", want, res.NSNs)
	}
}

func TestMatch_DuplicateTokensDeduplicated(t *testing.T) {
	m := New(testCatalog())

	res := m.Match("6810-01-234-5678 ... see 6810-01-234-5678 and 6810012345678", "", "")

	if len(res.NSNs) != 1 {
		t.Fatalf("expected 1 deduplicated NSN, got %v", res.NSNs)
	}
}

func TestMatch_ClassCodeOnlyWhenNoNSN(t *testing.T) {
	m := New(testCatalog())

	res := m.Match("solicitation for misc chemicals", "", "6810")

	if res.HasNSN() {
		t.Fatalf("expected no NSN match, got %v", res.NSNs)
	}
	if res.ClassCode != "6810" {
		t.Fatalf("expected class code 6810, got %q", res.ClassCode)
	}
}

func TestMatch_UnknownNSNIgnored(t *testing.T) {
	m := New(testCatalog())

	res := m.Match("RFQ for 1234-56-789-0123", "", "")

	if res.HasNSN() {
		t.Fatalf("NSN outside the catalog must not match, got %v", res.NSNs)
	}
}

func TestMatch_NoMatchIsZeroValue(t *testing.T) {
	m := New(testCatalog())

	res := m.Match("lawn mowing services", "561730", "S208")

	if res.HasNSN() || res.HasClassCode() || res.KeywordRatio != 0 {
		t.Fatalf("expected zero-value result, got %+v", res)
	}
}

func TestKeywordRatio(t *testing.T) {
	m := New(testCatalog())

	tests := []struct {
		name string
		text string
		want float64
	}{
		{"all keywords one entry", "acetone solvent, technical grade, 55 gallon", 1.0},
		{"partial overlap", "bulk solvent needed", 1.0 / 3.0},
		{"multi-word keyword needs phrase", "technical data and grade report", 0}, // "technical grade" must appear as a phrase
		{"no overlap", "steel fasteners", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := m.Match(tt.text, "", "")
			if diff := res.KeywordRatio - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Fatalf("got %v, want %v", res.KeywordRatio, tt.want)
			}
		})
	}
}

func TestDashNSN(t *testing.T) {
	if got := dashNSN("6810012345678"); got != "6810-01-234-5678" {
		t.Fatalf("got %q", got)
	}
	if got := dashNSN("123"); got != "123" {
		t.Fatalf("short input must pass through, got %q", got)
	}
}
