package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rsummers/bidwatch/internal/models"
)

func TestNew_DerivesFSCFromNSN(t *testing.T) {
	c := New([]models.CatalogEntry{
		{NSN: "6810-01-234-5678", Keywords: []string{"acetone"}},
	})

	if !c.HasNSN("6810-01-234-5678") {
		t.Fatal("expected NSN to be indexed")
	}
	if !c.HasClassCode("6810") {
		t.Fatal("expected FSC 6810 derived from NSN prefix")
	}
}

func TestNew_SkipsEntriesWithoutNSN(t *testing.T) {
	c := New([]models.CatalogEntry{
		{NSN: "  "},
		{NSN: "9150-00-045-4317", FSC: "9150"},
	})

	if c.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", c.Len())
	}
}

func TestHasClassCode_PrefixMatch(t *testing.T) {
	c := New([]models.CatalogEntry{{NSN: "6810-01-234-5678", FSC: "6810"}})

	if !c.HasClassCode("6810A") {
		t.Fatal("expected longer product code to match catalog class prefix")
	}
	if c.HasClassCode("7025") {
		t.Fatal("unrelated class code must not match")
	}
	if c.HasClassCode("") {
		t.Fatal("empty class code must not match")
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	payload := `entries:
  - nsn: 6810-01-234-5678
    fsc: "6810"
    keywords: [acetone, solvent, technical grade]
  - nsn: 9150-00-045-4317
    keywords: [lubricant, oil]
`
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if c.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", c.Len())
	}
	if !c.HasClassCode("9150") {
		t.Fatal("expected FSC derived for second entry")
	}
}

func TestLoad_BadYAMLFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	if err := os.WriteFile(path, []byte("entries: {nope"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}
