package catalog

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rsummers/bidwatch/internal/models"
)

// Catalog is the read-only stock-number reference data the matcher runs
// against. Loaded once at startup; safe for concurrent reads.
type Catalog struct {
	entries []models.CatalogEntry
	byNSN   map[string]models.CatalogEntry
	fscs    map[string]struct{}
}

type catalogFile struct {
	Entries []models.CatalogEntry `yaml:"entries"`
}

// Load reads catalog entries from a YAML file.
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file: %w", err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parsing catalog file: %w", err)
	}

	return New(file.Entries), nil
}

// New builds a catalog from entries, normalizing NSNs and class codes
// and dropping entries without a stock number.
func New(entries []models.CatalogEntry) *Catalog {
	c := &Catalog{
		byNSN: make(map[string]models.CatalogEntry, len(entries)),
		fscs:  make(map[string]struct{}),
	}

	for _, e := range entries {
		e.NSN = strings.TrimSpace(e.NSN)
		if e.NSN == "" {
			continue
		}
		e.FSC = strings.TrimSpace(e.FSC)
		if e.FSC == "" && len(e.NSN) >= 4 {
			// The first four digits of an NSN are its FSC.
			e.FSC = e.NSN[:4]
		}

		c.entries = append(c.entries, e)
		c.byNSN[e.NSN] = e
		if e.FSC != "" {
			c.fscs[e.FSC] = struct{}{}
		}
	}

	return c
}

// HasNSN reports whether the exact stock number is carried.
func (c *Catalog) HasNSN(nsn string) bool {
	_, ok := c.byNSN[nsn]
	return ok
}

// HasClassCode reports whether any catalog entry belongs to the given
// class code. A longer product code matches when one of the catalog's
// class prefixes is its prefix (e.g. catalog "6810" matches "6810A").
func (c *Catalog) HasClassCode(code string) bool {
	code = strings.TrimSpace(code)
	if code == "" {
		return false
	}
	if _, ok := c.fscs[code]; ok {
		return true
	}
	for fsc := range c.fscs {
		if strings.HasPrefix(code, fsc) {
			return true
		}
	}
	return false
}

// Entries returns all catalog entries. The caller must not mutate them.
func (c *Catalog) Entries() []models.CatalogEntry {
	return c.entries
}

func (c *Catalog) Len() int {
	return len(c.entries)
}
