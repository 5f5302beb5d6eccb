// Package standards resolves standard identifiers into core.StandardDefinition
// values.
//
// The Catalog lists known standards. The Loader maps catalog ids to a Source
// (embedded YAML, a YAML or XLSX file from STANDARDS_DIR, or a controlled
// terminology workbook) and caches each parsed definition for the life of the
// process. Concurrent first loads of the same id share one parse.
package standards

import (
	"sort"
	"sync"

	"github.com/JonMunkholm/sdtm/internal/core"
)

// Group tags used in the catalog.
const (
	GroupSDTM        = "SDTM"
	GroupSDTMIG      = "SDTMIG"
	GroupDefineXML   = "DefineXML"
	GroupTerminology = "Terminology"
)

// builtinCatalog lists the standards shipped with the service.
var builtinCatalog = []core.StandardSummary{
	{
		ID:          "sdtm-v2-0",
		Name:        "CDISC SDTM",
		Version:     "2.0",
		Group:       GroupSDTM,
		Description: "Study Data Tabulation Model core model defining standard domains, variables, and structures for clinical study data.",
		Source:      "SDTM_v2.0.pdf",
	},
	{
		ID:          "sdtmig-v3-4",
		Name:        "SDTMIG",
		Version:     "3.4",
		Group:       GroupSDTMIG,
		Description: "SDTM Implementation Guide 3.4 with executable domain rules.",
		Source:      "SDTMIG_v3.4.pdf",
	},
	{
		ID:          "sdtmig-v4-3",
		Name:        "SDTMIG",
		Version:     "4.3",
		Group:       GroupSDTMIG,
		Description: "SDTM Implementation Guide 4.3 with executable domain rules.",
		Source:      "SDTMIG_v4.3.pdf",
	},
	{
		ID:          "sdtmig-3-4",
		Name:        "SDTM Implementation Guide",
		Version:     "3.4",
		Group:       GroupSDTMIG,
		Description: "Implementation guidance for SDTM with detailed domain structures and variable metadata.",
		Source:      "SDTMIG_v3.4.xlsx",
	},
	{
		ID:          "ct-2025-03",
		Name:        "CDISC Controlled Terminology",
		Version:     "2025-03",
		Group:       GroupTerminology,
		Description: "Controlled terminology codelists for SDTM domains.",
		Source:      "SDTM_CT_2025-03-28.xlsx",
	},
	{
		ID:          "terminology-2025-03-28",
		Name:        "Controlled Terminology",
		Version:     "2025-03-28",
		Group:       GroupTerminology,
		Description: "Controlled terminology package for SDTM domains.",
		Source:      "SDTM_CT_2025-03-28.xlsx",
	},
	{
		ID:          "define-xml-v2",
		Name:        "Define-XML Specification",
		Version:     "2.0",
		Group:       GroupDefineXML,
		Description: "Specification for describing tabulation dataset metadata for regulatory review.",
		Source:      "https://www.cdisc.org/standards/foundational/define-xml",
	},
}

// Catalog is the set of known standards. Safe for concurrent use.
type Catalog struct {
	mu      sync.RWMutex
	entries map[string]core.StandardSummary
}

// NewCatalog creates a catalog from entries. Later duplicates replace
// earlier ones.
func NewCatalog(entries ...core.StandardSummary) *Catalog {
	c := &Catalog{entries: make(map[string]core.StandardSummary, len(entries))}
	for _, e := range entries {
		c.entries[e.ID] = e
	}
	return c
}

// DefaultCatalog returns a catalog populated with the built-in standards.
func DefaultCatalog() *Catalog {
	return NewCatalog(builtinCatalog...)
}

// Add inserts or replaces an entry.
func (c *Catalog) Add(s core.StandardSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[s.ID] = s
}

// Get returns the entry for id.
func (c *Catalog) Get(id string) (core.StandardSummary, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.entries[id]
	return s, ok
}

// List returns all entries sorted by group then id.
func (c *Catalog) List() []core.StandardSummary {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]core.StandardSummary, 0, len(c.entries))
	for _, s := range c.entries {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Group != out[j].Group {
			return out[i].Group < out[j].Group
		}
		return out[i].ID < out[j].ID
	})
	return out
}
