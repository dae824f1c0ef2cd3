// Package catalog holds the care guidance attached to each disease the
// classifier can report.
package catalog

import (
	"sort"
	"strings"

	"go-crop-inspector/pkg/models"
)

// Catalog is an immutable disease -> recommendation table. Build it once with
// New and share the pointer; no method mutates it.
type Catalog struct {
	records map[string]models.RecommendationRecord
	ids     []string
}

// New builds a catalog from the given records. Keys are lowercased.
func New(records map[string]models.RecommendationRecord) *Catalog {
	c := &Catalog{
		records: make(map[string]models.RecommendationRecord, len(records)),
		ids:     make([]string, 0, len(records)),
	}
	for id, rec := range records {
		key := strings.ToLower(strings.TrimSpace(id))
		c.records[key] = rec.Clone()
		c.ids = append(c.ids, key)
	}
	sort.Strings(c.ids)
	return c
}

// Default returns the built-in crop disease catalog.
func Default() *Catalog {
	return New(defaultRecords())
}

// Lookup returns the record for disease, matched case-insensitively. Unknown
// identifiers get the fallback record; Lookup never fails.
func (c *Catalog) Lookup(disease string) models.RecommendationRecord {
	if rec, ok := c.records[strings.ToLower(strings.TrimSpace(disease))]; ok {
		return rec.Clone()
	}
	return Fallback()
}

// Has reports whether disease is a known identifier.
func (c *Catalog) Has(disease string) bool {
	_, ok := c.records[strings.ToLower(strings.TrimSpace(disease))]
	return ok
}

// IDs returns the known identifiers in lexical order.
func (c *Catalog) IDs() []string {
	return append([]string(nil), c.ids...)
}

// List returns the full catalog as exposed to clients.
func (c *Catalog) List() models.DiseaseListing {
	recs := make(map[string]models.RecommendationRecord, len(c.records))
	for id, rec := range c.records {
		recs[id] = rec.Clone()
	}
	return models.DiseaseListing{
		Diseases:        c.IDs(),
		Recommendations: recs,
	}
}

// Fallback is returned for identifiers absent from the catalog.
func Fallback() models.RecommendationRecord {
	return models.RecommendationRecord{
		ImmediateActions: []string{
			"Monitor plant health",
			"Consult with agricultural expert",
			"Follow standard crop care practices",
		},
		PreventiveMeasures: []string{
			"Regular monitoring",
			"Proper plant care",
			"Maintain optimal growing conditions",
		},
		MonitoringFrequency: models.MonitorWeekly,
		RiskLevel:           models.RiskUnknown,
	}
}

// ProcessingFailure is attached to results that could not be classified.
func ProcessingFailure() models.RecommendationRecord {
	return models.RecommendationRecord{
		ImmediateActions: []string{
			"Unable to process image",
			"Please try again or contact support",
		},
		PreventiveMeasures: []string{
			"Regular monitoring",
			"Consult with agricultural expert",
		},
		MonitoringFrequency: models.MonitorDaily,
		RiskLevel:           models.RiskUnknown,
	}
}
