// Package catalog holds the static registry of queryable analytics
// datasets and resolves free-text requests to one of them.
package catalog

import "errors"

// ErrEmptyCatalog is returned when resolution is attempted against a
// catalog with no data sources. The catalog is static, so hitting this
// at runtime means the process was wired incorrectly.
var ErrEmptyCatalog = errors.New("catalog: no data sources registered")

// DataSource describes one queryable table in the analytics store.
type DataSource struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Columns     []string `json:"columns"`
	TimeColumn  string   `json:"time_column"`
}

// Catalog is the immutable set of data sources known at process start.
type Catalog struct {
	sources []DataSource
}

// New creates a Catalog from the given data sources.
func New(sources ...DataSource) *Catalog {
	return &Catalog{sources: sources}
}

// Sources returns all registered data sources in registration order.
func (c *Catalog) Sources() []DataSource {
	return c.sources
}

// ByName returns the data source with the given table name.
func (c *Catalog) ByName(name string) (DataSource, bool) {
	for _, s := range c.sources {
		if s.Name == name {
			return s, true
		}
	}
	return DataSource{}, false
}

// Table names of the two ERCOT datasets the analytics store carries.
const (
	SettlementPrices = "ercot_settlement_prices"
	CapacityMonitor  = "ercot_capacity_monitor"
)

// Default returns the built-in ERCOT catalog: real-time settlement
// point prices and the system capacity monitor, both keyed on timestamp.
func Default() *Catalog {
	return New(
		DataSource{
			Name:        SettlementPrices,
			Description: "Real-time settlement point prices across ERCOT zones and hubs",
			Columns: []string{
				"timestamp",
				"hb_busavg", "hb_houston", "hb_north", "hb_south", "hb_west",
				"lz_houston", "lz_north", "lz_south", "lz_west",
			},
			TimeColumn: "timestamp",
		},
		DataSource{
			Name:        CapacityMonitor,
			Description: "ERCOT system capacity, reserves, and ancillary services data",
			Columns:     []string{"timestamp", "category", "subcategory", "value", "unit"},
			TimeColumn:  "timestamp",
		},
	)
}
