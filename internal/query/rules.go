package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/gridviz/gridviz/internal/catalog"
)

// RuleGenerator is the deterministic fallback strategy: a fixed
// keyword-to-template mapping per data source. It always returns a
// plan and never errors.
type RuleGenerator struct{}

// NewRuleGenerator creates the rule-based strategy.
func NewRuleGenerator() *RuleGenerator {
	return &RuleGenerator{}
}

// Generate maps the request onto a known-good query template for the
// resolved data source.
func (g *RuleGenerator) Generate(_ context.Context, text string, src catalog.DataSource) (Plan, error) {
	lower := strings.ToLower(text)

	switch src.Name {
	case catalog.SettlementPrices:
		return priceplan(lower), nil
	case catalog.CapacityMonitor:
		return Plan{
			SQL:       `SELECT timestamp AS time, value AS "Capacity Value", category AS "Category" FROM ercot_capacity_monitor WHERE $__timeFilter(timestamp) ORDER BY timestamp`,
			ChartType: "timeseries",
			Title:     "ERCOT Capacity Monitor",
		}, nil
	}

	// Unknown source: chart its first non-time column over time.
	return genericPlan(src), nil
}

func priceplan(lower string) Plan {
	switch {
	case strings.Contains(lower, "north"):
		return Plan{
			SQL:       `SELECT timestamp AS time, hb_north AS "North Hub Price", lz_north AS "North Load Zone" FROM ercot_settlement_prices WHERE $__timeFilter(timestamp) ORDER BY timestamp`,
			ChartType: "timeseries",
			Title:     "North Hub Settlement Prices",
		}
	case strings.Contains(lower, "houston"):
		return Plan{
			SQL:       `SELECT timestamp AS time, hb_houston AS "Houston Hub Price", lz_houston AS "Houston Load Zone" FROM ercot_settlement_prices WHERE $__timeFilter(timestamp) ORDER BY timestamp`,
			ChartType: "timeseries",
			Title:     "Houston Hub Settlement Prices",
		}
	case strings.Contains(lower, "south"):
		return Plan{
			SQL:       `SELECT timestamp AS time, hb_south AS "South Hub Price", lz_south AS "South Load Zone" FROM ercot_settlement_prices WHERE $__timeFilter(timestamp) ORDER BY timestamp`,
			ChartType: "timeseries",
			Title:     "South Hub Settlement Prices",
		}
	case strings.Contains(lower, "west"):
		return Plan{
			SQL:       `SELECT timestamp AS time, hb_west AS "West Hub Price", hb_houston AS "Houston Hub Price" FROM ercot_settlement_prices WHERE $__timeFilter(timestamp) ORDER BY timestamp`,
			ChartType: "timeseries",
			Title:     "West Hub Settlement Prices",
		}
	}
	return Plan{
		SQL:       `SELECT timestamp AS time, hb_busavg AS "Bus Average Price", hb_houston AS "Houston Hub Price", hb_north AS "North Hub Price" FROM ercot_settlement_prices WHERE $__timeFilter(timestamp) ORDER BY timestamp`,
		ChartType: "timeseries",
		Title:     "ERCOT Settlement Point Prices",
	}
}

func genericPlan(src catalog.DataSource) Plan {
	valueColumn := ""
	for _, c := range src.Columns {
		if c != src.TimeColumn {
			valueColumn = c
			break
		}
	}
	if valueColumn == "" {
		valueColumn = src.TimeColumn
	}
	return Plan{
		SQL: fmt.Sprintf(
			`SELECT %[1]s AS time, %[2]s FROM %[3]s WHERE $__timeFilter(%[1]s) ORDER BY %[1]s`,
			src.TimeColumn, valueColumn, src.Name,
		),
		ChartType: "timeseries",
		Title:     "Data Overview",
	}
}
