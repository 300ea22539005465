// Package grafana builds complete dashboard panel definitions from
// chart metadata and provisions them through the Grafana HTTP API.
package grafana

// Chart-type tags accepted from generation. Anything outside the
// closed set renders as a timeseries.
const (
	ChartTimeseries = "timeseries"
	ChartLine       = "line"
	ChartBar        = "bar"
	ChartArea       = "area"
	ChartStat       = "stat"
	ChartGauge      = "gauge"
	ChartTable      = "table"
)

// NormalizeChartType maps a generation tag onto the closed chart-type
// set, defaulting unknown tags to timeseries.
func NormalizeChartType(tag string) string {
	switch tag {
	case ChartTimeseries, ChartLine:
		return ChartTimeseries
	case ChartBar, ChartArea, ChartStat, ChartGauge, ChartTable:
		return tag
	default:
		return ChartTimeseries
	}
}

// GridPos places a panel on the dashboard grid.
type GridPos struct {
	H int `json:"h"`
	W int `json:"w"`
	X int `json:"x"`
	Y int `json:"y"`
}

// DatasourceRef identifies the Grafana data source a target queries.
type DatasourceRef struct {
	UID  string `json:"uid"`
	Type string `json:"type"`
}

// Target is one raw-SQL query target within a panel.
type Target struct {
	Datasource DatasourceRef `json:"datasource"`
	Format     string        `json:"format"`
	RawQuery   bool          `json:"rawQuery"`
	RawSQL     string        `json:"rawSql"`
	RefID      string        `json:"refId"`
}

// FieldConfig carries the per-field display configuration block.
type FieldConfig struct {
	Defaults  FieldDefaults `json:"defaults"`
	Overrides []any         `json:"overrides"`
}

// FieldDefaults is the defaults section of a field configuration.
type FieldDefaults struct {
	Custom     map[string]any `json:"custom,omitempty"`
	Color      map[string]any `json:"color,omitempty"`
	Mappings   []any          `json:"mappings"`
	Thresholds Thresholds     `json:"thresholds"`
	Unit       string         `json:"unit,omitempty"`
}

// Thresholds is the field threshold configuration.
type Thresholds struct {
	Mode  string          `json:"mode"`
	Steps []ThresholdStep `json:"steps"`
}

// ThresholdStep is one step in a threshold ladder. A nil Value marks
// the base step.
type ThresholdStep struct {
	Value *float64 `json:"value"`
	Color string   `json:"color"`
}

// Panel is a complete Grafana panel definition.
type Panel struct {
	ID          int            `json:"id"`
	Title       string         `json:"title"`
	Type        string         `json:"type"`
	GridPos     GridPos        `json:"gridPos"`
	Targets     []Target       `json:"targets"`
	FieldConfig FieldConfig    `json:"fieldConfig"`
	Options     map[string]any `json:"options"`
	Datasource  DatasourceRef  `json:"datasource"`
}

// PanelBuilder maps chart-type tags onto complete panel definitions
// bound to one Grafana data source. Pure: no network or storage access.
type PanelBuilder struct {
	datasource DatasourceRef
}

// NewPanelBuilder creates a builder targeting the Postgres data source
// with the given Grafana UID.
func NewPanelBuilder(datasourceUID string) *PanelBuilder {
	return &PanelBuilder{
		datasource: DatasourceRef{
			UID:  datasourceUID,
			Type: "grafana-postgresql-datasource",
		},
	}
}

// Build produces the full panel definition for the chart type, title
// and sanitized query. The visual type, field configuration and options
// come from a fixed per-type lookup.
func (b *PanelBuilder) Build(chartType, title, sqlQuery string) Panel {
	kind := NormalizeChartType(chartType)

	format := "time_series"
	if kind == ChartTable {
		format = "table"
	}

	p := Panel{
		ID:      1,
		Title:   title,
		Type:    visualType(kind),
		GridPos: GridPos{H: 12, W: 24, X: 0, Y: 0},
		Targets: []Target{{
			Datasource: b.datasource,
			Format:     format,
			RawQuery:   true,
			RawSQL:     sqlQuery,
			RefID:      "A",
		}},
		FieldConfig: fieldConfigFor(kind),
		Options:     optionsFor(kind),
		Datasource:  b.datasource,
	}
	return p
}

// visualType maps the normalized chart kind to the Grafana panel type.
func visualType(kind string) string {
	switch kind {
	case ChartBar:
		return "barchart"
	case ChartStat:
		return "stat"
	case ChartGauge:
		return "gauge"
	case ChartTable:
		return "table"
	default:
		// timeseries and area share the panel type; area differs only
		// in fill opacity.
		return "timeseries"
	}
}

func fieldConfigFor(kind string) FieldConfig {
	defaults := FieldDefaults{
		Color:      map[string]any{"mode": "palette-classic"},
		Mappings:   []any{},
		Thresholds: defaultThresholds(),
	}

	switch kind {
	case ChartTimeseries, ChartArea:
		fill := 0
		if kind == ChartArea {
			fill = 25
		}
		defaults.Custom = map[string]any{
			"drawStyle":         "line",
			"lineInterpolation": "linear",
			"barAlignment":      0,
			"lineWidth":         1,
			"fillOpacity":       fill,
			"gradientMode":      "none",
			"spanNulls":         false,
			"insertNulls":       false,
			"showPoints":        "auto",
			"pointSize":         5,
			"stacking":          map[string]any{"mode": "none", "group": "A"},
			"axisPlacement":     "auto",
			"axisLabel":         "",
			"axisColorMode":     "text",
			"axisBorderShow":    false,
			"scaleDistribution": map[string]any{"type": "linear"},
			"axisCenteredZero":  false,
			"hideFrom":          map[string]any{"tooltip": false, "viz": false, "legend": false},
			"thresholdsStyle":   map[string]any{"mode": "off"},
		}
	case ChartBar:
		defaults.Custom = map[string]any{
			"lineWidth":    1,
			"fillOpacity":  80,
			"gradientMode": "none",
			"axisPlacement": "auto",
			"hideFrom":     map[string]any{"tooltip": false, "viz": false, "legend": false},
		}
	case ChartTable:
		defaults.Custom = map[string]any{
			"align":       "auto",
			"cellOptions": map[string]any{"type": "auto"},
			"inspect":     false,
		}
	}
	// stat and gauge carry no custom block; thresholds drive the display.
	return FieldConfig{Defaults: defaults, Overrides: []any{}}
}

func optionsFor(kind string) map[string]any {
	switch kind {
	case ChartStat:
		return map[string]any{
			"reduceOptions": map[string]any{"calcs": []string{"lastNotNull"}, "fields": "", "values": false},
			"orientation":   "auto",
			"textMode":      "auto",
			"colorMode":     "value",
			"graphMode":     "area",
			"justifyMode":   "auto",
		}
	case ChartGauge:
		return map[string]any{
			"reduceOptions":        map[string]any{"calcs": []string{"lastNotNull"}, "fields": "", "values": false},
			"orientation":          "auto",
			"showThresholdLabels":  false,
			"showThresholdMarkers": true,
		}
	case ChartTable:
		return map[string]any{
			"showHeader": true,
			"footer":     map[string]any{"show": false, "reducer": []string{"sum"}, "countRows": false},
		}
	default:
		return map[string]any{
			"tooltip": map[string]any{"mode": "single", "sort": "none"},
			"legend": map[string]any{
				"showLegend":  false,
				"displayMode": "hidden",
				"placement":   "right",
				"calcs":       []string{},
			},
		}
	}
}

func defaultThresholds() Thresholds {
	red := 80.0
	return Thresholds{
		Mode: "absolute",
		Steps: []ThresholdStep{
			{Value: nil, Color: "green"},
			{Value: &red, Color: "red"},
		},
	}
}
