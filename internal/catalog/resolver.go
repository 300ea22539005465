package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gridviz/gridviz/internal/inference"
)

const classifyTimeout = 5 * time.Second

// Keyword sets for the two dataset domains. The sets are disjoint;
// capacity/grid-operations terms take priority because "stress",
// "reserve" and "outage" language is the harder case to disambiguate.
var (
	capacityKeywords = []string{"capacity", "reserve", "ancillary", "outage", "emr", "grid", "stress"}
	priceKeywords    = []string{"price", "pricing", "settlement", "hub", "zone", "north", "houston", "south", "west"}
)

// Chatter is the chat-completion surface the resolver needs for
// ambiguous requests. Satisfied by *inference.Client.
type Chatter interface {
	Chat(ctx context.Context, model string, messages []inference.Message, schema *inference.Schema) (string, error)
}

// Resolver maps free-text requests to exactly one catalog data source.
type Resolver struct {
	catalog *Catalog
	client  Chatter // optional; nil skips the AI-assisted step
	model   string
}

// NewResolver creates a Resolver over the given catalog. client may be
// nil, in which case ambiguous requests go straight to the default.
func NewResolver(c *Catalog, client Chatter, model string) *Resolver {
	return &Resolver{catalog: c, client: client, model: model}
}

// Resolve picks the data source for the request text. Capacity terms
// are tested before price terms; if neither set matches, the AI
// classifier is consulted with the catalog entries as closed choices.
// If that also fails, the capacity monitor is the documented default:
// operational monitoring is the more frequently ambiguous case.
func (r *Resolver) Resolve(ctx context.Context, text string) (DataSource, error) {
	if len(r.catalog.sources) == 0 {
		return DataSource{}, ErrEmptyCatalog
	}

	lower := strings.ToLower(text)

	if containsAny(lower, capacityKeywords) {
		if src, ok := r.catalog.ByName(CapacityMonitor); ok {
			return src, nil
		}
	}
	if containsAny(lower, priceKeywords) {
		if src, ok := r.catalog.ByName(SettlementPrices); ok {
			return src, nil
		}
	}

	if r.client != nil {
		if src, ok := r.classify(ctx, text); ok {
			return src, nil
		}
	}

	if src, ok := r.catalog.ByName(CapacityMonitor); ok {
		return src, nil
	}
	// Catalog without the default entry: fall back to the first source.
	return r.catalog.sources[0], nil
}

// classify asks the model to pick one table name from the catalog.
// Any transport or parse failure is logged and reported as a miss.
func (r *Resolver) classify(ctx context.Context, text string) (DataSource, bool) {
	ctx, cancel := context.WithTimeout(ctx, classifyTimeout)
	defer cancel()

	var names []string
	var desc strings.Builder
	for _, s := range r.catalog.sources {
		names = append(names, s.Name)
		fmt.Fprintf(&desc, "- %s: %s\n", s.Name, s.Description)
	}

	prompt := fmt.Sprintf(
		"Classify the analytics request below into exactly one dataset.\n\n"+
			"Request: %q\n\nDatasets:\n%s\n"+
			"Respond with JSON: {\"table\": \"<dataset name>\"}. "+
			"The value must be one of: %s.",
		text, desc.String(), strings.Join(names, ", "),
	)

	raw, err := r.client.Chat(ctx, r.model, []inference.Message{
		{Role: "user", Content: prompt},
	}, &inference.Schema{
		Type: "object",
		Properties: map[string]inference.SchemaProperty{
			"table": {Type: "string", Description: "Name of the chosen dataset"},
		},
		Required: []string{"table"},
	})
	if err != nil {
		slog.Warn("data source classification failed", "error", err)
		return DataSource{}, false
	}

	var choice struct {
		Table string `json:"table"`
	}
	if err := json.Unmarshal([]byte(raw), &choice); err != nil {
		slog.Warn("unparsable classification response", "error", err, "response", raw)
		return DataSource{}, false
	}

	src, ok := r.catalog.ByName(strings.TrimSpace(choice.Table))
	if !ok {
		slog.Warn("classifier picked unknown table", "table", choice.Table)
		return DataSource{}, false
	}
	return src, true
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}
