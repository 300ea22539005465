package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/gridviz/gridviz/internal/inference"
)

// fakeChatter returns a canned response or error for the classify step.
type fakeChatter struct {
	response string
	err      error
	called   bool
}

func (f *fakeChatter) Chat(ctx context.Context, model string, messages []inference.Message, schema *inference.Schema) (string, error) {
	f.called = true
	return f.response, f.err
}

func TestResolveKeywords(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"price terms", "show me west hub prices", SettlementPrices},
		{"settlement", "settlement point pricing today", SettlementPrices},
		{"capacity terms", "current operating reserve capacity", CapacityMonitor},
		{"grid stress", "is the grid under stress", CapacityMonitor},
		// "grid" outranks "price": capacity terms are checked first.
		{"mixed terms", "grid capacity vs price", CapacityMonitor},
	}

	r := NewResolver(Default(), nil, "")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := r.Resolve(context.Background(), tt.text)
			if err != nil {
				t.Fatalf("Resolve(%q): %v", tt.text, err)
			}
			if src.Name != tt.want {
				t.Errorf("Resolve(%q) = %s, want %s", tt.text, src.Name, tt.want)
			}
		})
	}
}

func TestResolveAmbiguousUsesClassifier(t *testing.T) {
	chatter := &fakeChatter{response: `{"table": "ercot_settlement_prices"}`}
	r := NewResolver(Default(), chatter, "test-model")

	src, err := r.Resolve(context.Background(), "what happened this afternoon")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !chatter.called {
		t.Error("expected classifier to be consulted for ambiguous text")
	}
	if src.Name != SettlementPrices {
		t.Errorf("Resolve = %s, want %s", src.Name, SettlementPrices)
	}
}

func TestResolveClassifierFailureFallsBackToDefault(t *testing.T) {
	tests := []struct {
		name    string
		chatter *fakeChatter
	}{
		{"transport error", &fakeChatter{err: errors.New("connection refused")}},
		{"garbage response", &fakeChatter{response: "not json at all"}},
		{"unknown table", &fakeChatter{response: `{"table": "ercot_wind_forecast"}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(Default(), tt.chatter, "test-model")
			src, err := r.Resolve(context.Background(), "what happened this afternoon")
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if src.Name != CapacityMonitor {
				t.Errorf("Resolve = %s, want default %s", src.Name, CapacityMonitor)
			}
		})
	}
}

func TestResolveKeywordMatchSkipsClassifier(t *testing.T) {
	chatter := &fakeChatter{response: `{"table": "ercot_capacity_monitor"}`}
	r := NewResolver(Default(), chatter, "test-model")

	if _, err := r.Resolve(context.Background(), "houston hub prices"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if chatter.called {
		t.Error("classifier should not run when keywords match")
	}
}

func TestResolveEmptyCatalog(t *testing.T) {
	r := NewResolver(New(), nil, "")
	if _, err := r.Resolve(context.Background(), "anything"); !errors.Is(err, ErrEmptyCatalog) {
		t.Errorf("Resolve on empty catalog = %v, want ErrEmptyCatalog", err)
	}
}

func TestDefaultCatalog(t *testing.T) {
	c := Default()

	for _, name := range []string{SettlementPrices, CapacityMonitor} {
		src, ok := c.ByName(name)
		if !ok {
			t.Fatalf("Default() missing %s", name)
		}
		if src.TimeColumn != "timestamp" {
			t.Errorf("%s time column = %q, want timestamp", name, src.TimeColumn)
		}
		if len(src.Columns) == 0 {
			t.Errorf("%s has no columns", name)
		}
	}
}
