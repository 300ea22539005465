package query

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gridviz/gridviz/internal/catalog"
	"github.com/gridviz/gridviz/internal/inference"
)

const generationTimeout = 30 * time.Second

// Chatter is the chat-completion surface the LLM strategy needs.
// Satisfied by *inference.Client.
type Chatter interface {
	Chat(ctx context.Context, model string, messages []inference.Message, schema *inference.Schema) (string, error)
}

// LLMGenerator generates query plans through the inference service.
// Transport and parse failures are returned as errors; the orchestrator
// falls back to the rule-based strategy exactly once.
type LLMGenerator struct {
	client Chatter
	model  string
}

// NewLLMGenerator creates an LLMGenerator using the given client and model.
func NewLLMGenerator(client Chatter, model string) *LLMGenerator {
	return &LLMGenerator{client: client, model: model}
}

// Generate asks the model for a Plan and parses the structured response.
func (g *LLMGenerator) Generate(ctx context.Context, text string, src catalog.DataSource) (Plan, error) {
	ctx, cancel := context.WithTimeout(ctx, generationTimeout)
	defer cancel()

	raw, err := g.client.Chat(ctx, g.model, BuildPrompt(text, src), planSchema())
	if err != nil {
		return Plan{}, fmt.Errorf("generation chat: %w", err)
	}

	payload, ok := extractJSON(raw)
	if !ok {
		return Plan{}, fmt.Errorf("no JSON object in generation response")
	}

	var plan Plan
	if err := json.Unmarshal([]byte(payload), &plan); err != nil {
		return Plan{}, fmt.Errorf("unmarshalling generation response: %w", err)
	}

	if strings.TrimSpace(plan.SQL) == "" {
		return Plan{}, fmt.Errorf("generation response missing sql_query")
	}
	if plan.Title == "" {
		plan.Title = "Generated Visualization"
	}
	return plan, nil
}

// extractJSON returns the outermost JSON object embedded in s. Models
// occasionally wrap the object in prose or code fences even when a
// schema is requested.
func extractJSON(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}
