// Package tools exposes the memory system to an agent runtime as five
// callable tools: remember, recall, why, forget, and correct. Each tool
// carries a JSON schema over its arguments and returns a
// JSON-serializable result.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/clawdbot/sheep/pkg/memstore"
	"github.com/clawdbot/sheep/pkg/recall"
)

// Tool is one agent-callable operation.
type Tool struct {
	Name        string
	Description string
	Schema      *jsonschema.Schema

	invoke func(ctx context.Context, args []byte) (any, error)
}

// Invoke decodes args (JSON) and runs the tool.
func (t *Tool) Invoke(ctx context.Context, args []byte) (any, error) {
	return t.invoke(ctx, args)
}

// Kit binds the five tools to one agent's store and recall engine.
type Kit struct {
	store  *memstore.Store
	recall *recall.Engine
}

// NewKit creates a tool kit. engine may be nil if recall is not wired;
// the recall tool then degrades to the engine-less envelope.
func NewKit(store *memstore.Store, engine *recall.Engine) *Kit {
	return &Kit{store: store, recall: engine}
}

// Tools returns the five tools in their canonical order.
func (k *Kit) Tools() []*Tool {
	return []*Tool{
		k.rememberTool(),
		k.recallTool(),
		k.whyTool(),
		k.forgetTool(),
		k.correctTool(),
	}
}

func newTool[Args any](name, description string, fn func(ctx context.Context, args Args) (any, error)) *Tool {
	schema, err := jsonschema.For[Args](nil)
	if err != nil {
		panic(fmt.Sprintf("tools: schema for %s: %v", name, err))
	}
	return &Tool{
		Name:        name,
		Description: description,
		Schema:      schema,
		invoke: func(ctx context.Context, raw []byte) (any, error) {
			var args Args
			if len(raw) > 0 {
				if err := json.Unmarshal(raw, &args); err != nil {
					return nil, fmt.Errorf("tools: %s: bad arguments: %w", name, err)
				}
			}
			return fn(ctx, args)
		},
	}
}
