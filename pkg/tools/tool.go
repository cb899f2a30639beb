// Package tools exposes plan search, chain reads and explorer lookups as
// named tools that take JSON arguments and answer with a single string.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

type Tool interface {
	Name() string
	Description() string
	Parameters() json.RawMessage
	Execute(ctx context.Context, args json.RawMessage) (string, error)
}

// Failer names what a tool was doing, used to build its error reply:
// "Error <failure>: <details>".
type Failer interface {
	Failure() string
}

type Schema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

func ToSchema(t Tool) Schema {
	return Schema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters:  t.Parameters(),
	}
}

func decodeArgs(args json.RawMessage, v any) error {
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func addressParams(names ...string) json.RawMessage {
	props := make(map[string]any, len(names))
	for _, name := range names {
		props[name] = map[string]string{
			"type":        "string",
			"description": "Hex encoded Ethereum address",
		}
	}
	schema, _ := json.Marshal(map[string]any{
		"type":       "object",
		"properties": props,
		"required":   names,
	})
	return schema
}
