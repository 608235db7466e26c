package client

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/quantumdmn/dmn-go/pkg/feel"
)

// Engine evaluates decisions within a single project.
type Engine struct {
	client    *Client
	projectID uuid.UUID
}

// NewEngine binds c to projectID, which must be a UUID.
func NewEngine(c *Client, projectID string) (*Engine, error) {
	id, err := uuid.Parse(projectID)
	if err != nil {
		return nil, fmt.Errorf("engine: invalid project id %q: %w", projectID, err)
	}
	return &Engine{client: c, projectID: id}, nil
}

// ProjectID returns the bound project.
func (e *Engine) ProjectID() uuid.UUID { return e.projectID }

// Evaluate converts input with feel.FromRaw and evaluates xmlID. A nil input
// sends an empty context. version 0 selects the latest version.
//
//	results, err := engine.Evaluate(ctx, "loan-approval", 0, map[string]any{
//	    "age":    25,
//	    "income": json.Number("50000.00"),
//	})
func (e *Engine) Evaluate(ctx context.Context, xmlID string, version int, input map[string]any) (map[string]EvaluationResult, error) {
	var v feel.Value
	if input != nil {
		v = feel.FromRaw(input)
	}
	return e.client.Evaluate(ctx, e.projectID, xmlID, version, v)
}

// EvaluateContext evaluates xmlID with an already-built FEEL context.
func (e *Engine) EvaluateContext(ctx context.Context, xmlID string, version int, input feel.Value) (map[string]EvaluationResult, error) {
	return e.client.Evaluate(ctx, e.projectID, xmlID, version, input)
}
