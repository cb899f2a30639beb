package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xhad/planfinder/internal/models"
	"github.com/xhad/planfinder/internal/types"
)

type planArgs struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

// validate defaults top_k. Any query text is accepted, including an empty one.
func (a *planArgs) validate() error {
	if a.TopK == 0 {
		a.TopK = 1
	}
	return nil
}

const planParams = `{
	"type": "object",
	"properties": {
		"query": {
			"type": "string",
			"description": "What the user wants to do, in their own words"
		},
		"top_k": {
			"type": "integer",
			"description": "Number of plans to return (default: 1)"
		}
	},
	"required": ["query"]
}`

// FindSimilarPlan returns the corpus plans nearest to the user's request.
type FindSimilarPlan struct {
	finder types.PlanFinder
}

func NewFindSimilarPlan(finder types.PlanFinder) *FindSimilarPlan {
	return &FindSimilarPlan{finder: finder}
}

func (t *FindSimilarPlan) Name() string {
	return "find_similar_plan"
}

func (t *FindSimilarPlan) Description() string {
	return "Finds the most similar plan from the list of common plans based on the user's query."
}

func (t *FindSimilarPlan) Parameters() json.RawMessage {
	return json.RawMessage(planParams)
}

func (t *FindSimilarPlan) Failure() string {
	return "finding similar plan"
}

func (t *FindSimilarPlan) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var req planArgs
	if err := decodeArgs(args, &req); err != nil {
		return "", err
	}
	if err := req.validate(); err != nil {
		return "", err
	}

	matches, err := t.finder.FindSimilar(ctx, req.Query, req.TopK)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "No similar plan found.", nil
	}
	if len(matches) == 1 {
		return "Most similar plan: " + matches[0].Plan.Text, nil
	}

	var sb strings.Builder
	sb.WriteString("Most similar plans:")
	for i, m := range matches {
		fmt.Fprintf(&sb, "\n%d. %s (distance: %.4f)", i+1, m.Plan.Text, m.Distance)
	}
	return sb.String(), nil
}

// Explainer turns matched plans into advice for a query.
type Explainer interface {
	Explain(ctx context.Context, query string, matches []models.Match) (string, error)
}

// ExplainPlan finds the nearest plans and asks the advisor model to relate
// them to the user's request.
type ExplainPlan struct {
	finder  types.PlanFinder
	advisor Explainer
}

func NewExplainPlan(finder types.PlanFinder, advisor Explainer) *ExplainPlan {
	return &ExplainPlan{finder: finder, advisor: advisor}
}

func (t *ExplainPlan) Name() string {
	return "explain_plan"
}

func (t *ExplainPlan) Description() string {
	return "Finds the plans closest to the user's query and explains how to carry them out."
}

func (t *ExplainPlan) Parameters() json.RawMessage {
	return json.RawMessage(planParams)
}

func (t *ExplainPlan) Failure() string {
	return "explaining plan"
}

func (t *ExplainPlan) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var req planArgs
	if err := decodeArgs(args, &req); err != nil {
		return "", err
	}
	if err := req.validate(); err != nil {
		return "", err
	}

	matches, err := t.finder.FindSimilar(ctx, req.Query, req.TopK)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "No similar plan found.", nil
	}
	return t.advisor.Explain(ctx, req.Query, matches)
}
