// Package agent classifies shopper queries and runs the task handler that
// owns each category.
package agent

import (
	"context"

	"github.com/tidwall/gjson"

	agentmodel "github.com/zhouzirui/z-market/backend/internal/model/agent"
)

// Completer is the text-generation gateway used for classification and
// entity extraction.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Catalog is the product and recipe lookup surface the handlers need.
type Catalog interface {
	SearchProducts(ctx context.Context, name string) ([]gjson.Result, error)
	SearchRecipes(ctx context.Context, name string) ([]gjson.Result, error)
	FindProducts(ctx context.Context, name string) ([]gjson.Result, error)
	BestRecipeByIngredients(ctx context.Context, productIDs []string) (gjson.Result, error)
	Recipe(ctx context.Context, id string) (gjson.Result, error)
}

// Handler answers one category of query. Process never fails: problems are
// reported as explanatory text with no structured results.
type Handler interface {
	Process(ctx context.Context, query, sessionID string) agentmodel.Result
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, query, sessionID string) agentmodel.Result

// Process calls f.
func (f HandlerFunc) Process(ctx context.Context, query, sessionID string) agentmodel.Result {
	return f(ctx, query, sessionID)
}
