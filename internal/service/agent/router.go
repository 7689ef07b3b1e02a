package agent

import (
	"context"
	"log/slog"
	"time"

	agentmodel "github.com/zhouzirui/z-market/backend/internal/model/agent"
	"github.com/zhouzirui/z-market/backend/pkg/logx"
)

// Router picks the handler for a query and runs it.
type Router struct {
	llm      Completer
	handlers map[agentmodel.Classification]Handler
}

// NewRouter builds a router with the four standard handlers.
func NewRouter(llm Completer, catalog Catalog) *Router {
	return NewRouterWithHandlers(llm, map[agentmodel.Classification]Handler{
		agentmodel.ProductSearch:         NewProductSearch(llm, catalog),
		agentmodel.RecipeSearch:          NewRecipeSearch(llm, catalog),
		agentmodel.IngredientBasedRecipe: NewIngredientRecipe(llm, catalog),
		agentmodel.InfoAgent:             NewInfo(llm),
	})
}

// NewRouterWithHandlers builds a router over caller supplied handlers.
// A handler must be present for agentmodel.InfoAgent; it is the fallback.
func NewRouterWithHandlers(llm Completer, handlers map[agentmodel.Classification]Handler) *Router {
	if _, ok := handlers[agentmodel.InfoAgent]; !ok {
		panic("agent: router requires an info_agent handler")
	}
	return &Router{llm: llm, handlers: handlers}
}

// Classify asks the gateway for the query category. Unknown output and
// gateway failures both resolve to agentmodel.InfoAgent.
func (r *Router) Classify(ctx context.Context, query string) agentmodel.Classification {
	raw, err := r.llm.Complete(ctx, classificationPrompt, query)
	if err != nil {
		slog.Warn("query classification failed, defaulting to info agent", logx.Error(err))
		return agentmodel.InfoAgent
	}
	return agentmodel.ParseClassification(raw)
}

// Route classifies query and returns the owning handler's result with the
// classification attached. Blocking; run it on a worker.
func (r *Router) Route(ctx context.Context, query, sessionID string) agentmodel.Result {
	started := time.Now()
	class := r.Classify(ctx, query)

	h, ok := r.handlers[class]
	if !ok {
		class = agentmodel.InfoAgent
		h = r.handlers[class]
	}

	slog.Info("query routed", logx.Session(sessionID), slog.String("agent", string(class)))
	res := h.Process(ctx, query, sessionID)
	res.Agent = class

	slog.Info("query handled",
		logx.Session(sessionID),
		slog.String("agent", string(class)),
		slog.Bool("results", res.Results != nil),
		slog.Duration("elapsed", time.Since(started)),
	)
	return res
}
