package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	agentmodel "github.com/zhouzirui/z-market/backend/internal/model/agent"
	"github.com/zhouzirui/z-market/backend/pkg/logx"
)

// extract runs an extraction prompt and normalizes the answer the way the
// catalog expects it.
func extract(ctx context.Context, llm Completer, system, query string) (string, error) {
	out, err := llm.Complete(ctx, system, query)
	if err != nil {
		return "", err
	}
	return strings.ToLower(strings.TrimSpace(out)), nil
}

func textf(format string, args ...any) agentmodel.Result {
	return agentmodel.TextResult(fmt.Sprintf(format, args...))
}

// ProductSearch locates products in the store.
type ProductSearch struct {
	llm     Completer
	catalog Catalog
}

// NewProductSearch 创建商品搜索处理器
func NewProductSearch(llm Completer, catalog Catalog) *ProductSearch {
	return &ProductSearch{llm: llm, catalog: catalog}
}

// Process extracts the product name and returns its store locations.
func (h *ProductSearch) Process(ctx context.Context, query, sessionID string) agentmodel.Result {
	name, err := extract(ctx, h.llm, productExtractionPrompt, query)
	if err != nil {
		slog.Warn("product name extraction failed", logx.Session(sessionID), logx.Error(err))
		return textf(productErrorFmt, err)
	}
	slog.Debug("product name extracted", logx.Session(sessionID), slog.String("name", name))

	matches, err := h.catalog.SearchProducts(ctx, name)
	if err != nil {
		slog.Warn("product search failed", logx.Session(sessionID), slog.String("name", name), logx.Error(err))
		return textf(productErrorFmt, err)
	}

	payload := productsPayload(matches)
	if len(payload.Products) == 0 {
		return agentmodel.TextResult(productNotFound)
	}
	return agentmodel.TableResult(payload)
}

// RecipeSearch finds a recipe by name together with where its ingredients are.
type RecipeSearch struct {
	llm     Completer
	catalog Catalog
}

// NewRecipeSearch 创建菜谱搜索处理器
func NewRecipeSearch(llm Completer, catalog Catalog) *RecipeSearch {
	return &RecipeSearch{llm: llm, catalog: catalog}
}

// Process returns the first recipe matching the extracted name.
func (h *RecipeSearch) Process(ctx context.Context, query, sessionID string) agentmodel.Result {
	name, err := extract(ctx, h.llm, recipeExtractionPrompt, query)
	if err != nil {
		slog.Warn("recipe name extraction failed", logx.Session(sessionID), logx.Error(err))
		return textf(recipeErrorFmt, err)
	}

	matches, err := h.catalog.SearchRecipes(ctx, name)
	if err != nil {
		slog.Warn("recipe search failed", logx.Session(sessionID), slog.String("name", name), logx.Error(err))
		return textf(recipeErrorFmt, err)
	}
	if len(matches) == 0 {
		return agentmodel.TextResult(recipeNotFound)
	}

	first := matches[0]
	if !first.Get("recipe").IsObject() {
		return agentmodel.TextResult(recipeNotFound)
	}
	return agentmodel.TableResult(recipePayload(first.Get("recipe"), first.Get("ingredients_details")))
}

// IngredientRecipe suggests the recipe that best uses the listed ingredients.
type IngredientRecipe struct {
	llm     Completer
	catalog Catalog
}

// NewIngredientRecipe 创建按食材推荐菜谱的处理器
func NewIngredientRecipe(llm Completer, catalog Catalog) *IngredientRecipe {
	return &IngredientRecipe{llm: llm, catalog: catalog}
}

// Process resolves the listed ingredients and returns the best recipe for them.
func (h *IngredientRecipe) Process(ctx context.Context, query, sessionID string) agentmodel.Result {
	raw, err := extract(ctx, h.llm, ingredientExtractionPrompt, query)
	if err != nil {
		slog.Warn("ingredient extraction failed", logx.Session(sessionID), logx.Error(err))
		return textf(recipesErrorFmt, err)
	}

	ingredients := splitIngredients(raw)
	if len(ingredients) == 0 {
		return agentmodel.TextResult(ingredientsUnset)
	}

	ids := h.resolve(ctx, sessionID, ingredients)
	if len(ids) == 0 {
		return agentmodel.TextResult(ingredientsUnset)
	}

	best, err := h.catalog.BestRecipeByIngredients(ctx, ids)
	if err != nil {
		slog.Warn("best recipe lookup failed", logx.Session(sessionID), logx.Error(err))
		return textf(recipesErrorFmt, err)
	}
	if apiErr := best.Get("error"); apiErr.Exists() {
		return textf(recipesErrorFmt, apiErr.String())
	}

	recipeID := best.Get("id").String()
	if recipeID == "" {
		return textf(recipesErrorFmt, errors.New(missingRecipeID))
	}

	details, err := h.catalog.Recipe(ctx, recipeID)
	if err != nil {
		slog.Warn("recipe details lookup failed", logx.Session(sessionID), slog.String("recipe_id", recipeID), logx.Error(err))
		return textf(recipesErrorFmt, err)
	}
	if !details.Get("recipe").IsObject() {
		return agentmodel.TextResult(noRecipeForMix)
	}
	return agentmodel.TableResult(recipePayload(details.Get("recipe"), details.Get("ingredients_details")))
}

// resolve maps ingredient names to the id of their first catalog match.
// Names that fail or match nothing are dropped.
func (h *IngredientRecipe) resolve(ctx context.Context, sessionID string, ingredients []string) []string {
	ids := make([]string, 0, len(ingredients))
	for _, name := range ingredients {
		matches, err := h.catalog.FindProducts(ctx, name)
		if err != nil {
			slog.Warn("ingredient lookup failed", logx.Session(sessionID), slog.String("ingredient", name), logx.Error(err))
			continue
		}
		if len(matches) == 0 {
			slog.Debug("ingredient not in catalog", logx.Session(sessionID), slog.String("ingredient", name))
			continue
		}
		if id := matches[0].Get("id").String(); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func splitIngredients(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Info answers questions about what the assistant can do.
type Info struct {
	llm Completer
}

// NewInfo 创建能力问答处理器
func NewInfo(llm Completer) *Info {
	return &Info{llm: llm}
}

// Process answers capability questions with a fixed reply.
func (h *Info) Process(ctx context.Context, query, sessionID string) agentmodel.Result {
	answer, err := extract(ctx, h.llm, capabilityPrompt, query)
	if err != nil {
		slog.Warn("capability classification failed, using keywords", logx.Session(sessionID), logx.Error(err))
		if mentionsCapabilities(query) {
			return agentmodel.TextResult(capabilityList)
		}
		return textf(infoErrorFmt, err)
	}

	switch answer {
	case "yes":
		return agentmodel.TextResult(capabilityList)
	case "no":
		return agentmodel.TextResult(declineReply)
	default:
		return agentmodel.TextResult(rephraseReply)
	}
}

func mentionsCapabilities(query string) bool {
	q := strings.ToLower(query)
	for _, kw := range capabilityKeywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}
