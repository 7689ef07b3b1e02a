package agent

import "strings"

// Classification names the task handler that owns a query.
type Classification string

const (
	ProductSearch         Classification = "product_search"
	RecipeSearch          Classification = "recipe_search"
	IngredientBasedRecipe Classification = "ingredient_based_recipe"
	InfoAgent             Classification = "info_agent"
)

// Classifications lists every routable category in prompt order.
var Classifications = []Classification{ProductSearch, RecipeSearch, IngredientBasedRecipe, InfoAgent}

// ParseClassification strictly decodes classifier output. Empty or unknown
// values fall back to InfoAgent.
func ParseClassification(raw string) Classification {
	switch Classification(strings.ToLower(strings.TrimSpace(raw))) {
	case ProductSearch:
		return ProductSearch
	case RecipeSearch:
		return RecipeSearch
	case IngredientBasedRecipe:
		return IngredientBasedRecipe
	case InfoAgent:
		return InfoAgent
	default:
		return InfoAgent
	}
}
