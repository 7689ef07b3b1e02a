package agent

import (
	"time"

	"github.com/tidwall/gjson"

	agentmodel "github.com/zhouzirui/z-market/backend/internal/model/agent"
)

// normalizeMatch flattens a {product, location} search match.
func normalizeMatch(match gjson.Result) (agentmodel.Product, bool) {
	if !match.IsObject() {
		return agentmodel.Product{}, false
	}
	return productFrom(match.Get("product"), match.Get("location")), true
}

// normalizeIngredient flattens one ingredients_details entry, keeping the
// required quantity and unit.
func normalizeIngredient(entry gjson.Result) (agentmodel.Product, bool) {
	if !entry.IsObject() || !entry.Get("product").Exists() {
		return agentmodel.Product{}, false
	}

	p := productFrom(entry.Get("product"), entry.Get("location"))
	quantity := entry.Get("quantity").Float()
	p.Quantity = &quantity
	p.Unit = entry.Get("unit").String()
	return p, true
}

func productFrom(product, location gjson.Result) agentmodel.Product {
	return agentmodel.Product{
		Name: product.Get("name").String(),
		Location: agentmodel.Location{
			Aisle:   location.Get("aisle").String(),
			Section: location.Get("section").String(),
			Shelf:   location.Get("shelf").String(),
		},
		Details: agentmodel.Details{
			Description: product.Get("description").String(),
			Category:    product.Get("category").String(),
			Brand:       product.Get("attributes.brand").String(),
			Size:        product.Get("attributes.size").String(),
		},
	}
}

func productsPayload(matches []gjson.Result) *agentmodel.Payload {
	products := make([]agentmodel.Product, 0, len(matches))
	for _, m := range matches {
		if p, ok := normalizeMatch(m); ok {
			products = append(products, p)
		}
	}
	return &agentmodel.Payload{
		Products:   products,
		TotalCount: len(products),
		Metadata:   agentmodel.Metadata{QueryTime: time.Now().UTC(), Source: sourceProductSearch},
	}
}

// recipePayload normalizes a {recipe, ingredients_details} document.
func recipePayload(recipe, ingredients gjson.Result) *agentmodel.Payload {
	products := make([]agentmodel.Product, 0)
	for _, entry := range ingredients.Array() {
		if p, ok := normalizeIngredient(entry); ok {
			products = append(products, p)
		}
	}
	return &agentmodel.Payload{
		Recipe: &agentmodel.Recipe{
			ID:          recipe.Get("id").String(),
			Name:        recipe.Get("name").String(),
			Description: recipe.Get("description").String(),
		},
		Products:   products,
		TotalCount: len(products),
		Metadata:   agentmodel.Metadata{QueryTime: time.Now().UTC(), Source: sourceRecipeSearch},
	}
}
