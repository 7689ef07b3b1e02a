package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseClassification(t *testing.T) {
	cases := map[string]Classification{
		"product_search":            ProductSearch,
		"  Recipe_Search \n":        RecipeSearch,
		"INGREDIENT_BASED_RECIPE":   IngredientBasedRecipe,
		"info_agent":                InfoAgent,
		"":                          InfoAgent,
		"garbage":                   InfoAgent,
		"product_search, obviously": InfoAgent,
		"'product_search'":          InfoAgent,
	}
	for raw, want := range cases {
		assert.Equal(t, want, ParseClassification(raw), "input %q", raw)
	}
}

func TestResultHelpers(t *testing.T) {
	r := TextResult("ciao")
	assert.True(t, r.HasText())
	assert.Nil(t, r.Results)

	empty := TextResult("")
	assert.False(t, empty.HasText())

	table := TableResult(&Payload{TotalCount: 1})
	assert.False(t, table.HasText())
	assert.Equal(t, 1, table.Results.TotalCount)
}
