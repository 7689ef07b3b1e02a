package agent

const classificationPrompt = "Classify the following query as either 'product_search', 'recipe_search', 'ingredient_based_recipe', or 'info_agent'. " +
	"If the query is about finding a product in the store, classify as 'product_search'. " +
	"If the query is about recipes, cooking, or how to prepare a dish (e.g., 'How do I make pancakes?'), classify as 'recipe_search'. " +
	"If the query is about finding recipes based on a list of ingredients (e.g., 'What can I cook with eggs, flour, and sugar?'), classify as 'ingredient_based_recipe'. " +
	"If the query is about the system's capabilities, what the client can ask, or what the system can do, classify as 'info_agent'. " +
	"Respond with ONLY 'product_search', 'recipe_search', 'ingredient_based_recipe', or 'info_agent', nothing else." +
	"\n\n" +
	"Examples:\n" +
	"- 'Where can I find basil?': product_search\n" +
	"- 'How do I make pancakes?': recipe_search\n" +
	"- 'What can I cook with eggs, flour, and sugar?': ingredient_based_recipe\n" +
	"- 'What can you do?': info_agent\n" +
	"- 'Where can I find the ingredients to make pancakes?': recipe_search\n" +
	"- 'Find me a recipe for lasagna.': recipe_search\n" +
	"- 'What recipes can I make with chicken and rice?': ingredient_based_recipe\n" +
	"- 'Tell me about your features.': info_agent\n" +
	"- 'Locate milk in the store.': product_search\n" +
	"- 'How do I prepare a chocolate cake?': recipe_search\n" +
	"- 'What can I cook with tomatoes and mozzarella?': ingredient_based_recipe\n"

const (
	productExtractionPrompt    = "Extract the product name from the following query. Respond with ONLY the product name, nothing else."
	recipeExtractionPrompt     = "Extract the recipe name from the following query. Respond with ONLY the recipe name, nothing else."
	ingredientExtractionPrompt = "Extract the list of ingredients from the following query. Respond with ONLY the ingredients as a comma-separated list."
)

const capabilityPrompt = "You are a classifier. Determine if the following query is asking about the system's capabilities. " +
	"Examples of queries about capabilities include: 'Cosa sai fare?', 'Quali sono le tue capacità?', " +
	"'Cosa può fare il sistema?'. Respond with 'yes' if the query is about capabilities, or 'no' otherwise."

// User-facing replies. The store assistant speaks Italian.
const (
	capabilityList = "Posso fare le seguenti cose:\n" +
		"- Ricercare prodotti nel negozio\n" +
		"- Riconoscere e fornire informazioni sulle ricette\n" +
		"- Suggerire ricette in base agli ingredienti forniti"
	declineReply  = "Mi dispiace, non posso rispondere alla tua domanda."
	rephraseReply = "Non sono sicuro di come rispondere alla tua domanda. Puoi riformularla?"
	infoErrorFmt  = "Si è verificato un errore durante l'elaborazione della query: %v"

	productErrorFmt  = "Mi dispiace, non sono riuscito a cercare il prodotto. Errore: %v"
	productNotFound  = "Mi dispiace, non ho trovato nessun prodotto corrispondente alla tua ricerca."
	recipeErrorFmt   = "Mi dispiace, non sono riuscito a cercare la ricetta. Errore: %v"
	recipeNotFound   = "Mi dispiace, non ho trovato nessuna ricetta corrispondente alla tua ricerca."
	recipesErrorFmt  = "Mi dispiace, non sono riuscito a cercare le ricette. Errore: %v"
	ingredientsUnset = "Non sono riuscito a identificare gli ingredienti dalla tua richiesta. Per favore, riprova specificando gli ingredienti."
	noRecipeForMix   = "Mi dispiace, non ho trovato nessuna ricetta corrispondente agli ingredienti forniti."
	missingRecipeID  = "Nessun ID ricetta trovato nella risposta dell'API."
)

// capabilityKeywords trigger the capability list when the gateway is down.
var capabilityKeywords = []string{"cosa", "capacità", "può fare", "sai fare"}

// Payload sources.
const (
	sourceProductSearch = "product_search_agent"
	sourceRecipeSearch  = "recipe_search_agent"
)
