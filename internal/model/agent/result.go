package agent

import "time"

// Result is the normalized output of a task handler. On success at least one
// of Text and Results is set; failures carry an explanation in Text only.
type Result struct {
	Text    *string  `json:"text"`
	Results *Payload `json:"results"`

	// Agent is the classification that produced the result.
	Agent Classification `json:"-"`
}

// TextResult builds a text-only result.
func TextResult(text string) Result {
	return Result{Text: &text}
}

// TableResult builds a structured result without a text reply.
func TableResult(payload *Payload) Result {
	return Result{Results: payload}
}

// HasText reports whether a non-empty text reply is present.
func (r Result) HasText() bool {
	return r.Text != nil && *r.Text != ""
}

// Payload is the structured part of a result.
type Payload struct {
	Recipe     *Recipe   `json:"recipe,omitempty"`
	Products   []Product `json:"products"`
	TotalCount int       `json:"total_count"`
	Metadata   Metadata  `json:"metadata"`
}

// Metadata describes where a payload came from.
type Metadata struct {
	QueryTime time.Time `json:"query_time"`
	Source    string    `json:"source"`
}

// Recipe summarises a matched recipe.
type Recipe struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Product is a normalized catalog match, optionally with the quantity
// required by a recipe.
type Product struct {
	Name     string   `json:"name"`
	Quantity *float64 `json:"quantity,omitempty"`
	Unit     string   `json:"unit,omitempty"`
	Location Location `json:"location"`
	Details  Details  `json:"details"`
}

// Location is the in-store position of a product.
type Location struct {
	Aisle   string `json:"aisle"`
	Section string `json:"section"`
	Shelf   string `json:"shelf"`
}

// Details carries descriptive catalog fields.
type Details struct {
	Description string `json:"description"`
	Category    string `json:"category"`
	Brand       string `json:"brand"`
	Size        string `json:"size"`
}
