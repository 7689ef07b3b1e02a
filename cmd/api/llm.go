package main

import (
	"context"
	"errors"
)

var errLLMUnavailable = errors.New("language model not configured")

// unavailableLLM lets the router run without a model: classification falls
// back to the info agent and its keyword matching.
type unavailableLLM struct{}

func (unavailableLLM) Complete(context.Context, string, string) (string, error) {
	return "", errLLMUnavailable
}
