package model

import (
	"github.com/cloudwego/eino/schema"
)

// Pricing is the planner price in USD per million prompt/completion tokens.
type Pricing struct {
	InputPerM  float64
	OutputPerM float64
}

// plannerPricing covers the Gemini models the planner is configured with.
var plannerPricing = map[string]Pricing{
	"gemini-2.5-pro":        {InputPerM: 1.25, OutputPerM: 10.00},
	"gemini-2.5-flash":      {InputPerM: 0.30, OutputPerM: 2.50},
	"gemini-2.5-flash-lite": {InputPerM: 0.10, OutputPerM: 0.40},
}

// ResolvePricing returns the price table entry for model, zero when unknown.
func ResolvePricing(model string) Pricing {
	return plannerPricing[model]
}

// ComputeCost prices one planner call.
func ComputeCost(usage *schema.TokenUsage, p Pricing) (inputCost, outputCost, total float64) {
	if usage == nil {
		return 0, 0, 0
	}
	inputCost = p.InputPerM * float64(usage.PromptTokens) / 1_000_000.0
	outputCost = p.OutputPerM * float64(usage.CompletionTokens) / 1_000_000.0
	total = inputCost + outputCost
	return
}
