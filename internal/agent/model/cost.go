package model

import (
	"github.com/cloudwego/eino/schema"
)

// Pricing defines USD cost per 1M tokens for input/output.
type Pricing struct {
	InputPerM  float64
	OutputPerM float64
}

// defaultPricing is Gemini standard text pricing per 1M tokens.
var defaultPricing = map[string]Pricing{
	"gemini-2.0-flash":      {InputPerM: 0.10, OutputPerM: 0.40},
	"gemini-2.0-flash-lite": {InputPerM: 0.075, OutputPerM: 0.30},
	"gemini-2.5-flash":      {InputPerM: 0.30, OutputPerM: 2.50},
	"gemini-2.5-flash-lite": {InputPerM: 0.10, OutputPerM: 0.40},
}

// UsageCost is the priced token usage of one completion.
type UsageCost struct {
	Model            string
	PromptTokens     int
	CompletionTokens int
	InputCost        float64
	OutputCost       float64
	TotalCost        float64
}

// ResolvePricing returns pricing for a model; unknown models cost nothing.
func ResolvePricing(model string) Pricing {
	return defaultPricing[model]
}

// ComputeCost converts token usage to USD cost using per-1M Pricing.
func ComputeCost(usage *schema.TokenUsage, p Pricing) (inputCost, outputCost, total float64) {
	if usage == nil {
		return 0, 0, 0
	}
	inputCost = p.InputPerM * float64(usage.PromptTokens) / 1_000_000.0
	outputCost = p.OutputPerM * float64(usage.CompletionTokens) / 1_000_000.0
	total = inputCost + outputCost
	return
}

// Cost prices the completion's usage. ok is false when the provider did not
// report usage.
func (c *Completion) Cost() (cost UsageCost, ok bool) {
	if c == nil || c.Usage == nil {
		return UsageCost{}, false
	}
	in, out, total := ComputeCost(c.Usage, ResolvePricing(c.Model))
	return UsageCost{
		Model:            c.Model,
		PromptTokens:     c.Usage.PromptTokens,
		CompletionTokens: c.Usage.CompletionTokens,
		InputCost:        in,
		OutputCost:       out,
		TotalCost:        total,
	}, true
}
