// Package costs prices token usage in integer micro-USD. Rates are per
// 1K tokens; integer arithmetic keeps accounting rows exact.
package costs

import "strings"

// Pricing is the per-1K-token rate card for one model, in micro-USD.
type Pricing struct {
	PromptPer1K       int64
	CompletionPer1K   int64
	CachedPromptPer1K int64
}

// Calculator resolves a model name to its rate card and prices usage.
// Model matching is by longest prefix, so versioned names like
// "grok-4-0709" price as "grok-4".
type Calculator struct {
	models   map[string]Pricing
	fallback Pricing
}

// NewCalculator returns a calculator loaded with the built-in rate card.
func NewCalculator() *Calculator {
	grok4 := Pricing{PromptPer1K: 3000, CompletionPer1K: 15000, CachedPromptPer1K: 750}
	return &Calculator{
		models: map[string]Pricing{
			"grok-4":      grok4,
			"grok-3":      {PromptPer1K: 3000, CompletionPer1K: 15000, CachedPromptPer1K: 750},
			"grok-3-mini": {PromptPer1K: 300, CompletionPer1K: 500, CachedPromptPer1K: 75},
		},
		fallback: grok4,
	}
}

// Costs prices one generation. Cached prompt tokens are billed at the
// discounted cached rate; the remainder at the full prompt rate.
func (c *Calculator) Costs(model string, promptTokens, cachedTokens, completionTokens int) (prompt, completion, total int64) {
	p := c.resolve(model)

	uncached := promptTokens - cachedTokens
	if uncached < 0 {
		uncached = 0
		cachedTokens = promptTokens
	}

	prompt = per1K(uncached, p.PromptPer1K) + per1K(cachedTokens, p.CachedPromptPer1K)
	completion = per1K(completionTokens, p.CompletionPer1K)
	return prompt, completion, prompt + completion
}

// resolve finds the longest rate-card key that prefixes model.
func (c *Calculator) resolve(model string) Pricing {
	best := ""
	for key := range c.models {
		if strings.HasPrefix(model, key) && len(key) > len(best) {
			best = key
		}
	}
	if best == "" {
		return c.fallback
	}
	return c.models[best]
}

func per1K(tokens int, rate int64) int64 {
	return int64(tokens) * rate / 1000
}
