// Package llm provides the model client used by the pipeline producers.
// Tiers decouple the producers from concrete model names: trend scoring
// runs on the cheap tier, drafting on the capable one.
package llm

// ModelTier selects a capability level without naming a model.
type ModelTier string

const (
	// TierLite covers scoring and classification work.
	TierLite ModelTier = "lite"
	// TierStandard covers review and structured rewriting.
	TierStandard ModelTier = "standard"
	// TierAdvanced covers drafting full posts from scratch.
	TierAdvanced ModelTier = "advanced"
)

// Provider identifies the model vendor.
type Provider string

const (
	// ProviderGemini is the Google Gemini provider, the only one wired today.
	ProviderGemini Provider = "gemini"
)

// Config maps tiers to concrete model names for one provider.
type Config struct {
	Provider Provider
	Models   map[ModelTier]string
}

// DefaultConfig returns the default Gemini tier mapping.
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierLite:     "gemini-2.5-flash-lite",
			TierStandard: "gemini-2.5-flash",
			TierAdvanced: "gemini-2.5-pro",
		},
	}
}

// GetModel resolves a tier to a model name, falling back down the tier
// ladder when the exact tier is not configured.
func (c *Config) GetModel(tier ModelTier) string {
	if model, ok := c.Models[tier]; ok {
		return model
	}
	if model, ok := c.Models[TierStandard]; ok {
		return model
	}
	if model, ok := c.Models[TierLite]; ok {
		return model
	}
	return ""
}

// WithModel returns a copy of the config with one tier overridden.
func (c *Config) WithModel(tier ModelTier, model string) *Config {
	out := &Config{Provider: c.Provider, Models: make(map[ModelTier]string, len(c.Models))}
	for k, v := range c.Models {
		out.Models[k] = v
	}
	out.Models[tier] = model
	return out
}
