// Package engine builds the relay and the follow-up chatter from config.
package engine

import (
	"kisan-mitra/api/internal/config"
	"kisan-mitra/api/internal/diagnose"
	"kisan-mitra/api/internal/logger"
	"kisan-mitra/api/internal/upstream"
	"kisan-mitra/api/internal/upstream/gemini"
	"kisan-mitra/api/internal/upstream/openai"
)

// Engines returns both providers; only the selected one needs a key.
func Engines(cfg *config.Config) *upstream.Engines {
	return &upstream.Engines{
		Gemini: gemini.New(cfg.GeminiAPIKey, cfg.GeminiModel),
		OpenAI: openai.New(cfg.OpenAIAPIKey, cfg.OpenAIModel, ""),
	}
}

// FromConfig returns the relay for cfg.Provider. The chatter is nil when the
// provider has no credential, which callers treat as "simulate replies".
func FromConfig(cfg *config.Config) (*diagnose.Relay, upstream.Chatter, error) {
	model, err := Engines(cfg).Get(cfg.Provider)
	if err != nil {
		return nil, nil, err
	}

	opts := []diagnose.Option{
		diagnose.WithCredential(cfg.Credential()),
		diagnose.WithTimeout(cfg.UpstreamTimeout),
	}
	if cfg.PromptFile != "" {
		p, err := diagnose.LoadPrompt(cfg.PromptFile)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, diagnose.WithPrompt(p))
	}
	relay := diagnose.NewRelay(model, opts...)

	var chatter upstream.Chatter
	if relay.Configured() {
		chatter, _ = model.(upstream.Chatter)
	} else {
		logger.Warnf("%s API key is not set; diagnoses will fail with a configuration error", model.Name())
	}
	return relay, chatter, nil
}
