package llm

import (
	"context"
	"fmt"

	"github.com/transcribot/transcribot/internal/config"
	"github.com/transcribot/transcribot/internal/logger"
)

// Translator is satisfied by OpenAITranslator and GeminiTranslator
type Translator interface {
	Translate(ctx context.Context, text, target string) (string, error)
}

// NewTranslator builds the translator selected by TRANSLATION_PROVIDER
func NewTranslator(ctx context.Context, cfg *config.Config) (Translator, error) {
	switch cfg.TranslationProvider {
	case "gemini":
		logger.Info("Using Gemini translator", map[string]interface{}{"model": cfg.GeminiModel})
		return NewGeminiTranslator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, "")
	case "openai", "":
		logger.Info("Using OpenAI translator", map[string]interface{}{"model": cfg.TranslationModel})
		return NewOpenAITranslator(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.TranslationModel)
	default:
		return nil, fmt.Errorf("unknown translation provider %q", cfg.TranslationProvider)
	}
}
