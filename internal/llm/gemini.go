package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/transcribot/transcribot/internal/logger"
	"google.golang.org/genai"
)

// GeminiTranslator translates through the Gemini API
type GeminiTranslator struct {
	client    *genai.Client
	modelName string
}

// NewGeminiTranslator creates a client. baseURL is only set in tests.
func NewGeminiTranslator(ctx context.Context, apiKey, model, baseURL string) (*GeminiTranslator, error) {
	if apiKey == "" {
		return nil, errors.New("gemini API key is required")
	}

	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiTranslator{client: client, modelName: model}, nil
}

func (g *GeminiTranslator) Translate(ctx context.Context, text, target string) (string, error) {
	if g.client == nil {
		return "", fmt.Errorf("gemini client not initialized")
	}

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(translationSystemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr(float32(0.3)),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.modelName, genai.Text(translationPrompt(text, target)), cfg)
	if err != nil {
		return "", fmt.Errorf("translation to %s failed: %w", target, err)
	}

	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in Gemini response")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content parts in Gemini response")
	}

	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		b.WriteString(part.Text)
	}

	if resp.UsageMetadata != nil {
		logger.Debug("Gemini translation finished", map[string]interface{}{
			"target":            target,
			"prompt_tokens":     resp.UsageMetadata.PromptTokenCount,
			"completion_tokens": resp.UsageMetadata.CandidatesTokenCount,
		})
	}

	return strings.TrimSpace(b.String()), nil
}
