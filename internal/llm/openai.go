package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/transcribot/transcribot/internal/logger"
	openai "github.com/sashabaranov/go-openai"
)

const translationSystemPrompt = "You are a professional translator. Provide only the translation without any additional comments or explanations."

func newOpenAIClient(apiKey, baseURL string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg)
}

// WhisperTranscriber calls the OpenAI audio transcription endpoint
type WhisperTranscriber struct {
	client *openai.Client
	model  string
}

func NewWhisperTranscriber(apiKey, baseURL, model string) (*WhisperTranscriber, error) {
	if apiKey == "" {
		return nil, errors.New("missing OpenAI API key")
	}
	if model == "" {
		model = openai.Whisper1
	}
	return &WhisperTranscriber{client: newOpenAIClient(apiKey, baseURL), model: model}, nil
}

// Transcribe returns the transcript and the detected language as an ISO code
func (w *WhisperTranscriber) Transcribe(ctx context.Context, audio []byte, filename string) (string, string, error) {
	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: filename,
		Reader:   bytes.NewReader(audio),
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return "", "", fmt.Errorf("whisper transcription failed: %w", err)
	}

	lang := NormalizeLanguage(resp.Language)
	logger.Debug("Whisper transcription finished", map[string]interface{}{
		"file":     filename,
		"language": lang,
		"duration": resp.Duration,
		"chars":    len(resp.Text),
	})

	return strings.TrimSpace(resp.Text), lang, nil
}

// OpenAITranslator translates with a chat completion model
type OpenAITranslator struct {
	client *openai.Client
	model  string
}

func NewOpenAITranslator(apiKey, baseURL, model string) (*OpenAITranslator, error) {
	if apiKey == "" {
		return nil, errors.New("missing OpenAI API key")
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAITranslator{client: newOpenAIClient(apiKey, baseURL), model: model}, nil
}

func (t *OpenAITranslator) Translate(ctx context.Context, text, target string) (string, error) {
	resp, err := t.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: t.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: translationSystemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: translationPrompt(text, target),
			},
		},
		Temperature: 0.3,
	})
	if err != nil {
		return "", fmt.Errorf("translation to %s failed: %w", target, err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai returned no choices")
	}

	logger.Debug("OpenAI translation finished", map[string]interface{}{
		"target":            target,
		"prompt_tokens":     resp.Usage.PromptTokens,
		"completion_tokens": resp.Usage.CompletionTokens,
	})

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func translationPrompt(text, target string) string {
	return fmt.Sprintf("Translate the following text to %s:\n\n%s", LanguageName(target), text)
}
