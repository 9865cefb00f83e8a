// Package ai generates answers, flashcards and study material through
// OpenAI chat completions.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	apperr "github.com/Arthur-Jacobina/datagotchi/internal/errors"
	"github.com/Arthur-Jacobina/datagotchi/internal/logging"
)

// ChatClient is the slice of the OpenAI client the service uses.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// ContentTypes lists the supported generate-content modes.
var ContentTypes = map[string]string{
	"summary":     "Write a concise summary of the material.",
	"study_guide": "Write a structured study guide with sections and key points.",
	"faq":         "Write a FAQ: likely questions with clear answers.",
	"timeline":    "Write a chronological timeline of the events described.",
	"briefing":    "Write an executive briefing: context, key facts, implications.",
}

// Service wraps chat completions for the app's generation endpoints.
type Service struct {
	client ChatClient
	model  string
	log    *logging.Logger
}

// New constructs an AI service. A nil client means the feature is not
// configured and calls report unavailable.
func New(client ChatClient, model string, log *logging.Logger) *Service {
	if model == "" {
		model = openai.GPT4oMini
	}
	if log == nil {
		log = logging.NewDefault("ai")
	}
	return &Service{client: client, model: model, log: log}
}

// Enabled reports whether a chat client is configured.
func (s *Service) Enabled() bool { return s.client != nil }

// Answer is a completion with its token usage.
type Answer struct {
	Text   string `json:"text"`
	Tokens int    `json:"tokens_used"`
}

// Complete answers a prompt, optionally grounded on caller-supplied context
// passages (RAG style).
func (s *Service) Complete(ctx context.Context, prompt string, contexts []string) (Answer, error) {
	if s.client == nil {
		return Answer{}, apperr.Unavailable("ai is not configured")
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return Answer{}, apperr.Validation("prompt is required")
	}

	system := "You are a helpful assistant for a digital pet learning app. Answer using the provided context when it is relevant."
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: system},
	}
	if len(contexts) > 0 {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: "Context:\n" + strings.Join(contexts, "\n---\n"),
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    s.model,
		Messages: messages,
	})
	if err != nil {
		return Answer{}, apperr.Internal("chat completion", err)
	}
	if len(resp.Choices) == 0 {
		return Answer{}, apperr.Internal("chat completion returned no choices", nil)
	}
	return Answer{Text: resp.Choices[0].Message.Content, Tokens: resp.Usage.TotalTokens}, nil
}

// Flashcard is a language-learning card. Distractors are wrong answers for
// multiple choice; a valid card has exactly three.
type Flashcard struct {
	Word          string   `json:"word"`
	Translation   string   `json:"translation"`
	Pronunciation string   `json:"pronunciation,omitempty"`
	Distractors   []string `json:"distractors"`
}

// GenerateFlashcards builds flashcards from source text. Cards the model
// malforms are dropped; an empty result is an error.
func (s *Service) GenerateFlashcards(ctx context.Context, text, targetLanguage string, count int) ([]Flashcard, error) {
	if s.client == nil {
		return nil, apperr.Unavailable("ai is not configured")
	}
	if strings.TrimSpace(text) == "" {
		return nil, apperr.Validation("text is required")
	}
	if count <= 0 {
		count = 10
	}
	if targetLanguage == "" {
		targetLanguage = "English"
	}

	prompt := fmt.Sprintf(
		"Create %d vocabulary flashcards in %s from the following text. "+
			"Respond with a JSON array only. Each element: "+
			`{"word": ..., "translation": ..., "pronunciation": ..., "distractors": [three plausible wrong translations]}`+
			"\n\nText:\n%s", count, targetLanguage, text)

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: "You output strict JSON with no surrounding prose."},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return nil, apperr.Internal("chat completion", err)
	}
	if len(resp.Choices) == 0 {
		return nil, apperr.Internal("chat completion returned no choices", nil)
	}

	cards, err := parseFlashcards(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, apperr.Internal("parse flashcards", err)
	}
	if len(cards) == 0 {
		return nil, apperr.Internal("no valid flashcards generated", nil)
	}
	s.log.Debugf("generated %d flashcards", len(cards))
	return cards, nil
}

// parseFlashcards extracts the JSON array from the completion and drops
// malformed cards.
func parseFlashcards(raw string) ([]Flashcard, error) {
	raw = strings.TrimSpace(raw)
	// Models sometimes fence the JSON despite instructions.
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON array in response")
	}

	var parsed []Flashcard
	if err := json.Unmarshal([]byte(raw[start:end+1]), &parsed); err != nil {
		return nil, fmt.Errorf("decode flashcards: %w", err)
	}

	valid := parsed[:0]
	for _, card := range parsed {
		if card.Word == "" || card.Translation == "" || len(card.Distractors) != 3 {
			continue
		}
		valid = append(valid, card)
	}
	return valid, nil
}

// GeneratedContent is the output of a generate-content request.
type GeneratedContent struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	Tokens  int    `json:"tokens_used"`
}

// GenerateContent produces study material of the requested type from text.
func (s *Service) GenerateContent(ctx context.Context, contentType, text string) (GeneratedContent, error) {
	if s.client == nil {
		return GeneratedContent{}, apperr.Unavailable("ai is not configured")
	}
	instruction, ok := ContentTypes[contentType]
	if !ok {
		return GeneratedContent{}, apperr.Validation("unknown content type: " + contentType)
	}
	if strings.TrimSpace(text) == "" {
		return GeneratedContent{}, apperr.Validation("text is required")
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: instruction},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	})
	if err != nil {
		return GeneratedContent{}, apperr.Internal("chat completion", err)
	}
	if len(resp.Choices) == 0 {
		return GeneratedContent{}, apperr.Internal("chat completion returned no choices", nil)
	}
	return GeneratedContent{
		Type:    contentType,
		Content: resp.Choices[0].Message.Content,
		Tokens:  resp.Usage.TotalTokens,
	}, nil
}
