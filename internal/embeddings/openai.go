package embeddings

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/Arthur-Jacobina/datagotchi/internal/logging"
)

// Model dimensions for the embedding models we support.
var modelDimensions = map[openai.EmbeddingModel]int{
	openai.SmallEmbedding3: 1536,
	openai.LargeEmbedding3: 3072,
	openai.AdaEmbeddingV2:  1536,
}

// OpenAIEmbedder generates embeddings through the OpenAI API.
type OpenAIEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
	cache  Cache
	log    *logging.Logger
}

// NewOpenAI builds an embedder for the given API key and model name. An
// optional cache avoids re-embedding identical content.
func NewOpenAI(apiKey, model string, cache Cache, log *logging.Logger) (*OpenAIEmbedder, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if log == nil {
		log = logging.NewDefault("embeddings")
	}

	embeddingModel := openai.EmbeddingModel(model)
	if embeddingModel == "" {
		embeddingModel = openai.SmallEmbedding3
	}
	if _, known := modelDimensions[embeddingModel]; !known {
		return nil, fmt.Errorf("unsupported embedding model %q", model)
	}

	return &OpenAIEmbedder{
		client: openai.NewClient(apiKey),
		model:  embeddingModel,
		cache:  cache,
		log:    log,
	}, nil
}

// Embed returns the embedding for text, consulting the cache first.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("cannot embed empty text")
	}

	if e.cache != nil {
		if vec, ok := e.cache.Get(ctx, text); ok {
			return vec, nil
		}
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: e.model,
		Input: []string{text},
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedding response was empty")
	}

	vec := resp.Data[0].Embedding
	if e.cache != nil {
		e.cache.Put(ctx, text, vec)
	}
	return vec, nil
}

// Dimension returns the dimensionality of the configured model.
func (e *OpenAIEmbedder) Dimension() int {
	return modelDimensions[e.model]
}
