package generativeAI

import (
	"context"
	"fmt"
	"os"
	"time"

	"google.golang.org/genai"
)

const defaultModel = "gemini-2.0-flash"

// Completer is the language-model capability the pipeline consumes: ask the
// model for text (or JSON) given a prompt, bounded by a hard timeout the
// caller controls. Implemented here, mocked in tests.
type Completer interface {
	GenerateCompletion(ctx context.Context, prompt string, timeout time.Duration) (string, error)
	GenerateJSON(ctx context.Context, prompt string, timeout time.Duration) (string, error)
}

var _ Completer = (*AIClient)(nil)

type AIClient struct {
	client *genai.Client
	model  string
}

// NewAIClient builds the Gemini-backed completer. The API key comes from the
// environment; callers decide whether a missing key is fatal.
func NewAIClient(ctx context.Context) (*AIClient, error) {
	apiKey := os.Getenv("GOOGLE_GEMINI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GOOGLE_GEMINI_API_KEY environment variable is not set")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	model := os.Getenv("GOOGLE_GEMINI_MODEL")
	if model == "" {
		model = defaultModel
	}
	return &AIClient{client: client, model: model}, nil
}

// GenerateCompletion asks the model for free text with a hard deadline.
func (ai *AIClient) GenerateCompletion(ctx context.Context, prompt string, timeout time.Duration) (string, error) {
	return ai.generate(ctx, prompt, timeout, &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0.5),
	})
}

// GenerateJSON asks the model for a JSON object with a hard deadline. The
// response MIME type pins the model to JSON output; callers still validate
// the shape before trusting it.
func (ai *AIClient) GenerateJSON(ctx context.Context, prompt string, timeout time.Duration) (string, error) {
	return ai.generate(ctx, prompt, timeout, &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0.1),
		ResponseMIMEType: "application/json",
	})
}

func (ai *AIClient) generate(ctx context.Context, prompt string, timeout time.Duration, config *genai.GenerateContentConfig) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	result, err := ai.client.Models.GenerateContent(ctx, ai.model, genai.Text(prompt), config)
	if err != nil {
		return "", fmt.Errorf("genai generate content: %w", err)
	}
	txt := result.Text()
	if txt == "" {
		return "", fmt.Errorf("empty response from model")
	}
	return txt, nil
}
