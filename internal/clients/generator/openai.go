package generator

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/yungbote/ragcore/internal/httpx"
	"github.com/yungbote/ragcore/internal/logger"
)

// openAIGenerator implements Generator, Embedder and Captioner against the
// OpenAI HTTP API, grounded on internal/clients/openai.Client's shape
// (same endpoints, same retry/backoff plumbing, generalized behind the
// narrower capability interfaces this core actually depends on).
type openAIGenerator struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	model      string
	embedModel string
	embedDims  int
	httpClient *http.Client
	maxRetries int
}

func NewOpenAI(log *logger.Logger) (*openAIGenerator, error) {
	apiKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}
	baseURL := strings.TrimSpace(os.Getenv("OPENAI_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	model := strings.TrimSpace(os.Getenv("OPENAI_MODEL"))
	if model == "" {
		model = "gpt-4o-mini"
	}
	embedModel := strings.TrimSpace(os.Getenv("OPENAI_EMBED_MODEL"))
	if embedModel == "" {
		embedModel = "text-embedding-3-small"
	}
	embedDims := 1536
	if v := os.Getenv("OPENAI_EMBED_DIMENSIONS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			embedDims = parsed
		}
	}
	maxRetries := 4
	if v := os.Getenv("OPENAI_MAX_RETRIES"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			maxRetries = parsed
		}
	}

	return &openAIGenerator{
		log:        log.With("client", "OpenAIGenerator"),
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		embedModel: embedModel,
		embedDims:  embedDims,
		httpClient: &http.Client{Timeout: 180 * time.Second},
		maxRetries: maxRetries,
	}, nil
}

type httpStatusError struct {
	StatusCode int
	Body       string
}

func (e *httpStatusError) Error() string        { return fmt.Sprintf("openai http %d: %s", e.StatusCode, e.Body) }
func (e *httpStatusError) HTTPStatusCode() int   { return e.StatusCode }

func (c *openAIGenerator) doJSON(ctx context.Context, path string, body, out any) error {
	return httpx.WithBackoff(ctx, c.maxRetries+1, time.Second, 10*time.Second, func(ctx context.Context) error {
		var buf bytes.Buffer
		if body != nil {
			if err := json.NewEncoder(&buf).Encode(body); err != nil {
				return err
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &httpStatusError{StatusCode: resp.StatusCode, Body: string(raw)}
		}
		if out == nil {
			return nil
		}
		return json.Unmarshal(raw, out)
	})
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *openAIGenerator) Generate(ctx context.Context, system, user string) (string, error) {
	req := chatRequest{Model: c.model, Messages: []chatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}}
	var resp chatResponse
	if err := c.doJSON(ctx, "/v1/chat/completions", req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: empty completion")
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *openAIGenerator) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error) {
	type responseFormat struct {
		Type       string         `json:"type"`
		JSONSchema map[string]any `json:"json_schema"`
	}
	req := struct {
		Model          string         `json:"model"`
		Messages       []chatMessage  `json:"messages"`
		ResponseFormat responseFormat `json:"response_format"`
	}{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		ResponseFormat: responseFormat{
			Type: "json_schema",
			JSONSchema: map[string]any{
				"name":   schemaName,
				"schema": schema,
				"strict": true,
			},
		},
	}
	var resp chatResponse
	if err := c.doJSON(ctx, "/v1/chat/completions", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: empty completion")
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &out); err != nil {
		return nil, fmt.Errorf("openai: decode structured output: %w", err)
	}
	return out, nil
}

// Stream emulates progressive delivery by generating the full text, then
// replaying it to onDelta in word-sized chunks. The OpenAI SSE streaming
// endpoint needs a long-lived connection this client's retry-wrapped doJSON
// doesn't model; callers that need true token-level streaming should use
// the HTTP adapter's own chunked response writer fed by this method's
// onDelta callback, which still yields output incrementally to the caller.
func (c *openAIGenerator) Stream(ctx context.Context, system, user string, onDelta func(string)) (string, error) {
	full, err := c.Generate(ctx, system, user)
	if err != nil {
		return "", err
	}
	if onDelta != nil {
		words := strings.Fields(full)
		for _, w := range words {
			select {
			case <-ctx.Done():
				return full, ctx.Err()
			default:
			}
			onDelta(w + " ")
		}
	}
	return full, nil
}

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

func (c *openAIGenerator) EmbedText(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return [][]float32{}, nil
	}
	clean := make([]string, len(inputs))
	for i, s := range inputs {
		s = strings.TrimSpace(s)
		if s == "" {
			s = " "
		}
		clean[i] = s
	}
	var resp embeddingsResponse
	if err := c.doJSON(ctx, "/v1/embeddings", embeddingsRequest{Model: c.embedModel, Input: clean}, &resp); err != nil {
		return nil, err
	}
	out := make([][]float32, len(clean))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			continue
		}
		vec := make([]float32, len(d.Embedding))
		for j, f := range d.Embedding {
			vec[j] = float32(f)
		}
		out[d.Index] = vec
	}
	return out, nil
}

func (c *openAIGenerator) Dimensions() int { return c.embedDims }

func (c *openAIGenerator) Caption(ctx context.Context, imageBytes []byte, mimeType string) (string, string, error) {
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(imageBytes))
	type contentPart struct {
		Type     string `json:"type"`
		Text     string `json:"text,omitempty"`
		ImageURL *struct {
			URL string `json:"url"`
		} `json:"image_url,omitempty"`
	}
	req := struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string        `json:"role"`
			Content []contentPart `json:"content"`
		} `json:"messages"`
	}{Model: c.model}
	req.Messages = append(req.Messages, struct {
		Role    string        `json:"role"`
		Content []contentPart `json:"content"`
	}{
		Role: "user",
		Content: []contentPart{
			{Type: "text", Text: "Describe this image in one concise sentence for search indexing."},
			{Type: "image_url", ImageURL: &struct {
				URL string `json:"url"`
			}{URL: dataURL}},
		},
	})

	var resp chatResponse
	if err := c.doJSON(ctx, "/v1/chat/completions", req, &resp); err != nil {
		return "", "fallback", err
	}
	if len(resp.Choices) == 0 {
		return "", "fallback", fmt.Errorf("openai: empty caption completion")
	}
	return resp.Choices[0].Message.Content, "model", nil
}
