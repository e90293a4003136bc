package ollama

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/hzwangyq/bidcheck/internal/infrastructure/resilience"
)

// Client drives a local Ollama instance used as the text-evaluation
// capability for checklist review.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, model string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		executor:   executor,
	}
}

// GenerateJSON runs the prompt in strict-JSON mode and returns the raw
// model response.
func (c *Client) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	request := map[string]any{
		"model":  c.model,
		"prompt": prompt,
		"stream": false,
		"format": "json",
	}

	var response struct {
		Response string `json:"response"`
	}
	call := func(ctx context.Context) error {
		return c.postJSON(ctx, "/api/generate", request, &response)
	}

	var err error
	if c.executor != nil {
		err = c.executor.Do(ctx, "ollama.generate", call, classifyOllamaError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", wrapTemporaryIfNeeded("ollama generate", err)
	}
	return strings.TrimSpace(response.Response), nil
}
