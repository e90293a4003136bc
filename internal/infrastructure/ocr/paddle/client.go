package paddle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/hzwangyq/bidcheck/internal/core/domain"
	"github.com/hzwangyq/bidcheck/internal/infrastructure/resilience"
)

// Client talks to the PaddleOCR HTTP service: one image region in,
// recognized text lines out. Calls are rate limited because OCR is the
// most expensive step of the pipeline.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	executor   *resilience.Executor
}

func New(baseURL string, requestsPerSecond float64, executor *resilience.Executor) *Client {
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		limiter:    rate.NewLimiter(limit, 1),
		executor:   executor,
	}
}

type recognizeRequest struct {
	Image  []byte `json:"image"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type recognizeResponse struct {
	Texts []string `json:"texts"`
}

func (c *Client) Recognize(ctx context.Context, region domain.ImageRegion) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("ocr rate limit: %w", err)
	}

	var response recognizeResponse
	call := func(ctx context.Context) error {
		return c.postJSON(ctx, "/ocr", recognizeRequest{
			Image:  region.Data,
			Width:  region.Width,
			Height: region.Height,
		}, &response)
	}

	var err error
	if c.executor != nil {
		err = c.executor.Do(ctx, "ocr.recognize", call, classifyOCRError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", wrapTemporaryIfNeeded("ocr recognize", err)
	}
	return strings.TrimSpace(strings.Join(response.Texts, "\n")), nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal ocr request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create ocr request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ocr request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &httpStatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(raw)),
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode ocr response: %w", err)
	}
	return nil
}

type httpStatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *httpStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("ocr service status: %s", e.Status)
	}
	return fmt.Sprintf("ocr service status: %s: %s", e.Status, e.Body)
}
