package scanning

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zombor/bill-lines/internal/extraction"
)

// HTTPClassifier calls a layout-model inference server (for example a
// LayoutLMv3 checkpoint fine-tuned on CORD) over JSON.
type HTTPClassifier struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewHTTPClassifier creates an HTTPClassifier for the server at baseURL.
func NewHTTPClassifier(baseURL string, modelName string, timeout time.Duration) (*HTTPClassifier, error) {
	if baseURL == "" {
		baseURL = "http://localhost:8500"
	}
	if modelName == "" {
		modelName = "nielsr/layoutlmv3-finetuned-cord"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &HTTPClassifier{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   modelName,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// classifyRequest is the body sent to the inference server
type classifyRequest struct {
	Model string           `json:"model"`
	Image string           `json:"image"`
	Words []string         `json:"words"`
	Boxes []extraction.Box `json:"boxes"`
}

type classifyResponse struct {
	Predictions []extraction.Prediction `json:"predictions"`
	Error       string                  `json:"error,omitempty"`
}

// Classify labels the tokens.
func (h *HTTPClassifier) Classify(ctx context.Context, page extraction.Page, texts []string, boxes []extraction.Box) ([]extraction.Prediction, error) {
	reqBody := classifyRequest{
		Model: h.model,
		Image: base64.StdEncoding.EncodeToString(page.PNG),
		Words: texts,
		Boxes: boxes,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/classify", h.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling inference server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("inference server error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("inference server: %s", out.Error)
	}
	if len(out.Predictions) != len(texts) {
		return nil, fmt.Errorf("%w: got %d for %d tokens", extraction.ErrPredictionCount, len(out.Predictions), len(texts))
	}

	return out.Predictions, nil
}

// Close is a no-op for the HTTP client
func (h *HTTPClassifier) Close() error {
	return nil
}
