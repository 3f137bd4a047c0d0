package scanning

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/zombor/bill-lines/internal/extraction"
)

// tokenLabelPrompt asks the model to act as a token classifier over the CORD
// label vocabulary. The token list is appended as JSON.
const tokenLabelPrompt = `You are a token classifier for receipts and bills. The image is a scanned receipt.
Below is a JSON array of OCR tokens in document order. Each token has an "index", its "text" and its
bounding "box" as [x0, y0, x1, y1] on a 0-1000 grid of the page.

Assign each token exactly one label from this vocabulary:
- MENU.NM: part of a line item name
- MENU.CNT: line item quantity
- MENU.UNITPRICE: unit price of a line item
- MENU.PRICE: line amount of a line item
- SUB_TOTAL.SUBTOTAL_PRICE: subtotal amount
- SUB_TOTAL.TAX_PRICE: tax amount (each tax line separately, e.g. CGST and SGST)
- TOTAL.TOTAL_PRICE: grand total amount
- O: anything else

Return ONLY a JSON array with one object per token, in this exact format:
[{"index": 0, "label": "MENU.NM", "score": 0.95}]

The score is your confidence between 0 and 1. Do not include any text before or after the JSON.
Do not use markdown code blocks.

Tokens:
`

// GeminiClassifier labels tokens with Google Gemini
type GeminiClassifier struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGeminiClassifier creates a new GeminiClassifier instance
func NewGeminiClassifier(apiKey string, modelName string) (*GeminiClassifier, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.5-pro"
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(0)

	return &GeminiClassifier{
		client: client,
		model:  model,
	}, nil
}

type promptToken struct {
	Index int            `json:"index"`
	Text  string         `json:"text"`
	Box   extraction.Box `json:"box"`
}

// Classify labels the tokens.
func (g *GeminiClassifier) Classify(ctx context.Context, page extraction.Page, texts []string, boxes []extraction.Box) ([]extraction.Prediction, error) {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	prompt, err := buildTokenPrompt(texts, boxes)
	if err != nil {
		return nil, err
	}

	// genai.ImageData expects the format suffix, not the full MIME type
	parts := []genai.Part{
		genai.ImageData("png", page.PNG),
		genai.Text(prompt),
	}

	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, fmt.Errorf("generating content: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("no response from gemini")
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			responseText.WriteString(string(text))
		}
	}

	preds, err := parseLabelsJSON(responseText.String(), len(texts))
	if err != nil {
		return nil, fmt.Errorf("parsing token labels: %w", err)
	}
	return preds, nil
}

func buildTokenPrompt(texts []string, boxes []extraction.Box) (string, error) {
	if len(texts) != len(boxes) {
		return "", fmt.Errorf("got %d boxes for %d tokens", len(boxes), len(texts))
	}
	tokens := make([]promptToken, len(texts))
	for i := range texts {
		tokens[i] = promptToken{Index: i, Text: texts[i], Box: boxes[i]}
	}
	data, err := json.Marshal(tokens)
	if err != nil {
		return "", fmt.Errorf("marshaling tokens: %w", err)
	}
	return tokenLabelPrompt + string(data), nil
}

// Close closes the Gemini client
func (g *GeminiClassifier) Close() error {
	return g.client.Close()
}
