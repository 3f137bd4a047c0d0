package scanning

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/zombor/bill-lines/internal/extraction"
)

// otherLabel is assigned to tokens the model left out of its answer.
const otherLabel = "O"

type labelledToken struct {
	Index int      `json:"index"`
	Label string   `json:"label"`
	Score *float64 `json:"score"`
}

// parseLabelsJSON parses an LLM's token labels into one prediction per token
func parseLabelsJSON(text string, n int) ([]extraction.Prediction, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	startIdx := strings.Index(text, "[")
	if startIdx == -1 {
		return nil, fmt.Errorf("no JSON array found in response")
	}
	endIdx := strings.LastIndex(text, "]")
	if endIdx == -1 || endIdx < startIdx {
		return nil, fmt.Errorf("invalid JSON array in response")
	}
	text = text[startIdx : endIdx+1]

	var labelled []labelledToken
	if err := json.Unmarshal([]byte(text), &labelled); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	preds := make([]extraction.Prediction, n)
	for i := range preds {
		preds[i] = extraction.Prediction{Label: otherLabel}
	}
	for _, l := range labelled {
		if l.Index < 0 || l.Index >= n {
			return nil, fmt.Errorf("token index %d out of range [0,%d)", l.Index, n)
		}
		label := strings.TrimSpace(l.Label)
		if label == "" {
			label = otherLabel
		}
		score := 1.0
		if l.Score != nil {
			score = min(max(*l.Score, 0), 1)
		}
		preds[l.Index] = extraction.Prediction{Label: label, Score: score}
	}

	return preds, nil
}
