package receipt

import (
	"time"

	"github.com/zombor/bill-lines/internal/extraction"
)

// Extraction is a stored extraction run for one uploaded receipt
type Extraction struct {
	ID          string            `json:"id"`
	Filename    string            `json:"filename"`
	ContentType string            `json:"content_type"`
	Result      extraction.Result `json:"result"`
	CreatedAt   time.Time         `json:"created_at"`
}
