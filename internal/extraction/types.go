package extraction

import "encoding/json"

// Box is a bounding box in the normalized 0-1000 coordinate space: x0, y0, x1, y1.
type Box [4]int

// YCenter returns the vertical midpoint of the box.
func (b Box) YCenter() float64 {
	return float64(b[1]+b[3]) / 2
}

// Token is one OCR fragment with its normalized box and classifier output.
type Token struct {
	Text       string  `json:"text"`
	Box        Box     `json:"box"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Row is a left-to-right run of tokens sharing a vertical band.
type Row []Token

// Text joins the row's token texts with single spaces.
func (r Row) Text() string {
	n := len(r)
	if n == 0 {
		return ""
	}
	texts := make([]string, n)
	for i, t := range r {
		texts[i] = t.Text
	}
	return joinSpaced(texts)
}

// LineItem is one billable entry on the document.
type LineItem struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"qty"`
	Price    float64 `json:"price"`
}

// Summary is the reconciled financial summary of a document.
type Summary struct {
	Subtotal   float64 `json:"subtotal"`
	Tax        float64 `json:"tax"`
	Total      float64 `json:"total"`
	IsTaxAdded bool    `json:"is_tax_added"`
}

// Result is the outcome of one extraction call. A failed result carries only
// Error; a successful one carries Items and Summary.
type Result struct {
	Success bool       `json:"success"`
	Items   []LineItem `json:"items"`
	Summary Summary    `json:"summary"`
	Error   string     `json:"error"`
}

// Failure builds a failed result with the given message.
func Failure(msg string) Result {
	return Result{Success: false, Error: msg}
}

// MarshalJSON emits either the success payload or the failure payload, never a mixture.
func (r Result) MarshalJSON() ([]byte, error) {
	if !r.Success {
		return json.Marshal(struct {
			Success bool   `json:"success"`
			Error   string `json:"error"`
		}{false, r.Error})
	}

	items := r.Items
	if items == nil {
		items = []LineItem{}
	}
	return json.Marshal(struct {
		Success bool       `json:"success"`
		Items   []LineItem `json:"items"`
		Summary Summary    `json:"summary"`
	}{true, items, r.Summary})
}

// Page is a decoded document image, PNG encoded, with its pixel dimensions.
type Page struct {
	PNG    []byte
	Width  int
	Height int
}

// Word is one OCR detection in pixel coordinates.
type Word struct {
	Text   string
	Left   int
	Top    int
	Width  int
	Height int
}

// Prediction is the classifier's label for one token.
type Prediction struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}
