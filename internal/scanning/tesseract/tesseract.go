// Package tesseract provides the OCR engine backed by libtesseract through
// gosseract. It lives in its own package because it requires cgo.
package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"

	"github.com/zombor/bill-lines/internal/extraction"
)

// Engine implements extraction.OCR. Each call uses its own gosseract client,
// so an Engine is safe for concurrent use.
type Engine struct {
	clientFactory func() *gosseract.Client
	languages     []string
	// Contrast is the percentage passed to imaging.AdjustContrast before
	// recognition. Zero leaves contrast untouched.
	Contrast float64
}

// NewEngine constructs a Tesseract-backed OCR engine for the given languages.
func NewEngine(languages ...string) *Engine {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return &Engine{
		clientFactory: gosseract.NewClient,
		languages:     languages,
		Contrast:      20,
	}
}

// Recognize returns the words on the page in document order.
func (e *Engine) Recognize(ctx context.Context, page extraction.Page) ([]extraction.Word, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	imgData, err := e.preprocess(page.PNG)
	if err != nil {
		return nil, err
	}

	c := e.clientFactory()
	defer c.Close()

	if err := c.SetLanguage(e.languages...); err != nil {
		return nil, fmt.Errorf("set languages: %w", err)
	}
	if err := c.SetImageFromBytes(imgData); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}

	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("recognize words: %w", err)
	}
	return wordsFromBoxes(boxes), nil
}

// preprocess converts the page to high-contrast grayscale, which tesseract
// reads better. Geometry is unchanged so boxes still match the page.
func (e *Engine) preprocess(pngData []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(pngData))
	if err != nil {
		return nil, fmt.Errorf("decode page: %w", err)
	}
	gray := imaging.Grayscale(img)
	if e.Contrast != 0 {
		gray = imaging.AdjustContrast(gray, e.Contrast)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, gray, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode page: %w", err)
	}
	return buf.Bytes(), nil
}

func wordsFromBoxes(boxes []gosseract.BoundingBox) []extraction.Word {
	words := make([]extraction.Word, 0, len(boxes))
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" {
			continue
		}
		words = append(words, extraction.Word{
			Text:   text,
			Left:   b.Box.Min.X,
			Top:    b.Box.Min.Y,
			Width:  b.Box.Dx(),
			Height: b.Box.Dy(),
		})
	}
	return words
}
