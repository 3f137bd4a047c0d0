package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// NoTextMessage is the failure message for images without any OCR text.
const NoTextMessage = "No text detected in image"

var (
	// ErrNoText is returned when OCR finds no non-empty words.
	ErrNoText = errors.New("no text detected in image")
	// ErrInvalidPage is returned for pages without positive dimensions.
	ErrInvalidPage = errors.New("invalid page dimensions")
	// ErrPredictionCount is returned when the classifier answers for the wrong number of tokens.
	ErrPredictionCount = errors.New("prediction count does not match token count")
)

// Decoder turns an uploaded file into a page image.
type Decoder interface {
	Decode(data []byte, contentType string) (Page, error)
}

// OCR detects words on a page, in pixel coordinates and document order.
type OCR interface {
	Recognize(ctx context.Context, page Page) ([]Word, error)
}

// Classifier labels tokens given the page and their normalized boxes. It must
// return exactly one prediction per token.
type Classifier interface {
	Classify(ctx context.Context, page Page, texts []string, boxes []Box) ([]Prediction, error)
}

// Engine runs the full extraction pipeline. It holds only read-only state and
// is safe for concurrent use when its OCR and Classifier are.
type Engine struct {
	cfg         Config
	interpreter *Interpreter
	decoder     Decoder
	ocr         OCR
	classifier  Classifier
}

// NewEngine creates an Engine with the default tie-break strategy.
func NewEngine(cfg Config, decoder Decoder, ocr OCR, classifier Classifier) *Engine {
	return NewEngineWithStrategy(cfg, DefaultStrategy(), decoder, ocr, classifier)
}

// NewEngineWithStrategy creates an Engine with a custom tie-break strategy.
func NewEngineWithStrategy(cfg Config, strategy Strategy, decoder Decoder, ocr OCR, classifier Classifier) *Engine {
	return &Engine{
		cfg:         cfg,
		interpreter: NewInterpreterWithStrategy(cfg, strategy),
		decoder:     decoder,
		ocr:         ocr,
		classifier:  classifier,
	}
}

// Extract runs one image through the pipeline. It never returns partial
// results and never panics: every failure becomes a failed Result.
func (e *Engine) Extract(ctx context.Context, data []byte, contentType string) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Extraction panicked", "panic", r)
			result = Failure(fmt.Sprintf("extraction failed: %v", r))
		}
	}()

	result, err := e.extract(ctx, data, contentType)
	if err != nil {
		if errors.Is(err, ErrNoText) {
			slog.Info("No text detected", "content_type", contentType, "size", len(data))
			return Failure(NoTextMessage)
		}
		slog.Error("Extraction failed", "content_type", contentType, "size", len(data), "error", err)
		return Failure(err.Error())
	}
	return result
}

func (e *Engine) extract(ctx context.Context, data []byte, contentType string) (Result, error) {
	page, err := e.decoder.Decode(data, contentType)
	if err != nil {
		return Result{}, fmt.Errorf("decoding image: %w", err)
	}
	if page.Width <= 0 || page.Height <= 0 {
		return Result{}, fmt.Errorf("%w: %dx%d", ErrInvalidPage, page.Width, page.Height)
	}

	words, err := e.ocr.Recognize(ctx, page)
	if err != nil {
		return Result{}, fmt.Errorf("recognizing text: %w", err)
	}

	texts, boxes := e.prepareTokens(words, page)
	if len(texts) == 0 {
		return Result{}, ErrNoText
	}

	preds, err := e.classifier.Classify(ctx, page, texts, boxes)
	if err != nil {
		return Result{}, fmt.Errorf("classifying tokens: %w", err)
	}
	if len(preds) != len(texts) {
		return Result{}, fmt.Errorf("%w: got %d for %d tokens", ErrPredictionCount, len(preds), len(texts))
	}

	tokens := make([]Token, len(texts))
	for i := range texts {
		tokens[i] = Token{
			Text:       texts[i],
			Box:        boxes[i],
			Label:      preds[i].Label,
			Confidence: preds[i].Score,
		}
	}

	items, summary, rows := e.Interpret(tokens)
	slog.Debug("Extracted receipt",
		"tokens", len(tokens),
		"rows", rows,
		"items", len(items),
		"total", summary.Total,
	)

	return Result{Success: true, Items: items, Summary: summary}, nil
}

// Interpret clusters classified tokens into rows and reconciles them. It
// returns the items, the summary and the number of rows read.
func (e *Engine) Interpret(tokens []Token) ([]LineItem, Summary, int) {
	rows := ClusterRows(tokens, e.cfg.RowThreshold)

	var acc Accumulator
	for _, row := range rows {
		acc.Add(e.interpreter.Interpret(row))
	}

	items := acc.Items()
	if items == nil {
		items = []LineItem{}
	}
	return items, acc.Summary(e.cfg.TaxGapRatio), len(rows)
}

// prepareTokens drops empty words and normalizes the rest.
func (e *Engine) prepareTokens(words []Word, page Page) ([]string, []Box) {
	texts := make([]string, 0, len(words))
	boxes := make([]Box, 0, len(words))
	for _, w := range words {
		text := strings.TrimSpace(w.Text)
		if text == "" {
			continue
		}
		texts = append(texts, text)
		boxes = append(boxes, NormalizeBox(
			[4]int{w.Left, w.Top, w.Left + w.Width, w.Top + w.Height},
			page.Width, page.Height,
		))
	}
	return texts, boxes
}
