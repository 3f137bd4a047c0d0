package scanning

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"

	"github.com/zombor/bill-lines/internal/extraction"
)

// DefaultMaxDimension bounds the longest side of a decoded page in pixels.
const DefaultMaxDimension = 2480

// Converter decodes uploads (JPEG, PNG, GIF, HEIC/HEIF, PDF) into a single
// PNG page. It implements extraction.Decoder.
type Converter struct {
	// MaxDimension downsizes larger pages, preserving aspect ratio. Zero disables it.
	MaxDimension int
}

// NewConverter creates a Converter that downsizes pages above maxDimension.
func NewConverter(maxDimension int) *Converter {
	return &Converter{MaxDimension: maxDimension}
}

// Decode converts the upload into a page. Only the first page of a PDF is used.
func (c *Converter) Decode(data []byte, contentType string) (extraction.Page, error) {
	if len(data) == 0 {
		return extraction.Page{}, fmt.Errorf("empty image")
	}

	mimeType := normalizeMimeType(contentType)

	var (
		img image.Image
		err error
	)
	if mimeType == "application/pdf" {
		img, err = pdfToImage(data)
	} else {
		img, err = decodeImage(data, mimeType)
	}
	if err != nil {
		return extraction.Page{}, err
	}

	if c.MaxDimension > 0 {
		b := img.Bounds()
		if b.Dx() > c.MaxDimension || b.Dy() > c.MaxDimension {
			img = imaging.Fit(img, c.MaxDimension, c.MaxDimension, imaging.Lanczos)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return extraction.Page{}, fmt.Errorf("encoding PNG: %w", err)
	}

	b := img.Bounds()
	return extraction.Page{
		PNG:    buf.Bytes(),
		Width:  b.Dx(),
		Height: b.Dy(),
	}, nil
}

// pdfToImage renders the first page of a PDF
func pdfToImage(pdfData []byte) (image.Image, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	if doc.NumPage() == 0 {
		return nil, fmt.Errorf("PDF has no pages")
	}

	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}
	return img, nil
}

// decodeImage decodes HEIC/HEIF with the pure Go decoder and everything else
// with the standard image package.
func decodeImage(imageData []byte, mimeType string) (image.Image, error) {
	if isHEICFormat(imageData) || isHEICMimeType(mimeType) {
		img, err := heic.Decode(bytes.NewReader(imageData))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
		return img, nil
	}

	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		if strings.Contains(err.Error(), "unknown format") || strings.Contains(err.Error(), "unsupported") {
			return nil, fmt.Errorf("unsupported image format. Supported formats: JPEG, PNG, GIF, HEIC, HEIF, PDF. Error: %w", err)
		}
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return img, nil
}

// isHEICFormat checks for an ftyp box with a HEIC-family brand at offset 4
func isHEICFormat(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heif", "mif1", "msf1":
		return true
	}
	return false
}

// isHEICMimeType checks if the MIME type indicates HEIC/HEIF format
func isHEICMimeType(mimeType string) bool {
	return strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif")
}

func normalizeMimeType(contentType string) string {
	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return mimeType
}
