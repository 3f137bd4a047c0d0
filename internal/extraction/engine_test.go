package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type mockDecoder struct {
	page Page
	err  error
}

func (m *mockDecoder) Decode(data []byte, contentType string) (Page, error) {
	if m.err != nil {
		return Page{}, m.err
	}
	return m.page, nil
}

type mockOCR struct {
	words []Word
	err   error
}

func (m *mockOCR) Recognize(ctx context.Context, page Page) ([]Word, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.words, nil
}

// mockClassifier labels tokens by looking their text up in labels.
type mockClassifier struct {
	labels  map[string]string
	err     error
	short   bool
	calls   int
	texts   []string
	boxes   []Box
	panicOn string
}

func (m *mockClassifier) Classify(ctx context.Context, page Page, texts []string, boxes []Box) ([]Prediction, error) {
	m.calls++
	m.texts = texts
	m.boxes = boxes
	if m.err != nil {
		return nil, m.err
	}
	preds := make([]Prediction, 0, len(texts))
	for _, t := range texts {
		if t == m.panicOn {
			panic("model exploded")
		}
		label, ok := m.labels[t]
		if !ok {
			label = "O"
		}
		preds = append(preds, Prediction{Label: label, Score: 0.9})
	}
	if m.short {
		return preds[:len(preds)-1], nil
	}
	return preds, nil
}

// word places a word on a 1000x1000 page so pixel and normalized coordinates coincide.
func word(text string, left, top int) Word {
	return Word{Text: text, Left: left, Top: top, Width: 40, Height: 10}
}

var _ = Describe("Engine", func() {
	var (
		decoder    *mockDecoder
		ocr        *mockOCR
		classifier *mockClassifier
		engine     *Engine
		result     Result
	)

	BeforeEach(func() {
		decoder = &mockDecoder{page: Page{PNG: []byte("png"), Width: 1000, Height: 1000}}
		ocr = &mockOCR{}
		classifier = &mockClassifier{labels: map[string]string{}}
	})

	JustBeforeEach(func() {
		engine = NewEngine(DefaultConfig(), decoder, ocr, classifier)
		result = engine.Extract(context.Background(), []byte("image"), "image/png")
	})

	When("the receipt has items and an explicit total", func() {
		BeforeEach(func() {
			ocr.words = []Word{
				word("Description", 100, 50), word("Qty", 500, 50), word("Amount", 850, 50),
				word("1", 10, 100), word("Paneer", 100, 100), word("Tikka", 160, 100), word("2", 500, 100), word("240.00", 850, 100),
				word("2", 10, 140), word("Naan", 100, 140), word("1", 500, 140), word("60.00", 850, 140),
				word("TOTAL", 100, 200), word("330.00", 850, 200),
			}
			classifier.labels = map[string]string{
				"Paneer": "MENU.NM", "Tikka": "MENU.NM", "Naan": "MENU.NM",
				"240.00": "MENU.PRICE", "60.00": "MENU.PRICE",
				"TOTAL": "TOTAL.TOTAL_PRICE", "330.00": "TOTAL.TOTAL_PRICE",
			}
		})

		It("succeeds", func() {
			Expect(result.Success).To(BeTrue())
			Expect(result.Error).To(BeEmpty())
		})

		It("extracts the line items", func() {
			Expect(result.Items).To(Equal([]LineItem{
				{Name: "Paneer Tikka", Quantity: 2, Price: 240},
				{Name: "Naan", Quantity: 1, Price: 60},
			}))
		})

		It("reconciles the summary", func() {
			Expect(result.Summary).To(Equal(Summary{Subtotal: 300, Tax: 30, Total: 330, IsTaxAdded: true}))
		})

		It("passes normalized boxes to the classifier", func() {
			Expect(classifier.boxes[0]).To(Equal(Box{100, 50, 140, 60}))
		})
	})

	When("OCR finds no text", func() {
		BeforeEach(func() {
			ocr.words = []Word{word("  ", 10, 10), word("", 20, 20)}
		})

		It("reports no text detected", func() {
			Expect(result.Success).To(BeFalse())
			Expect(result.Error).To(Equal("No text detected in image"))
		})

		It("never invokes the classifier", func() {
			Expect(classifier.calls).To(BeZero())
		})
	})

	When("only a header row is present", func() {
		BeforeEach(func() {
			ocr.words = []Word{
				word("Description", 100, 50), word("Rate", 400, 50),
				word("Qty", 600, 50), word("Amount", 850, 50),
			}
		})

		It("returns an empty item list", func() {
			Expect(result.Success).To(BeTrue())
			Expect(result.Items).To(BeEmpty())
			Expect(result.Items).NotTo(BeNil())
		})

		It("reports a zero subtotal", func() {
			Expect(result.Summary.Subtotal).To(Equal(0.0))
		})
	})

	When("OCR words carry surrounding whitespace", func() {
		BeforeEach(func() {
			ocr.words = []Word{word(" Tea ", 100, 100), word("20.00", 850, 100)}
		})

		It("trims them before classification", func() {
			Expect(classifier.texts).To(Equal([]string{"Tea", "20.00"}))
		})
	})

	When("the image cannot be decoded", func() {
		BeforeEach(func() {
			decoder.err = errors.New("unsupported image format")
		})

		It("fails with the decoder message", func() {
			Expect(result.Success).To(BeFalse())
			Expect(result.Error).To(ContainSubstring("unsupported image format"))
		})
	})

	When("the page has no dimensions", func() {
		BeforeEach(func() {
			decoder.page = Page{}
			ocr.words = []Word{word("Tea", 100, 100)}
		})

		It("fails before OCR", func() {
			Expect(result.Success).To(BeFalse())
			Expect(result.Error).To(ContainSubstring("invalid page dimensions"))
		})
	})

	When("OCR fails", func() {
		BeforeEach(func() {
			ocr.err = errors.New("tesseract missing")
		})

		It("fails with the OCR message", func() {
			Expect(result.Error).To(ContainSubstring("tesseract missing"))
		})
	})

	When("the classifier fails", func() {
		BeforeEach(func() {
			ocr.words = []Word{word("Tea", 100, 100)}
			classifier.err = errors.New("model unavailable")
		})

		It("returns a failure carrying the message", func() {
			Expect(result.Success).To(BeFalse())
			Expect(result.Error).To(ContainSubstring("model unavailable"))
			Expect(result.Items).To(BeNil())
		})
	})

	When("the classifier returns too few predictions", func() {
		BeforeEach(func() {
			ocr.words = []Word{word("Tea", 100, 100), word("20.00", 850, 100)}
			classifier.short = true
		})

		It("fails", func() {
			Expect(result.Success).To(BeFalse())
			Expect(result.Error).To(ContainSubstring("prediction count"))
		})
	})

	When("a stage panics", func() {
		BeforeEach(func() {
			ocr.words = []Word{word("boom", 100, 100)}
			classifier.panicOn = "boom"
		})

		It("recovers into a failure result", func() {
			Expect(result.Success).To(BeFalse())
			Expect(result.Error).To(ContainSubstring("model exploded"))
		})
	})

	Describe("JSON output", func() {
		It("emits the success payload", func() {
			data, err := json.Marshal(Result{Success: true, Summary: Summary{Subtotal: 1, Total: 1}})
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(MatchJSON(`{"success":true,"items":[],"summary":{"subtotal":1,"tax":0,"total":1,"is_tax_added":false}}`))
		})

		It("emits the failure payload without items or summary", func() {
			data, err := json.Marshal(Failure("No text detected in image"))
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(MatchJSON(`{"success":false,"error":"No text detected in image"}`))
		})

		It("reads back both shapes", func() {
			var r Result
			Expect(json.Unmarshal([]byte(`{"success":true,"items":[{"name":"Tea","qty":2,"price":4.5}],"summary":{"total":4.5}}`), &r)).To(Succeed())
			Expect(r.Items).To(Equal([]LineItem{{Name: "Tea", Quantity: 2, Price: 4.5}}))
			Expect(r.Summary.Total).To(Equal(4.5))
		})
	})
})

var _ = Describe("Serialized", func() {
	It("forwards calls to the wrapped classifier", func() {
		inner := &mockClassifier{labels: map[string]string{"Tea": "MENU.NM"}}
		preds, err := Serialized(inner).Classify(context.Background(), Page{}, []string{"Tea"}, []Box{{}})
		Expect(err).NotTo(HaveOccurred())
		Expect(preds).To(Equal([]Prediction{{Label: "MENU.NM", Score: 0.9}}))
	})

	It("runs concurrent calls one at a time", func() {
		inner := &mockClassifier{labels: map[string]string{}}
		c := Serialized(inner)
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				_, err := c.Classify(context.Background(), Page{}, []string{"x"}, []Box{{}})
				Expect(err).NotTo(HaveOccurred())
			}()
		}
		wg.Wait()
		Expect(inner.calls).To(Equal(20))
	})
})
