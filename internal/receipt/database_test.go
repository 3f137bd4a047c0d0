package receipt

import (
	"errors"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/bill-lines/internal/extraction"
)

var _ = Describe("BoltDB", func() {
	var (
		tmpDir string
		dbPath string
		db     *BoltDB
	)

	newExtraction := func(id string) *Extraction {
		return &Extraction{
			ID:          id,
			Filename:    id + "_bill.jpg",
			ContentType: "image/jpeg",
			Result: extraction.Result{
				Success: true,
				Items:   []extraction.LineItem{{Name: "Paneer Tikka", Quantity: 2, Price: 240}},
				Summary: extraction.Summary{Subtotal: 240, Tax: 12, Total: 252, IsTaxAdded: true},
			},
			CreatedAt: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
		}
	}

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		dbPath = filepath.Join(tmpDir, "test.db")
		var err error
		db, err = NewBoltDB(dbPath)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	Describe("SaveExtraction and GetExtraction", func() {
		var (
			saved *Extraction
			got   *Extraction
			err   error
		)

		BeforeEach(func() {
			saved = newExtraction("00000000000000000001")
		})

		JustBeforeEach(func() {
			Expect(db.SaveExtraction(saved)).To(Succeed())
			got, err = db.GetExtraction(saved.ID)
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should round trip the record", func() {
			Expect(got.ID).To(Equal(saved.ID))
			Expect(got.Filename).To(Equal(saved.Filename))
			Expect(got.CreatedAt.Equal(saved.CreatedAt)).To(BeTrue())
		})

		It("should round trip the extraction result", func() {
			Expect(got.Result.Success).To(BeTrue())
			Expect(got.Result.Items).To(Equal(saved.Result.Items))
			Expect(got.Result.Summary).To(Equal(saved.Result.Summary))
		})
	})

	Describe("GetExtraction", func() {
		When("the extraction does not exist", func() {
			It("should return ErrNotFound", func() {
				_, err := db.GetExtraction("missing")
				Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
			})
		})
	})

	Describe("ListExtractions", func() {
		When("the database is empty", func() {
			It("should return an empty slice", func() {
				extractions, err := db.ListExtractions()
				Expect(err).NotTo(HaveOccurred())
				Expect(extractions).NotTo(BeNil())
				Expect(extractions).To(BeEmpty())
			})
		})

		When("extractions exist", func() {
			BeforeEach(func() {
				Expect(db.SaveExtraction(newExtraction("00000000000000000002"))).To(Succeed())
				Expect(db.SaveExtraction(newExtraction("00000000000000000001"))).To(Succeed())
			})

			It("should return them in key order", func() {
				extractions, err := db.ListExtractions()
				Expect(err).NotTo(HaveOccurred())
				Expect(extractions).To(HaveLen(2))
				Expect(extractions[0].ID).To(Equal("00000000000000000001"))
				Expect(extractions[1].ID).To(Equal("00000000000000000002"))
			})
		})
	})

	Describe("DeleteExtraction", func() {
		BeforeEach(func() {
			Expect(db.SaveExtraction(newExtraction("abc"))).To(Succeed())
		})

		It("should remove the record", func() {
			Expect(db.DeleteExtraction("abc")).To(Succeed())
			_, err := db.GetExtraction("abc")
			Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
		})
	})

	Describe("reopening", func() {
		It("should keep saved records", func() {
			Expect(db.SaveExtraction(newExtraction("abc"))).To(Succeed())
			Expect(db.Close()).To(Succeed())

			var err error
			db, err = NewBoltDB(dbPath)
			Expect(err).NotTo(HaveOccurred())

			got, err := db.GetExtraction("abc")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Result.Summary.Total).To(Equal(252.0))
		})
	})
})
