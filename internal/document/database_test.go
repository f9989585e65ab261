package document

import (
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/docscan/internal/classify"
	"github.com/zombor/docscan/internal/pipeline"
)

var _ = Describe("BoltDB", func() {
	var (
		dbPath string
		db     *BoltDB
	)

	BeforeEach(func() {
		dbPath = filepath.Join(GinkgoT().TempDir(), "test.db")
		var err error
		db, err = NewBoltDB(dbPath)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	When("a check document is saved", func() {
		var saved *Document

		BeforeEach(func() {
			saved = &Document{
				ID:          "doc-1",
				Filename:    "doc-1_check.jpg",
				ContentType: "image/jpeg",
				Type:        classify.Check,
				Result:      checkRecord(),
				CreatedAt:   time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
			}
			Expect(db.SaveDocument(saved)).To(Succeed())
		})

		It("should load it back with its record", func() {
			doc, err := db.GetDocument("doc-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(doc.Filename).To(Equal("doc-1_check.jpg"))
			Expect(doc.Type).To(Equal(classify.Check))
			Expect(doc.CreatedAt).To(BeTemporally("==", saved.CreatedAt))
			Expect(doc.Result.Check).NotTo(BeNil())
			Expect(doc.Result.Check.Amount).To(HaveValue(Equal("1234.56")))
			Expect(doc.Result.Check.Memo).To(BeNil())
		})

		It("should delete it", func() {
			Expect(db.DeleteDocument("doc-1")).To(Succeed())
			_, err := db.GetDocument("doc-1")
			Expect(err).To(MatchError(ErrNotFound))
		})

		It("should persist across reopen", func() {
			Expect(db.Close()).To(Succeed())
			var err error
			db, err = NewBoltDB(dbPath)
			Expect(err).NotTo(HaveOccurred())

			doc, err := db.GetDocument("doc-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(doc.ID).To(Equal("doc-1"))
		})
	})

	When("the document does not exist", func() {
		It("should return ErrNotFound", func() {
			_, err := db.GetDocument("missing")
			Expect(err).To(MatchError(ErrNotFound))
		})
	})

	Describe("ListDocuments", func() {
		It("should return an empty list for an empty database", func() {
			docs, err := db.ListDocuments()
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).NotTo(BeNil())
			Expect(docs).To(BeEmpty())
		})

		It("should return documents newest first", func() {
			base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
			Expect(db.SaveDocument(&Document{ID: "a", Result: checkRecord(), CreatedAt: base})).To(Succeed())
			Expect(db.SaveDocument(&Document{ID: "b", Result: invoiceRecord(), CreatedAt: base.Add(2 * time.Hour)})).To(Succeed())
			Expect(db.SaveDocument(&Document{ID: "c", Result: pipeline.Failure("Processing timeout", nil), CreatedAt: base.Add(time.Hour)})).To(Succeed())

			docs, err := db.ListDocuments()
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(HaveLen(3))
			Expect([]string{docs[0].ID, docs[1].ID, docs[2].ID}).To(Equal([]string{"b", "c", "a"}))
			Expect(docs[0].Result.Invoice.Items).To(HaveLen(2))
			Expect(docs[1].Result.Error.Error).To(Equal("Processing timeout"))
		})
	})
})
