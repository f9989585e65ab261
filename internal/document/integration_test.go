package document_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/docscan/internal/classify"
	"github.com/zombor/docscan/internal/document"
	"github.com/zombor/docscan/internal/embedding"
	"github.com/zombor/docscan/internal/ocr"
	"github.com/zombor/docscan/internal/pipeline"
)

const checkAnalysis = `{
  "status": "succeeded",
  "analyzeResult": {
    "pages": [{"lines": [
      {"content": "1001"},
      {"content": "John Smith"},
      {"content": "12 Main St"},
      {"content": "Pay to the order of"},
      {"content": "Jane Doe"},
      {"content": "$1,234.56"},
      {"content": "One thousand two hundred thirty four dollars"},
      {"content": "Memo"},
      {"content": "Rent"},
      {"content": "|021000021| 0001234567"}
    ]}]
  }
}`

const invoiceAnalysis = `{
  "status": "succeeded",
  "analyzeResult": {
    "pages": [{"lines": [
      {"content": "INVOICE"},
      {"content": "Invoice number INV-100 date due"},
      {"content": "Bill to Contoso"},
      {"content": "Item description quantity price amount"},
      {"content": "Subtotal tax total payment"}
    ]}],
    "documents": [{"docType": "invoice", "fields": {
      "InvoiceId": {"type": "string", "content": "INV-100"},
      "CustomerName": {"type": "string", "content": "Contoso"},
      "InvoiceTotal": {"type": "currency", "content": "$110.00"},
      "Items": {"type": "array", "valueArray": [
        {"type": "object", "valueObject": {"Description": {"content": "Consulting"}, "Amount": {"content": "$100.00"}}},
        {"type": "object", "valueObject": {"Description": {"content": "Travel"}, "Amount": {"content": "$10.00"}}}
      ]}
    }}]
  }
}`

var _ = Describe("Integration", func() {
	var (
		engine   *ghttp.Server
		db       *document.BoltDB
		api      *ghttp.Server
		analysis string
	)

	BeforeEach(func() {
		tempDir := GinkgoT().TempDir()

		var err error
		db, err = document.NewBoltDB(filepath.Join(tempDir, "docscan.db"))
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(db.Close)

		store, err := document.NewLocalStorage(filepath.Join(tempDir, "uploads"))
		Expect(err).NotTo(HaveOccurred())

		engine = ghttp.NewServer()
		DeferCleanup(engine.Close)

		analyzer, err := ocr.NewAzure(ocr.AzureConfig{
			Endpoint:     engine.URL(),
			Key:          "secret",
			PollInterval: time.Millisecond,
		}, nil)
		Expect(err).NotTo(HaveOccurred())

		classifier, err := classify.New(context.Background(), embedding.NewHashing(0), classify.DefaultReferences())
		Expect(err).NotTo(HaveOccurred())

		service := document.NewService(db, store, analyzer, pipeline.New(classifier, nil), nil)
		server := document.NewServer(service, document.BasicAuth{}, nil)

		api = ghttp.NewServer()
		DeferCleanup(api.Close)
		api.RouteToHandler("POST", "/upload-invoice/", server.ServeHTTP)
		api.RouteToHandler("GET", "/api/documents", server.ServeHTTP)
	})

	JustBeforeEach(func() {
		engine.AppendHandlers(
			ghttp.RespondWith(http.StatusAccepted, "", http.Header{
				"Operation-Location": []string{engine.URL() + "/operations/1"},
			}),
			ghttp.RespondWith(http.StatusOK, `{"status": "running"}`),
			ghttp.RespondWith(http.StatusOK, analysis),
		)
	})

	upload := func() map[string]any {
		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		part, err := writer.CreateFormFile("file", "scan.pdf")
		Expect(err).NotTo(HaveOccurred())
		_, err = part.Write([]byte("%PDF-1.4"))
		Expect(err).NotTo(HaveOccurred())
		Expect(writer.Close()).To(Succeed())

		resp, err := http.Post(api.URL()+"/upload-invoice/", writer.FormDataContentType(), body)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		data, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		var record map[string]any
		Expect(json.Unmarshal(data, &record)).To(Succeed())
		return record
	}

	When("a check is uploaded", func() {
		BeforeEach(func() {
			analysis = checkAnalysis
		})

		It("should extract the check fields", func() {
			record := upload()
			Expect(record).To(HaveKeyWithValue("DocumentType", "check"))
			Expect(record).To(HaveKeyWithValue("CheckNumber", "1001"))
			Expect(record).To(HaveKeyWithValue("PayeeName", "Jane Doe"))
			Expect(record).To(HaveKeyWithValue("Amount", "1234.56"))
			Expect(record).To(HaveKeyWithValue("Memo", "Rent"))
			Expect(record).To(HaveKeyWithValue("RoutingNumber", "021000021"))
			Expect(record).To(HaveKeyWithValue("AccountNumber", "0001234567"))
			Expect(record).To(HaveKeyWithValue("PayerName", "1001"))
			Expect(record).To(HaveKeyWithValue("PayerAddress", "John Smith"))
			Expect(record).To(HaveKeyWithValue("BankName", BeNil()))
		})

		It("should keep the document", func() {
			upload()

			docs, err := db.ListDocuments()
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(HaveLen(1))
			Expect(docs[0].Type).To(Equal(classify.Check))
			Expect(docs[0].ContentType).To(Equal("application/pdf"))
		})
	})

	When("an invoice is uploaded", func() {
		BeforeEach(func() {
			analysis = invoiceAnalysis
		})

		It("should flatten the structured fields", func() {
			record := upload()
			Expect(record).To(HaveKeyWithValue("DocumentType", "invoice"))
			Expect(record).To(HaveKeyWithValue("InvoiceId", "INV-100"))
			Expect(record).To(HaveKeyWithValue("CustomerName", "Contoso"))
			Expect(record).To(HaveKeyWithValue("VendorName", BeNil()))
			Expect(record["Items"]).To(HaveLen(2))
			Expect(record["Items"].([]any)[0]).To(HaveKeyWithValue("Description", "Consulting"))
		})
	})

	When("the engine reports a failed analysis", func() {
		BeforeEach(func() {
			analysis = `{"status": "failed", "error": {"code": "InvalidContent"}}`
		})

		It("should return the error record with the engine payload", func() {
			record := upload()
			Expect(record).To(HaveKeyWithValue("error", "Document processing failed"))
			Expect(record["details"]).To(HaveKeyWithValue("status", "failed"))
		})
	})
})
