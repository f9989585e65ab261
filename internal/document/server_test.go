package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"regexp"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/docscan/internal/ocr"
)

// multipartUpload builds a multipart body with a single "file" part
func multipartUpload(filename, contentType string, data []byte) (*bytes.Buffer, string) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	part, err := writer.CreatePart(header)
	Expect(err).NotTo(HaveOccurred())
	_, err = part.Write(data)
	Expect(err).NotTo(HaveOccurred())
	Expect(writer.Close()).To(Succeed())

	return body, writer.FormDataContentType()
}

var _ = Describe("Server", func() {
	var (
		db          *mockDB
		storage     *mockStorage
		analyzer    *mockAnalyzer
		processor   *mockProcessor
		auth        BasicAuth
		ghttpServer *ghttp.Server
	)

	BeforeEach(func() {
		db = newMockDB()
		storage = newMockStorage()
		analyzer = &mockAnalyzer{result: &ocr.Result{AnalyzeResult: &ocr.AnalyzeResult{}}}
		processor = &mockProcessor{result: checkRecord()}
		auth = BasicAuth{}
	})

	JustBeforeEach(func() {
		service := NewServiceWithDeps(db, storage, analyzer, processor, &mockIDGenerator{id: "doc-1"}, &mockTimeSource{}, nil)
		server := NewServer(service, auth, nil)
		ghttpServer = ghttp.NewServer()
		for _, method := range []string{"GET", "POST", "DELETE", "OPTIONS"} {
			ghttpServer.RouteToHandler(method, regexp.MustCompile(`.*`), server.ServeHTTP)
		}
	})

	AfterEach(func() {
		ghttpServer.Close()
	})

	upload := func(path, filename, contentType string, data []byte) *http.Response {
		body, formType := multipartUpload(filename, contentType, data)
		resp, err := http.Post(ghttpServer.URL()+path, formType, body)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	decode := func(resp *http.Response, v any) {
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(json.Unmarshal(body, v)).To(Succeed())
	}

	Describe("POST /upload-invoice/", func() {
		It("should return the bare record", func() {
			resp := upload("/upload-invoice/", "check.jpg", "image/jpeg", []byte("image"))
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("application/json"))

			var record map[string]any
			decode(resp, &record)
			Expect(record).To(HaveKeyWithValue("DocumentType", "check"))
			Expect(record).To(HaveKeyWithValue("CheckNumber", "1001"))
			Expect(record).NotTo(HaveKey("id"))
		})

		When("the engine fails", func() {
			BeforeEach(func() {
				analyzer.err = ocr.ErrTimeout
			})

			It("should return the error record", func() {
				resp := upload("/upload-invoice/", "check.jpg", "image/jpeg", []byte("image"))
				Expect(resp.StatusCode).To(Equal(http.StatusOK))

				var record map[string]any
				decode(resp, &record)
				Expect(record).To(Equal(map[string]any{"error": "Processing timeout"}))
			})
		})

		When("no file is sent", func() {
			It("should return status Bad Request", func() {
				body := &bytes.Buffer{}
				writer := multipart.NewWriter(body)
				Expect(writer.WriteField("other", "value")).To(Succeed())
				Expect(writer.Close()).To(Succeed())

				resp, err := http.Post(ghttpServer.URL()+"/upload-invoice/", writer.FormDataContentType(), body)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

				var record map[string]any
				decode(resp, &record)
				Expect(record).To(HaveKey("error"))
			})
		})
	})

	Describe("POST /api/documents", func() {
		It("should return the stored document", func() {
			resp := upload("/api/documents", "check.jpg", "image/jpeg", []byte("image"))
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))

			var doc map[string]any
			decode(resp, &doc)
			Expect(doc).To(HaveKeyWithValue("id", "doc-1"))
			Expect(doc).To(HaveKeyWithValue("type", "check"))
			Expect(doc["result"]).To(HaveKeyWithValue("PayeeName", "Jane Doe"))
		})

		It("should infer the content type from the extension", func() {
			resp := upload("/api/documents", "scan.HEIC", "", []byte("image"))
			resp.Body.Close()
			Expect(analyzer.contentType).To(Equal("image/heic"))
		})

		When("the document cannot be stored", func() {
			BeforeEach(func() {
				db.saveErr = errors.New("db closed")
			})

			It("should return status Internal Server Error", func() {
				resp := upload("/api/documents", "check.jpg", "image/jpeg", []byte("image"))
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
			})
		})
	})

	Describe("GET /api/documents", func() {
		When("no documents exist", func() {
			It("should return an empty array", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/documents")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusOK))

				var docs []*Document
				decode(resp, &docs)
				Expect(docs).NotTo(BeNil())
				Expect(docs).To(BeEmpty())
			})
		})

		When("listing fails", func() {
			BeforeEach(func() {
				db.listErr = errors.New("db closed")
			})

			It("should return status Internal Server Error", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/documents")
				Expect(err).NotTo(HaveOccurred())
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
			})
		})
	})

	Describe("documents by id", func() {
		BeforeEach(func() {
			db.documents["doc-1"] = &Document{ID: "doc-1", Filename: "doc-1_a.pdf", ContentType: "application/pdf", Result: invoiceRecord()}
			storage.files["doc-1_a.pdf"] = []byte("%PDF")
		})

		It("should return the document", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/documents/doc-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var doc Document
			decode(resp, &doc)
			Expect(doc.Result.Invoice.Items).To(HaveLen(2))
		})

		It("should return status Not Found for unknown ids", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/documents/nope")
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})

		It("should return the upload with its content type", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/documents/doc-1/file")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.Header.Get("Content-Type")).To(Equal("application/pdf"))
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(body).To(Equal([]byte("%PDF")))
		})

		It("should delete the document", func() {
			req, err := http.NewRequest("DELETE", ghttpServer.URL()+"/api/documents/doc-1", nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(db.documents).To(BeEmpty())
		})
	})

	Describe("GET /api/export.xlsx", func() {
		It("should return a workbook", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/export.xlsx")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Disposition")).To(HavePrefix("attachment"))
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(body[:2]).To(Equal([]byte("PK")))
		})
	})

	Describe("CORS", func() {
		It("should answer preflight requests", func() {
			req, err := http.NewRequest("OPTIONS", ghttpServer.URL()+"/upload-invoice/", nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("*"))
		})
	})

	Describe("basic auth", func() {
		BeforeEach(func() {
			auth = BasicAuth{Username: "admin", Password: "secret"}
		})

		It("should reject requests without credentials", func() {
			resp, err := http.Get(ghttpServer.URL() + "/api/documents")
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(resp.Header.Get("WWW-Authenticate")).To(ContainSubstring("Basic"))
			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("*"))
		})

		It("should reject wrong credentials", func() {
			req, err := http.NewRequest("GET", ghttpServer.URL()+"/api/documents", nil)
			Expect(err).NotTo(HaveOccurred())
			req.SetBasicAuth("admin", "wrong")
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		})

		It("should accept valid credentials", func() {
			req, err := http.NewRequest("GET", ghttpServer.URL()+"/api/documents", nil)
			Expect(err).NotTo(HaveOccurred())
			req.SetBasicAuth("admin", "secret")
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})

		It("should leave the health check open", func() {
			resp, err := http.Get(ghttpServer.URL() + "/healthz")
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})
	})
})
