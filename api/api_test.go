package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	apisearch "github.com/rasaya1/OCRFastAPI/api/search"
	"github.com/rasaya1/OCRFastAPI/pkg/doctype"
	"github.com/rasaya1/OCRFastAPI/pkg/embeddings/hashing"
	"github.com/rasaya1/OCRFastAPI/pkg/logger"
	"github.com/rasaya1/OCRFastAPI/pkg/ocr"
	"github.com/rasaya1/OCRFastAPI/pkg/pipeline"
	"github.com/rasaya1/OCRFastAPI/pkg/store"
	testutils "github.com/rasaya1/OCRFastAPI/pkg/utils/test"
)

type uploadLoader struct{}

func (uploadLoader) Pages(context.Context, string) ([]image.Image, error) {
	return []image.Image{image.NewGray(image.Rect(0, 0, 16, 16))}, nil
}

func newTestStore() *store.Store {
	minScore := 0.3
	s, err := store.Open(context.Background(), store.Config{
		Dir:              filepath.Join(GinkgoT().TempDir(), "store"),
		Embedder:         hashing.NewEmbedder(hashing.Config{Dimensions: 512}),
		MinClassifyScore: &minScore,
	})
	Expect(err).NotTo(HaveOccurred())
	DeferCleanup(s.Close)
	return s
}

func newTestProcessor(text string) *pipeline.Processor {
	rec := testutils.NewMockRecognizer(func(string, ocr.RecognizeConfig) (ocr.Recognition, error) {
		return ocr.Recognition{Text: text, Confidence: ocr.Float64(87.456)}, nil
	}, "only")

	p, err := pipeline.NewProcessor(pipeline.ProcessorConfig{
		Loader:     uploadLoader{},
		Extractor:  ocr.NewExtractor(ocr.Config{}),
		Recognizer: rec,
	})
	Expect(err).NotTo(HaveOccurred())
	return p
}

func upload(name, content string) *http.Request {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", name)
	Expect(err).NotTo(HaveOccurred())
	_, err = part.Write([]byte(content))
	Expect(err).NotTo(HaveOccurred())
	Expect(w.Close()).To(Succeed())

	req, err := http.NewRequest(http.MethodPost, "/extract_entities/", &body)
	Expect(err).NotTo(HaveOccurred())
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func decode[T any](resp *http.Response) T {
	defer resp.Body.Close()
	var out T
	body, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	Expect(json.Unmarshal(body, &out)).To(Succeed(), string(body))
	return out
}

var _ = Describe("Server", func() {
	var (
		server *Server
		st     *store.Store
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		st = newTestStore()

		var err error
		server, err = NewServer(Config{
			ListenAddr: ":0",
			Store:      st,
			Processor:  newTestProcessor("INVOICE #INV-2024-001\nDate: 01/15/2024\nTotal: $1,250.00"),
			Logger:     logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())
	})

	It("requires a store", func() {
		_, err := NewServer(Config{})
		Expect(err).To(MatchError(ContainSubstring("document store is required")))
	})

	Describe("GET /ping", func() {
		It("returns pong", func() {
			req, _ := http.NewRequest(http.MethodGet, "/ping", nil)
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			Expect(decode[string](resp)).To(Equal("pong"))
		})
	})

	Describe("GET /health", func() {
		It("reports healthy with a timestamp", func() {
			req, _ := http.NewRequest(http.MethodGet, "/health", nil)
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())

			health := decode[HealthResponse](resp)
			Expect(health.Status).To(Equal("healthy"))
			Expect(health.Timestamp).To(BeNumerically(">", 0))
		})
	})

	Describe("POST /v1/documents", func() {
		post := func(body string) *http.Response {
			req, _ := http.NewRequest(http.MethodPost, "/v1/documents", strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			return resp
		}

		It("stores documents at consecutive positions", func() {
			resp := post(`{"text":"Invoice bill to ACME","file_path":"a.txt","confidence":91}`)
			Expect(resp.StatusCode).To(Equal(fiber.StatusCreated))
			Expect(decode[AddDocumentResponse](resp).Position).To(Equal(0))

			resp = post(`{"text":"Receipt from the corner store","file_path":"b.txt"}`)
			Expect(decode[AddDocumentResponse](resp).Position).To(Equal(1))
			Expect(st.Stats().TotalDocuments).To(Equal(2))
		})

		It("rejects blank text", func() {
			resp := post(`{"text":"   ","file_path":"a.txt"}`)
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("rejects malformed bodies", func() {
			resp := post(`{"text":`)
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})
	})

	Context("with indexed documents", func() {
		BeforeEach(func() {
			for _, doc := range []struct{ text, path string }{
				{"INVOICE bill to ACME, payment amount due $120.00", "inv.txt"},
				{"Store name: Corner Market receipt, transaction 7781", "rcpt.txt"},
				{"This service agreement is a contract between the parties", "contract.txt"},
			} {
				_, err := st.Add(ctx, doc.text, doc.path, 90)
				Expect(err).NotTo(HaveOccurred())
			}
		})

		Describe("GET /v1/search", func() {
			It("returns 400 when query is missing", func() {
				req, _ := http.NewRequest(http.MethodGet, "/v1/search", nil)
				resp, err := server.app.Test(req)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
				Expect(decode[ErrorResponse](resp).Error).To(ContainSubstring("query parameter is required"))
			})

			It("returns 400 for a bad top_k", func() {
				for _, q := range []string{"abc", "0", "-2"} {
					req, _ := http.NewRequest(http.MethodGet, "/v1/search?query=x&top_k="+q, nil)
					resp, err := server.app.Test(req)
					Expect(err).NotTo(HaveOccurred())
					Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
				}
			})

			It("ranks the invoice first", func() {
				req, _ := http.NewRequest(http.MethodGet, "/v1/search?query=invoice+payment+amount&top_k=2", nil)
				resp, err := server.app.Test(req)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

				out := decode[apisearch.SearchOutput](resp)
				Expect(out.Query).To(Equal("invoice payment amount"))
				Expect(out.Count).To(Equal(2))
				Expect(out.Results[0].FilePath).To(Equal("inv.txt"))
				Expect(out.Results[0].Score).To(BeNumerically(">=", out.Results[1].Score))
			})
		})

		Describe("GET /v1/classify", func() {
			It("requires text", func() {
				req, _ := http.NewRequest(http.MethodGet, "/v1/classify", nil)
				resp, err := server.app.Test(req)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
			})

			It("classifies text", func() {
				req, _ := http.NewRequest(http.MethodGet, "/v1/classify?text=service+agreement+contract+between+parties", nil)
				resp, err := server.app.Test(req)
				Expect(err).NotTo(HaveOccurred())
				Expect(decode[store.Classification](resp).Type).To(Equal(doctype.Contract))
			})
		})

		Describe("GET /v1/documents", func() {
			It("lists documents of one type", func() {
				req, _ := http.NewRequest(http.MethodGet, "/v1/documents?type=receipt", nil)
				resp, err := server.app.Test(req)
				Expect(err).NotTo(HaveOccurred())

				out := decode[map[string]any](resp)
				Expect(out["count"]).To(BeNumerically("==", 1))
			})

			It("lists a type outside the built-in set as empty", func() {
				req, _ := http.NewRequest(http.MethodGet, "/v1/documents?type=memo", nil)
				resp, err := server.app.Test(req)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

				out := decode[map[string]any](resp)
				Expect(out["document_type"]).To(Equal("memo"))
				Expect(out["count"]).To(BeNumerically("==", 0))
				Expect(out["documents"]).To(BeEmpty())
			})

			It("requires a type", func() {
				req, _ := http.NewRequest(http.MethodGet, "/v1/documents?type=%20", nil)
				resp, err := server.app.Test(req)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
			})
		})

		Describe("GET /stats", func() {
			It("reports counts per type", func() {
				req, _ := http.NewRequest(http.MethodGet, "/stats", nil)
				resp, err := server.app.Test(req)
				Expect(err).NotTo(HaveOccurred())

				stats := decode[store.Stats](resp)
				Expect(stats.TotalDocuments).To(Equal(3))
				Expect(stats.EmbeddingDimension).To(Equal(512))
				Expect(stats.DocumentTypes).To(HaveKeyWithValue(doctype.Contract, 1))
			})
		})
	})

	Describe("POST /extract_entities/", func() {
		It("extracts entities from an uploaded scan", func() {
			resp, err := server.app.Test(upload("scan.PNG", "not really a png"))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			out := decode[ExtractEntitiesResponse](resp)
			Expect(out.DocumentType).To(Equal(doctype.Invoice))
			Expect(out.Confidence).To(Equal(0.5))
			Expect(out.OCRConfidence).To(Equal(87.46))
			Expect(out.ProcessingTime).To(MatchRegexp(`^\d+\.\d{2}s$`))
			Expect(out.Entities).To(HaveKeyWithValue("invoice_number", "INV-2024-001"))
			Expect(out.Entities).To(HaveKeyWithValue("total_amount", "$1,250.00"))
		})

		It("rejects unsupported formats", func() {
			resp, err := server.app.Test(upload("notes.docx", "x"))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
			Expect(decode[ErrorResponse](resp).Error).To(ContainSubstring(".pdf"))
		})

		It("returns 422 when no text is found", func() {
			var err error
			server, err = NewServer(Config{Store: st, Processor: newTestProcessor("  ")})
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(upload("blank.jpg", "x"))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusUnprocessableEntity))
		})

		It("returns 503 without an OCR processor", func() {
			var err error
			server, err = NewServer(Config{Store: st})
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(upload("scan.png", "x"))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusServiceUnavailable))
		})

		It("requires a file", func() {
			req, _ := http.NewRequest(http.MethodPost, "/extract_entities/", nil)
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})
	})
})
