package searchcmder_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	apisearch "github.com/rasaya1/OCRFastAPI/api/search"
	searchcmder "github.com/rasaya1/OCRFastAPI/cmd/ocrfast/search"
	"github.com/rasaya1/OCRFastAPI/pkg/embeddings/hashing"
	"github.com/rasaya1/OCRFastAPI/pkg/store"
)

var _ = Describe("Search command", func() {
	var (
		tmpDir   string
		storeDir string
		out      *bytes.Buffer
	)

	run := func(args ...string) error {
		cmd := searchcmder.NewSearchCmd()
		cmd.PersistentFlags().Bool("debug", false, "")
		cmd.PersistentFlags().String("log-format", "text", "")
		cmd.PersistentFlags().String("config-dir", "", "")
		cmd.SetOut(out)
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs(append(args,
			"--config-dir", filepath.Join(tmpDir, ".ocrfast"),
			"--store-dir", storeDir,
			"--embedding-provider", "hashing",
			"--embedding-dimensions", "256",
		))
		return cmd.Execute()
	}

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		storeDir = filepath.Join(tmpDir, "store")
		out = &bytes.Buffer{}
	})

	Context("against the local store", func() {
		BeforeEach(func() {
			ctx := context.Background()
			s, err := store.Open(ctx, store.Config{
				Dir:      storeDir,
				Embedder: hashing.NewEmbedder(hashing.Config{Dimensions: 256}),
			})
			Expect(err).NotTo(HaveOccurred())

			_, err = s.Add(ctx, "INVOICE 1001 payment amount due", "/scans/inv.png", 91)
			Expect(err).NotTo(HaveOccurred())
			_, err = s.Add(ctx, "employment contract between the parties", "/scans/contract.png", 88)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Save(ctx)).To(Succeed())
			Expect(s.Close()).To(Succeed())
		})

		It("prints ranked results", func() {
			Expect(run("invoice payment amount")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("Search Results for:"))
			Expect(out.String()).To(ContainSubstring("#1"))
			Expect(out.String()).To(ContainSubstring("/scans/inv.png"))
		})

		It("prints only file paths with --quiet", func() {
			Expect(run("invoice payment amount", "--quiet", "--top", "1")).To(Succeed())
			Expect(strings.TrimSpace(out.String())).To(Equal("/scans/inv.png"))
		})
	})

	It("reports an empty store", func() {
		Expect(run("anything")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("No results found."))
	})

	It("rejects a non-positive --top", func() {
		Expect(run("anything", "--top", "0")).To(MatchError(ContainSubstring("--top")))
	})

	Context("with --remote", func() {
		It("queries the API server", func() {
			var gotQuery, gotTopK string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				Expect(r.URL.Path).To(Equal("/v1/search"))
				gotQuery = r.URL.Query().Get("query")
				gotTopK = r.URL.Query().Get("top_k")
				_ = json.NewEncoder(w).Encode(apisearch.SearchOutput{
					Query:   gotQuery,
					Count:   1,
					Results: []apisearch.SearchResult{{FilePath: "/remote/doc.pdf", DocumentType: "report"}},
				})
			}))
			defer srv.Close()

			Expect(run("quarterly revenue", "--remote", "--api-target", srv.URL, "-k", "3", "-q")).To(Succeed())
			Expect(gotQuery).To(Equal("quarterly revenue"))
			Expect(gotTopK).To(Equal("3"))
			Expect(strings.TrimSpace(out.String())).To(Equal("/remote/doc.pdf"))
		})

		It("surfaces API errors", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"query parameter is required"}`))
			}))
			defer srv.Close()

			err := run("x", "--remote", "--api-target", srv.URL)
			Expect(err).To(MatchError(ContainSubstring("HTTP 400")))
		})
	})
})
