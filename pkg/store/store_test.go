package store_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rasaya1/OCRFastAPI/pkg/doctype"
	"github.com/rasaya1/OCRFastAPI/pkg/embeddings/hashing"
	"github.com/rasaya1/OCRFastAPI/pkg/eventstream"
	"github.com/rasaya1/OCRFastAPI/pkg/logger"
	"github.com/rasaya1/OCRFastAPI/pkg/store"
	testutils "github.com/rasaya1/OCRFastAPI/pkg/utils/test"
	"github.com/rasaya1/OCRFastAPI/pkg/vector"
	"github.com/rasaya1/OCRFastAPI/pkg/vector/flat"
	"github.com/rasaya1/OCRFastAPI/pkg/vector/sqlitevec"
)

const (
	invoiceText  = "INVOICE #INV-001\nBill To: Acme Corp\nInvoice payment due within 30 days\nAmount Due: $1,500.00"
	receiptText  = "RECEIPT\nStore Name: Corner Market\nTransaction ID: TX-9\nTotal: $25.50\nPayment Method: Cash"
	contractText = "SERVICE AGREEMENT\nThis agreement is made between the parties for consulting services."
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*eventstream.DocumentIndexedEvent
	err    error
}

func (p *recordingPublisher) PublishDocument(_ context.Context, e *eventstream.DocumentIndexedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func openStore(dir string, backend vector.Backend) *store.Store {
	s, err := store.Open(context.Background(), store.Config{
		Dir:      dir,
		Backend:  backend,
		Embedder: hashing.NewEmbedder(hashing.Config{Dimensions: 1024}),
		Logger:   logger.Nop(),
	})
	Expect(err).NotTo(HaveOccurred())
	return s
}

var _ = Describe("Store", func() {
	var (
		ctx context.Context
		dir string
		s   *store.Store
	)

	BeforeEach(func() {
		ctx = context.Background()
		dir = filepath.Join(GinkgoT().TempDir(), "store")
		s = openStore(dir, flat.Backend{})
	})

	Describe("Open", func() {
		It("requires an embedder", func() {
			_, err := store.Open(ctx, store.Config{Dir: dir})
			Expect(err).To(MatchError(store.ErrNoEmbedder))
		})

		It("creates the directory", func() {
			Expect(dir).To(BeADirectory())
		})

		It("starts empty", func() {
			Expect(s.Len()).To(BeZero())
			Expect(s.Stats().TotalDocuments).To(BeZero())
		})
	})

	Describe("Add", func() {
		It("assigns consecutive positions and counts every add", func() {
			for i, text := range []string{invoiceText, receiptText, contractText, "plain notes"} {
				pos, err := s.Add(ctx, text, "doc.txt", 90)
				Expect(err).NotTo(HaveOccurred())
				Expect(pos).To(Equal(i))
			}
			Expect(s.Stats().TotalDocuments).To(Equal(4))
		})

		It("records classified metadata with a preview", func() {
			long := invoiceText + strings.Repeat(" filler", 60)
			pos, err := s.Add(ctx, long, "/scans/inv.png", 87.5)
			Expect(err).NotTo(HaveOccurred())

			m, ok := s.Get(pos)
			Expect(ok).To(BeTrue())
			Expect(m.ID).NotTo(BeEmpty())
			Expect(m.FilePath).To(Equal("/scans/inv.png"))
			Expect(m.DocumentType).To(Equal(doctype.Invoice))
			Expect(m.ConfidenceScore).To(Equal(87.5))
			Expect(m.ProcessedDate).NotTo(BeZero())
			Expect(m.TextPreview).To(HaveLen(store.PreviewLength + 3))
			Expect(m.TextPreview).To(HaveSuffix("..."))
		})

		It("keeps short previews intact", func() {
			pos, err := s.Add(ctx, receiptText, "r.txt", 50)
			Expect(err).NotTo(HaveOccurred())
			m, _ := s.Get(pos)
			Expect(m.TextPreview).To(Equal(receiptText))
		})

		It("classifies mixed invoice and agreement text as a contract", func() {
			pos, err := s.Add(ctx, "Invoice terms follow the service agreement", "mixed.txt", 70)
			Expect(err).NotTo(HaveOccurred())
			m, _ := s.Get(pos)
			Expect(m.DocumentType).To(Equal(doctype.Contract))
		})

		It("rejects blank text", func() {
			_, err := s.Add(ctx, "  \n\t", "blank.txt", 0)
			Expect(err).To(MatchError(store.ErrEmptyText))
			Expect(s.Len()).To(BeZero())
		})

		It("leaves the store untouched when embedding fails", func() {
			emb := testutils.NewMockEmbedder()
			emb.FailOn = "boom"
			failing, err := store.Open(ctx, store.Config{Dir: GinkgoT().TempDir(), Embedder: emb})
			Expect(err).NotTo(HaveOccurred())

			_, err = failing.Add(ctx, "boom", "x", 1)
			Expect(err).To(HaveOccurred())
			Expect(failing.Len()).To(BeZero())
		})

		It("rejects embeddings whose dimension differs from the store", func() {
			emb := testutils.NewMockEmbedder()
			emb.Embeddings["short"] = []float32{1, 0}
			mixed, err := store.Open(ctx, store.Config{Dir: GinkgoT().TempDir(), Embedder: emb})
			Expect(err).NotTo(HaveOccurred())

			_, err = mixed.Add(ctx, "normal", "a", 1)
			Expect(err).NotTo(HaveOccurred())
			_, err = mixed.Add(ctx, "short", "b", 1)
			Expect(err).To(MatchError(vector.ErrDimensionMismatch))
			Expect(mixed.Len()).To(Equal(1))
		})

		It("rolls back the index when positions disagree", func() {
			backend := &testutils.MockBackend{}
			backend.Index = testutils.NewMockIndex(3)
			backend.Index.SkewPosition = true

			skewed, err := store.Open(ctx, store.Config{
				Dir:        GinkgoT().TempDir(),
				Backend:    backend,
				Embedder:   testutils.NewMockEmbedder(),
				Dimensions: 3,
			})
			Expect(err).NotTo(HaveOccurred())

			_, err = skewed.Add(ctx, "anything", "a", 1)
			Expect(err).To(MatchError(store.ErrInconsistent))
			Expect(backend.Index.Len()).To(BeZero())
			Expect(skewed.Len()).To(BeZero())
		})

		It("publishes an event per document", func() {
			pub := &recordingPublisher{}
			withEvents, err := store.Open(ctx, store.Config{
				Dir:       GinkgoT().TempDir(),
				Embedder:  hashing.NewEmbedder(hashing.Config{}),
				Publisher: pub,
			})
			Expect(err).NotTo(HaveOccurred())

			_, err = withEvents.Add(ctx, receiptText, "r.png", 77)
			Expect(err).NotTo(HaveOccurred())

			Expect(pub.events).To(HaveLen(1))
			Expect(pub.events[0].Document.DocumentType).To(Equal("receipt"))
			Expect(pub.events[0].Document.Position).To(Equal(0))
		})

		It("still stores the document when publishing fails", func() {
			pub := &recordingPublisher{err: errors.New("broker down")}
			withEvents, err := store.Open(ctx, store.Config{
				Dir:       GinkgoT().TempDir(),
				Embedder:  hashing.NewEmbedder(hashing.Config{}),
				Publisher: pub,
			})
			Expect(err).NotTo(HaveOccurred())

			_, err = withEvents.Add(ctx, receiptText, "r.png", 77)
			Expect(err).NotTo(HaveOccurred())
			Expect(withEvents.Len()).To(Equal(1))
		})

		It("serializes concurrent adds without gaps", func() {
			var wg sync.WaitGroup
			for i := range 20 {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					_, err := s.Add(ctx, strings.Repeat("word ", i+1), "c.txt", 1)
					Expect(err).NotTo(HaveOccurred())
				}()
			}
			wg.Wait()

			Expect(s.Len()).To(Equal(20))
			for i := range 20 {
				_, ok := s.Get(i)
				Expect(ok).To(BeTrue())
			}
		})
	})

	Describe("SearchSimilar", func() {
		It("returns an empty result on an empty store", func() {
			results, err := s.SearchSimilar(ctx, "anything", 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(BeEmpty())
		})

		It("finds a document by its own text with a score near one", func() {
			_, err := s.Add(ctx, receiptText, "r.txt", 80)
			Expect(err).NotTo(HaveOccurred())
			pos, err := s.Add(ctx, invoiceText, "i.txt", 80)
			Expect(err).NotTo(HaveOccurred())

			results, err := s.SearchSimilar(ctx, invoiceText, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))
			Expect(results[0].Position).To(Equal(pos))
			Expect(results[0].Score).To(BeNumerically("~", 1.0, 1e-4))
		})

		It("ranks the invoice first for an invoice query", func() {
			for _, t := range []string{invoiceText, receiptText, contractText} {
				_, err := s.Add(ctx, t, "doc", 90)
				Expect(err).NotTo(HaveOccurred())
			}

			results, err := s.SearchSimilar(ctx, "invoice payment amount", 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(2))
			Expect(results[0].DocumentType).To(Equal(doctype.Invoice))
			Expect(results[0].Score).To(BeNumerically(">=", results[1].Score))
		})

		It("caps k at the number of documents and returns nothing for k <= 0", func() {
			_, _ = s.Add(ctx, invoiceText, "i", 1)

			results, err := s.SearchSimilar(ctx, "invoice", 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))

			results, err = s.SearchSimilar(ctx, "invoice", 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(BeEmpty())
		})

		It("keeps searching a sqlite-vec store that holds a text with no words", func() {
			vec := openStore(filepath.Join(GinkgoT().TempDir(), "vec"), sqlitevec.Backend{Logger: logger.Nop()})
			DeferCleanup(func() { vec.Close() })

			_, err := vec.Add(ctx, "INVOICE bill to acme", "i", 90)
			Expect(err).NotTo(HaveOccurred())
			_, err = vec.Add(ctx, "!!! ---", "debris", 10)
			Expect(err).NotTo(HaveOccurred())

			results, err := vec.SearchSimilar(ctx, "invoice", 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(2))
			Expect(results[0].FilePath).To(Equal("i"))
			Expect(results[1].Score).To(BeNumerically("~", 0, 1e-6))

			results, err = vec.SearchSimilar(ctx, "???", 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(2))

			c := vec.Classify(ctx, "invoice")
			Expect(c.Source).To(Equal(store.SourceSimilarity))
			Expect(c.Type).To(Equal(doctype.Invoice))
		})

		It("drops sentinel positions and orders ties by position", func() {
			backend := &testutils.MockBackend{Index: testutils.NewMockIndex(3)}
			backend.Index.Hits = []vector.Hit{
				{Position: 1, Score: 0.5},
				{Position: -1, Score: 0.9},
				{Position: 0, Score: 0.5},
				{Position: 42, Score: 0.8},
			}
			mocked, err := store.Open(ctx, store.Config{
				Dir:        GinkgoT().TempDir(),
				Backend:    backend,
				Embedder:   testutils.NewMockEmbedder(),
				Dimensions: 3,
			})
			Expect(err).NotTo(HaveOccurred())
			_, _ = mocked.Add(ctx, "first", "a", 1)
			_, _ = mocked.Add(ctx, "second", "b", 1)

			results, err := mocked.SearchSimilar(ctx, "q", 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(2))
			Expect(results[0].Position).To(Equal(0))
			Expect(results[1].Position).To(Equal(1))
		})
	})

	Describe("Classify", func() {
		It("falls back to keywords with 0.5 on an empty store", func() {
			c := s.Classify(ctx, "Store Name: Deli\nTotal $4")
			Expect(c.Type).To(Equal(doctype.Receipt))
			Expect(c.Score).To(Equal(0.5))
			Expect(c.Source).To(Equal(store.SourceKeyword))
		})

		It("uses the nearest stored document's type", func() {
			_, _ = s.Add(ctx, invoiceText, "i", 90)
			_, _ = s.Add(ctx, contractText, "c", 90)

			c := s.Classify(ctx, invoiceText)
			Expect(c.Type).To(Equal(doctype.Invoice))
			Expect(c.Source).To(Equal(store.SourceSimilarity))
			Expect(c.Score).To(BeNumerically("~", 1.0, 1e-4))
		})

		It("falls back to keywords with 0.3 when the search fails", func() {
			backend := &testutils.MockBackend{Index: testutils.NewMockIndex(3)}
			backend.Index.SearchErr = errors.New("index offline")
			broken, err := store.Open(ctx, store.Config{
				Dir:        GinkgoT().TempDir(),
				Backend:    backend,
				Embedder:   testutils.NewMockEmbedder(),
				Dimensions: 3,
			})
			Expect(err).NotTo(HaveOccurred())
			_, _ = broken.Add(ctx, "something", "a", 1)

			c := broken.Classify(ctx, "PO Number: 7")
			Expect(c.Type).To(Equal(doctype.PurchaseOrder))
			Expect(c.Score).To(Equal(0.3))
			Expect(c.Source).To(Equal(store.SourceKeywordOnFail))
		})

		It("accepts a top hit with a negative score when no minimum is set", func() {
			emb := testutils.NewMockEmbedder()
			emb.Embeddings[contractText] = []float32{1, 0, 0}
			emb.Embeddings["opposite"] = []float32{-1, 0.1, 0}
			opposed, err := store.Open(ctx, store.Config{Dir: GinkgoT().TempDir(), Embedder: emb})
			Expect(err).NotTo(HaveOccurred())
			_, err = opposed.Add(ctx, contractText, "c", 90)
			Expect(err).NotTo(HaveOccurred())

			c := opposed.Classify(ctx, "opposite")
			Expect(c.Type).To(Equal(doctype.Contract))
			Expect(c.Source).To(Equal(store.SourceSimilarity))
			Expect(c.Score).To(BeNumerically("<", 0))
		})

		It("falls back on a negative hit once a zero minimum is set", func() {
			emb := testutils.NewMockEmbedder()
			emb.Embeddings[contractText] = []float32{1, 0, 0}
			emb.Embeddings["opposite"] = []float32{-1, 0.1, 0}
			zero := 0.0
			opposed, err := store.Open(ctx, store.Config{
				Dir:              GinkgoT().TempDir(),
				Embedder:         emb,
				MinClassifyScore: &zero,
			})
			Expect(err).NotTo(HaveOccurred())
			_, _ = opposed.Add(ctx, contractText, "c", 90)

			c := opposed.Classify(ctx, "opposite")
			Expect(c.Type).To(Equal(doctype.Document))
			Expect(c.Source).To(Equal(store.SourceKeyword))
		})

		It("falls back when the best hit is below the minimum score", func() {
			minScore := 0.99
			strict, err := store.Open(ctx, store.Config{
				Dir:              GinkgoT().TempDir(),
				Embedder:         hashing.NewEmbedder(hashing.Config{Dimensions: 1024}),
				MinClassifyScore: &minScore,
			})
			Expect(err).NotTo(HaveOccurred())
			_, _ = strict.Add(ctx, contractText, "c", 90)

			c := strict.Classify(ctx, "Invoice for hardware")
			Expect(c.Type).To(Equal(doctype.Invoice))
			Expect(c.Source).To(Equal(store.SourceKeyword))
		})
	})

	Describe("Stats and DocumentsByType", func() {
		It("reports the embedder's dimension before any document is added", func() {
			empty, err := store.Open(ctx, store.Config{
				Dir:      GinkgoT().TempDir(),
				Embedder: hashing.NewEmbedder(hashing.Config{Dimensions: 64}),
			})
			Expect(err).NotTo(HaveOccurred())

			stats := empty.Stats()
			Expect(stats.TotalDocuments).To(BeZero())
			Expect(stats.EmbeddingDimension).To(Equal(64))
		})

		It("rejects a first embedding that disagrees with the embedder's dimension", func() {
			emb := testutils.NewMockEmbedder()
			emb.Dims = 4
			mismatched, err := store.Open(ctx, store.Config{Dir: GinkgoT().TempDir(), Embedder: emb})
			Expect(err).NotTo(HaveOccurred())

			_, err = mismatched.Add(ctx, "three dims", "x", 1)
			Expect(err).To(MatchError(vector.ErrDimensionMismatch))
			Expect(mismatched.Len()).To(BeZero())
		})

		It("counts documents per type", func() {
			_, _ = s.Add(ctx, invoiceText, "i1", 1)
			_, _ = s.Add(ctx, invoiceText+" second", "i2", 1)
			_, _ = s.Add(ctx, receiptText, "r1", 1)

			stats := s.Stats()
			Expect(stats.TotalDocuments).To(Equal(3))
			Expect(stats.DocumentTypes).To(Equal(map[doctype.Type]int{doctype.Invoice: 2, doctype.Receipt: 1}))
			Expect(stats.EmbeddingDimension).To(Equal(1024))

			invoices := s.DocumentsByType(doctype.Invoice)
			Expect(invoices).To(HaveLen(2))
			Expect(invoices[0].FilePath).To(Equal("i1"))
			Expect(s.DocumentsByType(doctype.Report)).To(BeEmpty())
		})
	})

	Describe("persistence", func() {
		DescribeTable("round trips stats and ranking",
			func(newBackend func() vector.Backend) {
				persisted := openStore(dir+"-rt", newBackend())
				for _, t := range []string{invoiceText, receiptText, contractText} {
					_, err := persisted.Add(ctx, t, "doc", 90)
					Expect(err).NotTo(HaveOccurred())
				}
				before, err := persisted.SearchSimilar(ctx, "payment", 3)
				Expect(err).NotTo(HaveOccurred())
				stats := persisted.Stats()

				Expect(persisted.Save(ctx)).To(Succeed())
				Expect(persisted.Close()).To(Succeed())

				reopened := openStore(dir+"-rt", newBackend())
				DeferCleanup(reopened.Close)
				Expect(reopened.Stats()).To(Equal(stats))

				after, err := reopened.SearchSimilar(ctx, "payment", 3)
				Expect(err).NotTo(HaveOccurred())
				Expect(after).To(HaveLen(len(before)))
				for i := range before {
					Expect(after[i].Position).To(Equal(before[i].Position))
					Expect(after[i].ID).To(Equal(before[i].ID))
					Expect(after[i].Score).To(BeNumerically("~", before[i].Score, 1e-5))
				}

				pos, err := reopened.Add(ctx, "new report executive summary", "r", 1)
				Expect(err).NotTo(HaveOccurred())
				Expect(pos).To(Equal(3))
			},
			Entry("flat", func() vector.Backend { return flat.Backend{} }),
			Entry("sqlite-vec", func() vector.Backend { return sqlitevec.Backend{Logger: logger.Nop()} }),
		)

		It("writes both artifacts without leftover temp files", func() {
			_, _ = s.Add(ctx, invoiceText, "i", 1)
			Expect(s.Save(ctx)).To(Succeed())

			entries, err := os.ReadDir(dir)
			Expect(err).NotTo(HaveOccurred())
			names := []string{}
			for _, e := range entries {
				names = append(names, e.Name())
			}
			Expect(names).To(ConsistOf(flat.ArtifactName, store.MetadataArtifact))
		})

		It("saves nothing for a store that never created an index", func() {
			Expect(s.Save(ctx)).To(Succeed())
			Expect(filepath.Join(dir, store.MetadataArtifact)).NotTo(BeAnExistingFile())
		})

		It("starts empty when only one artifact exists", func() {
			_, _ = s.Add(ctx, invoiceText, "i", 1)
			Expect(s.Save(ctx)).To(Succeed())
			Expect(os.Remove(filepath.Join(dir, flat.ArtifactName))).To(Succeed())

			reopened := openStore(dir, flat.Backend{})
			Expect(reopened.Len()).To(BeZero())
		})

		It("refuses to load artifacts of different lengths", func() {
			_, _ = s.Add(ctx, invoiceText, "i", 1)
			_, _ = s.Add(ctx, receiptText, "r", 1)
			Expect(s.Save(ctx)).To(Succeed())

			other := filepath.Join(GinkgoT().TempDir(), "other")
			small := openStore(other, flat.Backend{})
			_, _ = small.Add(ctx, contractText, "c", 1)
			Expect(small.Save(ctx)).To(Succeed())

			data, err := os.ReadFile(filepath.Join(other, store.MetadataArtifact))
			Expect(err).NotTo(HaveOccurred())
			Expect(os.WriteFile(filepath.Join(dir, store.MetadataArtifact), data, 0o644)).To(Succeed())

			_, err = store.Open(ctx, store.Config{
				Dir:      dir,
				Embedder: hashing.NewEmbedder(hashing.Config{Dimensions: 1024}),
			})
			Expect(err).To(MatchError(store.ErrInconsistent))
		})

		It("refuses a stored index whose dimension differs from the configured one", func() {
			_, _ = s.Add(ctx, invoiceText, "i", 1)
			Expect(s.Save(ctx)).To(Succeed())

			_, err := store.Open(ctx, store.Config{
				Dir:        dir,
				Embedder:   hashing.NewEmbedder(hashing.Config{Dimensions: 8}),
				Dimensions: 8,
			})
			Expect(err).To(MatchError(vector.ErrDimensionMismatch))
		})

		It("reports a corrupt index", func() {
			_, _ = s.Add(ctx, invoiceText, "i", 1)
			Expect(s.Save(ctx)).To(Succeed())
			Expect(os.WriteFile(filepath.Join(dir, flat.ArtifactName), []byte("junk"), 0o644)).To(Succeed())

			_, err := store.Open(ctx, store.Config{
				Dir:      dir,
				Embedder: hashing.NewEmbedder(hashing.Config{Dimensions: 1024}),
			})
			Expect(err).To(MatchError(vector.ErrCorruptIndex))
		})
	})

	Describe("Close", func() {
		It("closes the embedder", func() {
			emb := testutils.NewMockEmbedder()
			closing, err := store.Open(ctx, store.Config{Dir: GinkgoT().TempDir(), Embedder: emb})
			Expect(err).NotTo(HaveOccurred())
			Expect(closing.Close()).To(Succeed())
			Expect(emb.Closed).To(BeTrue())
		})
	})
})
