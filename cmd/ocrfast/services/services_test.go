package services_test

import (
	"bytes"
	"context"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rasaya1/OCRFastAPI/cmd/ocrfast/services"
	"github.com/rasaya1/OCRFastAPI/pkg/config"
	"github.com/rasaya1/OCRFastAPI/pkg/logger"
	"github.com/rasaya1/OCRFastAPI/pkg/ocr/detector"
	"github.com/rasaya1/OCRFastAPI/pkg/ocr/tesseract"
	"github.com/rasaya1/OCRFastAPI/pkg/store"
)

var _ = Describe("services", func() {
	var (
		configDir string
		v         *viper.Viper
	)

	BeforeEach(func() {
		configDir = filepath.Join(GinkgoT().TempDir(), ".ocrfast")
		var err error
		v, err = config.InitViper(configDir)
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewRecognizer", func() {
		It("defaults to tesseract", func() {
			rec, err := services.NewRecognizer(v, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
			Expect(rec).To(BeAssignableToTypeOf(&tesseract.Recognizer{}))
		})

		It("builds the detector client", func() {
			v.Set("ocr.engine", "Detector")
			rec, err := services.NewRecognizer(v, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
			Expect(rec).To(BeAssignableToTypeOf(&detector.Recognizer{}))
		})

		It("rejects unknown engines", func() {
			v.Set("ocr.engine", "easyocr")
			_, err := services.NewRecognizer(v, logger.Nop())
			Expect(err).To(MatchError(ContainSubstring("unsupported OCR engine")))
		})
	})

	Describe("StoreDir", func() {
		It("uses store.dir when set", func() {
			v.Set("store.dir", "/data/store")
			Expect(services.StoreDir(v, configDir)).To(Equal("/data/store"))
		})

		It("falls back to the store under the config dir", func() {
			dir, err := services.StoreDir(v, configDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(dir).To(HaveSuffix(filepath.Join(".ocrfast", "store")))
		})
	})

	Describe("NewPublisher", func() {
		It("defaults to the no-op publisher", func() {
			p, err := services.NewPublisher(context.Background(), v, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Close()).To(Succeed())
		})

		It("requires a DSN for postgres", func() {
			v.Set("events.provider", "postgres")
			_, err := services.NewPublisher(context.Background(), v, logger.Nop())
			Expect(err).To(MatchError(ContainSubstring("requires a DSN")))
		})

		It("rejects unknown providers", func() {
			v.Set("events.provider", "nats")
			_, err := services.NewPublisher(context.Background(), v, logger.Nop())
			Expect(err).To(MatchError(ContainSubstring("unsupported events provider")))
		})
	})

	Describe("OpenStore", func() {
		It("opens an empty store with the hashing embedder", func() {
			v.Set("embedding.provider", "hashing")
			v.Set("embedding.dimensions", 32)

			s, err := services.OpenStore(context.Background(), v, configDir, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
			defer s.Close()
			Expect(s.Len()).To(BeZero())
			Expect(s.Stats().EmbeddingDimension).To(Equal(32))
		})

		It("accepts any similarity hit until classify.min_score is set", func() {
			ctx := context.Background()
			v.Set("embedding.provider", "hashing")
			v.Set("embedding.dimensions", 64)

			s, err := services.OpenStore(ctx, v, configDir, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
			_, err = s.Add(ctx, "SERVICE AGREEMENT between the parties", "c.txt", 90)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Classify(ctx, "zebra quartz").Source).To(Equal(store.SourceSimilarity))
			Expect(s.Save(ctx)).To(Succeed())
			Expect(s.Close()).To(Succeed())

			v.Set("classify.min_score", 0.99)
			strict, err := services.OpenStore(ctx, v, configDir, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
			defer strict.Close()
			Expect(strict.Len()).To(Equal(1))
			Expect(strict.Classify(ctx, "zebra quartz").Source).To(Equal(store.SourceKeyword))
		})

		It("fails on an unknown backend", func() {
			v.Set("embedding.provider", "hashing")
			v.Set("store.backend", "faiss")

			_, err := services.OpenStore(context.Background(), v, configDir, logger.Nop())
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("ExtractorConfig", func() {
		It("runs trials one at a time with a two minute bound by default", func() {
			c := services.ExtractorConfig(v, logger.Nop())
			Expect(c.TrialConcurrency).To(Equal(1))
			Expect(c.TrialTimeout).To(Equal(2 * time.Minute))
			Expect(c.DefaultConfidence).To(Equal(60.0))
		})

		It("reads the trial settings from config", func() {
			v.Set("ocr.trial_concurrency", 4)
			v.Set("ocr.trial_timeout", "30s")
			c := services.ExtractorConfig(v, logger.Nop())
			Expect(c.TrialConcurrency).To(Equal(4))
			Expect(c.TrialTimeout).To(Equal(30 * time.Second))
		})
	})

	Describe("Logger", func() {
		It("writes JSON records to the command's error stream", func() {
			cmd := &cobra.Command{Use: "ocrfast"}
			cmd.Flags().Bool("debug", false, "")
			cmd.Flags().String("log-format", "json", "")
			var errBuf bytes.Buffer
			cmd.SetErr(&errBuf)

			services.Logger(cmd).Info("opened", "documents", 2)
			Expect(errBuf.String()).To(ContainSubstring(`"msg":"opened"`))
			Expect(errBuf.String()).To(ContainSubstring(`"documents":2`))
		})

		It("falls back to text for an unknown format", func() {
			cmd := &cobra.Command{Use: "ocrfast"}
			cmd.Flags().Bool("debug", true, "")
			cmd.Flags().String("log-format", "yaml", "")
			var errBuf bytes.Buffer
			cmd.SetErr(&errBuf)

			services.Logger(cmd).Debug("details")
			Expect(errBuf.String()).To(ContainSubstring("msg=details"))
		})
	})

	Describe("NewEntityExtractor", func() {
		It("uses pattern extraction without an LLM provider", func() {
			ex, err := services.NewEntityExtractor(v, configDir, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
			Expect(ex.Name()).To(Equal("pattern"))
		})

		It("uses pattern extraction when the provider has no key", func() {
			GinkgoT().Setenv("OPENAI_API_KEY", "")
			v.Set("llm.provider", "openai")
			ex, err := services.NewEntityExtractor(v, configDir, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
			Expect(ex.Name()).To(Equal("pattern"))
		})
	})
})
