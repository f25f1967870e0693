package servecmder_test

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	servecmder "github.com/rasaya1/OCRFastAPI/cmd/ocrfast/serve"
	"github.com/rasaya1/OCRFastAPI/pkg/embeddings/hashing"
	"github.com/rasaya1/OCRFastAPI/pkg/store"
)

func freeAddr() string {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	Expect(err).NotTo(HaveOccurred())
	addr := l.Addr().String()
	Expect(l.Close()).To(Succeed())
	return addr
}

var _ = Describe("Serve command", func() {
	It("serves the API until cancelled and saves the store", func() {
		tmpDir := GinkgoT().TempDir()
		configDir := filepath.Join(tmpDir, ".ocrfast")
		storeDir := filepath.Join(tmpDir, "store")
		addr := freeAddr()

		cmd := servecmder.NewServeCmd()
		cmd.PersistentFlags().Bool("debug", false, "")
		cmd.PersistentFlags().String("log-format", "text", "")
		cmd.PersistentFlags().String("config-dir", "", "")
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{
			"--config-dir", configDir,
			"--listen", addr,
			"--store-dir", storeDir,
			"--embedding-provider", "hashing",
			"--embedding-dimensions", "64",
			"--llm-provider", "none",
			"--no-ocr",
		})

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			defer GinkgoRecover()
			done <- cmd.ExecuteContext(ctx)
		}()

		base := "http://" + addr
		Eventually(func() (int, error) {
			resp, err := http.Get(base + "/health")
			if err != nil {
				return 0, err
			}
			resp.Body.Close()
			return resp.StatusCode, nil
		}, 5*time.Second, 50*time.Millisecond).Should(Equal(http.StatusOK))

		resp, err := http.Post(base+"/v1/documents", "application/json",
			strings.NewReader(`{"text":"INVOICE 77 amount due","file_path":"/scans/77.png","confidence":90}`))
		Expect(err).NotTo(HaveOccurred())
		resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))

		resp, err = http.Post(base+"/mcp", "application/json", strings.NewReader(`{}`))
		Expect(err).NotTo(HaveOccurred())
		resp.Body.Close()
		Expect(resp.StatusCode).NotTo(Equal(http.StatusNotFound))

		cancel()
		Eventually(done, 10*time.Second).Should(Receive(BeNil()))

		s, err := store.Open(context.Background(), store.Config{
			Dir:      storeDir,
			Embedder: hashing.NewEmbedder(hashing.Config{Dimensions: 64}),
		})
		Expect(err).NotTo(HaveOccurred())
		defer s.Close()
		Expect(s.Len()).To(Equal(1))

		logData, err := os.ReadFile(filepath.Join(configDir, "ocrfast.log"))
		Expect(err).NotTo(HaveOccurred())
		Expect(string(logData)).To(ContainSubstring(`"msg":"serving documents"`))
	})
})
