package raster_test

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/image/bmp"

	"github.com/rasaya1/OCRFastAPI/pkg/ocr/raster"
)

// fakeRunner writes page PNGs of increasing width where pdftoppm would.
type fakeRunner struct {
	pages int
	args  []string
	err   error
}

func (f *fakeRunner) Run(_ context.Context, _ string, args ...string) ([]byte, []byte, error) {
	f.args = args
	if f.err != nil {
		return nil, []byte("syntax error"), f.err
	}
	prefix := args[len(args)-1]
	for i := 1; i <= f.pages; i++ {
		if err := writePNG(fmt.Sprintf("%s-%d.png", prefix, i), i); err != nil {
			return nil, nil, err
		}
	}
	return nil, nil, nil
}

func writePNG(path string, width int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, image.NewGray(image.Rect(0, 0, width, 2)))
}

var _ = Describe("IsSupported", func() {
	DescribeTable("extensions",
		func(name string, want bool) {
			Expect(raster.IsSupported(name)).To(Equal(want))
		},
		Entry("pdf", "a.pdf", true),
		Entry("upper case", "SCAN.PNG", true),
		Entry("jpeg", "x/y.jpeg", true),
		Entry("tiff", "fax.tiff", true),
		Entry("bmp", "old.bmp", true),
		Entry("text", "notes.txt", false),
		Entry("tif short form", "fax.tif", false),
		Entry("no extension", "README", false),
	)
})

var _ = Describe("Rasterizer", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "raster-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	It("decodes a PNG into one page", func() {
		path := filepath.Join(tmpDir, "scan.png")
		Expect(writePNG(path, 7)).To(Succeed())

		pages, err := raster.New(raster.Config{}).Pages(context.Background(), path)
		Expect(err).NotTo(HaveOccurred())
		Expect(pages).To(HaveLen(1))
		Expect(pages[0].Bounds().Dx()).To(Equal(7))
	})

	It("decodes a BMP", func() {
		path := filepath.Join(tmpDir, "old.bmp")
		f, err := os.Create(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(bmp.Encode(f, image.NewRGBA(image.Rect(0, 0, 5, 3)))).To(Succeed())
		Expect(f.Close()).To(Succeed())

		pages, err := raster.New(raster.Config{}).Pages(context.Background(), path)
		Expect(err).NotTo(HaveOccurred())
		Expect(pages[0].Bounds().Dx()).To(Equal(5))
	})

	It("rejects unsupported files", func() {
		_, err := raster.New(raster.Config{}).Pages(context.Background(), filepath.Join(tmpDir, "a.docx"))
		Expect(err).To(MatchError(raster.ErrUnsupported))
	})

	It("fails on a corrupt image", func() {
		path := filepath.Join(tmpDir, "broken.jpg")
		Expect(os.WriteFile(path, []byte("not an image"), 0o600)).To(Succeed())

		_, err := raster.New(raster.Config{}).Pages(context.Background(), path)
		Expect(err).To(HaveOccurred())
	})

	It("renders PDF pages in page order", func() {
		runner := &fakeRunner{pages: 11}
		r := raster.New(raster.Config{Runner: runner, DPI: 150, MaxPages: 20})

		pages, err := r.Pages(context.Background(), filepath.Join(tmpDir, "doc.PDF"))
		Expect(err).NotTo(HaveOccurred())
		Expect(pages).To(HaveLen(11))
		for i, p := range pages {
			Expect(p.Bounds().Dx()).To(Equal(i + 1))
		}
		Expect(runner.args[:5]).To(Equal([]string{"-r", "150", "-png", "-l", "20"}))
	})

	It("reports renderer failures", func() {
		runner := &fakeRunner{err: errors.New("exit status 1")}
		_, err := raster.New(raster.Config{Runner: runner}).Pages(context.Background(), "doc.pdf")
		Expect(err).To(MatchError(ContainSubstring("syntax error")))
	})

	It("fails when the renderer produces no pages", func() {
		_, err := raster.New(raster.Config{Runner: &fakeRunner{}}).Pages(context.Background(), "doc.pdf")
		Expect(err).To(MatchError(ContainSubstring("no pages")))
	})
})

var _ = Describe("page ordering", func() {
	It("sorts by numeric suffix", func() {
		paths := []string{"/t/page-10.png", "/t/page-2.png", "/t/page-1.png"}
		raster.SortPages(paths)
		Expect(paths).To(Equal([]string{"/t/page-1.png", "/t/page-2.png", "/t/page-10.png"}))
	})
})
