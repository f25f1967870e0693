package ocr_test

import (
	"image"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rasaya1/OCRFastAPI/pkg/ocr"
)

var _ = Describe("ClassifyLayout", func() {
	cfg := ocr.DefaultLayoutConfig()

	It("labels a uniform page as text", func() {
		Expect(ocr.ClassifyLayout(blankPage(120, 80), cfg)).To(Equal(ocr.LayoutText))
	})

	It("labels a page of a few similar blocks as text", func() {
		page := blankPage(200, 200)
		for i := range 4 {
			fillRect(page, image.Rect(10+i*45, 50, 30+i*45, 70))
		}
		Expect(ocr.ClassifyLayout(page, cfg)).To(Equal(ocr.LayoutText))
	})

	It("ignores specks at or below the minimum area", func() {
		page := blankPage(200, 200)
		for i := range 80 {
			x, y := (i%10)*20+2, (i/10)*20+2
			fillRect(page, image.Rect(x, y, x+5, y+5))
		}
		Expect(ocr.ClassifyLayout(page, cfg)).To(Equal(ocr.LayoutText))
	})

	It("labels a page with many similar regions as dense", func() {
		page := blankPage(400, 400)
		for i := range 64 {
			x, y := (i%8)*45+5, (i/8)*45+5
			fillRect(page, image.Rect(x, y, x+12, y+12))
		}
		Expect(ocr.ClassifyLayout(page, cfg)).To(Equal(ocr.LayoutDense))
	})

	It("labels a page with one dominant region among small ones as mixed", func() {
		page := blankPage(400, 400)
		fillRect(page, image.Rect(10, 10, 160, 160))
		for i := range 20 {
			x := 10 + i*18
			fillRect(page, image.Rect(x, 200, x+11, 211))
		}
		Expect(ocr.ClassifyLayout(page, cfg)).To(Equal(ocr.LayoutMixed))
	})

	It("counts blocks drawn inside a frame as part of the frame", func() {
		page := blankPage(200, 200)
		fillRect(page, image.Rect(20, 20, 180, 23))
		fillRect(page, image.Rect(20, 177, 180, 180))
		fillRect(page, image.Rect(20, 20, 23, 180))
		fillRect(page, image.Rect(177, 20, 180, 180))
		for i := range 64 {
			x, y := 30+(i%8)*18, 30+(i/8)*18
			fillRect(page, image.Rect(x, y, x+11, y+11))
		}
		Expect(ocr.ClassifyLayout(page, cfg)).To(Equal(ocr.LayoutText))
	})

	It("keeps counting the same blocks once the frame is open", func() {
		page := blankPage(200, 200)
		fillRect(page, image.Rect(20, 20, 180, 23))
		fillRect(page, image.Rect(20, 20, 23, 180))
		for i := range 64 {
			x, y := 30+(i%8)*18, 30+(i/8)*18
			fillRect(page, image.Rect(x, y, x+11, y+11))
		}
		Expect(ocr.ClassifyLayout(page, cfg)).To(Equal(ocr.LayoutDense))
	})

	It("honours custom thresholds", func() {
		page := blankPage(200, 200)
		for i := range 4 {
			fillRect(page, image.Rect(10+i*45, 50, 30+i*45, 70))
		}
		custom := cfg
		custom.DenseCount = 3
		Expect(ocr.ClassifyLayout(page, custom)).To(Equal(ocr.LayoutDense))
	})
})
