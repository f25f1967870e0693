package tesseract_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/otiai10/gosseract/v2"

	"github.com/rasaya1/OCRFastAPI/pkg/ocr"
	"github.com/rasaya1/OCRFastAPI/pkg/ocr/tesseract"
)

var _ = Describe("Recognizer", func() {
	It("is named tesseract", func() {
		Expect(tesseract.NewRecognizer(tesseract.Config{}).Name()).To(Equal("tesseract"))
	})

	It("tries PSM 6, 8, 4 and 3 and then a token pass in PSM 6", func() {
		cfgs := tesseract.NewRecognizer(tesseract.Config{}).Configs()
		Expect(cfgs).To(HaveLen(5))

		var modes []int
		for _, c := range cfgs {
			modes = append(modes, c.PageSegMode)
		}
		Expect(modes).To(Equal([]int{6, 8, 4, 3, 6}))

		for _, c := range cfgs[:4] {
			Expect(c.TokenConfidence).To(BeFalse())
		}
		Expect(cfgs[4].TokenConfidence).To(BeTrue())
		Expect(cfgs[0].Name).To(Equal("psm6"))
	})
})

var _ = Describe("token assembly", func() {
	It("joins confident words and averages their confidence", func() {
		rec := tesseract.AssembleTokens([]gosseract.BoundingBox{
			{Word: "INVOICE", Confidence: 90},
			{Word: "#", Confidence: 5},
			{Word: "   ", Confidence: 99},
			{Word: "1234", Confidence: 70},
		})
		Expect(rec.Text).To(Equal("INVOICE 1234"))
		Expect(rec.Confidence).NotTo(BeNil())
		Expect(*rec.Confidence).To(BeNumerically("~", 80.0, 1e-9))
	})

	It("drops tokens exactly at the threshold", func() {
		rec := tesseract.AssembleTokens([]gosseract.BoundingBox{{Word: "x", Confidence: 10}})
		Expect(rec).To(Equal(ocr.Recognition{}))
	})

	It("returns no text when no box survives", func() {
		Expect(tesseract.AssembleTokens(nil)).To(Equal(ocr.Recognition{}))
	})
})
