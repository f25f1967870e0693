package detector_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rasaya1/OCRFastAPI/pkg/ocr"
	"github.com/rasaya1/OCRFastAPI/pkg/ocr/detector"
)

var _ = Describe("Recognizer", func() {
	var (
		server *httptest.Server
		calls  atomic.Int32
		status int
		reply  string
		seen   map[string]string
		img    image.Image
	)

	BeforeEach(func() {
		calls.Store(0)
		status = http.StatusOK
		reply = `{"detections":[{"text":"TOTAL","confidence":0.9},{"text":"12.50","confidence":0.7}]}`
		seen = nil
		img = image.NewGray(image.Rect(0, 0, 8, 8))

		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			Expect(r.URL.Path).To(Equal("/ocr"))
			Expect(json.NewDecoder(r.Body).Decode(&seen)).To(Succeed())
			w.WriteHeader(status)
			_, _ = w.Write([]byte(reply))
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	newRecognizer := func() *detector.Recognizer {
		return detector.NewRecognizer(detector.Config{BaseURL: server.URL, Language: "deu"})
	}

	It("offers a single pass", func() {
		Expect(newRecognizer().Configs()).To(HaveLen(1))
		Expect(newRecognizer().Name()).To(Equal("detector"))
	})

	It("joins fragments and scales the mean confidence to a percentage", func() {
		rec, err := newRecognizer().Recognize(context.Background(), img, ocr.RecognizeConfig{})
		Expect(err).NotTo(HaveOccurred())
		Expect(rec.Text).To(Equal("TOTAL 12.50"))
		Expect(*rec.Confidence).To(BeNumerically("~", 80.0, 1e-9))
	})

	It("sends a base64 PNG and the language", func() {
		_, err := newRecognizer().Recognize(context.Background(), img, ocr.RecognizeConfig{})
		Expect(err).NotTo(HaveOccurred())
		Expect(seen["language"]).To(Equal("deu"))

		raw, err := base64.StdEncoding.DecodeString(seen["image"])
		Expect(err).NotTo(HaveOccurred())
		Expect(string(raw[1:4])).To(Equal("PNG"))
	})

	It("returns empty text when nothing is detected", func() {
		reply = `{"detections":[]}`
		rec, err := newRecognizer().Recognize(context.Background(), img, ocr.RecognizeConfig{})
		Expect(err).NotTo(HaveOccurred())
		Expect(rec.Text).To(BeEmpty())
	})

	It("surfaces service errors", func() {
		status = http.StatusInternalServerError
		reply = "boom"
		_, err := newRecognizer().Recognize(context.Background(), img, ocr.RecognizeConfig{})
		Expect(err).To(MatchError(ContainSubstring("status 500")))
	})

	It("stops calling a failing service once the breaker opens", func() {
		status = http.StatusBadGateway
		r := newRecognizer()
		for range 5 {
			_, err := r.Recognize(context.Background(), img, ocr.RecognizeConfig{})
			Expect(err).To(HaveOccurred())
		}
		Expect(calls.Load()).To(Equal(int32(5)))

		_, err := r.Recognize(context.Background(), img, ocr.RecognizeConfig{})
		Expect(err).To(MatchError(detector.ErrUnavailable))
		Expect(calls.Load()).To(Equal(int32(5)))
	})
})
