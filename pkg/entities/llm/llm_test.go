package llm_test

import (
	"context"
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rasaya1/OCRFastAPI/pkg/doctype"
	"github.com/rasaya1/OCRFastAPI/pkg/entities/llm"
	testutils "github.com/rasaya1/OCRFastAPI/pkg/utils/test"
)

var _ = Describe("Extractor", func() {
	var (
		mock *testutils.MockCompletion
		ex   *llm.Extractor
	)

	BeforeEach(func() {
		mock = &testutils.MockCompletion{}
		var err error
		ex, err = llm.NewExtractor(llm.Config{Complete: mock.Func()})
		Expect(err).NotTo(HaveOccurred())
	})

	It("requires a completion func", func() {
		_, err := llm.NewExtractor(llm.Config{})
		Expect(err).To(HaveOccurred())
	})

	It("asks for the type's fields and returns the parsed reply", func() {
		mock.Reply = `{"invoice_number": "INV-9", "total_amount": 120.5}`

		out, err := ex.Extract(context.Background(), "Invoice INV-9 total $120.50", doctype.Invoice)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(HaveKeyWithValue("invoice_number", "INV-9"))
		Expect(out).To(HaveKeyWithValue("total_amount", 120.5))
		Expect(out).To(HaveKey("vendor_name"))
		Expect(out["vendor_name"]).To(BeNil())

		Expect(mock.Prompts).To(HaveLen(1))
		Expect(mock.Prompts[0]).To(ContainSubstring("document of type 'invoice'"))
		Expect(mock.Prompts[0]).To(ContainSubstring("invoice_number, date, due_date"))
	})

	It("recovers a JSON object wrapped in prose", func() {
		mock.Reply = "Sure! Here you go:\n```json\n{\"key_information\": \"memo\"}\n```"

		out, err := ex.Extract(context.Background(), "memo", doctype.Document)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(map[string]any{"key_information": "memo"}))
	})

	It("reports unparseable replies in the result", func() {
		mock.Reply = "I could not find anything."

		out, err := ex.Extract(context.Background(), "text", doctype.Receipt)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(map[string]any{"error": "Failed to parse LLM response"}))
	})

	It("reports empty objects as schema failures", func() {
		mock.Reply = `{}`

		out, err := ex.Extract(context.Background(), "text", doctype.Receipt)
		Expect(err).NotTo(HaveOccurred())
		Expect(out["error"]).To(ContainSubstring("did not match schema"))
	})

	It("reports objects holding none of the type's fields as schema failures", func() {
		mock.Reply = `{"answer": "this looks like a receipt", "confidence": 0.9}`

		out, err := ex.Extract(context.Background(), "text", doctype.Receipt)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(HaveLen(1))
		Expect(out["error"]).To(ContainSubstring("did not match schema"))
	})

	It("keeps extra keys when at least one field is present", func() {
		mock.Reply = `{"store_name": "Corner Cafe", "note": "faded"}`

		out, err := ex.Extract(context.Background(), "text", doctype.Receipt)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(HaveKeyWithValue("store_name", "Corner Cafe"))
		Expect(out).To(HaveKeyWithValue("note", "faded"))
		Expect(out).NotTo(HaveKey("error"))
	})

	It("reports completion failures in the result", func() {
		mock.Err = errors.New("quota exceeded")

		out, err := ex.Extract(context.Background(), "text", doctype.Receipt)
		Expect(err).NotTo(HaveOccurred())
		Expect(out["error"]).To(ContainSubstring("quota exceeded"))
	})
})

var _ = Describe("BuildPrompt", func() {
	It("sends at most the first 2000 characters", func() {
		text := strings.Repeat("a", 2000) + "TAIL"
		prompt := llm.BuildPrompt(text, doctype.Report, doctype.Fields(doctype.Report))
		Expect(prompt).NotTo(ContainSubstring("TAIL"))
		Expect(prompt).To(HaveSuffix(strings.Repeat("a", 2000)))
	})
})

var _ = Describe("ParseReply", func() {
	It("decodes a bare object", func() {
		out, err := llm.ParseReply(` {"a": 1} `)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(HaveKeyWithValue("a", 1.0))
	})

	It("fails without an object", func() {
		_, err := llm.ParseReply("[1, 2]")
		Expect(err).To(HaveOccurred())
	})
})
