// Package pattern extracts entities with regular expressions. It needs no
// network access and never fails.
package pattern

import (
	"context"
	"regexp"
	"strings"

	"github.com/rasaya1/OCRFastAPI/pkg/doctype"
)

var (
	datePattern   = regexp.MustCompile(`\b\d{1,2}[/-]\d{1,2}[/-]\d{2,4}\b|\b\w+ \d{1,2}, \d{4}\b`)
	amountPattern = regexp.MustCompile(`\$[\d,]+\.?\d*`)

	invoiceNumberPattern = regexp.MustCompile(`(?i)invoice\s*#?:?\s*([A-Z0-9-]+)`)
	vendorPattern        = regexp.MustCompile(`(?m)^([A-Z][A-Za-z\s&]+(?:Corp|Corporation|Inc|LLC|Ltd))`)
	storeNamePattern     = regexp.MustCompile(`(?i)store name:?\s*([^\n]+)`)
	transactionPattern   = regexp.MustCompile(`(?i)transaction\s*id:?\s*([A-Z0-9-]+)`)
	poNumberPattern      = regexp.MustCompile(`(?i)po\s*number:?\s*([A-Z0-9-]+)`)
)

// Extractor is the regular expression entity extractor.
type Extractor struct{}

// NewExtractor creates a pattern Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Name() string { return "pattern" }

// Extract returns the first date, the last dollar amount as total_amount and
// the type specific identifiers it can find. Missing fields are omitted.
func (e *Extractor) Extract(_ context.Context, text string, t doctype.Type) (map[string]any, error) {
	out := make(map[string]any)

	if d := datePattern.FindString(text); d != "" {
		out["date"] = d
	}
	if amounts := amountPattern.FindAllString(text, -1); len(amounts) > 0 {
		out["total_amount"] = amounts[len(amounts)-1]
	}

	switch t {
	case doctype.Invoice:
		if m := invoiceNumberPattern.FindStringSubmatch(text); m != nil {
			out["invoice_number"] = m[1]
		}
		if m := vendorPattern.FindStringSubmatch(text); m != nil {
			out["vendor_name"] = strings.TrimSpace(m[1])
		}

	case doctype.Receipt:
		if m := storeNamePattern.FindStringSubmatch(text); m != nil {
			out["store_name"] = strings.TrimSpace(m[1])
		}
		if m := transactionPattern.FindStringSubmatch(text); m != nil {
			out["transaction_id"] = m[1]
		}

	case doctype.PurchaseOrder:
		if m := poNumberPattern.FindStringSubmatch(text); m != nil {
			out["po_number"] = m[1]
		}
	}

	return out, nil
}
