// Package doctype assigns a document type from ordered keyword rules.
package doctype

import (
	"slices"
	"strings"
)

// Type is a document category label.
type Type string

const (
	Invoice       Type = "invoice"
	Receipt       Type = "receipt"
	Contract      Type = "contract"
	PurchaseOrder Type = "purchase_order"
	Report        Type = "report"
	Document      Type = "document"
)

// Rule maps a set of lowercase keywords to a type.
type Rule struct {
	Type     Type
	Keywords []string
}

// Rules are evaluated in order and the first match wins. Contract comes first
// so that agreements mentioning invoices are still contracts.
var Rules = []Rule{
	{Type: Contract, Keywords: []string{"service agreement", "contract", "agreement"}},
	{Type: PurchaseOrder, Keywords: []string{"purchase order", "po number"}},
	{Type: Report, Keywords: []string{"quarterly report", "business report", "executive summary"}},
	{Type: Receipt, Keywords: []string{"receipt", "store name", "transaction"}},
	{Type: Invoice, Keywords: []string{"invoice", "bill to"}},
}

// Detect returns the type of the first rule with a keyword contained in text,
// case-insensitively, or Document when nothing matches.
func Detect(text string) Type {
	return DetectWith(Rules, text)
}

// DetectWith is Detect over a caller supplied rule list.
func DetectWith(rules []Rule, text string) Type {
	lower := strings.ToLower(text)
	for _, r := range rules {
		for _, kw := range r.Keywords {
			if strings.Contains(lower, kw) {
				return r.Type
			}
		}
	}
	return Document
}


// fields lists the entity fields worth extracting per type.
var fields = map[Type][]string{
	Invoice:       {"invoice_number", "date", "due_date", "vendor_name", "customer_name", "total_amount", "subtotal", "tax_amount"},
	Receipt:       {"store_name", "date", "time", "transaction_id", "total_amount", "payment_method", "items"},
	Contract:      {"contract_date", "parties", "term_duration", "compensation", "termination_clause"},
	PurchaseOrder: {"po_number", "date", "vendor", "ship_to", "total_amount", "delivery_date", "items"},
	Report:        {"report_period", "company_name", "revenue", "key_metrics", "outlook"},
}

// Fields returns the entity fields for t. Types without a field list get
// the single generic field "key_information".
func Fields(t Type) []string {
	if f, ok := fields[t]; ok {
		return slices.Clone(f)
	}
	return []string{"key_information"}
}
