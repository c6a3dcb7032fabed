package scanning

import "context"

// Field type tags produced by expense analysis.
const (
	FieldTotal       = "TOTAL"
	FieldVendorName  = "VENDOR_NAME"
	FieldReceiptDate = "INVOICE_RECEIPT_DATE"
	FieldItem        = "ITEM"
	FieldPrice       = "PRICE"
	FieldQuantity    = "QUANTITY"
)

// Field is a single typed value detected in a document
type Field struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// LineItemFields holds the fields detected for one line item
type LineItemFields struct {
	Fields []Field `json:"fields"`
}

// LineItemGroup is a group of line items as reported by the analyzer
type LineItemGroup struct {
	Items []LineItemFields `json:"line_items"`
}

// FieldSet is the raw output of an expense analysis: flat summary fields
// plus line items grouped the way the analyzer found them.
type FieldSet struct {
	Summary []Field         `json:"summary_fields"`
	Groups  []LineItemGroup `json:"line_item_groups"`
}

// Analyzer defines the interface for document analysis operations
type Analyzer interface {
	// Analyze runs expense analysis on a stored object
	Analyze(ctx context.Context, bucket, key string) (*FieldSet, error)
	// Close releases resources held by the analyzer
	Close() error
}

// Fetcher reads a stored object. Analyzers that cannot reference the
// content store directly use it to download the document first.
type Fetcher interface {
	Fetch(ctx context.Context, bucket, key string) ([]byte, string, error)
}

// keep reports whether a detected field carries enough to be useful
func keep(f Field) bool {
	return f.Type != "" && f.Value != ""
}

// compact drops fields without a type or a detected value
func compact(fs *FieldSet) *FieldSet {
	out := &FieldSet{
		Summary: make([]Field, 0, len(fs.Summary)),
		Groups:  make([]LineItemGroup, 0, len(fs.Groups)),
	}
	for _, f := range fs.Summary {
		if keep(f) {
			out.Summary = append(out.Summary, f)
		}
	}
	for _, g := range fs.Groups {
		group := LineItemGroup{Items: make([]LineItemFields, 0, len(g.Items))}
		for _, item := range g.Items {
			entry := LineItemFields{Fields: make([]Field, 0, len(item.Fields))}
			for _, f := range item.Fields {
				if keep(f) {
					entry.Fields = append(entry.Fields, f)
				}
			}
			group.Items = append(group.Items, entry)
		}
		out.Groups = append(out.Groups, group)
	}
	return out
}
