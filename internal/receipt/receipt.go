package receipt

import (
	"errors"
	"sort"
	"time"
)

// Defaults applied when the analyzer does not detect a field
const (
	DefaultVendor   = "Unknown"
	DefaultTotal    = "0.00"
	DefaultItemName = "Unknown Item"
	DefaultPrice    = "0.00"
	DefaultQuantity = "1"
)

// Error kinds. Callers match them with errors.Is.
var (
	ErrBadRequest = errors.New("bad request")
	ErrCredential = errors.New("credential error")
	ErrAnalysis   = errors.New("analysis error")
	ErrStore      = errors.New("store error")
	ErrNotify     = errors.New("notify error")
)

// Receipt is the normalized record of an analyzed receipt
type Receipt struct {
	ID                 string     `json:"receipt_id" dynamodbav:"receipt_id"`
	Date               string     `json:"date" dynamodbav:"date"`
	Vendor             string     `json:"vendor" dynamodbav:"vendor"`
	Total              string     `json:"total" dynamodbav:"total"`
	Items              []LineItem `json:"items" dynamodbav:"items"`
	SourcePath         string     `json:"source_path" dynamodbav:"source_path"`
	ProcessedTimestamp string     `json:"processed_timestamp,omitempty" dynamodbav:"processed_timestamp,omitempty"`
}

// LineItem is a single purchased item on a receipt
type LineItem struct {
	Name     string `json:"name" dynamodbav:"name"`
	Price    string `json:"price" dynamodbav:"price"`
	Quantity string `json:"quantity" dynamodbav:"quantity"`
}

// WithDefaults returns the item with every empty field replaced by its default
func (li LineItem) WithDefaults() LineItem {
	if li.Name == "" {
		li.Name = DefaultItemName
	}
	if li.Price == "" {
		li.Price = DefaultPrice
	}
	if li.Quantity == "" {
		li.Quantity = DefaultQuantity
	}
	return li
}

// itemsWithDefaults copies items, defaulting each one. Never returns nil.
func itemsWithDefaults(items []LineItem) []LineItem {
	out := make([]LineItem, 0, len(items))
	for _, item := range items {
		out = append(out, item.WithDefaults())
	}
	return out
}

// Latest returns the receipt with the newest processed timestamp, or nil when
// receipts is empty. Records whose timestamp does not parse sort last.
func Latest(receipts []*Receipt) *Receipt {
	if len(receipts) == 0 {
		return nil
	}

	sorted := make([]*Receipt, len(receipts))
	copy(sorted, receipts)
	sort.SliceStable(sorted, func(i, j int) bool {
		return processedAt(sorted[i]).After(processedAt(sorted[j]))
	})
	return sorted[0]
}

func processedAt(r *Receipt) time.Time {
	t, err := time.Parse(time.RFC3339Nano, r.ProcessedTimestamp)
	if err != nil {
		return time.Time{}
	}
	return t
}
