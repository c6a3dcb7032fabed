package receipt

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/receipt-pipeline/internal/scanning"
)

// IDGenerator generates unique IDs for receipts
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// uuidGenerator generates random (v4) UUIDs
type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

// utcTimeSource provides the current time in UTC
type utcTimeSource struct{}

func (t *utcTimeSource) Now() time.Time {
	return time.Now().UTC()
}

// Normalizer converts raw analyzer output into Receipt records
type Normalizer struct {
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewNormalizer creates a Normalizer with UUID ids and the system clock
func NewNormalizer() *Normalizer {
	return NewNormalizerWithDeps(&uuidGenerator{}, &utcTimeSource{})
}

// NewNormalizerWithDeps creates a Normalizer with custom dependencies for testing
func NewNormalizerWithDeps(idGen IDGenerator, timeSrc TimeSource) *Normalizer {
	return &Normalizer{
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// Normalize builds a Receipt for bucket/key from the analyzer's field set.
// Missing fields take their defaults, so it never fails. The second return
// value counts line items that were dropped because they had no name.
func (n *Normalizer) Normalize(bucket, key string, fs *scanning.FieldSet) (*Receipt, int) {
	r := &Receipt{
		ID:         n.idGenerator.Generate(),
		Date:       n.timeSource.Now().UTC().Format(time.DateOnly),
		Vendor:     DefaultVendor,
		Total:      DefaultTotal,
		Items:      []LineItem{},
		SourcePath: fmt.Sprintf("s3://%s/%s", bucket, key),
	}
	if fs == nil {
		return r, 0
	}

	foldSummary(r, fs.Summary)

	dropped := 0
	for _, group := range fs.Groups {
		for _, entry := range group.Items {
			item, ok := foldLineItem(entry.Fields)
			if !ok {
				dropped++
				continue
			}
			r.Items = append(r.Items, item)
		}
	}

	return r, dropped
}

// foldSummary applies summary fields in scan order. A later field of the same
// type replaces an earlier one; values are never combined.
func foldSummary(r *Receipt, fields []scanning.Field) {
	for _, f := range fields {
		if f.Value == "" {
			continue
		}
		switch f.Type {
		case scanning.FieldTotal:
			r.Total = f.Value
		case scanning.FieldReceiptDate:
			r.Date = f.Value
		case scanning.FieldVendorName:
			r.Vendor = f.Value
		}
	}
}

// foldLineItem keeps the first value seen for each of ITEM, PRICE and QUANTITY.
// An entry without an ITEM value does not produce an item.
func foldLineItem(fields []scanning.Field) (LineItem, bool) {
	first := make(map[string]string, 3)
	for _, f := range fields {
		if f.Value == "" {
			continue
		}
		switch f.Type {
		case scanning.FieldItem, scanning.FieldPrice, scanning.FieldQuantity:
			if _, seen := first[f.Type]; !seen {
				first[f.Type] = f.Value
			}
		}
	}

	name, ok := first[scanning.FieldItem]
	if !ok {
		return LineItem{}, false
	}
	return LineItem{
		Name:     name,
		Price:    first[scanning.FieldPrice],
		Quantity: first[scanning.FieldQuantity],
	}.WithDefaults(), true
}
