package receipt

import (
	"context"
	"fmt"
)

// timestampLayout matches JavaScript's Date.toISOString, which is what the
// browser client sorts on.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// Table defines the interface for a durable receipt table
type Table interface {
	// Put writes a receipt row
	Put(ctx context.Context, receipt *Receipt) error

	// Scan returns every row in no particular order
	Scan(ctx context.Context) ([]*Receipt, error)

	// Close closes the underlying connection
	Close() error
}

// RecordStore persists normalized receipts into a Table
type RecordStore struct {
	table      Table
	timeSource TimeSource
}

// NewRecordStore creates a RecordStore using the system clock
func NewRecordStore(table Table) *RecordStore {
	return NewRecordStoreWithDeps(table, &utcTimeSource{})
}

// NewRecordStoreWithDeps creates a RecordStore with a custom clock for testing
func NewRecordStoreWithDeps(table Table, timeSrc TimeSource) *RecordStore {
	return &RecordStore{
		table:      table,
		timeSource: timeSrc,
	}
}

// Insert stamps the processed timestamp and writes the receipt. Item defaults
// are applied again so records built outside the Normalizer are still complete.
func (s *RecordStore) Insert(ctx context.Context, receipt *Receipt) error {
	row := *receipt
	row.Items = itemsWithDefaults(receipt.Items)
	row.ProcessedTimestamp = s.timeSource.Now().UTC().Format(timestampLayout)

	if err := s.table.Put(ctx, &row); err != nil {
		return fmt.Errorf("%w: saving receipt %s: %w", ErrStore, receipt.ID, err)
	}

	receipt.ProcessedTimestamp = row.ProcessedTimestamp
	return nil
}

// ScanAll returns every stored receipt, unordered. There is no paging.
func (s *RecordStore) ScanAll(ctx context.Context) ([]*Receipt, error) {
	receipts, err := s.table.Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: scanning receipts: %w", ErrStore, err)
	}

	if receipts == nil {
		receipts = []*Receipt{}
	}
	for _, r := range receipts {
		if r.Items == nil {
			r.Items = []LineItem{}
		}
	}
	return receipts, nil
}

// Close closes the underlying table
func (s *RecordStore) Close() error {
	return s.table.Close()
}
