package receipt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

// BoltDB implements the Table interface using BoltDB. Each table is a bucket.
type BoltDB struct {
	db     *bbolt.DB
	bucket []byte
}

// NewBoltDB opens (or creates) a BoltDB file holding the named table
func NewBoltDB(path, table string) (*BoltDB, error) {
	if table == "" {
		return nil, fmt.Errorf("table name is required")
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	// Create the bucket if it doesn't exist
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(table))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}

	return &BoltDB{db: db, bucket: []byte(table)}, nil
}

// Put saves a receipt keyed by its ID
func (b *BoltDB) Put(ctx context.Context, receipt *Receipt) error {
	data, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("marshaling receipt: %w", err)
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(b.bucket).Put([]byte(receipt.ID), data)
	})
}

// Scan returns all receipts in key order
func (b *BoltDB) Scan(ctx context.Context) ([]*Receipt, error) {
	receipts := make([]*Receipt, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(b.bucket).ForEach(func(k, v []byte) error {
			var receipt Receipt
			if err := json.Unmarshal(v, &receipt); err != nil {
				return fmt.Errorf("unmarshaling receipt %s: %w", k, err)
			}
			receipts = append(receipts, &receipt)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return receipts, nil
}

// Close closes the database file
func (b *BoltDB) Close() error {
	return b.db.Close()
}
