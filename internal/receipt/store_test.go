package receipt

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("RecordStore", func() {
	var (
		table *mockTable
		store *RecordStore
	)

	BeforeEach(func() {
		table = &mockTable{}
		store = NewRecordStoreWithDeps(table, &mockTimeSource{now: fixedNow})
	})

	Describe("Insert", func() {
		var (
			receipt *Receipt
			err     error
		)

		BeforeEach(func() {
			receipt = &Receipt{
				ID:         "r1",
				Date:       "2024-03-20",
				Vendor:     "Cafe X",
				Total:      "12.50",
				Items:      []LineItem{{Name: "Coffee", Price: "3.00", Quantity: "2"}},
				SourcePath: "s3://pro-receipts/Receipts/r1.pdf",
			}
		})

		JustBeforeEach(func() {
			err = store.Insert(context.Background(), receipt)
		})

		When("the write succeeds", func() {
			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should stamp the processed timestamp at write time", func() {
				Expect(table.rows[0].ProcessedTimestamp).To(Equal("2024-03-20T14:30:15.250Z"))
				Expect(receipt.ProcessedTimestamp).To(Equal("2024-03-20T14:30:15.250Z"))
			})

			It("should leave fully populated items unchanged", func() {
				Expect(table.rows[0].Items).To(Equal(receipt.Items))
				Expect(table.rows[0].Items).To(Equal([]LineItem{{Name: "Coffee", Price: "3.00", Quantity: "2"}}))
			})
		})

		When("items were built with missing fields", func() {
			BeforeEach(func() {
				receipt.Items = []LineItem{{Price: "1.00"}, {Name: "Tea"}}
			})

			It("should store them with defaults", func() {
				Expect(table.rows[0].Items).To(Equal([]LineItem{
					{Name: "Unknown Item", Price: "1.00", Quantity: "1"},
					{Name: "Tea", Price: "0.00", Quantity: "1"},
				}))
			})

			It("should not modify the caller's items", func() {
				Expect(receipt.Items[0].Name).To(BeEmpty())
			})
		})

		When("items are nil", func() {
			BeforeEach(func() {
				receipt.Items = nil
			})

			It("should store an empty list", func() {
				Expect(table.rows[0].Items).NotTo(BeNil())
				Expect(table.rows[0].Items).To(BeEmpty())
			})
		})

		When("the write fails", func() {
			BeforeEach(func() {
				table.putErr = errors.New("disk full")
			})

			It("returns a store error", func() {
				Expect(err).To(MatchError(ErrStore))
				Expect(err).To(MatchError(ContainSubstring("disk full")))
			})

			It("should not stamp the caller's receipt", func() {
				Expect(receipt.ProcessedTimestamp).To(BeEmpty())
			})
		})
	})

	Describe("ScanAll", func() {
		var (
			receipts []*Receipt
			err      error
		)

		JustBeforeEach(func() {
			receipts, err = store.ScanAll(context.Background())
		})

		When("the table is empty", func() {
			It("should return an empty, non-nil slice", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(receipts).NotTo(BeNil())
				Expect(receipts).To(BeEmpty())
			})
		})

		When("rows exist", func() {
			BeforeEach(func() {
				table.rows = []*Receipt{{ID: "a"}, {ID: "b", Items: []LineItem{{Name: "x"}}}}
			})

			It("should return every row with items never nil", func() {
				Expect(receipts).To(HaveLen(2))
				Expect(receipts[0].Items).NotTo(BeNil())
			})
		})

		When("the scan fails", func() {
			BeforeEach(func() {
				table.scanErr = errors.New("timeout")
			})

			It("returns a store error", func() {
				Expect(err).To(MatchError(ErrStore))
			})
		})
	})
})

var _ = Describe("LineItem.WithDefaults", func() {
	It("should be idempotent", func() {
		li := LineItem{Price: "2.00"}.WithDefaults()
		Expect(li.WithDefaults()).To(Equal(li))
	})
})

var _ = Describe("Latest", func() {
	It("should return nil for no receipts", func() {
		Expect(Latest(nil)).To(BeNil())
	})

	It("should pick the newest processed timestamp", func() {
		receipts := []*Receipt{
			{ID: "old", ProcessedTimestamp: "2024-03-19T10:00:00.000Z"},
			{ID: "new", ProcessedTimestamp: "2024-03-20T09:00:00.000Z"},
			{ID: "bad", ProcessedTimestamp: "yesterday"},
			{ID: "mid", ProcessedTimestamp: "2024-03-20T08:59:59.999Z"},
		}
		Expect(Latest(receipts).ID).To(Equal("new"))
	})

	It("should not reorder the input", func() {
		receipts := []*Receipt{
			{ID: "a", ProcessedTimestamp: "2024-03-19T10:00:00.000Z"},
			{ID: "b", ProcessedTimestamp: "2024-03-20T10:00:00.000Z"},
		}
		Latest(receipts)
		Expect(receipts[0].ID).To(Equal("a"))
	})
})
