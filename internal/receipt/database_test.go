package receipt

import (
	"errors"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/receipt-tracker/internal/analysis"
	"github.com/zombor/receipt-tracker/internal/normalize"
)

func strptr(s string) *string { return &s }

var _ = Describe("BoltDB", func() {
	var (
		dbPath string
		db     *BoltDB
		now    time.Time
	)

	BeforeEach(func() {
		dbPath = filepath.Join(GinkgoT().TempDir(), "test.db")
		var err error
		db, err = NewBoltDB(dbPath)
		Expect(err).NotTo(HaveOccurred())
		now = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
		db.now = func() time.Time { return now }
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	resolve := func(m analysis.Merchant) uint64 {
		var id uint64
		Expect(db.Update(func(tx Tx) error {
			var err error
			id, err = tx.ResolveMerchant(m)
			return err
		})).To(Succeed())
		return id
	}

	Describe("NewBoltDB", func() {
		It("should seed the default categories", func() {
			categories, err := db.ListCategories()
			Expect(err).NotTo(HaveOccurred())
			Expect(categories).To(HaveLen(len(normalize.Categories())))
			Expect(categories[0].Name).To(Equal("Electronics"))
			Expect(categories[0].Description).NotTo(BeEmpty())
		})

		It("should not seed twice when reopened", func() {
			Expect(db.Close()).To(Succeed())
			var err error
			db, err = NewBoltDB(dbPath)
			Expect(err).NotTo(HaveOccurred())

			categories, err := db.ListCategories()
			Expect(err).NotTo(HaveOccurred())
			Expect(categories).To(HaveLen(len(normalize.Categories())))
		})
	})

	Describe("ResolveMerchant", func() {
		When("a stored merchant is missing its location", func() {
			var firstID uint64

			BeforeEach(func() {
				firstID = resolve(analysis.Merchant{Name: "Target", Address: "123 Main Street"})
			})

			It("should reuse and enrich it", func() {
				id := resolve(analysis.Merchant{Name: "Target", City: "Austin", State: "TX", ZipCode: "78701", Phone: "(512) 555-0100"})
				Expect(id).To(Equal(firstID))

				merchants, err := db.ListMerchants()
				Expect(err).NotTo(HaveOccurred())
				Expect(merchants).To(HaveLen(1))
				Expect(merchants[0].Address).To(Equal("123 Main Street"))
				Expect(merchants[0].City).To(Equal("Austin"))
				Expect(merchants[0].State).To(Equal("TX"))
				Expect(merchants[0].ZipCode).To(Equal("78701"))
				Expect(merchants[0].Phone).To(Equal("(512) 555-0100"))
			})

			It("should bump updated_at only when enriched", func() {
				now = now.Add(time.Hour)
				resolve(analysis.Merchant{Name: "Target", City: "Austin", State: "TX"})
				merchants, _ := db.ListMerchants()
				Expect(merchants[0].UpdatedAt).To(BeTemporally("==", now))
				Expect(merchants[0].CreatedAt).To(BeTemporally("==", now.Add(-time.Hour)))

				now = now.Add(time.Hour)
				resolve(analysis.Merchant{Name: "Target", City: "Austin", State: "TX"})
				merchants, _ = db.ListMerchants()
				Expect(merchants[0].UpdatedAt).To(BeTemporally("==", now.Add(-time.Hour)))
			})
		})

		When("the same name is seen in another city", func() {
			It("should create a second merchant", func() {
				austin := resolve(analysis.Merchant{Name: "Target", City: "Austin", State: "TX"})
				dallas := resolve(analysis.Merchant{Name: "Target", City: "Dallas", State: "TX"})
				Expect(dallas).NotTo(Equal(austin))

				merchants, err := db.ListMerchants()
				Expect(err).NotTo(HaveOccurred())
				Expect(merchants).To(HaveLen(2))
			})
		})

		When("both an exact and a blank candidate exist", func() {
			It("should prefer the exact match", func() {
				austin := resolve(analysis.Merchant{Name: "Target", City: "Austin", State: "TX"})
				resolve(analysis.Merchant{Name: "Target"})
				Expect(resolve(analysis.Merchant{Name: "Target", City: "Austin", State: "TX"})).To(Equal(austin))
			})
		})

		It("should not match on a name prefix", func() {
			a := resolve(analysis.Merchant{Name: "Target"})
			b := resolve(analysis.Merchant{Name: "Target Optical"})
			Expect(b).NotTo(Equal(a))
		})
	})

	Describe("ResolveCategory", func() {
		It("should find seeded categories regardless of case", func() {
			var a, b uint64
			Expect(db.Update(func(tx Tx) error {
				var err error
				if a, err = tx.ResolveCategory("Groceries"); err != nil {
					return err
				}
				b, err = tx.ResolveCategory("GROCERIES")
				return err
			})).To(Succeed())
			Expect(a).To(Equal(b))

			categories, _ := db.ListCategories()
			Expect(categories).To(HaveLen(len(normalize.Categories())))
		})

		It("should create unknown categories once", func() {
			var a, b uint64
			Expect(db.Update(func(tx Tx) error {
				var err error
				if a, err = tx.ResolveCategory("garden tools"); err != nil {
					return err
				}
				b, err = tx.ResolveCategory("Garden Tools")
				return err
			})).To(Succeed())
			Expect(a).To(Equal(b))

			categories, _ := db.ListCategories()
			last := categories[len(categories)-1]
			Expect(last.Name).To(Equal("Garden Tools"))
			Expect(last.Description).To(Equal("Auto-created category for Garden Tools"))
		})
	})

	Describe("Update", func() {
		var (
			receipt analysis.NormalizedReceipt
			meta    Meta
			id      uint64
			err     error
		)

		BeforeEach(func() {
			receipt = analysis.NormalizedReceipt{
				Merchant: analysis.Merchant{Name: "Target", City: "San Francisco", State: "CA"},
				Transaction: analysis.Transaction{
					Date:          strptr("2021-08-19"),
					Time:          strptr("17:32:29"),
					Subtotal:      21.97,
					TaxAmount:     2.14,
					TotalAmount:   24.11,
					PaymentMethod: "VISA",
				},
				Items: []analysis.LineItem{
					{ReceiptName: "Dave Shampoo", StandardName: "Shampoo", Price: 12.98, Quantity: 1, Category: "Health & Beauty", LineOrder: 1},
					{ReceiptName: "Dave Conditioner", StandardName: "Conditioner", Price: 4.495, Quantity: 2, Category: "Health & Beauty", LineOrder: 2},
				},
			}
			meta = Meta{Filename: "target.jpg", StoragePath: "receipts/target.jpg", ContentType: "image/jpeg", ContentHash: "abc", Confidence: analysis.ConfidenceHigh}
		})

		JustBeforeEach(func() {
			err = db.Update(func(tx Tx) error {
				var err error
				id, err = Persist(tx, receipt, meta)
				return err
			})
		})

		When("every write succeeds", func() {
			It("should store the receipt with its merchant and items", func() {
				Expect(err).NotTo(HaveOccurred())

				detail, getErr := db.GetReceipt(id)
				Expect(getErr).NotTo(HaveOccurred())
				Expect(detail.Merchant.Name).To(Equal("Target"))
				Expect(*detail.Receipt.Date).To(Equal("2021-08-19"))
				Expect(detail.Receipt.PaymentMethod).To(Equal("Visa"))
				Expect(detail.Receipt.Status).To(Equal(StatusApproved))
				Expect(detail.Receipt.Confidence).To(Equal(analysis.ConfidenceHigh))
				Expect(detail.Receipt.CreatedAt).To(BeTemporally("==", now))
				Expect(detail.Items).To(HaveLen(2))
				Expect(detail.Items[0].StandardName).To(Equal("Shampoo"))
				Expect(detail.Items[1].LineTotal).To(Equal(8.99))
				Expect(detail.Items[1].LineOrder).To(Equal(2))
			})

			It("should index the file hash", func() {
				found, hasErr := db.HasFile("abc")
				Expect(hasErr).NotTo(HaveOccurred())
				Expect(found).To(BeTrue())

				found, _ = db.HasFile("other")
				Expect(found).To(BeFalse())
			})
		})

		When("an item fails to insert", func() {
			BeforeEach(func() {
				receipt.Items = append(receipt.Items, analysis.LineItem{ReceiptName: "Broken", StandardName: "Broken", Price: 0, Quantity: 1, Category: "Garden"})
			})

			It("should roll back every write", func() {
				Expect(errors.Is(err, ErrInvalidItem)).To(BeTrue())

				receipts, _ := db.ListReceipts()
				Expect(receipts).To(BeEmpty())
				items, _ := db.ListItems()
				Expect(items).To(BeEmpty())
				merchants, _ := db.ListMerchants()
				Expect(merchants).To(BeEmpty())
				categories, _ := db.ListCategories()
				Expect(categories).To(HaveLen(len(normalize.Categories())))
				found, _ := db.HasFile("abc")
				Expect(found).To(BeFalse())
			})
		})
	})

	Describe("InsertReceipt", func() {
		It("should refuse an unknown merchant", func() {
			err := db.Update(func(tx Tx) error {
				_, err := tx.InsertReceipt(42, analysis.Transaction{}, Meta{})
				return err
			})
			Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
		})
	})

	Describe("GetReceipt", func() {
		It("should return ErrNotFound for a missing receipt", func() {
			_, err := db.GetReceipt(99)
			Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
		})
	})
})
