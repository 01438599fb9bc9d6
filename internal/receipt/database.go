package receipt

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"github.com/zombor/receipt-tracker/internal/analysis"
	"github.com/zombor/receipt-tracker/internal/normalize"
)

const (
	merchantBucket       = "merchants"
	merchantNameBucket   = "merchants_by_name"
	categoryBucket       = "categories"
	categoryNameBucket   = "categories_by_name"
	receiptBucket        = "receipts"
	itemBucket           = "items"
	fileHashBucket       = "files_by_hash"
	autoCategoryTemplate = "Auto-created category for %s"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidItem is returned when a line item cannot be stored.
	ErrInvalidItem = errors.New("invalid line item")
)

// Tx is the set of writes that make up persisting one receipt. All calls
// made through one Tx commit or roll back together.
type Tx interface {
	// ResolveMerchant returns the id of the matching merchant, enriching
	// it, or creates a new one.
	ResolveMerchant(m analysis.Merchant) (uint64, error)

	// ResolveCategory returns the id of the named category, creating it
	// when absent.
	ResolveCategory(name string) (uint64, error)

	// InsertReceipt stores the receipt row.
	InsertReceipt(merchantID uint64, t analysis.Transaction, meta Meta) (uint64, error)

	// InsertItems stores the line items of a receipt, resolving their
	// categories.
	InsertItems(receiptID uint64, items []analysis.LineItem) error
}

// DB defines the interface for database operations
type DB interface {
	// Update runs fn in one read-write transaction. A non-nil error from
	// fn rolls back every write it made.
	Update(fn func(Tx) error) error

	// GetReceipt retrieves a receipt with its merchant and items
	GetReceipt(id uint64) (*Detail, error)

	// ListReceipts returns all receipts in insertion order
	ListReceipts() ([]*Receipt, error)

	// ListItems returns all line items
	ListItems() ([]*Item, error)

	// ListMerchants returns all merchants
	ListMerchants() ([]*Merchant, error)

	// ListCategories returns all categories
	ListCategories() ([]*Category, error)

	// HasFile reports whether a receipt with the content hash is stored
	HasFile(hash string) (bool, error)

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db  *bbolt.DB
	now func() time.Time
}

// NewBoltDB opens the database, creating buckets and seeding the default
// categories on first use.
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	b := &BoltDB{db: db, now: time.Now}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{merchantBucket, merchantNameBucket, categoryBucket, categoryNameBucket, receiptBucket, itemBucket, fileHashBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return b.seedCategories(tx)
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return b, nil
}

func (b *BoltDB) seedCategories(tx *bbolt.Tx) error {
	if k, _ := tx.Bucket([]byte(categoryBucket)).Cursor().First(); k != nil {
		return nil
	}
	w := &boltTx{tx: tx, now: b.now()}
	for _, c := range normalize.Categories() {
		if _, err := w.createCategory(c.Name, c.Description); err != nil {
			return fmt.Errorf("seeding category %q: %w", c.Name, err)
		}
	}
	return nil
}

// Update implements DB.
func (b *BoltDB) Update(fn func(Tx) error) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return fn(&boltTx{tx: tx, now: b.now()})
	})
}

// GetReceipt implements DB.
func (b *BoltDB) GetReceipt(id uint64) (*Detail, error) {
	detail := &Detail{Items: make([]*Item, 0)}
	err := b.db.View(func(tx *bbolt.Tx) error {
		var r Receipt
		if err := getJSON(tx.Bucket([]byte(receiptBucket)), id, &r); err != nil {
			return fmt.Errorf("receipt %d: %w", id, err)
		}
		detail.Receipt = &r

		var m Merchant
		if err := getJSON(tx.Bucket([]byte(merchantBucket)), r.MerchantID, &m); err != nil {
			return fmt.Errorf("merchant %d: %w", r.MerchantID, err)
		}
		detail.Merchant = &m

		prefix := itob(id)
		c := tx.Bucket([]byte(itemBucket)).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var item Item
			if err := json.Unmarshal(v, &item); err != nil {
				return fmt.Errorf("unmarshaling item: %w", err)
			}
			detail.Items = append(detail.Items, &item)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// ListReceipts implements DB.
func (b *BoltDB) ListReceipts() ([]*Receipt, error) {
	return listAll[Receipt](b.db, receiptBucket)
}

// ListItems implements DB.
func (b *BoltDB) ListItems() ([]*Item, error) {
	return listAll[Item](b.db, itemBucket)
}

// ListMerchants implements DB.
func (b *BoltDB) ListMerchants() ([]*Merchant, error) {
	return listAll[Merchant](b.db, merchantBucket)
}

// ListCategories implements DB.
func (b *BoltDB) ListCategories() ([]*Category, error) {
	return listAll[Category](b.db, categoryBucket)
}

// HasFile implements DB.
func (b *BoltDB) HasFile(hash string) (bool, error) {
	var found bool
	err := b.db.View(func(tx *bbolt.Tx) error {
		found = tx.Bucket([]byte(fileHashBucket)).Get([]byte(hash)) != nil
		return nil
	})
	return found, err
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}

func listAll[T any](db *bbolt.DB, bucketName string) ([]*T, error) {
	rows := make([]*T, 0)
	err := db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).ForEach(func(k, v []byte) error {
			var row T
			if err := json.Unmarshal(v, &row); err != nil {
				return fmt.Errorf("unmarshaling %s: %w", bucketName, err)
			}
			rows = append(rows, &row)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// boltTx implements Tx over one bbolt read-write transaction.
type boltTx struct {
	tx  *bbolt.Tx
	now time.Time
}

func (t *boltTx) ResolveMerchant(observed analysis.Merchant) (uint64, error) {
	merchants := t.tx.Bucket([]byte(merchantBucket))

	var (
		best     *Merchant
		bestRank = -1
	)
	prefix := append([]byte(observed.Name), 0)
	c := t.tx.Bucket([]byte(merchantNameBucket)).Cursor()
	for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
		var m Merchant
		if err := getJSON(merchants, btoi(k[len(prefix):]), &m); err != nil {
			return 0, fmt.Errorf("loading merchant: %w", err)
		}
		if !MatchMerchant(&m, observed) {
			continue
		}
		if rank := matchRank(&m, observed); rank > bestRank {
			best, bestRank = &m, rank
		}
	}

	if best != nil {
		if EnrichMerchant(best, observed) {
			best.UpdatedAt = t.now
			if err := putJSON(merchants, best.ID, best); err != nil {
				return 0, fmt.Errorf("updating merchant: %w", err)
			}
		}
		return best.ID, nil
	}

	m := newMerchant(observed)
	id, err := merchants.NextSequence()
	if err != nil {
		return 0, fmt.Errorf("allocating merchant id: %w", err)
	}
	m.ID = id
	m.CreatedAt = t.now
	m.UpdatedAt = t.now
	if err := putJSON(merchants, id, m); err != nil {
		return 0, fmt.Errorf("saving merchant: %w", err)
	}
	if err := t.tx.Bucket([]byte(merchantNameBucket)).Put(append(prefix, itob(id)...), nil); err != nil {
		return 0, fmt.Errorf("indexing merchant: %w", err)
	}
	return id, nil
}

func (t *boltTx) ResolveCategory(name string) (uint64, error) {
	name = normalize.CleanText(name)
	if name == "" {
		name = normalize.DefaultCategory
	}
	if v := t.tx.Bucket([]byte(categoryNameBucket)).Get(categoryKey(name)); v != nil {
		return btoi(v), nil
	}
	return t.createCategory(name, fmt.Sprintf(autoCategoryTemplate, name))
}

func (t *boltTx) createCategory(name, description string) (uint64, error) {
	categories := t.tx.Bucket([]byte(categoryBucket))
	id, err := categories.NextSequence()
	if err != nil {
		return 0, fmt.Errorf("allocating category id: %w", err)
	}
	c := &Category{ID: id, Name: name, Description: description, CreatedAt: t.now}
	if err := putJSON(categories, id, c); err != nil {
		return 0, fmt.Errorf("saving category: %w", err)
	}
	if err := t.tx.Bucket([]byte(categoryNameBucket)).Put(categoryKey(name), itob(id)); err != nil {
		return 0, fmt.Errorf("indexing category: %w", err)
	}
	return id, nil
}

func (t *boltTx) InsertReceipt(merchantID uint64, txn analysis.Transaction, meta Meta) (uint64, error) {
	if t.tx.Bucket([]byte(merchantBucket)).Get(itob(merchantID)) == nil {
		return 0, fmt.Errorf("merchant %d: %w", merchantID, ErrNotFound)
	}

	receipts := t.tx.Bucket([]byte(receiptBucket))
	id, err := receipts.NextSequence()
	if err != nil {
		return 0, fmt.Errorf("allocating receipt id: %w", err)
	}
	r := &Receipt{
		ID:            id,
		MerchantID:    merchantID,
		Filename:      meta.Filename,
		StoragePath:   meta.StoragePath,
		ContentType:   meta.ContentType,
		ContentHash:   meta.ContentHash,
		Date:          txn.Date,
		Time:          txn.Time,
		Subtotal:      txn.Subtotal,
		TaxAmount:     txn.TaxAmount,
		TotalAmount:   txn.TotalAmount,
		PaymentMethod: normalize.CleanText(txn.PaymentMethod),
		Status:        StatusApproved,
		Confidence:    meta.Confidence,
		CreatedAt:     t.now,
	}
	if err := putJSON(receipts, id, r); err != nil {
		return 0, fmt.Errorf("saving receipt: %w", err)
	}
	if meta.ContentHash != "" {
		if err := t.tx.Bucket([]byte(fileHashBucket)).Put([]byte(meta.ContentHash), itob(id)); err != nil {
			return 0, fmt.Errorf("indexing receipt file: %w", err)
		}
	}
	return id, nil
}

func (t *boltTx) InsertItems(receiptID uint64, items []analysis.LineItem) error {
	if t.tx.Bucket([]byte(receiptBucket)).Get(itob(receiptID)) == nil {
		return fmt.Errorf("receipt %d: %w", receiptID, ErrNotFound)
	}

	bucket := t.tx.Bucket([]byte(itemBucket))
	for i, li := range items {
		if li.Price <= 0 || li.Quantity <= 0 {
			return fmt.Errorf("item %d %q: %w", i+1, li.ReceiptName, ErrInvalidItem)
		}
		categoryID, err := t.ResolveCategory(li.Category)
		if err != nil {
			return fmt.Errorf("resolving category %q: %w", li.Category, err)
		}
		id, err := bucket.NextSequence()
		if err != nil {
			return fmt.Errorf("allocating item id: %w", err)
		}
		order := li.LineOrder
		if order == 0 {
			order = i + 1
		}
		item := &Item{
			ID:           id,
			ReceiptID:    receiptID,
			CategoryID:   categoryID,
			ReceiptName:  li.ReceiptName,
			StandardName: li.StandardName,
			Price:        li.Price,
			Quantity:     li.Quantity,
			LineTotal:    normalize.LineTotal(li.Price, li.Quantity),
			LineOrder:    order,
		}
		data, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("marshaling item: %w", err)
		}
		if err := bucket.Put(append(itob(receiptID), itob(id)...), data); err != nil {
			return fmt.Errorf("saving item: %w", err)
		}
	}
	return nil
}

func categoryKey(name string) []byte {
	return []byte(strings.ToLower(name))
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func btoi(b []byte) uint64 {
	if len(b) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

func getJSON(bucket *bbolt.Bucket, id uint64, v any) error {
	data := bucket.Get(itob(id))
	if data == nil {
		return ErrNotFound
	}
	return json.Unmarshal(data, v)
}

func putJSON(bucket *bbolt.Bucket, id uint64, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling: %w", err)
	}
	return bucket.Put(itob(id), data)
}
