package receipt

import (
	"time"

	"github.com/zombor/receipt-tracker/internal/analysis"
)

// Status of a persisted receipt.
const StatusApproved = "approved"

// Merchant is a stored merchant. Merchants are shared across receipts.
type Merchant struct {
	ID        uint64    `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	City      string    `json:"city"`
	State     string    `json:"state"`
	ZipCode   string    `json:"zip_code"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Category is a stored item category.
type Category struct {
	ID          uint64    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// Receipt is a stored, approved receipt.
type Receipt struct {
	ID            uint64              `json:"id"`
	MerchantID    uint64              `json:"merchant_id"`
	Filename      string              `json:"filename"`
	StoragePath   string              `json:"storage_path"`
	ContentType   string              `json:"content_type"`
	ContentHash   string              `json:"content_hash,omitempty"`
	Date          *string             `json:"date"`
	Time          *string             `json:"time"`
	Subtotal      float64             `json:"subtotal"`
	TaxAmount     float64             `json:"tax_amount"`
	TotalAmount   float64             `json:"total_amount"`
	PaymentMethod string              `json:"payment_method"`
	Status        string              `json:"status"`
	Confidence    analysis.Confidence `json:"confidence"`
	CreatedAt     time.Time           `json:"created_at"`
}

// Item is a stored line item.
type Item struct {
	ID           uint64  `json:"id"`
	ReceiptID    uint64  `json:"receipt_id"`
	CategoryID   uint64  `json:"category_id"`
	ReceiptName  string  `json:"receipt_name"`
	StandardName string  `json:"standard_name"`
	Price        float64 `json:"price"`
	Quantity     float64 `json:"quantity"`
	LineTotal    float64 `json:"line_total"`
	LineOrder    int     `json:"line_order"`
}

// Meta is the file and review information stored alongside a receipt.
type Meta struct {
	Filename    string
	StoragePath string
	ContentType string
	ContentHash string
	Confidence  analysis.Confidence
}

// Detail is a receipt with its merchant and items.
type Detail struct {
	Receipt  *Receipt  `json:"receipt"`
	Merchant *Merchant `json:"merchant"`
	Items    []*Item   `json:"items"`
}
