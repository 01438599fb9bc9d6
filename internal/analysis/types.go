package analysis

// Merchant is the normalized merchant block.
type Merchant struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zip_code"`
	Phone   string `json:"phone"`
}

// Transaction is the normalized transaction block. Date and Time are nil
// when nothing usable was found.
type Transaction struct {
	Date          *string `json:"date"`
	Time          *string `json:"time"`
	Subtotal      float64 `json:"subtotal"`
	TaxAmount     float64 `json:"tax_amount"`
	TotalAmount   float64 `json:"total_amount"`
	PaymentMethod string  `json:"payment_method"`
}

// LineItem is one purchased item that passed validation.
type LineItem struct {
	ReceiptName  string  `json:"receipt_name"`
	StandardName string  `json:"standard_name"`
	Price        float64 `json:"price"`
	Quantity     float64 `json:"quantity"`
	Category     string  `json:"category"`
	LineOrder    int     `json:"line_order"`
}

// NormalizedReceipt is the clean, schema conformant form of a receipt.
type NormalizedReceipt struct {
	Merchant    Merchant    `json:"merchant"`
	Transaction Transaction `json:"transaction"`
	Items       []LineItem  `json:"items"`
}

// Confidence is the tri-level rating of a receipt, plus Failed for
// payloads that could not be read at all.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
	ConfidenceFailed Confidence = "failed"
)

// Status reports whether a payload could be analyzed.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Result is the outcome of analyzing one structurer response. Receipt is
// always populated; on error it holds the fallback receipt.
type Result struct {
	Status     Status            `json:"status"`
	Confidence Confidence        `json:"confidence"`
	Score      int               `json:"score"`
	Receipt    NormalizedReceipt `json:"data"`
	Warnings   []string          `json:"warnings,omitempty"`
	Err        error             `json:"-"`
}

// ErrorMessage returns the text of Err, or "" when there is none.
func (r Result) ErrorMessage() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}
