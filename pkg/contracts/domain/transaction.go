package domain

import (
	"time"
)

// Transaction is one cleaned invoice line attributed to a customer
type Transaction struct {
	CustomerID string    `json:"customer_id" validate:"required"`
	InvoiceID  string    `json:"invoice_id" validate:"required"`
	Timestamp  time.Time `json:"timestamp" validate:"required"`
	Revenue    float64   `json:"revenue" validate:"min=0"`
}

// RawTransaction is a line of the retail export before any cleaning rule is applied.
// Timestamp is kept unparsed so the cleaner can count parse failures.
type RawTransaction struct {
	InvoiceID   string  `json:"invoice_id"`
	StockCode   string  `json:"stock_code"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	Timestamp   string  `json:"timestamp"`
	Price       float64 `json:"price"`
	CustomerID  string  `json:"customer_id"`
	Country     string  `json:"country"`

	// HasDescription is false when the export carries no description column
	HasDescription bool `json:"-"`
}

// CleaningReport counts the rows removed by each cleaning rule
type CleaningReport struct {
	InputRows              int `json:"input_rows"`
	OutputRows             int `json:"output_rows"`
	DroppedNullCustomer    int `json:"dropped_null_customer"`
	DroppedBadTimestamp    int `json:"dropped_bad_timestamp"`
	DroppedCancelled       int `json:"dropped_cancelled"`
	DroppedBadQuantity     int `json:"dropped_bad_quantity"`
	DroppedBadPrice        int `json:"dropped_bad_price"`
	DroppedNullDescription int `json:"dropped_null_description"`
	DroppedDuplicates      int `json:"dropped_duplicates"`
}

// Dropped returns the total number of rows removed
func (r CleaningReport) Dropped() int {
	return r.InputRows - r.OutputRows
}
