package model

import (
	"encoding/json"
	"strconv"
	"time"
)

// Transaction status values. "success" is terminal for transactions; the
// owning order records "completed" instead.
const (
	StatusSuccess = "success"
)

// AutoClosedNote is appended to transactions force-closed by the dedup pass
// in ApplyOutcome.
const AutoClosedNote = "auto-closed dup"

// Transaction is the per-code work item tracked against an order. Intake
// creates one per line of input; in practice most orders carry exactly one.
type Transaction struct {
	TransactionID  string          `json:"transaction_id"`
	OrderID        string          `json:"order_id"`
	Code           string          `json:"code"`
	Status         string          `json:"status"`
	Amount         *float64        `json:"amount,omitempty"`
	Notes          string          `json:"notes,omitempty"`
	ProcessingData json.RawMessage `json:"processing_data,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (transaction *Transaction) ToJSON() ([]byte, error) {
	return json.Marshal(transaction)
}

// Result is the blob written to orders.result_data and
// service_transactions.processing_data on every transition.
type Result struct {
	Code    string                 `json:"code"`
	Status  string                 `json:"status"`
	Amount  *string                `json:"amount"`
	Notes   string                 `json:"notes"`
	Details map[string]interface{} `json:"details"`
}

// NewResult builds the result blob for a transition, applying the
// success -> completed normalization the order side expects.
func NewResult(code, status string, amount *float64, notes string, details map[string]interface{}) Result {
	var amountStr *string
	if amount != nil {
		s := FormatAmount(*amount)
		amountStr = &s
	}
	return Result{
		Code:    code,
		Status:  OrderStatusFor(status),
		Amount:  amountStr,
		Notes:   notes,
		Details: details,
	}
}

func (r Result) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}

// FormatAmount renders an amount the way the store persists it: integral
// values without a fractional part, everything else with minimal digits.
func FormatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', -1, 64)
}

// CodeOrderPair links a pending code to its most recently created owning
// order.
type CodeOrderPair struct {
	Code    string `json:"code"`
	OrderID string `json:"order_id"`
}

// PendingBatch is the result of one pending-work fetch for a service.
// Codes is capped at the per-cycle batch limit; CodeOrderMap carries every
// match so callers can resolve owners beyond the cap.
type PendingBatch struct {
	Codes         []string        `json:"codes"`
	CodeOrderMap  []CodeOrderPair `json:"code_order_map"`
	LatestOrderID string          `json:"latest_order_id,omitempty"`
}

// IsEmpty reports whether the batch holds no work.
func (b *PendingBatch) IsEmpty() bool {
	return b == nil || len(b.Codes) == 0
}

// OrderIDFor returns the owning order for a code, or "" when the code is
// not in the map.
func (b *PendingBatch) OrderIDFor(code string) string {
	if b == nil {
		return ""
	}
	for _, pair := range b.CodeOrderMap {
		if pair.Code == code {
			return pair.OrderID
		}
	}
	return ""
}
