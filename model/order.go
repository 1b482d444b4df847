package model

import (
	"encoding/json"
	"time"
)

// Order status values. An order only ever moves forward:
// pending -> processing -> {completed, failed}.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Order is the top-level record for one submitted line of user input.
type Order struct {
	OrderID     string          `json:"order_id"`
	UserID      string          `json:"user_id"`
	ServiceType string          `json:"service_type"`
	Status      string          `json:"status"`
	InputData   string          `json:"input_data"`
	ResultData  json.RawMessage `json:"result_data,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (order *Order) ToJSON() ([]byte, error) {
	return json.Marshal(order)
}

// OrderStatusFor maps a transaction outcome status to the status written on
// the owning order. Transactions finish as "success", orders as "completed".
func OrderStatusFor(status string) string {
	if status == StatusSuccess {
		return StatusCompleted
	}
	return status
}
