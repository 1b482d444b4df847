/*
Copyright 2025 Payrun Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package database

import (
	"context"

	"github.com/payrunhq/payrun/model"
)

// IDataSource defines the interface for data source operations, grouping related functionalities.
type IDataSource interface {
	order       // Interface for order-related operations
	transaction // Interface for transaction/reconciliation operations
	user        // Interface for user-related operations
}

// order defines methods for handling orders.
type order interface {
	InsertBatch(ctx context.Context, serviceType, userID string, lines []string) (int, error) // Creates one pending order plus its transaction per input line
	GetOrder(ctx context.Context, id string) (*model.Order, error)                            // Retrieves an order by ID
}

// transaction defines the reconciliation operations over service transactions.
type transaction interface {
	FetchPendingCodes(ctx context.Context, serviceType, subtype string) (*model.PendingBatch, error)                                                              // Selects the latest pending/processing transaction per distinct code
	FindOrderID(ctx context.Context, serviceType, code, userID string) (string, error)                                                                            // Recovers the owning order for a pending code
	ApplyOutcome(ctx context.Context, orderID, serviceType, code, status string, amount *float64, notes string, details map[string]interface{}) (bool, error)     // The single write path for all status transitions
	PendingOrderIDs(ctx context.Context, serviceType, code string) ([]string, error)                                                                              // Lists orders still holding a pending/processing transaction for a code
	CodeForOrder(ctx context.Context, orderID string) (string, error)                                                                                             // Retrieves the latest code recorded against an order
}

// user defines methods for handling users.
type user interface {
	EnsureUser(ctx context.Context, userID, email string) error // Seeds a user row if it does not exist
}
