package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/payrunhq/payrun/internal/apierror"
	"github.com/payrunhq/payrun/model"
)

// InsertBatch creates one pending order per non-blank input line, plus the
// service transaction carrying its parsed business key. Lines that fail code
// parsing are skipped with a warning; the count reflects inserted orders.
func (d Datasource) InsertBatch(ctx context.Context, serviceType, userID string, lines []string) (int, error) {
	count := 0
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		code, err := model.ParseCode(line)
		if err != nil {
			logrus.Warnf("skipping line for service %s: %v", serviceType, err)
			continue
		}

		orderID := GenerateUUIDWithSuffix("ord")
		_, err = d.Conn.ExecContext(ctx, `
			INSERT INTO orders (id, user_id, service_type, status, input_data)
			VALUES ($1, $2, $3, 'pending', $4)
		`, orderID, userID, serviceType, line)
		if err != nil {
			return count, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to insert order", err)
		}

		_, err = d.Conn.ExecContext(ctx, `
			INSERT INTO service_transactions (id, order_id, code, status)
			VALUES ($1, $2, $3, 'pending')
		`, GenerateUUIDWithSuffix("txn"), orderID, code.String())
		if err != nil {
			return count, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to insert transaction", err)
		}
		count++
	}
	return count, nil
}

// GetOrder retrieves an order by id.
func (d Datasource) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT id, user_id, service_type, status, input_data, COALESCE(result_data, 'null'), created_at, updated_at
		FROM orders
		WHERE id = $1
	`, id)

	order := &model.Order{}
	err := row.Scan(&order.OrderID, &order.UserID, &order.ServiceType, &order.Status, &order.InputData, &order.ResultData, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Order with ID '%s' not found", id), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve order", err)
	}
	return order, nil
}

// EnsureUser seeds a user row when it does not exist yet. Intake references
// users by id, so a fresh install gets a default operator account.
func (d Datasource) EnsureUser(ctx context.Context, userID, email string) error {
	var exists bool
	err := d.Conn.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)
	`, userID).Scan(&exists)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to check user existence", err)
	}
	if exists {
		return nil
	}

	_, err = d.Conn.ExecContext(ctx, `
		INSERT INTO users (id, email, first_name, last_name, role, status)
		VALUES ($1, $2, 'Admin', 'Local', 'admin', 'active')
	`, userID, email)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to insert user", err)
	}
	logrus.Infof("created default user %s (%s)", email, userID)
	return nil
}
