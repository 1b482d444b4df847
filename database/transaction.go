package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/payrunhq/payrun/internal/apierror"
	"github.com/payrunhq/payrun/model"
)

// pendingBatchCap bounds how many codes one scheduler cycle may process for
// a service. The code/order map is returned uncapped.
const pendingBatchCap = 10

// FetchPendingCodes selects, per distinct code, the most recently created
// transaction still pending or processing for the service, most recent code
// first. Subtype narrows polymorphic code spaces: "prepaid" keeps composite
// "phone|amount" codes, "postpaid" keeps bare ones.
func (d Datasource) FetchPendingCodes(ctx context.Context, serviceType, subtype string) (*model.PendingBatch, error) {
	filter := ""
	switch subtype {
	case string(model.Prepaid):
		filter = "AND st.code LIKE '%|%'"
	case string(model.Postpaid):
		filter = "AND st.code NOT LIKE '%|%'"
	}

	query := fmt.Sprintf(`
		SELECT code, order_id FROM (
			SELECT DISTINCT ON (st.code) st.code AS code, st.order_id AS order_id, st.created_at AS created_at
			FROM service_transactions st
			JOIN orders o ON o.id = st.order_id
			WHERE o.service_type = $1
			  AND st.status IN ('pending','processing')
			  %s
			ORDER BY st.code, st.created_at DESC
		) latest
		ORDER BY created_at DESC
	`, filter)

	rows, err := d.Conn.QueryContext(ctx, query, serviceType)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrUnavailable, fmt.Sprintf("Failed to fetch pending codes for service '%s'", serviceType), err)
	}
	defer rows.Close()

	batch := &model.PendingBatch{}
	for rows.Next() {
		var code, orderID string
		if err := rows.Scan(&code, &orderID); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan pending code", err)
		}
		if code == "" {
			continue
		}
		if len(batch.Codes) < pendingBatchCap {
			batch.Codes = append(batch.Codes, code)
		}
		batch.CodeOrderMap = append(batch.CodeOrderMap, model.CodeOrderPair{Code: code, OrderID: orderID})
	}
	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over pending codes", err)
	}

	if len(batch.CodeOrderMap) > 0 {
		batch.LatestOrderID = batch.CodeOrderMap[0].OrderID
	}
	return batch, nil
}

// FindOrderID returns the most recent order still owning a pending or
// processing transaction for code, optionally scoped to a user. Returns ""
// without error when no such order exists.
func (d Datasource) FindOrderID(ctx context.Context, serviceType, code, userID string) (string, error) {
	query := `
		SELECT st.order_id
		FROM service_transactions st
		JOIN orders o ON o.id = st.order_id
		WHERE st.code = $1
		  AND o.service_type = $2
		  AND st.status IN ('pending','processing')
		ORDER BY st.created_at DESC
		LIMIT 1
	`
	args := []interface{}{code, serviceType}
	if userID != "" {
		query = `
		SELECT st.order_id
		FROM service_transactions st
		JOIN orders o ON o.id = st.order_id
		WHERE st.code = $1
		  AND o.service_type = $2
		  AND o.user_id = $3
		  AND st.status IN ('pending','processing')
		ORDER BY st.created_at DESC
		LIMIT 1
	`
		args = append(args, userID)
	}

	var orderID string
	err := d.Conn.QueryRowContext(ctx, query, args...).Scan(&orderID)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", apierror.NewAPIError(apierror.ErrUnavailable, fmt.Sprintf("Failed to find order for code '%s'", code), err)
	}
	return orderID, nil
}

// ApplyOutcome is the single write path for every status transition,
// terminal or not. The steps run in order on their own statements; a failed
// step is logged and the next one still runs, so a partial failure always
// leaves as much recorded as possible and nothing is ever rolled back.
//
// Calling it twice with the same terminal status re-applies the same values.
// Competing duplicate transactions for the same (serviceType, code) converge:
// whichever resolves first force-closes the rest.
func (d Datasource) ApplyOutcome(ctx context.Context, orderID, serviceType, code, status string, amount *float64, notes string, details map[string]interface{}) (bool, error) {
	orderID = strings.TrimSpace(orderID)
	code = strings.TrimSpace(code)

	result := model.NewResult(code, status, amount, notes, details)
	resultJSON, err := result.ToJSON()
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to serialize result data", err)
	}

	var amountStr *string
	if amount != nil {
		s := model.FormatAmount(*amount)
		amountStr = &s
	}

	// 1) Update the order by id with no status precondition, so the final
	// write lands even after a partial failure left it in an odd state.
	orderUpdated := false
	res, err := d.Conn.ExecContext(ctx, `
		UPDATE orders
		SET status = $1,
		    result_data = $2,
		    updated_at = NOW()
		WHERE id = $3
	`, model.OrderStatusFor(status), resultJSON, orderID)
	if err != nil {
		logrus.Warnf("order update failed for %s: %v", orderID, err)
	} else if n, _ := res.RowsAffected(); n > 0 {
		orderUpdated = true
	} else {
		logrus.Warnf("no order row matched id %s", orderID)
	}

	// 2) Update the matching transaction, preferring (order_id, code).
	updatedTxnIDs, err := d.updateTransactionRows(ctx, `
		UPDATE service_transactions
		SET status = $1,
		    amount = COALESCE($2, amount),
		    notes = $3,
		    processing_data = $4,
		    updated_at = NOW()
		WHERE order_id = $5
		  AND code = $6
		  AND status IN ('pending','processing')
		RETURNING id
	`, status, amountStr, notes, resultJSON, orderID, code)
	if err != nil {
		logrus.Warnf("transaction update failed for order %s code %s: %v", orderID, code, err)
	}

	// 3) Fallback: the supplied order id may be stale. Resolve the latest
	// pending/processing transaction for the code regardless of order.
	if len(updatedTxnIDs) == 0 {
		updatedTxnIDs = d.applyOutcomeFallback(ctx, serviceType, code, status, amountStr, notes, resultJSON)
	}

	// 4) Dedup pass: force-close every other in-flight transaction for the
	// same (serviceType, code) so duplicate intake rows stop being retried.
	d.closeDuplicates(ctx, serviceType, orderID, code, updatedTxnIDs)

	// 5) Post-condition check, diagnostics only.
	if leftover, err := d.PendingOrderIDs(ctx, serviceType, code); err == nil && len(leftover) > 0 {
		logrus.Warnf("code %s still has pending/processing transactions after update: %s", code, strings.Join(leftover, ", "))
	}

	// 6) Downstream completion notification, advisory only.
	if status == model.StatusSuccess && d.OnOrderCompleted != nil {
		if err := d.OnOrderCompleted(orderID, code); err != nil {
			logrus.Warnf("completion notification failed for order %s: %v", orderID, err)
		}
	}

	return orderUpdated || len(updatedTxnIDs) > 0, nil
}

func (d Datasource) updateTransactionRows(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	rows, err := d.Conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (d Datasource) applyOutcomeFallback(ctx context.Context, serviceType, code, status string, amountStr *string, notes string, resultJSON []byte) []string {
	var txnID string
	err := d.Conn.QueryRowContext(ctx, `
		SELECT st.id
		FROM service_transactions st
		JOIN orders o ON o.id = st.order_id
		WHERE st.code = $1
		  AND o.service_type = $2
		  AND st.status IN ('pending','processing')
		ORDER BY st.created_at DESC
		LIMIT 1
	`, code, serviceType).Scan(&txnID)
	if err != nil {
		if err != sql.ErrNoRows {
			logrus.Warnf("fallback lookup failed for code %s: %v", code, err)
		} else {
			logrus.Warnf("no pending/processing transaction left for code %s", code)
		}
		return nil
	}

	ids, err := d.updateTransactionRows(ctx, `
		UPDATE service_transactions
		SET status = $1,
		    amount = COALESCE($2, amount),
		    notes = $3,
		    processing_data = $4,
		    updated_at = NOW()
		WHERE id = $5
		RETURNING id
	`, status, amountStr, notes, resultJSON, txnID)
	if err != nil {
		logrus.Warnf("fallback transaction update failed for code %s: %v", code, err)
		return nil
	}
	return ids
}

func (d Datasource) closeDuplicates(ctx context.Context, serviceType, orderID, code string, updatedTxnIDs []string) {
	var closed []string
	var err error
	if len(updatedTxnIDs) > 0 {
		closed, err = d.updateTransactionRows(ctx, `
			UPDATE service_transactions st
			SET status = 'failed',
			    notes = CASE WHEN st.notes IS NULL OR st.notes = '' THEN $1 ELSE st.notes || ' | ' || $1 END,
			    updated_at = NOW()
			FROM orders o
			WHERE st.order_id = o.id
			  AND st.code = $2
			  AND o.service_type = $3
			  AND st.id <> ALL($4)
			  AND st.status IN ('pending','processing')
			RETURNING st.id
		`, model.AutoClosedNote, code, serviceType, pq.Array(updatedTxnIDs))
	} else {
		// Nothing was updated this round, exclude by the supplied order
		// instead so a live duplicate under it is not closed under its feet.
		closed, err = d.updateTransactionRows(ctx, `
			UPDATE service_transactions st
			SET status = 'failed',
			    notes = CASE WHEN st.notes IS NULL OR st.notes = '' THEN $1 ELSE st.notes || ' | ' || $1 END,
			    updated_at = NOW()
			FROM orders o
			WHERE st.order_id = o.id
			  AND st.code = $2
			  AND o.service_type = $3
			  AND st.order_id <> $4
			  AND st.status IN ('pending','processing')
			RETURNING st.id
		`, model.AutoClosedNote, code, serviceType, orderID)
	}
	if err != nil {
		logrus.Warnf("dedup pass failed for code %s: %v", code, err)
		return
	}
	if len(closed) > 0 {
		logrus.Infof("closed %d duplicate transaction(s) for code %s", len(closed), code)
	}
}

// PendingOrderIDs lists the orders still holding a pending or processing
// transaction for code, most recent first.
func (d Datasource) PendingOrderIDs(ctx context.Context, serviceType, code string) ([]string, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT st.order_id
		FROM service_transactions st
		JOIN orders o ON o.id = st.order_id
		WHERE st.code = $1
		  AND o.service_type = $2
		  AND st.status IN ('pending','processing')
		ORDER BY st.created_at DESC
	`, code, serviceType)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrUnavailable, fmt.Sprintf("Failed to list pending orders for code '%s'", code), err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan pending order id", err)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over pending orders", err)
	}
	return ids, nil
}

// CodeForOrder returns the latest code recorded against an order.
func (d Datasource) CodeForOrder(ctx context.Context, orderID string) (string, error) {
	var code string
	err := d.Conn.QueryRowContext(ctx, `
		SELECT code
		FROM service_transactions
		WHERE order_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, orderID).Scan(&code)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("No transaction found for order '%s'", orderID), err)
		}
		return "", apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve code for order", err)
	}
	return code, nil
}
