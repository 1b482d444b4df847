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
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/payrunhq/payrun/internal/apierror"
	"github.com/payrunhq/payrun/model"
)

func TestFetchPendingCodes_LatestFirstAndCapped(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer func() { _ = db.Close() }()

	ds := Datasource{Conn: db}

	rows := sqlmock.NewRows([]string{"code", "order_id"})
	for i := 0; i < 12; i++ {
		rows.AddRow(fmt.Sprintf("09870001%02d", i), fmt.Sprintf("ord_%02d", i))
	}
	mock.ExpectQuery("SELECT code, order_id FROM").
		WithArgs("tra_cuu_ftth").
		WillReturnRows(rows)

	batch, err := ds.FetchPendingCodes(context.Background(), "tra_cuu_ftth", "")
	assert.NoError(t, err)
	assert.Len(t, batch.Codes, 10)
	assert.Len(t, batch.CodeOrderMap, 12)
	assert.Equal(t, "ord_00", batch.LatestOrderID)
	assert.Equal(t, "0987000100", batch.Codes[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchPendingCodes_SubtypeFilter(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer func() { _ = db.Close() }()

	ds := Datasource{Conn: db}

	mock.ExpectQuery(`st.code LIKE '%\|%'`).
		WithArgs("nap_tien_da_mang").
		WillReturnRows(sqlmock.NewRows([]string{"code", "order_id"}).
			AddRow("0912000333|50000", "ord_a"))

	batch, err := ds.FetchPendingCodes(context.Background(), "nap_tien_da_mang", "prepaid")
	assert.NoError(t, err)
	assert.Equal(t, []string{"0912000333|50000"}, batch.Codes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchPendingCodes_StoreUnavailable(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer func() { _ = db.Close() }()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("SELECT code, order_id FROM").
		WithArgs("tra_cuu_ftth").
		WillReturnError(fmt.Errorf("connection refused"))

	batch, err := ds.FetchPendingCodes(context.Background(), "tra_cuu_ftth", "")
	assert.Nil(t, batch)
	assert.True(t, apierror.IsUnavailable(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindOrderID(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer func() { _ = db.Close() }()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("SELECT st.order_id").
		WithArgs("0987000111", "tra_cuu_ftth").
		WillReturnRows(sqlmock.NewRows([]string{"order_id"}).AddRow("ord_b"))

	orderID, err := ds.FindOrderID(context.Background(), "tra_cuu_ftth", "0987000111", "")
	assert.NoError(t, err)
	assert.Equal(t, "ord_b", orderID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindOrderID_NoneLeft(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer func() { _ = db.Close() }()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("SELECT st.order_id").
		WithArgs("0987000111", "tra_cuu_ftth").
		WillReturnRows(sqlmock.NewRows([]string{"order_id"}))

	orderID, err := ds.FindOrderID(context.Background(), "tra_cuu_ftth", "0987000111", "")
	assert.NoError(t, err)
	assert.Equal(t, "", orderID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func applyOutcomeResultJSON(t *testing.T, code, status string, amount *float64, notes string) []byte {
	t.Helper()
	blob, err := model.NewResult(code, status, amount, notes, nil).ToJSON()
	assert.NoError(t, err)
	return blob
}

func TestApplyOutcome_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer func() { _ = db.Close() }()

	notified := ""
	ds := Datasource{Conn: db, OnOrderCompleted: func(orderID, code string) error {
		notified = orderID
		return nil
	}}

	amount := 245000.0
	resultJSON := applyOutcomeResultJSON(t, "0987000111", "success", &amount, "FTTH lookup ok")

	mock.ExpectExec("UPDATE orders").
		WithArgs("completed", resultJSON, "ord_b").
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectQuery("UPDATE service_transactions").
		WithArgs("success", "245000", "FTTH lookup ok", resultJSON, "ord_b", "0987000111").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("txn_1"))

	mock.ExpectQuery("UPDATE service_transactions st").
		WithArgs(model.AutoClosedNote, "0987000111", "tra_cuu_ftth", pq.Array([]string{"txn_1"})).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("txn_0"))

	mock.ExpectQuery("SELECT st.order_id").
		WithArgs("0987000111", "tra_cuu_ftth").
		WillReturnRows(sqlmock.NewRows([]string{"order_id"}))

	applied, err := ds.ApplyOutcome(context.Background(), "ord_b", "tra_cuu_ftth", "0987000111", "success", &amount, "FTTH lookup ok", nil)
	assert.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, "ord_b", notified)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyOutcome_FallbackResolution(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer func() { _ = db.Close() }()

	ds := Datasource{Conn: db}

	resultJSON := applyOutcomeResultJSON(t, "0987000111", "failed", nil, "not found")

	mock.ExpectExec("UPDATE orders").
		WithArgs("failed", resultJSON, "ord_stale").
		WillReturnResult(sqlmock.NewResult(0, 1))

	// No transaction under the supplied order.
	mock.ExpectQuery("UPDATE service_transactions").
		WithArgs("failed", nil, "not found", resultJSON, "ord_stale", "0987000111").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	// Fallback resolves the latest pending transaction for the code.
	mock.ExpectQuery("SELECT st.id").
		WithArgs("0987000111", "tra_cuu_ftth").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("txn_7"))

	mock.ExpectQuery("UPDATE service_transactions").
		WithArgs("failed", nil, "not found", resultJSON, "txn_7").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("txn_7"))

	mock.ExpectQuery("UPDATE service_transactions st").
		WithArgs(model.AutoClosedNote, "0987000111", "tra_cuu_ftth", pq.Array([]string{"txn_7"})).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	mock.ExpectQuery("SELECT st.order_id").
		WithArgs("0987000111", "tra_cuu_ftth").
		WillReturnRows(sqlmock.NewRows([]string{"order_id"}))

	applied, err := ds.ApplyOutcome(context.Background(), "ord_stale", "tra_cuu_ftth", "0987000111", "failed", nil, "not found", nil)
	assert.NoError(t, err)
	assert.True(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyOutcome_RepeatedTerminalCallIsIdempotent(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer func() { _ = db.Close() }()

	ds := Datasource{Conn: db}

	amount := 50000.0
	resultJSON := applyOutcomeResultJSON(t, "0912000333", "success", &amount, "topup ok")

	// Second call after the transaction already resolved: the order write
	// re-applies the same values, no transaction matches, the fallback finds
	// nothing, and the dedup pass closes nothing.
	mock.ExpectExec("UPDATE orders").
		WithArgs("completed", resultJSON, "ord_b").
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectQuery("UPDATE service_transactions").
		WithArgs("success", "50000", "topup ok", resultJSON, "ord_b", "0912000333").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	mock.ExpectQuery("SELECT st.id").
		WithArgs("0912000333", "nap_tien_da_mang").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	mock.ExpectQuery("UPDATE service_transactions st").
		WithArgs(model.AutoClosedNote, "0912000333", "nap_tien_da_mang", "ord_b").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	mock.ExpectQuery("SELECT st.order_id").
		WithArgs("0912000333", "nap_tien_da_mang").
		WillReturnRows(sqlmock.NewRows([]string{"order_id"}))

	applied, err := ds.ApplyOutcome(context.Background(), "ord_b", "nap_tien_da_mang", "0912000333", "success", &amount, "topup ok", nil)
	assert.NoError(t, err)
	assert.True(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyOutcome_ProcessingMarker(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer func() { _ = db.Close() }()

	notified := false
	ds := Datasource{Conn: db, OnOrderCompleted: func(orderID, code string) error {
		notified = true
		return nil
	}}

	resultJSON := applyOutcomeResultJSON(t, "0987000111", "processing", nil, "")

	mock.ExpectExec("UPDATE orders").
		WithArgs("processing", resultJSON, "ord_b").
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectQuery("UPDATE service_transactions").
		WithArgs("processing", nil, "", resultJSON, "ord_b", "0987000111").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("txn_1"))

	mock.ExpectQuery("UPDATE service_transactions st").
		WithArgs(model.AutoClosedNote, "0987000111", "tra_cuu_ftth", pq.Array([]string{"txn_1"})).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	mock.ExpectQuery("SELECT st.order_id").
		WithArgs("0987000111", "tra_cuu_ftth").
		WillReturnRows(sqlmock.NewRows([]string{"order_id"}).AddRow("ord_b"))

	applied, err := ds.ApplyOutcome(context.Background(), "ord_b", "tra_cuu_ftth", "0987000111", "processing", nil, "", nil)
	assert.NoError(t, err)
	assert.True(t, applied)
	assert.False(t, notified, "processing marker must not trigger the completion notification")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPendingOrderIDs(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer func() { _ = db.Close() }()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("SELECT st.order_id").
		WithArgs("0987000111", "tra_cuu_ftth").
		WillReturnRows(sqlmock.NewRows([]string{"order_id"}).AddRow("ord_b").AddRow("ord_a"))

	ids, err := ds.PendingOrderIDs(context.Background(), "tra_cuu_ftth", "0987000111")
	assert.NoError(t, err)
	assert.Equal(t, []string{"ord_b", "ord_a"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCodeForOrder_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer func() { _ = db.Close() }()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("SELECT code").
		WithArgs("ord_missing").
		WillReturnRows(sqlmock.NewRows([]string{"code"}))

	_, err = ds.CodeForOrder(context.Background(), "ord_missing")
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
