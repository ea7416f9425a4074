package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/webshot/internal/capture"
)

func strPtr(s string) *string { return &s }

func testBatch() capture.Batch {
	started := time.Unix(1700000000, 0).UTC()
	return capture.Batch{
		ID:         "0192f0c4-0000-7000-8000-000000000001",
		StartedAt:  started,
		FinishedAt: started.Add(3 * time.Second),
		Results: []capture.Result{
			{URL: "example.com", Status: capture.StatusSuccess, ImagePath: "/static/screenshots/example.com_x.png"},
			{URL: "", Status: capture.StatusError, Message: "Invalid or empty URL"},
		},
	}
}

func TestRecordBatchInsertsRowsInTransaction(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewResultStoreWithPool(mock, "shots")
	require.NoError(t, err)
	batch := testBatch()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO shots").
		WithArgs(batch.ID, 0, "example.com", "success", strPtr("/static/screenshots/example.com_x.png"), (*string)(nil), batch.StartedAt, batch.FinishedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO shots").
		WithArgs(batch.ID, 1, "", "error", (*string)(nil), strPtr("Invalid or empty URL"), batch.StartedAt, batch.FinishedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, store.RecordBatch(context.Background(), batch))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordBatchRollsBackOnInsertError(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewResultStoreWithPool(mock, "")
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO screenshot_results").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err = store.RecordBatch(context.Background(), testBatch())
	require.ErrorContains(t, err, "insert result 0")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordBatchSkipsEmptyAndRequiresID(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewResultStoreWithPool(mock, "")
	require.NoError(t, err)

	require.NoError(t, store.RecordBatch(context.Background(), capture.Batch{ID: "b"}))
	require.Error(t, store.RecordBatch(context.Background(), capture.Batch{}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchemaAndPing(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewResultStoreWithPool(mock, "")
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS screenshot_results").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectPing().WillReturnError(errors.New("refused"))

	require.NoError(t, store.EnsureSchema(context.Background()))
	require.ErrorContains(t, store.Ping(context.Background()), "ping postgres")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConstructorValidation(t *testing.T) {
	t.Parallel()

	_, err := NewResultStoreWithPool(nil, "")
	require.Error(t, err)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	_, err = NewResultStoreWithPool(mock, "bad-name;drop")
	require.Error(t, err)

	_, err = NewResultStore(context.Background(), ResultStoreConfig{})
	require.ErrorContains(t, err, "db.dsn is required")
}
