package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTxFromContextWithoutTransaction(t *testing.T) {
	tx, ok := TxFromContext(context.Background())
	assert.False(t, ok)
	assert.Nil(t, tx)
}

func TestHealthCheck(t *testing.T) {
	db := SetupTestDB(t)
	defer TeardownTestDB(t, db)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	assert.NoError(t, db.HealthCheck(ctx))
}

func countSnapshots(t *testing.T, ctx context.Context, db *DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.Querier(ctx).QueryRow(ctx, "SELECT count(*) FROM "+SnapshotsTable).Scan(&n))
	return n
}

const insertFixture = `
	INSERT INTO dashboard_snapshots (id, computed_at, fingerprint, event_count, total_predicted_products,
	                                 estimated_revenue, low_stock_count, high_stock_count, payload)
	VALUES (gen_random_uuid(), now(), 'fp', 0, 0, 0, 0, 0, '{}')
`

func TestWithTransactionCommitAndRollback(t *testing.T) {
	db := SetupTestDB(t)
	defer TeardownTestDB(t, db)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errBoom := errors.New("boom")
	err := db.WithTransaction(ctx, func(ctx context.Context) error {
		_, ok := TxFromContext(ctx)
		require.True(t, ok)
		if _, err := db.Querier(ctx).Exec(ctx, insertFixture); err != nil {
			return err
		}
		return errBoom
	})
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 0, countSnapshots(t, ctx, db))

	err = db.WithTransaction(ctx, func(ctx context.Context) error {
		_, err := db.Querier(ctx).Exec(ctx, insertFixture)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, countSnapshots(t, ctx, db))
}

func TestWithTransactionJoinsOuterTransaction(t *testing.T) {
	db := SetupTestDB(t)
	defer TeardownTestDB(t, db)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errBoom := errors.New("boom")
	err := db.WithTransaction(ctx, func(outer context.Context) error {
		outerTx, _ := TxFromContext(outer)
		innerErr := db.WithTransaction(outer, func(inner context.Context) error {
			innerTx, _ := TxFromContext(inner)
			assert.Same(t, outerTx, innerTx)
			_, err := db.Querier(inner).Exec(inner, insertFixture)
			return err
		})
		require.NoError(t, innerErr)
		return errBoom
	})
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 0, countSnapshots(t, ctx, db))
}
