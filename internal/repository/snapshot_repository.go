package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/yourusername/stock-insights/internal/database"
	"github.com/yourusername/stock-insights/internal/models"
)

const uniqueViolation = "23505"

// MaxListLimit caps a single history page
const MaxListLimit = 200

// PostgresSnapshotRepository implements SnapshotRepository for PostgreSQL
type PostgresSnapshotRepository struct {
	db *database.DB
}

// NewPostgresSnapshotRepository creates a new snapshot repository
func NewPostgresSnapshotRepository(db *database.DB) SnapshotRepository {
	return &PostgresSnapshotRepository{db: db}
}

// Insert stores a snapshot with its full aggregation result as JSONB
func (r *PostgresSnapshotRepository) Insert(ctx context.Context, snapshot *models.DashboardSnapshot) error {
	if snapshot == nil || snapshot.Result == nil {
		return fmt.Errorf("snapshot has no aggregation result")
	}

	payload, err := json.Marshal(snapshot.Result)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot payload: %w", err)
	}

	query := `
		INSERT INTO dashboard_snapshots (id, computed_at, fingerprint, event_count, total_predicted_products,
		                                 estimated_revenue, low_stock_count, high_stock_count, payload)
		VALUES ($1, $2, $3, $4, $5, $6::text::numeric, $7, $8, $9)
	`

	metrics := snapshot.Result.Metrics
	return r.db.WithTransaction(ctx, func(ctx context.Context) error {
		_, err := r.db.Querier(ctx).Exec(ctx, query,
			snapshot.ID, snapshot.ComputedAt, snapshot.Fingerprint, snapshot.EventCount,
			metrics.TotalPredictedProducts, metrics.EstimatedRevenue, metrics.LowStockCount, metrics.HighStockCount,
			payload,
		)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return models.ErrDuplicateKey
			}
			return fmt.Errorf("failed to insert snapshot: %w", err)
		}
		return nil
	})
}

// GetByID retrieves a snapshot with its full payload
func (r *PostgresSnapshotRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.DashboardSnapshot, error) {
	query := `
		SELECT id, computed_at, fingerprint, event_count, payload
		FROM dashboard_snapshots
		WHERE id = $1
	`
	return r.getOne(ctx, query, id)
}

// GetLatest retrieves the most recently computed snapshot
func (r *PostgresSnapshotRepository) GetLatest(ctx context.Context) (*models.DashboardSnapshot, error) {
	query := `
		SELECT id, computed_at, fingerprint, event_count, payload
		FROM dashboard_snapshots
		ORDER BY computed_at DESC
		LIMIT 1
	`
	return r.getOne(ctx, query)
}

func (r *PostgresSnapshotRepository) getOne(ctx context.Context, query string, args ...interface{}) (*models.DashboardSnapshot, error) {
	snapshot := &models.DashboardSnapshot{}
	var payload []byte

	err := r.db.Querier(ctx).QueryRow(ctx, query, args...).Scan(
		&snapshot.ID, &snapshot.ComputedAt, &snapshot.Fingerprint, &snapshot.EventCount, &payload,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	snapshot.Result = &models.AggregationResult{}
	if err := json.Unmarshal(payload, snapshot.Result); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot payload: %w", err)
	}
	snapshot.RefreshedAt = snapshot.ComputedAt

	return snapshot, nil
}

// List returns snapshot summaries, newest first
func (r *PostgresSnapshotRepository) List(ctx context.Context, limit int) ([]models.SnapshotSummary, error) {
	if limit <= 0 || limit > MaxListLimit {
		limit = MaxListLimit
	}

	query := `
		SELECT id, computed_at, fingerprint, event_count, total_predicted_products,
		       estimated_revenue::text, low_stock_count, high_stock_count
		FROM dashboard_snapshots
		ORDER BY computed_at DESC
		LIMIT $1
	`

	rows, err := r.db.Querier(ctx).Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	summaries := make([]models.SnapshotSummary, 0, limit)
	for rows.Next() {
		var s models.SnapshotSummary
		err := rows.Scan(
			&s.ID, &s.ComputedAt, &s.Fingerprint, &s.EventCount, &s.Metrics.TotalPredictedProducts,
			&s.Metrics.EstimatedRevenue, &s.Metrics.LowStockCount, &s.Metrics.HighStockCount,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		summaries = append(summaries, s)
	}

	return summaries, rows.Err()
}
