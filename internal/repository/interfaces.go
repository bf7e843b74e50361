package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/yourusername/stock-insights/internal/models"
)

// SnapshotRepository defines the interface for dashboard snapshot history
type SnapshotRepository interface {
	Insert(ctx context.Context, snapshot *models.DashboardSnapshot) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.DashboardSnapshot, error)
	GetLatest(ctx context.Context) (*models.DashboardSnapshot, error)
	List(ctx context.Context, limit int) ([]models.SnapshotSummary, error)
}
