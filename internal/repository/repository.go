// Package repository persists dashboard snapshots in PostgreSQL.
package repository

import (
	"fmt"

	"github.com/yourusername/stock-insights/internal/database"
)

// Repositories holds all repository implementations
type Repositories struct {
	Snapshot SnapshotRepository
}

// NewRepositories creates and returns all repository implementations
func NewRepositories(db *database.DB) (*Repositories, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	return &Repositories{
		Snapshot: NewPostgresSnapshotRepository(db),
	}, nil
}
