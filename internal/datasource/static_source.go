package datasource

import (
	"context"
	"fmt"
	"os"

	"github.com/yourusername/stock-insights/internal/models"
)

const staticSourceName = "static"

// StaticSource serves a fixed list of events, or the contents of a JSON file read on
// every fetch.
type StaticSource struct {
	events []models.PredictionEvent
	path   string
}

// NewStaticSource returns a source that always yields a copy of events
func NewStaticSource(events []models.PredictionEvent) *StaticSource {
	return &StaticSource{events: events}
}

// NewFileSource returns a source reading a JSON array or paginated object from path
func NewFileSource(path string) *StaticSource {
	return &StaticSource{path: path}
}

// Name returns the data source name
func (s *StaticSource) Name() string {
	if s.path != "" {
		return "file:" + s.path
	}
	return staticSourceName
}

// FetchPredictions returns the configured events
func (s *StaticSource) FetchPredictions(ctx context.Context) ([]models.PredictionEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if s.path == "" {
		out := make([]models.PredictionEvent, len(s.events))
		copy(out, s.events)
		return out, nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, NewDataSourceError(s.Name(), ErrCodeNotFound, "failed to read events file", err)
	}

	events, _, _, err := decodePredictions(data)
	if err != nil {
		return nil, NewDataSourceError(s.Name(), ErrCodeInvalidData, fmt.Sprintf("failed to parse %s", s.path), err)
	}
	return events, nil
}
