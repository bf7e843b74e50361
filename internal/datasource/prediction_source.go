package datasource

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/stock-insights/internal/config"
	"github.com/yourusername/stock-insights/internal/logger"
	"github.com/yourusername/stock-insights/internal/models"
)

const (
	backendSourceName = "backend"
	maxBodyBytes      = 32 << 20
	defaultMaxPages   = 50
)

// HTTPSourceConfig configures the backend predictions endpoint
type HTTPSourceConfig struct {
	URL      string
	APIToken string
	MaxPages int
}

// HTTPPredictionSource fetches predictions from the backend REST API, following
// paginated responses until the last page.
type HTTPPredictionSource struct {
	httpClient *RateLimitedHTTPClient
	cfg        HTTPSourceConfig
	logger     *logrus.Entry
}

// predictionPage is a paginated collection: {"count", "next", "previous", "results"}
type predictionPage struct {
	Count    *int              `json:"count"`
	Next     *string           `json:"next"`
	Previous *string           `json:"previous"`
	Results  []json.RawMessage `json:"results"`
}

// NewHTTPPredictionSource creates a backend source using an existing HTTP client
func NewHTTPPredictionSource(httpClient *RateLimitedHTTPClient, cfg HTTPSourceConfig, log *logrus.Logger) *HTTPPredictionSource {
	if log == nil {
		log = logger.NewDiscardLogger()
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = defaultMaxPages
	}
	return &HTTPPredictionSource{
		httpClient: httpClient,
		cfg:        cfg,
		logger:     log.WithField("component", "prediction_source"),
	}
}

// NewHTTPPredictionSourceFromConfig builds the HTTP client and source from backend configuration
func NewHTTPPredictionSourceFromConfig(cfg *config.BackendConfig, log *logrus.Logger) *HTTPPredictionSource {
	clientCfg := DefaultHTTPClientConfig()
	clientCfg.Timeout = cfg.Timeout()
	clientCfg.MaxRetries = cfg.MaxRetries
	clientCfg.RateLimit = cfg.RateLimit
	clientCfg.CircuitBreakerMax = cfg.CircuitBreakerMax

	return NewHTTPPredictionSource(
		NewRateLimitedHTTPClient(clientCfg, log),
		HTTPSourceConfig{
			URL:      cfg.PredictionsURL(),
			APIToken: cfg.APIToken,
			MaxPages: cfg.MaxPages,
		},
		log,
	)
}

// Name returns the data source name
func (s *HTTPPredictionSource) Name() string {
	return backendSourceName
}

// FetchPredictions retrieves every page of predictions
func (s *HTTPPredictionSource) FetchPredictions(ctx context.Context) ([]models.PredictionEvent, error) {
	pageURL := s.cfg.URL
	seen := make(map[string]bool)
	var events []models.PredictionEvent

	for page := 1; pageURL != ""; page++ {
		if page > s.cfg.MaxPages {
			s.logger.WithFields(logrus.Fields{
				"max_pages": s.cfg.MaxPages,
				"next":      pageURL,
			}).Warn("Page limit reached, returning partial prediction list")
			break
		}
		if seen[pageURL] {
			s.logger.WithField("url", pageURL).Warn("Pagination loop detected")
			break
		}
		seen[pageURL] = true

		body, err := s.fetchPage(ctx, pageURL)
		if err != nil {
			return nil, err
		}

		pageEvents, next, skipped, err := decodePredictions(body)
		if err != nil {
			return nil, NewDataSourceError(backendSourceName, ErrCodeInvalidData, "failed to parse response", err)
		}
		if skipped > 0 {
			s.logger.WithFields(logrus.Fields{"page": page, "skipped": skipped}).Warn("Skipped malformed prediction entries")
		}
		events = append(events, pageEvents...)

		pageURL, err = resolveNext(pageURL, next)
		if err != nil {
			return nil, NewDataSourceError(backendSourceName, ErrCodeInvalidData, "invalid next link", err)
		}
	}

	if events == nil {
		events = []models.PredictionEvent{}
	}
	s.logger.WithField("events", len(events)).Debug("Fetched predictions")
	return events, nil
}

// Close releases the source's idle backend connections
func (s *HTTPPredictionSource) Close() error {
	return s.httpClient.Close()
}

func (s *HTTPPredictionSource) fetchPage(ctx context.Context, pageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, NewDataSourceError(backendSourceName, ErrCodeNetworkError, "failed to create request", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.cfg.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIToken)
	}

	resp, err := s.httpClient.Do(ctx, req)
	if err != nil {
		return nil, NewDataSourceError(backendSourceName, ErrCodeNetworkError, "failed to fetch predictions", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		drain(resp.Body)
		return nil, statusError(resp.StatusCode, snippet)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, NewDataSourceError(backendSourceName, ErrCodeNetworkError, "failed to read response", err)
	}
	return body, nil
}

func statusError(status int, body []byte) DataSourceError {
	code := ErrCodeUnknown
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		code = ErrCodeAuthenticationFailed
	case status == http.StatusNotFound:
		code = ErrCodeNotFound
	case status == http.StatusTooManyRequests:
		code = ErrCodeRateLimitExceeded
	case status >= 500:
		code = ErrCodeServerError
	}

	err := NewDataSourceError(backendSourceName, code, fmt.Sprintf("unexpected status %d: %s", status, bytes.TrimSpace(body)), nil)
	err.StatusCode = status
	return err
}

// decodePredictions accepts a bare array of events or a paginated object. Entries that
// are not JSON objects are skipped and counted.
func decodePredictions(body []byte) (events []models.PredictionEvent, next string, skipped int, err error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, "", 0, fmt.Errorf("empty response body")
	}

	var raw []json.RawMessage
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil, "", 0, err
		}
	case '{':
		var page predictionPage
		if err := json.Unmarshal(trimmed, &page); err != nil {
			return nil, "", 0, err
		}
		if page.Results == nil {
			return nil, "", 0, fmt.Errorf("paginated response has no results array")
		}
		raw = page.Results
		if page.Next != nil {
			next = *page.Next
		}
	default:
		return nil, "", 0, fmt.Errorf("expected a JSON array or object")
	}

	events = make([]models.PredictionEvent, 0, len(raw))
	for _, item := range raw {
		var ev models.PredictionEvent
		if err := json.Unmarshal(item, &ev); err != nil || bytes.Equal(bytes.TrimSpace(item), []byte("null")) {
			skipped++
			continue
		}
		events = append(events, ev)
	}
	return events, next, skipped, nil
}

// resolveNext turns a next link, absolute or relative, into an absolute URL
func resolveNext(current, next string) (string, error) {
	if next == "" {
		return "", nil
	}
	base, err := url.Parse(current)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(next)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}
