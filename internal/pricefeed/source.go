// Package pricefeed ingests daily retail price exports into the
// reference catalog store.
package pricefeed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mkessler-dev/pantrysync/internal/errors"
	"github.com/mkessler-dev/pantrysync/internal/logging"
)

// RequestTimeout bounds a single export download.
const RequestTimeout = 10 * time.Second

// Source provides one export file per calendar day. A missing day is a
// normal condition reported via the found flag, not an error.
type Source interface {
	FetchDay(ctx context.Context, date time.Time) (data []byte, found bool, err error)
	Filename(date time.Time) string
}

// HTTPSource downloads daily CSV exports from a static file host.
type HTTPSource struct {
	baseURL string
	region  string
	client  *http.Client
	logger  *slog.Logger
}

// NewHTTPSource creates an export source for the given base URL and
// region suffix.
func NewHTTPSource(baseURL, region string) *HTTPSource {
	return &HTTPSource{
		baseURL: baseURL,
		region:  region,
		client:  &http.Client{Timeout: RequestTimeout},
		logger:  logging.ForService("pricefeed"),
	}
}

// Filename returns the export filename for a calendar day.
func (s *HTTPSource) Filename(date time.Time) string {
	return fmt.Sprintf("%s_%s.csv", date.Format("2006-01-02"), s.region)
}

// FetchDay downloads the export for one day. A 404 or an empty body
// means the day has no export yet.
func (s *HTTPSource) FetchDay(ctx context.Context, date time.Time) ([]byte, bool, error) {
	url := s.baseURL + s.Filename(date)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, false, errors.Newf("creating export request: %w", err).
			Category(errors.CategoryNetwork).
			Context("url", url).
			Component("pricefeed").
			Build()
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, false, errors.Newf("fetching export: %w", err).
			Category(errors.CategoryNetwork).
			Context("url", url).
			Component("pricefeed").
			Build()
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		s.logger.Debug("no export for day", "date", date.Format("2006-01-02"))
		return nil, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, errors.Newf("export source returned status %d", resp.StatusCode).
			Category(errors.CategoryHTTP).
			Context("url", url).
			Context("status_code", resp.StatusCode).
			Component("pricefeed").
			Build()
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, errors.Newf("reading export body: %w", err).
			Category(errors.CategoryNetwork).
			Context("url", url).
			Component("pricefeed").
			Build()
	}
	if len(body) == 0 {
		return nil, false, nil
	}

	return body, true, nil
}
