package pricefeed

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/mkessler-dev/pantrysync/internal/catalog"
	"github.com/mkessler-dev/pantrysync/internal/conf"
	"github.com/mkessler-dev/pantrysync/internal/errors"
	"github.com/mkessler-dev/pantrysync/internal/logging"
)

const dateLayout = "2006-01-02"

// Stats summarizes one ingestion run.
type Stats struct {
	DaysImported int
	DaysMissing  int
	RowsUpserted int
	RowsSkipped  int
	Halted       bool // true when the consecutive-miss bound ended the run
}

// Pipeline walks a date range, fetches one export per day and upserts
// its rows into the catalog store. A long gap of missing days is
// treated as "no more data available" rather than an error.
type Pipeline struct {
	store          catalog.Interface
	source         Source
	cacheDir       string
	maxMissingDays int
	epochStart     string
	logger         *slog.Logger
}

// NewPipeline creates an ingestion pipeline over the given store.
func NewPipeline(store catalog.Interface, source Source, settings *conf.Settings) *Pipeline {
	return &Pipeline{
		store:          store,
		source:         source,
		cacheDir:       settings.PriceFeed.CacheDir,
		maxMissingDays: settings.PriceFeed.MaxMissingDays,
		epochStart:     settings.PriceFeed.StartDate,
		logger:         logging.ForService("pricefeed"),
	}
}

// ResumeStart returns the first day the pipeline should ingest: the day
// after the most recent observed date in the store, or the configured
// epoch start when the store is empty.
func (p *Pipeline) ResumeStart() (time.Time, error) {
	latest, err := p.store.LatestObservedDate()
	if err != nil {
		return time.Time{}, errors.New(err).
			Category(errors.CategoryDatabase).
			Component("pricefeed").
			Build()
	}
	if latest == "" {
		return time.Parse(dateLayout, p.epochStart)
	}
	last, err := time.Parse(dateLayout, latest)
	if err != nil {
		// A corrupt date in the store should not strand the pipeline.
		p.logger.Warn("unparseable observed date in store, falling back to epoch start",
			"observed_date", latest)
		return time.Parse(dateLayout, p.epochStart)
	}
	return last.AddDate(0, 0, 1), nil
}

// Run ingests every calendar day from 'from' through 'to' inclusive.
// Already cached days are loaded without a fetch; missing remote days
// increment a consecutive-miss counter that halts the run at the bound
// without error. Any successfully loaded day resets the counter.
func (p *Pipeline) Run(ctx context.Context, from, to time.Time) (Stats, error) {
	var stats Stats
	missing := 0

	if p.cacheDir != "" {
		if err := os.MkdirAll(p.cacheDir, 0o755); err != nil {
			return stats, errors.Newf("creating export cache dir: %w", err).
				Category(errors.CategoryFileIO).
				Context("dir", p.cacheDir).
				Component("pricefeed").
				Build()
		}
	}

	for date := from; !date.After(to); date = date.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		dateStr := date.Format(dateLayout)
		cachePath := filepath.Join(p.cacheDir, p.source.Filename(date))

		data, cached, err := p.loadOrFetch(ctx, date, cachePath)
		if err != nil {
			// Transient source failure: treat the day as missing and
			// keep walking, the miss bound limits how far we probe.
			p.logger.Warn("fetching export failed", "date", dateStr, "error", err)
			data = nil
		}
		if data == nil {
			missing++
			stats.DaysMissing++
			if missing >= p.maxMissingDays {
				p.logger.Info("halting ingestion, consecutive missing days reached bound",
					"bound", p.maxMissingDays, "date", dateStr)
				stats.Halted = true
				return stats, nil
			}
			continue
		}

		products, skipped, err := parseExport(bytes.NewReader(data), dateStr)
		if err != nil {
			p.logger.Warn("unreadable export, skipping day", "date", dateStr, "error", err)
			missing++
			stats.DaysMissing++
			if missing >= p.maxMissingDays {
				stats.Halted = true
				return stats, nil
			}
			continue
		}

		upserted := 0
		for i := range products {
			if err := p.store.UpsertObserved(&products[i]); err != nil {
				p.logger.Warn("upsert failed, skipping row",
					"ean", products[i].EAN, "name", products[i].Name, "date", dateStr, "error", err)
				skipped++
				continue
			}
			upserted++
		}

		// Keep pre-existing cache files, remove our own download after
		// a successful import.
		if !cached {
			if err := os.Remove(cachePath); err != nil {
				p.logger.Debug("removing downloaded export failed", "path", cachePath, "error", err)
			}
		}

		missing = 0
		stats.DaysImported++
		stats.RowsUpserted += upserted
		stats.RowsSkipped += skipped
		p.logger.Info("export imported",
			"date", dateStr, "rows", upserted, "skipped", skipped)
	}

	return stats, nil
}

// loadOrFetch returns the day's export body, preferring the local cache
// file. The cached flag reports whether the data came from a
// pre-existing file.
func (p *Pipeline) loadOrFetch(ctx context.Context, date time.Time, cachePath string) (data []byte, cached bool, err error) {
	if body, err := os.ReadFile(cachePath); err == nil && len(body) > 0 {
		p.logger.Debug("using cached export", "path", cachePath)
		return body, true, nil
	}

	body, found, err := p.source.FetchDay(ctx, date)
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}

	if err := os.WriteFile(cachePath, body, 0o644); err != nil {
		// Import can proceed from memory, only the cache is lost.
		p.logger.Warn("writing export cache file failed", "path", cachePath, "error", err)
		return body, true, nil
	}
	return body, false, nil
}
