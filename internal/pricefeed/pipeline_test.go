package pricefeed

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkessler-dev/pantrysync/internal/catalog"
	"github.com/mkessler-dev/pantrysync/internal/conf"
)

// fakeSource serves canned exports keyed by date string and records
// which days were fetched.
type fakeSource struct {
	files   map[string][]byte
	fetched []string
}

func (f *fakeSource) Filename(date time.Time) string {
	return date.Format("2006-01-02") + "_test.csv"
}

func (f *fakeSource) FetchDay(_ context.Context, date time.Time) ([]byte, bool, error) {
	key := date.Format("2006-01-02")
	f.fetched = append(f.fetched, key)
	data, ok := f.files[key]
	return data, ok, nil
}

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return d
}

func exportFor(ean, name, price string) []byte {
	return []byte("name,brand,ean,price,grammage,category,sale,image\n" +
		name + ",Marke," + ean + "," + price + ",,Testwaren,FALSE,\n")
}

func newPipelineFixture(t *testing.T, source Source) (*Pipeline, catalog.Interface, *conf.Settings) {
	t.Helper()

	settings := &conf.Settings{}
	settings.Catalog.SQLite.Enabled = true
	settings.Catalog.SQLite.Path = filepath.Join(t.TempDir(), "catalog.db")
	settings.PriceFeed.StartDate = "2025-06-15"
	settings.PriceFeed.MaxMissingDays = 10
	settings.PriceFeed.CacheDir = t.TempDir()

	store := catalog.New(settings)
	require.NoError(t, store.Open())
	t.Cleanup(func() {
		assert.NoError(t, store.Close())
	})

	return NewPipeline(store, source, settings), store, settings
}

func TestRun_ImportsAvailableDays(t *testing.T) {
	source := &fakeSource{files: map[string][]byte{
		"2025-06-15": exportFor("4000540001234", "Butter", "\"1,99\""),
		"2025-06-16": exportFor("4000540001234", "Butter", "\"2,29\""),
	}}
	pipeline, store, _ := newPipelineFixture(t, source)

	stats, err := pipeline.Run(context.Background(), day(t, "2025-06-15"), day(t, "2025-06-16"))
	require.NoError(t, err)
	assert.Equal(t, 2, stats.DaysImported)
	assert.Equal(t, 2, stats.RowsUpserted)
	assert.False(t, stats.Halted)

	// Second day's observation wins for price and date only.
	products, err := store.AllProducts()
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.InDelta(t, 2.29, products[0].Price, 1e-9)
	assert.Equal(t, "2025-06-16", products[0].ObservedDate)
}

func TestRun_ToleratesNineMisses(t *testing.T) {
	files := map[string][]byte{
		// Nine missing days between the 15th and the 25th.
		"2025-06-15": exportFor("1111111111111", "Milch", "\"1,19\""),
		"2025-06-25": exportFor("2222222222222", "Brot", "\"2,49\""),
	}
	pipeline, store, _ := newPipelineFixture(t, &fakeSource{files: files})

	stats, err := pipeline.Run(context.Background(), day(t, "2025-06-15"), day(t, "2025-06-25"))
	require.NoError(t, err)
	assert.Equal(t, 2, stats.DaysImported)
	assert.Equal(t, 9, stats.DaysMissing)
	assert.False(t, stats.Halted, "nine consecutive misses stay under the bound")

	products, err := store.AllProducts()
	require.NoError(t, err)
	assert.Len(t, products, 2, "the day after the gap is still imported")
}

func TestRun_HaltsAtMissBound(t *testing.T) {
	files := map[string][]byte{
		"2025-06-15": exportFor("1111111111111", "Milch", "\"1,19\""),
		// Ten missing days, then one that must never be reached.
		"2025-06-26": exportFor("2222222222222", "Brot", "\"2,49\""),
	}
	source := &fakeSource{files: files}
	pipeline, store, _ := newPipelineFixture(t, source)

	stats, err := pipeline.Run(context.Background(), day(t, "2025-06-15"), day(t, "2025-06-26"))
	require.NoError(t, err, "halting at the bound is not an error")
	assert.True(t, stats.Halted)
	assert.Equal(t, 1, stats.DaysImported)
	assert.Equal(t, 10, stats.DaysMissing)
	assert.NotContains(t, source.fetched, "2025-06-26")

	products, err := store.AllProducts()
	require.NoError(t, err)
	assert.Len(t, products, 1)
}

func TestRun_UsesCachedExportWithoutFetch(t *testing.T) {
	source := &fakeSource{files: map[string][]byte{}}
	pipeline, store, settings := newPipelineFixture(t, source)

	cachePath := filepath.Join(settings.PriceFeed.CacheDir, "2025-06-15_test.csv")
	require.NoError(t, os.WriteFile(cachePath, exportFor("4000540001234", "Butter", "\"1,99\""), 0o644))

	stats, err := pipeline.Run(context.Background(), day(t, "2025-06-15"), day(t, "2025-06-15"))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.DaysImported)
	assert.Empty(t, source.fetched, "cached day must not be fetched")

	// Pre-existing cache files are kept.
	_, err = os.Stat(cachePath)
	assert.NoError(t, err)

	products, err := store.AllProducts()
	require.NoError(t, err)
	assert.Len(t, products, 1)
}

func TestRun_RemovesDownloadedExportAfterImport(t *testing.T) {
	source := &fakeSource{files: map[string][]byte{
		"2025-06-15": exportFor("4000540001234", "Butter", "\"1,99\""),
	}}
	pipeline, _, settings := newPipelineFixture(t, source)

	_, err := pipeline.Run(context.Background(), day(t, "2025-06-15"), day(t, "2025-06-15"))
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(settings.PriceFeed.CacheDir, "2025-06-15_test.csv"))
	assert.True(t, os.IsNotExist(err), "downloaded exports are removed after import")
}

func TestResumeStart_EmptyStore(t *testing.T) {
	pipeline, _, _ := newPipelineFixture(t, &fakeSource{})

	start, err := pipeline.ResumeStart()
	require.NoError(t, err)
	assert.Equal(t, "2025-06-15", start.Format("2006-01-02"))
}

func TestResumeStart_ResumesAfterLatestObservation(t *testing.T) {
	pipeline, store, _ := newPipelineFixture(t, &fakeSource{})
	require.NoError(t, store.UpsertObserved(&catalog.Product{
		EAN: "1111111111111", Name: "Milch", ObservedDate: "2025-07-01",
	}))

	start, err := pipeline.ResumeStart()
	require.NoError(t, err)
	assert.Equal(t, "2025-07-02", start.Format("2006-01-02"))
}
