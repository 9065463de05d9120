package ingest

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mkessler-dev/pantrysync/internal/catalog"
	"github.com/mkessler-dev/pantrysync/internal/conf"
	"github.com/mkessler-dev/pantrysync/internal/logging"
	"github.com/mkessler-dev/pantrysync/internal/pricefeed"
)

// Command creates the ingest subcommand, which pulls the daily price
// feed exports into the local catalog.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Update the local product catalog from the daily price exports",
		Long:  "Download and import all price feed export days since the last observed date, stopping after a configurable run of missing days.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, settings)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		cobra.CheckErr(fmt.Errorf("error setting up flags: %w", err))
	}

	return cmd
}

func runIngest(cmd *cobra.Command, settings *conf.Settings) error {
	logger := logging.ForService("ingest")

	store := catalog.New(settings)
	if err := store.Open(); err != nil {
		return fmt.Errorf("opening catalog store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close catalog store", "error", err)
		}
	}()

	source := pricefeed.NewHTTPSource(settings.PriceFeed.BaseURL, settings.PriceFeed.Region)
	pipeline := pricefeed.NewPipeline(store, source, settings)

	from, err := pipeline.ResumeStart()
	if err != nil {
		return err
	}
	to := time.Now()

	logger.Info("Starting catalog ingestion",
		"from", from.Format("2006-01-02"),
		"to", to.Format("2006-01-02"),
		"region", settings.PriceFeed.Region)

	stats, err := pipeline.Run(cmd.Context(), from, to)
	if err != nil {
		return err
	}

	logger.Info("Catalog ingestion finished",
		"days_imported", stats.DaysImported,
		"days_missing", stats.DaysMissing,
		"rows_upserted", stats.RowsUpserted,
		"rows_skipped", stats.RowsSkipped,
		"halted", stats.Halted)
	return nil
}

// setupFlags configures flags specific to the ingest command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.PriceFeed.Region, "region", viper.GetString("pricefeed.region"), "Price feed region slug")
	cmd.Flags().StringVar(&settings.PriceFeed.StartDate, "startdate", viper.GetString("pricefeed.startdate"), "First export date for an empty catalog (YYYY-MM-DD)")
	cmd.Flags().IntVar(&settings.PriceFeed.MaxMissingDays, "maxmissingdays", viper.GetInt("pricefeed.maxmissingdays"), "Consecutive missing days before the run halts")
	cmd.Flags().StringVar(&settings.PriceFeed.CacheDir, "cachedir", viper.GetString("pricefeed.cachedir"), "Directory for downloaded export files")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}
