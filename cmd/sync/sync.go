package sync

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mkessler-dev/pantrysync/internal/catalog"
	"github.com/mkessler-dev/pantrysync/internal/conf"
	"github.com/mkessler-dev/pantrysync/internal/foodfacts"
	"github.com/mkessler-dev/pantrysync/internal/grocy"
	"github.com/mkessler-dev/pantrysync/internal/logging"
	"github.com/mkessler-dev/pantrysync/internal/receipt"
	"github.com/mkessler-dev/pantrysync/internal/sync"
)

// Command creates the sync subcommand, which pushes a purchase receipt
// into the inventory system.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		receiptIndex int
		listOnly     bool
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Send a purchase receipt to the inventory system",
		Long:  "Fetch a receipt from the retailer account and create or restock the matching inventory products.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, settings, receiptIndex, listOnly)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		cobra.CheckErr(fmt.Errorf("error setting up flags: %w", err))
	}

	// Added after the viper binding on purpose, these are one-shot
	// selectors rather than configuration.
	cmd.Flags().IntVar(&receiptIndex, "receipt", 0, "Receipt to sync, by history index (0 = most recent)")
	cmd.Flags().BoolVar(&listOnly, "list", false, "List recent receipts and exit")

	return cmd
}

func runSync(cmd *cobra.Command, settings *conf.Settings, receiptIndex int, listOnly bool) error {
	logger := logging.ForService("sync-cmd")
	ctx := cmd.Context()

	receipts, err := receipt.NewClient(receipt.Config{
		BaseURL: settings.Receipt.URL,
		Token:   settings.Receipt.Token,
		Timeout: 10 * time.Second,
	})
	if err != nil {
		return err
	}

	summaries, err := receipts.ListReceipts(ctx, settings.Receipt.History)
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		return fmt.Errorf("no receipts in the account history")
	}

	if listOnly {
		for i, summary := range summaries {
			fmt.Printf("%2d  %s  %7.2f€\n", i, summary.Timestamp, summary.Total())
		}
		return nil
	}

	if receiptIndex < 0 || receiptIndex >= len(summaries) {
		return fmt.Errorf("receipt index %d out of range (0-%d)", receiptIndex, len(summaries)-1)
	}
	selected := summaries[receiptIndex]

	items, err := receipts.FetchLineItems(ctx, selected.ID)
	if err != nil {
		return err
	}
	logger.Info("Fetched receipt",
		"receipt_id", selected.ID,
		"timestamp", selected.Timestamp,
		"line_items", len(items))

	store := catalog.New(settings)
	if err := store.Open(); err != nil {
		return fmt.Errorf("opening catalog store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close catalog store", "error", err)
		}
	}()

	inventory, err := grocy.NewClient(grocy.Config{
		BaseURL: settings.Grocy.URL,
		APIKey:  settings.Grocy.APIKey,
		Timeout: 10 * time.Second,
	})
	if err != nil {
		return err
	}

	var aux sync.AuxLookup
	if settings.FoodFacts.Enabled {
		aux = foodfacts.NewClient(foodfacts.Config{
			BaseURL:  settings.FoodFacts.BaseURL,
			CacheTTL: settings.FoodFacts.CacheTTL,
		})
	}

	resolver := catalog.NewResolver(store, settings.Catalog.FuzzyCutoff)
	synchronizer := sync.New(store, resolver, inventory, aux, &settings.Grocy)

	stats := synchronizer.ProcessReceipt(ctx, items)
	logger.Info("Receipt sync finished",
		"items_synced", stats.ItemsSynced,
		"items_created", stats.ItemsCreated,
		"items_failed", stats.ItemsFailed)

	if stats.ItemsFailed > 0 {
		return fmt.Errorf("%d of %d line items failed to sync", stats.ItemsFailed, len(items))
	}
	return nil
}

// setupFlags configures flags specific to the sync command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.Receipt.Token, "token", viper.GetString("receipt.token"), "Retailer account session token")
	cmd.Flags().StringVar(&settings.Grocy.URL, "grocyurl", viper.GetString("grocy.url"), "Inventory system base URL")
	cmd.Flags().IntVar(&settings.Receipt.History, "history", viper.GetInt("receipt.history"), "Number of receipts to consider from the account history")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}
