package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mkessler-dev/pantrysync/cmd/ingest"
	syncmd "github.com/mkessler-dev/pantrysync/cmd/sync"
	"github.com/mkessler-dev/pantrysync/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pantrysync",
		Short: "Pantrysync CLI",
		Long:  "Maintain a local product reference catalog and push purchase receipts into a Grocy inventory.",
	}

	setupFlags(rootCmd, settings)

	subcommands := []*cobra.Command{
		ingest.Command(settings),
		syncmd.Command(settings),
	}
	rootCmd.AddCommand(subcommands...)

	return rootCmd
}

// setupFlags configures the global flags for the root command.
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		cobra.CheckErr(err)
	}
}
