package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/malwarescan/precogs-api-sub001/grounding"
)

var (
	cfgFile string
	dbPath  string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "precogs-audit",
	Short: "Offline audit of a fact grounding database",
	Long: `precogs-audit verifies a grounding database without the daemon:

- "identity" re-derives slot_id/fact_id for every stored fact from its
  stored components and reports any drift from the persisted identities.
- "replay" re-runs anchor validation for stored snapshots and prints the
  per-page reports.

Identities are pure hashes over stored fields, so any third party holding
the database can run the same checks and get the same answers.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "service config file (yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "db/precogs.db", "path to the grounding database")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	_ = viper.BindPFlag("db", rootCmd.PersistentFlags().Lookup("db"))
}

func initConfig() {
	viper.SetEnvPrefix("PRECOGS")
	viper.AutomaticEnv()
}

// openService opens the grounding service read-side for audit commands.
func openService() (*grounding.Service, error) {
	lvl := slog.LevelWarn
	if verbose {
		lvl = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))

	if cfgFile != "" {
		cfg, err := grounding.LoadConfigFile(cfgFile)
		if err != nil {
			return nil, err
		}
		return grounding.New(cfg, logger)
	}
	return grounding.New(&grounding.Config{DBPath: viper.GetString("db")}, logger)
}
