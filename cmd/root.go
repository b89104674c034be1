package cmd

import (
	"context"
	"fmt"
	"os"

	"beatmarket/config"
	"beatmarket/logger"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "beatmarket",
	Short: "BeatMarket is the REST backend of a beat and sound-kit marketplace.",
	Long: `BeatMarket serves users, tracks, catalog labels and sound kits over a JSON API,
stores uploaded artwork, audio and kit archives in object storage, and derives
musician profiles from track data. Without a subcommand it starts the server.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
}

// Execute executes the root command.
func Execute() {
	defer logger.Sync()
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration once and starts the logger from it.
func loadConfig() *config.Config {
	cfg := config.Load()
	logger.InitLogger(logger.Config{
		Level:      cfg.LogLevel,
		OutputPath: cfg.LogFile,
		MaxSize:    cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAge:     cfg.LogMaxAgeDays,
		Compress:   cfg.LogCompress,
	})
	return cfg
}
