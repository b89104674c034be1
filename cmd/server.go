package cmd

import (
	"context"

	"beatmarket/core/auth"
	"beatmarket/logger"
	"beatmarket/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the HTTP API server",
	Long:  `Connects the database and object storage, applies migrations and serves the JSON API until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func runServer(ctx context.Context) error {
	cfg := loadConfig()

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.migrate(ctx); err != nil {
		return err
	}
	if cfg.JWTSecret == "change-me" {
		logger.Warn("JWT_SECRET is not set; tokens are signed with the default secret")
	}

	handler := server.NewAPIHandler(server.Options{
		Config:   cfg,
		Registry: a.registry,
		Records:  a.records,
		Store:    a.store,
		Tokens:   auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL),
		PingDB:   a.pingDB,
	})
	return server.Run(ctx, cfg, handler.Router())
}
