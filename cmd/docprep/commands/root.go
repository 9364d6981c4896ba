package commands

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"docprep/api/internal/clientconfig"
	"docprep/api/internal/remote"
)

var (
	configPath string
	apiURL     string
	teamID     int64
	logLevel   string

	cfg    clientconfig.Config
	client *remote.Client
	logger *slog.Logger
)

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "docprep",
		Short:        "Prepare documents for signing",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := clientconfig.Load(configPath)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("api-url") {
				loaded.API.URL = apiURL
			}
			if flags.Changed("team") {
				loaded.Team.ID = teamID
			}
			if flags.Changed("log-level") {
				loaded.Log.Level = logLevel
			}
			cfg = loaded

			logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.SlogLevel()}))
			client = remote.New(cfg.API.URL, cfg.API.Timeout)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/docprep/config.yaml)")
	root.PersistentFlags().StringVar(&apiURL, "api-url", "", "API base URL (e.g. http://localhost:8787)")
	root.PersistentFlags().Int64Var(&teamID, "team", 0, "team id to scope requests to")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")

	root.AddCommand(
		prepareCmd(),
		statusCmd(),
		createCmd(),
		setPasswordCmd(),
		searchCmd(),
		historyCmd(),
		dataURLCmd(),
	)
	return root
}
