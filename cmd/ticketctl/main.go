package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-lease-service/internal/app"
	"github.com/spec-kit/ticket-lease-service/internal/config"
	"github.com/spec-kit/ticket-lease-service/internal/observability"
)

var rootCmd = &cobra.Command{
	Use:   "ticketctl",
	Short: "Administer the ticket lease service",
	Long: `ticketctl works directly against the ticket store.
It reads the same environment as the API server; flags override the store selection.`,
	SilenceUsage: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("TICKETS")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().String("store", "", "store backend (postgres or sqlite)")
	rootCmd.PersistentFlags().String("sqlite-path", "", "sqlite database file")
	rootCmd.PersistentFlags().String("dsn", "", "postgres connection string")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().Bool("verbose", false, "log at debug level")
	for _, name := range []string{"store", "sqlite-path", "dsn", "json", "verbose"} {
		_ = viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(migrateCmd(), userCmd(), ticketCmd(), leaseCmd(), sellCmd())
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if v := viper.GetString("store"); v != "" {
		cfg.Store.Backend = strings.ToLower(v)
	}
	if v := viper.GetString("sqlite-path"); v != "" {
		cfg.Store.SQLitePath = v
	}
	if v := viper.GetString("dsn"); v != "" {
		cfg.Store.DSN = v
	}
	// The CLI never publishes to the shared stream.
	cfg.Redis.Enabled = false
	cfg.Logger.Level = "warn"
	if viper.GetBool("verbose") {
		cfg.Logger.Level = "debug"
	}
	cfg.Logger.Name = "ticketctl"
	return cfg, cfg.Validate()
}

func withApp(ctx context.Context, migrate bool, fn func(context.Context, *app.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Store.RunMigrations = migrate

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	svc, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	logger.Debug("store ready", zap.String("backend", cfg.Store.Backend))
	return fn(ctx, svc)
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), false, func(ctx context.Context, a *app.App) error {
				if err := a.Migrate(ctx); err != nil {
					return err
				}
				fmt.Println("migrations applied")
				return nil
			})
		},
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
