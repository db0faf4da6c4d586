package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/moonlitpsych/moonlit-scheduler/internal/config"
	"github.com/moonlitpsych/moonlit-scheduler/internal/platform/auth"
	"github.com/moonlitpsych/moonlit-scheduler/internal/platform/db"
	"github.com/moonlitpsych/moonlit-scheduler/internal/platform/jobs"
	"github.com/moonlitpsych/moonlit-scheduler/pkg/date"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "scheduler-server",
		Short: "Moonlit scheduling API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(rosterCmd())
	rootCmd.AddCommand(workerCmd())
	rootCmd.AddCommand(authCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// loadConfig loads and validates configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the scheduling API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			to, _ := cmd.Flags().GetInt("to")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if dir == "" {
				dir = cfg.MigrationsDir
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns, cfg.DBSchema)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir, cfg.DBSchema)
			fmt.Printf("Running migrations on schema: %s\n", cfg.DBSchema)

			count, err := migrator.UpTo(ctx, to)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Path to migrations directory (defaults to MIGRATIONS_DIR)")
	upCmd.Flags().Int("to", 0, "Stop after this version (0 applies everything)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if dir == "" {
				dir = cfg.MigrationsDir
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns, cfg.DBSchema)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, dir, cfg.DBSchema).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("Migration status for schema: %s\n", cfg.DBSchema)
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Path to migrations directory (defaults to MIGRATIONS_DIR)")
	cmd.AddCommand(statusCmd)

	return cmd
}

// parseAsOf reads the --as-of flag. Empty means today in the booking zone.
func parseAsOf(s string) (date.Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return date.Date{}, nil
	}
	d, err := date.Parse(s)
	if err != nil {
		return date.Date{}, fmt.Errorf("--as-of must be YYYY-MM-DD: %w", err)
	}
	return d, nil
}

func rosterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roster",
		Short: "Manage the bookable provider roster",
	}

	rebuildCmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Recompute bookable provider/payer pairs now",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, _ := cmd.Flags().GetString("as-of")
			asOf, err := parseAsOf(raw)
			if err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg.Env)

			ctx := context.Background()
			a, err := buildApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.roster.Rebuild(ctx, asOf)
			if err != nil {
				return fmt.Errorf("roster rebuild failed: %w", err)
			}
			fmt.Printf("Roster as of %s: %d bookable (%d direct, %d supervised) in %s\n",
				res.AsOf, res.Total, res.Direct, res.Supervised, res.Duration)
			return nil
		},
	}
	rebuildCmd.Flags().String("as-of", "", "Date to evaluate coverage on (YYYY-MM-DD, default today)")
	cmd.AddCommand(rebuildCmd)

	return cmd
}

func workerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Process background roster rebuild tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			concurrency, _ := cmd.Flags().GetInt("concurrency")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.RedisURL == "" {
				return fmt.Errorf("REDIS_URL is required to run the worker")
			}
			logger := newLogger(cfg.Env)

			ctx := context.Background()
			a, err := buildApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			srv, err := jobs.NewServer(cfg.RedisURL, concurrency, logger)
			if err != nil {
				return err
			}
			logger.Info().Int("concurrency", concurrency).Msg("starting worker")
			// Run blocks until SIGINT or SIGTERM.
			return srv.Run(jobs.NewMux(a.roster.RunTask, logger))
		},
	}
	cmd.Flags().Int("concurrency", 2, "Number of tasks processed at once")
	return cmd
}

func authCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage role grants",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "seed-admins",
		Short: "Grant the admin role to every ADMIN_EMAILS address",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := newLogger(cfg.Env)

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns, cfg.DBSchema)
			if err != nil {
				return err
			}
			defer pool.Close()

			n, err := auth.SeedAdmins(ctx, auth.NewPGRoleStore(pool), cfg.AdminEmailList(), logger)
			if err != nil {
				return err
			}
			fmt.Printf("Seeded %d admin grant(s).\n", n)
			return nil
		},
	})
	return cmd
}
