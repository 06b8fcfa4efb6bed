// Command ops is the operator CLI: config checks, demo seeding, store
// stats and state backups. It works against the same YAML config the
// server reads.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"savequest/internal/auth"
	"savequest/internal/badge"
	"savequest/internal/clock"
	"savequest/internal/config"
	"savequest/internal/curriculum"
	"savequest/internal/gamify"
	"savequest/internal/ledger"
	"savequest/internal/notification"
	"savequest/internal/ops"
	"savequest/internal/progression"
	"savequest/internal/store"
	"savequest/internal/telemetry"
)

var cfgPath string

func main() {
	root := &cobra.Command{
		Use:           "ops",
		Short:         "Operator tooling for the savequest server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "savequest.yml", "path to the server config file")

	root.AddCommand(
		newCheckConfigCmd(),
		newSeedCmd(),
		newStatsCmd(),
		newBackupCmd(),
		newRestoreCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// openSQLite opens the configured store, refusing the memory driver:
// every ops subcommand that touches data needs state that outlives the
// process.
func openSQLite(cfg *config.Config) (*store.SQLiteStore, error) {
	if cfg.Store.Driver != "sqlite" {
		return nil, fmt.Errorf("store driver is %q; this command needs sqlite", cfg.Store.Driver)
	}
	return store.OpenSQLite(cfg.Store.Path)
}

func newCheckConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "checkconfig",
		Short: "Validate the config file and any referenced catalogs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			catalog := badge.DefaultCatalog()
			if cfg.Gamify.BadgeCatalogPath != "" {
				if catalog, err = badge.LoadCatalog(cfg.Gamify.BadgeCatalogPath); err != nil {
					return fmt.Errorf("badge catalog: %w", err)
				}
			}
			plan := curriculum.Default()
			if cfg.Gamify.CurriculumPath != "" {
				if plan, err = curriculum.Load(cfg.Gamify.CurriculumPath); err != nil {
					return fmt.Errorf("curriculum: %w", err)
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "config ok: %s\n", cfgPath)
			fmt.Fprintf(out, "  store: %s (%s)\n", cfg.Store.Driver, cfg.Store.Path)
			fmt.Fprintf(out, "  badges: %d\n", len(catalog.All()))
			taskCount := 0
			for _, d := range plan.Days {
				taskCount += len(d.Tasks)
			}
			fmt.Fprintf(out, "  curriculum: %d days, %d tasks\n", len(plan.Days), taskCount)
			if cfg.Auth.Secret == "" {
				fmt.Fprintln(out, "  warning: auth secret unset (JWT_SECRET); the server will refuse to start")
			}
			return nil
		},
	}
}

func newSeedCmd() *cobra.Command {
	var email, password, name string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create a demo account with sample ledger activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := openSQLite(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := context.Background()
			clk := clock.RealClock{}
			logger := log.New(cmd.ErrOrStderr(), "", log.LstdFlags)

			users := auth.NewService(st, clk, cfg.Auth.Secret, time.Duration(cfg.Auth.TokenTTLHours)*time.Hour, logger)
			u, _, err := users.Signup(ctx, email, name, password)
			if err != nil {
				return fmt.Errorf("create demo account: %w", err)
			}

			engine := &gamify.Engine{
				Ledger:     ledger.NewRepo(st),
				Progress:   progression.NewStoreRepo(st),
				Curriculum: curriculum.NewStoreRepo(st),
				Plan:       curriculum.Default(),
				Badges:     badge.DefaultCatalog(),
				Notes:      notification.NewStoreRepo(st),
				Events:     telemetry.NewMemoryRepository(),
				Clock:      clk,
				Policy:     gamify.Policy{RevokeXPOnCancel: cfg.Gamify.RevokeXPOnCancel},
			}

			if _, err := engine.RecordLogin(ctx, u.ID); err != nil {
				return err
			}
			samples := []ledger.TransactionRecord{
				{UserID: u.ID, Flow: ledger.FlowIncome, Category: "Salary", Amount: decimal.NewFromInt(25000), Note: "Monthly pay"},
				{UserID: u.ID, Flow: ledger.FlowExpense, Category: "Food", Amount: decimal.NewFromInt(1800), Note: "Groceries"},
				{UserID: u.ID, Flow: ledger.FlowIncome, Category: ledger.CategorySavings, Amount: decimal.NewFromInt(600), Note: "Weekly savings"},
			}
			for _, tx := range samples {
				if _, err := engine.RecordTransaction(ctx, tx); err != nil {
					return fmt.Errorf("seed transaction: %w", err)
				}
			}
			g, err := engine.CreateGoal(ctx, ledger.Goal{
				UserID: u.ID,
				Title:  "Emergency fund",
				Target: decimal.NewFromInt(10000),
			})
			if err != nil {
				return err
			}
			if _, err := engine.ContributeToGoal(ctx, u.ID, g.ID, decimal.NewFromInt(1500)); err != nil {
				return err
			}

			p, err := engine.Progress.Get(ctx, u.ID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "seeded %s (%s)\n", email, u.ID)
			fmt.Fprintf(out, "  xp=%d level=%d streak=%d badges=%d\n", p.XP, p.Level(), p.Streak, len(p.Badges))
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "demo@savequest.app", "demo account email")
	cmd.Flags().StringVar(&password, "password", "letmein-demo", "demo account password")
	cmd.Flags().StringVar(&name, "name", "Demo", "demo account display name")
	return cmd
}

func newStatsCmd() *cobra.Command {
	var serverURL, since string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show telemetry counters from a running server, or document counts from the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			if serverURL != "" {
				return printServerStats(cmd, serverURL, since)
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := openSQLite(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := context.Background()
			collections := []string{
				"users", "transactions", "goals", "profiles",
				"progress", "curricula", "notifications",
				"circles", "circle_activity",
			}
			out := cmd.OutOrStdout()
			for _, col := range collections {
				docs, err := st.Query(ctx, col, store.Query{})
				if err != nil {
					return fmt.Errorf("query %s: %w", col, err)
				}
				fmt.Fprintf(out, "%-16s %d\n", col, len(docs))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "", "base URL of a running server; reads live telemetry counters")
	cmd.Flags().StringVar(&since, "since", "", "RFC3339 lower bound for --server stats (default since boot)")
	return cmd
}

// printServerStats reads the telemetry summary a running server exposes at
// /_/admin/stats.json. The event log lives in server memory, so counters
// are only reachable over HTTP.
func printServerStats(cmd *cobra.Command, baseURL, since string) error {
	endpoint := strings.TrimRight(baseURL, "/") + "/_/admin/stats.json"
	if since != "" {
		endpoint += "?since=" + url.QueryEscape(since)
	}
	resp, err := http.Get(endpoint)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %s", resp.Status)
	}
	var stats telemetry.Stats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return fmt.Errorf("decode stats: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "period since %s\n", stats.Period)
	fmt.Fprintf(out, "  task completions: %d\n", stats.TaskCompletions)
	fmt.Fprintf(out, "  task cancels:     %d\n", stats.TaskCancels)
	fmt.Fprintf(out, "  xp awarded:       %d\n", stats.XPAwardedTotal)
	fmt.Fprintf(out, "  badges earned:    %d\n", stats.BadgesEarned)
	fmt.Fprintf(out, "  level ups:        %d\n", stats.LevelUps)
	fmt.Fprintf(out, "  days unlocked:    %d\n", stats.DaysUnlocked)
	reasons := make([]string, 0, len(stats.XPByReason))
	for reason := range stats.XPByReason {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)
	for _, reason := range reasons {
		fmt.Fprintf(out, "    %-24s %d\n", reason, stats.XPByReason[reason])
	}
	return nil
}

func newBackupCmd() *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Archive the state directory to a tar.gz",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Store.Driver != "sqlite" {
				return fmt.Errorf("store driver is %q; nothing on disk to back up", cfg.Store.Driver)
			}
			if outPath == "" {
				outPath = ops.ArchiveName(time.Now())
			}
			stateDir := filepath.Dir(cfg.Store.Path)
			if err := ops.BackupStateDir(stateDir, outPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "backed up %s -> %s\n", stateDir, outPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "", "archive path (default savequest-<timestamp>.tar.gz)")
	return cmd
}

func newRestoreCmd() *cobra.Command {
	var targetDir string
	cmd := &cobra.Command{
		Use:   "restore <archive>",
		Short: "Unpack a backup archive into the state directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if targetDir == "" {
				targetDir = filepath.Dir(cfg.Store.Path)
			}
			if err := ops.RestoreStateDir(args[0], targetDir); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restored %s -> %s\n", args[0], targetDir)
			return nil
		},
	}
	cmd.Flags().StringVar(&targetDir, "to", "", "target directory (default the configured state dir)")
	return cmd
}
