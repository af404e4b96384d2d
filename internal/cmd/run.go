package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/emberline/marketpulse/internal/config"
	"github.com/emberline/marketpulse/internal/extract"
	"github.com/emberline/marketpulse/internal/logging"
	"github.com/emberline/marketpulse/internal/marketplace"
	"github.com/emberline/marketpulse/internal/notify"
	"github.com/emberline/marketpulse/internal/reconcile"
	"github.com/emberline/marketpulse/internal/report"
	"github.com/emberline/marketpulse/internal/seeder"
	"github.com/emberline/marketpulse/internal/seenstore"
)

var (
	runDay      string
	runLookback int
	runDryRun   bool
	runApps     []string
	runFixtures string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the daily reconciliation and deliver the report",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := runReconciliation(cmd, args); err != nil {
			slog.Error("run failed", logging.Error(err))
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runDay, "day", "", "report day YYYY-MM-DD (UTC, default: yesterday)")
	runCmd.Flags().IntVar(&runLookback, "lookback-days", 0, "conversion lookback window in days")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "log the report instead of delivering it")
	runCmd.Flags().StringSliceVar(&runApps, "apps", nil, "only include these product names")
	runCmd.Flags().StringVar(&runFixtures, "fixtures", "", "read records from a fixtures directory instead of the API")
}

func runReconciliation(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyRunFlags(cmd, cfg)

	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service("marketpulse"), logging.RunID(uuid.NewString()))
	logging.SetDefault(logger)

	if runFixtures == "" {
		if err := cfg.Validate(); err != nil {
			return err
		}
	} else if err := validateFixturesRun(cfg); err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	day, err := cfg.ReportDay(time.Now())
	if err != nil {
		return err
	}
	lookback := cfg.Report.LookbackDays

	slog.Info("starting reconciliation run",
		logging.Day(day),
		slog.Int("lookback_days", lookback),
		slog.Bool("dry_run", cfg.Report.DryRun),
	)

	names, err := cfg.ProductNames()
	if err != nil {
		return err
	}

	wide, dayLicenses, churn, err := fetchRecords(ctx, cfg, day, lookback)
	if err != nil {
		return err
	}
	source := "marketplace"
	if runFixtures != "" {
		source = "fixtures"
	}
	slog.Info("records fetched",
		logging.Source(source),
		slog.Int("wide_licenses", len(wide)),
		slog.Int("day_licenses", len(dayLicenses)),
		slog.Int("churn", len(churn)),
	)

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	seen, err := store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load seen identifiers: %w", err)
	}

	res := reconcile.Reconcile(reconcile.Input{
		Day:          day,
		LookbackDays: lookback,
		Apps:         cfg.Report.Apps,
		Seen:         seen,
		WideLicenses: wide,
		DayLicenses:  dayLicenses,
		Churn:        churn,
		ProductNames: names,
	})

	text := report.Render(res)

	channel := deliveryChannel(cfg, logger)
	if err := channel.Send(ctx, text); err != nil {
		return fmt.Errorf("deliver report: %w", err)
	}

	if cfg.Report.DryRun {
		slog.Info("dry run complete, seen set untouched",
			slog.Int("new_ids", len(res.NewIDs)))
		return nil
	}

	if err := store.Save(ctx, res.NewIDs); err != nil {
		return fmt.Errorf("save seen identifiers: %w", err)
	}
	if rec, ok := store.(seenstore.RunRecorder); ok {
		if err := rec.RecordRun(ctx, day, len(res.NewIDs), len(text)); err != nil {
			slog.Warn("run history not recorded", logging.Error(err))
		}
	}

	slog.Info("run complete",
		slog.Int("groups", len(res.Groups)),
		slog.Int("new_ids", len(res.NewIDs)),
		slog.String("channel", channel.Type()),
	)
	return nil
}

// applyRunFlags lets explicit flags override file and environment config.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("day") {
		cfg.Report.Day = runDay
	}
	if cmd.Flags().Changed("lookback-days") {
		cfg.Report.LookbackDays = runLookback
	}
	if cmd.Flags().Changed("dry-run") {
		cfg.Report.DryRun = runDryRun
	}
	if cmd.Flags().Changed("apps") {
		cfg.Report.Apps = runApps
	}
}

// validateFixturesRun checks the reduced requirements of a fixtures run:
// no marketplace credentials needed, but a real delivery still needs the
// webhook.
func validateFixturesRun(cfg *config.Config) error {
	if !cfg.Report.DryRun && cfg.Slack.WebhookURL == "" {
		return fmt.Errorf("missing required config: slack.webhook_url")
	}
	return nil
}

func fetchRecords(ctx context.Context, cfg *config.Config, day time.Time, lookback int) (wide, dayLicenses, churn []extract.RawRecord, err error) {
	if runFixtures != "" {
		// Fixture runs rehearse the pipeline; the one license file serves
		// as both the wide and the day window.
		wide, churn, err = seeder.ReadDir(runFixtures)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("read fixtures: %w", err)
		}
		return wide, wide, churn, nil
	}

	client := marketplace.New(marketplace.Config{
		BaseURL:      cfg.Marketplace.BaseURL,
		Username:     cfg.Marketplace.Username,
		APIToken:     cfg.Marketplace.APIToken,
		VendorID:     cfg.Marketplace.VendorID,
		Timeout:      cfg.Marketplace.Timeout,
		PollInterval: cfg.Marketplace.PollInterval,
		PollDeadline: cfg.Marketplace.PollDeadline,
	})

	// The wide window pages through the plain licenses endpoint; the export
	// endpoint carries the data-insights fields the day window needs.
	wide, err = client.Licenses(ctx, day.AddDate(0, 0, -lookback), day)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("fetch wide license window: %w", err)
	}

	dayLicenses, err = client.LicensesExport(ctx, day, day)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("fetch day license window: %w", err)
	}

	churn, err = client.ChurnEvents(ctx, day, day)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("fetch churn window: %w", err)
	}

	// The transactions export is informational only: a sale count in the
	// run log. A timed-out export degrades to zero records.
	transactions, err := client.TransactionsExport(ctx, day, day)
	switch {
	case errors.Is(err, marketplace.ErrExportTimeout):
		slog.Warn("transactions export timed out, continuing without it")
	case err != nil:
		slog.Warn("transactions export failed, continuing without it", logging.Error(err))
	default:
		slog.Info("transactions fetched", logging.Count(len(transactions)))
	}

	return wide, dayLicenses, churn, nil
}

func openStore(ctx context.Context, cfg *config.Config) (seenstore.Store, error) {
	switch cfg.Store.Backend {
	case "redis":
		store, err := seenstore.NewRedis(cfg.Store.RedisURL, cfg.Marketplace.VendorID)
		if err != nil {
			return nil, fmt.Errorf("open redis store: %w", err)
		}
		return store, nil
	case "postgres":
		store, err := seenstore.NewPostgres(ctx, cfg.Store.PostgresURL, cfg.Marketplace.VendorID)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return store, nil
	default:
		return seenstore.NewMemory(), nil
	}
}

// deliveryChannel picks where the report goes: the log alone on a dry run,
// otherwise Slack fanned out with the log so the run record keeps the text.
func deliveryChannel(cfg *config.Config, logger *logging.Logger) notify.Channel {
	if cfg.Report.DryRun {
		return notify.NewLogChannel(logger.Logger)
	}
	return notify.NewMultiChannel(
		notify.NewSlackChannel(cfg.Slack.WebhookURL, cfg.Slack.Timeout),
		notify.NewLogChannel(logger.Logger),
	)
}
