package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"
	"github.com/sabarim/txbars/internal/adjust"
	"github.com/sabarim/txbars/internal/auth"
	"github.com/sabarim/txbars/internal/bars"
	"github.com/sabarim/txbars/internal/config"
	"github.com/sabarim/txbars/internal/historical"
	"github.com/sabarim/txbars/internal/instruments"
	"github.com/sabarim/txbars/internal/logging"
	"github.com/sabarim/txbars/internal/render"
	"github.com/sabarim/txbars/internal/session"
	"github.com/sabarim/txbars/internal/store"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const dateLayout = "2006-01-02"

var (
	configFile     string
	authServiceURL string
	authServiceKey string
	brokerName     string
	apiKey         string
	apiSecret      string
	sessionToken   string
	dataRoot       string
	symbolsStr     string
	timeframesStr  string
	workers        int
	correctionPath string
	logLevel       string

	runDate   string
	batchFrom string
	batchTo   string

	viewSymbol string
	viewFrom   string
	viewTo     string
	viewTF     string
	combine    bool
	adjustBars bool
	format     string
	outPath    string
	intlStyle  bool
)

var versionString = "0.1.0"

// app holds what every subcommand needs after configuration is resolved.
type app struct {
	cfg        config.Config
	logger     *logrus.Logger
	loc        *time.Location
	classifier session.Classifier
	store      *store.Store
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "txbars",
		Short:         "Tick-to-bar ETL and chart preparation for TAIFEX futures",
		Long:          `Downloads raw trades, resamples them into session-aware OHLCV bars stored as parquet, and prepares indicator tables for charting.`,
		Version:       versionString,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "config.yaml", "Path to config file")
	pf.StringVar(&authServiceURL, "auth-service-url", "", "URL of the auth service")
	pf.StringVar(&authServiceKey, "auth-service-key", "", "API key for the auth service")
	pf.StringVar(&brokerName, "broker", "", "Broker name (default is zerodha)")
	pf.StringVar(&apiKey, "api-key", "", "Broker API key (if not using auth service)")
	pf.StringVar(&apiSecret, "api-secret", "", "Broker API secret (if not using auth service)")
	pf.StringVar(&sessionToken, "session-token", "", "Broker session token (if not using auth service)")
	pf.StringVar(&dataRoot, "data-root", "", "Root directory of the parquet store")
	pf.StringVar(&symbolsStr, "symbols", "", "Comma-separated symbol codes to process")
	pf.StringVar(&timeframesStr, "timeframes", "", "Comma-separated timeframes (e.g. 5s,1m,5m,1h,1d)")
	pf.IntVar(&workers, "workers", 0, "Number of dates processed in parallel")
	pf.StringVar(&correctionPath, "correction", "", "Path to the continuity correction table")
	pf.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	etlCmd := &cobra.Command{
		Use:   "etl",
		Short: "Process a single calendar date",
		RunE:  runETL,
	}
	etlCmd.Flags().StringVar(&runDate, "date", time.Now().Format(dateLayout), "Date to process (YYYY-MM-DD)")

	batchCmd := &cobra.Command{
		Use:   "batch",
		Short: "Process every calendar date in a range",
		RunE:  runBatch,
	}
	batchCmd.Flags().StringVar(&batchFrom, "from", "", "Start date (YYYY-MM-DD)")
	batchCmd.Flags().StringVar(&batchTo, "to", "", "End date (YYYY-MM-DD), inclusive")
	_ = batchCmd.MarkFlagRequired("from")
	_ = batchCmd.MarkFlagRequired("to")

	viewCmd := &cobra.Command{
		Use:   "view",
		Short: "Export stored bars with indicators as CSV or JSON",
		RunE:  runView,
	}
	viewCmd.Flags().StringVar(&viewSymbol, "symbol", "TXF", "Symbol code")
	viewCmd.Flags().StringVar(&viewFrom, "from", time.Now().Format(dateLayout), "Start date (YYYY-MM-DD)")
	viewCmd.Flags().StringVar(&viewTo, "to", "", "End date (YYYY-MM-DD), defaults to --from")
	viewCmd.Flags().StringVar(&viewTF, "tf", "5m", "Timeframe (1d, 1h, 60m, 5m, 1m, 5s)")
	viewCmd.Flags().BoolVar(&combine, "combine", false, "Merge day and night sessions (daily only)")
	viewCmd.Flags().BoolVar(&adjustBars, "adjust", false, "Apply the continuity correction table")
	viewCmd.Flags().StringVar(&format, "format", "json", "Output format (json, csv)")
	viewCmd.Flags().StringVar(&outPath, "out", "", "Output file (default stdout)")
	viewCmd.Flags().BoolVar(&intlStyle, "intl", false, "Green-up/red-down colors instead of Taiwan style")

	scheduleCmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the ETL for the previous day on a cron schedule",
		RunE:  runSchedule,
	}

	rootCmd.AddCommand(etlCmd, batchCmd, viewCmd, scheduleCmd)
	return rootCmd
}

// setup loads configuration, applies flag overrides and validates the result.
func setup() (*app, error) {
	bootLogger := logging.New("info", "text")
	cfg, err := config.LoadConfig(configFile, bootLogger)
	if err != nil {
		return nil, fmt.Errorf("error loading configuration: %w", err)
	}

	if authServiceURL != "" {
		cfg.Auth.AuthServiceURL = authServiceURL
	}
	if authServiceKey != "" {
		cfg.Auth.AuthServiceAPIKey = authServiceKey
	}
	if brokerName != "" {
		cfg.Auth.BrokerName = brokerName
	}
	if apiKey != "" {
		cfg.Auth.ApiKey = apiKey
	}
	if apiSecret != "" {
		cfg.Auth.ApiSecret = apiSecret
	}
	if sessionToken != "" {
		cfg.Auth.SessionToken = sessionToken
	}
	if dataRoot != "" {
		cfg.Data.Root = dataRoot
	}
	if symbolsStr != "" {
		cfg.Data.Symbols = splitList(symbolsStr)
	}
	if timeframesStr != "" {
		cfg.Data.Timeframes = splitList(timeframesStr)
	}
	if workers > 0 {
		cfg.Data.Workers = workers
	}
	if correctionPath != "" {
		cfg.Correction.Path = correctionPath
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("invalid exchange timezone: %w", err)
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format)
	return &app{
		cfg:        cfg,
		logger:     logger,
		loc:        loc,
		classifier: session.NewClassifier(loc),
		store:      store.New(cfg.Data.Root, loc, logger),
	}, nil
}

// pipeline wires authentication, the instrument registry and the tick source.
func (a *app) pipeline(ctx context.Context) (*historical.Pipeline, error) {
	timeframes, err := bars.ParseTimeframes(a.cfg.Data.Timeframes)
	if err != nil {
		return nil, err
	}
	registry, err := a.registry(a.cfg.Data.Symbols)
	if err != nil {
		return nil, err
	}
	source, err := a.source(ctx, registry)
	if err != nil {
		return nil, err
	}
	return historical.NewPipeline(source, a.store, a.classifier, a.cfg.Data.Symbols, timeframes, a.cfg.Data.Workers, a.logger), nil
}

// registry builds the instrument registry and rejects unsupported codes.
func (a *app) registry(codes []string) (*instruments.Registry, error) {
	registry := instruments.NewRegistry(a.cfg.Instruments.Supported, a.cfg.Broker.InstrumentsURL, a.cfg.Instruments.CachePath, a.logger)
	if err := registry.Check(codes); err != nil {
		return nil, err
	}
	return registry, nil
}

// source authenticates with the broker and loads the instrument master.
func (a *app) source(ctx context.Context, registry *instruments.Registry) (*historical.KiteSource, error) {
	kiteClient, err := auth.NewAuthManager(a.cfg.Auth, a.logger).GetClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get authenticated client: %w", err)
	}

	if err := registry.Download(ctx); err != nil {
		a.logger.WithError(err).Warn("instrument master download failed, using cache")
		if err := registry.LoadCache(); err != nil {
			return nil, fmt.Errorf("failed to load instruments: %w", err)
		}
	}

	return historical.NewKiteSource(kiteClient, registry, a.loc, a.cfg.Broker.RequestDelay, a.cfg.Broker.MaxRetries, a.logger), nil
}

func runETL(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	date, err := time.ParseInLocation(dateLayout, runDate, a.loc)
	if err != nil {
		return fmt.Errorf("invalid --date: %w", err)
	}

	ctx, cancel := signalContext(a.logger)
	defer cancel()

	p, err := a.pipeline(ctx)
	if err != nil {
		return err
	}
	return p.RunDate(ctx, date)
}

func runBatch(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	from, err := time.ParseInLocation(dateLayout, batchFrom, a.loc)
	if err != nil {
		return fmt.Errorf("invalid --from: %w", err)
	}
	to, err := time.ParseInLocation(dateLayout, batchTo, a.loc)
	if err != nil {
		return fmt.Errorf("invalid --to: %w", err)
	}

	ctx, cancel := signalContext(a.logger)
	defer cancel()

	p, err := a.pipeline(ctx)
	if err != nil {
		return err
	}
	return p.RunRange(ctx, from, to)
}

func runView(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	tf, err := bars.ParseTimeframe(viewTF)
	if err != nil {
		return err
	}
	from, err := time.ParseInLocation(dateLayout, viewFrom, a.loc)
	if err != nil {
		return fmt.Errorf("invalid --from: %w", err)
	}
	to := from
	if viewTo != "" {
		if to, err = time.ParseInLocation(dateLayout, viewTo, a.loc); err != nil {
			return fmt.Errorf("invalid --to: %w", err)
		}
	}

	var adjuster *adjust.Adjuster
	if a.cfg.Correction.Path != "" {
		table, err := adjust.LoadTableFile(a.cfg.Correction.Path, a.classifier)
		if err != nil {
			return err
		}
		adjuster = adjust.NewAdjuster(table, a.classifier, a.logger)
	}

	palette := render.DefaultPalette()
	if intlStyle {
		palette = render.NewPalette(false, palette.DimFactor, palette.VolLighten)
	}

	symbol := strings.ToUpper(viewSymbol)
	registry, err := a.registry([]string{symbol})
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(a.logger)
	defer cancel()

	// Corrupt bar tables are rebuilt from the raw tick cache; the broker is
	// only contacted when those ticks are missing too.
	source := historical.NewLazySource(func(ctx context.Context) (historical.TickSource, error) {
		return a.source(ctx, registry)
	})
	rebuilder := historical.NewPipeline(source, a.store, a.classifier, []string{symbol}, []bars.Timeframe{tf}, 1, a.logger)

	viewer := historical.NewViewer(a.store, a.classifier, palette, adjuster, rebuilder, a.logger)
	table, err := viewer.View(ctx, historical.ViewRequest{
		Symbol:    symbol,
		Timeframe: tf,
		From:      from,
		To:        to,
		Combine:   combine,
		Adjust:    adjustBars,
	})
	if err != nil {
		return err
	}
	if len(table.Rows) == 0 {
		a.logger.WithField("symbol", symbol).Warn("no bars found in range")
	}

	var out io.Writer = os.Stdout
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	switch format {
	case "csv":
		return render.WriteCSV(out, table)
	case "json":
		title := fmt.Sprintf("%s %s (%s)", symbol, tf, from.Format(dateLayout))
		if !to.Equal(from) {
			title = fmt.Sprintf("%s %s (%s ~ %s)", symbol, tf, from.Format(dateLayout), to.Format(dateLayout))
		}
		if combine && tf.IsDaily() {
			title += " [Combined]"
		}
		return render.WriteJSON(out, render.NewChart(symbol, tf.String(), title, table))
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func runSchedule(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	ctx, cancel := signalContext(a.logger)
	defer cancel()

	c := cron.New(cron.WithLocation(a.loc))
	_, err = c.AddFunc(a.cfg.Schedule.Cron, func() {
		date := time.Now().In(a.loc).AddDate(0, 0, -1)
		p, err := a.pipeline(ctx)
		if err != nil {
			a.logger.WithError(err).Error("scheduled run setup failed")
			return
		}
		if err := p.RunDate(ctx, date); err != nil {
			a.logger.WithError(err).Error("scheduled run failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid cron spec %q: %w", a.cfg.Schedule.Cron, err)
	}

	a.logger.WithField("cron", a.cfg.Schedule.Cron).Info("scheduler started")
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	a.logger.Info("scheduler stopped")
	return nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(logger logrus.FieldLogger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigchan := make(chan os.Signal, 1)
	signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigchan:
			logger.WithField("signal", sig.String()).Info("received signal, initiating shutdown")
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
