// Command marketintel runs the Binance market-data intelligence
// service: order-book maintenance, persistence, analytics, and the
// report orchestrator, exposed as a long-running server or a
// one-shot report generator (spec.md §6). Grounded on the teacher's
// cmd/cryptorun entrypoint shape: a cobra root command wiring a
// zerolog console/JSON writer chosen by TTY detection, with
// subcommands for each operating mode.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sawpanic/binance-marketintel/internal/config"
	"github.com/sawpanic/binance-marketintel/internal/orderbook"
	"github.com/sawpanic/binance-marketintel/internal/persist"
	"github.com/sawpanic/binance-marketintel/internal/ratelimit"
	"github.com/sawpanic/binance-marketintel/internal/report"
	"github.com/sawpanic/binance-marketintel/internal/store"
	"github.com/sawpanic/binance-marketintel/internal/telemetry"
	"github.com/sawpanic/binance-marketintel/internal/venue/binance"
)

var configPath string

func main() {
	setupLogging()

	root := &cobra.Command{
		Use:   "marketintel",
		Short: "Binance single-venue market-data intelligence service",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to config.yaml")

	root.AddCommand(serveCmd(), reportCmd())

	if err := root.Execute(); err != nil {
		log.Fatal().Err(err).Msg("command failed")
	}
}

func setupLogging() {
	zerolog.TimeFieldFormat = time.RFC3339
	if term.IsTerminal(int(os.Stdout.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the order-book, persistence, and report pipeline continuously",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func reportCmd() *cobra.Command {
	var volumeWindowHours, orderbookLevels int

	cmd := &cobra.Command{
		Use:   "report <symbol>",
		Short: "Subscribe, warm up briefly, and print a single market report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd.Context(), args[0], report.ReportOptions{
				VolumeWindowHours: volumeWindowHours,
				OrderbookLevels:   orderbookLevels,
			})
		},
	}
	cmd.Flags().IntVar(&volumeWindowHours, "volume-window-hours", 24, "volume profile window, 1-168")
	cmd.Flags().IntVar(&orderbookLevels, "orderbook-levels", 20, "order book depth levels, 1-100")
	return cmd
}

type services struct {
	cfg          *config.Config
	rest         *binance.RESTClient
	engine       *orderbook.Engine
	st           *store.Store
	querier      *persist.Querier
	orchestrator *report.Orchestrator
	metrics      *telemetry.Registry
}

func buildServices() (*services, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	limiter := ratelimit.New(cfg.RestRatePerSecond, cfg.RestBurst, 5*time.Second)
	rest := binance.NewRESTClient(cfg.VenueBaseURL, limiter)

	engine := orderbook.NewEngine(rest, cfg.VenueWSBaseURL)

	st, err := store.Open(cfg.DataPath, cfg.StoreByteBudget)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	querier := persist.NewQuerier(st)
	cache := report.NewCache(cfg.ReportCacheTTL(), cfg.ReportCacheCapacity)
	orchestrator := report.NewOrchestrator(rest, engine, querier, cache,
		cfg.Microstructure.TargetDepthUSD, cfg.Microstructure.TargetUpdatesPerS)

	var metrics *telemetry.Registry
	if cfg.Metrics.Enabled {
		metrics = telemetry.NewRegistry(prometheus.DefaultRegisterer)
	}

	return &services{
		cfg: cfg, rest: rest, engine: engine, st: st,
		querier: querier, orchestrator: orchestrator, metrics: metrics,
	}, nil
}

func runServe(ctx context.Context) error {
	svc, err := buildServices()
	if err != nil {
		return err
	}
	defer svc.st.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, sym := range svc.cfg.TrackedSymbols {
		if err := svc.engine.Subscribe(ctx, sym); err != nil {
			log.Error().Str("symbol", sym).Err(err).Msg("initial subscribe failed")
			continue
		}
		log.Info().Str("symbol", sym).Msg("subscribed")
	}

	snapshotPersister := persist.NewSnapshotPersister(svc.st, svc.engine, svc.cfg.TrackedSymbols, svc.cfg.SnapshotInterval())
	tradePersister := persist.NewTradePersister(svc.st, svc.cfg.VenueWSBaseURL, svc.cfg.TradeFlushInterval())
	janitor := persist.NewJanitor(svc.st, svc.cfg.TrackedSymbols, svc.cfg.Retention())

	go snapshotPersister.Run(ctx)
	go tradePersister.Run(ctx, svc.cfg.TrackedSymbols)
	go janitor.Run(ctx)

	if svc.cfg.Metrics.Enabled {
		go serveMetrics(svc.cfg.Metrics.Addr)
	}

	log.Info().Msg("marketintel serving")
	<-ctx.Done()
	log.Info().Msg("shutting down")
	return nil
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("metrics server stopped")
	}
}

func runReport(ctx context.Context, sym string, opts report.ReportOptions) error {
	svc, err := buildServices()
	if err != nil {
		return err
	}
	defer svc.st.Close()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := svc.engine.Subscribe(ctx, sym); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	r, err := svc.orchestrator.GenerateReport(ctx, sym, opts)
	if err != nil {
		return fmt.Errorf("generate report: %w", err)
	}

	md, err := report.RenderMarkdown(r)
	if err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	fmt.Println(md)
	return nil
}
