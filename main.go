package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"feeflow/config"
	"feeflow/logger"
	"feeflow/models"
	"feeflow/processor"
	"feeflow/reader/mudrex"
	"feeflow/writer"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	since := flag.String("since", "", "Start of time range (YYYY-MM-DD or ISO datetime), inclusive")
	until := flag.String("until", "", "End of time range (YYYY-MM-DD or ISO datetime), inclusive")
	symbol := flag.String("symbol", "", "Filter by symbol (e.g. BTCUSDT)")
	tier := flag.Int("tier", -1, "Alpha tier 0-6; overrides the configured tier when set")
	allVolume := flag.Bool("all-volume", false, "Count all filled orders, ignore order source")
	limit := flag.Int("limit", 0, "Max number of history records to fetch (0 = all)")
	noActualFees := flag.Bool("no-actual-fees", false, "Skip actual-fee reconciliation")

	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	secret := os.Getenv("MUDREX_API_SECRET")
	if secret == "" {
		log.Error("MUDREX_API_SECRET is required")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service": cfg.Feeflow.Name,
		"version": cfg.Feeflow.Version,
		"env":     config.AppEnvironment(),
	}).Info("starting feeflow")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.Metrics.CloudWatch {
		logger.InitCloudWatch(cfg.Storage.S3.Region, cfg.Metrics.Namespace, cfg.Feeflow.Name)
	}
	if strings.ToLower(cfg.Logging.Level) == "report" {
		logger.StartReport(ctx, log, 30*time.Second)
	}

	calcCfg := cfg.Calculator
	if *tier >= 0 {
		calcCfg.AlphaTier = *tier
	}
	if *allVolume {
		calcCfg.APISourcedOnly = false
	}

	client := mudrex.NewClient(cfg.Source.Mudrex, secret)
	calc := processor.NewCalculator(client, calcCfg)

	if cfg.Archive.Enabled {
		archiver, err := writer.NewArchiver(cfg)
		if err != nil {
			log.WithError(err).Error("Failed to initialize archiver")
			os.Exit(1)
		}
		calc.SetArchiver(archiver)
	}

	q := processor.Query{
		Symbol:            *symbol,
		Limit:             *limit,
		IncludeActualFees: calcCfg.IncludeActualFees && !*noActualFees,
	}
	if q.Since, err = parseBound(*since, "since"); err != nil {
		log.WithError(err).Error("Invalid -since value")
		os.Exit(1)
	}
	if q.Until, err = parseBound(*until, "until"); err != nil {
		log.WithError(err).Error("Invalid -until value")
		os.Exit(1)
	}

	report, err := calc.Calculate(ctx, q)
	if err != nil {
		log.WithError(err).Error("Calculation failed")
		os.Exit(1)
	}

	printReport(report, *since, *until)
}

// parseBound runs a CLI date flag through the same normalizer used for
// record timestamps so both sides agree on the reference zone.
func parseBound(s, name string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, ok := processor.ParseInstant(s)
	if !ok {
		return nil, fmt.Errorf("cannot parse %s %q", name, s)
	}
	return &t, nil
}

func printReport(r *models.VolumeReport, since, until string) {
	fmt.Println("Mudrex Futures Volume & Fees Report")
	fmt.Println("------------------------------------")
	if since != "" || until != "" {
		fmt.Printf("  Period: %s to %s\n", orDefault(since, "start"), orDefault(until, "now"))
	}
	if r.Symbol != "" {
		fmt.Printf("  Symbol: %s\n", r.Symbol)
	}
	fmt.Printf("  Alpha tier: %d (%g%% fee)\n", r.Tier, r.FeeRatePct)
	fmt.Printf("  Order count: %d\n", r.OrderCount)
	fmt.Printf("  Total volume (notional): $%.2f\n", r.TotalVolume)
	fmt.Printf("  Estimated fees: $%.2f\n", r.EstimatedFees)

	if len(r.BySymbol) > 0 {
		fmt.Println("  By symbol:")
		syms := make([]string, 0, len(r.BySymbol))
		for s := range r.BySymbol {
			syms = append(syms, s)
		}
		sort.Slice(syms, func(i, j int) bool { return r.BySymbol[syms[i]] > r.BySymbol[syms[j]] })
		for _, s := range syms {
			fmt.Printf("    %s: $%.2f\n", s, r.BySymbol[s])
		}
	}

	switch r.ActualFees.Status {
	case models.FeeReconAvailable:
		fmt.Printf("  Actual fees: $%.2f across %d records\n", r.ActualFees.Total, r.ActualFees.RecordCount)
	case models.FeeReconUnavailable:
		fmt.Println("  Actual fees: unavailable (fee history could not be fetched)")
	}

	if !r.SourceObserved {
		fmt.Println("  Note: order source not in API response; all filled orders in range were counted.")
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
