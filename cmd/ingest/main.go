package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/LJTian/GovNewsHub/internal/bootstrap"
	"github.com/LJTian/GovNewsHub/internal/config"
	"github.com/LJTian/GovNewsHub/internal/dates"
	"github.com/LJTian/GovNewsHub/internal/ingest"
	"github.com/LJTian/GovNewsHub/internal/logger"
)

// Runs one ingestion pass and exits; non-zero exit when the run aborted.
func main() {
	date := flag.String("date", "", "target date, DD/MM/YYYY or YYYY-MM-DD (default: today)")
	maxPages := flag.Int("max-pages", 0, "override max pages of paginated sources")
	only := flag.String("source", "", "comma separated source names (default: all)")
	flag.Parse()

	log := logger.New("ingest")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	var opts ingest.Options
	if *date != "" {
		d, err := dates.ParseTarget(*date)
		if err != nil {
			log.Fatalf("invalid -date %q: %v", *date, err)
		}
		opts.Date = d
	}
	opts.MaxPages = *maxPages
	for _, name := range strings.Split(*only, ",") {
		if name = strings.TrimSpace(name); name != "" {
			opts.Sources = append(opts.Sources, name)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner, _, err := bootstrap.NewRunner(ctx, cfg, log)
	if err != nil {
		log.Fatalf("init runner failed: %v", err)
	}

	report, err := runner.Run(ctx, opts)
	if err != nil {
		log.WithError(err).Error("ingest run aborted")
		stop()
		os.Exit(1)
	}
	log.Infof("run %s finished, accepted=%d", report.RunID, report.Accepted)
}
