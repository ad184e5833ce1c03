// Command bugzooka watches a Slack channel for CI failure notifications,
// pulls the prow artifacts for each failed job, segments and analyzes the
// logs, and replies in-thread with the probable cause.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/redhat-performance/BugZooka/pkg/config"
	"github.com/redhat-performance/BugZooka/pkg/logx"
	"github.com/redhat-performance/BugZooka/pkg/metrics"
	"github.com/redhat-performance/BugZooka/pkg/perf"
	"github.com/redhat-performance/BugZooka/pkg/prow"
	"github.com/redhat-performance/BugZooka/pkg/slack"
	"github.com/redhat-performance/BugZooka/pkg/store"
)

// Version information - set by goreleaser via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	var (
		configPath   = flag.String("config", "config.yaml", "Path to the YAML configuration file")
		channel      = flag.String("channel", "", "Override the configured Slack channel ID")
		pollInterval = flag.Duration("poll-interval", 0, "Override the configured poll interval")
		metricsAddr  = flag.String("metrics-addr", "", "Override the configured metrics listen address")
		showVersion  = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("bugzooka %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
		os.Exit(0)
	}

	overrides := flagOverrides{
		channel:      *channel,
		pollInterval: *pollInterval,
		metricsAddr:  *metricsAddr,
	}
	if err := run(*configPath, overrides); err != nil {
		fmt.Fprintf(os.Stderr, "bugzooka failed: %v\n", err)
		os.Exit(1)
	}
}

// flagOverrides are command-line values that win over the config file.
type flagOverrides struct {
	channel      string
	pollInterval time.Duration
	metricsAddr  string
}

func (o flagOverrides) apply(cfg *config.Config) {
	if o.channel != "" {
		cfg.Slack.ChannelID = o.channel
	}
	if o.pollInterval > 0 {
		cfg.Slack.PollInterval = config.Duration(o.pollInterval)
	}
	if o.metricsAddr != "" {
		cfg.MetricsAddr = o.metricsAddr
	}
}

func run(configPath string, overrides flagOverrides) error {
	log := logx.NewLogger("main")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	overrides.apply(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(cfg.StorePath)
	if err != nil {
		return fmt.Errorf("opening store %s: %w", cfg.StorePath, err)
	}
	defer db.Close()

	recorder := metrics.NewRecorder(prometheus.DefaultRegisterer)
	metricsServer := serveMetrics(cfg.MetricsAddr, log)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	slackClient := slack.NewClient(cfg.Slack.Token)
	poster := slack.NewPoster(slackClient, cfg.Slack.ChannelID)

	pipe, err := newPipeline(cfg, poster, prow.NewFetcher(), db, recorder)
	if err != nil {
		return fmt.Errorf("building pipeline: %w", err)
	}

	watcher := config.NewWatcher(configPath, func(cfg *config.Config) {
		overrides.apply(cfg)
		pipe.UpdateConfig(cfg)
	})
	go func() {
		if err := watcher.Watch(ctx); err != nil {
			log.Error("config watcher stopped: %v", err)
		}
	}()

	scheduler := perf.NewScheduler(cfg.Perf.SummarySchedule, weeklySummary(db, poster, cfg.Slack.ChannelID))
	if err := scheduler.Start(ctx); err != nil {
		return fmt.Errorf("starting summary scheduler: %w", err)
	}
	defer scheduler.Stop()

	fetcher := slack.NewFetcher(
		slackClient,
		cfg.Slack.ChannelID,
		cfg.Slack.BotUserID,
		cfg.Slack.PollInterval.Std(),
		db,
		pipe.Process,
	)

	log.Info("bugzooka %s watching channel %s for %s failures", version, cfg.Slack.ChannelID, cfg.Product)
	if err := fetcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("shutting down")
	return nil
}

// serveMetrics starts the Prometheus scrape endpoint.
func serveMetrics(addr string, log *logx.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server: %v", err)
		}
	}()
	return server
}

// weeklySummary builds the scheduled week-over-week failure digest from the
// stored analyses and posts it to the channel.
func weeklySummary(db *store.Store, poster *slack.Poster, channelID string) perf.SummaryFunc {
	return func(ctx context.Context) error {
		now := time.Now().UTC()
		thisWeek, err := db.CategoryCounts(ctx, channelID, now.AddDate(0, 0, -7))
		if err != nil {
			return err
		}
		twoWeeks, err := db.CategoryCounts(ctx, channelID, now.AddDate(0, 0, -14))
		if err != nil {
			return err
		}

		return poster.PostSummary(ctx, "", renderWeeklySummary(thisWeek, twoWeeks))
	}
}

// renderWeeklySummary formats per-category failure counts for the last week
// with a week-over-week trend hint on the total.
func renderWeeklySummary(thisWeek, twoWeeks map[string]int) string {
	categories := make([]string, 0, len(thisWeek))
	thisTotal := 0
	for category, count := range thisWeek {
		categories = append(categories, category)
		thisTotal += count
	}
	sort.Strings(categories)

	// Counts since two weeks ago include this week; the difference is the
	// prior week alone.
	lastTotal := 0
	for _, count := range twoWeeks {
		lastTotal += count
	}
	lastTotal -= thisTotal

	var b strings.Builder
	fmt.Fprintf(&b, "Failures analyzed this week: %d\n", thisTotal)
	change, ok := perf.WeeklyChangeCalendar(
		[]float64{float64(thisTotal)},
		[]float64{float64(lastTotal)},
	)
	fmt.Fprintf(&b, "Week over week: %s%%\n", perf.WeeklyHint(change, ok, perf.HigherIsWorse, 10))
	b.WriteString(perf.Separator)
	b.WriteString("\n")
	if len(categories) == 0 {
		b.WriteString("No failures recorded.\n")
		return b.String()
	}
	for _, category := range categories {
		fmt.Fprintf(&b, "%-40s %d\n", category, thisWeek[category])
	}
	return b.String()
}
