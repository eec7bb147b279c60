package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/scan-insights/internal/adapters/store"
	"github.com/mikey/scan-insights/internal/core"
	"github.com/mikey/scan-insights/internal/logging"
)

var (
	// Policy flags
	windowDays    = flag.Int("window-days", 30, "Trailing window in days for trends and risk")
	highRatio     = flag.Float64("high-risk-ratio", 0.5, "Scam+suspicious proportion for high risk")
	mediumRatio   = flag.Float64("medium-risk-ratio", 0.2, "Scam+suspicious proportion for medium risk")
	spikePercent  = flag.Int("spike-percent", 30, "Week-over-week scam increase that counts as a spike")
	activityLimit = flag.Int("activity-limit", 10, "Scans per week that count as high activity")

	// Input flags
	inputFile = flag.String("file", "", "Scan history JSON file (use stdin if not specified)")
	userID    = flag.String("user", "cli", "User id for alert generation")
	asOf      = flag.String("now", "", "Reference time, RFC3339 (defaults to the current time)")
	verbose   = flag.Bool("verbose", false, "Enable verbose logging")
	jsonLog   = flag.Bool("json-log", false, "Output logs in JSON format")
)

func main() {
	flag.Parse()

	// Initialize logger
	logger, err := logging.InitConsoleLogger(*verbose, *jsonLog)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	now := time.Now()
	if *asOf != "" {
		now, err = time.Parse(time.RFC3339, *asOf)
		if err != nil {
			logger.Fatal("Failed to parse -now", zap.Error(err))
		}
	}

	// Read scan history from file or stdin
	var historyReader io.Reader
	if *inputFile != "" {
		file, err := os.Open(*inputFile)
		if err != nil {
			logger.Fatal("Failed to open input file", zap.Error(err), zap.String("file", *inputFile))
		}
		defer file.Close()
		historyReader = file
		logger.Info("Reading scan history from file", zap.String("file", *inputFile))
	} else {
		historyReader = os.Stdin
		logger.Info("Reading scan history from stdin")
	}

	var records []core.ScanRecord
	if err := json.NewDecoder(historyReader).Decode(&records); err != nil {
		logger.Fatal("Failed to parse scan history", zap.Error(err))
	}

	thresholds := core.Thresholds{
		TrendWindowDays:     *windowDays,
		HighRiskRatio:       *highRatio,
		MediumRiskRatio:     *mediumRatio,
		SpikePercent:        *spikePercent,
		WeeklyActivityLimit: *activityLimit,
	}

	calculator := core.NewCalculator(thresholds)
	generator := core.NewGenerator(store.NewMemoryStore(logger), thresholds, logger)

	snapshot := calculator.Snapshot(records, now)
	alerts := generator.Generate(context.Background(), *userID, snapshot)

	printSnapshot(snapshot)
	printAlerts(alerts)
}

func printSnapshot(snapshot core.MetricsSnapshot) {
	fmt.Printf("\n=== Insights ===\n")
	fmt.Printf("Scans: %d (all-time scams: %d)\n", snapshot.TotalScans, snapshot.AllTimeScams)
	fmt.Printf("Risk level: %s\n", snapshot.RiskLevel)

	wk := snapshot.WeeklyComparison
	fmt.Printf("This week: %d scans, %d scams (%+d%% / %+d%% vs last week)\n",
		wk.ThisWeek.Total, wk.ThisWeek.Scams,
		wk.PercentageChanges.Total, wk.PercentageChanges.Scams)

	if snapshot.PeakTimes.PeakHour != nil && snapshot.PeakTimes.PeakDay != nil {
		fmt.Printf("Peak activity: %s around %02d:00\n", *snapshot.PeakTimes.PeakDay, *snapshot.PeakTimes.PeakHour)
	}

	fmt.Printf("\nScan types:\n")
	for _, st := range core.ScanTypes {
		stat := snapshot.ScanTypeDistribution[st]
		fmt.Printf("  %-5s %4d (%d%%)\n", st, stat.Count, stat.Percentage)
	}

	if len(snapshot.ScamTypeBreakdown) > 0 {
		keys := make([]string, 0, len(snapshot.ScamTypeBreakdown))
		for key := range snapshot.ScamTypeBreakdown {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		fmt.Printf("\nScam types (last %d days):\n", len(snapshot.DailyTrends))
		for _, key := range keys {
			entry := snapshot.ScamTypeBreakdown[key]
			fmt.Printf("  %-20s %d\n", entry.Label, entry.Count)
		}
	}
}

func printAlerts(alerts []core.Alert) {
	fmt.Printf("\n=== Alerts ===\n")
	if len(alerts) == 0 {
		fmt.Printf("(none)\n")
		return
	}
	for _, a := range alerts {
		dismissible := "dismissible"
		if !a.Dismissible {
			dismissible = "pinned"
		}
		fmt.Printf("[%s] %s (%s, %s)\n", a.Severity, a.Message, a.ID, dismissible)
	}
}
