package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	appcfg "github.com/m5stack/m5doc/internal/config"
	"github.com/m5stack/m5doc/internal/metrics"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cumulative knowledge search counts",
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := appcfg.LoadUsageStats(configFilePath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.Enabled {
		return fmt.Errorf("usage statistics are disabled (USAGE_STATS_ENABLED=false)")
	}

	store, err := metrics.NewStore(cfg.Path)
	if err != nil {
		return fmt.Errorf("failed to open usage statistics: %w", err)
	}
	defer func() { _ = store.Close() }()

	totals, err := store.Totals(cmd.Context())
	if err != nil {
		return err
	}
	return printStats(cmd.OutOrStdout(), totals)
}

func printStats(out io.Writer, totals map[metrics.Mode]int64) error {
	var sum int64
	for _, mode := range metrics.Modes {
		if _, err := fmt.Fprintf(out, "%-8s %d\n", mode, totals[mode]); err != nil {
			return err
		}
		sum += totals[mode]
	}
	_, err := fmt.Fprintf(out, "%-8s %d\n", "total", sum)
	return err
}

// openUsageRecorder opens the usage store when enabled. Failures disable
// counting rather than the command.
func openUsageRecorder(cfg *appcfg.Config, log *zap.Logger) (*metrics.Store, *metrics.Recorder) {
	if !cfg.UsageStatsEnabled {
		return nil, metrics.NewRecorder(nil, log)
	}
	store, err := metrics.NewStore(cfg.UsageStatsPath)
	if err != nil {
		log.Warn("usage statistics disabled", zap.Error(err))
		return nil, metrics.NewRecorder(nil, log)
	}
	return store, metrics.NewRecorder(store, log)
}
