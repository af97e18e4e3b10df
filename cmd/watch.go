package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/lead-qualify/internal/chain"
	"github.com/sells-group/lead-qualify/internal/watch"
)

var (
	watchDir      string
	watchIndustry string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Import lead files dropped into an inbox directory",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if watchDir != "" {
			cfg.Watch.Dir = watchDir
			cfg.Watch.ProcessedDir = ""
			cfg.Watch.FailedDir = ""
		}
		env, err := initEnv(ctx, "watch")
		if err != nil {
			return err
		}
		defer env.Close()

		w, err := watch.New(watch.Config{
			Dir:          cfg.Watch.Dir,
			ProcessedDir: cfg.Watch.ProcessedDir,
			FailedDir:    cfg.Watch.FailedDir,
			Debounce:     time.Duration(cfg.Watch.DebounceMs) * time.Millisecond,
			Source:       cfg.Watch.Source,
			Import:       chain.ImportOptions{IndustryID: watchIndustry},
		}, env.Chain)
		if err != nil {
			return err
		}
		return w.Run(ctx)
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchDir, "dir", "", "inbox directory (default from config)")
	watchCmd.Flags().StringVar(&watchIndustry, "industry", "", "industry id recorded on imported batches")
	rootCmd.AddCommand(watchCmd)
}
