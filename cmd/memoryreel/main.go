package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kikiluvv/memoryreel/internal/config"
	"github.com/kikiluvv/memoryreel/internal/logging"
)

var (
	cfgFile string
	verbose bool
	quiet   bool
	jsonLog bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "memoryreel",
	Short: "memoryreel - vertical highlight videos from a folder of home videos",
	Long: "Takes one short clip per video, around the best face or a chosen person, and joins them " +
		"into a 540x960 highlight with an optional title and background music.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Init(logging.Options{Verbose: verbose, Quiet: quiet, JSON: jsonLog})

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		cmd.SetContext(config.WithConfig(cmd.Context(), cfg))
		cmd.SilenceUsage = true
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./memoryreel.yaml or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "only warnings and errors, no progress bars")
	rootCmd.PersistentFlags().BoolVar(&jsonLog, "json", false, "log as JSON lines")

	rootCmd.AddCommand(makeCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(configCmd)
}
