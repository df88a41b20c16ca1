package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	tiktok "github.com/RavensCloud/tiktok-scout"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	configPath string
	verbose    bool
	compact    bool

	cfg    tiktok.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "tiktok",
	Short: "Scrape TikTok profiles, searches and feeds",
	Long: `tiktok drives a headless browser through TikTok pages and prints the
ranked results as JSON.

Settings come from defaults, a .env file, an optional YAML file (--config)
and the environment, in that order.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = tiktok.LoadConfig(configPath)
		if err != nil {
			return err
		}
		level := cfg.LogLevel
		if verbose {
			level = "debug"
		}
		logger, err = tiktok.NewLogger(level, cfg.LogFormat)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&compact, "json", false, "Print compact single-line JSON")

	addPipelineFlags(videosCmd, true)
	addPipelineFlags(hashtagCmd, true)
	addPipelineFlags(searchCmd, true)
	addPipelineFlags(trendingCmd, true)
	addPipelineFlags(forYouCmd, false)

	sessionCmd.AddCommand(sessionCheckCmd)

	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(videosCmd)
	rootCmd.AddCommand(hashtagCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(trendingCmd)
	rootCmd.AddCommand(forYouCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

func newScraper() *tiktok.Scraper {
	return tiktok.New(cfg).WithLogger(logger)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	if !compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
