package main

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"time"

	tiktok "github.com/RavensCloud/tiktok-scout"
	"github.com/RavensCloud/tiktok-scout/internal/api"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	maxItems int
	enrich   bool
)

func addPipelineFlags(cmd *cobra.Command, withEnrich bool) {
	cmd.Flags().IntVar(&maxItems, "max", 0, "Maximum records (default from MAX_VIDEOS)")
	if withEnrich {
		cmd.Flags().BoolVar(&enrich, "enrich", false, "Visit each video for likes, comments, shares and views")
	}
}

func pipelineOptions() tiktok.Options {
	return tiktok.Options{Max: maxItems, Enrich: enrich}
}

// printResult prints res and turns a failed run into a non-zero exit.
func printResult(cmd *cobra.Command, res tiktok.Result) error {
	if err := printJSON(cmd.OutOrStdout(), res); err != nil {
		return err
	}
	if res.Meta.Status == tiktok.StatusFailed {
		return fmt.Errorf("%s failed (%s): %s", res.Meta.Pipeline, res.Meta.Reason, res.Meta.Error)
	}
	return nil
}

var profileCmd = &cobra.Command{
	Use:   "profile <username>",
	Short: "Scrape a profile header",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()
		res, err := newScraper().Profile(ctx, args[0])
		if err != nil {
			return err
		}
		return printResult(cmd, res)
	},
}

var videosCmd = &cobra.Command{
	Use:   "videos <username>",
	Short: "Scrape a profile and its top videos ranked by views",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()
		res, err := newScraper().ProfileWithVideos(ctx, args[0], pipelineOptions())
		if err != nil {
			return err
		}
		return printResult(cmd, res)
	},
}

var hashtagCmd = &cobra.Command{
	Use:   "hashtag <tag>",
	Short: "Search a hashtag and rank the videos by views",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()
		return printResult(cmd, newScraper().Hashtag(ctx, args[0], pipelineOptions()))
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <keyword>",
	Short: "Search a keyword and rank the videos by views",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()
		return printResult(cmd, newScraper().Search(ctx, args[0], pipelineOptions()))
	},
}

var trendingCmd = &cobra.Command{
	Use:   "trending",
	Short: "Scrape the explore feed ranked by likes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()
		return printResult(cmd, newScraper().Trending(ctx, pipelineOptions()))
	},
}

var forYouCmd = &cobra.Command{
	Use:   "foryou",
	Short: "Scrape the For You feed of the saved session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()
		return printResult(cmd, newScraper().ForYou(ctx, pipelineOptions()))
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in through a visible browser and save the session",
	Long: `Opens the login page in a visible browser window. Log in by hand, then
press Enter in this terminal to capture the session cookies.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()
		s := newScraper()
		sess, err := s.Login(ctx, waitForEnter(cmd))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Session saved to %s (%d cookies)\n",
			s.Sessions().Path(), len(sess.Cookies))
		return nil
	},
}

// waitForEnter blocks until a line is read from stdin or ctx is done.
func waitForEnter(cmd *cobra.Command) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		fmt.Fprintln(cmd.OutOrStdout(), "Log in in the browser window, then press Enter here.")
		done := make(chan error, 1)
		go func() {
			_, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			done <- err
		}()
		select {
		case err := <-done:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect the saved session",
}

var sessionCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the saved session against the live site",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()
		sess, err := newScraper().CheckSession(ctx)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"state":     sess.State().String(),
			"cookies":   len(sess.Cookies),
			"createdAt": sess.CreatedAt,
		})
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the pipelines over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()
		srv := api.New(newScraper(), logger)
		addr := ":" + strconv.Itoa(cfg.Port)
		logger.Info("starting server", zap.String("addr", addr), zap.String("engine", cfg.BrowserEngine))
		return api.ListenAndServe(ctx, addr, srv.Handler(), 30*time.Second, logger)
	},
}
