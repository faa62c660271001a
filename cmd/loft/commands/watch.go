package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dyluth/loft/internal/printer"
	"github.com/dyluth/loft/internal/watch"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var (
	watchCheckpoints bool
	watchContent     bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Monitor real-time instance activity",
	Long: `Stream relayed content messages and committed checkpoints as they happen.

Requires the instance to be configured with Redis. Delivery is best
effort: activity published while watch is not connected is not replayed.

Examples:
  # Watch everything
  loft watch

  # Only checkpoints
  loft watch --content=false`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchCheckpoints, "checkpoints", true, "Show committed checkpoints")
	watchCmd.Flags().BoolVar(&watchContent, "content", true, "Show relayed content messages")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	redisOpts, err := clientRedisOptions(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()

	sub, err := watch.Subscribe(ctx, rdb, cfg.Instance, watch.Options{
		Checkpoints: watchCheckpoints,
		Content:     watchContent,
	})
	if err != nil {
		return printer.ErrorWithContext(
			"cannot watch instance",
			err.Error(),
			map[string]string{"Instance": cfg.Instance, "Redis": redisOpts.Addr},
			[]string{"Check that the loft server's Redis is reachable"},
		)
	}
	defer sub.Close()

	printer.Step("Watching instance '%s' (Ctrl+C to stop)\n", cfg.Instance)
	return streamEvents(ctx, sub, cmd)
}

// streamEvents prints events until ctx ends or the subscription closes.
func streamEvents(ctx context.Context, sub *watch.Subscription, cmd *cobra.Command) error {
	out := cmd.OutOrStdout()
	events := sub.Events()
	errs := sub.Errors()

	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-events:
			if !ok {
				return nil
			}
			fmt.Fprintf(out, "%s  %s\n", time.Now().Format("15:04:05"), watch.Describe(e))
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			printer.Warning("%v\n", err)
		}
	}
}
