package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/dyluth/loft/internal/boardview"
	"github.com/dyluth/loft/internal/config"
	"github.com/dyluth/loft/internal/filter"
	"github.com/dyluth/loft/internal/printer"
	"github.com/dyluth/loft/internal/snapshot"
	"github.com/dyluth/loft/internal/timespec"
	"github.com/dyluth/loft/pkg/board"
	"github.com/spf13/cobra"
)

var (
	boardsOutputFormat string
	boardsSince        string
	boardsUntil        string
	boardsUser         string
	boardsGeometry     string
	boardsMinShapes    int
)

var boardsCmd = &cobra.Command{
	Use:   "boards",
	Short: "Inspect whiteboard checkpoints",
	Long: `Inspect the whiteboard checkpoints of a loft instance.

Checkpoints are read straight from the configured snapshot backend, so the
server does not need to be running.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var boardsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List checkpoints with filtering",
	Long: `List committed checkpoints, oldest first.

Output Formats:
  default - Human-readable table with number, contributor, shapes and age
  jsonl   - Line-delimited JSON, one complete checkpoint per line

Time Filters:
  --since  - Show checkpoints saved after this time
  --until  - Show checkpoints saved before this time

Content Filters:
  --user       - Filter by contributor (exact match)
  --geometry   - Only checkpoints holding a shape of this kind
  --min-shapes - Only checkpoints holding at least this many shapes

Examples:
  # List all checkpoints
  loft boards list

  # Checkpoints alice saved in the last hour
  loft boards list --user=alice --since=1h

  # Stream as JSONL for jq
  loft boards list --output=jsonl | jq '.shapes | length'`,
	Args: cobra.NoArgs,
	RunE: runBoardsList,
}

var boardsGetCmd = &cobra.Command{
	Use:   "get <number|latest>",
	Short: "Show one checkpoint as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runBoardsGet,
}

func init() {
	boardsListCmd.Flags().StringVarP(&boardsOutputFormat, "output", "o", "default", "Output format: default or jsonl")
	boardsListCmd.Flags().StringVar(&boardsSince, "since", "", "Show checkpoints after time (duration or RFC3339)")
	boardsListCmd.Flags().StringVar(&boardsUntil, "until", "", "Show checkpoints before time (duration or RFC3339)")
	boardsListCmd.Flags().StringVar(&boardsUser, "user", "", "Filter by contributor (exact match)")
	boardsListCmd.Flags().StringVar(&boardsGeometry, "geometry", "", "Filter by shape kind: rectangle, ellipse, line, polyline, text")
	boardsListCmd.Flags().IntVar(&boardsMinShapes, "min-shapes", 0, "Minimum number of shapes")

	boardsCmd.AddCommand(boardsListCmd)
	boardsCmd.AddCommand(boardsGetCmd)
	rootCmd.AddCommand(boardsCmd)
}

// buildCriteria turns the list flags into filter criteria.
func buildCriteria(now time.Time) (*filter.Criteria, error) {
	window, err := timespec.ParseRange(boardsSince, boardsUntil, now)
	if err != nil {
		return nil, printer.Error(
			"invalid time filter",
			err.Error(),
			[]string{"Use a duration (1h30m) or an RFC3339 timestamp (2025-10-29T13:00:00Z)"},
		)
	}

	geometry := board.GeometryKind(boardsGeometry)
	if geometry != "" {
		if err := geometry.Validate(); err != nil {
			return nil, printer.Error(
				"invalid geometry filter",
				err.Error(),
				[]string{"Valid kinds: rectangle, ellipse, line, polyline, text"},
			)
		}
	}

	if boardsMinShapes < 0 {
		return nil, printer.Error(
			"invalid shape filter",
			fmt.Sprintf("--min-shapes must not be negative, got %d", boardsMinShapes),
			nil,
		)
	}

	return &filter.Criteria{
		Window:    window,
		UserID:    boardsUser,
		Geometry:  geometry,
		MinShapes: boardsMinShapes,
	}, nil
}

// openBoardsStore opens the configured snapshot backend for reading.
func openBoardsStore(ctx context.Context) (*config.LoftConfig, *snapshot.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	redisOpts, err := cfg.RedisOptions()
	if err != nil {
		return nil, nil, err
	}

	store, err := openStore(ctx, cfg, redisOpts, nil)
	if err != nil {
		return nil, nil, printer.ErrorWithContext(
			"cannot open checkpoints",
			err.Error(),
			map[string]string{"Instance": cfg.Instance, "Backend": describeBackend(cfg)},
			[]string{"Check the snapshots section of your configuration"},
		)
	}
	return cfg, store, nil
}

func runBoardsList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	var format boardview.OutputFormat
	switch boardsOutputFormat {
	case "default":
		format = boardview.OutputFormatDefault
	case "jsonl":
		format = boardview.OutputFormatJSONL
	default:
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", boardsOutputFormat),
			[]string{"Valid formats: default, jsonl"},
		)
	}

	criteria, err := buildCriteria(time.Now())
	if err != nil {
		return err
	}

	cfg, store, err := openBoardsStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	return boardview.ListCheckpoints(ctx, store, cfg.Instance, format, criteria, cmd.OutOrStdout())
}

func runBoardsGet(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, store, err := openBoardsStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	err = boardview.GetCheckpoint(ctx, store, args[0], cmd.OutOrStdout())
	if boardview.IsNotFound(err) {
		suggestion := fmt.Sprintf("Instance '%s' has no checkpoints yet", cfg.Instance)
		if latest := store.GetSnapshotNumber(); latest > 0 {
			suggestion = fmt.Sprintf("Valid checkpoints are 1 to %d", latest)
		}
		return printer.Error("checkpoint not found", err.Error(), []string{suggestion})
	}
	return err
}
