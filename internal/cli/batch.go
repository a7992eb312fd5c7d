package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/claimcheck/internal/worker"
)

var (
	batchOut     string
	batchTimeout time.Duration
)

var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Check many claims from a file in parallel",
	Long: `Batch processes claims concurrently:
- Read claims from the input file (one per line, # comments and blank lines skipped)
- Drop duplicate claims
- Run each claim through the pipeline on a bounded worker pool
- Write one JSON line per claim, in input order

Example:
  claimcheck batch claims.txt
  claimcheck batch claims.txt --concurrency 8 --out results.jsonl
  claimcheck batch claims.txt -v --timeout 30m`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().Int("concurrency", 0, "number of concurrent claims (default from concurrency.workers)")
	batchCmd.Flags().StringVar(&batchOut, "out", "", "output file for JSON lines (default stdout)")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", time.Hour, "total timeout for the batch")
	_ = viper.BindPFlag("concurrency.workers", batchCmd.Flags().Lookup("concurrency"))
}

func runBatch(cmd *cobra.Command, args []string) (err error) {
	file := args[0]

	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, batchTimeout)
	defer cancel()

	a, err := newApp(ctx, cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(context.Background()) }()

	var out io.Writer = cmd.OutOrStdout()
	if batchOut != "" {
		f, err := os.Create(batchOut)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("close output: %w", cerr)
			}
		}()
		out = f
	}

	stderr := cmd.ErrOrStderr()
	_, _ = fmt.Fprintf(stderr, "Input file:   %s\n", file)
	_, _ = fmt.Fprintf(stderr, "Workers:      %d\n", cfg.Concurrency.Workers)
	_, _ = fmt.Fprintf(stderr, "Timeout:      %v\n\n", batchTimeout)

	processor := worker.NewBatchProcessor(a.processor, cfg.Concurrency.Workers)
	results, err := processor.ProcessFile(ctx, file)
	if err != nil {
		return err
	}

	if err := worker.WriteJSONLines(out, results, verbose); err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if r.Error != nil {
			failed++
			_, _ = fmt.Fprintf(stderr, "✗ %s: %s\n", r.Claim, userError(r.Error))
		}
	}
	_, _ = fmt.Fprintf(stderr, "\nTotal: %d  Success: %d  Failures: %d\n", len(results), len(results)-failed, failed)
	return nil
}
