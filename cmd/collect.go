package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/dealfeed-collector/internal/pipeline"
)

type collectOptions struct {
	every   time.Duration
	noTable bool
}

func newCollectCmd() *cobra.Command {
	opts := &collectOptions{}
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Runs the collection pipeline over the latest channel messages",
		Long: `Fetches one bounded page of channel messages, processes each one and
exports the batch. With --every the pass repeats until interrupted and the
ops server (when ops.addr is set) keeps serving health and metrics between
passes.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCollect(cmd, opts)
		},
	}
	cmd.Flags().DurationVar(&opts.every, "every", 0, "repeat the pass at this interval (0 runs once)")
	cmd.Flags().BoolVar(&opts.noTable, "no-table", false, "skip the summary table")
	return cmd
}

func runCollect(cmd *cobra.Command, opts *collectOptions) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp(appInstance)
	logger := appInstance.Logger()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opsErr := make(chan error, 1)
	if addr := appInstance.Config().Ops.Addr; addr != "" {
		go func() { opsErr <- appInstance.Ops().Serve(ctx, addr) }()
	} else {
		close(opsErr)
	}
	appInstance.Ops().SetReady(true)

	var runErr error
	for {
		runErr = collectOnce(ctx, appInstance, cmd.OutOrStdout(), opts)
		if opts.every <= 0 || ctx.Err() != nil {
			break
		}
		logger.Info("waiting for next pass", zap.Duration("every", opts.every))
		select {
		case <-ctx.Done():
		case <-time.After(opts.every):
		}
		if ctx.Err() != nil {
			break
		}
	}

	stop()
	if err, ok := <-opsErr; ok && err != nil {
		logger.Error("ops server error", zap.Error(err))
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	logger.Info("collect command finished")
	return nil
}

func collectOnce(ctx context.Context, appInstance App, out io.Writer, opts *collectOptions) error {
	runID, err := appInstance.NewRunID()
	if err != nil {
		return err
	}
	sum, err := appInstance.Run(ctx, runID)
	appInstance.Ops().RecordRun(sum, appInstance.Clock().Now(), err)
	if !opts.noTable {
		renderSummary(out, sum)
	}
	if err != nil {
		return fmt.Errorf("run %s: %w", runID, err)
	}
	return nil
}

func renderSummary(out io.Writer, sum pipeline.Summary) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetTitle("Run " + sum.RunID)
	t.AppendHeader(table.Row{"Metric", "Count"})
	t.AppendRows([]table.Row{
		{"Messages scanned", sum.Scanned},
		{"Records produced", sum.Produced},
		{"Messages skipped", sum.Skipped},
		{"Captcha pages", sum.Captchas},
		{"Resolution errors", sum.ResolveErrors},
		{"Media ingest failures", sum.IngestFailures},
		{"Store write failures", sum.StoreFailures},
		{"Notifications published", sum.Published},
	})
	t.SetStyle(table.StyleRounded)
	t.Render()
}
