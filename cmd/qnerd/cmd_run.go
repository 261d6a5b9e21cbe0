package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"querynerd/internal/report"
	"querynerd/internal/store"
)

var (
	jsonOutput  bool
	concurrency int
)

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	if timeout <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	a, err := openApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	run, err := a.execute(ctx, joinArgs(args))
	if err != nil {
		return err
	}
	return printRun(cmd.OutOrStdout(), run)
}

func runBatch(cmd *cobra.Command, args []string) error {
	queries, err := readQueries(cmd.InOrStdin(), args[0])
	if err != nil {
		return err
	}
	if len(queries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No queries found.")
		return nil
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	a, err := openApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	runs, err := a.executeAll(ctx, queries, concurrency)
	if err != nil {
		return err
	}

	a.log.Info("batch complete", zap.Int("queries", len(queries)))

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		for _, run := range runs {
			if err := enc.Encode(run); err != nil {
				return err
			}
		}
		return nil
	}
	for _, run := range runs {
		fmt.Fprintln(out, report.Summary(run.State))
		fmt.Fprintf(out, "run %s\n\n", run.ID)
	}
	return nil
}

// executeAll runs queries concurrently, at most limit at a time. A failed
// query does not cancel the others; the first error is returned after all
// have finished.
func (a *app) executeAll(ctx context.Context, queries []string, limit int) ([]store.Run, error) {
	runs := make([]store.Run, len(queries))
	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, q := range queries {
		g.Go(func() error {
			run, err := a.execute(ctx, q)
			runs[i] = run
			if err != nil {
				return fmt.Errorf("query %d: %w", i+1, err)
			}
			return nil
		})
	}
	return runs, g.Wait()
}

// readQueries reads one query per non-blank line; "-" reads in.
func readQueries(in io.Reader, path string) ([]string, error) {
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open queries: %w", err)
		}
		defer f.Close()
		in = f
	}

	var queries []string
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		queries = append(queries, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read queries: %w", err)
	}
	return queries, nil
}

func printRun(out io.Writer, run store.Run) error {
	if jsonOutput {
		data, err := json.MarshalIndent(run, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}

	rendered, err := report.Render(report.Markdown(run.State), 100, true)
	if err != nil {
		return err
	}
	fmt.Fprint(out, rendered)
	fmt.Fprintln(out, report.Summary(run.State))
	fmt.Fprintf(out, "\nrun %s\n", run.ID)
	return nil
}

func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
