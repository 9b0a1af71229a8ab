package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"screen-translate/src/config"
	"screen-translate/src/control"
	"screen-translate/src/pipeline"
)

type stressOptions struct {
	n        int
	action   string
	deadline time.Duration
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	opts := &stressOptions{}
	cmd := newRootCmd(opts)
	return cmd.Execute()
}

func newRootCmd(opts *stressOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "stress-control",
		Short:         "Stress test the resident's control endpoint",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			client := control.NewClient(cfg.ControlPortStart, cfg.ControlPortEnd)
			ctx, cancel := context.WithTimeout(context.Background(), opts.deadline)
			port, ok := client.Detect(ctx)
			cancel()
			if !ok {
				return control.ErrNoResident
			}
			client.BaseURL = fmt.Sprintf("http://127.0.0.1:%d", port)
			return runWithOptions(*opts, client, cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVar(&opts.n, "n", 50, "number of concurrent clients")
	cmd.Flags().StringVar(&opts.action, "action", "status", "status|toggle|start|stop|reload")
	cmd.Flags().DurationVar(&opts.deadline, "deadline", 5*time.Second, "per-client timeout")

	return cmd
}

type residentClient interface {
	Do(ctx context.Context, action control.Action) (pipeline.Status, error)
	Status(ctx context.Context) (pipeline.Status, error)
}

func runWithOptions(opts stressOptions, client residentClient, out io.Writer) error {
	var wg sync.WaitGroup
	var okCount, timeoutCount, errCount int32

	start := time.Now()
	for i := 0; i < opts.n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), opts.deadline)
			defer cancel()
			var err error
			if opts.action == "status" {
				_, err = client.Status(ctx)
			} else {
				_, err = client.Do(ctx, control.Action(opts.action))
			}
			switch {
			case err == nil:
				atomic.AddInt32(&okCount, 1)
			case errors.Is(err, context.DeadlineExceeded):
				atomic.AddInt32(&timeoutCount, 1)
			default:
				atomic.AddInt32(&errCount, 1)
			}
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)
	fmt.Fprintf(out, "launched=%d ok=%d timeout=%d err=%d elapsed=%s\n", opts.n, okCount, timeoutCount, errCount, elapsed)
	return nil
}
