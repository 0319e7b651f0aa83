// Command trade-etl runs the incremental trade ETL job.
//
// Usage:
//
//	trade-etl run    [config.yaml]   extract pending dates and update the log
//	trade-etl plan   [config.yaml]   print the pending dates only
//	trade-etl status [config.yaml]   print the watermark log
//
// The config path defaults to $TRADEETL_CONFIG, then config/tradeetl.yaml.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "trade-etl",
		Short:         "Incrementally extract dated trade records between object stores",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newPlanCmd(), newStatusCmd())
	return root
}
