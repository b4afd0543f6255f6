package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func newReconcileCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Repair the reservation projection from the calendars",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			snap := a.registry.Current()
			from := startOfDay(time.Now(), snap.Location)
			rep, err := a.orch.Reconcile(ctx, snap.Courts, from, from.AddDate(0, 0, days))
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if encErr := enc.Encode(rep); encErr != nil {
				return encErr
			}
			return err
		},
	}
	cmd.Flags().IntVar(&days, "days", 14, "number of days to reconcile, starting today")
	return cmd
}
