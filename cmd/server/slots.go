package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/iliyamo/court-booking/internal/slots"
)

func newSlotsCmd() *cobra.Command {
	var date, at string
	cmd := &cobra.Command{
		Use:   "slots",
		Short: "Print free slots of a day, or the slot and alternatives for a time",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := newCalendarApp(ctx)
			if err != nil {
				return err
			}
			snap := a.registry.Current()
			out := cmd.OutOrStdout()

			if at != "" {
				when, err := time.ParseInLocation("2006-01-02T15:04", at, snap.Location)
				if err != nil {
					return fmt.Errorf("--at: %w", err)
				}
				slot, err := a.alloc.FindExactSlot(ctx, snap.Courts, when)
				if err != nil {
					fmt.Fprintln(out, "warning:", err)
				}
				if slot != nil {
					fmt.Fprintf(out, "free: %s %s\n", slot.Court.Name, slot.Start.Format("15:04"))
					return nil
				}
				near, err := a.alloc.FindNearestAlternatives(ctx, snap.Courts, when, slots.DefaultAlternatives)
				fmt.Fprintln(out, "no court free at", when.Format("15:04"))
				for _, s := range near {
					fmt.Fprintf(out, "  alternative: %s %s-%s\n", s.Court.Name, s.Start.Format("15:04"), s.End.Format("15:04"))
				}
				return err
			}

			day := startOfDay(time.Now(), snap.Location)
			if date != "" {
				if day, err = time.ParseInLocation("2006-01-02", date, snap.Location); err != nil {
					return fmt.Errorf("--date: %w", err)
				}
			}
			free, err := a.alloc.FindAllFreeSlots(ctx, snap.Courts, day)
			for _, s := range free {
				fmt.Fprintf(out, "%s  %s-%s  %s\n", day.Format("2006-01-02"), s.Start.Format("15:04"), s.End.Format("15:04"), s.Court.Name)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "day to list (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&at, "at", "", "exact start to look up (YYYY-MM-DDTHH:MM)")
	return cmd
}
