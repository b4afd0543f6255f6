package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var level string
	root := &cobra.Command{
		Use:           "court-booking",
		Short:         "Court reservations on shared calendars, with split payments",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			lvl, err := logrus.ParseLevel(level)
			if err != nil {
				return err
			}
			logrus.SetLevel(lvl)
			logrus.SetFormatter(&logrus.JSONFormatter{})
			return nil
		},
	}
	root.PersistentFlags().StringVar(&level, "log-level", "info", "logrus level (debug, info, warn, error)")

	root.AddCommand(newServeCmd())
	root.AddCommand(newReconcileCmd())
	root.AddCommand(newSlotsCmd())
	root.AddCommand(newHashKeyCmd())
	return root
}
