package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iliyamo/court-booking/internal/utils"
)

func newHashKeyCmd() *cobra.Command {
	var cost int
	cmd := &cobra.Command{
		Use:   "hash-key KEY",
		Short: "Print the bcrypt hash to put in ADMIN_KEY_HASH",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args[0]) < 12 {
				return errors.New("admin key must be at least 12 characters")
			}
			hash, err := utils.HashKey(args[0], cost)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
	cmd.Flags().IntVar(&cost, "cost", 12, "bcrypt cost")
	return cmd
}
