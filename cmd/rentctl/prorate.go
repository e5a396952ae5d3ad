package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/warp/rent-engine/rent"
)

func newProrateCmd() *cobra.Command {
	var lease leaseFlags
	cmd := &cobra.Command{
		Use:     "prorate",
		Short:   "Pro-rate a monthly rent over [start, end)",
		Example: "  rentctl prorate --rent 1000 --start 2024-02-01 --end 2024-02-11",
		RunE: func(cmd *cobra.Command, _ []string) error {
			start, end, monthly, err := lease.parse()
			if err != nil {
				return err
			}
			amount, days := rent.CalculateProRation(monthly, start, end)
			fmt.Fprintf(cmd.OutOrStdout(), "%s for %d days (%d-day month)\n",
				amount.StringFixed(2), days, start.DaysInMonth())
			return nil
		},
	}
	lease.register(cmd)
	return cmd
}
