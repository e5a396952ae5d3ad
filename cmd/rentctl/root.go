package main

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/warp/rent-engine/rent"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "rentctl",
		Short:         "Rent schedule calculator",
		Long:          "Generate billing periods and pro-rated amounts for a lease without touching a database.",
		SilenceUsage:  true,
	}
	root.AddCommand(newScheduleCmd(), newProrateCmd())
	return root
}

// leaseFlags are the lease terms shared by the subcommands.
type leaseFlags struct {
	start string
	end   string
	rent  string
}

func (f *leaseFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.start, "start", "", "Lease start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.end, "end", "", "Lease end date, exclusive (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.rent, "rent", "", "Monthly rent, e.g. 1450.00")
	cmd.MarkFlagRequired("start")
	cmd.MarkFlagRequired("end")
	cmd.MarkFlagRequired("rent")
}

func (f *leaseFlags) parse() (start, end rent.Date, monthly decimal.Decimal, err error) {
	if start, err = rent.ParseDate(f.start); err != nil {
		return start, end, monthly, fmt.Errorf("invalid --start: %w", err)
	}
	if end, err = rent.ParseDate(f.end); err != nil {
		return start, end, monthly, fmt.Errorf("invalid --end: %w", err)
	}
	if monthly, err = decimal.NewFromString(f.rent); err != nil {
		return start, end, monthly, fmt.Errorf("invalid --rent %q: %w", f.rent, err)
	}
	return start, end, monthly, nil
}
