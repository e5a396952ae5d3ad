package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/warp/rent-engine/rent"
)

func newScheduleCmd() *cobra.Command {
	var (
		lease  leaseFlags
		dueDay int
		format string
	)
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Print the billing periods of a lease",
		Example: "  rentctl schedule --start 2024-01-20 --end 2025-01-20 --rent 1000 --due-day 1\n" +
			"  rentctl schedule --start 2024-01-01 --end 2024-07-01 --rent 950 --format json",
		RunE: func(cmd *cobra.Command, _ []string) error {
			start, end, monthly, err := lease.parse()
			if err != nil {
				return err
			}
			l := rent.Lease{
				TenantID:    "rentctl",
				Start:       start,
				End:         end,
				MonthlyRent: monthly,
				RentDueDay:  dueDay,
			}
			if err := l.Validate(); err != nil {
				return err
			}
			periods, err := l.Periods()
			if err != nil {
				return err
			}

			switch format {
			case "json":
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(periods)
			case "table":
				return printSchedule(cmd.OutOrStdout(), periods)
			default:
				return fmt.Errorf("unsupported --format %q (use table or json)", format)
			}
		},
	}
	lease.register(cmd)
	cmd.Flags().IntVar(&dueDay, "due-day", 1, "Day of month rent is due (1-28)")
	cmd.Flags().StringVar(&format, "format", "table", "Output format: table or json")
	return cmd
}

func printSchedule(out io.Writer, periods []rent.BillingPeriod) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tSTART\tEND\tDUE\tDAYS\tAMOUNT\tPRO-RATED")
	for i, p := range periods {
		prorated := ""
		if p.IsProRated {
			prorated = "yes"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\t%s\n",
			i+1, p.PeriodStart, p.PeriodEnd, p.DueDate, p.Days(), p.AmountDue.StringFixed(2), prorated)
	}
	fmt.Fprintf(tw, "\t\t\t\t\t%s\t\n", rent.TotalDue(periods).StringFixed(2))
	return tw.Flush()
}
