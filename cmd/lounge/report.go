package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/goodtune/lounge/internal/report"
	"github.com/goodtune/lounge/internal/storage"
	"github.com/spf13/cobra"
)

// filterFlags are the session filter options shared by list and report.
type filterFlags struct {
	period string
	from   string
	to     string
	device string
	status string
}

func addFilterFlags(cmd *cobra.Command, defaultPeriod string) *filterFlags {
	ff := &filterFlags{}
	cmd.Flags().StringVar(&ff.period, "period", defaultPeriod, "all, today, yesterday, week, month or custom")
	cmd.Flags().StringVar(&ff.from, "from", "", "First day of a custom period (YYYY-MM-DD)")
	cmd.Flags().StringVar(&ff.to, "to", "", "Last day of a custom period (YYYY-MM-DD)")
	cmd.Flags().StringVar(&ff.device, "device", "", "Only sessions on this device")
	cmd.Flags().StringVar(&ff.status, "status", "", "Only paid or unpaid sessions")
	return ff
}

// filter resolves the flags against the tracker's clock. Giving --from or
// --to implies a custom period.
func (ff *filterFlags) filter(a *app) (report.Filter, error) {
	period, err := report.ParsePeriod(ff.period)
	if err != nil {
		return report.Filter{}, err
	}

	fromDay, err := parseDay(ff.from, a.location)
	if err != nil {
		return report.Filter{}, err
	}
	toDay, err := parseDay(ff.to, a.location)
	if err != nil {
		return report.Filter{}, err
	}
	if !fromDay.IsZero() || !toDay.IsZero() {
		period = report.PeriodCustom
		if toDay.IsZero() {
			toDay = a.tracker.Now()
		}
		if fromDay.IsZero() {
			fromDay = toDay
		}
	}

	from, to, err := period.Range(a.tracker.Now(), a.location, fromDay, toDay)
	if err != nil {
		return report.Filter{}, err
	}

	var status storage.PaymentStatus
	if ff.status != "" {
		status = storage.PaymentStatus(ff.status)
		if !status.Valid() {
			return report.Filter{}, fmt.Errorf("invalid status: %s (must be paid or unpaid)", ff.status)
		}
	}

	return report.Filter{From: from, To: to, Device: ff.device, Status: status}, nil
}

func (ff *filterFlags) label() string {
	if ff.from != "" || ff.to != "" {
		return fmt.Sprintf("%s to %s", ff.from, ff.to)
	}
	return ff.period
}

func parseDay(s string, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date: %s (want YYYY-MM-DD)", s)
	}
	return t, nil
}

var (
	reportJSON   bool
	reportFlags  *filterFlags
	invoiceJSON  bool
	watchEnabled bool
	watchEvery   time.Duration
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print a sessions report for a period",
	Example: `  lounge report
  lounge report --period week --status unpaid
  lounge report --from 2024-03-01 --to 2024-03-31 --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(_ context.Context, a *app) error {
			filter, err := reportFlags.filter(a)
			if err != nil {
				return err
			}

			sessions := report.Apply(a.tracker.List(), filter)
			rates := a.tracker.Rates()
			now := a.tracker.Now()

			if reportJSON {
				export, err := a.calc.BuildExport(sessions, a.tracker.Settings(), now)
				if err != nil {
					return err
				}
				return report.WriteJSON(os.Stdout, export)
			}

			stats, err := a.calc.Aggregate(sessions, rates)
			if err != nil {
				return err
			}
			return a.calc.WriteDocument(os.Stdout, report.Document{
				Title:       "Sessions report",
				PeriodLabel: reportFlags.label(),
				GeneratedAt: now.In(a.location),
				Sessions:    sessions,
				Rates:       rates,
				Stats:       stats,
				MaxRows:     a.cfg.Reporting.MaxDocumentRows,
			}, a.formatter)
		})
	},
}

var invoiceCmd = &cobra.Command{
	Use:   "invoice ID",
	Short: "Print the invoice of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(_ context.Context, a *app) error {
			s, err := a.tracker.Get(args[0])
			if err != nil {
				return err
			}
			inv, err := a.calc.BuildInvoice(s, a.tracker.Rates(), a.tracker.Now())
			if err != nil {
				return err
			}
			if invoiceJSON {
				return report.WriteJSON(os.Stdout, inv)
			}
			return report.WriteInvoice(os.Stdout, inv, a.formatter)
		})
	},
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Show today's live figures",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app) error {
			if !watchEnabled {
				return a.printDashboard()
			}

			ticker := time.NewTicker(watchEvery)
			defer ticker.Stop()
			for {
				// Clear screen and home the cursor
				fmt.Print("\033[H\033[2J")
				if err := a.printDashboard(); err != nil {
					return err
				}
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					// Another process may be driving the ledger
					if err := a.tracker.Reload(ctx); err != nil {
						return err
					}
				}
			}
		})
	},
}

func (a *app) printDashboard() error {
	now := a.tracker.Now()
	d, err := a.calc.Live(a.tracker.List(), a.tracker.Rates(), now, a.location)
	if err != nil {
		return err
	}
	f := a.formatter

	printHeader(fmt.Sprintf("Lounge dashboard  %s", now.In(a.location).Format(report.DateTimeLayout)))
	printField("Active sessions", d.ActiveSessions)
	printField("Today sessions", d.TodaySessions)
	printField("Today revenue", f.Amount(d.TodayRevenue))
	printField("Running total", f.Amount(d.RunningTotal))
	printField("Played today", f.Hours(d.TodayPlayed))
	fmt.Println()

	active := a.tracker.ListActive()
	storage.SortByCreatedDesc(active)
	return a.printSessionTable(active)
}

func init() {
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "Print the JSON export of the matching sessions")
	reportFlags = addFilterFlags(reportCmd, string(report.PeriodToday))

	invoiceCmd.Flags().BoolVar(&invoiceJSON, "json", false, "Print the invoice as JSON")

	dashboardCmd.Flags().BoolVarP(&watchEnabled, "watch", "w", false, "Refresh continuously")
	dashboardCmd.Flags().DurationVar(&watchEvery, "interval", 5*time.Second, "Refresh interval with --watch")

	rootCmd.AddCommand(reportCmd, invoiceCmd, dashboardCmd)
}
