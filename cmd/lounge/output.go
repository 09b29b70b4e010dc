package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/goodtune/lounge/internal/report"
	"github.com/goodtune/lounge/internal/storage"
)

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	labelColor  = color.New(color.FgWhite, color.Bold)
	okColor     = color.New(color.FgGreen, color.Bold)
	warnColor   = color.New(color.FgYellow, color.Bold)
	dimColor    = color.New(color.Faint)
)

func printHeader(title string) {
	fmt.Println()
	_, _ = headerColor.Println(title)
	fmt.Println()
}

func printField(label string, value any) {
	_, _ = labelColor.Printf("%-16s ", label+":")
	fmt.Println(value)
}

func printOK(format string, args ...any) {
	_, _ = okColor.Print("✓ ")
	fmt.Printf(format+"\n", args...)
}

func statusLabel(s *storage.Session) string {
	switch {
	case s.Ended():
		return dimColor.Sprint("ended")
	case s.IsPaused:
		return warnColor.Sprint("paused")
	default:
		return okColor.Sprint("active")
	}
}

func paymentLabel(status storage.PaymentStatus) string {
	if status == storage.PaymentPaid {
		return okColor.Sprint("paid")
	}
	return warnColor.Sprint("unpaid")
}

func (a *app) formatTime(t time.Time) string {
	return t.In(a.location).Format(report.DateTimeLayout)
}

// printSession shows one session with its live bill.
func (a *app) printSession(s storage.Session) error {
	now := a.tracker.Now()
	bill, err := a.calc.Breakdown(&s, a.tracker.Rates(), now)
	if err != nil {
		return err
	}
	f := a.formatter

	printHeader(fmt.Sprintf("Session %s", s.ID))
	printField("Device", s.DeviceName)
	printField("Players", s.PlayerCount)
	if s.CustomerName != "" {
		printField("Customer", s.CustomerName)
	}
	printField("Status", statusLabel(&s))
	printField("Started", a.formatTime(s.StartTime))
	if s.EndTime != nil {
		printField("Ended", a.formatTime(*s.EndTime))
	}
	printField("Duration", f.Clock(bill.Duration))
	if s.TotalPausedDuration > 0 {
		printField("Paused", f.Clock(s.TotalPausedDuration))
	}
	printField("Rate", f.Amount(bill.Rate)+" / hour")
	printField("Play time", f.Amount(bill.SessionCost))

	if len(s.Orders) > 0 {
		fmt.Println()
		_, _ = labelColor.Println("Orders:")
		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
		for _, o := range s.Orders {
			fmt.Fprintf(tw, "  %d × %s\t%s\t\n", o.Quantity, o.ItemName, f.Amount(o.TotalPrice))
		}
		_ = tw.Flush()
		printField("Orders total", f.Amount(bill.OrdersTotal))
	}

	fmt.Println()
	printField("TOTAL", headerColor.Sprint(f.Amount(bill.Total)))
	printField("Payment", paymentLabel(s.PaymentStatus))
	fmt.Println()
	return nil
}

// printSessionTable lists sessions one per row.
func (a *app) printSessionTable(sessions []storage.Session) error {
	if len(sessions) == 0 {
		_, _ = dimColor.Println("No sessions")
		return nil
	}

	now := a.tracker.Now()
	rates := a.tracker.Rates()
	f := a.formatter

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDEVICE\tPLAYERS\tCUSTOMER\tSTART\tDURATION\tTOTAL\tSTATUS\tPAYMENT")
	for i := range sessions {
		s := &sessions[i]
		bill, err := a.calc.Breakdown(s, rates, now)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			s.ID, s.DeviceName, s.PlayerCount, s.CustomerName, a.formatTime(s.StartTime),
			f.Clock(bill.Duration), f.Amount(bill.Total), statusLabel(s), paymentLabel(s.PaymentStatus))
	}
	return tw.Flush()
}
