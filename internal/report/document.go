package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/goodtune/lounge/internal/billing"
	"github.com/goodtune/lounge/internal/storage"
)

// DefaultMaxRows caps the session table of a printed report.
const DefaultMaxRows = 15

// Document is a printable sessions report.
type Document struct {
	Title       string
	PeriodLabel string
	GeneratedAt time.Time
	Sessions    []storage.Session
	Rates       storage.RateSettings
	Stats       Stats
	MaxRows     int
}

// WriteDocument renders doc as a fixed-width text report: a header, the
// summary, a session table capped at MaxRows, and a footer.
func (c *Calculator) WriteDocument(w io.Writer, doc Document, f *Formatter) error {
	if f == nil {
		f = DefaultFormatter()
	}
	maxRows := doc.MaxRows
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}

	title := doc.Title
	if title == "" {
		title = "Sessions report"
	}

	var b strings.Builder
	rule := strings.Repeat("=", 72)
	fmt.Fprintln(&b, rule)
	fmt.Fprintln(&b, title)
	if doc.PeriodLabel != "" {
		fmt.Fprintf(&b, "Period:    %s\n", doc.PeriodLabel)
	}
	fmt.Fprintf(&b, "Generated: %s\n", doc.GeneratedAt.Format(DateTimeLayout))
	fmt.Fprintln(&b, rule)

	fmt.Fprintf(&b, "Sessions:      %d (%d ended)\n", doc.Stats.Count, doc.Stats.EndedCount)
	fmt.Fprintf(&b, "Revenue:       %s\n", f.Amount(doc.Stats.TotalRevenue))
	fmt.Fprintf(&b, "Unpaid:        %s\n", f.Amount(doc.Stats.UnpaidAmount))
	fmt.Fprintf(&b, "Hours played:  %s\n", f.Number(doc.Stats.TotalHours))
	fmt.Fprintln(&b)

	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DEVICE\tCUSTOMER\tPLAYERS\tSTART\tDURATION\tTOTAL\tPAYMENT\t")

	rows := min(len(doc.Sessions), maxRows)
	for i := 0; i < rows; i++ {
		s := &doc.Sessions[i]
		total, err := c.Total(s, doc.Rates, doc.GeneratedAt)
		if err != nil {
			return err
		}
		customer := s.CustomerName
		if customer == "" {
			customer = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			s.DeviceName,
			customer,
			s.PlayerCount,
			s.StartTime.Format(DateTimeLayout),
			f.Clock(billing.BillableDuration(s, doc.GeneratedAt)),
			f.Amount(total),
			s.PaymentStatus,
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if hidden := len(doc.Sessions) - rows; hidden > 0 {
		fmt.Fprintf(&b, "... and %d more sessions\n", hidden)
	}
	fmt.Fprintln(&b, rule)

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteInvoice renders an itemised bill.
func WriteInvoice(w io.Writer, inv *Invoice, f *Formatter) error {
	if f == nil {
		f = DefaultFormatter()
	}

	var b strings.Builder
	rule := strings.Repeat("-", 56)
	s := inv.Session

	fmt.Fprintf(&b, "Invoice %s\n", s.ID)
	fmt.Fprintf(&b, "Device:   %s\n", s.DeviceName)
	if s.CustomerName != "" {
		fmt.Fprintf(&b, "Customer: %s\n", s.CustomerName)
	}
	fmt.Fprintf(&b, "Started:  %s\n", s.StartTime.Format(DateTimeLayout))
	if s.Ended() {
		fmt.Fprintf(&b, "Ended:    %s\n", s.EndTime.Format(DateTimeLayout))
	} else {
		fmt.Fprintf(&b, "Issued:   %s (session still running)\n", inv.IssuedAt.Format(DateTimeLayout))
	}
	fmt.Fprintln(&b, rule)

	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', tabwriter.AlignRight)
	for _, line := range inv.Lines {
		fmt.Fprintf(tw, "%s\t%s\t%s\t\n", line.Description, line.Quantity, f.Amount(line.Amount))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "TOTAL: %s\n", f.Amount(inv.Breakdown.Total))
	fmt.Fprintf(&b, "Payment: %s\n", s.PaymentStatus)

	_, err := io.WriteString(w, b.String())
	return err
}
