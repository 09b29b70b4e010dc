package report

import (
	"encoding/json"
	"io"
	"time"

	"github.com/goodtune/lounge/internal/billing"
	"github.com/goodtune/lounge/internal/storage"
)

// ExportVersion is the schema version written to JSON exports.
const ExportVersion = "1.0"

// ExportMetadata heads a JSON export.
type ExportMetadata struct {
	ExportedAt    time.Time `json:"exportedAt"`
	TotalSessions int       `json:"totalSessions"`
	Version       string    `json:"version"`
}

// ExportedOrder is an order with a human-readable timestamp.
type ExportedOrder struct {
	ItemName   string  `json:"itemName"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unitPrice"`
	TotalPrice float64 `json:"totalPrice"`
	CreatedAt  string  `json:"createdAt"`
}

// ExportedSession is a normalized session row with its bill.
type ExportedSession struct {
	ID                  string          `json:"id"`
	DeviceName          string          `json:"deviceName"`
	PlayerCount         string          `json:"playerCount"`
	CustomerName        string          `json:"customerName"`
	StartTime           string          `json:"startTime"`
	EndTime             string          `json:"endTime,omitempty"`
	Status              string          `json:"status"` // "active" or "ended"
	PaymentStatus       string          `json:"paymentStatus"`
	TotalPausedDuration int64           `json:"totalPausedDuration"`
	Duration            int64           `json:"duration"` // billable milliseconds
	Hours               float64         `json:"hours"`
	Rate                float64         `json:"rate"`
	SessionCost         float64         `json:"sessionCost"`
	OrdersTotal         float64         `json:"ordersTotal"`
	Total               float64         `json:"total"`
	Orders              []ExportedOrder `json:"orders"`
	CreatedAt           string          `json:"createdAt"`
}

// Export is the full JSON export document.
type Export struct {
	Metadata ExportMetadata    `json:"metadata"`
	Settings storage.Settings  `json:"settings"`
	Sessions []ExportedSession `json:"sessions"`
	Summary  Summary           `json:"summary"`
}

// BuildExport normalizes sessions for export. Sessions are listed most recent
// first and active ones are billed at now.
func (c *Calculator) BuildExport(sessions []storage.Session, settings storage.Settings, now time.Time) (*Export, error) {
	sorted := Apply(sessions, Filter{})

	summary, err := c.Summarize(sorted, settings.Rates)
	if err != nil {
		return nil, err
	}

	rows := make([]ExportedSession, 0, len(sorted))
	for i := range sorted {
		row, err := c.exportSession(&sorted[i], settings.Rates, now)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}

	return &Export{
		Metadata: ExportMetadata{
			ExportedAt:    now,
			TotalSessions: len(sorted),
			Version:       ExportVersion,
		},
		Settings: settings,
		Sessions: rows,
		Summary:  summary,
	}, nil
}

func (c *Calculator) exportSession(s *storage.Session, rates storage.RateSettings, now time.Time) (ExportedSession, error) {
	b, err := c.Breakdown(s, rates, now)
	if err != nil {
		return ExportedSession{}, err
	}

	row := ExportedSession{
		ID:                  s.ID,
		DeviceName:          s.DeviceName,
		PlayerCount:         string(s.PlayerCount),
		CustomerName:        s.CustomerName,
		StartTime:           s.StartTime.Format(storage.ExportTimeLayout),
		Status:              "active",
		PaymentStatus:       string(s.PaymentStatus),
		TotalPausedDuration: s.TotalPausedDuration.Milliseconds(),
		Duration:            b.DurationMS,
		Hours:               b.Hours,
		Rate:                b.Rate,
		SessionCost:         b.SessionCost,
		OrdersTotal:         b.OrdersTotal,
		Total:               b.Total,
		Orders:              make([]ExportedOrder, 0, len(s.Orders)),
		CreatedAt:           s.CreatedAt.Format(storage.ExportTimeLayout),
	}
	if s.Ended() {
		row.Status = "ended"
		row.EndTime = s.EndTime.Format(storage.ExportTimeLayout)
	}
	for _, o := range s.Orders {
		row.Orders = append(row.Orders, ExportedOrder{
			ItemName:   o.ItemName,
			Quantity:   o.Quantity,
			UnitPrice:  o.UnitPrice,
			TotalPrice: o.TotalPrice,
			CreatedAt:  o.CreatedAt.Format(storage.ExportTimeLayout),
		})
	}
	return row, nil
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// InvoiceLine is one row of an invoice.
type InvoiceLine struct {
	Description string
	Quantity    string
	Amount      float64
}

// Invoice is the printable bill of one session.
type Invoice struct {
	Session   storage.Session
	Breakdown billing.Breakdown
	Lines     []InvoiceLine
	IssuedAt  time.Time
}

// BuildInvoice itemises a session: a play time line, one line per order and
// the total from the breakdown.
func (c *Calculator) BuildInvoice(s storage.Session, rates storage.RateSettings, now time.Time) (*Invoice, error) {
	b, err := c.Breakdown(&s, rates, now)
	if err != nil {
		return nil, err
	}

	f := DefaultFormatter()
	lines := []InvoiceLine{{
		Description: "Play time (" + string(s.PlayerCount) + " players)",
		Quantity:    f.Clock(b.Duration),
		Amount:      b.SessionCost,
	}}
	for _, o := range s.Orders {
		lines = append(lines, InvoiceLine{
			Description: o.ItemName,
			Quantity:    f.printer.Sprintf("%d × %s", o.Quantity, f.Number(o.UnitPrice)),
			Amount:      o.TotalPrice,
		})
	}

	return &Invoice{Session: s, Breakdown: b, Lines: lines, IssuedAt: now}, nil
}
