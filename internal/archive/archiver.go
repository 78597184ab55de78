package archive

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ewmabot/internal/marketdata"
	"ewmabot/internal/notifier"
)

// BarSource provides the raw minute bars to archive.
type BarSource interface {
	MinuteBars(ctx context.Context, symbol string, start, end time.Time) ([]marketdata.Bar, error)
}

type Archiver struct {
	source  BarSource
	alerts  notifier.Notifier
	dir     string
	loc     *time.Location
	openAt  TimeOfDay
	closeAt TimeOfDay
}

func NewArchiver(source BarSource, alerts notifier.Notifier, dir string, loc *time.Location, openAt, closeAt TimeOfDay) *Archiver {
	return &Archiver{
		source:  source,
		alerts:  alerts,
		dir:     dir,
		loc:     loc,
		openAt:  openAt,
		closeAt: closeAt,
	}
}

// Run archives one symbol-day: fetch, clean, save, verify. Days already
// archived are skipped, and days with no bars (weekends, holidays) are logged
// and skipped. A save that fails verification triggers an email alert before
// the error is returned.
func (a *Archiver) Run(ctx context.Context, symbol string, date time.Time) error {
	path := Path(a.dir, symbol, date)
	if err := Verify(path); err == nil {
		slog.Info("archive exists, skipping", "path", path)
		return nil
	}

	start := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, a.loc)
	end := start.Add(24*time.Hour - time.Second)
	raw, err := a.source.MinuteBars(ctx, symbol, start, end)
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		// Weekends and market holidays produce no bars; a calendar source
		// would let the caller skip these days up front.
		slog.Info("no bars for day, skipping", "symbol", symbol, "date", date.Format("2006-01-02"))
		return nil
	}

	bars := make([]Bar, 0, len(raw))
	for _, b := range raw {
		bars = append(bars, Bar{
			Timestamp:  b.Timestamp,
			Open:       b.Open,
			High:       b.High,
			Low:        b.Low,
			Close:      b.Close,
			Volume:     b.Volume,
			TradeCount: b.TradeCount,
			VWAP:       b.VWAP,
		})
	}
	cleaned := Clean(bars, a.loc, a.openAt, a.closeAt)

	if err := Save(path, cleaned); err != nil {
		a.alert(symbol, date, err)
		return err
	}
	if err := Verify(path); err != nil {
		a.alert(symbol, date, err)
		return err
	}

	slog.Info("archive saved", "symbol", symbol, "date", date.Format("2006-01-02"), "rows", len(cleaned), "path", path)
	return nil
}

func (a *Archiver) alert(symbol string, date time.Time, cause error) {
	if a.alerts == nil {
		return
	}
	body := fmt.Sprintf("The minute-bar archive for %s on %s was not saved properly: %v", symbol, date.Format("2006-01-02"), cause)
	if err := a.alerts.Send("Data Save Error", body); err != nil {
		slog.Error("failed to send archive alert", "error", err)
	}
}
