// Package archive persists cleaned minute bars to per-day parquet files and
// verifies the result, alerting when a save cannot be read back.
package archive

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"
)

// Bar is one minute bar as stored on disk.
type Bar struct {
	Timestamp  time.Time `parquet:"timestamp"`
	Open       float64   `parquet:"open"`
	High       float64   `parquet:"high"`
	Low        float64   `parquet:"low"`
	Close      float64   `parquet:"close"`
	Volume     uint64    `parquet:"volume"`
	TradeCount uint64    `parquet:"trade_count"`
	VWAP       float64   `parquet:"vwap"`
}

// TimeOfDay is a wall-clock minute within a trading day.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func (t TimeOfDay) minutes() int {
	return t.Hour*60 + t.Minute
}

// ErrEmptyArchive reports a file that exists but holds no rows.
var ErrEmptyArchive = errors.New("archive file has no rows")

// Clean converts timestamps to loc, keeps only bars inside the trading-hours
// window (inclusive on both ends), and drops incomplete rows.
func Clean(bars []Bar, loc *time.Location, openAt, closeAt TimeOfDay) []Bar {
	cleaned := make([]Bar, 0, len(bars))
	for _, bar := range bars {
		local := bar.Timestamp.In(loc)
		minute := local.Hour()*60 + local.Minute()
		if minute < openAt.minutes() || minute > closeAt.minutes() {
			continue
		}
		if bar.Open <= 0 || bar.High <= 0 || bar.Low <= 0 || bar.Close <= 0 {
			continue
		}
		bar.Timestamp = local
		cleaned = append(cleaned, bar)
	}
	return cleaned
}

// Path returns the archive file location for a symbol and day.
func Path(dir, symbol string, date time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%s.parquet", symbol, date.Format("2006-01-02")))
}

// Save writes the bars as a parquet file, creating the directory if needed.
func Save(path string, bars []Bar) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create archive dir: %w", err)
	}
	if err := parquet.WriteFile(path, bars); err != nil {
		return fmt.Errorf("write archive %s: %w", path, err)
	}
	return nil
}

// Verify reads the file back and fails when it is missing or empty.
func Verify(path string) error {
	rows, err := parquet.ReadFile[Bar](path)
	if err != nil {
		return fmt.Errorf("read archive %s: %w", path, err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyArchive, path)
	}
	return nil
}
