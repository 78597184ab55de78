package archive

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ewmabot/internal/marketdata"
)

func chicago(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)
	return loc
}

func minuteBar(ts time.Time, close float64) Bar {
	return Bar{Timestamp: ts, Open: close, High: close, Low: close, Close: close, Volume: 100}
}

func TestCleanKeepsOnlyTradingHours(t *testing.T) {
	loc := chicago(t)
	day := time.Date(2024, 11, 22, 0, 0, 0, 0, loc)

	bars := []Bar{
		minuteBar(day.Add(8*time.Hour+29*time.Minute), 100),  // pre-open
		minuteBar(day.Add(8*time.Hour+30*time.Minute), 101),  // open boundary
		minuteBar(day.Add(12*time.Hour), 102),                // mid-session
		minuteBar(day.Add(15*time.Hour), 103),                // close boundary
		minuteBar(day.Add(15*time.Hour+1*time.Minute), 104),  // post-close
	}

	cleaned := Clean(bars, loc, TimeOfDay{8, 30}, TimeOfDay{15, 0})
	require.Len(t, cleaned, 3)
	require.Equal(t, 101.0, cleaned[0].Close)
	require.Equal(t, 103.0, cleaned[2].Close)
}

func TestCleanDropsIncompleteRows(t *testing.T) {
	loc := chicago(t)
	ts := time.Date(2024, 11, 22, 12, 0, 0, 0, loc)

	bars := []Bar{
		{Timestamp: ts, Open: 100, High: 101, Low: 0, Close: 100.5, Volume: 10},
		{Timestamp: ts.Add(time.Minute), Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 10},
	}

	cleaned := Clean(bars, loc, TimeOfDay{8, 30}, TimeOfDay{15, 0})
	require.Len(t, cleaned, 1)
}

func TestCleanConvertsTimezone(t *testing.T) {
	loc := chicago(t)
	// 18:00 UTC is 12:00 in Chicago (CST, November).
	utc := time.Date(2024, 11, 22, 18, 0, 0, 0, time.UTC)

	cleaned := Clean([]Bar{minuteBar(utc, 100)}, loc, TimeOfDay{8, 30}, TimeOfDay{15, 0})
	require.Len(t, cleaned, 1)
	require.Equal(t, 12, cleaned[0].Timestamp.Hour())
}

func TestPathLayout(t *testing.T) {
	date := time.Date(2024, 11, 22, 0, 0, 0, 0, time.UTC)
	got := Path("/data", "TSLA", date)
	require.Equal(t, filepath.Join("/data", "TSLA_2024-11-22.parquet"), got)
}

func TestSaveVerifyRoundTrip(t *testing.T) {
	dir := t.TempDir()
	date := time.Date(2024, 11, 22, 0, 0, 0, 0, time.UTC)
	path := Path(dir, "TSLA", date)

	bars := []Bar{minuteBar(date.Add(15*time.Hour), 250.5)}
	require.NoError(t, Save(path, bars))
	require.NoError(t, Verify(path))
}

func TestVerifyFailsOnMissingAndEmpty(t *testing.T) {
	dir := t.TempDir()
	require.Error(t, Verify(filepath.Join(dir, "absent.parquet")))

	empty := filepath.Join(dir, "empty.parquet")
	require.NoError(t, Save(empty, nil))
	require.ErrorIs(t, Verify(empty), ErrEmptyArchive)
}

type fakeSource struct {
	bars []marketdata.Bar
	err  error
}

func (f *fakeSource) MinuteBars(_ context.Context, _ string, _, _ time.Time) ([]marketdata.Bar, error) {
	return f.bars, f.err
}

type fakeNotifier struct {
	subjects []string
}

func (f *fakeNotifier) Send(subject, _ string) error {
	f.subjects = append(f.subjects, subject)
	return nil
}

func TestArchiverRunSavesCleanBars(t *testing.T) {
	loc := chicago(t)
	date := time.Date(2024, 11, 22, 0, 0, 0, 0, loc)
	source := &fakeSource{bars: []marketdata.Bar{
		{Timestamp: date.Add(12 * time.Hour), Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 10},
	}}
	alerts := &fakeNotifier{}
	archiver := NewArchiver(source, alerts, t.TempDir(), loc, TimeOfDay{8, 30}, TimeOfDay{15, 0})

	require.NoError(t, archiver.Run(context.Background(), "TSLA", date))
	require.Empty(t, alerts.subjects)
	require.NoError(t, Verify(Path(archiver.dir, "TSLA", date)))
}

func TestArchiverRunSkipsEmptyDay(t *testing.T) {
	loc := chicago(t)
	date := time.Date(2024, 11, 23, 0, 0, 0, 0, loc) // a Saturday
	archiver := NewArchiver(&fakeSource{}, &fakeNotifier{}, t.TempDir(), loc, TimeOfDay{8, 30}, TimeOfDay{15, 0})

	require.NoError(t, archiver.Run(context.Background(), "TSLA", date))
	require.Error(t, Verify(Path(archiver.dir, "TSLA", date)))
}

func TestArchiverAlertsWhenVerificationFails(t *testing.T) {
	loc := chicago(t)
	date := time.Date(2024, 11, 22, 0, 0, 0, 0, loc)
	// Every bar is outside trading hours, so the save is empty and
	// verification must fail.
	source := &fakeSource{bars: []marketdata.Bar{
		{Timestamp: date.Add(2 * time.Hour), Open: 100, High: 101, Low: 99, Close: 100.5},
	}}
	alerts := &fakeNotifier{}
	archiver := NewArchiver(source, alerts, t.TempDir(), loc, TimeOfDay{8, 30}, TimeOfDay{15, 0})

	err := archiver.Run(context.Background(), "TSLA", date)
	require.ErrorIs(t, err, ErrEmptyArchive)
	require.Equal(t, []string{"Data Save Error"}, alerts.subjects)
}
