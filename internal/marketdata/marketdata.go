// Package marketdata wraps the Alpaca market data API behind the two calls
// the system makes: the latest minute bar close for the trading loop and a
// day of minute bars for the archiver.
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
)

// ErrDataFetch marks a failed market data request. The trading loop treats it
// as recoverable and moves on to the next cycle.
var ErrDataFetch = errors.New("market data fetch failed")

const requestTimeout = 10 * time.Second

type Bar struct {
	Timestamp  time.Time
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     uint64
	TradeCount uint64
	VWAP       float64
}

type Fetcher struct {
	client *marketdata.Client
	feed   marketdata.Feed
}

func New(apiKey, apiSecret, feed string) *Fetcher {
	client := marketdata.NewClient(marketdata.ClientOpts{
		APIKey:     apiKey,
		APISecret:  apiSecret,
		HTTPClient: &http.Client{Timeout: requestTimeout},
	})
	return &Fetcher{client: client, feed: parseFeed(feed)}
}

// LatestClose returns the close of the most recent minute bar.
func (f *Fetcher) LatestClose(ctx context.Context, symbol string) (float64, error) {
	bar, err := f.client.GetLatestBar(symbol, marketdata.GetLatestBarRequest{Feed: f.feed})
	if err != nil {
		slog.Error("latest bar fetch failed", "symbol", symbol, "error", err)
		return 0, fmt.Errorf("%w: %v", ErrDataFetch, err)
	}
	if bar == nil {
		return 0, fmt.Errorf("%w: no bar for %s", ErrDataFetch, symbol)
	}
	return bar.Close, nil
}

// MinuteBars returns the minute bars for [start, end].
func (f *Fetcher) MinuteBars(ctx context.Context, symbol string, start, end time.Time) ([]Bar, error) {
	bars, err := f.client.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneMin,
		Start:     start,
		End:       end,
		Feed:      f.feed,
	})
	if err != nil {
		slog.Error("minute bars fetch failed", "symbol", symbol, "start", start, "end", end, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrDataFetch, err)
	}

	out := make([]Bar, 0, len(bars))
	for _, b := range bars {
		out = append(out, Bar{
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
	return out, nil
}

func parseFeed(feed string) marketdata.Feed {
	switch feed {
	case "iex":
		return marketdata.IEX
	case "sip":
		return marketdata.SIP
	default:
		return marketdata.IEX
	}
}
