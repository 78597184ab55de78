// The archiver fetches one day of minute bars, cleans them to the trading
// window, and stores them as a parquet file, emailing an alert when the save
// cannot be verified. It is meant to run once per day after the close.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"ewmabot/internal/archive"
	"ewmabot/internal/config"
	"ewmabot/internal/marketdata"
	"ewmabot/internal/notifier"
)

func main() {
	var dateFlag string
	var backfillDays int
	cfg, err := config.Load(func(fs *flag.FlagSet) {
		fs.StringVar(&dateFlag, "date", "", "day to archive (YYYY-MM-DD), default yesterday")
		fs.IntVar(&backfillDays, "backfill-days", 0, "archive this many days ending at -date")
	})
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := cfg.RequireCredentials(); err != nil {
		log.Fatalf("config error: %v", err)
	}

	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("timezone error: %v", err)
	}

	date := time.Now().In(loc).AddDate(0, 0, -1)
	if dateFlag != "" {
		date, err = time.ParseInLocation("2006-01-02", dateFlag, loc)
		if err != nil {
			log.Fatalf("invalid -date: %v", err)
		}
	}

	openHour, openMin, _ := config.ParseClock(cfg.MarketOpen)
	closeHour, closeMin, _ := config.ParseClock(cfg.MarketClose)

	var alerts notifier.Notifier
	if cfg.SMTP.Host != "" {
		alerts = notifier.NewEmail(notifier.EmailConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
			To:       cfg.SMTP.To,
		})
	}

	source := marketdata.New(cfg.APIKey, cfg.APISecret, cfg.Feed)
	archiver := archive.NewArchiver(source, alerts, cfg.DataDir, loc,
		archive.TimeOfDay{Hour: openHour, Minute: openMin},
		archive.TimeOfDay{Hour: closeHour, Minute: closeMin})

	ctx := context.Background()
	failed := false
	for offset := backfillDays; offset >= 0; offset-- {
		day := date.AddDate(0, 0, -offset)
		if err := archiver.Run(ctx, cfg.Symbol, day); err != nil {
			log.Printf("archive failed for %s: %v", day.Format("2006-01-02"), err)
			failed = true
			continue
		}
		log.Printf("archive done for %s on %s", cfg.Symbol, day.Format("2006-01-02"))
	}
	if failed {
		os.Exit(1)
	}
}
