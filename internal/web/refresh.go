package web

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"slotcal/internal/config"
	"slotcal/internal/ics"
	appLog "slotcal/internal/log"
)

// StartRefresher fetches every configured calendar once, then again on
// cfg.RefreshCron, so lookups in /api/overlap can fall back to a warm disk
// cache. The scheduler stops when ctx is canceled.
func StartRefresher(ctx context.Context, cfg *config.Config, f *ics.Fetcher) (*cron.Cron, error) {
	c := cron.New()
	if _, err := c.AddFunc(cfg.RefreshCron, func() { warmCalendars(ctx, cfg.Calendars, f) }); err != nil {
		return nil, fmt.Errorf("refresh schedule %q: %w", cfg.RefreshCron, err)
	}

	if len(cfg.Calendars) == 0 {
		appLog.Debug("no calendars configured; refresher idle")
	} else {
		go warmCalendars(ctx, cfg.Calendars, f)
	}

	c.Start()
	go func() {
		<-ctx.Done()
		c.Stop()
	}()
	appLog.Info("calendar refresher started", "schedule", cfg.RefreshCron, "calendars", len(cfg.Calendars))
	return c, nil
}

// warmCalendars fetches each calendar and returns how many succeeded.
func warmCalendars(ctx context.Context, cals []config.CalendarConfig, f *ics.Fetcher) int {
	ok := 0
	for _, cal := range cals {
		if ctx.Err() != nil {
			break
		}
		res, err := f.Fetch(ctx, ics.Source{ID: cal.ID, URL: cal.URL})
		if err != nil {
			appLog.Error("calendar refresh failed", err, "id", cal.ID)
			continue
		}
		if _, err := ics.ParseICS(res.Source, res.Body); err != nil {
			appLog.Error("calendar refresh: parse failed", err, "id", cal.ID)
			continue
		}
		ok++
	}
	return ok
}
