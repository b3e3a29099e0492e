package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"slotcal/internal/config"
	"slotcal/internal/ics"
	"slotcal/internal/interval"
	appLog "slotcal/internal/log"
)

type checkFlags struct {
	existingStart string
	existingEnd   string
	newStart      string
	newEnd        string

	icsSource string
	uid       string
	at        string
}

func newCheckCmd(gf *globalFlags) *cobra.Command {
	var cf checkFlags

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Report whether the new interval overlaps the existing one",
		Long: `Prints "true" when [new-start, new-end) and the existing interval share an
instant, "false" otherwise. The existing interval comes either from
--existing-start/--existing-end or from one occurrence of a calendar event
(--ics, --uid, --at).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(gf)
			if err != nil {
				return err
			}
			overlaps, err := runCheck(cmd.Context(), cfg, cf)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), overlaps)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&cf.existingStart, "existing-start", "", "Start of the existing interval")
	f.StringVar(&cf.existingEnd, "existing-end", "", "End of the existing interval (exclusive)")
	f.StringVar(&cf.newStart, "new-start", "", "Start of the new interval")
	f.StringVar(&cf.newEnd, "new-end", "", "End of the new interval (exclusive)")
	f.StringVar(&cf.icsSource, "ics", "", "Calendar file or URL holding the existing event")
	f.StringVar(&cf.uid, "uid", "", "UID of the existing event in --ics")
	f.StringVar(&cf.at, "at", "", "Instant inside the wanted occurrence of --uid")
	_ = cmd.MarkFlagRequired("new-start")
	_ = cmd.MarkFlagRequired("new-end")
	cmd.MarkFlagsRequiredTogether("ics", "uid", "at")
	cmd.MarkFlagsMutuallyExclusive("ics", "existing-start")
	cmd.MarkFlagsMutuallyExclusive("ics", "existing-end")

	return cmd
}

func runCheck(ctx context.Context, cfg *config.Config, cf checkFlags) (bool, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	loc := cfg.Location()

	candidate, err := interval.ParseInterval(cf.newStart, cf.newEnd, cfg.TimeLayout, loc)
	if err != nil {
		return false, fmt.Errorf("new interval: %w", err)
	}

	existing, err := existingInterval(ctx, cfg, cf)
	if err != nil {
		return false, err
	}

	var overlaps bool
	if cfg.Strict {
		overlaps, err = interval.Check(existing, candidate)
		if err != nil {
			return false, err
		}
	} else {
		overlaps = existing.Overlaps(candidate)
	}

	appLog.Debug("overlap checked",
		"existing", existing.String(),
		"new", candidate.String(),
		"overlaps", overlaps,
	)
	return overlaps, nil
}

func existingInterval(ctx context.Context, cfg *config.Config, cf checkFlags) (interval.Interval, error) {
	loc := cfg.Location()

	if cf.icsSource == "" {
		if cf.existingStart == "" || cf.existingEnd == "" {
			return interval.Interval{}, errors.New("existing interval: need --existing-start and --existing-end, or --ics with --uid and --at")
		}
		iv, err := interval.ParseInterval(cf.existingStart, cf.existingEnd, cfg.TimeLayout, loc)
		if err != nil {
			return interval.Interval{}, fmt.Errorf("existing interval: %w", err)
		}
		return iv, nil
	}

	at, err := interval.ParseInstant(cf.at, cfg.TimeLayout, loc)
	if err != nil {
		return interval.Interval{}, fmt.Errorf("--at: %w", err)
	}

	occ, err := ics.FetchOccurrence(ctx, ics.NewFetcher(cfg.CacheDir), ics.SourceFor(cf.icsSource), cf.uid, at, loc)
	if err != nil {
		return interval.Interval{}, err
	}
	return occ.Interval(), nil
}
