package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/balkashynov/punch/internal/apperr"
	"github.com/balkashynov/punch/internal/clock"
	"github.com/balkashynov/punch/internal/models"
	"github.com/balkashynov/punch/internal/parser"
)

// instant parses a time flag relative to now in the reporting timezone
func (a *app) instant(ctx context.Context, value string) (time.Time, error) {
	return a.instantAt(ctx, value, a.clock.Now())
}

// instantAt parses a time flag relative to ref, so hh:mm lands on ref's day
func (a *app) instantAt(ctx context.Context, value string, ref time.Time) (time.Time, error) {
	s, err := a.snapshot(ctx)
	if err != nil {
		return time.Time{}, err
	}
	t, err := parser.ParseInstant(value, ref, s.Loc())
	if err != nil {
		return time.Time{}, apperr.Invalid("parse time", "%v", err)
	}
	return t, nil
}

// date parses a date argument relative to today
func (a *app) date(ctx context.Context, value string) (clock.Date, error) {
	today, err := a.today(ctx)
	if err != nil {
		return clock.Date{}, err
	}
	d, err := parser.ParseDate(value, today)
	if err != nil {
		return clock.Date{}, apperr.Invalid("parse date", "%v", err)
	}
	return d, nil
}

// optionalDate parses a date flag, nil when the flag is not set
func (a *app) optionalDate(cmd *cobra.Command, name string) (*clock.Date, error) {
	value, _ := cmd.Flags().GetString(name)
	if value == "" {
		return nil, nil
	}
	d, err := a.date(cmd.Context(), value)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// optionalInstant parses a time flag, nil when the flag is not set
func (a *app) optionalInstant(cmd *cobra.Command, name string) (*time.Time, error) {
	if !cmd.Flags().Changed(name) {
		return nil, nil
	}
	value, _ := cmd.Flags().GetString(name)
	t, err := a.instant(cmd.Context(), value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// parseID parses a numeric record id
func parseID(arg string) (uint, error) {
	id, err := strconv.ParseUint(arg, 10, 32)
	if err != nil || id == 0 {
		return 0, apperr.Invalid("parse id", "invalid id '%s'", arg)
	}
	return uint(id), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// span renders a start and optional stop as local wall clock
func span(start time.Time, stop *time.Time, loc *time.Location) string {
	end := "now"
	if stop != nil {
		end = stop.In(loc).Format("15:04")
	}
	return start.In(loc).Format("15:04") + "–" + end
}

func labels(project string, tags []string) string {
	var parts []string
	if project != "" {
		parts = append(parts, "@"+project)
	}
	for _, tag := range tags {
		parts = append(parts, "#"+tag)
	}
	return strings.Join(parts, " ")
}

func printSessionLine(w io.Writer, s *models.WorkSession, now time.Time, loc *time.Location) {
	marker := " "
	if s.IsAuto() {
		marker = "⚙"
	}
	fmt.Fprintf(w, "%-5d %s %-13s %-8s %-9s %-24s %s\n",
		s.ID, marker, span(s.StartTime, s.StopTime, loc),
		parser.FormatSeconds(s.ElapsedSeconds(now)), s.Status,
		labels(s.Project, s.Tags), s.Comment)
}
