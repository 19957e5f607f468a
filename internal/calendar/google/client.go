// Package google reads calendars from the Google Calendar API.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/balkashynov/punch/internal/apperr"
	"github.com/balkashynov/punch/internal/calendar"
)

// RecurrenceLayout formats recurrence discriminators, RECURRENCE-ID style in UTC.
const RecurrenceLayout = calendar.RecurrenceLayout

// Config holds the OAuth files of one Google account.
type Config struct {
	CredentialsFile string
	TokenFile       string
	Timeout         time.Duration
	Location        *time.Location // for all-day events
}

// Client implements calendar.Client over Google Calendar v3.
type Client struct {
	service *gcal.Service
	loc     *time.Location
}

// OAuthConfig reads the client credentials file of an installed app.
func OAuthConfig(credentialsFile string) (*oauth2.Config, error) {
	b, err := os.ReadFile(credentialsFile)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperr.Invalid("google", "credentials file %s not found", credentialsFile)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}
	cfg, err := googleoauth.ConfigFromJSON(b, gcal.CalendarReadonlyScope)
	if err != nil {
		return nil, apperr.Invalid("google", "unable to parse credentials file: %v", err)
	}
	cfg.RedirectURL = "urn:ietf:wg:oauth:2.0:oob"
	return cfg, nil
}

// New creates a Client from the credentials and token files.
func New(ctx context.Context, cfg Config) (*Client, error) {
	oauthCfg, err := OAuthConfig(cfg.CredentialsFile)
	if err != nil {
		return nil, err
	}
	token, err := tokenFromFile(cfg.TokenFile)
	if err != nil {
		return nil, apperr.Invalid("google", "no usable token in %s, run `punch calendars auth` first", cfg.TokenFile)
	}

	httpClient := oauthCfg.Client(ctx, token)
	httpClient.Timeout = cfg.Timeout
	service, err := gcal.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Client{service: service, loc: loc}, nil
}

// ListCalendars lists the calendars of the account.
func (c *Client) ListCalendars(ctx context.Context) ([]calendar.Calendar, error) {
	var out []calendar.Calendar
	err := c.service.CalendarList.List().Context(ctx).Pages(ctx, func(page *gcal.CalendarList) error {
		for _, item := range page.Items {
			name := item.SummaryOverride
			if name == "" {
				name = item.Summary
			}
			out = append(out, calendar.Calendar{ID: item.Id, Name: name})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list calendars: %w", err)
	}
	return out, nil
}

// Occurrences lists events in [start, end). Without expand, recurring
// masters come back unexpanded and are expanded here.
func (c *Client) Occurrences(ctx context.Context, cal calendar.Calendar, start, end time.Time, expand bool) ([]calendar.Occurrence, error) {
	var items []*gcal.Event
	call := c.service.Events.List(cal.ID).
		Context(ctx).
		ShowDeleted(false).
		SingleEvents(expand).
		TimeMin(start.Format(time.RFC3339)).
		TimeMax(end.Format(time.RFC3339))
	err := call.Pages(ctx, func(page *gcal.Events) error {
		items = append(items, page.Items...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return FromEvents(items, start, end, c.loc)
}

// FromEvents maps API events to occurrences, expanding masters that carry
// RRULE lines and skipping instances that exist as separate exceptions.
func FromEvents(items []*gcal.Event, start, end time.Time, loc *time.Location) ([]calendar.Occurrence, error) {
	exceptions := map[string]map[string]bool{}
	for _, item := range items {
		if item.RecurringEventId == "" || item.OriginalStartTime == nil {
			continue
		}
		t, err := parseTime(item.OriginalStartTime, loc)
		if err != nil {
			continue
		}
		if exceptions[item.ICalUID] == nil {
			exceptions[item.ICalUID] = map[string]bool{}
		}
		exceptions[item.ICalUID][t.UTC().Format(RecurrenceLayout)] = true
	}

	var out []calendar.Occurrence
	for _, item := range items {
		if item.Status == "cancelled" || item.Start == nil {
			continue
		}
		occ, err := occurrence(item, loc)
		if err != nil {
			return nil, err
		}
		if len(item.Recurrence) == 0 || item.RecurringEventId != "" {
			out = append(out, occ)
			continue
		}

		set, err := recurrenceSet(item, occ.Start)
		if err != nil {
			return nil, fmt.Errorf("invalid recurrence of %q: %w", item.Summary, err)
		}
		var length time.Duration
		if occ.Stop != nil {
			length = occ.Stop.Sub(occ.Start)
		}
		for _, instant := range set.Between(start.Add(-length), end, true) {
			rid := instant.UTC().Format(RecurrenceLayout)
			if exceptions[item.ICalUID][rid] {
				continue
			}
			inst := occ
			inst.Start = instant
			inst.RecurrenceID = rid
			if occ.Stop != nil {
				stop := instant.Add(length)
				inst.Stop = &stop
			}
			out = append(out, inst)
		}
	}
	return out, nil
}

func occurrence(item *gcal.Event, loc *time.Location) (calendar.Occurrence, error) {
	start, err := parseTime(item.Start, loc)
	if err != nil {
		return calendar.Occurrence{}, fmt.Errorf("event %q has an invalid start: %w", item.Summary, err)
	}
	occ := calendar.Occurrence{
		Title:       item.Summary,
		Start:       start,
		Location:    item.Location,
		Description: item.Description,
		ExternalID:  item.ICalUID,
	}
	if occ.ExternalID == "" {
		occ.ExternalID = item.Id
	}
	if item.End != nil {
		if stop, err := parseTime(item.End, loc); err == nil {
			occ.Stop = &stop
		}
	}
	if item.OriginalStartTime != nil {
		if orig, err := parseTime(item.OriginalStartTime, loc); err == nil {
			occ.RecurrenceID = orig.UTC().Format(RecurrenceLayout)
		}
	}
	for _, a := range item.Attendees {
		name := strings.TrimSpace(a.DisplayName)
		if name == "" {
			name = strings.TrimSpace(a.Email)
		}
		if name != "" {
			occ.Attendees = append(occ.Attendees, name)
		}
	}
	return occ, nil
}

// recurrenceSet builds an rrule set from the master's RRULE/EXDATE/RDATE lines.
func recurrenceSet(item *gcal.Event, dtstart time.Time) (*rrule.Set, error) {
	lines := []string{"DTSTART:" + dtstart.UTC().Format(RecurrenceLayout)}
	if tz := item.Start.TimeZone; tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			lines[0] = "DTSTART;TZID=" + tz + ":" + dtstart.In(loc).Format("20060102T150405")
		}
	}
	lines = append(lines, item.Recurrence...)
	return rrule.StrToRRuleSet(strings.Join(lines, "\n"))
}

func parseTime(dt *gcal.EventDateTime, loc *time.Location) (time.Time, error) {
	switch {
	case dt.DateTime != "":
		return time.Parse(time.RFC3339, dt.DateTime)
	case dt.Date != "":
		return time.ParseInLocation("2006-01-02", dt.Date, loc)
	default:
		return time.Time{}, errors.New("no date or time")
	}
}

// AuthURL returns the consent page for the installed-app flow.
func AuthURL(cfg *oauth2.Config) string {
	return cfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for a token and stores it at path.
func Exchange(ctx context.Context, cfg *oauth2.Config, code, path string) error {
	token, err := cfg.Exchange(ctx, strings.TrimSpace(code))
	if err != nil {
		return apperr.Upstream("google auth", err, "authorization code exchange failed")
	}
	return saveToken(path, token)
}

func saveToken(path string, token *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("unable to create token directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("unable to create token file: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}
