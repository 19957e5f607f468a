// Package caldav reads calendars from a CalDAV server.
package caldav

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	gocaldav "github.com/emersion/go-webdav/caldav"

	"github.com/balkashynov/punch/internal/apperr"
	"github.com/balkashynov/punch/internal/calendar"
)

const userAgent = "punch/1.0"

// Config holds the account of one CalDAV server.
type Config struct {
	URL      string
	User     string
	Password string
	Timeout  time.Duration
	Location *time.Location // for floating times and all-day events
}

// Client implements calendar.Client over CalDAV.
type Client struct {
	dav      *gocaldav.Client
	endpoint *url.URL
	loc      *time.Location
}

type userAgentTransport struct {
	next http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", userAgent)
	return t.next.RoundTrip(req)
}

// New validates cfg and creates a Client. No request is made.
func New(cfg Config) (*Client, error) {
	endpoint, err := url.Parse(strings.TrimSpace(cfg.URL))
	if err != nil || (endpoint.Scheme != "http" && endpoint.Scheme != "https") || endpoint.Host == "" {
		return nil, apperr.Invalid("caldav", "invalid server URL %q", cfg.URL)
	}
	if cfg.User == "" && cfg.Password != "" {
		return nil, apperr.Invalid("caldav", "a password is set without a user")
	}

	httpClient := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: &userAgentTransport{next: http.DefaultTransport},
	}
	var hc webdav.HTTPClient = httpClient
	if cfg.User != "" {
		hc = webdav.HTTPClientWithBasicAuth(httpClient, cfg.User, cfg.Password)
	}

	dav, err := gocaldav.NewClient(hc, endpoint.String())
	if err != nil {
		return nil, fmt.Errorf("failed to create caldav client: %w", err)
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Client{dav: dav, endpoint: endpoint, loc: loc}, nil
}

// ListCalendars discovers the calendars of the current user. IDs are
// absolute collection URLs.
func (c *Client) ListCalendars(ctx context.Context) ([]calendar.Calendar, error) {
	principal, err := c.dav.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to find principal: %w", err)
	}
	homeSet, err := c.dav.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return nil, fmt.Errorf("failed to find calendar home set: %w", err)
	}
	cals, err := c.dav.FindCalendars(ctx, homeSet)
	if err != nil {
		return nil, fmt.Errorf("failed to find calendars: %w", err)
	}

	out := make([]calendar.Calendar, 0, len(cals))
	for _, cal := range cals {
		if !supportsEvents(cal.SupportedComponentSet) {
			continue
		}
		out = append(out, calendar.Calendar{ID: c.absolute(cal.Path), Name: cal.Name})
	}
	return out, nil
}

// Occurrences queries VEVENTs starting in [start, end). With expand the
// server is asked to expand recurrences; masters it still returns are
// expanded locally.
func (c *Client) Occurrences(ctx context.Context, cal calendar.Calendar, start, end time.Time, expand bool) ([]calendar.Occurrence, error) {
	query := &gocaldav.CalendarQuery{
		CompRequest: gocaldav.CalendarCompRequest{
			Name: ical.CompCalendar,
			Comps: []gocaldav.CalendarCompRequest{{
				Name:     ical.CompEvent,
				AllProps: true,
			}},
		},
		CompFilter: gocaldav.CompFilter{
			Name: ical.CompCalendar,
			Comps: []gocaldav.CompFilter{{
				Name:  ical.CompEvent,
				Start: start,
				End:   end,
			}},
		},
	}
	if expand {
		query.CompRequest.Expand = &gocaldav.CalendarExpandRequest{Start: start, End: end}
	}

	objects, err := c.dav.QueryCalendar(ctx, c.pathOf(cal.ID), query)
	if err != nil {
		return nil, fmt.Errorf("calendar query failed: %w", err)
	}

	var out []calendar.Occurrence
	for _, obj := range objects {
		if obj.Data == nil {
			continue
		}
		occ, err := FromICal(obj.Data, start, end, c.loc)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", obj.Path, err)
		}
		out = append(out, occ...)
	}
	return out, nil
}

func (c *Client) absolute(p string) string {
	u := *c.endpoint
	u.Path = p
	u.RawQuery = ""
	return u.String()
}

func (c *Client) pathOf(id string) string {
	u, err := url.Parse(id)
	if err != nil || u.Path == "" {
		return id
	}
	return u.Path
}

func supportsEvents(set []string) bool {
	if len(set) == 0 {
		return true
	}
	for _, comp := range set {
		if strings.EqualFold(comp, ical.CompEvent) {
			return true
		}
	}
	return false
}
