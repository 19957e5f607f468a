package calendar

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/balkashynov/punch/internal/apperr"
	"github.com/balkashynov/punch/internal/clock"
	"github.com/balkashynov/punch/internal/config"
	"github.com/balkashynov/punch/internal/models"
)

// DefaultTitle replaces empty remote titles.
const DefaultTitle = "Untitled"

// DefaultDuration is the length given to occurrences without an end.
const DefaultDuration = time.Hour

// RecurrenceLayout formats recurrence discriminators, RECURRENCE-ID style in UTC.
const RecurrenceLayout = "20060102T150405Z"

// Result counts what a reconciliation changed.
type Result struct {
	RunID     string `json:"run_id"`
	Calendars int    `json:"calendars"`
	Created   int    `json:"created"`
	Updated   int    `json:"updated"`
	Deleted   int    `json:"deleted"`
	Unchanged int    `json:"unchanged"`
}

// Changed reports whether any row was written.
func (r Result) Changed() bool {
	return r.Created+r.Updated+r.Deleted > 0
}

// Hooks let the caller keep derived records in step with event rows.
// Both run inside the reconciliation transaction.
type Hooks struct {
	// AfterUpdate runs for attended events whose title, description or
	// times changed.
	AfterUpdate func(tx *gorm.DB, s config.Settings, ev *models.CalendarEvent) error
	// BeforeDelete runs for every row the reconciler removes.
	BeforeDelete func(tx *gorm.DB, s config.Settings, ev *models.CalendarEvent) error
}

// Recorder observes finished reconciliations.
type Recorder interface {
	ObserveSync(res Result, err error)
}

// Reconciler merges remote occurrences into CalendarEvent rows.
type Reconciler struct {
	db       *gorm.DB
	clients  ClientFactory
	hooks    Hooks
	recorder Recorder
	log      logrus.FieldLogger
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithHooks installs row hooks.
func WithHooks(h Hooks) Option {
	return func(r *Reconciler) { r.hooks = h }
}

// WithRecorder installs a Recorder.
func WithRecorder(rec Recorder) Option {
	return func(r *Reconciler) { r.recorder = rec }
}

// NewReconciler creates a Reconciler.
func NewReconciler(gdb *gorm.DB, clients ClientFactory, log logrus.FieldLogger, opts ...Option) *Reconciler {
	r := &Reconciler{db: gdb, clients: clients, log: log}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type fetched struct {
	source      string
	occurrences []Occurrence
}

// Reconcile makes the local events of the selected calendars match the
// remote state inside w. Remote data is fetched completely before the
// single transaction that applies it, so a failing calendar leaves the
// database untouched.
func (r *Reconciler) Reconcile(ctx context.Context, s config.Settings, w Window) (res Result, err error) {
	res.RunID = uuid.NewString()
	log := r.log.WithField("run_id", res.RunID)
	defer func() {
		if r.recorder != nil {
			r.recorder.ObserveSync(res, err)
		}
	}()

	if len(NormalizeSelection(s.SelectedCalendars)) == 0 || r.clients == nil {
		log.Debug("no calendars selected, skipping sync")
		return res, nil
	}
	client, err := r.clients(ctx, s)
	if err != nil {
		return res, err
	}
	if client == nil {
		log.Debug("no calendar client configured, skipping sync")
		return res, nil
	}

	calendars, err := client.ListCalendars(ctx)
	if err != nil {
		return res, apperr.Upstream("sync", err, "could not list remote calendars")
	}
	selected := Select(calendars, s.SelectedCalendars)
	if len(selected) == 0 {
		log.WithField("selected", s.SelectedCalendars).Warn("none of the selected calendars exist remotely")
		return res, nil
	}

	batches := make([]fetched, 0, len(selected))
	for _, cal := range selected {
		occ, err := fetchWithFallback(ctx, log, client, cal, w, s.Loc())
		if err != nil {
			return res, err
		}
		batches = append(batches, fetched{source: NormalizeRef(cal.ID), occurrences: occ})
	}
	res.Calendars = len(batches)

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m := &merge{tx: tx, settings: s, hooks: r.hooks, window: w, res: &res}
		return m.run(batches)
	})
	if err != nil {
		return Result{RunID: res.RunID}, err
	}

	log.WithFields(logrus.Fields{
		"calendars": res.Calendars,
		"created":   res.Created,
		"updated":   res.Updated,
		"deleted":   res.Deleted,
		"unchanged": res.Unchanged,
	}).Info("calendar sync finished")
	return res, nil
}

type attempt struct {
	expand bool
	window Window
	label  string
}

// fetchWithFallback walks the retry ladder: expanded query, plain query,
// plain query with naive bounds.
func fetchWithFallback(ctx context.Context, log logrus.FieldLogger, client Client, cal Calendar, w Window, loc *time.Location) ([]Occurrence, error) {
	attempts := []attempt{
		{expand: true, window: w, label: "expand"},
		{expand: false, window: w, label: "plain"},
		{expand: false, window: w.Naive(loc), label: "naive"},
	}
	var lastErr error
	for _, a := range attempts {
		occ, err := client.Occurrences(ctx, cal, a.window.Start, a.window.End, a.expand)
		if err == nil {
			return occ, nil
		}
		lastErr = err
		log.WithError(err).WithFields(logrus.Fields{"calendar": cal.Name, "attempt": a.label}).Warn("calendar query failed")
		if ctx.Err() != nil {
			break
		}
	}
	name := cal.Name
	if name == "" {
		name = cal.ID
	}
	return nil, apperr.Upstream("sync", lastErr, "calendar %q is unavailable", name)
}

type externalKey struct {
	source, externalID, recurrenceID string
}

type fallbackKey struct {
	source      string
	start, stop int64
	title       string
}

func externalKeyOf(ev *models.CalendarEvent) externalKey {
	return externalKey{ev.Source, ev.ExternalID, ev.RecurrenceID}
}

func fallbackKeyOf(ev *models.CalendarEvent) fallbackKey {
	return fallbackKey{ev.Source, ev.StartTime.Unix(), ev.EndTime.Unix(), ev.Title}
}

// merge is the state of one reconciliation transaction.
type merge struct {
	tx       *gorm.DB
	settings config.Settings
	hooks    Hooks
	window   Window
	res      *Result

	byExternal map[externalKey]*models.CalendarEvent
	byFallback map[fallbackKey]*models.CalendarEvent
	rows       []*models.CalendarEvent
	seen       map[uint]bool
}

func (m *merge) run(batches []fetched) error {
	sources := make([]string, 0, len(batches))
	for _, b := range batches {
		sources = append(sources, b.source)
	}
	if err := m.index(sources); err != nil {
		return err
	}
	for _, b := range batches {
		var batch []*models.CalendarEvent
		for _, occ := range b.occurrences {
			if ev, ok := normalize(b.source, occ, m.window); ok {
				batch = append(batch, ev)
			}
		}
		discriminate(batch)
		for _, ev := range batch {
			if err := m.apply(ev); err != nil {
				return err
			}
		}
	}
	return m.prune()
}

// discriminate gives instances of one series that arrive without a
// RECURRENCE-ID a discriminator derived from their start, so that expanded
// instances of the same UID stay separate rows.
func discriminate(batch []*models.CalendarEvent) {
	starts := make(map[string]map[int64]bool)
	for _, ev := range batch {
		if ev.ExternalID == "" || ev.RecurrenceID != "" {
			continue
		}
		if starts[ev.ExternalID] == nil {
			starts[ev.ExternalID] = make(map[int64]bool)
		}
		starts[ev.ExternalID][ev.StartTime.Unix()] = true
	}
	for _, ev := range batch {
		if ev.ExternalID == "" || ev.RecurrenceID != "" || len(starts[ev.ExternalID]) < 2 {
			continue
		}
		ev.RecurrenceID = ev.StartTime.UTC().Format(RecurrenceLayout)
	}
}

// index loads the rows of sources and drops rows whose key is already taken.
func (m *merge) index(sources []string) error {
	var rows []models.CalendarEvent
	if err := m.tx.Where("source IN ?", sources).Order("id").Find(&rows).Error; err != nil {
		return fmt.Errorf("failed to load calendar events: %w", err)
	}
	m.byExternal = make(map[externalKey]*models.CalendarEvent, len(rows))
	m.byFallback = make(map[fallbackKey]*models.CalendarEvent, len(rows))
	m.seen = make(map[uint]bool, len(rows))

	for i := range rows {
		ev := &rows[i]
		duplicate := false
		if ev.ExternalID != "" {
			if _, ok := m.byExternal[externalKeyOf(ev)]; ok {
				duplicate = true
			}
		} else if _, ok := m.byFallback[fallbackKeyOf(ev)]; ok {
			duplicate = true
		}
		if duplicate {
			if err := m.delete(ev); err != nil {
				return err
			}
			continue
		}
		m.add(ev)
		m.rows = append(m.rows, ev)
	}
	return nil
}

func (m *merge) add(ev *models.CalendarEvent) {
	if ev.ExternalID != "" {
		m.byExternal[externalKeyOf(ev)] = ev
	} else {
		m.byFallback[fallbackKeyOf(ev)] = ev
	}
}

func (m *merge) remove(ev *models.CalendarEvent) {
	if ev.ExternalID != "" {
		delete(m.byExternal, externalKeyOf(ev))
	} else {
		delete(m.byFallback, fallbackKeyOf(ev))
	}
}

func (m *merge) lookup(ev *models.CalendarEvent) *models.CalendarEvent {
	if ev.ExternalID != "" {
		if row, ok := m.byExternal[externalKeyOf(ev)]; ok {
			return row
		}
		// an instance stored before its series had a discriminator
		if ev.RecurrenceID != "" {
			row, ok := m.byExternal[externalKey{ev.Source, ev.ExternalID, ""}]
			if ok && !m.seen[row.ID] && row.StartTime.Equal(ev.StartTime) {
				return row
			}
		}
		// a lone instance of a series already stored under its start
		if ev.RecurrenceID == "" {
			rid := ev.StartTime.UTC().Format(RecurrenceLayout)
			if row, ok := m.byExternal[externalKey{ev.Source, ev.ExternalID, rid}]; ok && !m.seen[row.ID] {
				ev.RecurrenceID = rid
				return row
			}
		}
	}
	// rows stored before the source sent ids are still found by position
	key := fallbackKey{ev.Source, ev.StartTime.Unix(), ev.EndTime.Unix(), ev.Title}
	return m.byFallback[key]
}

func (m *merge) apply(incoming *models.CalendarEvent) error {
	row := m.lookup(incoming)
	if row == nil {
		if err := m.tx.Create(incoming).Error; err != nil {
			return fmt.Errorf("failed to create event %q: %w", incoming.Title, err)
		}
		m.add(incoming)
		m.rows = append(m.rows, incoming)
		m.seen[incoming.ID] = true
		m.res.Created++
		return nil
	}
	if m.seen[row.ID] {
		// the same occurrence twice in one fetch
		m.res.Unchanged++
		return nil
	}
	m.seen[row.ID] = true

	mirrored := !row.StartTime.Equal(incoming.StartTime) || !row.EndTime.Equal(incoming.EndTime) ||
		row.Title != incoming.Title || row.Description != incoming.Description
	if !differs(row, incoming) {
		m.res.Unchanged++
		return nil
	}

	m.remove(row)
	row.Title = incoming.Title
	row.StartTime = incoming.StartTime
	row.EndTime = incoming.EndTime
	row.Location = incoming.Location
	row.Description = incoming.Description
	row.Attendees = incoming.Attendees
	row.Source = incoming.Source
	row.ExternalID = incoming.ExternalID
	row.RecurrenceID = incoming.RecurrenceID
	m.add(row)

	if err := m.tx.Save(row).Error; err != nil {
		return fmt.Errorf("failed to update event %d: %w", row.ID, err)
	}
	if mirrored && row.Status == models.EventAttended && m.hooks.AfterUpdate != nil {
		if err := m.hooks.AfterUpdate(m.tx, m.settings, row); err != nil {
			return err
		}
	}
	m.res.Updated++
	return nil
}

// prune deletes pending rows inside the window that the remote no longer
// reports. Rows the user already acted on are kept.
func (m *merge) prune() error {
	for _, row := range m.rows {
		if m.seen[row.ID] || row.Status != models.EventPending || !m.window.Contains(row.StartTime) {
			continue
		}
		if err := m.delete(row); err != nil {
			return err
		}
	}
	return nil
}

func (m *merge) delete(ev *models.CalendarEvent) error {
	if m.hooks.BeforeDelete != nil {
		if err := m.hooks.BeforeDelete(m.tx, m.settings, ev); err != nil {
			return err
		}
	}
	if err := m.tx.Delete(ev).Error; err != nil {
		return fmt.Errorf("failed to delete event %d: %w", ev.ID, err)
	}
	m.res.Deleted++
	return nil
}

func differs(a, b *models.CalendarEvent) bool {
	return a.Title != b.Title ||
		!a.StartTime.Equal(b.StartTime) ||
		!a.EndTime.Equal(b.EndTime) ||
		a.Location != b.Location ||
		a.Description != b.Description ||
		!slices.Equal(a.Attendees, b.Attendees) ||
		a.Source != b.Source ||
		a.ExternalID != b.ExternalID ||
		a.RecurrenceID != b.RecurrenceID
}

// normalize turns an occurrence into an unsaved pending event. It reports
// false when the occurrence starts outside w.
func normalize(source string, occ Occurrence, w Window) (*models.CalendarEvent, bool) {
	start := clock.ToUTC(occ.Start)
	if !w.Contains(start) {
		return nil, false
	}
	stop := start.Add(DefaultDuration)
	if occ.Stop != nil && occ.Stop.After(start) {
		stop = clock.ToUTC(*occ.Stop)
	}
	title := strings.TrimSpace(occ.Title)
	if title == "" {
		title = DefaultTitle
	}
	attendees := make([]string, 0, len(occ.Attendees))
	for _, a := range occ.Attendees {
		if a = strings.TrimSpace(a); a != "" {
			attendees = append(attendees, a)
		}
	}
	ev := &models.CalendarEvent{
		Title:        title,
		StartTime:    start,
		EndTime:      stop,
		Location:     strings.TrimSpace(occ.Location),
		Description:  strings.TrimSpace(occ.Description),
		Source:       source,
		ExternalID:   strings.TrimSpace(occ.ExternalID),
		RecurrenceID: strings.TrimSpace(occ.RecurrenceID),
		Attendees:    attendees,
	}
	ev.SetStatus(models.EventPending)
	return ev, true
}
