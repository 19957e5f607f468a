package caldav

import (
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"github.com/balkashynov/punch/internal/calendar"
)

// RecurrenceLayout formats recurrence discriminators, RECURRENCE-ID style in UTC.
const RecurrenceLayout = calendar.RecurrenceLayout

// FromICal flattens the VEVENTs of cal into occurrences. Overridden
// instances (RECURRENCE-ID) are taken as they are; masters with an RRULE
// are expanded between start and end, skipping overridden dates.
func FromICal(cal *ical.Calendar, start, end time.Time, loc *time.Location) ([]calendar.Occurrence, error) {
	events := cal.Events()

	overridden := map[string]map[string]bool{}
	for _, ev := range events {
		if rid := recurrenceID(ev.Component, loc); rid != "" {
			uid := uidOf(ev.Component)
			if overridden[uid] == nil {
				overridden[uid] = map[string]bool{}
			}
			overridden[uid][rid] = true
		}
	}

	var out []calendar.Occurrence
	for _, ev := range events {
		base, err := occurrence(ev, loc)
		if err != nil {
			return nil, err
		}
		if base.RecurrenceID != "" {
			out = append(out, base)
			continue
		}

		set, err := ev.RecurrenceSet(loc)
		if err != nil {
			return nil, fmt.Errorf("invalid recurrence of %q: %w", base.ExternalID, err)
		}
		if set == nil {
			out = append(out, base)
			continue
		}

		var length time.Duration
		if base.Stop != nil {
			length = base.Stop.Sub(base.Start)
		}
		// instances that began before start but still overlap it are kept
		for _, instant := range set.Between(start.Add(-length), end, true) {
			rid := instant.UTC().Format(RecurrenceLayout)
			if overridden[base.ExternalID][rid] {
				continue
			}
			occ := base
			occ.Start = instant
			occ.RecurrenceID = rid
			if base.Stop != nil {
				stop := instant.Add(length)
				occ.Stop = &stop
			}
			out = append(out, occ)
		}
	}
	return out, nil
}

func occurrence(ev ical.Event, loc *time.Location) (calendar.Occurrence, error) {
	start, err := ev.DateTimeStart(loc)
	if err != nil {
		return calendar.Occurrence{}, fmt.Errorf("invalid DTSTART: %w", err)
	}
	occ := calendar.Occurrence{
		Title:        text(ev.Component, ical.PropSummary),
		Start:        start,
		Stop:         stopOf(ev.Component, start, loc),
		Location:     text(ev.Component, ical.PropLocation),
		Description:  text(ev.Component, ical.PropDescription),
		ExternalID:   uidOf(ev.Component),
		RecurrenceID: recurrenceID(ev.Component, loc),
		Attendees:    attendees(ev.Component),
	}
	return occ, nil
}

func stopOf(comp *ical.Component, start time.Time, loc *time.Location) *time.Time {
	if prop := comp.Props.Get(ical.PropDateTimeEnd); prop != nil {
		if t, err := prop.DateTime(loc); err == nil {
			return &t
		}
	}
	if prop := comp.Props.Get(ical.PropDuration); prop != nil {
		if d, err := prop.Duration(); err == nil {
			t := start.Add(d)
			return &t
		}
	}
	return nil
}

func recurrenceID(comp *ical.Component, loc *time.Location) string {
	prop := comp.Props.Get(ical.PropRecurrenceID)
	if prop == nil {
		return ""
	}
	t, err := prop.DateTime(loc)
	if err != nil {
		return strings.TrimSpace(prop.Value)
	}
	return t.UTC().Format(RecurrenceLayout)
}

func uidOf(comp *ical.Component) string {
	return text(comp, ical.PropUID)
}

func text(comp *ical.Component, name string) string {
	v, err := comp.Props.Text(name)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(v)
}

// attendees prefers the CN parameter over the calendar address.
func attendees(comp *ical.Component) []string {
	props := comp.Props.Values(ical.PropAttendee)
	out := make([]string, 0, len(props))
	for _, prop := range props {
		name := strings.TrimSpace(prop.Params.Get(ical.ParamCommonName))
		if name == "" {
			name = strings.TrimSpace(prop.Value)
			if len(name) >= len("mailto:") && strings.EqualFold(name[:len("mailto:")], "mailto:") {
				name = name[len("mailto:"):]
			}
		}
		if name != "" {
			out = append(out, name)
		}
	}
	return out
}
