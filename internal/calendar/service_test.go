package calendar

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/balkashynov/punch/internal/apperr"
	"github.com/balkashynov/punch/internal/clock"
	"github.com/balkashynov/punch/internal/config"
	"github.com/balkashynov/punch/internal/logging"
)

func TestRangeDefaults(t *testing.T) {
	today := clock.NewDate(2024, time.March, 10)

	from, to, err := Range(nil, nil, today)
	require.NoError(t, err)
	assert.Equal(t, today, from)
	assert.Equal(t, today.AddDays(DefaultListDays), to)

	start := clock.NewDate(2024, time.April, 1)
	from, to, err = Range(&start, nil, today)
	require.NoError(t, err)
	assert.Equal(t, start, from)
	assert.Equal(t, clock.NewDate(2024, time.May, 1), to)

	end := clock.NewDate(2024, time.March, 1)
	_, _, err = Range(nil, &end, today)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestListEventsReconcilesFirst(t *testing.T) {
	gdb := newDB(t)
	fake := newFake(
		Occurrence{Title: "Later", Start: at(3, 9, 0), ExternalID: "uid-later"},
		Occurrence{Title: "Sooner", Start: at(2, 9, 0), ExternalID: "uid-sooner"},
	)
	clk := clock.NewManual(at(2, 8, 0))
	svc := NewService(gdb, config.Static(settings), clk, factory(fake), NewReconciler(gdb, factory(fake), logging.Discard()), logging.Discard())

	from := clock.NewDate(2024, time.January, 1)
	to := clock.NewDate(2024, time.January, 7)
	list, err := svc.ListEvents(context.Background(), &from, &to)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Sooner", list[0].Title)

	// defaults start today, so January 2 is still listed
	list, err = svc.ListEvents(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	fake.failures = 3
	_, err = svc.ListEvents(context.Background(), &from, &to)
	assert.ErrorIs(t, err, apperr.ErrUpstream)
}

func TestListCalendarsStrictness(t *testing.T) {
	gdb := newDB(t)
	none := func(context.Context, config.Settings) (Client, error) { return nil, nil }
	svc := NewService(gdb, config.Static(settings), clock.System{}, none, NewReconciler(gdb, none, logging.Discard()), logging.Discard())

	cals, err := svc.ListCalendars(context.Background(), false)
	require.NoError(t, err)
	assert.Nil(t, cals)
	_, err = svc.ListCalendars(context.Background(), true)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	broken := &fakeClient{listErr: errors.New("connection refused")}
	svc = NewService(gdb, config.Static(settings), clock.System{}, factory(broken), NewReconciler(gdb, factory(broken), logging.Discard()), logging.Discard())
	cals, err = svc.ListCalendars(context.Background(), false)
	require.NoError(t, err)
	assert.Nil(t, cals)
	_, err = svc.ListCalendars(context.Background(), true)
	assert.ErrorIs(t, err, apperr.ErrUpstream)

	ok := newFake()
	svc = NewService(gdb, config.Static(settings), clock.System{}, factory(ok), NewReconciler(gdb, factory(ok), logging.Discard()), logging.Discard())
	cals, err = svc.ListCalendars(context.Background(), true)
	require.NoError(t, err)
	assert.Len(t, cals, 2)
}
