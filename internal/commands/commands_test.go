package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/balkashynov/punch/internal/apperr"
	"github.com/balkashynov/punch/internal/config"
)

// run executes the CLI against an isolated database and config path
func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(append([]string{
		"--config", filepath.Join(dir, "missing.toml"),
		"--db", filepath.Join(dir, "punch.db"),
	}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func isolate(t *testing.T) string {
	t.Helper()
	t.Setenv("PUNCH_TIMEZONE", "Europe/Berlin")
	t.Setenv("PUNCH_EXPECTED_DAILY_HOURS", "8")
	t.Setenv("PUNCH_CALDAV_URL", "")
	t.Setenv("PUNCH_CALENDARS", "")
	return t.TempDir()
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, ExitOK},
		{errors.New("boom"), ExitError},
		{apperr.Invalid("op", "bad"), ExitInvalidInput},
		{apperr.Conflict("op", "busy"), ExitConflict},
		{apperr.NotFound("op", "gone"), ExitNotFound},
		{apperr.Upstream("op", errors.New("timeout"), "down"), ExitUpstream},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExitCode(tt.err), "%v", tt.err)
	}
}

func TestClientFactory(t *testing.T) {
	ctx := context.Background()

	client, err := clientFactory(ctx, config.Settings{Provider: ProviderCalDAV})
	require.NoError(t, err)
	assert.Nil(t, client)

	client, err = clientFactory(ctx, config.Settings{Provider: ProviderGoogle})
	require.NoError(t, err)
	assert.Nil(t, client)

	client, err = clientFactory(ctx, config.Settings{Provider: ProviderCalDAV, CalDAVURL: "https://dav.example.com/"})
	require.NoError(t, err)
	assert.NotNil(t, client)

	_, err = clientFactory(ctx, config.Settings{Provider: ProviderCalDAV, CalDAVURL: "ftp://nope"})
	assert.True(t, errors.Is(err, apperr.ErrInvalidInput))
}

func TestParseSetting(t *testing.T) {
	u, err := parseSetting("expected-daily-hours", "7.5")
	require.NoError(t, err)
	require.NotNil(t, u.ExpectedDailyHours)
	assert.Equal(t, 7.5, *u.ExpectedDailyHours)

	u, err = parseSetting("calendars", "Work, Team ,")
	require.NoError(t, err)
	require.NotNil(t, u.SelectedCalendars)
	assert.Equal(t, []string{"Work", "Team"}, *u.SelectedCalendars)

	_, err = parseSetting("vacation-days", "lots")
	assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))

	_, err = parseSetting("colour", "blue")
	assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))
}

func TestSessionCommands(t *testing.T) {
	dir := isolate(t)

	out, err := run(t, dir, "start", "--no-ui", "Deep work #focus @acme")
	require.NoError(t, err)
	assert.Contains(t, out, "Started session #1 @acme #focus")

	_, err = run(t, dir, "start", "--no-ui", "again")
	assert.Equal(t, ExitConflict, ExitCode(err))

	out, err = run(t, dir, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Session #1 is active")

	out, err = run(t, dir, "pause")
	require.NoError(t, err)
	assert.Contains(t, out, "Paused session #1")

	out, err = run(t, dir, "stop")
	require.NoError(t, err)
	assert.Contains(t, out, "Stopped session #1")

	_, err = run(t, dir, "stop")
	assert.Equal(t, ExitNotFound, ExitCode(err))

	_, err = run(t, dir, "delete", "abc")
	assert.Equal(t, ExitInvalidInput, ExitCode(err))
}

func TestOverviewCommand(t *testing.T) {
	dir := isolate(t)

	_, err := run(t, dir, "manual", "--from", "2024-03-04 09:00", "--to", "2024-03-04 12:30", "Workshop #training")
	require.NoError(t, err)
	_, err = run(t, dir, "holiday", "add", "2024-03-08", "Women's", "Day")
	require.NoError(t, err)
	_, err = run(t, dir, "leave", "add", "vacation", "--from", "2024-03-06", "--to", "2024-03-07")
	require.NoError(t, err)

	out, err := run(t, dir, "overview", "--from", "2024-03-04", "--to", "2024-03-10", "--json")
	require.NoError(t, err)

	var report struct {
		Days []struct {
			Day             string `json:"day"`
			WorkSeconds     int    `json:"work_seconds"`
			ExpectedSeconds int    `json:"expected_seconds"`
			HolidayName     string `json:"holiday_name"`
		} `json:"days"`
		Totals struct {
			Work     int
			Expected int
			Vacation int
			Overtime int
		} `json:"totals"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.Len(t, report.Days, 7)
	assert.Equal(t, 12600, report.Days[0].WorkSeconds)
	assert.Equal(t, "Women's Day", report.Days[4].HolidayName)
	assert.Equal(t, 0, report.Days[4].ExpectedSeconds)

	assert.Equal(t, 12600, report.Totals.Work)
	assert.Equal(t, 4*8*3600, report.Totals.Expected)
	assert.Equal(t, 2*8*3600, report.Totals.Vacation)
	assert.Equal(t, 12600+2*8*3600-4*8*3600, report.Totals.Overtime)

	_, err = run(t, dir, "overview", "--from", "2024-03-10", "--to", "2024-03-04", "--json")
	assert.Equal(t, ExitInvalidInput, ExitCode(err))
}
