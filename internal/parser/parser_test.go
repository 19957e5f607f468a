package parser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/balkashynov/punch/internal/clock"
)

func TestParseDescription(t *testing.T) {
	tests := []struct {
		in      string
		comment string
		project string
		tags    []string
	}{
		{"Review PR #review,backend @acme", "Review PR", "acme", []string{"review", "backend"}},
		{"#Ops standup #ops @first @second", "standup", "first", []string{"ops"}},
		{"plain   text", "plain text", "", []string{}},
		{"", "", "", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := ParseDescription(tt.in)
			assert.Equal(t, tt.comment, got.Comment)
			assert.Equal(t, tt.project, got.Project)
			assert.Equal(t, tt.tags, got.Tags)
		})
	}
}

func TestMergeTags(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, MergeTags([]string{"a", "B"}, "b", " c ", ""))
	assert.Equal(t, []string{}, MergeTags(nil))
}

func TestParseDate(t *testing.T) {
	today := clock.NewDate(2024, time.March, 15)
	tests := []struct {
		in   string
		want clock.Date
	}{
		{"today", today},
		{"", today},
		{"Yesterday", clock.NewDate(2024, time.March, 14)},
		{"tomorrow", clock.NewDate(2024, time.March, 16)},
		{"2024-02-29", clock.NewDate(2024, time.February, 29)},
		{"1/4/2024", clock.NewDate(2024, time.April, 1)},
		{"-15d", clock.NewDate(2024, time.February, 29)},
		{"+1d", clock.NewDate(2024, time.March, 16)},
		{"2 weeks ago", clock.NewDate(2024, time.March, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDate(tt.in, today)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"31/02/2024", "next week", "2024-13-01"} {
		_, err := ParseDate(bad, today)
		assert.Error(t, err, bad)
	}
}

func TestParseInstant(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	now := time.Date(2024, time.March, 15, 12, 30, 45, 500, time.UTC)

	tests := []struct {
		in   string
		want time.Time
	}{
		{"now", time.Date(2024, time.March, 15, 12, 30, 45, 0, time.UTC)},
		{"09:00", time.Date(2024, time.March, 15, 8, 0, 0, 0, time.UTC)},
		{"2024-07-01 09:15", time.Date(2024, time.July, 1, 7, 15, 0, 0, time.UTC)},
		{"2024-07-01t09:15", time.Date(2024, time.July, 1, 7, 15, 0, 0, time.UTC)},
		{"01/07/2024 09:15", time.Date(2024, time.July, 1, 7, 15, 0, 0, time.UTC)},
		{"2024-07-01T09:15:00Z", time.Date(2024, time.July, 1, 9, 15, 0, 0, time.UTC)},
		{"-15m", time.Date(2024, time.March, 15, 12, 15, 45, 0, time.UTC)},
		{"2 hours ago", time.Date(2024, time.March, 15, 10, 30, 45, 0, time.UTC)},
		{"90 min ago", time.Date(2024, time.March, 15, 11, 0, 45, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseInstant(tt.in, now, berlin)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}

	for _, bad := range []string{"25:00", "soon", "2024-07-01"} {
		_, err := ParseInstant(bad, now, berlin)
		assert.Error(t, err, bad)
	}
}

func TestFormatSeconds(t *testing.T) {
	assert.Equal(t, "7h05m", FormatSeconds(7*3600+5*60+30))
	assert.Equal(t, "42m", FormatSeconds(42*60))
	assert.Equal(t, "-1h30m", FormatSeconds(-5400))
	assert.Equal(t, "0s", FormatSeconds(0))
}
