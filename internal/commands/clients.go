package commands

import (
	"context"

	"github.com/balkashynov/punch/internal/calendar"
	"github.com/balkashynov/punch/internal/calendar/caldav"
	"github.com/balkashynov/punch/internal/calendar/google"
	"github.com/balkashynov/punch/internal/config"
)

// Calendar providers
const (
	ProviderCalDAV = "caldav"
	ProviderGoogle = "google"
)

// clientFactory builds the transport for the configured provider. It returns
// nil when the provider has no account configured.
func clientFactory(ctx context.Context, s config.Settings) (calendar.Client, error) {
	switch s.Provider {
	case ProviderGoogle:
		if s.GoogleCredentialsFile == "" {
			return nil, nil
		}
		client, err := google.New(ctx, google.Config{
			CredentialsFile: s.GoogleCredentialsFile,
			TokenFile:       s.GoogleTokenFile,
			Timeout:         s.Timeout,
			Location:        s.Loc(),
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		if s.CalDAVURL == "" {
			return nil, nil
		}
		client, err := caldav.New(caldav.Config{
			URL:      s.CalDAVURL,
			User:     s.CalDAVUser,
			Password: s.CalDAVPassword,
			Timeout:  s.Timeout,
			Location: s.Loc(),
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}
