package domain

import "time"

// Trend is a trending developer topic fetched from an external source.
type Trend struct {
	Title    string
	URL      string
	Score    int
	Source   string
	Keywords []string
}

// UserSettings holds per-chat preferences and the LinkedIn connection.
type UserSettings struct {
	ChatID         string
	LinkedInToken  string
	LinkedInExpiry *time.Time
	PreferredTime  string // HH:MM, empty when daily posting is disabled
	TimezoneOffset int    // seconds east of UTC
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// LinkedInConnected reports whether a non-expired LinkedIn token is stored.
func (u UserSettings) LinkedInConnected(now time.Time) bool {
	if u.LinkedInToken == "" || u.LinkedInExpiry == nil {
		return false
	}
	return now.Before(*u.LinkedInExpiry)
}
