// Package model defines the domain types used across the application.
package model

// DefaultSources lists the scraper sites enabled for new users.
var DefaultSources = []string{"indeed", "linkedin", "google", "zip_recruiter", "glassdoor"}

// UserRecord is the persisted per-user state, keyed by Telegram user ID.
type UserRecord struct {
	Lang           string             `json:"lang"`
	Role           string             `json:"role"`
	Sources        []string           `json:"sources"`
	Country        string             `json:"country"`
	Previews       bool               `json:"previews"`
	Notifications  bool               `json:"notifications"`
	BaseCurrency   string             `json:"base_currency"`
	FXRates        map[string]float64 `json:"fx_rates"`
	FXTimestamp    int64              `json:"fx_ts"`
	FXError        string             `json:"fx_error,omitempty"`
	MutedCompanies []string           `json:"muted_companies"`
	Favorites      []JobRecord        `json:"favorites"`
	SavedSearches  []SavedSearch      `json:"saved_searches"`
	LastResults    []JobRecord        `json:"last_results"`
}

// IsMuted reports whether the given company is on the user's mute list.
func (u *UserRecord) IsMuted(company string) bool {
	for _, c := range u.MutedCompanies {
		if c == company {
			return true
		}
	}
	return false
}

// MutedSet returns the mute list as a lookup set.
func (u *UserRecord) MutedSet() map[string]bool {
	m := make(map[string]bool, len(u.MutedCompanies))
	for _, c := range u.MutedCompanies {
		m[c] = true
	}
	return m
}

// Frequency controls how often a saved-search digest is sent.
type Frequency string

// Supported digest frequencies.
const (
	FreqOff     Frequency = "off"
	FreqDaily   Frequency = "daily"
	FreqEvery3d Frequency = "3d"
	FreqWeekly  Frequency = "weekly"
)

// PeriodSeconds returns the digest period for the frequency, or 0 for
// off. Unset and unknown values fall back to daily.
func (f Frequency) PeriodSeconds() int64 {
	switch f {
	case FreqOff:
		return 0
	case FreqEvery3d:
		return 3 * 24 * 3600
	case FreqWeekly:
		return 7 * 24 * 3600
	default:
		return 24 * 3600
	}
}

// Subscription is the digest policy attached to a saved search.
type Subscription struct {
	Freq       Frequency `json:"freq,omitempty"`
	Paused     bool      `json:"paused,omitempty"`
	LastSentAt int64     `json:"last_ts,omitempty"`
}

// SavedSearch is a named filter set with an attached subscription.
type SavedSearch struct {
	Name         string       `json:"name"`
	Filters      FilterSet    `json:"filters"`
	Subscription Subscription `json:"subs"`
}

// FilterSet holds the search constraints pushed down to the scraper.
// Zero/nil fields mean "no constraint".
type FilterSet struct {
	Keywords string `json:"keywords,omitempty"`
	Location string `json:"location,omitempty"`
	JobType  string `json:"job_type,omitempty"`
	Remote   *bool  `json:"remote,omitempty"`
	HoursOld int    `json:"hours_old,omitempty"`
	Distance int    `json:"distance,omitempty"`
	Country  string `json:"country,omitempty"`
}

// JobRecord is a canonical job posting after normalization.
// URL is the canonical dedup key (scheme+host+path, lower-cased host,
// no leading www, query and fragment stripped); RawURL is kept for
// outbound linking.
type JobRecord struct {
	Title       string `json:"title"`
	Company     string `json:"company"`
	Location    string `json:"location"`
	Site        string `json:"site"`
	DatePosted  string `json:"date_posted"`
	JobType     string `json:"job_type"`
	Remote      string `json:"remote"`
	RemoteFlag  *bool  `json:"remote_flag,omitempty"`
	Salary      string `json:"salary"`
	MinAmount   *int   `json:"min_amount,omitempty"`
	MaxAmount   *int   `json:"max_amount,omitempty"`
	Currency    string `json:"currency"`
	Interval    string `json:"interval"`
	URL         string `json:"job_url"`
	RawURL      string `json:"job_url_raw"`
	Description string `json:"description"`
}

// LinkURL returns the best URL for opening the posting.
func (j JobRecord) LinkURL() string {
	if j.RawURL != "" {
		return j.RawURL
	}
	return j.URL
}
