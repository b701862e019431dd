package bot

import (
	"fmt"
	"strings"

	"jobscout_bot/internal/model"
)

// FormatJobCard renders a single job as a compact Telegram card.
func FormatJobCard(j model.JobRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s — %s • %s\n", j.Title, j.Company, j.Location)
	fmt.Fprintf(&b, "%s • posted %s\n", j.Site, j.DatePosted)
	fmt.Fprintf(&b, "%s • %s\n", j.Remote, j.JobType)
	fmt.Fprintf(&b, "Salary: %s", j.Salary)
	if j.Description != "" {
		b.WriteString("\n\n")
		b.WriteString(j.Description)
	}
	return b.String()
}

// FormatDigestJob renders a job as a one-line digest entry.
func FormatDigestJob(j model.JobRecord) string {
	return fmt.Sprintf("%s — %s • %s\n%s", j.Title, j.Company, j.Location, j.LinkURL())
}

// FormatFavorites renders the favorites list.
func FormatFavorites(jobs []model.JobRecord) string {
	if len(jobs) == 0 {
		return "You have no favorites yet. Use the ☆ button under a job card."
	}
	var b strings.Builder
	b.WriteString("Your favorites:\n")
	for i, j := range jobs {
		fmt.Fprintf(&b, "\n%d. %s — %s • %s\n%s\n", i+1, j.Title, j.Company, j.Location, j.LinkURL())
	}
	return b.String()
}

// FormatSavedSearches renders the saved search list with subscription
// state.
func FormatSavedSearches(searches []model.SavedSearch) string {
	if len(searches) == 0 {
		return "No saved searches yet. Run /search and then /save <name>."
	}
	var b strings.Builder
	b.WriteString("Saved searches:\n")
	for i, ss := range searches {
		freq := ss.Subscription.Freq
		if freq == "" {
			freq = model.FreqDaily
		}
		state := string(freq)
		if ss.Subscription.Paused {
			state += ", paused"
		}
		fmt.Fprintf(&b, "\n%d. %s [%s]\n   %s\n", i+1, ss.Name, state, describeFilters(ss.Filters))
	}
	return b.String()
}

// FormatSettings renders the user's profile and search defaults.
func FormatSettings(u *model.UserRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Sources: %s\n", strings.Join(u.Sources, ", "))
	fmt.Fprintf(&b, "Region: %s\n", u.Country)
	fmt.Fprintf(&b, "Base currency: %s\n", u.BaseCurrency)
	fmt.Fprintf(&b, "Notifications: %s\n", onOff(u.Notifications))
	if len(u.MutedCompanies) > 0 {
		fmt.Fprintf(&b, "Muted companies: %s\n", strings.Join(u.MutedCompanies, ", "))
	}
	return b.String()
}

func describeFilters(f model.FilterSet) string {
	var parts []string
	if f.Keywords != "" {
		parts = append(parts, f.Keywords)
	}
	if f.Location != "" {
		parts = append(parts, "loc:"+f.Location)
	}
	if f.JobType != "" {
		parts = append(parts, "type:"+f.JobType)
	}
	if f.Remote != nil {
		if *f.Remote {
			parts = append(parts, "remote:yes")
		} else {
			parts = append(parts, "remote:no")
		}
	}
	if f.HoursOld > 0 {
		parts = append(parts, fmt.Sprintf("hours:%d", f.HoursOld))
	}
	if f.Country != "" {
		parts = append(parts, "country:"+f.Country)
	}
	if len(parts) == 0 {
		return "(no filters)"
	}
	return strings.Join(parts, " ")
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
