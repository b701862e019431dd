package scraper

import (
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"jobscout_bot/internal/model"
)

func intPtr(n int) *int    { return &n }
func boolPtr(b bool) *bool { return &b }

func TestNormalizeRow(t *testing.T) {
	got := normalizeRow(RawJob{
		Title:      "Senior Go Engineer",
		Company:    "Acme",
		Location:   "Berlin, Germany",
		Site:       "indeed",
		JobURL:     "https://www.Example.com/jobs/123?utm=x",
		DatePosted: "2024-05-01",
		JobType:    "fulltime",
		IsRemote:   true,
		MinAmount:  float64(120000),
		MaxAmount:  float64(150000),
		Currency:   "USD",
		Interval:   "yearly",
	})

	want := model.JobRecord{
		Title:       "Senior Go Engineer",
		Company:     "Acme",
		Location:    "Berlin, Germany",
		Site:        "indeed",
		DatePosted:  "01.05.2024",
		JobType:     "fulltime",
		Remote:      "Remote",
		RemoteFlag:  boolPtr(true),
		Salary:      "120000–150000 USD/yearly",
		MinAmount:   intPtr(120000),
		MaxAmount:   intPtr(150000),
		Currency:    "USD",
		Interval:    "yearly",
		URL:         "https://example.com/jobs/123",
		RawURL:      "https://www.Example.com/jobs/123?utm=x",
		Description: "",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("normalizeRow mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeRowUnknowns(t *testing.T) {
	got := normalizeRow(RawJob{
		Title:    "NaN",
		Company:  nil,
		Location: math.NaN(),
	})

	if got.Title != "—" || got.Company != "—" || got.Location != "—" {
		t.Errorf("unknown fields not marked: %+v", got)
	}
	if got.Remote != "—" {
		t.Errorf("Remote = %q, want unknown marker", got.Remote)
	}
	if got.Salary != "—" {
		t.Errorf("Salary = %q, want unknown marker", got.Salary)
	}
	if got.DatePosted != "—" {
		t.Errorf("DatePosted = %q, want unknown marker", got.DatePosted)
	}
	if got.URL != "" || got.RawURL != "" {
		t.Errorf("URLs should be empty, got %q / %q", got.URL, got.RawURL)
	}
}

func TestNormalizeRowPrefersDirectURL(t *testing.T) {
	got := normalizeRow(RawJob{
		JobURL:       "https://board.example.com/j/1",
		JobURLDirect: "https://careers.acme.com/role/1",
	})
	if got.RawURL != "https://careers.acme.com/role/1" {
		t.Errorf("RawURL = %q, want direct URL", got.RawURL)
	}
	if got.URL != "https://careers.acme.com/role/1" {
		t.Errorf("URL = %q", got.URL)
	}
}

func TestCanonicalURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"strips query and fragment", "https://example.com/jobs/1?a=b#x", "https://example.com/jobs/1"},
		{"lowercases host", "https://Example.COM/Jobs", "https://example.com/Jobs"},
		{"strips www", "https://www.example.com/j", "https://example.com/j"},
		{"empty input", "", ""},
		{"unparseable", "http://[::1]:bad", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := canonicalURL(tt.in); got != tt.want {
				t.Errorf("canonicalURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSalaryString(t *testing.T) {
	tests := []struct {
		name     string
		min, max *int
		currency string
		interval string
		want     string
	}{
		{"range", intPtr(100), intPtr(200), "USD", "yearly", "100–200 USD/yearly"},
		{"min only", intPtr(100), nil, "EUR", "hourly", "100 EUR/hourly"},
		{"max only", nil, intPtr(200), "", "yearly", "200 /yearly"},
		{"no suffix", intPtr(100), nil, "", "", "100"},
		{"unknown", nil, nil, "USD", "yearly", "—"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := salaryString(tt.min, tt.max, tt.currency, tt.interval); got != tt.want {
				t.Errorf("salaryString = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRemoteLabel(t *testing.T) {
	if got := remoteLabel(nil); got != "—" {
		t.Errorf("remoteLabel(nil) = %q", got)
	}
	if got := remoteLabel(boolPtr(true)); got != "Remote" {
		t.Errorf("remoteLabel(true) = %q", got)
	}
	if got := remoteLabel(boolPtr(false)); got != "On-site/Hybrid" {
		t.Errorf("remoteLabel(false) = %q", got)
	}
}

func TestDisplayDate(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"2024-01-31", "31.01.2024"},
		{"yesterday", "yesterday"},
		{"", "—"},
	}
	for _, tt := range tests {
		if got := displayDate(tt.in); got != tt.want {
			t.Errorf("displayDate(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTruncateDescription(t *testing.T) {
	short := strings.Repeat("a", 300)
	if got := truncateDescription(short); got != short {
		t.Errorf("description at the cutoff should pass through")
	}

	long := strings.Repeat("ü", 301)
	got := truncateDescription(long)
	want := strings.Repeat("ü", 280) + "…"
	if got != want {
		t.Errorf("truncated description = %d runes, want %d", len([]rune(got)), len([]rune(want)))
	}
}

func TestToIntSafe(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want *int
	}{
		{"float", float64(120000.7), intPtr(120000)},
		{"int", 5, intPtr(5)},
		{"numeric string", "100", intPtr(100)},
		{"nan", math.NaN(), nil},
		{"nil", nil, nil},
		{"garbage string", "a lot", nil},
		{"empty string", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := toIntSafe(tt.in)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("toIntSafe(%v) mismatch (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}

func TestDedup(t *testing.T) {
	rows := []model.JobRecord{
		{Title: "A", Company: "Acme", Location: "NY", URL: "https://x.com/1"},
		{Title: "A dup", URL: "https://x.com/1"},
		{Title: "B", Company: "Beta", Location: "LA", URL: ""},
		{Title: "B", Company: "Beta", Location: "LA", URL: ""},
		{Title: "B", Company: "Beta", Location: "SF", URL: ""},
	}

	got := Dedup(rows)
	want := []model.JobRecord{rows[0], rows[2], rows[4]}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Dedup mismatch (-want +got):\n%s", diff)
	}

	// Idempotent on already-unique input.
	again := Dedup(got)
	if diff := cmp.Diff(got, again); diff != "" {
		t.Errorf("Dedup not idempotent (-first +second):\n%s", diff)
	}
}

func TestNormalizeDropsBatchDuplicates(t *testing.T) {
	raws := []RawJob{
		{Title: "One", JobURL: "https://www.x.com/1?ref=a"},
		{Title: "One again", JobURL: "https://x.com/1"},
		{Title: "Two", JobURL: "https://x.com/2"},
	}
	got := Normalize(raws)
	if len(got) != 2 {
		t.Fatalf("Normalize kept %d rows, want 2", len(got))
	}
	if got[0].Title != "One" || got[1].Title != "Two" {
		t.Errorf("unexpected rows kept: %+v", got)
	}
}
