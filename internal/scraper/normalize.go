package scraper

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"jobscout_bot/internal/model"
)

// unknownMark is rendered for fields with no usable value.
const unknownMark = "—"

const (
	descCutoff = 300
	descKeep   = 280
)

// cleanString converts an arbitrary upstream value to a safe string.
// Nil, NaN and NaN-like sentinels become the empty string.
func cleanString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "nan", "none", "null":
			return ""
		}
		return t
	case float64:
		if math.IsNaN(t) {
			return ""
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// toIntSafe best-effort converts a numeric-like value to an int.
// Nil, empty, NaN and unparseable values yield nil.
func toIntSafe(v any) *int {
	switch t := v.(type) {
	case nil:
		return nil
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil
		}
		n := int(t)
		return &n
	case int:
		n := t
		return &n
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) {
			return nil
		}
		n := int(f)
		return &n
	default:
		return nil
	}
}

func toBoolPtr(v any) *bool {
	if b, ok := v.(bool); ok {
		return &b
	}
	return nil
}

// canonicalURL reduces a URL to scheme + lower-cased host (without a
// leading www.) + path, dropping query string and fragment. Unparseable
// input yields the empty string.
func canonicalURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Host)
	host = strings.TrimPrefix(host, "www.")
	return u.Scheme + "://" + host + u.Path
}

// salaryString renders the salary descriptor: a range when both bounds
// are known, a single value when one is, the unknown marker otherwise.
func salaryString(min, max *int, currency, interval string) string {
	if min == nil && max == nil {
		return unknownMark
	}
	suffix := ""
	if currency != "" || interval != "" {
		suffix = " " + currency + "/" + interval
	}
	if min != nil && max != nil {
		return fmt.Sprintf("%d–%d%s", *min, *max, suffix)
	}
	v := min
	if v == nil {
		v = max
	}
	return fmt.Sprintf("%d%s", *v, suffix)
}

// remoteLabel maps the remote tri-state to a display label.
func remoteLabel(v *bool) string {
	switch {
	case v == nil:
		return unknownMark
	case *v:
		return "Remote"
	default:
		return "On-site/Hybrid"
	}
}

// displayDate converts an ISO date into display form. Anything
// unparseable passes through as-is; empty becomes the unknown marker.
func displayDate(raw string) string {
	if raw == "" {
		return unknownMark
	}
	d, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return raw
	}
	return d.Format("02.01.2006")
}

// truncateDescription cuts long descriptions to a card-friendly length,
// appending an ellipsis. Counting is rune-based so multi-byte text is
// never split mid-character.
func truncateDescription(s string) string {
	r := []rune(s)
	if len(r) <= descCutoff {
		return s
	}
	return string(r[:descKeep]) + "…"
}

func normalizeRow(r RawJob) model.JobRecord {
	orMark := func(s string) string {
		if s == "" {
			return unknownMark
		}
		return s
	}

	rawURL := cleanString(r.JobURLDirect)
	if rawURL == "" {
		rawURL = cleanString(r.JobURL)
	}

	minA := toIntSafe(r.MinAmount)
	maxA := toIntSafe(r.MaxAmount)
	currency := cleanString(r.Currency)
	interval := cleanString(r.Interval)
	remoteFlag := toBoolPtr(r.IsRemote)

	return model.JobRecord{
		Title:       orMark(cleanString(r.Title)),
		Company:     orMark(cleanString(r.Company)),
		Location:    orMark(cleanString(r.Location)),
		Site:        orMark(cleanString(r.Site)),
		DatePosted:  displayDate(cleanString(r.DatePosted)),
		JobType:     orMark(cleanString(r.JobType)),
		Remote:      remoteLabel(remoteFlag),
		RemoteFlag:  remoteFlag,
		Salary:      salaryString(minA, maxA, currency, interval),
		MinAmount:   minA,
		MaxAmount:   maxA,
		Currency:    currency,
		Interval:    interval,
		URL:         canonicalURL(rawURL),
		RawURL:      rawURL,
		Description: truncateDescription(cleanString(r.Description)),
	}
}

// Normalize converts raw scraper rows into canonical job records and
// removes duplicates within the batch. It is a pure transform.
func Normalize(raws []RawJob) []model.JobRecord {
	rows := make([]model.JobRecord, 0, len(raws))
	for _, r := range raws {
		rows = append(rows, normalizeRow(r))
	}
	return Dedup(rows)
}

// Dedup removes duplicate rows in arrival order: a non-empty canonical
// URL seen before drops the row; rows without a canonical URL are
// dropped when a kept row shares their (title, company, location)
// triple. First occurrence wins and output order is stable.
func Dedup(rows []model.JobRecord) []model.JobRecord {
	seenURLs := make(map[string]bool, len(rows))
	kept := make([]model.JobRecord, 0, len(rows))

	for _, r := range rows {
		u := strings.TrimSpace(r.URL)
		if u != "" {
			if seenURLs[u] {
				continue
			}
			seenURLs[u] = true
			kept = append(kept, r)
			continue
		}
		dup := false
		for _, k := range kept {
			if k.Title == r.Title && k.Company == r.Company && k.Location == r.Location {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, r)
		}
	}
	return kept
}
