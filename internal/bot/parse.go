package bot

import (
	"strconv"
	"strings"

	"jobscout_bot/internal/model"
)

// ParseQuickQuery parses the one-line /search syntax into a filter set.
// Tokens of the form key:value set a filter; everything else joins the
// keyword string. Supported keys: loc/l, hours/h, remote/r, type/t,
// country/c.
func ParseQuickQuery(text string) model.FilterSet {
	var f model.FilterSet
	var keywords []string

	for _, part := range strings.Fields(text) {
		k, v, ok := strings.Cut(part, ":")
		if !ok || v == "" {
			keywords = append(keywords, part)
			continue
		}
		switch strings.ToLower(k) {
		case "loc", "l":
			f.Location = v
		case "hours", "h":
			if n, err := strconv.Atoi(v); err == nil {
				f.HoursOld = n
			}
		case "remote", "r":
			switch strings.ToLower(v) {
			case "yes", "true", "1":
				t := true
				f.Remote = &t
			case "no", "false", "0":
				fa := false
				f.Remote = &fa
			}
		case "type", "t":
			f.JobType = strings.ToLower(v)
		case "country", "c":
			f.Country = strings.ToLower(v)
		default:
			keywords = append(keywords, part)
		}
	}

	f.Keywords = strings.Join(keywords, " ")
	return f
}

// parseIDArg extracts a numeric index from a command or callback
// argument.
func parseIDArg(args string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(args))
}
