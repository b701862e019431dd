package scraper

// RawJob is one row as emitted by the scraping service. Field types are
// deliberately loose: upstream sites leave fields null, send numbers as
// strings, or propagate NaN-ish sentinels. Rows are mapped into typed
// model.JobRecord values immediately at this boundary.
type RawJob struct {
	Title        any `json:"title"`
	Company      any `json:"company"`
	Location     any `json:"location"`
	Site         any `json:"site"`
	JobURL       any `json:"job_url"`
	JobURLDirect any `json:"job_url_direct"`
	DatePosted   any `json:"date_posted"`
	JobType      any `json:"job_type"`
	IsRemote     any `json:"is_remote"`
	MinAmount    any `json:"min_amount"`
	MaxAmount    any `json:"max_amount"`
	Currency     any `json:"currency"`
	Interval     any `json:"interval"`
	Description  any `json:"description"`
}
