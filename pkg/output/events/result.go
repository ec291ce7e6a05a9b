package events

// ResultEvent reports the outcome of validating one service.
type ResultEvent struct {
	BaseEvent
	Catalog      string   `json:"catalog"`
	Title        string   `json:"title,omitempty"`
	URL          string   `json:"url"`
	QueryURL     string   `json:"query_url"`
	Status       string   `json:"status"`
	Expected     string   `json:"expected"`
	Version      string   `json:"votable_version,omitempty"`
	Warnings     int      `json:"warnings"`
	Exceptions   int      `json:"exceptions"`
	WarningTypes []string `json:"warning_types,omitempty"`
	Diagnostics  []string `json:"diagnostics,omitempty"`
	NetworkError string   `json:"network_error,omitempty"`
	DurationMs   int64    `json:"duration_ms"`
	ResultDir    string   `json:"result_dir,omitempty"`
}

// Failed reports whether the service could not be queried.
func (e *ResultEvent) Failed() bool { return e.NetworkError != "" }
