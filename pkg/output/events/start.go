package events

// StartEvent is emitted once the registry has been read and the services
// to probe are known.
type StartEvent struct {
	BaseEvent
	Registry string    `json:"registry"`
	DestDir  string    `json:"dest_dir"`
	Services int       `json:"services"`
	Missing  int       `json:"missing,omitzero"`
	Parallel bool      `json:"parallel"`
	Config   RunConfig `json:"config"`
}

// RunConfig contains the settings a run was started with.
type RunConfig struct {
	Concurrency int     `json:"concurrency"`
	TimeoutSec  float64 `json:"timeout_sec"`
	RateLimit   int     `json:"rate_limit,omitzero"`
	Retries     int     `json:"retries"`
	Proxy       bool    `json:"proxy"`
}
