package events

// ErrorEvent is emitted for failures outside a single service, such as a
// registry that cannot be read or a database that cannot be written.
type ErrorEvent struct {
	BaseEvent
	Target    string `json:"target,omitempty"`
	ErrorType string `json:"error_type"`
	Message   string `json:"message"`
	Fatal     bool   `json:"fatal"`
}
