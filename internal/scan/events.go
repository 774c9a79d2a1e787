// Package scan orchestrates a multi-hop OSINT scan: probe scheduling,
// state accumulation across hops, risk scoring and the event stream the
// API layer forwards to clients.
package scan

import (
	"github.com/trace-osint/trace/internal/model"
)

// EventType discriminates stream events.
type EventType string

const (
	EventStart    EventType = "start"
	EventFinding  EventType = "finding"
	EventProgress EventType = "progress"
	EventLog      EventType = "log"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

// Event is one element of the scan stream. Exactly the fields relevant to
// Type are populated; Body renders the wire payload.
type Event struct {
	Type         EventType
	Depth        int
	Finding      *model.Finding
	Progress     int
	FindingCount int
	Elapsed      float64
	Message      string
	Results      *Results
}

// Body returns the JSON-serializable payload for the SSE data field.
func (e Event) Body() map[string]any {
	body := map[string]any{"type": string(e.Type)}
	switch e.Type {
	case EventStart:
		body["depth"] = e.Depth
	case EventFinding:
		body["finding"] = e.Finding
	case EventProgress:
		body["progress"] = e.Progress
		body["finding_count"] = e.FindingCount
		body["elapsed"] = e.Elapsed
	case EventLog:
		body["message"] = e.Message
	case EventComplete:
		body["results"] = e.Results
	case EventError:
		body["error"] = e.Message
	}
	return body
}

// Stats summarizes what a scan surfaced.
type Stats struct {
	Accounts            int `json:"accounts"`
	Breaches            int `json:"breaches"`
	PersonalInfo        int `json:"personal_info"`
	Critical            int `json:"critical"`
	High                int `json:"high"`
	UsernamesDiscovered int `json:"usernames_discovered"`
	URLsFound           int `json:"urls_found"`
}

// Results is the payload of the complete event.
type Results struct {
	ScanID   string          `json:"scan_id"`
	Findings []model.Finding `json:"findings"`
	Risk     Report          `json:"risk"`
	Stats    Stats           `json:"stats"`
	Elapsed  float64         `json:"elapsed"`
	TimedOut bool            `json:"timed_out,omitempty"`
}
