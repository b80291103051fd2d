// Package notify is the fire-and-forget notification sink. Workflows emit
// structured events on citizen registration and tax payment; delivery is best
// effort and a failed emission never rolls back the primary operation.
package notify

import (
	"context"
	"time"
)

// Severity grades a notification for the consuming dashboard.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
)

// Event is the structured payload handed to the sink.
type Event struct {
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	Link      string    `json:"link,omitempty"`
	EmittedAt time.Time `json:"emitted_at"`
}

// Publisher delivers events to the external reporting side. Implementations
// must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}
