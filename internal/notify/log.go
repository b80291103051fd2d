package notify

import (
	"context"
	"log/slog"
)

// LogPublisher writes events to the structured log. It serves deployments
// without a broker and keeps the sink observable in development.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, event Event) error {
	p.logger.InfoContext(ctx, "notification",
		"title", event.Title,
		"message", event.Message,
		"severity", string(event.Severity),
		"link", event.Link,
	)
	return nil
}
