package handlers

import (
	"context"
	"log/slog"

	"github.com/your-org/annotate/internal/queue"
)

// notifyProject publishes a project change event. Failures are logged
// and do not fail the request that caused them.
func notifyProject(ctx context.Context, producer *queue.Producer, projectID string) {
	if producer == nil {
		return
	}
	err := producer.PublishEvent(ctx, queue.ProjectEvent{
		Type:      "project_updated",
		ProjectID: projectID,
	})
	if err != nil {
		slog.Warn("publish project event", "project_id", projectID, "error", err)
	}
}
