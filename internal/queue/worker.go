package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
)

func (q *Queue) HandlePublishPostTask(ctx context.Context, task *asynq.Task) error {
	var payload PublishPostPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode %s payload: %v: %w", TaskTypePublishPost, err, asynq.SkipRetry)
	}

	res, err := q.publisher.PublishNow(ctx, payload.PostID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	slog.Info("scheduled post published", "post", res.PostID, "status", res.Status, "results", len(res.Results))
	return nil
}

// Mux routes publish tasks to q.
func (q *Queue) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypePublishPost, q.HandlePublishPostTask)
	return mux
}
