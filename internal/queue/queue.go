package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// Schedule enqueues the publish of postID at the given time. A post is
// enqueued at most once; scheduling it again is a no-op.
func (q *Queue) Schedule(ctx context.Context, postID string, at time.Time) error {
	taskPayload, err := json.Marshal(PublishPostPayload{PostID: postID})
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypePublishPost, taskPayload)

	_, err = q.client.EnqueueContext(ctx, task,
		asynq.ProcessAt(at),
		asynq.TaskID(TaskTypePublishPost+":"+postID),
		asynq.MaxRetry(0),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		slog.Info("task already scheduled", "post", postID)
		return nil
	}
	if err != nil {
		return err
	}

	slog.Info("task scheduled", "post", postID, "at", at)
	return nil
}
