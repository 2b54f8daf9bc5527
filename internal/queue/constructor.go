package queue

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/postflow/internal/service"
)

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type Publisher interface {
	PublishNow(ctx context.Context, postID string) (*service.PostResult, error)
}

// Queue hands deferred posts to asynq and publishes them when they come due.
type Queue struct {
	client    enqueuer
	publisher Publisher
}

func NewQueue(client enqueuer, publisher Publisher) *Queue {
	return &Queue{
		client:    client,
		publisher: publisher,
	}
}

const TaskTypePublishPost = "post:publish"

type PublishPostPayload struct {
	PostID string `json:"post_id"`
}
