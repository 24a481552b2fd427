package review

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/toko-priceguard/internal/obs"
)

const maxRetry = 5

type taskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Client enqueues review tasks.
type Client struct {
	tasks taskEnqueuer
	queue string
	close func() error
}

// NewClient connects an asynq client to the Redis instance at redisURL.
func NewClient(redisURL, queue string) (*Client, error) {
	opt, err := RedisClientOpt(redisURL)
	if err != nil {
		return nil, err
	}
	client := asynq.NewClient(opt)
	return &Client{tasks: client, queue: queueOrDefault(queue), close: client.Close}, nil
}

// NewClientWith builds a client around an existing enqueuer.
func NewClientWith(tasks taskEnqueuer, queue string) *Client {
	return &Client{tasks: tasks, queue: queueOrDefault(queue)}
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	if c == nil || c.close == nil {
		return nil
	}
	return c.close()
}

// Enqueue schedules a review. A validation is enqueued at most once.
func (c *Client) Enqueue(ctx context.Context, payload Payload) error {
	if c == nil || c.tasks == nil {
		return nil
	}
	if payload.SubmittedAt.IsZero() {
		payload.SubmittedAt = time.Now().UTC()
	}
	task, err := NewTask(payload)
	if err != nil {
		return err
	}
	_, err = c.tasks.EnqueueContext(ctx, task,
		asynq.Queue(c.queue),
		asynq.TaskID(payload.ValidationID),
		asynq.MaxRetry(maxRetry),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		err = nil
	}
	obs.ObserveReviewTask("enqueue", err)
	if err != nil {
		return fmt.Errorf("enqueue review %s: %w", payload.ValidationID, err)
	}
	return nil
}

// RedisClientOpt converts a redis:// URL into asynq connection options.
func RedisClientOpt(redisURL string) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}
	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Username:  opt.Username,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: opt.TLSConfig,
	}, nil
}

func queueOrDefault(queue string) string {
	if queue == "" {
		return "default"
	}
	return queue
}
