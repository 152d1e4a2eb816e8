package scheduler

import (
	"context"
	"errors"
	"time"

	"ionizer_portal/platform/config"
	"ionizer_portal/platform/db"

	"github.com/hibiken/asynq"
)

const (
	defaultQueue       = "session"
	refreshMaxRetry    = 3
	refreshRetention   = time.Hour
	refreshTaskTimeout = 30 * time.Second
)

type Client struct {
	client *asynq.Client
	queue  string
}

func NewClient(cfg config.RefreshConfig) (*Client, error) {
	opt, err := redisClientOpt(cfg)
	if err != nil {
		return nil, err
	}

	return &Client{
		client: asynq.NewClient(opt),
		queue:  queueName(cfg),
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// ScheduleRefresh enqueues a refresh of sessionKey's tokens at runAt. A task
// for the same tokens already in the queue is left as is.
func (c *Client) ScheduleRefresh(ctx context.Context, sessionKey string, expiresAt int64, runAt time.Time) error {
	if c == nil || c.client == nil {
		return nil
	}

	payload := SessionRefreshPayload{SessionKey: sessionKey, ExpiresAt: expiresAt}
	task, err := NewSessionRefreshTask(payload)
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task,
		asynq.ProcessAt(runAt),
		asynq.Queue(c.queue),
		asynq.TaskID(sessionRefreshTaskID(payload)),
		asynq.MaxRetry(refreshMaxRetry),
		asynq.Timeout(refreshTaskTimeout),
		asynq.Retention(refreshRetention),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

func queueName(cfg config.RefreshConfig) string {
	if q := cfg.GetAsynqQueueName(); q != "" {
		return q
	}
	return defaultQueue
}

func redisClientOpt(cfg config.RedisConfig) (asynq.RedisClientOpt, error) {
	opt, err := db.RedisOptions(cfg)
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
