package scheduler

import (
	"context"
	"fmt"

	"ionizer_portal/internal/identity"
	"ionizer_portal/platform/config"
	"ionizer_portal/platform/logger"

	"github.com/hibiken/asynq"
)

// Refresher refreshes one browser's stored tokens if they still expire
// at expectExpiresAt.
type Refresher interface {
	Refresh(ctx context.Context, expectExpiresAt int64) (*identity.Session, error)
}

// Sessions finds the identity handle for a browser session key.
type Sessions interface {
	RefresherFor(key string) Refresher
}

type Worker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	sessions Sessions
	log      *logger.Logger
}

func NewWorker(cfg config.RefreshConfig, sessions Sessions, log *logger.Logger) (*Worker, error) {
	opt, err := redisClientOpt(cfg)
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 5
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
		Logger:   asynqLogger{log: log},
		LogLevel: asynq.WarnLevel,
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:   server,
		mux:      mux,
		sessions: sessions,
		log:      log,
	}

	mux.HandleFunc(TaskSessionRefresh, w.handleSessionRefresh)

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("refresh worker stopped", "error", err)
	}
}

// handleSessionRefresh refreshes the tokens named by the task. Sessions
// that moved on or were rejected need no retry; transport failures do.
func (w *Worker) handleSessionRefresh(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseSessionRefreshPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	log := w.log.WithSessionKey(payload.SessionKey)
	next, err := w.sessions.RefresherFor(payload.SessionKey).Refresh(ctx, payload.ExpiresAt)
	if err != nil {
		log.Warn("scheduled token refresh failed", "error", err)
		return err
	}
	if next == nil {
		log.Debug("scheduled token refresh skipped")
		return nil
	}

	log.Debug("tokens refreshed", "expires_at", next.ExpiresAt)
	return nil
}

// asynqLogger routes asynq's logs through the application logger.
type asynqLogger struct {
	log *logger.Logger
}

func (l asynqLogger) Debug(args ...interface{}) { l.log.Debug(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...interface{})  { l.log.Info(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...interface{})  { l.log.Warn(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...interface{}) { l.log.Error(fmt.Sprint(args...)) }
func (l asynqLogger) Fatal(args ...interface{}) { l.log.Error(fmt.Sprint(args...)) }
