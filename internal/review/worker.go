package review

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-priceguard/internal/obs"
)

// Saver persists a review request.
type Saver interface {
	Save(ctx context.Context, payload Payload) error
}

// Worker consumes review tasks.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	store  Saver
	logger zerolog.Logger
}

// NewWorker builds an asynq server listening on queue.
func NewWorker(opt asynq.RedisClientOpt, queue string, concurrency int, store Saver, logger zerolog.Logger) *Worker {
	if concurrency < 1 {
		concurrency = 4
	}
	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{queueOrDefault(queue): 1},
		Logger:      asynqLogger{logger: logger},
	})
	w := &Worker{server: server, mux: asynq.NewServeMux(), store: store, logger: logger}
	w.mux.HandleFunc(TaskUnverifiableLines, w.Handle)
	return w
}

// NewHandler returns a worker without a server, for direct task handling.
func NewHandler(store Saver, logger zerolog.Logger) *Worker {
	return &Worker{store: store, logger: logger}
}

// Handle persists one review task.
func (w *Worker) Handle(ctx context.Context, task *asynq.Task) error {
	payload, err := ParsePayload(task)
	if err != nil {
		obs.ObserveReviewTask("process", err)
		return fmt.Errorf("decode review payload: %v: %w", err, asynq.SkipRetry)
	}
	err = w.store.Save(ctx, payload)
	obs.ObserveReviewTask("process", err)
	if err != nil {
		return err
	}
	w.logger.Info().
		Str("validation_id", payload.ValidationID).
		Str("buyer_id", payload.BuyerID).
		Int("lines", len(payload.Lines)).
		Msg("unverifiable lines recorded for review")
	return nil
}

// Run serves tasks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()
	return w.server.Run(w.mux)
}

type asynqLogger struct {
	logger zerolog.Logger
}

func (l asynqLogger) Debug(args ...any) { l.logger.Debug().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...any)  { l.logger.Info().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...any)  { l.logger.Warn().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...any) { l.logger.Error().Msg(fmt.Sprint(args...)) }
func (l asynqLogger) Fatal(args ...any) { l.logger.Fatal().Msg(fmt.Sprint(args...)) }
