// Package runner pulls pipeline messages from a NATS JetStream consumer and
// processes them with a configurable worker pool, reporting every outcome to
// the result subject.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/wehubfusion/Talaria/internal/tracing"
	"github.com/wehubfusion/Talaria/pkg/client"
	"github.com/wehubfusion/Talaria/pkg/message"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Processor handles the business logic for a single pulled message.
type Processor interface {
	Process(ctx context.Context, msg *message.Message) (*message.Message, error)
}

// Runner manages concurrent message processing from a JetStream consumer.
type Runner struct {
	client          *client.Client
	processor       Processor
	stream          string
	consumer        string
	batchSize       int
	numWorkers      int
	processTimeout  time.Duration
	logger          *zap.Logger
	tracer          trace.Tracer
	tracingShutdown func(context.Context) error
}

// NewRunner creates a runner over a connected client. tracingConfig is
// optional; when provided, tracing is set up here and torn down in Close.
func NewRunner(c *client.Client, processor Processor, stream, consumer string, batchSize, numWorkers int, processTimeout time.Duration, logger *zap.Logger, tracingConfig *tracing.Config) (*Runner, error) {
	if c == nil {
		return nil, errors.New("client cannot be nil")
	}
	if processor == nil {
		return nil, errors.New("processor cannot be nil")
	}
	if stream == "" {
		return nil, errors.New("stream name cannot be empty")
	}
	if consumer == "" {
		return nil, errors.New("consumer name cannot be empty")
	}
	if batchSize <= 0 {
		return nil, errors.New("batchSize must be greater than 0")
	}
	if numWorkers <= 0 {
		return nil, errors.New("numWorkers must be greater than 0")
	}
	if processTimeout <= 0 {
		return nil, errors.New("processTimeout must be greater than 0")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	js := c.JetStream()
	if js == nil {
		return nil, errors.New("JetStream context is not available")
	}
	if err := ensureStream(js, stream, logger); err != nil {
		return nil, fmt.Errorf("failed to ensure stream '%s' exists: %w", stream, err)
	}

	r := &Runner{
		client:         c,
		processor:      processor,
		stream:         stream,
		consumer:       consumer,
		batchSize:      batchSize,
		numWorkers:     numWorkers,
		processTimeout: processTimeout,
		logger:         logger,
		tracer:         otel.Tracer("talaria/runner"),
	}

	if tracingConfig != nil {
		shutdown, err := tracing.Setup(context.Background(), *tracingConfig, logger)
		if err != nil {
			logger.Warn("failed to set up tracing, continuing without it", zap.Error(err))
		} else {
			r.tracingShutdown = shutdown
		}
	}

	return r, nil
}

// ensureStream creates the JetStream stream if it doesn't exist.
func ensureStream(js nats.JetStreamContext, streamName string, logger *zap.Logger) error {
	info, err := js.StreamInfo(streamName)
	if err != nil {
		if !errors.Is(err, nats.ErrStreamNotFound) {
			return fmt.Errorf("failed to get stream info for '%s': %w", streamName, err)
		}

		logger.Info("creating JetStream stream", zap.String("stream", streamName))
		_, err = js.AddStream(&nats.StreamConfig{
			Name:     streamName,
			Subjects: []string{fmt.Sprintf("%s.*", streamName)},
			Storage:  nats.FileStorage,
			MaxAge:   24 * time.Hour,
			MaxMsgs:  100000,
			Replicas: 1,
		})
		if err != nil {
			return fmt.Errorf("failed to create stream '%s': %w", streamName, err)
		}
		return nil
	}

	logger.Info("JetStream stream already exists",
		zap.String("stream", streamName),
		zap.Uint64("messages", info.State.Msgs),
		zap.Int("consumers", info.State.Consumers))
	return nil
}

// Close shuts down the runner's tracing resources.
func (r *Runner) Close() error {
	if r.tracingShutdown != nil {
		return tracing.Shutdown(r.tracingShutdown, r.logger)
	}
	return nil
}

// Run starts the processing loop: one puller goroutine feeding numWorkers
// worker goroutines. It blocks until the context is cancelled and all
// workers have drained.
func (r *Runner) Run(ctx context.Context) error {
	messageChan := make(chan *message.Message, r.batchSize)

	var wg sync.WaitGroup
	for i := 0; i < r.numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			r.worker(ctx, workerID, messageChan)
		}(i)
	}

	go func() {
		defer close(messageChan)

		backoff := 100 * time.Millisecond
		maxBackoff := 5 * time.Second

		for {
			select {
			case <-ctx.Done():
				r.logger.Info("shutting down message puller")
				return
			default:
			}

			messages, err := r.client.Messages.PullMessages(ctx, r.stream, r.consumer, r.batchSize)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				r.logger.Error("error pulling messages", zap.Error(err))
				time.Sleep(backoff)
				if backoff < maxBackoff {
					backoff *= 2
				}
				continue
			}

			if len(messages) == 0 {
				select {
				case <-time.After(500 * time.Millisecond):
				case <-ctx.Done():
					return
				}
				continue
			}

			backoff = 100 * time.Millisecond

			for _, msg := range messages {
				select {
				case messageChan <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		wg.Wait()
	}()

	select {
	case <-done:
		r.logger.Info("runner completed")
		return nil
	case <-ctx.Done():
		r.logger.Info("runner stopped", zap.Error(ctx.Err()))
		return ctx.Err()
	}
}

func (r *Runner) worker(ctx context.Context, workerID int, messageChan <-chan *message.Message) {
	r.logger.Info("worker started", zap.Int("worker_id", workerID))
	defer r.logger.Info("worker stopped", zap.Int("worker_id", workerID))

	for {
		select {
		case msg, ok := <-messageChan:
			if !ok {
				return
			}
			r.processMessage(ctx, workerID, msg)
		case <-ctx.Done():
			return
		}
	}
}

func (r *Runner) processMessage(ctx context.Context, workerID int, msg *message.Message) {
	ctx, span := r.tracer.Start(ctx, "runner.processMessage",
		trace.WithAttributes(
			attribute.Int("worker.id", workerID),
			attribute.String("message.correlation_id", msg.CorrelationID),
			attribute.Int("message.pipeline_length", len(msg.Pipeline)),
			attribute.String("stream", r.stream),
			attribute.String("consumer", r.consumer),
		))
	defer span.End()

	if ctx.Err() != nil {
		span.SetStatus(codes.Error, "context cancelled before processing")
		return
	}

	processCtx, cancel := context.WithTimeout(ctx, r.processTimeout)
	defer cancel()

	start := time.Now()
	result, processErr := r.processor.Process(processCtx, msg)
	duration := time.Since(start)
	span.SetAttributes(attribute.Int64("processing.duration_ms", duration.Milliseconds()))

	// Reporting uses a fresh context so a cancelled run still records
	// outcomes.
	reportCtx, reportCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer reportCancel()

	if processErr != nil {
		span.RecordError(processErr)
		span.SetStatus(codes.Error, processErr.Error())
		r.logger.Error("error processing message",
			zap.Int("worker_id", workerID),
			zap.String("correlation_id", msg.CorrelationID),
			zap.Duration("duration", duration),
			zap.Error(processErr))

		if reportErr := r.client.Messages.ReportError(reportCtx, msg, processErr); reportErr != nil {
			r.logger.Error("error reporting failure",
				zap.Int("worker_id", workerID),
				zap.String("correlation_id", msg.CorrelationID),
				zap.Error(reportErr))
		}
		return
	}

	span.SetStatus(codes.Ok, "message processed")
	r.logger.Info("processed message",
		zap.Int("worker_id", workerID),
		zap.String("correlation_id", msg.CorrelationID),
		zap.Duration("duration", duration))

	if reportErr := r.client.Messages.ReportSuccess(reportCtx, result, msg); reportErr != nil {
		r.logger.Error("error reporting success",
			zap.Int("worker_id", workerID),
			zap.String("correlation_id", msg.CorrelationID),
			zap.Error(reportErr))
	}
}
