package message

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	sdkerrors "github.com/wehubfusion/Talaria/pkg/errors"
	"go.uber.org/zap"
)

// Service provides JetStream publish and pull-consume operations for
// Messages. Pull subscriptions are created lazily and cached per
// stream/consumer pair.
type Service struct {
	js             nats.JetStreamContext
	resultSubject  string
	publishRetries int
	logger         *zap.Logger

	mu   sync.Mutex
	subs map[string]*nats.Subscription
}

// NewService creates a message service over a JetStream context.
// resultSubject is where ReportSuccess and ReportError publish outcomes.
func NewService(js nats.JetStreamContext, resultSubject string, publishRetries int, logger *zap.Logger) (*Service, error) {
	if js == nil {
		return nil, sdkerrors.NewError("JETSTREAM_REQUIRED", "JetStream context cannot be nil", nil)
	}
	if resultSubject == "" {
		return nil, sdkerrors.NewError("INVALID_SUBJECT", "result subject cannot be empty", sdkerrors.ErrInvalidSubject)
	}
	if publishRetries < 0 {
		publishRetries = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		js:             js,
		resultSubject:  resultSubject,
		publishRetries: publishRetries,
		logger:         logger,
		subs:           make(map[string]*nats.Subscription),
	}, nil
}

// Publish serializes the message and publishes it to the subject, retrying
// transient failures with a short delay.
func (s *Service) Publish(ctx context.Context, subject string, msg *Message) error {
	if subject == "" {
		return sdkerrors.NewError("INVALID_SUBJECT", "subject cannot be empty", sdkerrors.ErrInvalidSubject)
	}
	if msg == nil {
		return sdkerrors.NewError("INVALID_MESSAGE", "message cannot be nil", sdkerrors.ErrInvalidMessage)
	}

	data, err := msg.ToJSON()
	if err != nil {
		return sdkerrors.NewError("MARSHAL_FAILED", "failed to serialize message", err)
	}

	var lastErr error
	for attempt := 0; attempt <= s.publishRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("publish cancelled: %w", ctx.Err())
			case <-time.After(time.Second):
			}
			s.logger.Warn("retrying publish",
				zap.String("subject", subject),
				zap.Int("attempt", attempt),
				zap.Error(lastErr))
		}

		if _, lastErr = s.js.Publish(subject, data, nats.Context(ctx)); lastErr == nil {
			s.logger.Debug("published message",
				zap.String("subject", subject),
				zap.String("correlation_id", msg.CorrelationID))
			return nil
		}
	}

	return sdkerrors.NewError("PUBLISH_FAILED", fmt.Sprintf("failed to publish to %s", subject), lastErr)
}

// PullMessages fetches up to batch messages from a durable pull consumer.
// An empty batch is normal and returns an empty slice, not an error.
func (s *Service) PullMessages(ctx context.Context, stream, consumer string, batch int) ([]*Message, error) {
	sub, err := s.pullSubscription(stream, consumer)
	if err != nil {
		return nil, err
	}

	raw, err := sub.Fetch(batch, nats.Context(ctx))
	if err != nil {
		if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
			return []*Message{}, nil
		}
		return nil, sdkerrors.NewError("FETCH_FAILED", "failed to fetch messages", err)
	}

	messages := make([]*Message, 0, len(raw))
	for _, natsMsg := range raw {
		msg, err := FromJSON(natsMsg.Data)
		if err != nil {
			// A message that can never parse will never parse; stop redelivery.
			s.logger.Warn("terminating malformed message", zap.Error(err))
			if termErr := natsMsg.Term(); termErr != nil {
				s.logger.Error("failed to terminate malformed message", zap.Error(termErr))
			}
			continue
		}
		msg.SetNATSMsg(natsMsg)
		messages = append(messages, msg)
	}

	return messages, nil
}

// pullSubscription returns the cached pull subscription for a
// stream/consumer pair, binding one on first use.
func (s *Service) pullSubscription(stream, consumer string) (*nats.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := stream + "/" + consumer
	if sub, ok := s.subs[key]; ok && sub.IsValid() {
		return sub, nil
	}

	sub, err := s.js.PullSubscribe("", consumer, nats.Bind(stream, consumer))
	if err != nil {
		return nil, sdkerrors.NewError("SUBSCRIBE_FAILED",
			fmt.Sprintf("failed to bind consumer %s on stream %s", consumer, stream),
			errors.Join(sdkerrors.ErrSubscriptionFailed, err))
	}
	s.subs[key] = sub
	return sub, nil
}

// ReportSuccess publishes the result message to the result subject and acks
// the source message. If publishing fails, the source is nak'd for
// redelivery.
func (s *Service) ReportSuccess(ctx context.Context, result *Message, source *Message) error {
	if err := s.Publish(ctx, s.resultSubject, result); err != nil {
		if source != nil {
			if nakErr := source.Nak(); nakErr != nil {
				s.logger.Error("failed to nak after publish failure", zap.Error(nakErr))
			}
		}
		return err
	}
	if source != nil {
		return source.Ack()
	}
	return nil
}

// ReportError publishes an error outcome for the source message to the
// result subject and acks the source; the failure is recorded, not retried.
func (s *Service) ReportError(ctx context.Context, source *Message, processErr error) error {
	report := NewMessage().
		WithMetadata("status", "error").
		WithMetadata("error", processErr.Error())
	if source != nil {
		report.CorrelationID = source.CorrelationID
	}

	if err := s.Publish(ctx, s.resultSubject, report); err != nil {
		if source != nil {
			if nakErr := source.Nak(); nakErr != nil {
				s.logger.Error("failed to nak after publish failure", zap.Error(nakErr))
			}
		}
		return err
	}
	if source != nil {
		return source.Ack()
	}
	return nil
}
