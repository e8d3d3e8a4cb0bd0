package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"supply-service/models"
	awspkg "supply-service/pkg/aws"

	"go.uber.org/zap"
)

// EventSink receives domain events after the change they describe has been
// committed. Emit never fails the caller.
type EventSink interface {
	Emit(ctx context.Context, event models.DomainEvent)
}

// EventDispatcher turns an event into notification rows.
type EventDispatcher interface {
	Dispatch(ctx context.Context, event models.DomainEvent) (models.DispatchResult, error)
}

// InlineSink fans events out on a detached goroutine in this process.
type InlineSink struct {
	dispatcher EventDispatcher
	logger     *zap.Logger
	wg         sync.WaitGroup
}

func NewInlineSink(dispatcher EventDispatcher, logger *zap.Logger) *InlineSink {
	return &InlineSink{dispatcher: dispatcher, logger: logger}
}

func (s *InlineSink) Emit(ctx context.Context, event models.DomainEvent) {
	// The request may finish before the fan-out does.
	ctx = context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		result, err := s.dispatcher.Dispatch(ctx, event)
		if err != nil {
			s.logger.Error("Notification fan-out failed",
				zap.String("event_type", string(event.Type)),
				zap.String("event_id", event.ID.String()),
				zap.Error(err),
			)
			return
		}
		s.logger.Debug("Notification fan-out done",
			zap.String("event_type", string(event.Type)),
			zap.Int("recipients", result.Recipients),
			zap.Int("written", result.Written),
			zap.Int("failed", result.Failed),
		)
	}()
}

// Wait blocks until in-flight fan-outs finish or ctx is done.
func (s *InlineSink) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

const snsPublishTimeout = 5 * time.Second

// SNSSink publishes events to a topic whose SQS subscription feeds the
// EventConsumer. When publishing fails the event goes to fallback instead of
// being lost.
type SNSSink struct {
	publisher awspkg.SNSPublisher
	topicArn  string
	fallback  EventSink
	logger    *zap.Logger
}

func NewSNSSink(publisher awspkg.SNSPublisher, topicArn string, fallback EventSink, logger *zap.Logger) *SNSSink {
	return &SNSSink{publisher: publisher, topicArn: topicArn, fallback: fallback, logger: logger}
}

func (s *SNSSink) Emit(ctx context.Context, event models.DomainEvent) {
	b, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("Failed to marshal domain event", zap.String("event_type", string(event.Type)), zap.Error(err))
		s.fallback.Emit(ctx, event)
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), snsPublishTimeout)
	defer cancel()
	attrs := map[string]string{"event_type": string(event.Type)}
	if err := s.publisher.Publish(pubCtx, s.topicArn, b, attrs); err != nil {
		s.logger.Warn("SNS publish failed, dispatching inline",
			zap.String("event_type", string(event.Type)),
			zap.String("event_id", event.ID.String()),
			zap.Error(err),
		)
		s.fallback.Emit(ctx, event)
		return
	}
	s.logger.Info("Published domain event",
		zap.String("event_type", string(event.Type)),
		zap.String("topic", s.topicArn),
	)
}
