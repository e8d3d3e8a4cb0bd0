package services

import (
	"context"
	"encoding/json"
	"errors"

	"supply-service/models"

	"go.uber.org/zap"
)

// snsEnvelope is the wrapper SNS puts around messages delivered to SQS
// without raw message delivery.
type snsEnvelope struct {
	Type      string `json:"Type"`
	MessageID string `json:"MessageId"`
	TopicArn  string `json:"TopicArn"`
	Message   string `json:"Message"`
}

// EventConsumer feeds queued domain events to the dispatcher.
type EventConsumer struct {
	dispatcher EventDispatcher
	logger     *zap.Logger
}

func NewEventConsumer(dispatcher EventDispatcher, logger *zap.Logger) *EventConsumer {
	return &EventConsumer{dispatcher: dispatcher, logger: logger}
}

// HandleMessage matches awspkg.MessageHandler. Returning an error keeps the
// message on the queue for redelivery; undecodable or undispatchable events
// are logged and dropped.
func (c *EventConsumer) HandleMessage(ctx context.Context, body string) error {
	payload := body
	var env snsEnvelope
	if err := json.Unmarshal([]byte(body), &env); err == nil && env.Type == "Notification" {
		payload = env.Message
	}

	var event models.DomainEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil || event.Type == "" {
		c.logger.Error("Dropping undecodable event message", zap.Error(err), zap.Int("bytes", len(body)))
		return nil
	}

	result, err := c.dispatcher.Dispatch(ctx, event)
	if errors.Is(err, ErrMalformedEvent) {
		c.logger.Error("Dropping undispatchable event",
			zap.String("event_type", string(event.Type)),
			zap.String("event_id", event.ID.String()),
			zap.Error(err),
		)
		return nil
	}
	if err != nil {
		return err
	}

	c.logger.Info("Dispatched queued event",
		zap.String("event_type", string(event.Type)),
		zap.String("event_id", event.ID.String()),
		zap.Int("recipients", result.Recipients),
		zap.Int("written", result.Written),
		zap.Int("failed", result.Failed),
	)
	return nil
}
