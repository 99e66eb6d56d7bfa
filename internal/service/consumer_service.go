package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"glasses-cloud-be/internal/pkg/logger"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService drains the session-events topic into the session audit
// log. It is the read side of the in-process lifecycle bus.
type consumerService struct {
	pubSub    *gochannel.GoChannel
	topicName string
	auditLog  logger.ILogger
}

func NewConsumerService(pubSub *gochannel.GoChannel, topicName string, auditLog logger.ILogger) IConsumerService {
	return &consumerService{
		pubSub:    pubSub,
		topicName: topicName,
		auditLog:  auditLog,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(msg)
		}
	}()

	return nil
}

type sessionEventRecord struct {
	Type       string                 `json:"type"`
	Data       map[string]interface{} `json:"data"`
	OccurredAt time.Time              `json:"occurred_at"`
}

func (cs *consumerService) processMessage(msg *message.Message) {
	var rec sessionEventRecord
	if err := json.Unmarshal(msg.Payload, &rec); err != nil {
		cs.auditLog.Warn("SessionEvents", "Malformed event payload", map[string]interface{}{
			"error": err.Error(),
		})
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	details := map[string]interface{}{"occurred_at": rec.OccurredAt.Format(time.RFC3339)}
	for k, v := range rec.Data {
		details[k] = v
	}
	cs.auditLog.Info("SessionEvents", rec.Type, details)

	msg.Ack()
}
