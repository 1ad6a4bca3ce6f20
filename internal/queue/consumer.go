package queue

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"StaffOps/internal/model"
	"StaffOps/pkg/logger"
	"StaffOps/storage/mq"
)

// Deduplicator 消费端幂等，*cache.MessageMarker 实现
type Deduplicator interface {
	TryMarkProcessing(ctx context.Context, messageID string) (bool, error)
	MarkProcessed(ctx context.Context, messageID string) error
	Unmark(ctx context.Context, messageID string) error
}

// Mailer 邮件发送边界
type Mailer interface {
	Send(ctx context.Context, to string, subject string, evt model.WorkforceEvent) error
}

// LogMailer 只记录日志，真实邮件通道接入前使用
type LogMailer struct {
	Logger *zap.Logger
}

func (m LogMailer) Send(ctx context.Context, to, subject string, evt model.WorkforceEvent) error {
	m.Logger.Info("Mail dispatched",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.String("message_id", evt.MessageID),
		zap.Any("payload", evt.Payload),
	)
	return nil
}

// EventHandler 消费 workforce.* 事件并交给 Mailer
type EventHandler struct {
	dedup  Deduplicator
	mailer Mailer
	logger *zap.Logger
}

func NewEventHandler(dedup Deduplicator, mailer Mailer, logger *zap.Logger) *EventHandler {
	return &EventHandler{dedup: dedup, mailer: mailer, logger: logger}
}

func (h *EventHandler) Handle(ctx context.Context, d amqp.Delivery) error {
	log := logger.WithContext(ctx, h.logger)

	evt, err := decodeEvent(d.Body)
	if err != nil {
		// 无法解析的消息重投也没用，直接确认丢弃
		log.Error("Drop malformed workforce event",
			zap.String("message_id", d.MessageId),
			zap.String("routing_key", d.RoutingKey),
			zap.Error(err),
		)
		return nil
	}

	messageID := evt.MessageID
	if messageID == "" {
		messageID = d.MessageId
	}

	if messageID != "" && h.dedup != nil {
		first, err := h.dedup.TryMarkProcessing(ctx, messageID)
		if err != nil {
			// 去重失败时继续处理，可能重复发送
			log.Warn("Failed to check message processed status",
				zap.String("message_id", messageID),
				zap.Error(err),
			)
		} else if !first {
			log.Info("Message already processed or being processed, skipping",
				zap.String("message_id", messageID),
			)
			return nil
		}
	}

	if err := h.mailer.Send(ctx, evt.WorkerID, Subject(evt), evt); err != nil {
		if messageID != "" && h.dedup != nil {
			if unmarkErr := h.dedup.Unmark(ctx, messageID); unmarkErr != nil {
				log.Warn("Failed to unmark message", zap.String("message_id", messageID), zap.Error(unmarkErr))
			}
		}
		return fmt.Errorf("failed to send mail for %s: %w", messageID, err)
	}

	if messageID != "" && h.dedup != nil {
		if err := h.dedup.MarkProcessed(ctx, messageID); err != nil {
			log.Warn("Failed to mark message as processed",
				zap.String("message_id", messageID),
				zap.Error(err),
			)
		}
	}
	return nil
}

// Subject 邮件标题
func Subject(evt model.WorkforceEvent) string {
	switch evt.EventType {
	case model.EventLeaveApplied:
		return fmt.Sprintf("Leave application received for %v", evt.Payload["date"])
	case model.EventLeaveDecided:
		return fmt.Sprintf("Your leave on %v was %v", evt.Payload["date"], evt.Payload["approval"])
	case model.EventTaskReassigned:
		return fmt.Sprintf("Task reassigned to you: %v", evt.Payload["title"])
	default:
		return "Workforce notification: " + string(evt.EventType)
	}
}

// StartEventConsumer 阻塞消费通知队列，ctx 取消后返回
func StartEventConsumer(ctx context.Context, h *EventHandler) error {
	return mq.Consume(ctx, mq.ConsumeOptions{
		Queue:       mq.NotificationQueue,
		ConsumerTag: "workforce_event_consumer",
		Prefetch:    10,
		Workers:     4,
		Handler:     h.Handle,
		Requeue:     mq.RequeueOnce,
	})
}
