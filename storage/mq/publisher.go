package mq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"StaffOps/pkg/logger"
	mqotel "StaffOps/pkg/mq"
)

// ErrNotConfirmed broker 返回 nack
var ErrNotConfirmed = errors.New("message not confirmed by broker")

// publisher 持有一个 confirm 模式的 channel，关闭后在下次发布时重建
type publisher struct {
	mu sync.Mutex
	ch *amqp.Channel
}

var pub publisher

func (p *publisher) channel() (*amqp.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	if conn == nil || conn.IsClosed() {
		return nil, fmt.Errorf("RabbitMQ connection is not available")
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open publish channel: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	closed := ch.NotifyClose(make(chan *amqp.Error, 1))
	go p.watch(ch, closed)

	p.ch = ch
	logger.Logger.Info("Publisher channel opened", zap.String("component", "rabbitmq"))
	return ch, nil
}

func (p *publisher) watch(ch *amqp.Channel, closed <-chan *amqp.Error) {
	reason := <-closed

	p.mu.Lock()
	if p.ch == ch {
		p.ch = nil
	}
	p.mu.Unlock()

	fields := []zap.Field{zap.String("component", "rabbitmq")}
	if reason != nil {
		fields = append(fields, zap.Int("code", reason.Code), zap.String("reason", reason.Reason))
	}
	logger.Logger.Warn("Publisher channel closed", fields...)
}

func (p *publisher) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
}

// PublishMessage 发布持久化 JSON 消息并等待 broker 确认；messageID 供消费端去重
func PublishMessage(ctx context.Context, exchange, routingKey, messageID string, body []byte) (err error) {
	begin := time.Now()
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    messageID,
		Timestamp:    begin,
		Body:         body,
	}

	ctx, span := mqotel.StartPublish(ctx, exchange, routingKey, &msg)
	defer func() {
		mqotel.End(ctx, span, "publish", routingKey, begin, err)
	}()

	ch, err := pub.channel()
	if err != nil {
		return err
	}

	confirm, err := ch.PublishWithDeferredConfirmWithContext(ctx, exchange, routingKey, false, false, msg)
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", routingKey, err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to wait confirm for %s: %w", messageID, err)
	}
	if !acked {
		return fmt.Errorf("publish %s: %w", messageID, ErrNotConfirmed)
	}
	return nil
}
