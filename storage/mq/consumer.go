package mq

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"StaffOps/pkg/logger"
	mqotel "StaffOps/pkg/mq"
)

// MessageHandler 返回 nil 则 Ack，否则 Nack
type MessageHandler func(ctx context.Context, d amqp.Delivery) error

// RequeuePolicy 决定失败消息是否重新入队
type RequeuePolicy func(d amqp.Delivery, err error) bool

// RequeueOnce 首次投递失败重新入队，重投仍失败则丢弃，避免毒消息循环
func RequeueOnce(d amqp.Delivery, _ error) bool {
	return !d.Redelivered
}

type ConsumeOptions struct {
	Queue       string
	ConsumerTag string
	Prefetch    int
	// Workers 并发处理的 goroutine 数，默认 1
	Workers int
	Handler MessageHandler
	// Requeue 为 nil 时失败消息直接丢弃
	Requeue RequeuePolicy
}

// Consume 阻塞消费直到 ctx 取消或 channel 关闭，返回前等待在途消息处理完
func Consume(ctx context.Context, opts ConsumeOptions) error {
	c := Connection()
	if c == nil || c.IsClosed() {
		return fmt.Errorf("RabbitMQ connection is not available")
	}

	ch, err := c.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	prefetch := opts.Prefetch
	if prefetch < workers {
		prefetch = workers
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	deliveries, err := ch.Consume(opts.Queue, opts.ConsumerTag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to register consumer on %s: %w", opts.Queue, err)
	}

	logger.Logger.Info("Consumer started",
		zap.String("queue", opts.Queue),
		zap.String("consumer_tag", opts.ConsumerTag),
		zap.Int("workers", workers),
		zap.Int("prefetch", prefetch),
	)

	var (
		wg     sync.WaitGroup
		closed = make(chan struct{}, workers)
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case d, ok := <-deliveries:
					if !ok {
						closed <- struct{}{}
						return
					}
					process(ctx, opts, d)
				}
			}
		}()
	}
	wg.Wait()

	if ctx.Err() != nil {
		return nil
	}
	select {
	case <-closed:
		return fmt.Errorf("delivery channel closed for queue %s", opts.Queue)
	default:
		return nil
	}
}

func process(ctx context.Context, opts ConsumeOptions, d amqp.Delivery) {
	begin := time.Now()
	spanCtx, span := mqotel.StartConsume(ctx, opts.Queue, d)
	err := opts.Handler(spanCtx, d)
	mqotel.End(spanCtx, span, "process", d.RoutingKey, begin, err)

	log := logger.WithContext(spanCtx, logger.Logger)
	if err == nil {
		if ackErr := d.Ack(false); ackErr != nil {
			log.Warn("Failed to ack message", zap.String("message_id", d.MessageId), zap.Error(ackErr))
		}
		return
	}

	requeue := opts.Requeue != nil && opts.Requeue(d, err)
	log.Error("Message handling failed",
		zap.String("queue", opts.Queue),
		zap.String("message_id", d.MessageId),
		zap.Bool("redelivered", d.Redelivered),
		zap.Bool("requeue", requeue),
		zap.Error(err),
	)
	if nackErr := d.Nack(false, requeue); nackErr != nil {
		log.Warn("Failed to nack message", zap.String("message_id", d.MessageId), zap.Error(nackErr))
	}
}
