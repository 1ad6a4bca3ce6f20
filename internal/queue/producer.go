package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"StaffOps/internal/cache"
	"StaffOps/internal/model"
	"StaffOps/pkg/clock"
	pkgerrors "StaffOps/pkg/errors"
	"StaffOps/pkg/metrics"
	"StaffOps/pkg/snowflake"
	"StaffOps/storage/mq"
)

// PublishFunc 与 mq.PublishMessage 同签名，测试时替换
type PublishFunc func(ctx context.Context, exchange, routingKey, messageID string, body []byte) error

// Notifier 把考勤与调度事件异步投递到 RabbitMQ。
// 尽力而为：发布失败只记录日志与指标，不影响业务结果。
type Notifier struct {
	publish PublishFunc
	breaker *cache.CircuitBreaker
	clock   clock.Clock
	timeout time.Duration
	logger  *zap.Logger

	wg sync.WaitGroup
}

func NewNotifier(publish PublishFunc, breaker *cache.CircuitBreaker, clk clock.Clock, timeout time.Duration, logger *zap.Logger) *Notifier {
	if publish == nil {
		publish = mq.PublishMessage
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Notifier{
		publish: publish,
		breaker: breaker,
		clock:   clk,
		timeout: timeout,
		logger:  logger,
	}
}

func (n *Notifier) Notify(ctx context.Context, event model.EventType, workerID string, payload map[string]interface{}) {
	evt := model.WorkforceEvent{
		MessageID:  nextMessageID(),
		EventType:  event,
		WorkerID:   workerID,
		OccurredAt: n.clock.Now().Format(time.RFC3339),
		Payload:    payload,
	}

	// 调用方的请求结束后仍需发布，保留链路信息但脱离取消
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		defer cancel()
		n.dispatch(pubCtx, evt)
	}()
}

func (n *Notifier) dispatch(ctx context.Context, evt model.WorkforceEvent) {
	err := n.send(ctx, evt)
	metrics.RecordNotify(ctx, string(evt.EventType), err == nil)
	if err != nil {
		n.logger.Warn("Failed to publish workforce event",
			zap.String("message_id", evt.MessageID),
			zap.String("event_type", string(evt.EventType)),
			zap.String("worker_id", evt.WorkerID),
			zap.String("error_code", pkgerrors.NotifyFailed.Code),
			zap.Error(err),
		)
		return
	}

	n.logger.Debug("Published workforce event",
		zap.String("message_id", evt.MessageID),
		zap.String("event_type", string(evt.EventType)),
		zap.String("worker_id", evt.WorkerID),
	)
}

// send 失败统一包装为 errors.NotifyFailed，保留底层原因
func (n *Notifier) send(ctx context.Context, evt model.WorkforceEvent) error {
	body, err := encodeEvent(evt)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %w", pkgerrors.NotifyFailed, evt.MessageID, err)
	}

	publish := func(ctx context.Context) error {
		return n.publish(ctx, mq.EventsExchange, RoutingKey(evt.EventType), evt.MessageID, body)
	}
	if n.breaker != nil {
		err = n.breaker.Call(ctx, publish)
	} else {
		err = publish(ctx)
	}
	if err != nil {
		return fmt.Errorf("%w: publish %s: %w", pkgerrors.NotifyFailed, evt.MessageID, err)
	}
	return nil
}

// Wait 等待已发起的投递结束，进程退出前调用
func (n *Notifier) Wait() {
	n.wg.Wait()
}

func nextMessageID() string {
	id, err := snowflake.NextString(snowflake.KindMessage)
	if err != nil {
		// 生成器未初始化时退回 uuid，保证消费端仍可去重
		return string(snowflake.KindMessage) + "_" + uuid.NewString()
	}
	return id
}
