package mq

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"StaffOps/config"
)

const (
	// EventsExchange 业务事件 topic 交换机
	EventsExchange = "staffops.events"
	// NotificationQueue 通知 worker 消费的队列
	NotificationQueue = "staffops.notifications"
	// WorkforceRoutingPrefix 考勤与任务事件的 routing key 前缀
	WorkforceRoutingPrefix = "workforce."
)

var (
	conn     *amqp.Connection
	connOnce sync.Once
	connErr  error
)

func Init() error {
	connOnce.Do(func() {
		conn, connErr = amqp.Dial(config.Cfg.GetRabbitMQURL())
		if connErr != nil {
			return
		}
		connErr = declareTopology(conn)
	})

	return connErr
}

// declareTopology 声明交换机、队列与绑定，可重复执行
func declareTopology(c *amqp.Connection) error {
	ch, err := c.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(EventsExchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", EventsExchange, err)
	}

	if _, err := ch.QueueDeclare(NotificationQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", NotificationQueue, err)
	}

	if err := ch.QueueBind(NotificationQueue, WorkforceRoutingPrefix+"#", EventsExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %s: %w", NotificationQueue, err)
	}
	return nil
}

func Connection() *amqp.Connection {
	return conn
}

func Close(ctx context.Context) error {
	if conn == nil || conn.IsClosed() {
		return nil
	}

	pub.close()

	done := make(chan error, 1)
	go func() {
		done <- conn.Close()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}
