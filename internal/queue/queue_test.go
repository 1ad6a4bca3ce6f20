package queue

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	amqp "github.com/rabbitmq/amqp091-go"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"StaffOps/internal/cache"
	"StaffOps/internal/model"
	"StaffOps/pkg/clock"
	pkgerrors "StaffOps/pkg/errors"
	"StaffOps/storage/mq"
)

type published struct {
	exchange   string
	routingKey string
	messageID  string
	body       []byte
}

type recordingPublisher struct {
	mu   sync.Mutex
	sent []published
	err  error
}

func (p *recordingPublisher) publish(_ context.Context, exchange, routingKey, messageID string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, published{exchange, routingKey, messageID, body})
	return nil
}

func TestNotifierPublishesEvent(t *testing.T) {
	pub := &recordingPublisher{}
	clk := clock.NewFixed(time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC))
	n := NewNotifier(pub.publish, nil, clk, time.Second, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	n.Notify(ctx, model.EventLeaveApplied, "w-1", map[string]interface{}{"date": "2024-06-03"})
	// 调用方取消不影响投递
	cancel()
	n.Wait()

	require.Len(t, pub.sent, 1)
	msg := pub.sent[0]
	require.Equal(t, mq.EventsExchange, msg.exchange)
	require.Equal(t, "workforce.leave_applied", msg.routingKey)
	require.True(t, strings.HasPrefix(msg.messageID, "msg_"))

	var evt model.WorkforceEvent
	require.NoError(t, json.Unmarshal(msg.body, &evt))
	require.Equal(t, msg.messageID, evt.MessageID)
	require.Equal(t, model.EventLeaveApplied, evt.EventType)
	require.Equal(t, "w-1", evt.WorkerID)
	require.Equal(t, "2024-06-01T09:00:00Z", evt.OccurredAt)
	require.Equal(t, "2024-06-03", evt.Payload["date"])
}

func TestNotifierSwallowsFailures(t *testing.T) {
	pub := &recordingPublisher{err: stderrors.New("connection refused")}
	breaker := cache.NewCircuitBreaker("test_notify", 2, time.Minute)
	n := NewNotifier(pub.publish, breaker, clock.NewFixed(time.Now()), time.Second, zap.NewNop())

	for i := 0; i < 3; i++ {
		n.Notify(context.Background(), model.EventTaskReassigned, "w-2", nil)
		n.Wait()
	}

	require.Empty(t, pub.sent)
	require.Equal(t, cache.StateOpen, breaker.GetState())
}

func TestNotifierWrapsPublishFailures(t *testing.T) {
	refused := stderrors.New("connection refused")
	pub := &recordingPublisher{err: refused}
	breaker := cache.NewCircuitBreaker("test_notify_wrap", 1, time.Minute)
	n := NewNotifier(pub.publish, breaker, clock.NewFixed(time.Now()), time.Second, zap.NewNop())

	evt := model.WorkforceEvent{MessageID: "msg_1", EventType: model.EventLeaveDecided, WorkerID: "w-1"}
	err := n.send(context.Background(), evt)
	require.ErrorIs(t, err, pkgerrors.NotifyFailed)
	require.ErrorIs(t, err, refused)
	require.Equal(t, pkgerrors.KindExternal, pkgerrors.KindOf(err))

	// 熔断后不再调用发布函数，错误仍归类为通知失败
	err = n.send(context.Background(), evt)
	require.ErrorIs(t, err, pkgerrors.NotifyFailed)
	require.ErrorIs(t, err, pkgerrors.CircuitOpen)
}

type recordingMailer struct {
	mu       sync.Mutex
	subjects []string
	err      error
}

func (m *recordingMailer) Send(_ context.Context, to, subject string, _ model.WorkforceEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.subjects = append(m.subjects, to+": "+subject)
	return nil
}

func delivery(t *testing.T, evt model.WorkforceEvent) amqp.Delivery {
	t.Helper()
	body, err := json.Marshal(evt)
	require.NoError(t, err)
	return amqp.Delivery{MessageId: evt.MessageID, RoutingKey: RoutingKey(evt.EventType), Body: body}
}

func TestEventHandler(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	ctx := context.Background()
	mailer := &recordingMailer{}
	h := NewEventHandler(cache.NewMessageMarker(rdb), mailer, zap.NewNop())

	evt := model.WorkforceEvent{
		MessageID: "msg_1",
		EventType: model.EventLeaveDecided,
		WorkerID:  "w-1",
		Payload:   map[string]interface{}{"date": "2024-06-03", "approval": "approved"},
	}

	require.NoError(t, h.Handle(ctx, delivery(t, evt)))
	require.NoError(t, h.Handle(ctx, delivery(t, evt)), "duplicate delivery is acked")
	require.Equal(t, []string{"w-1: Your leave on 2024-06-03 was approved"}, mailer.subjects)

	t.Run("mail failure allows retry", func(t *testing.T) {
		retry := evt
		retry.MessageID = "msg_2"

		mailer.err = stderrors.New("smtp down")
		require.Error(t, h.Handle(ctx, delivery(t, retry)))

		mailer.err = nil
		require.NoError(t, h.Handle(ctx, delivery(t, retry)))
		require.Len(t, mailer.subjects, 2)
	})

	t.Run("malformed body is dropped", func(t *testing.T) {
		require.NoError(t, h.Handle(ctx, amqp.Delivery{MessageId: "msg_3", Body: []byte("{")}))
		require.NoError(t, h.Handle(ctx, amqp.Delivery{MessageId: "msg_4", Body: []byte(`{"event_type":"leave_applied"}`)}))
		require.Len(t, mailer.subjects, 2)
	})

	t.Run("redis unavailable still delivers", func(t *testing.T) {
		mr.SetError("LOADING")
		defer mr.SetError("")

		fresh := evt
		fresh.MessageID = "msg_5"
		require.NoError(t, h.Handle(ctx, delivery(t, fresh)))
		require.Len(t, mailer.subjects, 3)
	})
}

func TestSubject(t *testing.T) {
	require.Equal(t, "Task reassigned to you: Clean lobby", Subject(model.WorkforceEvent{
		EventType: model.EventTaskReassigned,
		Payload:   map[string]interface{}{"title": "Clean lobby"},
	}))
	require.Equal(t, "Leave application received for 2024-06-03", Subject(model.WorkforceEvent{
		EventType: model.EventLeaveApplied,
		Payload:   map[string]interface{}{"date": "2024-06-03"},
	}))
}
