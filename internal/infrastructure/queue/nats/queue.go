package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/betomay/papertoplan/internal/core/domain"
	"github.com/betomay/papertoplan/internal/infrastructure/resilience"
)

// Queue carries both the per-capture processing tasks (worker queue group)
// and the record status events fanned out to every connected API process.
type Queue struct {
	conn         *nats.Conn
	taskSubject  string
	eventSubject string
	executor     *resilience.Executor
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

func New(url, taskSubject, eventSubject string) (*Queue, error) {
	return NewWithOptions(url, taskSubject, eventSubject, Options{})
}

func NewWithOptions(url, taskSubject, eventSubject string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}

	conn, err := nats.Connect(
		url,
		nats.Name("papertoplan"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:         conn,
		taskSubject:  taskSubject,
		eventSubject: eventSubject,
		executor:     options.ResilienceExecutor,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishProcessTask(ctx context.Context, task domain.ProcessTask) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal process task: %w", err)
	}
	if err := q.publish(ctx, "nats.publish_task", q.taskSubject, payload); err != nil {
		return wrapUnavailableIfNeeded(err)
	}
	return nil
}

// SubscribeProcessTasks consumes tasks within the "workers" queue group so
// concurrent workers split the load without duplicating work. It blocks
// until the context is cancelled.
func (q *Queue) SubscribeProcessTasks(ctx context.Context, handler func(context.Context, domain.ProcessTask) error) error {
	sub, err := q.conn.QueueSubscribe(q.taskSubject, "workers", func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		var task domain.ProcessTask
		if err := json.Unmarshal(msg.Data, &task); err != nil {
			slog.Error("process_task_decode_failed", "error", err)
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, task); err != nil {
			slog.Error("process_task_handler_failed", "record_id", task.RecordID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

type statusEventMessage struct {
	Owner    string              `json:"owner"`
	RecordID int64               `json:"record_id"`
	Status   domain.RecordStatus `json:"status"`
	Error    string              `json:"error,omitempty"`
}

func (q *Queue) PublishStatusEvent(ctx context.Context, event domain.StatusEvent) error {
	payload, err := json.Marshal(statusEventMessage{
		Owner:    event.Owner,
		RecordID: event.RecordID,
		Status:   event.Status,
		Error:    event.Error,
	})
	if err != nil {
		return fmt.Errorf("marshal status event: %w", err)
	}
	if err := q.publish(ctx, "nats.publish_event", q.eventSubject, payload); err != nil {
		return wrapUnavailableIfNeeded(err)
	}
	return nil
}

// SubscribeStatusEvents delivers every status event to this process (no
// queue group: each API instance fans out to its own connections). It
// returns once the subscription is established.
func (q *Queue) SubscribeStatusEvents(ctx context.Context, handler func(domain.StatusEvent)) error {
	sub, err := q.conn.Subscribe(q.eventSubject, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		var event statusEventMessage
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			slog.Error("status_event_decode_failed", "error", err)
			return
		}
		handler(domain.StatusEvent{
			Owner:    event.Owner,
			RecordID: event.RecordID,
			Status:   event.Status,
			Error:    event.Error,
		})
	})
	if err != nil {
		return fmt.Errorf("nats subscribe events: %w", err)
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			slog.Warn("nats_event_drain_failed", "error", err)
		}
	}()
	return nil
}

func (q *Queue) publish(ctx context.Context, operation, subject string, payload []byte) error {
	call := func(_ context.Context) error {
		if err := q.conn.Publish(subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if q.executor != nil {
		return q.executor.Execute(ctx, operation, call, classifyNATSError)
	}
	return call(ctx)
}
