package kafka

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

type MessageHandler func(ctx context.Context, msg *TaskMessage) error

// TaskMessage mirrors the producer's envelope on the API side.
type TaskMessage struct {
	TaskID   string `json:"task_id"`
	TraceID  string `json:"trace_id"`
	BlobName string `json:"blob_name"`
}

// Dispatcher runs a job, typically on a bounded worker pool.
type Dispatcher interface {
	Submit(ctx context.Context, job func(context.Context))
}

type Consumer struct {
	consumer   sarama.ConsumerGroup
	dispatcher Dispatcher
	logger     *zap.Logger
}

func NewConsumer(brokers []string, groupID string, dispatcher Dispatcher, logger *zap.Logger) (*Consumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRoundRobin
	config.Consumer.Offsets.Initial = sarama.OffsetOldest

	c, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, err
	}

	return &Consumer{consumer: c, dispatcher: dispatcher, logger: logger}, nil
}

// offsetTracker turns out-of-order job completions into in-order
// offset commits. A Kafka offset commit acknowledges everything below
// it, so the high-water mark may only advance across a contiguous
// range of completed offsets; a gap left by a still-running or failed
// job holds every later commit back until it closes.
type offsetTracker struct {
	mu   sync.Mutex
	next int64
	done map[int64]struct{}
}

func newOffsetTracker() *offsetTracker {
	return &offsetTracker{next: -1, done: make(map[int64]struct{})}
}

// observe records an offset as in-flight. Messages arrive in offset
// order, so the first observed offset seeds the commit floor.
func (t *offsetTracker) observe(offset int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.next < 0 {
		t.next = offset
	}
}

// complete marks an offset finished and reports the new commit
// position when the contiguous range advanced.
func (t *offsetTracker) complete(offset int64) (int64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.done[offset] = struct{}{}
	advanced := false
	for {
		if _, ok := t.done[t.next]; !ok {
			break
		}
		delete(t.done, t.next)
		t.next++
		advanced = true
	}
	return t.next, advanced
}

type consumerHandler struct {
	fn         MessageHandler
	dispatcher Dispatcher
	logger     *zap.Logger
	ctx        context.Context
}

func (h *consumerHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *consumerHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim hands each message to the dispatcher and commits
// offsets only once every earlier job of the claim has finished. A
// crash loses at most uncommitted work, which the broker redelivers
// (at-least-once).
func (h *consumerHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	tracker := newOffsetTracker()

	for msg := range claim.Messages() {
		tracker.observe(msg.Offset)

		var taskMsg TaskMessage
		if err := json.Unmarshal(msg.Value, &taskMsg); err != nil {
			h.logger.Warn("Discarding malformed message",
				zap.String("topic", msg.Topic),
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)
			h.markThrough(session, claim, tracker, msg.Offset)
			continue
		}

		offset := msg.Offset
		h.dispatcher.Submit(h.ctx, func(ctx context.Context) {
			// A job that made it onto a worker slot runs to completion
			// even when the session context is cancelled for shutdown;
			// jobs still queued are dropped unacknowledged and come
			// back via redelivery.
			jobCtx := context.WithoutCancel(ctx)
			if err := h.fn(jobCtx, &taskMsg); err != nil {
				h.logger.Error("Job not acknowledged",
					zap.String("task_id", taskMsg.TaskID),
					zap.String("trace_id", taskMsg.TraceID),
					zap.Error(err),
				)
				return
			}
			h.markThrough(session, claim, tracker, offset)
		})
	}
	return nil
}

func (h *consumerHandler) markThrough(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim, tracker *offsetTracker, offset int64) {
	if next, ok := tracker.complete(offset); ok {
		session.MarkOffset(claim.Topic(), claim.Partition(), next, "")
	}
}

func (c *Consumer) Consume(ctx context.Context, topic string, handler MessageHandler) error {
	h := &consumerHandler{fn: handler, dispatcher: c.dispatcher, logger: c.logger, ctx: ctx}

	for {
		if err := c.consumer.Consume(ctx, []string{topic}, h); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (c *Consumer) Close() error {
	return c.consumer.Close()
}
