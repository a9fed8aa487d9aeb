package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/IBM/sarama"
	"github.com/duckhunt/internal/config"
	"github.com/duckhunt/internal/domain"
)

// EventHandler processes inbound chat events
type EventHandler interface {
	HandleEvent(ctx context.Context, event domain.ChatEvent) error
}

// Counts summarises what the consumer did with the records it received
type Counts struct {
	Handled int64
	Skipped int64
	Failed  int64
}

// Consumer feeds chat events from Kafka into an EventHandler. Events are
// keyed by channel, so each channel's events arrive in order on a single
// partition and are handled one at a time.
type Consumer struct {
	config  *config.KafkaConfig
	handler EventHandler
	logger  *slog.Logger
	group   sarama.ConsumerGroup

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	ready     chan struct{}
	readyOnce sync.Once

	handled atomic.Int64
	skipped atomic.Int64
	failed  atomic.Int64
}

// NewConsumer joins the configured consumer group
func NewConsumer(cfg *config.KafkaConfig, handler EventHandler, logger *slog.Logger) (*Consumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_0_0_0
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategySticky()}
	// chat that happened while the service was down is not replayed
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	saramaConfig.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("creating consumer group: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{
		config:  cfg,
		handler: handler,
		logger:  logger.With("topic", cfg.EventsTopic, "group_id", cfg.GroupID),
		group:   group,
		ctx:     ctx,
		cancel:  cancel,
		ready:   make(chan struct{}),
	}, nil
}

// Start consumes in the background and returns once the first session is
// set up, or with an error if the consumer is stopped before that.
func (c *Consumer) Start() error {
	c.logger.Info("starting Kafka consumer", "brokers", c.config.Brokers)

	c.wg.Add(2)
	go c.consumeLoop()
	go c.errorLoop()

	select {
	case <-c.ready:
		c.logger.Info("Kafka consumer ready")
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	}
}

func (c *Consumer) consumeLoop() {
	defer c.wg.Done()
	handler := &sessionHandler{consumer: c}
	// Consume returns on every rebalance and has to be called again
	for c.ctx.Err() == nil {
		err := c.group.Consume(c.ctx, []string{c.config.EventsTopic}, handler)
		if errors.Is(err, sarama.ErrClosedConsumerGroup) {
			return
		}
		if err != nil {
			c.logger.Error("consume session ended", "error", err)
		}
	}
}

func (c *Consumer) errorLoop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.ctx.Done():
			return
		case err, ok := <-c.group.Errors():
			if !ok {
				return
			}
			c.logger.Error("consumer group error", "error", err)
		}
	}
}

func (c *Consumer) markReady() {
	c.readyOnce.Do(func() { close(c.ready) })
}

// Stop leaves the group and waits for the in-flight event to finish
func (c *Consumer) Stop() error {
	c.cancel()
	c.wg.Wait()
	counts := c.Counts()
	c.logger.Info("Kafka consumer stopped",
		"handled", counts.Handled,
		"skipped", counts.Skipped,
		"failed", counts.Failed,
	)
	return c.group.Close()
}

// Counts returns the running totals since the consumer was created
func (c *Consumer) Counts() Counts {
	return Counts{
		Handled: c.handled.Load(),
		Skipped: c.skipped.Load(),
		Failed:  c.failed.Load(),
	}
}

func decodeEvent(value []byte) (domain.ChatEvent, error) {
	var event domain.ChatEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return event, fmt.Errorf("decoding chat event: %w", err)
	}
	if err := event.Validate(); err != nil {
		return event, err
	}
	return event, nil
}

// handleMessage dispatches one record. Undecodable records are skipped.
// Handler failures are logged and never redelivered, since replaying a
// resolving command could score twice.
func (c *Consumer) handleMessage(ctx context.Context, message *sarama.ConsumerMessage) {
	event, err := decodeEvent(message.Value)
	if err != nil {
		c.skipped.Add(1)
		c.logger.Warn("skipping chat event",
			"error", err,
			"partition", message.Partition,
			"offset", message.Offset,
		)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.HandleTimeout)
	defer cancel()

	if err := c.handler.HandleEvent(ctx, event); err != nil {
		c.failed.Add(1)
		c.logger.Error("failed to handle chat event",
			"error", err,
			"network", event.Network,
			"channel", event.Channel,
			"event_id", event.ID,
		)
		return
	}
	c.handled.Add(1)
}

// sessionHandler implements sarama.ConsumerGroupHandler
type sessionHandler struct {
	consumer *Consumer
}

func (h *sessionHandler) Setup(sarama.ConsumerGroupSession) error {
	h.consumer.markReady()
	return nil
}

func (h *sessionHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *sessionHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case <-session.Context().Done():
			return nil
		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			h.consumer.handleMessage(session.Context(), message)
			session.MarkMessage(message, "")
		}
	}
}
