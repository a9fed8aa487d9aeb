package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
	"github.com/duckhunt/internal/config"
	"github.com/duckhunt/internal/domain"
	"github.com/google/uuid"
)

// Mirror receives a copy of every action that reached the broker
type Mirror interface {
	Publish(action domain.ChatAction)
}

// Publisher is the chat adapter backed by the outbound actions topic. The
// chat transport consumes the topic and performs the actions.
type Publisher struct {
	producer sarama.SyncProducer
	topic    string
	mirror   Mirror
	logger   *slog.Logger
	now      func() time.Time
}

// NewPublisher creates a publisher with a synchronous producer
func NewPublisher(cfg *config.KafkaConfig, mirror Mirror, logger *slog.Logger) (*Publisher, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_0_0_0
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Retry.Max = cfg.RetryAttempts
	saramaConfig.Producer.Retry.Backoff = cfg.RetryDelay
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("creating producer: %w", err)
	}
	return newPublisher(producer, cfg.ActionsTopic, mirror, logger), nil
}

func newPublisher(producer sarama.SyncProducer, topic string, mirror Mirror, logger *slog.Logger) *Publisher {
	return &Publisher{
		producer: producer,
		topic:    topic,
		mirror:   mirror,
		logger:   logger,
		now:      time.Now,
	}
}

// Close flushes and closes the producer
func (p *Publisher) Close() error {
	return p.producer.Close()
}

// send produces an action keyed by its channel
func (p *Publisher) send(ctx context.Context, action domain.ChatAction) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	action.Timestamp = p.now()
	data, err := json.Marshal(action)
	if err != nil {
		return fmt.Errorf("marshaling chat action: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(action.Key().String()),
		Value: sarama.ByteEncoder(data),
	}
	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("producing %s action: %w", action.Type, err)
	}

	p.logger.Debug("chat action produced",
		"type", action.Type,
		"network", action.Network,
		"channel", action.Channel,
		"partition", partition,
		"offset", offset,
	)

	if p.mirror != nil {
		p.mirror.Publish(action)
	}
	return nil
}

// SendAnnouncement produces a new announcement and returns its reference
func (p *Publisher) SendAnnouncement(ctx context.Context, key domain.ChannelKey, a domain.Announcement) (domain.AnnouncementRef, error) {
	ref := domain.AnnouncementRef(uuid.NewString())
	err := p.send(ctx, domain.ChatAction{
		Type:         domain.ChatActionAnnounce,
		Network:      key.Network,
		Channel:      key.Channel,
		Ref:          ref,
		Announcement: &a,
	})
	if err != nil {
		return "", err
	}
	return ref, nil
}

// EditAnnouncement produces a replacement for an earlier announcement
func (p *Publisher) EditAnnouncement(ctx context.Context, key domain.ChannelKey, ref domain.AnnouncementRef, a domain.Announcement) error {
	return p.send(ctx, domain.ChatAction{
		Type:         domain.ChatActionEdit,
		Network:      key.Network,
		Channel:      key.Channel,
		Ref:          ref,
		Announcement: &a,
	})
}

// Reply produces a plain text reply
func (p *Publisher) Reply(ctx context.Context, key domain.ChannelKey, text string) error {
	return p.send(ctx, domain.ChatAction{
		Type:    domain.ChatActionReply,
		Network: key.Network,
		Channel: key.Channel,
		Text:    text,
	})
}

// MuteUser produces a mute request
func (p *Publisher) MuteUser(ctx context.Context, key domain.ChannelKey, userID string) error {
	return p.send(ctx, domain.ChatAction{
		Type:    domain.ChatActionMute,
		Network: key.Network,
		Channel: key.Channel,
		UserID:  userID,
	})
}
