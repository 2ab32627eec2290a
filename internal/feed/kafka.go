package feed

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"incident-pipeline/internal/apperr"
	"incident-pipeline/internal/models"
)

// MessageReader is the part of *kafka.Reader the consumer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig selects the heartbeat topic.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// NewKafkaReader builds a consumer-group reader for the heartbeat topic.
func NewKafkaReader(cfg KafkaConfig) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		GroupTopics: []string{cfg.Topic},
		StartOffset: kafka.LastOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
}

// Consumer moves heartbeat messages from Kafka into a Store.
type Consumer struct {
	reader MessageReader
	store  *Store
	log    logrus.FieldLogger
}

func NewConsumer(reader MessageReader, store *Store, log logrus.FieldLogger) *Consumer {
	return &Consumer{reader: reader, store: store, log: log.WithField("component", "heartbeat-consumer")}
}

// Run consumes until ctx is done. Undecodable or invalid messages are logged
// and committed so they do not block the partition.
func (c *Consumer) Run(ctx context.Context) {
	defer func() {
		if err := c.reader.Close(); err != nil {
			c.log.WithError(err).Error("reader close")
		}
	}()
	c.log.Info("consumer start")

	backoff := time.Second
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				c.log.Info("consumer stop")
				return
			}
			c.log.WithError(err).Error("fetch failed")
			select {
			case <-time.After(backoff):
				if backoff < 10*time.Second {
					backoff *= 2
				}
				continue
			case <-ctx.Done():
				c.log.Info("consumer stop")
				return
			}
		}
		backoff = time.Second

		c.handle(msg)
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.log.WithError(err).WithField("offset", msg.Offset).Warn("commit failed")
		}
	}
}

func (c *Consumer) handle(msg kafka.Message) {
	hb, err := DecodeHeartbeat(msg.Value)
	if err == nil {
		if hb.ServiceKey == "" && len(msg.Key) > 0 {
			hb.ServiceKey = string(msg.Key)
		}
		err = c.store.Add(hb, "kafka")
	}
	if err != nil {
		c.log.WithError(err).WithFields(logrus.Fields{
			"partition": msg.Partition,
			"offset":    msg.Offset,
		}).Warn("heartbeat dropped")
	}
}

// DecodeHeartbeat parses one JSON heartbeat message.
func DecodeHeartbeat(data []byte) (models.HeartbeatRecord, error) {
	var hb models.HeartbeatRecord
	if err := json.Unmarshal(data, &hb); err != nil {
		return hb, apperr.InvalidArgument("heartbeat is not valid JSON: " + err.Error())
	}
	return hb, nil
}
