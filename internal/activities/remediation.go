package activities

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"incident-pipeline/internal/models"
)

// MessageWriter is the part of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter builds a writer for the remediation topic. Messages are
// keyed by service so actions for one service stay ordered.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
}

// KafkaPublisher publishes remediation actions as JSON.
type KafkaPublisher struct {
	writer MessageWriter
}

func NewKafkaPublisher(w MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

// Publish implements ActionPublisher.
func (p *KafkaPublisher) Publish(ctx context.Context, action models.RemediationAction) error {
	value, err := json.Marshal(action)
	if err != nil {
		return fmt.Errorf("encode action: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(action.ServiceKey),
		Value: value,
		Headers: []kafka.Header{
			{Key: "action_key", Value: []byte(action.ActionKey)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s for %s: %w", action.ActionKey, action.ServiceKey, err)
	}
	return nil
}

// Close releases the writer.
func (p *KafkaPublisher) Close() error { return p.writer.Close() }

// DispatchRemediation hands action to the executor and audits it.
func (a *Activities) DispatchRemediation(ctx context.Context, incidentID string, action models.RemediationAction) error {
	entry := a.logger().WithFields(logrus.Fields{
		"incident_id": incidentID,
		"action_key":  action.ActionKey,
		"service_key": action.ServiceKey,
	})
	if a.Publisher != nil {
		if err := a.Publisher.Publish(ctx, action); err != nil {
			entry.WithError(err).Error("remediation dispatch failed")
			return err
		}
	}
	entry.Info("remediation dispatched")
	return a.RecordAudit(ctx, models.AuditEntry{Kind: models.AuditAction, Subject: incidentID, Payload: action})
}
