package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Shatzii/sentinel/internal/models"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// AlertEvent is the wire shape published to the alert topic
type AlertEvent struct {
	ID        string               `json:"id"`
	Severity  models.AlertSeverity `json:"severity"`
	AlertType string               `json:"alert_type"`
	Message   string               `json:"message"`
	Details   map[string]any       `json:"details,omitempty"`
	Timestamp time.Time            `json:"timestamp"`
}

// Producer publishes admission alerts to Kafka. Messages are keyed by alert
// type so events for one signal land on one partition in order.
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}

	return &Producer{writer: writer}
}

// Publish implements services.AlertPublisher
func (p *Producer) Publish(ctx context.Context, severity models.AlertSeverity, alertType, message string, details map[string]any) error {
	event := AlertEvent{
		ID:        uuid.New().String(),
		Severity:  severity,
		AlertType: alertType,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(alertType),
		Value: data,
		Time:  time.Now(),
	}

	return p.writer.WriteMessages(ctx, msg)
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
