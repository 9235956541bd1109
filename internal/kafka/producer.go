package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"course-marketplace/internal/config"
	"course-marketplace/internal/logger"
	"course-marketplace/internal/models"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
)

// Producer публикует события заказов и заявки на уведомления
type Producer struct {
	producer sarama.SyncProducer
	log      *logger.Logger
	topics   *config.Topics
}

// NewProducer создает синхронного продюсера Kafka
func NewProducer(cfg *config.KafkaConfig, log *logger.Logger) (*Producer, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.Producer.RequiredAcks = sarama.WaitForAll
	saramaCfg.Producer.Retry.Max = 5
	saramaCfg.Producer.Retry.Backoff = 200 * time.Millisecond
	saramaCfg.Producer.Return.Successes = true
	saramaCfg.Producer.Idempotent = false
	saramaCfg.Net.DialTimeout = 5 * time.Second

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	log.WithField("brokers", cfg.Brokers).Info("Kafka producer created")

	topics := cfg.Topics
	return &Producer{
		producer: producer,
		log:      log,
		topics:   &topics,
	}, nil
}

// NewTestProducer собирает продюсера поверх переданного SyncProducer
func NewTestProducer(producer sarama.SyncProducer, log *logger.Logger, topics config.Topics) *Producer {
	return &Producer{producer: producer, log: log, topics: &topics}
}

// PublishOrderCreated публикует событие о новом заказе
func (p *Producer) PublishOrderCreated(order *models.Order) error {
	event, err := models.NewEvent(models.EventTypeOrderCreated, models.OrderCreatedData{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		CourseID:    order.CourseID,
		PromoCode:   order.PromoCode,
		FinalAmount: order.FinalAmount,
		Status:      order.Status,
	})
	if err != nil {
		return err
	}
	return p.publishKeyed(p.topics.Orders, order.ID.String(), event)
}

// PublishOrderStatusChanged публикует смену статуса заказа
func (p *Producer) PublishOrderStatusChanged(orderID uuid.UUID, oldStatus, newStatus models.OrderStatus) error {
	event, err := models.NewEvent(models.EventTypeOrderStatusChanged, models.OrderStatusChangedData{
		OrderID:   orderID,
		OldStatus: oldStatus,
		NewStatus: newStatus,
	})
	if err != nil {
		return err
	}
	return p.publishKeyed(p.topics.Orders, orderID.String(), event)
}

// PublishNotification ставит уведомление в очередь доставки
func (p *Producer) PublishNotification(n *models.Notification) error {
	event, err := models.NewEvent(models.EventTypeNotificationRequested, n)
	if err != nil {
		return err
	}
	return p.publishKeyed(p.topics.Notifications, n.To, event)
}

func (p *Producer) publishEvent(topic string, event models.Event) error {
	return p.publishKeyed(topic, event.ID.String(), event)
}

func (p *Producer) publishKeyed(topic, key string, event models.Event) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka producer is not initialized")
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(event.Type)},
		},
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to send %s event: %w", event.Type, err)
	}

	p.log.WithFields(map[string]interface{}{
		"topic":      topic,
		"event_type": event.Type,
		"event_id":   event.ID,
		"partition":  partition,
		"offset":     offset,
	}).Debug("Event published")

	return nil
}

// Close закрывает продюсера
func (p *Producer) Close() error {
	if p == nil || p.producer == nil {
		return nil
	}
	return p.producer.Close()
}
