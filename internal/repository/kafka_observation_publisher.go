package repository

import (
	"context"

	"PriceHunter/internal/domain/models"
	domrepo "PriceHunter/internal/domain/repository"
	pkgkafka "PriceHunter/pkg/kafka"
)

// KafkaObservationPublisher implements ObservationSink for Kafka. Messages
// are keyed by query so all observations of one product group land on the
// same partition in order.
type KafkaObservationPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaObservationPublisher creates a Kafka-backed sink.
func NewKafkaObservationPublisher(producer *pkgkafka.Producer, topic string) domrepo.ObservationSink {
	return &KafkaObservationPublisher{producer: producer, topic: topic}
}

func (p *KafkaObservationPublisher) Publish(ctx context.Context, obs *models.PriceObservation) error {
	return p.producer.Publish(ctx, p.topic, []byte(obs.Query), map[string]interface{}{
		"query":       obs.Query,
		"store":       string(obs.Store),
		"name":        obs.Name,
		"price":       obs.Price,
		"url":         obs.URL,
		"observed_at": obs.ObservedAt.Unix(),
	})
}

func (p *KafkaObservationPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
