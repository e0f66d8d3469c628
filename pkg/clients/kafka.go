package clients

import (
	"time"

	"github.com/furnish-tech/reco-backend/internal/cfg"
	"github.com/segmentio/kafka-go"
)

// NewKafkaReader создаёт консьюмера событий каталога.
// Вызывающая сторона обязана закрыть Reader при остановке приложения.
func NewKafkaReader(cfg *cfg.KafkaCfg) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.GroupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
	})
}
