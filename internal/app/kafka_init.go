package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
)

// consumerMaxAttempts: попыток обработки сообщения до отправки в DLQ.
const consumerMaxAttempts = 3

// initKafkaProducer создаёт producer, если брокеры заданы.
// Пустой список даёт nil, nil: события доставляются внутри процесса.
func initKafkaProducer(brokers []string, logger *log.Entry) (*kafka.Producer, error) {
	if len(brokers) == 0 {
		return nil, nil
	}

	producer, err := kafka.NewProducer(brokers)
	if err != nil {
		return nil, err
	}

	logger.WithField("brokers", brokers).Info("kafka producer initialized")
	return producer, nil
}

// closeKafkaProducer закрывает producer, если он был создан.
func closeKafkaProducer(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}

	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
	} else {
		logger.Info("kafka producer closed")
	}
}

// initEventConsumer подписывает storefront на события из Kafka.
// Необработанные сообщения уходят в DLQ через тот же producer.
func initEventConsumer(cfg Config, router *kafka.Router, dlq *kafka.Producer, logger *log.Entry) (*kafka.Consumer, error) {
	consumer, err := kafka.NewConsumerWithDLQ(
		cfg.Brokers(),
		cfg.KafkaConsumerGroup,
		router.Topics(),
		router.HandleMessage,
		dlq,
		consumerMaxAttempts,
	)
	if err != nil {
		return nil, err
	}
	logger.WithFields(log.Fields{
		"group":  cfg.KafkaConsumerGroup,
		"topics": router.Topics(),
	}).Info("kafka consumer initialized")
	return consumer, nil
}

// stopKafkaConsumer закрывает consumer group и ждёт завершения обработчиков.
func stopKafkaConsumer(consumer *kafka.Consumer, logger *log.Entry) {
	if consumer == nil {
		return
	}
	if err := consumer.Stop(); err != nil {
		logger.WithError(err).Warn("failed to stop kafka consumer")
	}
}
