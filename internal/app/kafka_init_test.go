package app

import (
	"testing"

	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
)

func TestInitKafkaProducer_EmptyBrokers(t *testing.T) {
	logger := log.WithField("test", "kafka")

	producer, err := initKafkaProducer(nil, logger)
	if err != nil {
		t.Errorf("expected no error for empty brokers, got %v", err)
	}
	if producer != nil {
		t.Error("expected nil producer for empty brokers")
	}
}

func TestInitKafkaProducer_UnreachableBrokers(t *testing.T) {
	logger := log.WithField("test", "kafka")

	producer, err := initKafkaProducer([]string{"127.0.0.1:1"}, logger)
	if err == nil {
		t.Error("expected error for unreachable brokers")
	}
	if producer != nil {
		t.Error("expected nil producer on error")
	}
}

func TestCloseKafkaProducer(t *testing.T) {
	logger := log.WithField("test", "kafka")

	// nil не должен паниковать
	closeKafkaProducer(nil, logger)

	sp := mocks.NewSyncProducer(t, nil)
	closeKafkaProducer(kafka.NewProducerFromSync(sp, logger), logger)
}

func TestStopKafkaConsumer_Nil(t *testing.T) {
	stopKafkaConsumer(nil, log.WithField("test", "kafka"))
}
