package broker

import (
	"context"
	"errors"
	"time"

	"github.com/IBM/sarama"

	"processing-requests/internal/domain"
	"processing-requests/internal/infra"
)

// KafkaOptions configures the Kafka publisher.
type KafkaOptions struct {
	Brokers  []string
	ClientID string
	Timeout  time.Duration
	Logger   *infra.Logger
}

// KafkaPublisher publishes work messages with a synchronous producer that
// waits for all in-sync replicas.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	logger   *infra.Logger
}

// NewKafkaPublisher dials the brokers and returns a ready publisher.
func NewKafkaPublisher(opts KafkaOptions) (*KafkaPublisher, error) {
	if len(opts.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	p, err := sarama.NewSyncProducer(opts.Brokers, newKafkaConfig(opts))
	if err != nil {
		return nil, unavailable("connect kafka", err)
	}
	return newKafkaPublisher(p, opts.Logger), nil
}

func newKafkaConfig(opts KafkaOptions) *sarama.Config {
	config := sarama.NewConfig()
	if opts.ClientID != "" {
		config.ClientID = opts.ClientID
	}
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 0
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true
	if opts.Timeout > 0 {
		config.Producer.Timeout = opts.Timeout
		config.Net.DialTimeout = opts.Timeout
	}
	return config
}

func newKafkaPublisher(p sarama.SyncProducer, logger *infra.Logger) *KafkaPublisher {
	return &KafkaPublisher{producer: p, logger: logger}
}

// Publish sends msg to topic keyed by the processing request id so every
// message for one request lands on the same partition.
func (k *KafkaPublisher) Publish(ctx context.Context, topic string, msg domain.WorkMessage) error {
	if err := ctx.Err(); err != nil {
		return unavailable("publish", err)
	}
	data, err := encode(msg)
	if err != nil {
		return err
	}
	partition, offset, err := k.producer.SendMessage(&sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(msg.ProcessingRequestID),
		Value: sarama.ByteEncoder(data),
	})
	if err != nil {
		return unavailable("kafka send", err)
	}
	if k.logger != nil {
		k.logger.Debug().
			Str("topic", topic).
			Str("processing_request_id", msg.ProcessingRequestID).
			Int32("partition", partition).
			Int64("offset", offset).
			Msg("work message published")
	}
	return nil
}

func (k *KafkaPublisher) Close() error {
	return k.producer.Close()
}

var _ domain.Publisher = (*KafkaPublisher)(nil)
