package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/gramv/onboardingsoftware-sub000/internal/platform/config"
)

// Producer publishes keyed records to a single topic.
type Producer struct {
	client *kgo.Client
	topic  string
}

// NewProducer connects to the configured brokers. Returns nil when no
// brokers are configured.
func NewProducer(ctx context.Context, cfg config.KafkaConfig) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, nil
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka: create client: %w", err)
	}
	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("kafka: ping: %w", err)
	}

	return &Producer{client: client, topic: cfg.Topic}, nil
}

// EnsureTopic creates the producer topic if it does not exist yet.
func (p *Producer) EnsureTopic(ctx context.Context, partitions int32, replicationFactor int16) error {
	adm := kadm.NewClient(p.client)
	resp, err := adm.CreateTopics(ctx, partitions, replicationFactor, nil, p.topic)
	if err != nil {
		return fmt.Errorf("kafka: create topic %s: %w", p.topic, err)
	}
	for _, r := range resp {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("kafka: create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}

// Publish produces one record synchronously.
func (p *Producer) Publish(ctx context.Context, key, value []byte, headers map[string]string) error {
	rec := &kgo.Record{Topic: p.topic, Key: key, Value: value}
	for k, v := range headers {
		rec.Headers = append(rec.Headers, kgo.RecordHeader{Key: k, Value: []byte(v)})
	}
	if err := p.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("kafka: produce: %w", err)
	}
	return nil
}

// Topic returns the producer topic.
func (p *Producer) Topic() string {
	return p.topic
}

// Close flushes buffered records and closes the client.
func (p *Producer) Close(ctx context.Context) {
	_ = p.client.Flush(ctx)
	p.client.Close()
}
