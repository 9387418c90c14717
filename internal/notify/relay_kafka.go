package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/gramv/onboardingsoftware-sub000/pkg/platform/circuit"
)

// Producer is the subset of the Kafka producer the relay needs.
type Producer interface {
	Publish(ctx context.Context, key, value []byte, headers map[string]string) error
}

// KafkaRelay publishes notifications as JSON records keyed by recipient.
// While the breaker is open, records go to the fallback relay except for the
// periodic trial delivery the breaker admits.
type KafkaRelay struct {
	producer Producer
	fallback Relay
	breaker  *circuit.Breaker
	logger   *slog.Logger
	metrics  *Metrics
}

type KafkaOption func(*KafkaRelay)

func WithFallback(r Relay) KafkaOption {
	return func(k *KafkaRelay) {
		k.fallback = r
	}
}

func WithBreaker(b *circuit.Breaker) KafkaOption {
	return func(k *KafkaRelay) {
		k.breaker = b
	}
}

func WithRelayLogger(logger *slog.Logger) KafkaOption {
	return func(k *KafkaRelay) {
		k.logger = logger
	}
}

func WithRelayMetrics(m *Metrics) KafkaOption {
	return func(k *KafkaRelay) {
		k.metrics = m
	}
}

func NewKafkaRelay(producer Producer, opts ...KafkaOption) *KafkaRelay {
	k := &KafkaRelay{
		producer: producer,
		breaker:  circuit.New("kafka-relay", circuit.WithFailureThreshold(5), circuit.WithSuccessThreshold(1)),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

func (k *KafkaRelay) Notify(ctx context.Context, n Notification) error {
	value, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	headers := map[string]string{
		"kind":           string(n.Kind),
		"recipient_role": n.Recipient.Role,
	}

	if !k.breaker.Allow() && k.fallback != nil {
		k.metrics.fallback()
		return k.fallback.Notify(ctx, n)
	}

	if err := k.producer.Publish(ctx, []byte(n.Recipient.Key()), value, headers); err != nil {
		useFallback, change := k.breaker.RecordFailure()
		if change.Opened {
			k.logger.WarnContext(ctx, "kafka relay circuit opened", "breaker", k.breaker.Name())
		}
		if useFallback && k.fallback != nil {
			k.metrics.fallback()
			return k.fallback.Notify(ctx, n)
		}
		return err
	}
	if _, change := k.breaker.RecordSuccess(); change.Closed {
		k.logger.InfoContext(ctx, "kafka relay circuit closed", "breaker", k.breaker.Name())
	}
	return nil
}
