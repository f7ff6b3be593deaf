package instrument

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/perf-analysis/pkg/utils"
)

// KafkaSink publishes TraceEvents to a Kafka topic. No Kafka client
// library is wired into this module (none of the example repositories
// this runtime was built from carry one either — see DESIGN.md), so
// Record buffers the encoded event locally and logs it instead of
// producing to a broker, the same honest-stub shape
// internal/scheduler/source.KafkaSource itself ships with for the
// consumer side.
type KafkaSink struct {
	brokers []string
	topic   string
	logger  utils.Logger

	mu      sync.Mutex
	pending [][]byte

	// producer would be the actual Kafka producer (e.g., sarama,
	// confluent-kafka-go).
	// producer sarama.SyncProducer
}

// NewKafkaSink builds a KafkaSink targeting topic across brokers.
func NewKafkaSink(brokers []string, topic string, logger utils.Logger) *KafkaSink {
	if logger == nil {
		logger = &utils.NullLogger{}
	}
	return &KafkaSink{brokers: brokers, topic: topic, logger: logger}
}

// Record encodes ev as JSON and buffers it for publication.
//
// TODO: construct a real producer once a Kafka client dependency is
// available and replace this buffering with an actual Produce call:
//
//	msg := &sarama.ProducerMessage{Topic: s.topic, Value: sarama.ByteEncoder(payload)}
//	_, _, err := s.producer.SendMessage(msg)
func (s *KafkaSink) Record(_ context.Context, ev TraceEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.pending = append(s.pending, payload)
	n := len(s.pending)
	s.mu.Unlock()

	s.logger.Debug("kafka sink buffered event %d for topic %s (brokers=%v)", n, s.topic, s.brokers)
	return nil
}

// Close logs how many events were buffered but never published, since no
// broker connection was ever opened.
func (s *KafkaSink) Close() error {
	s.mu.Lock()
	n := len(s.pending)
	s.pending = nil
	s.mu.Unlock()

	if n > 0 {
		s.logger.Warn("kafka sink closing with %d buffered events never published to topic %s", n, s.topic)
	}
	return nil
}
