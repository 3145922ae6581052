package mq

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog/log"
)

var (
	ErrEmptyBrokers       = errors.New("empty brokers")
	ErrEmptyTopics        = errors.New("empty topics")
	ErrEmptyTopicName     = errors.New("empty topic name")
	ErrUnsupportedPayload = errors.New("unsupported payload")
	ErrProducerClosed     = errors.New("producer closed")
)

const headerPayload = "payload"

type Message struct {
	Payload Payload     `json:"payload,omitempty"`
	Key     string      `json:"key,omitempty"`
	Body    interface{} `json:"body,omitempty"`
}

func (msg *Message) ParseBody(dst interface{}) error {
	b, err := json.Marshal(msg.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}

// Publisher is the sending half used by handlers and the engine.
type Publisher interface {
	SendMessage(msg *Message) error
}

type ProducerConfig struct {
	Brokers []string `json:"brokers,omitempty"`
	// Topics maps a payload number to the topic it is written to. Payloads without a topic are rejected.
	Topics map[uint32]string `json:"topics,omitempty"`
}

func (c *ProducerConfig) validate() error {
	if len(c.Brokers) == 0 {
		return ErrEmptyBrokers
	}

	if len(c.Topics) == 0 {
		return ErrEmptyTopics
	}

	for payload, topic := range c.Topics {
		if topic == "" {
			return ErrEmptyTopicName
		}

		if _, ok := Payloads[Payload(payload)]; !ok {
			return ErrUnsupportedPayload
		}
	}

	return nil
}

// Producer writes messages asynchronously. Delivery errors are only logged, tracking and send outcome
// events are best effort.
type Producer struct {
	saramaProducer sarama.AsyncProducer
	topics         map[Payload]string

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewProducer(ctx context.Context, cfg ProducerConfig) (*Producer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.Flush.Frequency = 500 * time.Millisecond
	saramaConfig.Producer.Compression = sarama.CompressionSnappy
	saramaConfig.Producer.RequiredAcks = sarama.WaitForLocal
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Version = sarama.V0_11_0_0 // record headers

	producer, err := sarama.NewAsyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, err
	}

	topics := make(map[Payload]string, len(cfg.Topics))
	for payload, topic := range cfg.Topics {
		topics[Payload(payload)] = topic
	}

	p := &Producer{
		saramaProducer: producer,
		topics:         topics,
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for err := range producer.Errors() {
			log.Ctx(ctx).Error().Msgf("sarama produce error, topic: %s, key: %v, err: %v",
				err.Msg.Topic, err.Msg.Key, err.Err)
		}
	}()

	return p, nil
}

// Close flushes buffered messages and waits for the error drain to finish.
func (p *Producer) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	err := p.saramaProducer.Close()
	p.wg.Wait()

	return err
}

func (p *Producer) SendMessage(msg *Message) error {
	topic, ok := p.topics[msg.Payload]
	if !ok {
		return ErrUnsupportedPayload
	}

	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrProducerClosed
	}

	p.saramaProducer.Input() <- &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(msg.Key),
		Value: sarama.ByteEncoder(b),
		Headers: []sarama.RecordHeader{
			{Key: []byte(headerPayload), Value: []byte(msg.Payload.String())},
		},
	}

	return nil
}
