package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"phishsim/pkg/goutil"
	"phishsim/pkg/logutil"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	defaultHandleAttempts = 3
	retryInitialInterval  = 200 * time.Millisecond
	retryMaxInterval      = 5 * time.Second
)

var (
	ErrInvalidBalanceStrategy = errors.New("invalid balance strategy")
	ErrInvalidInitialOffset   = errors.New("invalid initial offset")
	ErrNoHandlers             = errors.New("no payload handlers")
	ErrUnknownPayload         = errors.New("no handler for payload")
)

type HandlerFunc func(ctx context.Context, msg *Message) error

// Permanent marks a handler error that retrying cannot fix, such as a body that does not decode.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Handlers maps each payload a consumer accepts to its handler.
type Handlers map[Payload]HandlerFunc

type ConsumerConfig struct {
	Brokers         []string `json:"brokers,omitempty"`
	Topic           string   `json:"topic,omitempty"`
	ConsumerGroup   string   `json:"consumer_group,omitempty"`
	BalanceStrategy string   `json:"balance_strategy,omitempty"`
	InitialOffset   string   `json:"initial_offset,omitempty"`
	// HandleAttempts bounds how often a failing handler is called for one message, 0 means 3.
	HandleAttempts uint64 `json:"handle_attempts,omitempty"`
}

var balanceStrategies = []string{"sticky", "roundrobin", "range"}

var initialOffsets = []string{"newest", "oldest"}

func (c *ConsumerConfig) validate() error {
	if len(c.Brokers) == 0 {
		return ErrEmptyBrokers
	}

	if c.Topic == "" {
		return ErrEmptyTopicName
	}

	if c.BalanceStrategy != "" && !goutil.ContainsStr(balanceStrategies, c.BalanceStrategy) {
		return ErrInvalidBalanceStrategy
	}

	if c.InitialOffset != "" && !goutil.ContainsStr(initialOffsets, c.InitialOffset) {
		return ErrInvalidInitialOffset
	}

	return nil
}

func (c *ConsumerConfig) handleAttempts() uint64 {
	if c.HandleAttempts > 0 {
		return c.HandleAttempts
	}
	return defaultHandleAttempts
}

type Consumer struct {
	handlers Handlers
	attempts uint64

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	client sarama.ConsumerGroup

	readyOnce sync.Once
	ready     chan struct{}
}

func newConsumer(ctx context.Context, handlers Handlers, attempts uint64) *Consumer {
	subCtx, cancel := context.WithCancel(ctx)
	return &Consumer{
		handlers: handlers,
		attempts: attempts,
		ctx:      subCtx,
		cancel:   cancel,
		ready:    make(chan struct{}),
	}
}

// NewConsumer joins the consumer group and dispatches every message of cfg.Topic to the handler of its payload.
// It returns once the first session is set up or ctx ends.
func NewConsumer(ctx context.Context, cfg ConsumerConfig, handlers Handlers) (*Consumer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if len(handlers) == 0 {
		return nil, ErrNoHandlers
	}

	saramaConfig := sarama.NewConfig()
	saramaConfig.Consumer.Offsets.AutoCommit.Enable = true

	if cfg.InitialOffset == "oldest" {
		saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	}

	switch cfg.BalanceStrategy {
	case balanceStrategies[0]:
		saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategySticky()}
	case balanceStrategies[1]:
		saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	default:
		saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRange()}
	}

	client, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.ConsumerGroup, saramaConfig)
	if err != nil {
		return nil, err
	}

	c := newConsumer(ctx, handlers, cfg.handleAttempts())
	c.client = client

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for c.ctx.Err() == nil {
			// Consume returns on every rebalance and has to be called again
			if err := client.Consume(c.ctx, []string{cfg.Topic}, c); err != nil {
				if errors.Is(err, sarama.ErrClosedConsumerGroup) {
					return
				}
				log.Ctx(c.ctx).Error().Msgf("consume topic %s failed: %v", cfg.Topic, err)
			}
		}
	}()

	select {
	case <-c.ready:
		log.Ctx(c.ctx).Info().Msgf("consumer joined group %s, topic: %s", cfg.ConsumerGroup, cfg.Topic)
	case <-ctx.Done():
		_ = c.Close()
		return nil, ctx.Err()
	}

	return c, nil
}

func (c *Consumer) Close() error {
	c.cancel()
	c.wg.Wait()
	return c.client.Close()
}

// Setup is run at the beginning of a new session, before ConsumeClaim
func (c *Consumer) Setup(_ sarama.ConsumerGroupSession) error {
	c.readyOnce.Do(func() {
		close(c.ready)
	})
	return nil
}

// Cleanup is run at the end of a session, once all ConsumeClaim goroutines have exited
func (c *Consumer) Cleanup(_ sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim must start a consumer loop of ConsumerGroupClaim's Messages().
// Once the Messages() channel is closed, the Handler must finish its processing
// loop and exit.
func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case consumerMessage, ok := <-claim.Messages():
			if !ok {
				return nil
			}

			// init log_id
			ctx := logutil.WithLogID(session.Context(), uuid.New().String())

			start := time.Now()
			err := c.handle(ctx, consumerMessage.Value)

			log.Ctx(ctx).Info().Msgf("message processed: topic = %s, partition = %d, offset = %d, key = %s, proctm: %vμs, err: %v",
				consumerMessage.Topic, consumerMessage.Partition, consumerMessage.Offset, string(consumerMessage.Key),
				time.Since(start).Microseconds(), err)

			// failed messages are not redelivered, the error line above is the record
			session.MarkMessage(consumerMessage, "")
		case <-session.Context().Done():
			return nil
		}
	}
}

// handle decodes one record and runs its handler, retrying handler errors with backoff.
func (c *Consumer) handle(ctx context.Context, value []byte) error {
	msg := new(Message)
	if err := json.Unmarshal(value, msg); err != nil {
		return fmt.Errorf("failed to unmarshal message: %w", err)
	}

	fn, ok := c.handlers[msg.Payload]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPayload, msg.Payload)
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = retryInitialInterval
	eb.MaxInterval = retryMaxInterval

	var retries uint64
	if c.attempts > 1 {
		retries = c.attempts - 1
	}
	b := backoff.WithContext(backoff.WithMaxRetries(eb, retries), ctx)

	op := func() error {
		return fn(ctx, msg)
	}

	notify := func(err error, wait time.Duration) {
		log.Ctx(ctx).Warn().Msgf("handle %s message failed, retry in %v: %v", msg.Payload, wait, err)
	}

	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return fmt.Errorf("failed to handle message: %w", err)
	}

	return nil
}
