package mq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func encode(t *testing.T, msg *Message) []byte {
	t.Helper()
	b, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func TestConsumerHandle(t *testing.T) {
	var calls int
	c := newConsumer(context.Background(), Handlers{
		PayloadTrackingEvent: func(_ context.Context, msg *Message) error {
			calls++
			if msg.Key != "7" {
				t.Errorf("key = %q, want 7", msg.Key)
			}
			if calls < 2 {
				return errors.New("db busy")
			}
			return nil
		},
	}, 3)

	if err := c.handle(context.Background(), encode(t, &Message{Payload: PayloadTrackingEvent, Key: "7"})); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if calls != 2 {
		t.Errorf("handler called %d times, want 2", calls)
	}
}

func TestConsumerHandleGivesUp(t *testing.T) {
	errStore := errors.New("db down")

	var calls int
	c := newConsumer(context.Background(), Handlers{
		PayloadMailSent: func(_ context.Context, _ *Message) error {
			calls++
			return errStore
		},
	}, 2)

	err := c.handle(context.Background(), encode(t, &Message{Payload: PayloadMailSent}))
	if !errors.Is(err, errStore) {
		t.Fatalf("err = %v, want %v", err, errStore)
	}
	if calls != 2 {
		t.Errorf("handler called %d times, want 2", calls)
	}
}

func TestConsumerHandlePermanent(t *testing.T) {
	errBody := errors.New("bad body")

	var calls int
	c := newConsumer(context.Background(), Handlers{
		PayloadMailSent: func(_ context.Context, _ *Message) error {
			calls++
			return Permanent(errBody)
		},
	}, 5)

	err := c.handle(context.Background(), encode(t, &Message{Payload: PayloadMailSent}))
	if !errors.Is(err, errBody) {
		t.Fatalf("err = %v, want %v", err, errBody)
	}
	if calls != 1 {
		t.Errorf("handler called %d times, want 1", calls)
	}
}

func TestConsumerHandleRejects(t *testing.T) {
	c := newConsumer(context.Background(), Handlers{
		PayloadTrackingEvent: func(_ context.Context, _ *Message) error {
			t.Error("handler must not be called")
			return nil
		},
	}, 1)

	if err := c.handle(context.Background(), []byte("{")); err == nil {
		t.Error("expected decode error")
	}

	err := c.handle(context.Background(), encode(t, &Message{Payload: PayloadMailSent}))
	if !errors.Is(err, ErrUnknownPayload) {
		t.Errorf("err = %v, want %v", err, ErrUnknownPayload)
	}
}

func TestNewConsumerValidates(t *testing.T) {
	ctx := context.Background()
	handlers := Handlers{PayloadTrackingEvent: func(context.Context, *Message) error { return nil }}

	tests := []struct {
		name     string
		cfg      ConsumerConfig
		handlers Handlers
		want     error
	}{
		{"no brokers", ConsumerConfig{Topic: "t"}, handlers, ErrEmptyBrokers},
		{"no topic", ConsumerConfig{Brokers: []string{"localhost:9092"}}, handlers, ErrEmptyTopicName},
		{"bad strategy", ConsumerConfig{Brokers: []string{"localhost:9092"}, Topic: "t", BalanceStrategy: "x"}, handlers, ErrInvalidBalanceStrategy},
		{"bad offset", ConsumerConfig{Brokers: []string{"localhost:9092"}, Topic: "t", InitialOffset: "x"}, handlers, ErrInvalidInitialOffset},
		{"no handlers", ConsumerConfig{Brokers: []string{"localhost:9092"}, Topic: "t"}, nil, ErrNoHandlers},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewConsumer(ctx, tt.cfg, tt.handlers); !errors.Is(err, tt.want) {
				t.Errorf("NewConsumer() err = %v, want %v", err, tt.want)
			}
		})
	}
}
