package mq_test

import (
	"context"
	"errors"
	"phishsim/pkg/mq"
	"testing"
)

func TestNewProducerValidatesConfig(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		cfg  mq.ProducerConfig
		want error
	}{
		{"no brokers", mq.ProducerConfig{}, mq.ErrEmptyBrokers},
		{"no topics", mq.ProducerConfig{Brokers: []string{"localhost:9092"}}, mq.ErrEmptyTopics},
		{"empty topic", mq.ProducerConfig{Brokers: []string{"localhost:9092"}, Topics: map[uint32]string{uint32(mq.PayloadTrackingEvent): ""}}, mq.ErrEmptyTopicName},
		{"unknown payload", mq.ProducerConfig{Brokers: []string{"localhost:9092"}, Topics: map[uint32]string{99: "x"}}, mq.ErrUnsupportedPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := mq.NewProducer(ctx, tt.cfg); !errors.Is(err, tt.want) {
				t.Errorf("NewProducer() err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestMessageParseBody(t *testing.T) {
	msg := &mq.Message{
		Payload: mq.PayloadTrackingEvent,
		Body:    map[string]interface{}{"campaign_id": 3, "event_type": 2},
	}

	var dst struct {
		CampaignID uint64 `json:"campaign_id"`
		EventType  uint32 `json:"event_type"`
	}
	if err := msg.ParseBody(&dst); err != nil {
		t.Fatalf("ParseBody: %v", err)
	}
	if dst.CampaignID != 3 || dst.EventType != 2 {
		t.Errorf("ParseBody() = %+v", dst)
	}
}
