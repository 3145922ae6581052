package handler

import (
	"context"
	"phishsim/entity"
	"phishsim/pkg/mq"
	"phishsim/repo"
	"strconv"
)

// EventRecorder stores tracking events once the request has passed the lifecycle check.
type EventRecorder interface {
	Record(ctx context.Context, event *entity.TrackingEvent) error
}

type dbEventRecorder struct {
	eventRepo repo.TrackingEventRepo
}

func NewDBEventRecorder(eventRepo repo.TrackingEventRepo) EventRecorder {
	return &dbEventRecorder{
		eventRepo: eventRepo,
	}
}

func (r *dbEventRecorder) Record(ctx context.Context, event *entity.TrackingEvent) error {
	_, err := r.eventRepo.Create(ctx, event)
	return err
}

type mqEventRecorder struct {
	publisher mq.Publisher
}

// NewMQEventRecorder publishes events for the consume-tracking-events job to insert.
func NewMQEventRecorder(publisher mq.Publisher) EventRecorder {
	return &mqEventRecorder{
		publisher: publisher,
	}
}

func (r *mqEventRecorder) Record(_ context.Context, event *entity.TrackingEvent) error {
	return r.publisher.SendMessage(&mq.Message{
		Payload: mq.PayloadTrackingEvent,
		Key:     strconv.FormatUint(event.GetCampaignID(), 10),
		Body:    event,
	})
}
