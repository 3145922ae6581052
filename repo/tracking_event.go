package repo

import (
	"context"
	"phishsim/entity"
	"phishsim/pkg/goutil"
)

type TrackingEvent struct {
	ID                    *uint64 `gorm:"primaryKey;autoIncrement"`
	CampaignID            *uint64 `gorm:"index:idx_campaign_target"`
	TargetUserID          *uint64 `gorm:"index:idx_campaign_target"`
	MailTemplateID        *uint64
	LandingPageTemplateID *uint64
	EventTime             *uint64
	EventType             *uint32
	EventDetails          *string `gorm:"size:2000"`
}

func (m *TrackingEvent) TableName() string {
	return "tracking_event_tab"
}

func (m *TrackingEvent) GetEventType() uint32 {
	if m != nil && m.EventType != nil {
		return *m.EventType
	}
	return 0
}

type TrackingEventRepo interface {
	Create(ctx context.Context, event *entity.TrackingEvent) (uint64, error)
	// GetByCampaignID returns events in the order they happened.
	GetByCampaignID(ctx context.Context, campaignID uint64) ([]*entity.TrackingEvent, error)
}

type trackingEventRepo struct {
	baseRepo BaseRepo
}

func NewTrackingEventRepo(_ context.Context, baseRepo BaseRepo) TrackingEventRepo {
	return &trackingEventRepo{
		baseRepo: baseRepo,
	}
}

func (r *trackingEventRepo) Create(ctx context.Context, event *entity.TrackingEvent) (uint64, error) {
	eventModel := ToTrackingEventModel(event)

	if err := r.baseRepo.Create(ctx, eventModel); err != nil {
		return 0, err
	}

	event.ID = eventModel.ID

	return goutil.Uint64Value(eventModel.ID), nil
}

func (r *trackingEventRepo) GetByCampaignID(ctx context.Context, campaignID uint64) ([]*entity.TrackingEvent, error) {
	res, _, err := r.baseRepo.GetMany(ctx, new(TrackingEvent), &Filter{
		Conditions: []*Condition{
			{
				Field: "campaign_id",
				Value: campaignID,
				Op:    OpEq,
			},
		},
		Order: "event_time ASC, id ASC",
	})
	if err != nil {
		return nil, err
	}

	events := make([]*entity.TrackingEvent, len(res))
	for i, m := range res {
		events[i] = ToTrackingEvent(m.(*TrackingEvent))
	}

	return events, nil
}

func ToTrackingEvent(event *TrackingEvent) *entity.TrackingEvent {
	return &entity.TrackingEvent{
		ID:                    event.ID,
		CampaignID:            event.CampaignID,
		TargetUserID:          event.TargetUserID,
		MailTemplateID:        event.MailTemplateID,
		LandingPageTemplateID: event.LandingPageTemplateID,
		EventTime:             event.EventTime,
		EventType:             entity.EventType(event.GetEventType()),
		EventDetails:          event.EventDetails,
	}
}

func ToTrackingEventModel(event *entity.TrackingEvent) *TrackingEvent {
	return &TrackingEvent{
		ID:                    event.ID,
		CampaignID:            event.CampaignID,
		TargetUserID:          event.TargetUserID,
		MailTemplateID:        event.MailTemplateID,
		LandingPageTemplateID: event.LandingPageTemplateID,
		EventTime:             event.EventTime,
		EventType:             goutil.Uint32(uint32(event.GetEventType())),
		EventDetails:          event.EventDetails,
	}
}
