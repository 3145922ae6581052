package repo

import (
	"context"
	"errors"
	"phishsim/entity"
	"phishsim/pkg/errutil"
	"phishsim/pkg/goutil"

	"gorm.io/gorm"
)

var (
	ErrCampaignNotFound = errutil.NotFoundError(errors.New("campaign not found"))
)

type Campaign struct {
	ID                    *uint64 `gorm:"primaryKey;autoIncrement"`
	Name                  *string `gorm:"size:200"`
	CampaignDesc          *string
	MailTemplateID        *uint64
	LandingPageTemplateID *uint64
	TargetGroupID         *uint64
	ScheduledSendTime     *uint64 `gorm:"index:idx_status_send_time"`
	ActualStartTime       *uint64
	EndTime               *uint64
	Status                *uint32 `gorm:"index:idx_status_send_time"`
	IsAutoSend            *bool
	SendBatchDelaySeconds *uint32
	TrackOpens            *bool
	JobID                 *string `gorm:"size:64"`
	CreatorID             *uint64
	CreateTime            *uint64
	UpdateTime            *uint64
}

func (m *Campaign) TableName() string {
	return "campaign_tab"
}

func (m *Campaign) GetID() uint64 {
	if m != nil && m.ID != nil {
		return *m.ID
	}
	return 0
}

func (m *Campaign) GetStatus() uint32 {
	if m != nil && m.Status != nil {
		return *m.Status
	}
	return 0
}

type CampaignRepo interface {
	Create(ctx context.Context, campaign *entity.Campaign) (uint64, error)
	GetByID(ctx context.Context, campaignID uint64) (*entity.Campaign, error)
	// Update writes every column of the campaign, nil fields included.
	Update(ctx context.Context, campaign *entity.Campaign) error
	GetDueScheduled(ctx context.Context, now uint64, limit uint32) ([]*entity.Campaign, error)
}

type campaignRepo struct {
	baseRepo BaseRepo
}

func NewCampaignRepo(_ context.Context, baseRepo BaseRepo) CampaignRepo {
	return &campaignRepo{
		baseRepo: baseRepo,
	}
}

func (r *campaignRepo) Create(ctx context.Context, campaign *entity.Campaign) (uint64, error) {
	campaignModel := ToCampaignModel(campaign)

	if err := r.baseRepo.Create(ctx, campaignModel); err != nil {
		return 0, err
	}

	campaign.ID = campaignModel.ID

	return campaignModel.GetID(), nil
}

func (r *campaignRepo) GetByID(ctx context.Context, campaignID uint64) (*entity.Campaign, error) {
	campaign := new(Campaign)

	if err := r.baseRepo.Get(ctx, campaign, &Filter{
		Conditions: []*Condition{
			{
				Field: "id",
				Value: campaignID,
				Op:    OpEq,
			},
		},
	}); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCampaignNotFound
		}
		return nil, err
	}

	return ToCampaign(campaign), nil
}

func (r *campaignRepo) Update(ctx context.Context, campaign *entity.Campaign) error {
	if campaign.GetID() == 0 {
		return ErrCampaignNotFound
	}
	return r.baseRepo.Save(ctx, ToCampaignModel(campaign))
}

func (r *campaignRepo) GetDueScheduled(ctx context.Context, now uint64, limit uint32) ([]*entity.Campaign, error) {
	res, _, err := r.baseRepo.GetMany(ctx, new(Campaign), &Filter{
		Conditions: []*Condition{
			{
				Field: "status",
				Value: uint32(entity.CampaignStatusScheduled),
				Op:    OpEq,
			},
			{
				Field: "is_auto_send",
				Value: true,
				Op:    OpEq,
			},
			{
				Field: "scheduled_send_time",
				Value: now,
				Op:    OpLte,
			},
		},
		Pagination: &Pagination{
			Limit: goutil.Uint32(limit),
		},
		Order: "scheduled_send_time ASC",
	})
	if err != nil {
		return nil, err
	}

	campaigns := make([]*entity.Campaign, len(res))
	for i, m := range res {
		campaigns[i] = ToCampaign(m.(*Campaign))
	}

	return campaigns, nil
}

func ToCampaign(campaign *Campaign) *entity.Campaign {
	return &entity.Campaign{
		ID:                    campaign.ID,
		Name:                  campaign.Name,
		CampaignDesc:          campaign.CampaignDesc,
		MailTemplateID:        campaign.MailTemplateID,
		LandingPageTemplateID: campaign.LandingPageTemplateID,
		TargetGroupID:         campaign.TargetGroupID,
		ScheduledSendTime:     campaign.ScheduledSendTime,
		ActualStartTime:       campaign.ActualStartTime,
		EndTime:               campaign.EndTime,
		Status:                entity.CampaignStatus(campaign.GetStatus()),
		IsAutoSend:            campaign.IsAutoSend,
		SendBatchDelaySeconds: campaign.SendBatchDelaySeconds,
		TrackOpens:            campaign.TrackOpens,
		JobID:                 campaign.JobID,
		CreatorID:             campaign.CreatorID,
		CreateTime:            campaign.CreateTime,
		UpdateTime:            campaign.UpdateTime,
	}
}

func ToCampaignModel(campaign *entity.Campaign) *Campaign {
	jobID := campaign.JobID
	if !campaign.HasJob() {
		jobID = nil
	}

	return &Campaign{
		ID:                    campaign.ID,
		Name:                  campaign.Name,
		CampaignDesc:          campaign.CampaignDesc,
		MailTemplateID:        campaign.MailTemplateID,
		LandingPageTemplateID: campaign.LandingPageTemplateID,
		TargetGroupID:         campaign.TargetGroupID,
		ScheduledSendTime:     campaign.ScheduledSendTime,
		ActualStartTime:       campaign.ActualStartTime,
		EndTime:               campaign.EndTime,
		Status:                goutil.Uint32(uint32(campaign.GetStatus())),
		IsAutoSend:            campaign.IsAutoSend,
		SendBatchDelaySeconds: campaign.SendBatchDelaySeconds,
		TrackOpens:            goutil.Bool(campaign.GetTrackOpens()),
		JobID:                 jobID,
		CreatorID:             campaign.CreatorID,
		CreateTime:            campaign.CreateTime,
		UpdateTime:            campaign.UpdateTime,
	}
}
