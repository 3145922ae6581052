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
	ErrCampaignTargetNotFound = errutil.NotFoundError(errors.New("campaign target not found"))
)

type CampaignTarget struct {
	CampaignID   *uint64 `gorm:"primaryKey;autoIncrement:false"`
	TargetUserID *uint64 `gorm:"primaryKey;autoIncrement:false"`
	SendStatus   *uint32
	SendTime     *uint64
	ErrorMessage *string `gorm:"size:1000"`
}

func (m *CampaignTarget) TableName() string {
	return "campaign_target_tab"
}

func (m *CampaignTarget) GetSendStatus() uint32 {
	if m != nil && m.SendStatus != nil {
		return *m.SendStatus
	}
	return 0
}

type CampaignTargetRepo interface {
	CreateMany(ctx context.Context, targets []*entity.CampaignTarget) error
	GetByCampaignID(ctx context.Context, campaignID uint64) ([]*entity.CampaignTarget, error)
	Get(ctx context.Context, campaignID, targetUserID uint64) (*entity.CampaignTarget, error)
	// ReplaceForCampaign deletes every target row of the campaign, whatever its status, and inserts targets.
	ReplaceForCampaign(ctx context.Context, campaignID uint64, targets []*entity.CampaignTarget) error
	Update(ctx context.Context, target *entity.CampaignTarget) error
}

type campaignTargetRepo struct {
	baseRepo BaseRepo
}

func NewCampaignTargetRepo(_ context.Context, baseRepo BaseRepo) CampaignTargetRepo {
	return &campaignTargetRepo{
		baseRepo: baseRepo,
	}
}

func (r *campaignTargetRepo) CreateMany(ctx context.Context, targets []*entity.CampaignTarget) error {
	models := make([]*CampaignTarget, 0, len(targets))
	for _, target := range targets {
		models = append(models, ToCampaignTargetModel(target))
	}
	return r.baseRepo.CreateMany(ctx, new(CampaignTarget), models)
}

func (r *campaignTargetRepo) GetByCampaignID(ctx context.Context, campaignID uint64) ([]*entity.CampaignTarget, error) {
	res, _, err := r.baseRepo.GetMany(ctx, new(CampaignTarget), &Filter{
		Conditions: r.getBaseConditions(campaignID),
		Order:      "target_user_id ASC",
	})
	if err != nil {
		return nil, err
	}

	targets := make([]*entity.CampaignTarget, len(res))
	for i, m := range res {
		targets[i] = ToCampaignTarget(m.(*CampaignTarget))
	}

	return targets, nil
}

func (r *campaignTargetRepo) Get(ctx context.Context, campaignID, targetUserID uint64) (*entity.CampaignTarget, error) {
	target := new(CampaignTarget)

	if err := r.baseRepo.Get(ctx, target, &Filter{
		Conditions: append(r.getBaseConditions(campaignID), &Condition{
			Field: "target_user_id",
			Value: targetUserID,
			Op:    OpEq,
		}),
	}); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCampaignTargetNotFound
		}
		return nil, err
	}

	return ToCampaignTarget(target), nil
}

func (r *campaignTargetRepo) ReplaceForCampaign(ctx context.Context, campaignID uint64, targets []*entity.CampaignTarget) error {
	return r.baseRepo.RunTx(ctx, func(ctx context.Context) error {
		if err := r.baseRepo.Delete(ctx, new(CampaignTarget), &Filter{
			Conditions: r.getBaseConditions(campaignID),
		}); err != nil {
			return err
		}

		return r.CreateMany(ctx, targets)
	})
}

func (r *campaignTargetRepo) Update(ctx context.Context, target *entity.CampaignTarget) error {
	if target.GetCampaignID() == 0 || target.GetTargetUserID() == 0 {
		return ErrCampaignTargetNotFound
	}
	return r.baseRepo.Save(ctx, ToCampaignTargetModel(target))
}

func (r *campaignTargetRepo) getBaseConditions(campaignID uint64) []*Condition {
	return []*Condition{
		{
			Field: "campaign_id",
			Value: campaignID,
			Op:    OpEq,
		},
	}
}

func ToCampaignTarget(target *CampaignTarget) *entity.CampaignTarget {
	return &entity.CampaignTarget{
		CampaignID:   target.CampaignID,
		TargetUserID: target.TargetUserID,
		SendStatus:   entity.SendStatus(target.GetSendStatus()),
		SendTime:     target.SendTime,
		ErrorMessage: target.ErrorMessage,
	}
}

func ToCampaignTargetModel(target *entity.CampaignTarget) *CampaignTarget {
	return &CampaignTarget{
		CampaignID:   target.CampaignID,
		TargetUserID: target.TargetUserID,
		SendStatus:   goutil.Uint32(uint32(target.GetSendStatus())),
		SendTime:     target.SendTime,
		ErrorMessage: target.ErrorMessage,
	}
}
