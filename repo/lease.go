package repo

import (
	"context"
	"phishsim/pkg/goutil"
)

// CampaignLease marks a campaign as being executed by one owner until ExpireTime.
type CampaignLease struct {
	CampaignID *uint64 `gorm:"primaryKey;autoIncrement:false"`
	Owner      *string `gorm:"size:64"`
	ExpireTime *uint64
}

func (m *CampaignLease) TableName() string {
	return "campaign_lease_tab"
}

type LeaseRepo interface {
	// Acquire takes the lease of a campaign for owner. It returns false when another owner holds an unexpired lease.
	Acquire(ctx context.Context, campaignID uint64, owner string, now, expireTime uint64) (bool, error)
	Release(ctx context.Context, campaignID uint64, owner string) error
}

type leaseRepo struct {
	baseRepo BaseRepo
}

func NewLeaseRepo(_ context.Context, baseRepo BaseRepo) LeaseRepo {
	return &leaseRepo{
		baseRepo: baseRepo,
	}
}

func (r *leaseRepo) Acquire(ctx context.Context, campaignID uint64, owner string, now, expireTime uint64) (bool, error) {
	inserted, err := r.baseRepo.CreateIgnoreConflict(ctx, &CampaignLease{
		CampaignID: goutil.Uint64(campaignID),
		Owner:      goutil.String(owner),
		ExpireTime: goutil.Uint64(expireTime),
	})
	if err != nil {
		return false, err
	}
	if inserted > 0 {
		return true, nil
	}

	updated, err := r.baseRepo.UpdateWhere(ctx, new(CampaignLease), &Filter{
		Conditions: []*Condition{
			{
				Field: "campaign_id",
				Value: campaignID,
				Op:    OpEq,
			},
			{
				Group: []*Condition{
					{
						Field:         "expire_time",
						Value:         now,
						Op:            OpLt,
						NextLogicalOp: Or,
					},
					{
						Field: "owner",
						Value: owner,
						Op:    OpEq,
					},
				},
			},
		},
	}, map[string]interface{}{
		"owner":       owner,
		"expire_time": expireTime,
	})
	if err != nil {
		return false, err
	}

	return updated > 0, nil
}

func (r *leaseRepo) Release(ctx context.Context, campaignID uint64, owner string) error {
	return r.baseRepo.Delete(ctx, new(CampaignLease), &Filter{
		Conditions: []*Condition{
			{
				Field: "campaign_id",
				Value: campaignID,
				Op:    OpEq,
			},
			{
				Field: "owner",
				Value: owner,
				Op:    OpEq,
			},
		},
	})
}
