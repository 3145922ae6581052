package engine

import (
	"context"
	"phishsim/entity"
	"phishsim/pkg/goutil"
	"phishsim/repo"

	"github.com/rs/zerolog/log"
)

type TargetResolver interface {
	// Resolve returns the targets a run must consider, in send order, with their TargetUser loaded.
	// Group campaigns have their target rows replaced by the active members of the group.
	Resolve(ctx context.Context, campaign *entity.Campaign) ([]*entity.CampaignTarget, error)
}

type targetResolver struct {
	targetRepo repo.CampaignTargetRepo
	userRepo   repo.TargetUserRepo
}

func NewTargetResolver(targetRepo repo.CampaignTargetRepo, userRepo repo.TargetUserRepo) TargetResolver {
	return &targetResolver{
		targetRepo,
		userRepo,
	}
}

func (r *targetResolver) Resolve(ctx context.Context, campaign *entity.Campaign) ([]*entity.CampaignTarget, error) {
	source := campaign.GetTargetSource()
	if source.IsGroup() {
		return r.resolveGroup(ctx, campaign.GetID(), source.GroupID)
	}
	return r.resolveManual(ctx, campaign.GetID())
}

func (r *targetResolver) resolveGroup(ctx context.Context, campaignID, groupID uint64) ([]*entity.CampaignTarget, error) {
	members, err := r.userRepo.GetActiveByGroupID(ctx, groupID)
	if err != nil {
		log.Ctx(ctx).Error().Msgf("get group members failed: %v, group_id: %d", err, groupID)
		return nil, err
	}

	// An empty group leaves the stored targets alone since the run is aborted.
	if len(members) == 0 {
		return []*entity.CampaignTarget{}, nil
	}

	targets := make([]*entity.CampaignTarget, 0, len(members))
	for _, member := range members {
		targets = append(targets, &entity.CampaignTarget{
			CampaignID:   goutil.Uint64(campaignID),
			TargetUserID: member.ID,
			SendStatus:   entity.SendStatusPending,
			TargetUser:   member,
		})
	}

	if err := r.targetRepo.ReplaceForCampaign(ctx, campaignID, targets); err != nil {
		log.Ctx(ctx).Error().Msgf("replace campaign targets failed: %v, campaign_id: %d", err, campaignID)
		return nil, err
	}

	log.Ctx(ctx).Info().Msgf("campaign targets synced from group, campaign_id: %d, group_id: %d, count: %d",
		campaignID, groupID, len(targets))

	return targets, nil
}

func (r *targetResolver) resolveManual(ctx context.Context, campaignID uint64) ([]*entity.CampaignTarget, error) {
	targets, err := r.targetRepo.GetByCampaignID(ctx, campaignID)
	if err != nil {
		log.Ctx(ctx).Error().Msgf("get campaign targets failed: %v, campaign_id: %d", err, campaignID)
		return nil, err
	}

	if len(targets) == 0 {
		return targets, nil
	}

	userIDs := make([]uint64, 0, len(targets))
	for _, target := range targets {
		userIDs = append(userIDs, target.GetTargetUserID())
	}

	users, err := r.userRepo.GetByIDs(ctx, userIDs)
	if err != nil {
		log.Ctx(ctx).Error().Msgf("get target users failed: %v, campaign_id: %d", err, campaignID)
		return nil, err
	}

	userMap := make(map[uint64]*entity.TargetUser, len(users))
	for _, user := range users {
		userMap[user.GetID()] = user
	}

	for _, target := range targets {
		target.TargetUser = userMap[target.GetTargetUserID()]
	}

	return targets, nil
}
