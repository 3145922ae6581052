package run_scheduled_campaigns

import (
	"context"
	"phishsim/config"
	"phishsim/engine"
	"phishsim/pkg/goutil"
	"phishsim/pkg/service"
	"phishsim/repo"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	defaultBatchSize   = 20
	defaultConcurrency = 4
)

// RunScheduledCampaigns executes every auto-send campaign whose scheduled time has passed. Campaigns run
// in parallel, the recipients of one campaign are still processed one by one.
type RunScheduledCampaigns struct {
	cfg          *config.Config
	campaignRepo repo.CampaignRepo
	engine       engine.Engine
}

func New(cfg *config.Config, campaignRepo repo.CampaignRepo, eng engine.Engine) service.Job {
	return &RunScheduledCampaigns{
		cfg:          cfg,
		campaignRepo: campaignRepo,
		engine:       eng,
	}
}

func (j *RunScheduledCampaigns) Init(_ context.Context) error {
	return nil
}

func (j *RunScheduledCampaigns) Run(ctx context.Context) error {
	var (
		g           = new(errgroup.Group)
		c           = j.concurrency()
		ch          = make(chan struct{}, c)
		now         = goutil.Now()
		failedCount atomic.Int32
	)

	campaigns, err := j.campaignRepo.GetDueScheduled(ctx, now, j.batchSize())
	if err != nil {
		log.Ctx(ctx).Error().Msgf("get due campaigns failed: %v", err)
		return err
	}

	log.Ctx(ctx).Info().Msgf("number of campaigns to be executed: %d", len(campaigns))

	for _, campaign := range campaigns {
		ch <- struct{}{}

		campaign := campaign
		g.Go(func() error {
			// release go routine
			defer func() {
				<-ch
			}()

			res := j.engine.Execute(ctx, campaign.GetID(), j.cfg.Tracking.BaseURL)
			if !res.Success {
				failedCount.Add(1)
				log.Ctx(ctx).Error().Msgf("[campaign ID %d] execution failed: %s", campaign.GetID(), res.Message)
				return nil
			}

			log.Ctx(ctx).Info().Msgf("[campaign ID %d] %s", campaign.GetID(), res.Message)

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	log.Ctx(ctx).Info().Msgf("scheduled campaigns done, total: %d, failed: %d", len(campaigns), failedCount.Load())

	return nil
}

func (j *RunScheduledCampaigns) CleanUp(_ context.Context) error {
	return nil
}

func (j *RunScheduledCampaigns) concurrency() int {
	if j.cfg.Scheduler.Concurrency > 0 {
		return j.cfg.Scheduler.Concurrency
	}
	return defaultConcurrency
}

func (j *RunScheduledCampaigns) batchSize() uint32 {
	if j.cfg.Scheduler.BatchSize > 0 {
		return uint32(j.cfg.Scheduler.BatchSize)
	}
	return defaultBatchSize
}
