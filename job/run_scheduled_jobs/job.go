package run_scheduled_jobs

import (
	"context"
	"phishsim/dep"
	"phishsim/pkg/service"
	"time"

	"github.com/rs/zerolog/log"
)

// RunScheduledJobs makes a single dispatcher pass, for deployments that drive the scheduler from cron.
type RunScheduledJobs struct {
	scheduler dep.Scheduler
}

func New(scheduler dep.Scheduler) service.Job {
	return &RunScheduledJobs{
		scheduler: scheduler,
	}
}

func (j *RunScheduledJobs) Init(_ context.Context) error {
	return nil
}

func (j *RunScheduledJobs) Run(ctx context.Context) error {
	n, err := j.scheduler.RunOnce(ctx, time.Now())
	if err != nil {
		log.Ctx(ctx).Error().Msgf("run scheduled jobs failed: %v", err)
		return err
	}

	log.Ctx(ctx).Info().Msgf("scheduled jobs executed: %d", n)

	return nil
}

func (j *RunScheduledJobs) CleanUp(_ context.Context) error {
	return nil
}
