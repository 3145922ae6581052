package main

import (
	"context"
	"fmt"
	"os"
	"phishsim/config"
	"phishsim/dep"
	"phishsim/engine"
	"phishsim/job/consume_tracking_events"
	"phishsim/job/run_scheduled_campaigns"
	"phishsim/job/run_scheduled_jobs"
	"phishsim/pkg/logutil"
	"phishsim/pkg/mq"
	"phishsim/pkg/secret"
	"phishsim/pkg/service"
	"phishsim/repo"
	"time"

	"github.com/rs/zerolog/log"
)

func main() {
	opt := config.NewOptions()
	if err := opt.LoadEnv(); err != nil {
		fmt.Printf("load env failed: %v\n", err)
		os.Exit(1)
	}

	ctx := logutil.InitZeroLog(context.Background(), opt.LogLevel)

	cfg := config.NewConfig()
	if err := cfg.Load(ctx, opt.ConfigPath); err != nil {
		log.Ctx(ctx).Error().Msgf("load config failed: %v", err)
		os.Exit(1)
	}

	// base repo
	baseRepo, err := repo.NewBaseRepo(ctx, cfg.MetadataDB)
	if err != nil {
		log.Ctx(ctx).Error().Msgf("init base repo failed, err: %v", err)
		os.Exit(1)
	}
	defer func() {
		if err := baseRepo.Close(ctx); err != nil {
			log.Ctx(ctx).Error().Msgf("close base repo failed, err: %v", err)
		}
	}()

	baseCache := repo.NewBaseCache(ctx, time.Minute)
	defer func() {
		_ = baseCache.Close(ctx)
	}()

	var (
		campaignRepo     = repo.NewCampaignRepo(ctx, baseRepo)
		targetRepo       = repo.NewCampaignTargetRepo(ctx, baseRepo)
		userRepo         = repo.NewTargetUserRepo(ctx, baseRepo)
		templateRepo     = repo.NewTemplateRepo(ctx, baseRepo)
		sendLogRepo      = repo.NewMailSendLogRepo(ctx, baseRepo)
		eventRepo        = repo.NewTrackingEventRepo(ctx, baseRepo)
		leaseRepo        = repo.NewLeaseRepo(ctx, baseRepo)
		settingsRepo     = repo.NewMailSettingsRepo(ctx, baseRepo)
		scheduledJobRepo = repo.NewScheduledJobRepo(ctx, baseRepo)
	)

	var box secret.Box
	if cfg.Secret.Key != "" {
		if box, err = secret.NewBox(cfg.Secret.Key); err != nil {
			log.Ctx(ctx).Error().Msgf("init secret box failed, err: %v", err)
			os.Exit(1)
		}
	}

	settings := dep.NewSettingsResolver(ctx, settingsRepo, baseCache, box, cfg.Defaults)

	transport, err := dep.NewMailTransport(ctx, cfg.Transport, settings, box)
	if err != nil {
		log.Ctx(ctx).Error().Msgf("init mail transport failed, err: %v", err)
		os.Exit(1)
	}

	var publisher mq.Publisher
	if cfg.EventSink == config.EventSinkMQ {
		producer, err := mq.NewProducer(ctx, cfg.Kafka.Producer)
		if err != nil {
			log.Ctx(ctx).Error().Msgf("init producer failed, err: %v", err)
			os.Exit(1)
		}
		defer func() {
			_ = producer.Close()
		}()
		publisher = producer
	}

	eng := engine.NewEngine(
		cfg.Engine,
		baseRepo,
		campaignRepo,
		templateRepo,
		targetRepo,
		sendLogRepo,
		leaseRepo,
		settings,
		transport,
		engine.NewTargetResolver(targetRepo, userRepo),
		engine.NewContentRewriter(),
		publisher,
	)

	scheduler := dep.NewScheduler(ctx, scheduledJobRepo,
		time.Duration(cfg.Scheduler.PollIntervalSecs)*time.Second, uint32(cfg.Scheduler.BatchSize))
	scheduler.Register(dep.InvocationExecuteCampaign, engine.InvocationFunc(eng))

	jobs := map[string]service.Job{
		"run-scheduled-campaigns": run_scheduled_campaigns.New(cfg, campaignRepo, eng),
		"run-scheduled-jobs":      run_scheduled_jobs.New(scheduler),
		"consume-tracking-events": consume_tracking_events.New(cfg.Kafka, eventRepo),
	}

	if len(os.Args) < 2 {
		fmt.Println("Usage: go run main.go <job_name>")
		os.Exit(1)
	}

	jobName := os.Args[1]
	job, exists := jobs[jobName]
	if !exists {
		log.Ctx(ctx).Error().Msgf("job %s not found", jobName)
		os.Exit(1)
	}

	if err := runJob(ctx, job); err != nil {
		os.Exit(1)
	}

	log.Ctx(ctx).Info().Msg("job executed successfully")
}

func runJob(ctx context.Context, job service.Job) error {
	if err := job.Init(ctx); err != nil {
		log.Ctx(ctx).Error().Msgf("init job err: %v", err)
		return err
	}

	if err := job.Run(ctx); err != nil {
		log.Ctx(ctx).Error().Msgf("run job err: %v", err)
		return err
	}

	if err := job.CleanUp(ctx); err != nil {
		log.Ctx(ctx).Error().Msgf("cleanup job err: %v", err)
		return err
	}

	return nil
}
