package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"phishsim/config"
	"phishsim/dep"
	"phishsim/engine"
	"phishsim/handler"
	"phishsim/middleware"
	"phishsim/pkg/logutil"
	"phishsim/pkg/mq"
	"phishsim/pkg/router"
	"phishsim/pkg/secret"
	"phishsim/pkg/service"
	"phishsim/repo"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
)

const settingsCacheExpiration = 5 * time.Minute

type server struct {
	ctx    context.Context
	cancel context.CancelFunc
	opt    *config.Option
	cfg    *config.Config

	baseRepo  repo.BaseRepo
	baseCache repo.BaseCache
	producer  *mq.Producer
	scheduler dep.Scheduler
	limiter   *middleware.RateLimiter

	// api handlers
	campaignHandler handler.CampaignHandler
	trackingHandler handler.TrackingHandler
	reportHandler   handler.ReportHandler
	settingsHandler handler.SettingsHandler

	httpServer *http.Server
}

func main() {
	s := new(server)
	if err := service.Run(s); err != nil {
		log.Fatal().Msg(err.Error())
	}
}

func (s *server) Init() error {
	opt := config.NewOptions()
	if err := opt.LoadEnv(); err != nil {
		return err
	}

	s.opt = opt

	return nil
}

func (s *server) Start() error {
	var err error

	// ====== init logger ===== //

	s.ctx = logutil.InitZeroLog(context.Background(), s.opt.LogLevel)

	// ===== init config ===== //

	s.cfg = config.NewConfig()
	if err = s.cfg.Load(s.ctx, s.opt.ConfigPath); err != nil {
		log.Ctx(s.ctx).Error().Msgf("load config failed, err: %v", err)
		return err
	}

	// ===== init repos ===== //

	s.baseRepo, err = repo.NewBaseRepo(s.ctx, s.cfg.MetadataDB)
	if err != nil {
		log.Ctx(s.ctx).Error().Msgf("init base repo failed, err: %v", err)
		return err
	}
	defer func() {
		if err != nil && s.baseRepo != nil {
			if err := s.baseRepo.Close(s.ctx); err != nil {
				log.Ctx(s.ctx).Error().Msgf("close base repo failed, err: %v", err)
				return
			}
		}
	}()

	if s.cfg.MetadataDB.AutoMigrate {
		if err = s.baseRepo.AutoMigrate(s.ctx, repo.Models()...); err != nil {
			log.Ctx(s.ctx).Error().Msgf("auto migrate failed, err: %v", err)
			return err
		}
	}

	s.baseCache = repo.NewBaseCache(s.ctx, settingsCacheExpiration)

	var (
		campaignRepo     = repo.NewCampaignRepo(s.ctx, s.baseRepo)
		targetRepo       = repo.NewCampaignTargetRepo(s.ctx, s.baseRepo)
		userRepo         = repo.NewTargetUserRepo(s.ctx, s.baseRepo)
		templateRepo     = repo.NewTemplateRepo(s.ctx, s.baseRepo)
		sendLogRepo      = repo.NewMailSendLogRepo(s.ctx, s.baseRepo)
		eventRepo        = repo.NewTrackingEventRepo(s.ctx, s.baseRepo)
		leaseRepo        = repo.NewLeaseRepo(s.ctx, s.baseRepo)
		settingsRepo     = repo.NewMailSettingsRepo(s.ctx, s.baseRepo)
		scheduledJobRepo = repo.NewScheduledJobRepo(s.ctx, s.baseRepo)
	)

	// ===== init deps ===== //

	var box secret.Box
	if s.cfg.Secret.Key != "" {
		box, err = secret.NewBox(s.cfg.Secret.Key)
		if err != nil {
			log.Ctx(s.ctx).Error().Msgf("init secret box failed, err: %v", err)
			return err
		}
	} else {
		log.Ctx(s.ctx).Warn().Msg("empty secret key, smtp passwords are stored as given")
	}

	settings := dep.NewSettingsResolver(s.ctx, settingsRepo, s.baseCache, box, s.cfg.Defaults)

	transport, err := dep.NewMailTransport(s.ctx, s.cfg.Transport, settings, box)
	if err != nil {
		log.Ctx(s.ctx).Error().Msgf("init mail transport failed, err: %v", err)
		return err
	}

	var (
		publisher mq.Publisher
		recorder  = handler.NewDBEventRecorder(eventRepo)
	)
	if s.cfg.EventSink == config.EventSinkMQ {
		s.producer, err = mq.NewProducer(s.ctx, s.cfg.Kafka.Producer)
		if err != nil {
			log.Ctx(s.ctx).Error().Msgf("init producer failed, err: %v", err)
			return err
		}
		publisher = s.producer
		recorder = handler.NewMQEventRecorder(s.producer)
	}

	eng := engine.NewEngine(
		s.cfg.Engine,
		s.baseRepo,
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

	s.scheduler = dep.NewScheduler(s.ctx, scheduledJobRepo,
		time.Duration(s.cfg.Scheduler.PollIntervalSecs)*time.Second, uint32(s.cfg.Scheduler.BatchSize))
	s.scheduler.Register(dep.InvocationExecuteCampaign, engine.InvocationFunc(eng))

	// cancelled by Stop, bounds the scheduler loop and send-now runs
	var runCtx context.Context
	runCtx, s.cancel = context.WithCancel(s.ctx)

	// ===== init handlers ===== //

	s.campaignHandler = handler.NewCampaignHandler(runCtx, s.cfg.Tracking, campaignRepo, eng, s.scheduler)
	s.trackingHandler = handler.NewTrackingHandler(s.cfg.Tracking, campaignRepo, userRepo, templateRepo, recorder)
	s.reportHandler = handler.NewReportHandler(campaignRepo, targetRepo, userRepo, eventRepo)
	s.settingsHandler = handler.NewSettingsHandler(settings)

	s.limiter = middleware.NewRateLimiter(s.cfg.Tracking.RateLimit, s.cfg.Tracking.RateBurst, s.cfg.Tracking.TrustProxyHeaders)

	// ===== start scheduler ===== //

	go func() {
		if err := s.scheduler.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Ctx(s.ctx).Error().Msgf("scheduler stopped, err: %v", err)
		}
	}()

	// ===== start server ===== //

	addr := fmt.Sprintf(":%d", s.opt.Port)
	s.httpServer = &http.Server{
		BaseContext: func(_ net.Listener) context.Context {
			return s.ctx
		},
		Addr:    addr,
		Handler: s.corsHandler(middleware.Log(s.registerRoutes())),
	}

	go func() {
		log.Info().Msgf("starting HTTP server at %s", addr)

		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Msgf("fail to start HTTP server, err: %v", err)
		}
	}()

	return nil
}

func (s *server) Stop() error {
	if s.cancel != nil {
		s.cancel()
	}

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Ctx(s.ctx).Error().Msgf("shutdown http server failed, err: %v", err)
		}
	}

	if s.limiter != nil {
		s.limiter.Stop()
	}

	if s.producer != nil {
		if err := s.producer.Close(); err != nil {
			log.Ctx(s.ctx).Error().Msgf("close producer failed, err: %v", err)
			return err
		}
	}

	if s.baseCache != nil {
		if err := s.baseCache.Close(s.ctx); err != nil {
			log.Ctx(s.ctx).Error().Msgf("close base cache failed, err: %v", err)
			return err
		}
	}

	if s.baseRepo != nil {
		if err := s.baseRepo.Close(s.ctx); err != nil {
			log.Ctx(s.ctx).Error().Msgf("close base repo failed, err: %v", err)
			return err
		}
	}

	return nil
}

func (s *server) corsHandler(next http.Handler) http.Handler {
	if len(s.cfg.Cors.AllowedOrigins) == 0 {
		return next
	}

	return cors.New(cors.Options{
		AllowedOrigins:   s.cfg.Cors.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler(next)
}

type HealthCheckRequest struct{}

type HealthCheckResponse struct{}

func (s *server) registerRoutes() http.Handler {
	r := &router.HttpRouter{
		Router: mux.NewRouter(),
	}

	r.RegisterHttpRoute(&router.HttpRoute{
		Path:   config.PathHealthCheck,
		Method: http.MethodGet,
		Handler: router.Handler{
			Req: new(HealthCheckRequest),
			Res: new(HealthCheckResponse),
			HandleFunc: func(ctx context.Context, req, res interface{}) error {
				return nil
			},
		},
	})

	// ===== operator api ===== //

	// send_campaign
	r.RegisterHttpRoute(&router.HttpRoute{
		Path:   config.PathSendCampaign,
		Method: http.MethodPost,
		Handler: router.Handler{
			Req: new(handler.SendCampaignRequest),
			Res: new(handler.SendCampaignResponse),
			HandleFunc: func(ctx context.Context, req, res interface{}) error {
				return s.campaignHandler.SendCampaign(ctx, req.(*handler.SendCampaignRequest), res.(*handler.SendCampaignResponse))
			},
		},
	})

	// end_campaign
	r.RegisterHttpRoute(&router.HttpRoute{
		Path:   config.PathEndCampaign,
		Method: http.MethodPost,
		Handler: router.Handler{
			Req: new(handler.EndCampaignRequest),
			Res: new(handler.EndCampaignResponse),
			HandleFunc: func(ctx context.Context, req, res interface{}) error {
				return s.campaignHandler.EndCampaign(ctx, req.(*handler.EndCampaignRequest), res.(*handler.EndCampaignResponse))
			},
		},
	})

	// cancel_campaign
	r.RegisterHttpRoute(&router.HttpRoute{
		Path:   config.PathCancelCampaign,
		Method: http.MethodPost,
		Handler: router.Handler{
			Req: new(handler.CancelCampaignRequest),
			Res: new(handler.CancelCampaignResponse),
			HandleFunc: func(ctx context.Context, req, res interface{}) error {
				return s.campaignHandler.CancelCampaign(ctx, req.(*handler.CancelCampaignRequest), res.(*handler.CancelCampaignResponse))
			},
		},
	})

	// update_campaign_schedule
	r.RegisterHttpRoute(&router.HttpRoute{
		Path:   config.PathUpdateCampaignSchedule,
		Method: http.MethodPost,
		Handler: router.Handler{
			Req: new(handler.UpdateCampaignScheduleRequest),
			Res: new(handler.UpdateCampaignScheduleResponse),
			HandleFunc: func(ctx context.Context, req, res interface{}) error {
				return s.campaignHandler.UpdateCampaignSchedule(ctx, req.(*handler.UpdateCampaignScheduleRequest), res.(*handler.UpdateCampaignScheduleResponse))
			},
		},
	})

	// get_campaign_report
	r.RegisterHttpRoute(&router.HttpRoute{
		Path:   config.PathGetCampaignReport,
		Method: http.MethodGet,
		Handler: router.Handler{
			Req: new(handler.GetCampaignReportRequest),
			Res: new(handler.GetCampaignReportResponse),
			HandleFunc: func(ctx context.Context, req, res interface{}) error {
				return s.reportHandler.GetCampaignReport(ctx, req.(*handler.GetCampaignReportRequest), res.(*handler.GetCampaignReportResponse))
			},
		},
	})

	// export_campaign_report
	r.RegisterHttpRoute(&router.HttpRoute{
		Path:   config.PathExportCampaignReport,
		Method: http.MethodGet,
		Handler: router.Handler{
			Req: new(handler.ExportCampaignReportRequest),
			Res: new(handler.ExportCampaignReportResponse),
			HandleFunc: func(ctx context.Context, req, res interface{}) error {
				return s.reportHandler.ExportCampaignReport(ctx, req.(*handler.ExportCampaignReportRequest), res.(*handler.ExportCampaignReportResponse))
			},
		},
	})

	// get_mail_settings
	r.RegisterHttpRoute(&router.HttpRoute{
		Path:   config.PathGetMailSettings,
		Method: http.MethodGet,
		Handler: router.Handler{
			Req: new(handler.GetMailSettingsRequest),
			Res: new(handler.GetMailSettingsResponse),
			HandleFunc: func(ctx context.Context, req, res interface{}) error {
				return s.settingsHandler.GetMailSettings(ctx, req.(*handler.GetMailSettingsRequest), res.(*handler.GetMailSettingsResponse))
			},
		},
	})

	// update_mail_settings
	r.RegisterHttpRoute(&router.HttpRoute{
		Path:   config.PathUpdateMailSettings,
		Method: http.MethodPost,
		Handler: router.Handler{
			Req: new(handler.UpdateMailSettingsRequest),
			Res: new(handler.UpdateMailSettingsResponse),
			HandleFunc: func(ctx context.Context, req, res interface{}) error {
				return s.settingsHandler.UpdateMailSettings(ctx, req.(*handler.UpdateMailSettingsRequest), res.(*handler.UpdateMailSettingsResponse))
			},
		},
	})

	// ===== tracking ===== //

	trackingMiddlewares := []router.Middleware{s.limiter}

	// track_open
	r.RegisterHttpRoute(&router.HttpRoute{
		Path:        config.PathTrackOpen,
		Method:      http.MethodGet,
		Middlewares: trackingMiddlewares,
		IsPublic:    true,
		Handler: router.Handler{
			Req:     new(handler.TrackOpenRequest),
			Res:     new(handler.TrackOpenResponse),
			Lenient: true,
			HandleFunc: func(ctx context.Context, req, res interface{}) error {
				return s.trackingHandler.TrackOpen(ctx, req.(*handler.TrackOpenRequest), res.(*handler.TrackOpenResponse))
			},
		},
	})

	// track_click
	r.RegisterHttpRoute(&router.HttpRoute{
		Path:        config.PathTrackClick,
		Method:      http.MethodGet,
		Middlewares: trackingMiddlewares,
		IsPublic:    true,
		Handler: router.Handler{
			Req:     new(handler.TrackClickRequest),
			Res:     new(handler.TrackClickResponse),
			Lenient: true,
			HandleFunc: func(ctx context.Context, req, res interface{}) error {
				return s.trackingHandler.TrackClick(ctx, req.(*handler.TrackClickRequest), res.(*handler.TrackClickResponse))
			},
		},
	})

	// track_landing
	r.RegisterHttpRoute(&router.HttpRoute{
		Path:        config.PathTrackLanding,
		Method:      http.MethodGet,
		Middlewares: trackingMiddlewares,
		IsPublic:    true,
		Handler: router.Handler{
			Req:     new(handler.TrackLandingRequest),
			Res:     new(handler.TrackLandingResponse),
			Lenient: true,
			HandleFunc: func(ctx context.Context, req, res interface{}) error {
				return s.trackingHandler.TrackLanding(ctx, req.(*handler.TrackLandingRequest), res.(*handler.TrackLandingResponse))
			},
		},
	})

	// track_submit
	r.RegisterHttpRoute(&router.HttpRoute{
		Path:        config.PathTrackSubmit,
		Method:      http.MethodPost,
		Middlewares: trackingMiddlewares,
		IsPublic:    true,
		Handler: router.Handler{
			Req:     new(handler.TrackSubmitRequest),
			Res:     new(handler.TrackSubmitResponse),
			Lenient: true,
			HandleFunc: func(ctx context.Context, req, res interface{}) error {
				return s.trackingHandler.TrackSubmit(ctx, req.(*handler.TrackSubmitRequest), res.(*handler.TrackSubmitResponse))
			},
		},
	})

	return r
}
