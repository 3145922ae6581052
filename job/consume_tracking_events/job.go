package consume_tracking_events

import (
	"context"
	"os/signal"
	"phishsim/config"
	"phishsim/entity"
	"phishsim/pkg/mq"
	"phishsim/pkg/service"
	"phishsim/repo"
	"syscall"

	"github.com/rs/zerolog/log"
)

// ConsumeTrackingEvents stores the events published by the tracking endpoints when event_sink is mq.
type ConsumeTrackingEvents struct {
	cfg       config.Kafka
	eventRepo repo.TrackingEventRepo
	consumer  *mq.Consumer
}

func New(cfg config.Kafka, eventRepo repo.TrackingEventRepo) service.Job {
	return &ConsumeTrackingEvents{
		cfg:       cfg,
		eventRepo: eventRepo,
	}
}

func (j *ConsumeTrackingEvents) Init(ctx context.Context) error {
	consumer, err := mq.NewConsumer(ctx, j.cfg.Consumer, mq.Handlers{
		mq.PayloadTrackingEvent: HandleTrackingEvent(j.eventRepo),
		mq.PayloadMailSent:      HandleMailSent(),
	})
	if err != nil {
		log.Ctx(ctx).Error().Msgf("init consumer failed: %v", err)
		return err
	}
	j.consumer = consumer

	return nil
}

// Run blocks until the process is told to stop.
func (j *ConsumeTrackingEvents) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	log.Ctx(ctx).Info().Msg("stopping tracking event consumer")

	return nil
}

func (j *ConsumeTrackingEvents) CleanUp(_ context.Context) error {
	if j.consumer == nil {
		return nil
	}
	return j.consumer.Close()
}

func HandleTrackingEvent(eventRepo repo.TrackingEventRepo) mq.HandlerFunc {
	return func(ctx context.Context, msg *mq.Message) error {
		event := new(entity.TrackingEvent)
		if err := msg.ParseBody(event); err != nil {
			log.Ctx(ctx).Error().Msgf("parse tracking event failed: %v", err)
			return mq.Permanent(err)
		}

		// ids are assigned by the store
		event.ID = nil

		if _, err := eventRepo.Create(ctx, event); err != nil {
			log.Ctx(ctx).Error().Msgf("insert tracking event failed: %v, campaign_id: %d, target_user_id: %d",
				err, event.GetCampaignID(), event.GetTargetUserID())
			return err
		}

		return nil
	}
}

// HandleMailSent keeps an audit line per send outcome.
func HandleMailSent() mq.HandlerFunc {
	return func(ctx context.Context, msg *mq.Message) error {
		sendLog := new(entity.MailSendLog)
		if err := msg.ParseBody(sendLog); err != nil {
			log.Ctx(ctx).Error().Msgf("parse mail sent message failed: %v", err)
			return mq.Permanent(err)
		}

		log.Ctx(ctx).Info().Msgf("mail send outcome, campaign_id: %d, target_user_id: %d, status: %s, server: %s",
			sendLog.GetCampaignID(), sendLog.GetTargetUserID(), sendLog.GetStatus(), sendLog.GetSmtpServerUsed())

		return nil
	}
}
