package handler

import (
	"context"
	"errors"
	"fmt"
	"phishsim/config"
	"phishsim/dep"
	"phishsim/engine"
	"phishsim/entity"
	"phishsim/pkg/errutil"
	"phishsim/pkg/goutil"
	"phishsim/pkg/httputil"
	"phishsim/pkg/validator"
	"phishsim/repo"
	"time"

	"github.com/rs/zerolog/log"
)

var ErrScheduledTimeRequired = errors.New("scheduled_send_time is required for a Scheduled campaign")

type CampaignHandler interface {
	SendCampaign(ctx context.Context, req *SendCampaignRequest, res *SendCampaignResponse) error
	EndCampaign(ctx context.Context, req *EndCampaignRequest, res *EndCampaignResponse) error
	CancelCampaign(ctx context.Context, req *CancelCampaignRequest, res *CancelCampaignResponse) error
	UpdateCampaignSchedule(ctx context.Context, req *UpdateCampaignScheduleRequest, res *UpdateCampaignScheduleResponse) error
}

type campaignHandler struct {
	// runs started by SendCampaign end with this context, not with the request
	lifecycle    context.Context
	cfg          config.Tracking
	campaignRepo repo.CampaignRepo
	engine       engine.Engine
	scheduler    dep.Scheduler
	locks        *keyedMutex
}

func NewCampaignHandler(ctx context.Context, cfg config.Tracking, campaignRepo repo.CampaignRepo, eng engine.Engine,
	scheduler dep.Scheduler) CampaignHandler {
	return &campaignHandler{
		lifecycle:    ctx,
		cfg:          cfg,
		campaignRepo: campaignRepo,
		engine:       eng,
		scheduler:    scheduler,
		locks:        newKeyedMutex(),
	}
}

type SendCampaignRequest struct {
	CampaignID *uint64 `json:"campaign_id,omitempty"`
}

func (r *SendCampaignRequest) GetCampaignID() uint64 {
	if r != nil && r.CampaignID != nil {
		return *r.CampaignID
	}
	return 0
}

type SendCampaignResponse struct {
	Result *entity.ExecutionResult `json:"result,omitempty"`
}

var SendCampaignValidator = validator.MustForm(map[string]validator.Validator{
	"campaign_id": CampaignIDValidator(),
})

// SendCampaign runs the campaign now and blocks until the pass is over. Precondition failures are
// reported in the result, not as request errors. A client that disconnects does not stop the run,
// only the handler lifecycle context does.
func (h *campaignHandler) SendCampaign(ctx context.Context, req *SendCampaignRequest, res *SendCampaignResponse) error {
	if err := SendCampaignValidator.Validate(req); err != nil {
		return errutil.ValidationError(err)
	}

	runCtx, cancel := h.detach(ctx)
	defer cancel()

	res.Result = h.engine.Execute(runCtx, req.GetCampaignID(), h.baseURL(ctx))
	if !res.Result.Success {
		return nil
	}

	// a pending scheduled run would only fail against a Running campaign
	unlock := h.locks.Lock(req.GetCampaignID())
	defer unlock()

	campaign, err := h.campaignRepo.GetByID(runCtx, req.GetCampaignID())
	if err != nil {
		log.Ctx(ctx).Error().Msgf("get campaign after send failed: %v, campaign_id: %d", err, req.GetCampaignID())
		return nil
	}
	if campaign.GetJobID() == "" {
		return nil
	}

	h.cancelJob(runCtx, campaign)
	if err := h.campaignRepo.Update(runCtx, campaign); err != nil {
		log.Ctx(ctx).Error().Msgf("clear job of sent campaign failed: %v, campaign_id: %d", err, campaign.GetID())
	}

	return nil
}

type EndCampaignRequest struct {
	CampaignID *uint64 `json:"campaign_id,omitempty"`
}

func (r *EndCampaignRequest) GetCampaignID() uint64 {
	if r != nil && r.CampaignID != nil {
		return *r.CampaignID
	}
	return 0
}

type EndCampaignResponse struct {
	Campaign *entity.Campaign `json:"campaign,omitempty"`
}

var EndCampaignValidator = validator.MustForm(map[string]validator.Validator{
	"campaign_id": CampaignIDValidator(),
})

func (h *campaignHandler) EndCampaign(ctx context.Context, req *EndCampaignRequest, res *EndCampaignResponse) error {
	if err := EndCampaignValidator.Validate(req); err != nil {
		return errutil.ValidationError(err)
	}

	unlock := h.locks.Lock(req.GetCampaignID())
	defer unlock()

	campaign, err := h.campaignRepo.GetByID(ctx, req.GetCampaignID())
	if err != nil {
		log.Ctx(ctx).Error().Msgf("get campaign failed: %v, campaign_id: %d", err, req.GetCampaignID())
		return err
	}

	status := campaign.GetStatus()
	if status != entity.CampaignStatusRunning && status != entity.CampaignStatusScheduled {
		return errutil.ValidationError(fmt.Errorf("campaign is %s, only Running or Scheduled campaigns can be ended", status))
	}

	h.cancelJob(ctx, campaign)

	now := goutil.Now()
	campaign.Status = entity.CampaignStatusCompleted
	campaign.EndTime = goutil.Uint64(now)
	campaign.UpdateTime = goutil.Uint64(now)

	if err := h.campaignRepo.Update(ctx, campaign); err != nil {
		log.Ctx(ctx).Error().Msgf("end campaign failed: %v, campaign_id: %d", err, campaign.GetID())
		return err
	}

	log.Ctx(ctx).Info().Msgf("campaign ended, campaign_id: %d, was: %s", campaign.GetID(), status)

	res.Campaign = campaign

	return nil
}

type CancelCampaignRequest struct {
	CampaignID *uint64 `json:"campaign_id,omitempty"`
}

func (r *CancelCampaignRequest) GetCampaignID() uint64 {
	if r != nil && r.CampaignID != nil {
		return *r.CampaignID
	}
	return 0
}

type CancelCampaignResponse struct {
	Campaign *entity.Campaign `json:"campaign,omitempty"`
}

var CancelCampaignValidator = validator.MustForm(map[string]validator.Validator{
	"campaign_id": CampaignIDValidator(),
})

func (h *campaignHandler) CancelCampaign(ctx context.Context, req *CancelCampaignRequest, res *CancelCampaignResponse) error {
	if err := CancelCampaignValidator.Validate(req); err != nil {
		return errutil.ValidationError(err)
	}

	unlock := h.locks.Lock(req.GetCampaignID())
	defer unlock()

	campaign, err := h.campaignRepo.GetByID(ctx, req.GetCampaignID())
	if err != nil {
		log.Ctx(ctx).Error().Msgf("get campaign failed: %v, campaign_id: %d", err, req.GetCampaignID())
		return err
	}

	if !campaign.GetStatus().CanExecute() {
		return errutil.ValidationError(fmt.Errorf("campaign is %s, only Draft or Scheduled campaigns can be cancelled",
			campaign.GetStatus()))
	}

	h.cancelJob(ctx, campaign)

	campaign.Status = entity.CampaignStatusCancelled
	campaign.UpdateTime = goutil.Uint64(goutil.Now())

	if err := h.campaignRepo.Update(ctx, campaign); err != nil {
		log.Ctx(ctx).Error().Msgf("cancel campaign failed: %v, campaign_id: %d", err, campaign.GetID())
		return err
	}

	res.Campaign = campaign

	return nil
}

type UpdateCampaignScheduleRequest struct {
	CampaignID *uint64 `json:"campaign_id,omitempty"`
	Status     *uint32 `json:"status,omitempty"`
	IsAutoSend *bool   `json:"is_auto_send,omitempty"`
	// ScheduledSendTime in unix seconds, unset or 0 clears it
	ScheduledSendTime *uint64 `json:"scheduled_send_time,omitempty"`
}

func (r *UpdateCampaignScheduleRequest) GetCampaignID() uint64 {
	if r != nil && r.CampaignID != nil {
		return *r.CampaignID
	}
	return 0
}

func (r *UpdateCampaignScheduleRequest) GetScheduledSendTime() uint64 {
	if r != nil && r.ScheduledSendTime != nil {
		return *r.ScheduledSendTime
	}
	return 0
}

type UpdateCampaignScheduleResponse struct {
	Campaign *entity.Campaign `json:"campaign,omitempty"`
}

var UpdateCampaignScheduleValidator = validator.MustForm(map[string]validator.Validator{
	"campaign_id": CampaignIDValidator(),
	"status":      ScheduleStatusValidator(false),
	"is_auto_send": &validator.Bool{
		Optional: true,
	},
	"scheduled_send_time": &validator.UInt64{
		Optional: true,
	},
})

// UpdateCampaignSchedule keeps the campaign's job handle in step with its schedule. At most one
// pending job exists per campaign.
func (h *campaignHandler) UpdateCampaignSchedule(ctx context.Context, req *UpdateCampaignScheduleRequest, res *UpdateCampaignScheduleResponse) error {
	if err := UpdateCampaignScheduleValidator.Validate(req); err != nil {
		return errutil.ValidationError(err)
	}

	newStatus := entity.CampaignStatus(*req.Status)
	newTime := req.GetScheduledSendTime()
	if newStatus == entity.CampaignStatusScheduled && newTime == 0 {
		return errutil.ValidationError(ErrScheduledTimeRequired)
	}

	unlock := h.locks.Lock(req.GetCampaignID())
	defer unlock()

	campaign, err := h.campaignRepo.GetByID(ctx, req.GetCampaignID())
	if err != nil {
		log.Ctx(ctx).Error().Msgf("get campaign failed: %v, campaign_id: %d", err, req.GetCampaignID())
		return err
	}

	if !campaign.GetStatus().CanExecute() {
		return errutil.ValidationError(fmt.Errorf("campaign is %s, only Draft or Scheduled campaigns can be rescheduled",
			campaign.GetStatus()))
	}

	newAutoSend := campaign.GetIsAutoSend()
	if req.IsAutoSend != nil {
		newAutoSend = *req.IsAutoSend
	}

	oldTime := campaign.GetScheduledSendTime()
	if shouldCancelJob(campaign.GetStatus(), newStatus, campaign.GetIsAutoSend(), newAutoSend, oldTime, newTime) {
		h.cancelJob(ctx, campaign)
	}

	now := goutil.Now()
	campaign.Status = newStatus
	campaign.IsAutoSend = goutil.Bool(newAutoSend)
	campaign.ScheduledSendTime = nil
	if newTime > 0 {
		campaign.ScheduledSendTime = goutil.Uint64(newTime)
	}
	campaign.UpdateTime = goutil.Uint64(now)

	if newStatus == entity.CampaignStatusScheduled && newAutoSend && newTime > now && campaign.GetJobID() == "" {
		h.scheduleJob(ctx, campaign)
	}

	if err := h.campaignRepo.Update(ctx, campaign); err != nil {
		log.Ctx(ctx).Error().Msgf("update campaign schedule failed: %v, campaign_id: %d", err, campaign.GetID())
		return err
	}

	res.Campaign = campaign

	return nil
}

func shouldCancelJob(oldStatus, newStatus entity.CampaignStatus, oldAutoSend, newAutoSend bool, oldTime, newTime uint64) bool {
	switch {
	case oldStatus == entity.CampaignStatusScheduled && newStatus != entity.CampaignStatusScheduled:
		return true
	case oldAutoSend && !newAutoSend:
		return true
	case oldTime > 0 && newTime != oldTime:
		return true
	}
	return false
}

// scheduleJob falls back to Draft when no job could be stored.
func (h *campaignHandler) scheduleJob(ctx context.Context, campaign *entity.Campaign) {
	inv, err := dep.NewExecuteCampaignInvocation(campaign.GetID(), h.baseURL(ctx))
	if err == nil {
		var handle string
		handle, err = h.scheduler.Schedule(ctx, inv, time.Unix(int64(campaign.GetScheduledSendTime()), 0))
		if err == nil {
			campaign.JobID = goutil.String(handle)
			log.Ctx(ctx).Info().Msgf("campaign scheduled, campaign_id: %d, job: %s, run_at: %d",
				campaign.GetID(), handle, campaign.GetScheduledSendTime())
			return
		}
	}

	log.Ctx(ctx).Error().Msgf("schedule campaign failed, reverting to Draft: %v, campaign_id: %d", err, campaign.GetID())
	campaign.Status = entity.CampaignStatusDraft
	campaign.JobID = nil
}

// cancelJob clears the handle even when the scheduler no longer knows it.
func (h *campaignHandler) cancelJob(ctx context.Context, campaign *entity.Campaign) {
	handle := campaign.GetJobID()
	if handle == "" {
		return
	}

	if err := h.scheduler.Cancel(ctx, handle); err != nil {
		log.Ctx(ctx).Warn().Msgf("cancel scheduled job failed: %v, campaign_id: %d, job: %s", err, campaign.GetID(), handle)
	} else {
		log.Ctx(ctx).Info().Msgf("scheduled job cancelled, campaign_id: %d, job: %s", campaign.GetID(), handle)
	}

	campaign.JobID = nil
}

func (h *campaignHandler) baseURL(ctx context.Context) string {
	if h.cfg.BaseURL != "" {
		return h.cfg.BaseURL
	}
	return httputil.GetRequestMeta(ctx).BaseURL
}

// detach keeps the values of ctx, such as the log id, and ties cancellation to the handler lifecycle.
func (h *campaignHandler) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	if h.lifecycle == nil {
		return runCtx, cancel
	}

	stop := context.AfterFunc(h.lifecycle, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}
