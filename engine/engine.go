package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"phishsim/config"
	"phishsim/dep"
	"phishsim/entity"
	"phishsim/pkg/goutil"
	"phishsim/pkg/logutil"
	"phishsim/pkg/mq"
	"phishsim/repo"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	defaultLeaseTTL = 30 * time.Minute
	maxErrorLength  = 1000

	msgEmptyEmail = "target user email is empty"
)

type Engine interface {
	// Execute runs one send pass over a campaign. Sends already marked Sent or Failed are never repeated,
	// so calling it again on the same campaign only reports the accumulated counts.
	Execute(ctx context.Context, campaignID uint64, baseURL string) *entity.ExecutionResult
}

type engine struct {
	txService    repo.TxService
	campaignRepo repo.CampaignRepo
	templateRepo repo.TemplateRepo
	targetRepo   repo.CampaignTargetRepo
	sendLogRepo  repo.MailSendLogRepo
	leaseRepo    repo.LeaseRepo
	settings     dep.SettingsResolver
	transport    dep.MailTransport
	resolver     TargetResolver
	rewriter     ContentRewriter
	publisher    mq.Publisher
	leaseTTL     time.Duration
}

func NewEngine(
	cfg config.Engine,
	txService repo.TxService,
	campaignRepo repo.CampaignRepo,
	templateRepo repo.TemplateRepo,
	targetRepo repo.CampaignTargetRepo,
	sendLogRepo repo.MailSendLogRepo,
	leaseRepo repo.LeaseRepo,
	settings dep.SettingsResolver,
	transport dep.MailTransport,
	resolver TargetResolver,
	rewriter ContentRewriter,
	publisher mq.Publisher,
) Engine {
	leaseTTL := time.Duration(cfg.LeaseTTLSecs) * time.Second
	if leaseTTL <= 0 {
		leaseTTL = defaultLeaseTTL
	}
	return &engine{
		txService,
		campaignRepo,
		templateRepo,
		targetRepo,
		sendLogRepo,
		leaseRepo,
		settings,
		transport,
		resolver,
		rewriter,
		publisher,
		leaseTTL,
	}
}

// run carries the state of one Execute call.
type run struct {
	campaign *entity.Campaign
	template *entity.MailTemplate
	sender   *entity.Sender
	baseURL  string

	logs    []*entity.MailSendLog
	changed []*entity.CampaignTarget

	sentCount   int
	failedCount int
}

func (e *engine) Execute(ctx context.Context, campaignID uint64, baseURL string) *entity.ExecutionResult {
	owner := uuid.NewString()
	now := goutil.Now()

	acquired, err := e.leaseRepo.Acquire(ctx, campaignID, owner, now, now+uint64(e.leaseTTL.Seconds()))
	if err != nil {
		log.Ctx(ctx).Error().Msgf("acquire campaign lease failed: %v, campaign_id: %d", err, campaignID)
		return entity.NewFailedResult(fmt.Sprintf("acquire execution lease of campaign %d failed: %v", campaignID, err))
	}
	if !acquired {
		log.Ctx(ctx).Warn().Msgf("campaign is already being executed, campaign_id: %d", campaignID)
		return entity.NewFailedResult(fmt.Sprintf("campaign %d is already being executed", campaignID))
	}

	defer func() {
		if err := e.leaseRepo.Release(context.WithoutCancel(ctx), campaignID, owner); err != nil {
			log.Ctx(ctx).Error().Msgf("release campaign lease failed: %v, campaign_id: %d", err, campaignID)
		}
	}()

	r, res := e.prepare(ctx, campaignID, baseURL)
	if res != nil {
		log.Ctx(ctx).Warn().Msgf("campaign not executed: %s", res.Message)
		return res
	}

	targets, err := e.resolver.Resolve(ctx, r.campaign)
	if err != nil {
		return entity.NewFailedResult(fmt.Sprintf("resolve targets of campaign %d failed: %v", campaignID, err))
	}
	if len(targets) == 0 {
		msg := fmt.Sprintf("campaign %d has no recipients", campaignID)
		log.Ctx(ctx).Warn().Msg(msg)
		return entity.NewFailedResult(msg)
	}

	if err := e.start(ctx, r.campaign); err != nil {
		return entity.NewFailedResult(fmt.Sprintf("start campaign %d failed: %v", campaignID, err))
	}

	log.Ctx(ctx).Info().Msgf("campaign execution started, campaign_id: %d, targets: %d", campaignID, len(targets))

	cancelled := e.sendAll(ctx, r, targets)

	// Completed sends are recorded even when the run was cancelled.
	if err := e.persist(context.WithoutCancel(ctx), r); err != nil {
		log.Ctx(ctx).Error().Msgf("save send results failed: %v, campaign_id: %d", err, campaignID)
		return &entity.ExecutionResult{
			SentCount:   r.sentCount,
			FailedCount: r.failedCount,
			Message:     fmt.Sprintf("sends may have gone out but saving the results of campaign %d failed: %v", campaignID, err),
		}
	}

	if cancelled {
		msg := fmt.Sprintf("execution of campaign %d was cancelled, sent: %d, failed: %d", campaignID, r.sentCount, r.failedCount)
		log.Ctx(ctx).Warn().Msg(msg)
		return &entity.ExecutionResult{
			SentCount:   r.sentCount,
			FailedCount: r.failedCount,
			Message:     msg,
		}
	}

	msg := fmt.Sprintf("campaign '%s' processed, sent: %d, failed: %d", r.campaign.GetName(), r.sentCount, r.failedCount)
	log.Ctx(ctx).Info().Msg(msg)

	return &entity.ExecutionResult{
		Success:     true,
		SentCount:   r.sentCount,
		FailedCount: r.failedCount,
		Message:     msg,
	}
}

// prepare checks every precondition without mutating anything.
func (e *engine) prepare(ctx context.Context, campaignID uint64, baseURL string) (*run, *entity.ExecutionResult) {
	campaign, err := e.campaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		if errors.Is(err, repo.ErrCampaignNotFound) {
			return nil, entity.NewFailedResult(fmt.Sprintf("campaign %d not found", campaignID))
		}
		return nil, entity.NewFailedResult(fmt.Sprintf("get campaign %d failed: %v", campaignID, err))
	}

	if !campaign.GetStatus().CanExecute() {
		return nil, entity.NewFailedResult(fmt.Sprintf("campaign %d is %s, only Draft or Scheduled campaigns can be executed",
			campaignID, campaign.GetStatus()))
	}

	if campaign.GetMailTemplateID() == 0 {
		return nil, entity.NewFailedResult(fmt.Sprintf("campaign %d has no mail template", campaignID))
	}

	tmpl, err := e.templateRepo.GetMailTemplate(ctx, campaign.GetMailTemplateID())
	if err != nil {
		if errors.Is(err, repo.ErrMailTemplateNotFound) {
			return nil, entity.NewFailedResult(fmt.Sprintf("mail template %d of campaign %d not found",
				campaign.GetMailTemplateID(), campaignID))
		}
		return nil, entity.NewFailedResult(fmt.Sprintf("get mail template of campaign %d failed: %v", campaignID, err))
	}

	settings, err := e.settings.Get(ctx)
	if err != nil {
		return nil, entity.NewFailedResult(fmt.Sprintf("get mail settings failed: %v", err))
	}
	if settings.GetFromAddress() == "" {
		return nil, entity.NewFailedResult(fmt.Sprintf("cannot execute campaign %d, the default sender address is not configured", campaignID))
	}

	sender, err := e.rewriter.ResolveSender(tmpl, settings)
	if err != nil {
		return nil, entity.NewFailedResult(fmt.Sprintf("resolve sender of campaign %d failed: %v", campaignID, err))
	}

	return &run{
		campaign: campaign,
		template: tmpl,
		sender:   sender,
		baseURL:  baseURL,
	}, nil
}

func (e *engine) start(ctx context.Context, campaign *entity.Campaign) error {
	now := goutil.Now()

	if campaign.GetStatus() == entity.CampaignStatusDraft {
		campaign.ActualStartTime = goutil.Uint64(now)
	}
	campaign.Status = entity.CampaignStatusRunning
	campaign.UpdateTime = goutil.Uint64(now)

	if err := e.campaignRepo.Update(ctx, campaign); err != nil {
		log.Ctx(ctx).Error().Msgf("set campaign running failed: %v, campaign_id: %d", err, campaign.GetID())
		return err
	}

	return nil
}

// sendAll walks the targets in order and reports whether it stopped because ctx was cancelled.
func (e *engine) sendAll(ctx context.Context, r *run, targets []*entity.CampaignTarget) bool {
	delay := time.Duration(r.campaign.GetSendBatchDelaySeconds()) * time.Second

	for i, target := range targets {
		if ctx.Err() != nil {
			return true
		}

		switch target.GetSendStatus() {
		case entity.SendStatusSent:
			r.sentCount++
			continue
		case entity.SendStatusFailed:
			r.failedCount++
			continue
		}

		if target.GetEmail() == "" {
			log.Ctx(ctx).Warn().Msgf("target has no email, skipped, campaign_id: %d, target_user_id: %d",
				r.campaign.GetID(), target.GetTargetUserID())
			e.markTarget(target, entity.SendStatusFailed, goutil.Now(), msgEmptyEmail)
			r.changed = append(r.changed, target)
			r.failedCount++
			continue
		}

		if !e.sendOne(ctx, r, target) {
			return true
		}

		if delay > 0 && i < len(targets)-1 {
			if !sleep(ctx, delay) {
				return true
			}
		}
	}

	return false
}

// sendOne returns false when the send was interrupted by cancellation and nothing was recorded.
func (e *engine) sendOne(ctx context.Context, r *run, target *entity.CampaignTarget) bool {
	campaignID := r.campaign.GetID()

	body := e.rewriter.Rewrite(ctx, &RewriteRequest{
		Html:         r.template.GetBody(),
		Campaign:     r.campaign,
		TargetUserID: target.GetTargetUserID(),
		BaseURL:      r.baseURL,
	})

	receipt, err := e.transport.Send(ctx, &dep.MailMessage{
		CampaignID:   campaignID,
		TargetUserID: target.GetTargetUserID(),
		From:         r.sender,
		To: &entity.Sender{
			Email: target.GetEmail(),
			Name:  target.TargetUser.GetName(),
		},
		Subject:     r.template.GetSubject(),
		HtmlContent: body,
	})
	if err != nil && ctx.Err() != nil {
		return false
	}

	sendLog := &entity.MailSendLog{
		CampaignID:   goutil.Uint64(campaignID),
		TargetUserID: target.TargetUserID,
		SendTime:     goutil.Uint64(goutil.Now()),
		Status:       entity.SendStatusSent,
	}
	if receipt != nil && receipt.Transport != "" {
		sendLog.SmtpServerUsed = goutil.String(receipt.Transport)
	}

	if err != nil {
		log.Ctx(ctx).Error().Msgf("send mail failed: %v, campaign_id: %d, to: %s",
			err, campaignID, logutil.MaskEmail(target.GetEmail()))
		sendLog.Status = entity.SendStatusFailed
		sendLog.ErrorMessage = goutil.String(goutil.Truncate(err.Error(), maxErrorLength))
		r.failedCount++
	} else {
		log.Ctx(ctx).Info().Msgf("mail sent, campaign_id: %d, to: %s", campaignID, logutil.MaskEmail(target.GetEmail()))
		r.sentCount++
	}

	e.markTarget(target, sendLog.GetStatus(), *sendLog.SendTime, sendLog.GetErrorMessage())

	r.logs = append(r.logs, sendLog)
	r.changed = append(r.changed, target)

	e.publishMailSent(ctx, sendLog)

	return true
}

func (e *engine) markTarget(target *entity.CampaignTarget, status entity.SendStatus, sendTime uint64, errMsg string) {
	target.SendStatus = status
	target.SendTime = goutil.Uint64(sendTime)
	target.ErrorMessage = nil
	if errMsg != "" {
		target.ErrorMessage = goutil.String(errMsg)
	}
}

func (e *engine) persist(ctx context.Context, r *run) error {
	if len(r.logs) == 0 && len(r.changed) == 0 {
		return nil
	}

	return e.txService.RunTx(ctx, func(ctx context.Context) error {
		if err := e.sendLogRepo.CreateMany(ctx, r.logs); err != nil {
			return err
		}
		for _, target := range r.changed {
			if err := e.targetRepo.Update(ctx, target); err != nil {
				return err
			}
		}
		return nil
	})
}

func (e *engine) publishMailSent(ctx context.Context, sendLog *entity.MailSendLog) {
	if e.publisher == nil {
		return
	}

	if err := e.publisher.SendMessage(&mq.Message{
		Payload: mq.PayloadMailSent,
		Key:     strconv.FormatUint(goutil.Uint64Value(sendLog.CampaignID), 10),
		Body:    sendLog,
	}); err != nil && !errors.Is(err, mq.ErrUnsupportedPayload) {
		log.Ctx(ctx).Warn().Msgf("publish mail sent failed: %v", err)
	}
}

// InvocationFunc adapts the engine to scheduled execute_campaign jobs.
func InvocationFunc(e Engine) dep.InvocationFunc {
	return func(ctx context.Context, args json.RawMessage) error {
		a := new(dep.ExecuteCampaignArgs)
		if err := json.Unmarshal(args, a); err != nil {
			return err
		}

		res := e.Execute(ctx, a.CampaignID, a.BaseURL)
		if !res.Success {
			return errors.New(res.Message)
		}

		return nil
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

