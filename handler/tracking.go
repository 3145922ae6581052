package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"phishsim/config"
	"phishsim/engine"
	"phishsim/entity"
	"phishsim/pkg/errutil"
	"phishsim/pkg/goutil"
	"phishsim/pkg/httputil"
	"phishsim/repo"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

const (
	maxEventDetailsLength = 2000

	msgPageNotFound       = "Page not found."
	msgCampaignNotRunning = "This campaign is not currently in progress."

	msgSubmitReceived   = "Your request has been received."
	msgSubmitMissing    = "Submission failed, required information is missing."
	msgSubmitInvalid    = "Submission failed, the request is invalid."
	msgSubmitNotRunning = "This campaign is not currently in progress, the action cannot be completed."
	msgSubmitError      = "An internal error occurred while processing your request."
)

var (
	// form fields that carry attribution, not user input
	submitAttributionFields = []string{"CampaignId", "TargetUserId"}
	// field names containing these are never written to event details
	secretFieldMarkers = []string{"password", "passwd", "pwd"}
)

// TrackingHandler serves the links embedded in sent mails. None of its operations returns an error:
// every outcome maps to a recipient facing redirect, empty response or page.
type TrackingHandler interface {
	TrackOpen(ctx context.Context, req *TrackOpenRequest, res *TrackOpenResponse) error
	TrackClick(ctx context.Context, req *TrackClickRequest, res *TrackClickResponse) error
	TrackLanding(ctx context.Context, req *TrackLandingRequest, res *TrackLandingResponse) error
	TrackSubmit(ctx context.Context, req *TrackSubmitRequest, res *TrackSubmitResponse) error
}

type trackingHandler struct {
	cfg          config.Tracking
	campaignRepo repo.CampaignRepo
	userRepo     repo.TargetUserRepo
	templateRepo repo.TemplateRepo
	recorder     EventRecorder
}

func NewTrackingHandler(cfg config.Tracking, campaignRepo repo.CampaignRepo, userRepo repo.TargetUserRepo,
	templateRepo repo.TemplateRepo, recorder EventRecorder) TrackingHandler {
	return &trackingHandler{
		cfg:          cfg,
		campaignRepo: campaignRepo,
		userRepo:     userRepo,
		templateRepo: templateRepo,
		recorder:     recorder,
	}
}

type TrackOpenRequest struct {
	CampaignID   *string `schema:"c"`
	TargetUserID *string `schema:"t"`
}

type TrackOpenResponse struct{}

func (res *TrackOpenResponse) WriteResponse(w http.ResponseWriter, _ *http.Request) {
	httputil.ReturnNoContent(w)
}

func (h *trackingHandler) TrackOpen(ctx context.Context, req *TrackOpenRequest, _ *TrackOpenResponse) error {
	campaignID, targetUserID, ok := parseTrackingIDs(req.CampaignID, req.TargetUserID)
	if !ok {
		log.Ctx(ctx).Warn().Msgf("open tracking request missing ids, c: %q, t: %q",
			goutil.StringValue(req.CampaignID), goutil.StringValue(req.TargetUserID))
		return nil
	}

	campaign, ok := h.lookup(ctx, campaignID, targetUserID)
	if !ok || !isRunning(ctx, campaign) {
		return nil
	}

	h.record(ctx, &entity.TrackingEvent{
		CampaignID:     goutil.Uint64(campaignID),
		TargetUserID:   goutil.Uint64(targetUserID),
		MailTemplateID: campaign.MailTemplateID,
		EventType:      entity.EventTypeOpened,
		EventDetails:   goutil.String(fmt.Sprintf("UserAgent: %s", httputil.GetRequestMeta(ctx).UserAgent)),
	})

	return nil
}

type TrackClickRequest struct {
	CampaignID   *string `schema:"c"`
	TargetUserID *string `schema:"t"`
	URL          *string `schema:"url"`
}

type TrackClickResponse struct {
	Location string
}

func (res *TrackClickResponse) WriteResponse(w http.ResponseWriter, r *http.Request) {
	httputil.ReturnRedirect(w, r, res.Location)
}

func (h *trackingHandler) TrackClick(ctx context.Context, req *TrackClickRequest, res *TrackClickResponse) error {
	dest, err := decodeDestination(goutil.StringValue(req.URL))
	if err != nil {
		log.Ctx(ctx).Warn().Msgf("click tracking request has invalid url: %v", err)
		res.Location = h.errorRedirectURL()
		return nil
	}
	// from here on the recipient always lands on the original link
	res.Location = dest

	campaignID, targetUserID, ok := parseTrackingIDs(req.CampaignID, req.TargetUserID)
	if !ok {
		log.Ctx(ctx).Warn().Msgf("click tracking request missing ids, c: %q, t: %q",
			goutil.StringValue(req.CampaignID), goutil.StringValue(req.TargetUserID))
		return nil
	}

	campaign, ok := h.lookup(ctx, campaignID, targetUserID)
	if !ok || !isRunning(ctx, campaign) {
		return nil
	}

	h.record(ctx, &entity.TrackingEvent{
		CampaignID:     goutil.Uint64(campaignID),
		TargetUserID:   goutil.Uint64(targetUserID),
		MailTemplateID: campaign.MailTemplateID,
		EventType:      entity.EventTypeClicked,
		EventDetails:   goutil.String(dest),
	})

	return nil
}

type TrackLandingRequest struct {
	CampaignID   *string `schema:"c"`
	TargetUserID *string `schema:"t"`
}

type TrackLandingResponse struct {
	Code int
	Html string
	Text string
}

func (res *TrackLandingResponse) WriteResponse(w http.ResponseWriter, _ *http.Request) {
	if res.Html != "" {
		httputil.ReturnHtml(w, res.Code, res.Html)
		return
	}
	httputil.ReturnText(w, res.Code, res.Text)
}

func (h *trackingHandler) TrackLanding(ctx context.Context, req *TrackLandingRequest, res *TrackLandingResponse) error {
	res.Code, res.Text = http.StatusNotFound, msgPageNotFound

	campaignID, targetUserID, ok := parseTrackingIDs(req.CampaignID, req.TargetUserID)
	if !ok {
		log.Ctx(ctx).Warn().Msgf("landing tracking request missing ids, c: %q, t: %q",
			goutil.StringValue(req.CampaignID), goutil.StringValue(req.TargetUserID))
		return nil
	}

	campaign, ok := h.lookup(ctx, campaignID, targetUserID)
	if !ok {
		return nil
	}

	if !isRunning(ctx, campaign) {
		res.Code, res.Text = http.StatusOK, msgCampaignNotRunning
		return nil
	}

	if !campaign.HasLandingPage() {
		log.Ctx(ctx).Warn().Msgf("campaign has no landing page, campaign_id: %d", campaignID)
		return nil
	}

	page, err := h.templateRepo.GetLandingPage(ctx, campaign.GetLandingPageTemplateID())
	if err != nil {
		log.Ctx(ctx).Error().Msgf("get landing page failed: %v, campaign_id: %d, landing_page_id: %d",
			err, campaignID, campaign.GetLandingPageTemplateID())
		return nil
	}

	h.record(ctx, &entity.TrackingEvent{
		CampaignID:            goutil.Uint64(campaignID),
		TargetUserID:          goutil.Uint64(targetUserID),
		MailTemplateID:        campaign.MailTemplateID,
		LandingPageTemplateID: campaign.LandingPageTemplateID,
		EventType:             entity.EventTypeClicked,
		EventDetails:          goutil.String(fmt.Sprintf("Landing Page Visit (TemplateId: %d)", page.GetID())),
	})

	content, err := engine.RewriteLandingForm(page.GetHtmlContent(), campaignID, targetUserID)
	if err != nil {
		log.Ctx(ctx).Error().Msgf("rewrite landing form failed, serving page as is: %v, landing_page_id: %d", err, page.GetID())
		content = page.GetHtmlContent()
	}

	res.Code, res.Html, res.Text = http.StatusOK, content, ""

	return nil
}

type TrackSubmitRequest struct {
	CampaignID   *string    `schema:"CampaignId"`
	TargetUserID *string    `schema:"TargetUserId"`
	Form         url.Values `schema:"-"`
}

type TrackSubmitResponse struct {
	Message string
}

func (res *TrackSubmitResponse) WriteResponse(w http.ResponseWriter, _ *http.Request) {
	var buf bytes.Buffer
	if err := submitResultTmpl.Execute(&buf, res); err != nil {
		log.Error().Msgf("render submit result failed: %v", err)
		httputil.ReturnText(w, http.StatusOK, res.Message)
		return
	}
	httputil.ReturnHtml(w, http.StatusOK, buf.String())
}

func (h *trackingHandler) TrackSubmit(ctx context.Context, req *TrackSubmitRequest, res *TrackSubmitResponse) error {
	campaignID, targetUserID, ok := parseTrackingIDs(req.CampaignID, req.TargetUserID)
	if !ok {
		log.Ctx(ctx).Warn().Msgf("submit tracking request missing ids, c: %q, t: %q",
			goutil.StringValue(req.CampaignID), goutil.StringValue(req.TargetUserID))
		res.Message = msgSubmitMissing
		return nil
	}

	campaign, ok := h.lookup(ctx, campaignID, targetUserID)
	if !ok {
		res.Message = msgSubmitInvalid
		return nil
	}

	if !isRunning(ctx, campaign) {
		res.Message = msgSubmitNotRunning
		return nil
	}

	if !h.record(ctx, &entity.TrackingEvent{
		CampaignID:            goutil.Uint64(campaignID),
		TargetUserID:          goutil.Uint64(targetUserID),
		MailTemplateID:        campaign.MailTemplateID,
		LandingPageTemplateID: campaign.LandingPageTemplateID,
		EventType:             entity.EventTypeSubmittedData,
		EventDetails:          goutil.String(fmt.Sprintf("Submitted Fields: %s", strings.Join(submittedFields(req.Form), ", "))),
	}) && !httputil.IsThrottled(ctx) {
		res.Message = msgSubmitError
		return nil
	}

	res.Message = msgSubmitReceived

	return nil
}

// lookup reports whether both the campaign and the recipient exist.
func (h *trackingHandler) lookup(ctx context.Context, campaignID, targetUserID uint64) (*entity.Campaign, bool) {
	campaign, err := h.campaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		logLookupError(ctx, err, "campaign", campaignID)
		return nil, false
	}

	if _, err := h.userRepo.GetByID(ctx, targetUserID); err != nil {
		logLookupError(ctx, err, "target user", targetUserID)
		return nil, false
	}

	return campaign, true
}

// record never fails the request, it only reports whether the event was stored.
// Throttled requests are answered as usual but leave no event.
func (h *trackingHandler) record(ctx context.Context, event *entity.TrackingEvent) bool {
	if httputil.IsThrottled(ctx) {
		log.Ctx(ctx).Warn().Msgf("tracking event dropped by rate limit, campaign_id: %d, target_user_id: %d, type: %s",
			event.GetCampaignID(), event.GetTargetUserID(), event.GetEventType())
		return false
	}

	event.EventTime = goutil.Uint64(goutil.Now())
	if details := event.GetEventDetails(); len(details) > maxEventDetailsLength {
		event.EventDetails = goutil.String(goutil.Truncate(details, maxEventDetailsLength))
	}

	if err := h.recorder.Record(ctx, event); err != nil {
		log.Ctx(ctx).Error().Msgf("record tracking event failed: %v, campaign_id: %d, target_user_id: %d, type: %s",
			err, event.GetCampaignID(), event.GetTargetUserID(), event.GetEventType())
		return false
	}

	log.Ctx(ctx).Info().Msgf("tracking event recorded, campaign_id: %d, target_user_id: %d, type: %s",
		event.GetCampaignID(), event.GetTargetUserID(), event.GetEventType())

	return true
}

func (h *trackingHandler) errorRedirectURL() string {
	if h.cfg.ErrorRedirectURL == "" {
		return "/Error"
	}
	return h.cfg.ErrorRedirectURL
}

func isRunning(ctx context.Context, campaign *entity.Campaign) bool {
	if campaign.GetStatus() != entity.CampaignStatusRunning {
		log.Ctx(ctx).Info().Msgf("tracking event ignored, campaign_id: %d, status: %s",
			campaign.GetID(), campaign.GetStatus())
		return false
	}
	return true
}

func logLookupError(ctx context.Context, err error, kind string, id uint64) {
	if errutil.IsNotFound(err) {
		log.Ctx(ctx).Warn().Msgf("tracking request refers to unknown %s %d", kind, id)
		return
	}
	log.Ctx(ctx).Error().Msgf("get %s %d failed: %v", kind, id, err)
}

func parseTrackingIDs(campaignID, targetUserID *string) (uint64, uint64, bool) {
	c, ok := parseID(campaignID)
	if !ok {
		return 0, 0, false
	}
	t, ok := parseID(targetUserID)
	if !ok {
		return 0, 0, false
	}
	return c, t, true
}

func parseID(s *string) (uint64, bool) {
	if s == nil {
		return 0, false
	}
	id, err := strconv.ParseUint(strings.TrimSpace(*s), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

func decodeDestination(encoded string) (string, error) {
	if strings.TrimSpace(encoded) == "" {
		return "", errors.New("empty url")
	}

	dest, err := goutil.Base64URLDecode(strings.TrimSpace(encoded))
	if err != nil {
		return "", err
	}

	if !engine.IsAbsoluteHttpURL(dest) {
		return "", errors.New("not an absolute http url")
	}

	return dest, nil
}

func submittedFields(form url.Values) []string {
	fields := make([]string, 0, len(form))
	for name := range form {
		if goutil.ContainsStr(submitAttributionFields, name) || isSecretField(name) {
			continue
		}
		fields = append(fields, name)
	}
	sort.Strings(fields)
	return fields
}

func isSecretField(name string) bool {
	lower := strings.ToLower(name)
	for _, marker := range secretFieldMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
