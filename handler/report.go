package handler

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"phishsim/entity"
	"phishsim/pkg/errutil"
	"phishsim/pkg/goutil"
	"phishsim/pkg/httputil"
	"phishsim/pkg/validator"
	"phishsim/repo"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

var reportCsvHeader = []string{"Email", "Name", "SendStatus", "SendTime", "OpenedTime", "ClickedTime", "SubmittedTime", "ReportedTime"}

type ReportHandler interface {
	GetCampaignReport(ctx context.Context, req *GetCampaignReportRequest, res *GetCampaignReportResponse) error
	ExportCampaignReport(ctx context.Context, req *ExportCampaignReportRequest, res *ExportCampaignReportResponse) error
}

type reportHandler struct {
	campaignRepo repo.CampaignRepo
	targetRepo   repo.CampaignTargetRepo
	userRepo     repo.TargetUserRepo
	eventRepo    repo.TrackingEventRepo
}

func NewReportHandler(campaignRepo repo.CampaignRepo, targetRepo repo.CampaignTargetRepo, userRepo repo.TargetUserRepo,
	eventRepo repo.TrackingEventRepo) ReportHandler {
	return &reportHandler{
		campaignRepo: campaignRepo,
		targetRepo:   targetRepo,
		userRepo:     userRepo,
		eventRepo:    eventRepo,
	}
}

type GetCampaignReportRequest struct {
	CampaignID *uint64 `json:"campaign_id,omitempty" schema:"campaign_id"`
}

func (r *GetCampaignReportRequest) GetCampaignID() uint64 {
	if r != nil && r.CampaignID != nil {
		return *r.CampaignID
	}
	return 0
}

type GetCampaignReportResponse struct {
	Report *entity.CampaignReport `json:"report,omitempty"`
}

var GetCampaignReportValidator = validator.MustForm(map[string]validator.Validator{
	"campaign_id": CampaignIDValidator(),
})

func (h *reportHandler) GetCampaignReport(ctx context.Context, req *GetCampaignReportRequest, res *GetCampaignReportResponse) error {
	if err := GetCampaignReportValidator.Validate(req); err != nil {
		return errutil.ValidationError(err)
	}

	report, err := h.buildReport(ctx, req.GetCampaignID())
	if err != nil {
		return err
	}

	res.Report = report

	return nil
}

type ExportCampaignReportRequest struct {
	CampaignID *uint64 `json:"campaign_id,omitempty" schema:"campaign_id"`
}

func (r *ExportCampaignReportRequest) GetCampaignID() uint64 {
	if r != nil && r.CampaignID != nil {
		return *r.CampaignID
	}
	return 0
}

type ExportCampaignReportResponse struct {
	FileName string
	Content  []byte
}

func (res *ExportCampaignReportResponse) WriteResponse(w http.ResponseWriter, _ *http.Request) {
	httputil.ReturnFile(w, "text/csv; charset=utf-8", res.FileName, res.Content)
}

var ExportCampaignReportValidator = validator.MustForm(map[string]validator.Validator{
	"campaign_id": CampaignIDValidator(),
})

func (h *reportHandler) ExportCampaignReport(ctx context.Context, req *ExportCampaignReportRequest, res *ExportCampaignReportResponse) error {
	if err := ExportCampaignReportValidator.Validate(req); err != nil {
		return errutil.ValidationError(err)
	}

	report, err := h.buildReport(ctx, req.GetCampaignID())
	if err != nil {
		return err
	}

	content, err := writeReportCsv(report)
	if err != nil {
		log.Ctx(ctx).Error().Msgf("write report csv failed: %v, campaign_id: %d", err, req.GetCampaignID())
		return err
	}

	res.FileName = fmt.Sprintf("campaign_%d_report.csv", req.GetCampaignID())
	res.Content = content

	return nil
}

func (h *reportHandler) buildReport(ctx context.Context, campaignID uint64) (*entity.CampaignReport, error) {
	campaign, err := h.campaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		log.Ctx(ctx).Error().Msgf("get campaign failed: %v, campaign_id: %d", err, campaignID)
		return nil, err
	}

	targets, err := h.targetRepo.GetByCampaignID(ctx, campaignID)
	if err != nil {
		log.Ctx(ctx).Error().Msgf("get campaign targets failed: %v, campaign_id: %d", err, campaignID)
		return nil, err
	}

	userIDs := make([]uint64, len(targets))
	for i, target := range targets {
		userIDs[i] = target.GetTargetUserID()
	}

	users, err := h.userRepo.GetByIDs(ctx, userIDs)
	if err != nil {
		log.Ctx(ctx).Error().Msgf("get target users failed: %v, campaign_id: %d", err, campaignID)
		return nil, err
	}

	events, err := h.eventRepo.GetByCampaignID(ctx, campaignID)
	if err != nil {
		log.Ctx(ctx).Error().Msgf("get tracking events failed: %v, campaign_id: %d", err, campaignID)
		return nil, err
	}

	return newCampaignReport(campaign, targets, users, events), nil
}

// newCampaignReport expects events in the order they happened.
func newCampaignReport(campaign *entity.Campaign, targets []*entity.CampaignTarget, users []*entity.TargetUser,
	events []*entity.TrackingEvent) *entity.CampaignReport {
	report := &entity.CampaignReport{
		Campaign:     campaign,
		TotalTargets: uint64(len(targets)),
		Targets:      make([]*entity.TargetInteraction, 0, len(targets)),
	}

	userByID := make(map[uint64]*entity.TargetUser, len(users))
	for _, user := range users {
		userByID[user.GetID()] = user
	}

	// first occurrence per event type per recipient
	firstSeen := make(map[entity.EventType]map[uint64]uint64)
	for _, event := range events {
		seen, ok := firstSeen[event.GetEventType()]
		if !ok {
			seen = make(map[uint64]uint64)
			firstSeen[event.GetEventType()] = seen
		}
		if _, ok := seen[event.GetTargetUserID()]; !ok {
			seen[event.GetTargetUserID()] = event.GetEventTime()
		}
	}

	firstTime := func(eventType entity.EventType, targetUserID uint64) *uint64 {
		if t, ok := firstSeen[eventType][targetUserID]; ok {
			return goutil.Uint64(t)
		}
		return nil
	}

	for _, target := range targets {
		switch target.GetSendStatus() {
		case entity.SendStatusSent:
			report.SentCount++
		case entity.SendStatusFailed:
			report.FailedCount++
		}

		user := userByID[target.GetTargetUserID()]
		row := &entity.TargetInteraction{
			TargetUserID:  target.GetTargetUserID(),
			Email:         user.GetEmail(),
			Name:          user.GetName(),
			SendStatus:    target.GetSendStatus(),
			SendTime:      target.SendTime,
			OpenedTime:    firstTime(entity.EventTypeOpened, target.GetTargetUserID()),
			ClickedTime:   firstTime(entity.EventTypeClicked, target.GetTargetUserID()),
			SubmittedTime: firstTime(entity.EventTypeSubmittedData, target.GetTargetUserID()),
			ReportedTime:  firstTime(entity.EventTypeReportedPhish, target.GetTargetUserID()),
		}
		report.Targets = append(report.Targets, row)

		// events of users outside the target list are not counted
		report.UniqueOpened += countSeen(row.OpenedTime)
		report.UniqueClicked += countSeen(row.ClickedTime)
		report.UniqueSubmitted += countSeen(row.SubmittedTime)
		report.UniqueReported += countSeen(row.ReportedTime)
	}

	if report.SentCount > 0 {
		sent := float64(report.SentCount)
		report.OpenRate = float64(report.UniqueOpened) / sent
		report.ClickRate = float64(report.UniqueClicked) / sent
		report.SubmitRate = float64(report.UniqueSubmitted) / sent
	}

	sort.SliceStable(report.Targets, func(i, j int) bool {
		a, b := strings.ToLower(report.Targets[i].Email), strings.ToLower(report.Targets[j].Email)
		if a != b {
			return a < b
		}
		return report.Targets[i].TargetUserID < report.Targets[j].TargetUserID
	})

	return report
}

func countSeen(ts *uint64) uint64 {
	if ts == nil {
		return 0
	}
	return 1
}

func writeReportCsv(report *entity.CampaignReport) ([]byte, error) {
	var buf bytes.Buffer

	w := csv.NewWriter(&buf)
	if err := w.Write(reportCsvHeader); err != nil {
		return nil, err
	}

	for _, row := range report.Targets {
		if err := w.Write([]string{
			csvSafe(row.Email),
			csvSafe(row.Name),
			row.SendStatus.String(),
			formatReportTime(row.SendTime),
			formatReportTime(row.OpenedTime),
			formatReportTime(row.ClickedTime),
			formatReportTime(row.SubmittedTime),
			formatReportTime(row.ReportedTime),
		}); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// csvSafe keeps spreadsheet apps from evaluating a cell as a formula.
func csvSafe(s string) string {
	if s == "" {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + s
	}
	return s
}

func formatReportTime(ts *uint64) string {
	if ts == nil || *ts == 0 {
		return ""
	}
	return goutil.UnixToTime(*ts).Format(time.RFC3339)
}
