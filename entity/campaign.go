package entity

import (
	"phishsim/pkg/goutil"
	"strings"
)

type CampaignStatus uint32

const (
	CampaignStatusUnknown CampaignStatus = iota
	CampaignStatusDraft
	CampaignStatusScheduled
	CampaignStatusRunning
	CampaignStatusCompleted
	CampaignStatusCancelled
)

var CampaignStatuses = map[CampaignStatus]string{
	CampaignStatusDraft:     "Draft",
	CampaignStatusScheduled: "Scheduled",
	CampaignStatusRunning:   "Running",
	CampaignStatusCompleted: "Completed",
	CampaignStatusCancelled: "Cancelled",
}

func (s CampaignStatus) String() string {
	if name, ok := CampaignStatuses[s]; ok {
		return name
	}
	return "Unknown"
}

// CanExecute reports whether a run may move the campaign into Running.
func (s CampaignStatus) CanExecute() bool {
	return s == CampaignStatusDraft || s == CampaignStatusScheduled
}

type TargetSourceKind uint32

const (
	TargetSourceManual TargetSourceKind = iota
	TargetSourceGroup
)

// TargetSource tells where the recipients of a run come from.
type TargetSource struct {
	Kind    TargetSourceKind
	GroupID uint64
}

func (s TargetSource) IsGroup() bool {
	return s.Kind == TargetSourceGroup
}

type Campaign struct {
	ID                    *uint64        `json:"id,omitempty"`
	Name                  *string        `json:"name,omitempty"`
	CampaignDesc          *string        `json:"campaign_desc,omitempty"`
	MailTemplateID        *uint64        `json:"mail_template_id,omitempty"`
	LandingPageTemplateID *uint64        `json:"landing_page_template_id,omitempty"`
	TargetGroupID         *uint64        `json:"target_group_id,omitempty"`
	ScheduledSendTime     *uint64        `json:"scheduled_send_time,omitempty"`
	ActualStartTime       *uint64        `json:"actual_start_time,omitempty"`
	EndTime               *uint64        `json:"end_time,omitempty"`
	Status                CampaignStatus `json:"status,omitempty"`
	IsAutoSend            *bool          `json:"is_auto_send,omitempty"`
	SendBatchDelaySeconds *uint32        `json:"send_batch_delay_seconds,omitempty"`
	TrackOpens            *bool          `json:"track_opens,omitempty"`
	JobID                 *string        `json:"job_id,omitempty"`
	CreatorID             *uint64        `json:"creator_id,omitempty"`
	CreateTime            *uint64        `json:"create_time,omitempty"`
	UpdateTime            *uint64        `json:"update_time,omitempty"`
}

func (e *Campaign) GetID() uint64 {
	if e != nil && e.ID != nil {
		return *e.ID
	}
	return 0
}

func (e *Campaign) GetName() string {
	if e != nil && e.Name != nil {
		return *e.Name
	}
	return ""
}

func (e *Campaign) GetMailTemplateID() uint64 {
	if e != nil && e.MailTemplateID != nil {
		return *e.MailTemplateID
	}
	return 0
}

func (e *Campaign) GetLandingPageTemplateID() uint64 {
	if e != nil && e.LandingPageTemplateID != nil {
		return *e.LandingPageTemplateID
	}
	return 0
}

func (e *Campaign) HasLandingPage() bool {
	return e.GetLandingPageTemplateID() > 0
}

func (e *Campaign) GetTargetGroupID() uint64 {
	if e != nil && e.TargetGroupID != nil {
		return *e.TargetGroupID
	}
	return 0
}

func (e *Campaign) GetTargetSource() TargetSource {
	if groupID := e.GetTargetGroupID(); groupID > 0 {
		return TargetSource{Kind: TargetSourceGroup, GroupID: groupID}
	}
	return TargetSource{Kind: TargetSourceManual}
}

func (e *Campaign) GetScheduledSendTime() uint64 {
	if e != nil && e.ScheduledSendTime != nil {
		return *e.ScheduledSendTime
	}
	return 0
}

func (e *Campaign) GetActualStartTime() uint64 {
	if e != nil && e.ActualStartTime != nil {
		return *e.ActualStartTime
	}
	return 0
}

func (e *Campaign) GetEndTime() uint64 {
	if e != nil && e.EndTime != nil {
		return *e.EndTime
	}
	return 0
}

func (e *Campaign) GetStatus() CampaignStatus {
	if e != nil {
		return e.Status
	}
	return CampaignStatusUnknown
}

func (e *Campaign) GetIsAutoSend() bool {
	if e != nil && e.IsAutoSend != nil {
		return *e.IsAutoSend
	}
	return false
}

func (e *Campaign) GetSendBatchDelaySeconds() uint32 {
	if e != nil && e.SendBatchDelaySeconds != nil {
		return *e.SendBatchDelaySeconds
	}
	return 0
}

// GetTrackOpens defaults to true when unset.
func (e *Campaign) GetTrackOpens() bool {
	if e != nil && e.TrackOpens != nil {
		return *e.TrackOpens
	}
	return true
}

func (e *Campaign) GetJobID() string {
	if e != nil && e.JobID != nil {
		return *e.JobID
	}
	return ""
}

func (e *Campaign) HasJob() bool {
	return strings.TrimSpace(e.GetJobID()) != ""
}

func (e *Campaign) Update(c *Campaign) bool {
	var hasChange bool

	if c.Name != nil && c.GetName() != e.GetName() {
		hasChange = true
		e.Name = c.Name
	}

	if c.Status != CampaignStatusUnknown && c.Status != e.Status {
		hasChange = true
		e.Status = c.Status
	}

	if c.ScheduledSendTime != nil && c.GetScheduledSendTime() != e.GetScheduledSendTime() {
		hasChange = true
		e.ScheduledSendTime = c.ScheduledSendTime
	}

	if c.ActualStartTime != nil && c.GetActualStartTime() != e.GetActualStartTime() {
		hasChange = true
		e.ActualStartTime = c.ActualStartTime
	}

	if c.EndTime != nil && c.GetEndTime() != e.GetEndTime() {
		hasChange = true
		e.EndTime = c.EndTime
	}

	if c.IsAutoSend != nil && c.GetIsAutoSend() != e.GetIsAutoSend() {
		hasChange = true
		e.IsAutoSend = c.IsAutoSend
	}

	if c.JobID != nil && c.GetJobID() != e.GetJobID() {
		hasChange = true
		e.JobID = c.JobID
	}

	if hasChange {
		e.UpdateTime = goutil.Uint64(goutil.Now())
	}

	return hasChange
}
