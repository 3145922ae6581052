package entity

type SendStatus uint32

const (
	SendStatusUnknown SendStatus = iota
	SendStatusPending
	SendStatusSent
	SendStatusFailed
	SendStatusBounced
)

var SendStatuses = map[SendStatus]string{
	SendStatusPending: "Pending",
	SendStatusSent:    "Sent",
	SendStatusFailed:  "Failed",
	SendStatusBounced: "Bounced",
}

func (s SendStatus) String() string {
	if name, ok := SendStatuses[s]; ok {
		return name
	}
	return "Unknown"
}

// IsTerminal reports whether a target must never be sent to again.
func (s SendStatus) IsTerminal() bool {
	return s == SendStatusSent || s == SendStatusFailed
}

type CampaignTarget struct {
	CampaignID   *uint64    `json:"campaign_id,omitempty"`
	TargetUserID *uint64    `json:"target_user_id,omitempty"`
	SendStatus   SendStatus `json:"send_status,omitempty"`
	SendTime     *uint64    `json:"send_time,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`

	TargetUser *TargetUser `json:"target_user,omitempty"`
}

func (e *CampaignTarget) GetCampaignID() uint64 {
	if e != nil && e.CampaignID != nil {
		return *e.CampaignID
	}
	return 0
}

func (e *CampaignTarget) GetTargetUserID() uint64 {
	if e != nil && e.TargetUserID != nil {
		return *e.TargetUserID
	}
	return 0
}

func (e *CampaignTarget) GetSendStatus() SendStatus {
	if e != nil {
		return e.SendStatus
	}
	return SendStatusUnknown
}

func (e *CampaignTarget) GetSendTime() uint64 {
	if e != nil && e.SendTime != nil {
		return *e.SendTime
	}
	return 0
}

func (e *CampaignTarget) GetErrorMessage() string {
	if e != nil && e.ErrorMessage != nil {
		return *e.ErrorMessage
	}
	return ""
}

func (e *CampaignTarget) GetEmail() string {
	if e != nil {
		return e.TargetUser.GetEmail()
	}
	return ""
}
