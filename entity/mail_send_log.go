package entity

type MailSendLog struct {
	ID             *uint64    `json:"id,omitempty"`
	CampaignID     *uint64    `json:"campaign_id,omitempty"`
	TargetUserID   *uint64    `json:"target_user_id,omitempty"`
	SendTime       *uint64    `json:"send_time,omitempty"`
	Status         SendStatus `json:"status,omitempty"`
	SmtpServerUsed *string    `json:"smtp_server_used,omitempty"`
	ErrorMessage   *string    `json:"error_message,omitempty"`
}

func (e *MailSendLog) GetTargetUserID() uint64 {
	if e != nil && e.TargetUserID != nil {
		return *e.TargetUserID
	}
	return 0
}

func (e *MailSendLog) GetStatus() SendStatus {
	if e != nil {
		return e.Status
	}
	return SendStatusUnknown
}

func (e *MailSendLog) GetCampaignID() uint64 {
	if e != nil && e.CampaignID != nil {
		return *e.CampaignID
	}
	return 0
}

func (e *MailSendLog) GetSmtpServerUsed() string {
	if e != nil && e.SmtpServerUsed != nil {
		return *e.SmtpServerUsed
	}
	return ""
}

func (e *MailSendLog) GetErrorMessage() string {
	if e != nil && e.ErrorMessage != nil {
		return *e.ErrorMessage
	}
	return ""
}
