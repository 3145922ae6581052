package entity

type CampaignReport struct {
	Campaign *Campaign `json:"campaign,omitempty"`

	TotalTargets uint64 `json:"total_targets"`
	SentCount    uint64 `json:"sent_count"`
	FailedCount  uint64 `json:"failed_count"`

	UniqueOpened    uint64 `json:"unique_opened"`
	UniqueClicked   uint64 `json:"unique_clicked"`
	UniqueSubmitted uint64 `json:"unique_submitted"`
	UniqueReported  uint64 `json:"unique_reported"`

	OpenRate   float64 `json:"open_rate"`
	ClickRate  float64 `json:"click_rate"`
	SubmitRate float64 `json:"submit_rate"`

	Targets []*TargetInteraction `json:"targets,omitempty"`
}

// TargetInteraction holds the first occurrence of each event type for one recipient.
type TargetInteraction struct {
	TargetUserID  uint64     `json:"target_user_id"`
	Email         string     `json:"email"`
	Name          string     `json:"name"`
	SendStatus    SendStatus `json:"send_status"`
	SendTime      *uint64    `json:"send_time,omitempty"`
	OpenedTime    *uint64    `json:"opened_time,omitempty"`
	ClickedTime   *uint64    `json:"clicked_time,omitempty"`
	SubmittedTime *uint64    `json:"submitted_time,omitempty"`
	ReportedTime  *uint64    `json:"reported_time,omitempty"`
}
