package entity

type EventType uint32

const (
	EventTypeUnknown EventType = iota
	EventTypeOpened
	EventTypeClicked
	EventTypeSubmittedData
	EventTypeReportedPhish
)

var EventTypes = map[EventType]string{
	EventTypeOpened:        "Opened",
	EventTypeClicked:       "Clicked",
	EventTypeSubmittedData: "SubmittedData",
	EventTypeReportedPhish: "ReportedPhish",
}

func (t EventType) String() string {
	if name, ok := EventTypes[t]; ok {
		return name
	}
	return "Unknown"
}

type TrackingEvent struct {
	ID                    *uint64   `json:"id,omitempty"`
	CampaignID            *uint64   `json:"campaign_id,omitempty"`
	TargetUserID          *uint64   `json:"target_user_id,omitempty"`
	MailTemplateID        *uint64   `json:"mail_template_id,omitempty"`
	LandingPageTemplateID *uint64   `json:"landing_page_template_id,omitempty"`
	EventTime             *uint64   `json:"event_time,omitempty"`
	EventType             EventType `json:"event_type,omitempty"`
	EventDetails          *string   `json:"event_details,omitempty"`
}

func (e *TrackingEvent) GetCampaignID() uint64 {
	if e != nil && e.CampaignID != nil {
		return *e.CampaignID
	}
	return 0
}

func (e *TrackingEvent) GetTargetUserID() uint64 {
	if e != nil && e.TargetUserID != nil {
		return *e.TargetUserID
	}
	return 0
}

func (e *TrackingEvent) GetEventTime() uint64 {
	if e != nil && e.EventTime != nil {
		return *e.EventTime
	}
	return 0
}

func (e *TrackingEvent) GetEventType() EventType {
	if e != nil {
		return e.EventType
	}
	return EventTypeUnknown
}

func (e *TrackingEvent) GetEventDetails() string {
	if e != nil && e.EventDetails != nil {
		return *e.EventDetails
	}
	return ""
}
