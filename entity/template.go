package entity

type MailTemplate struct {
	ID                    *uint64 `json:"id,omitempty"`
	Name                  *string `json:"name,omitempty"`
	Subject               *string `json:"subject,omitempty"`
	Body                  *string `json:"body,omitempty"`
	Language              *string `json:"language,omitempty"`
	CategoryID            *uint64 `json:"category_id,omitempty"`
	CustomFromAddress     *string `json:"custom_from_address,omitempty"`
	CustomFromDisplayName *string `json:"custom_from_display_name,omitempty"`
	CreateTime            *uint64 `json:"create_time,omitempty"`
	UpdateTime            *uint64 `json:"update_time,omitempty"`
}

func (e *MailTemplate) GetID() uint64 {
	if e != nil && e.ID != nil {
		return *e.ID
	}
	return 0
}

func (e *MailTemplate) GetSubject() string {
	if e != nil && e.Subject != nil {
		return *e.Subject
	}
	return ""
}

func (e *MailTemplate) GetBody() string {
	if e != nil && e.Body != nil {
		return *e.Body
	}
	return ""
}

func (e *MailTemplate) GetCustomFromAddress() string {
	if e != nil && e.CustomFromAddress != nil {
		return *e.CustomFromAddress
	}
	return ""
}

func (e *MailTemplate) GetCustomFromDisplayName() string {
	if e != nil && e.CustomFromDisplayName != nil {
		return *e.CustomFromDisplayName
	}
	return ""
}

type LandingPageTemplate struct {
	ID                  *uint64 `json:"id,omitempty"`
	Name                *string `json:"name,omitempty"`
	HtmlContent         *string `json:"html_content,omitempty"`
	CollectFieldsConfig *string `json:"collect_fields_config,omitempty"`
	CreateTime          *uint64 `json:"create_time,omitempty"`
	UpdateTime          *uint64 `json:"update_time,omitempty"`
}

func (e *LandingPageTemplate) GetID() uint64 {
	if e != nil && e.ID != nil {
		return *e.ID
	}
	return 0
}

func (e *LandingPageTemplate) GetHtmlContent() string {
	if e != nil && e.HtmlContent != nil {
		return *e.HtmlContent
	}
	return ""
}
