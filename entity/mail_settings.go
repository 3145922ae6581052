package entity

import "strings"

// MailSettingsID is the id of the only settings row.
const MailSettingsID uint64 = 1

type TLSMode uint32

const (
	TLSModeNone TLSMode = iota
	TLSModeStartTLS
	TLSModeImplicit
)

type MailSettings struct {
	ID                *uint64 `json:"id,omitempty"`
	Host              *string `json:"host,omitempty"`
	Port              *int    `json:"port,omitempty"`
	EnableSsl         *bool   `json:"enable_ssl,omitempty"`
	Username          *string `json:"username,omitempty"`
	EncryptedPassword *string `json:"-"`
	FromAddress       *string `json:"from_address,omitempty"`
	FromDisplayName   *string `json:"from_display_name,omitempty"`
	UpdateTime        *uint64 `json:"update_time,omitempty"`
}

func (e *MailSettings) GetHost() string {
	if e != nil && e.Host != nil {
		return *e.Host
	}
	return ""
}

func (e *MailSettings) GetPort() int {
	if e != nil && e.Port != nil {
		return *e.Port
	}
	return 0
}

func (e *MailSettings) GetEnableSsl() bool {
	if e != nil && e.EnableSsl != nil {
		return *e.EnableSsl
	}
	return false
}

func (e *MailSettings) GetUsername() string {
	if e != nil && e.Username != nil {
		return *e.Username
	}
	return ""
}

func (e *MailSettings) GetEncryptedPassword() string {
	if e != nil && e.EncryptedPassword != nil {
		return *e.EncryptedPassword
	}
	return ""
}

func (e *MailSettings) GetFromAddress() string {
	if e != nil && e.FromAddress != nil {
		return strings.TrimSpace(*e.FromAddress)
	}
	return ""
}

func (e *MailSettings) GetFromDisplayName() string {
	if e != nil && e.FromDisplayName != nil {
		return *e.FromDisplayName
	}
	return ""
}

// GetTLSMode uses implicit TLS on 465, STARTTLS when ssl is enabled and plain text otherwise.
func (e *MailSettings) GetTLSMode() TLSMode {
	switch {
	case e.GetPort() == 465:
		return TLSModeImplicit
	case e.GetEnableSsl():
		return TLSModeStartTLS
	default:
		return TLSModeNone
	}
}
