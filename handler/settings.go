package handler

import (
	"context"
	"phishsim/dep"
	"phishsim/entity"
	"phishsim/pkg/errutil"
	"phishsim/pkg/goutil"
	"phishsim/pkg/validator"
)

type SettingsHandler interface {
	GetMailSettings(ctx context.Context, req *GetMailSettingsRequest, res *GetMailSettingsResponse) error
	UpdateMailSettings(ctx context.Context, req *UpdateMailSettingsRequest, res *UpdateMailSettingsResponse) error
}

type settingsHandler struct {
	settings dep.SettingsResolver
}

func NewSettingsHandler(settings dep.SettingsResolver) SettingsHandler {
	return &settingsHandler{
		settings: settings,
	}
}

// MailSettings is the operator view of the settings row. The password never leaves the server.
type MailSettings struct {
	Host            string `json:"host"`
	Port            int    `json:"port"`
	EnableSsl       bool   `json:"enable_ssl"`
	Username        string `json:"username"`
	HasPassword     bool   `json:"has_password"`
	FromAddress     string `json:"from_address"`
	FromDisplayName string `json:"from_display_name"`
}

func toMailSettings(settings *entity.MailSettings) *MailSettings {
	return &MailSettings{
		Host:            settings.GetHost(),
		Port:            settings.GetPort(),
		EnableSsl:       settings.GetEnableSsl(),
		Username:        settings.GetUsername(),
		HasPassword:     settings.GetEncryptedPassword() != "",
		FromAddress:     settings.GetFromAddress(),
		FromDisplayName: settings.GetFromDisplayName(),
	}
}

type GetMailSettingsRequest struct{}

type GetMailSettingsResponse struct {
	Settings *MailSettings `json:"settings,omitempty"`
}

func (h *settingsHandler) GetMailSettings(ctx context.Context, _ *GetMailSettingsRequest, res *GetMailSettingsResponse) error {
	settings, err := h.settings.Get(ctx)
	if err != nil {
		return err
	}

	res.Settings = toMailSettings(settings)

	return nil
}

type UpdateMailSettingsRequest struct {
	Host      *string `json:"host,omitempty"`
	Port      *uint32 `json:"port,omitempty"`
	EnableSsl *bool   `json:"enable_ssl,omitempty"`
	Username  *string `json:"username,omitempty"`
	// Password is kept as is when blank
	Password        *string `json:"password,omitempty"`
	FromAddress     *string `json:"from_address,omitempty"`
	FromDisplayName *string `json:"from_display_name,omitempty"`
}

func (r *UpdateMailSettingsRequest) GetPassword() string {
	if r != nil && r.Password != nil {
		return *r.Password
	}
	return ""
}

type UpdateMailSettingsResponse struct {
	Settings *MailSettings `json:"settings,omitempty"`
}

var UpdateMailSettingsValidator = validator.MustForm(map[string]validator.Validator{
	"host":       HostValidator(false),
	"port":       PortValidator(true),
	"enable_ssl": &validator.Bool{Optional: true},
	"username": &validator.String{
		Optional: true,
		MaxLen:   255,
	},
	"password": &validator.String{
		Optional: true,
		MaxLen:   255,
	},
	"from_address":      EmailAddressValidator(false),
	"from_display_name": DisplayNameValidator(true),
})

func (h *settingsHandler) UpdateMailSettings(ctx context.Context, req *UpdateMailSettingsRequest, res *UpdateMailSettingsResponse) error {
	if err := UpdateMailSettingsValidator.Validate(req); err != nil {
		return errutil.ValidationError(err)
	}

	settings := &entity.MailSettings{
		Host:            req.Host,
		EnableSsl:       req.EnableSsl,
		Username:        req.Username,
		FromAddress:     req.FromAddress,
		FromDisplayName: req.FromDisplayName,
	}
	if req.Port != nil {
		settings.Port = goutil.Int(int(*req.Port))
	}

	updated, err := h.settings.Update(ctx, settings, req.GetPassword())
	if err != nil {
		return err
	}

	res.Settings = toMailSettings(updated)

	return nil
}
