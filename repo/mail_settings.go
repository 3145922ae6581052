package repo

import (
	"context"
	"errors"
	"phishsim/entity"
	"phishsim/pkg/errutil"

	"gorm.io/gorm"
)

var (
	ErrMailSettingsNotFound = errutil.NotFoundError(errors.New("mail settings not found"))
)

type MailSettings struct {
	ID                *uint64 `gorm:"primaryKey;autoIncrement:false"`
	Host              *string `gorm:"size:255"`
	Port              *int
	EnableSsl         *bool
	Username          *string `gorm:"size:255"`
	EncryptedPassword *string `gorm:"size:1024"`
	FromAddress       *string `gorm:"size:320"`
	FromDisplayName   *string `gorm:"size:200"`
	UpdateTime        *uint64
}

func (m *MailSettings) TableName() string {
	return "mail_settings_tab"
}

type MailSettingsRepo interface {
	Get(ctx context.Context) (*entity.MailSettings, error)
	Save(ctx context.Context, settings *entity.MailSettings) error
}

type mailSettingsRepo struct {
	baseRepo BaseRepo
}

func NewMailSettingsRepo(_ context.Context, baseRepo BaseRepo) MailSettingsRepo {
	return &mailSettingsRepo{
		baseRepo: baseRepo,
	}
}

func (r *mailSettingsRepo) Get(ctx context.Context) (*entity.MailSettings, error) {
	settings := new(MailSettings)

	if err := r.baseRepo.Get(ctx, settings, idFilter(entity.MailSettingsID)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMailSettingsNotFound
		}
		return nil, err
	}

	return ToMailSettings(settings), nil
}

// Save upserts the single settings row.
func (r *mailSettingsRepo) Save(ctx context.Context, settings *entity.MailSettings) error {
	id := entity.MailSettingsID
	settings.ID = &id
	return r.baseRepo.Save(ctx, ToMailSettingsModel(settings))
}

func ToMailSettings(settings *MailSettings) *entity.MailSettings {
	return &entity.MailSettings{
		ID:                settings.ID,
		Host:              settings.Host,
		Port:              settings.Port,
		EnableSsl:         settings.EnableSsl,
		Username:          settings.Username,
		EncryptedPassword: settings.EncryptedPassword,
		FromAddress:       settings.FromAddress,
		FromDisplayName:   settings.FromDisplayName,
		UpdateTime:        settings.UpdateTime,
	}
}

func ToMailSettingsModel(settings *entity.MailSettings) *MailSettings {
	return &MailSettings{
		ID:                settings.ID,
		Host:              settings.Host,
		Port:              settings.Port,
		EnableSsl:         settings.EnableSsl,
		Username:          settings.Username,
		EncryptedPassword: settings.EncryptedPassword,
		FromAddress:       settings.FromAddress,
		FromDisplayName:   settings.FromDisplayName,
		UpdateTime:        settings.UpdateTime,
	}
}
