package dep

import (
	"context"
	"errors"
	"phishsim/config"
	"phishsim/entity"
	"phishsim/pkg/errutil"
	"phishsim/pkg/goutil"
	"phishsim/pkg/secret"
	"phishsim/repo"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const mailSettingsCachePrefix = "mail_settings"

type SettingsResolver interface {
	// Get returns the current outbound settings, or the configured defaults when none are stored.
	Get(ctx context.Context) (*entity.MailSettings, error)
	// Update stores settings. The password is sealed and replaced only when plainPassword is not blank.
	Update(ctx context.Context, settings *entity.MailSettings, plainPassword string) (*entity.MailSettings, error)
}

type settingsResolver struct {
	settingsRepo repo.MailSettingsRepo
	cache        repo.BaseCache
	box          secret.Box
	defaults     config.MailSender
	group        singleflight.Group
}

func NewSettingsResolver(_ context.Context, settingsRepo repo.MailSettingsRepo, cache repo.BaseCache,
	box secret.Box, defaults config.MailSender) SettingsResolver {
	return &settingsResolver{
		settingsRepo: settingsRepo,
		cache:        cache,
		box:          box,
		defaults:     defaults,
	}
}

func (r *settingsResolver) Get(ctx context.Context) (*entity.MailSettings, error) {
	if v, ok := r.cache.Get(ctx, mailSettingsCachePrefix, entity.MailSettingsID); ok {
		return copySettings(v.(*entity.MailSettings)), nil
	}

	v, err, _ := r.group.Do(mailSettingsCachePrefix, func() (interface{}, error) {
		settings, err := r.settingsRepo.Get(ctx)
		if err != nil {
			if !errors.Is(err, repo.ErrMailSettingsNotFound) {
				return nil, err
			}
			settings = r.defaultSettings()
		}

		r.cache.Set(ctx, mailSettingsCachePrefix, entity.MailSettingsID, settings)

		return settings, nil
	})
	if err != nil {
		log.Ctx(ctx).Error().Msgf("get mail settings failed: %v", err)
		return nil, err
	}

	return copySettings(v.(*entity.MailSettings)), nil
}

func (r *settingsResolver) Update(ctx context.Context, settings *entity.MailSettings, plainPassword string) (*entity.MailSettings, error) {
	current, err := r.Get(ctx)
	if err != nil {
		return nil, err
	}

	next := &entity.MailSettings{
		Host:              goutil.String(strings.TrimSpace(settings.GetHost())),
		Port:              settings.Port,
		EnableSsl:         settings.EnableSsl,
		Username:          settings.Username,
		EncryptedPassword: current.EncryptedPassword,
		FromAddress:       goutil.String(settings.GetFromAddress()),
		FromDisplayName:   settings.FromDisplayName,
		UpdateTime:        goutil.Uint64(goutil.Now()),
	}
	if next.Port == nil {
		next.Port = current.Port
	}
	if next.EnableSsl == nil {
		next.EnableSsl = current.EnableSsl
	}

	if strings.TrimSpace(plainPassword) != "" {
		if r.box == nil {
			return nil, errutil.ValidationError(errors.New("secret key is not configured, cannot store password"))
		}
		sealed, err := r.box.Seal(plainPassword)
		if err != nil {
			return nil, err
		}
		next.EncryptedPassword = goutil.String(sealed)
	}

	if err := r.settingsRepo.Save(ctx, next); err != nil {
		log.Ctx(ctx).Error().Msgf("save mail settings failed: %v", err)
		return nil, err
	}

	r.cache.Del(ctx, mailSettingsCachePrefix, entity.MailSettingsID)

	return copySettings(next), nil
}

func (r *settingsResolver) defaultSettings() *entity.MailSettings {
	return &entity.MailSettings{
		ID:              goutil.Uint64(entity.MailSettingsID),
		Port:            goutil.Int(r.defaults.Port),
		EnableSsl:       goutil.Bool(r.defaults.EnableSsl),
		FromAddress:     goutil.String(r.defaults.FromAddress),
		FromDisplayName: goutil.String(r.defaults.FromDisplayName),
	}
}

func copySettings(s *entity.MailSettings) *entity.MailSettings {
	cp := *s
	return &cp
}
