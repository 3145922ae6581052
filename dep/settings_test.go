package dep

import (
	"context"
	"errors"
	"phishsim/config"
	"phishsim/entity"
	"phishsim/pkg/goutil"
	"phishsim/pkg/secret"
	"phishsim/repo"
	"sync"
	"testing"
	"time"
)

type fakeSettingsRepo struct {
	mu       sync.Mutex
	settings *entity.MailSettings
	gets     int
}

func (f *fakeSettingsRepo) Get(_ context.Context) (*entity.MailSettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.gets++
	if f.settings == nil {
		return nil, repo.ErrMailSettingsNotFound
	}
	cp := *f.settings
	return &cp, nil
}

func (f *fakeSettingsRepo) Save(_ context.Context, settings *entity.MailSettings) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	cp := *settings
	f.settings = &cp
	return nil
}

func newTestResolver(t *testing.T) (SettingsResolver, *fakeSettingsRepo, secret.Box) {
	t.Helper()

	box, err := secret.NewBox("test-key")
	if err != nil {
		t.Fatalf("NewBox() err = %v", err)
	}

	settingsRepo := new(fakeSettingsRepo)
	resolver := NewSettingsResolver(context.Background(), settingsRepo, repo.NewBaseCache(context.Background(), time.Minute),
		box, config.NewConfig().Defaults)

	return resolver, settingsRepo, box
}

func TestSettingsResolverDefaults(t *testing.T) {
	resolver, settingsRepo, _ := newTestResolver(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		settings, err := resolver.Get(ctx)
		if err != nil {
			t.Fatalf("Get() err = %v", err)
		}
		if settings.GetPort() != 587 || !settings.GetEnableSsl() || settings.GetFromAddress() != "noreply@example.com" {
			t.Fatalf("Get() = %+v, want defaults", settings)
		}
		if settings.GetTLSMode() != entity.TLSModeStartTLS {
			t.Errorf("GetTLSMode() = %v, want STARTTLS", settings.GetTLSMode())
		}
	}

	if settingsRepo.gets != 1 {
		t.Errorf("repo read %d times, want 1 (cached)", settingsRepo.gets)
	}
}

func TestSettingsResolverUpdate(t *testing.T) {
	resolver, settingsRepo, box := newTestResolver(t)
	ctx := context.Background()

	if _, err := resolver.Update(ctx, &entity.MailSettings{
		Host:        goutil.String(" smtp.corp.example "),
		Port:        goutil.Int(465),
		Username:    goutil.String("mailer"),
		FromAddress: goutil.String("it@corp.example"),
	}, "hunter2"); err != nil {
		t.Fatalf("Update() err = %v", err)
	}

	settings, err := resolver.Get(ctx)
	if err != nil {
		t.Fatalf("Get() err = %v", err)
	}
	if settings.GetHost() != "smtp.corp.example" || settings.GetTLSMode() != entity.TLSModeImplicit {
		t.Errorf("Get() after Update() = %+v", settings)
	}
	if settings.GetEncryptedPassword() == "hunter2" {
		t.Fatal("password stored in clear")
	}
	if plain, err := box.Open(settingsRepo.settings.GetEncryptedPassword()); err != nil || plain != "hunter2" {
		t.Errorf("Open() = %q, %v", plain, err)
	}

	sealed := settings.GetEncryptedPassword()
	if _, err := resolver.Update(ctx, &entity.MailSettings{
		Host:        goutil.String("smtp.corp.example"),
		FromAddress: goutil.String("it@corp.example"),
	}, "   "); err != nil {
		t.Fatalf("Update() err = %v", err)
	}

	settings, err = resolver.Get(ctx)
	if err != nil {
		t.Fatalf("Get() err = %v", err)
	}
	if settings.GetEncryptedPassword() != sealed {
		t.Error("blank password replaced the stored secret")
	}
	if settings.GetPort() != 465 {
		t.Errorf("unset port changed to %d", settings.GetPort())
	}
}

func TestSmtpTransportOpenPassword(t *testing.T) {
	_, _, box := newTestResolver(t)
	transport := NewSmtpTransport(context.Background(), nil, box, time.Second).(*smtpTransport)

	sealed, err := box.Seal("s3cret")
	if err != nil {
		t.Fatalf("Seal() err = %v", err)
	}

	if got := transport.openPassword(context.Background(), &entity.MailSettings{EncryptedPassword: goutil.String(sealed)}); got != "s3cret" {
		t.Errorf("openPassword() = %q", got)
	}
	if got := transport.openPassword(context.Background(), &entity.MailSettings{EncryptedPassword: goutil.String("garbage")}); got != "" {
		t.Errorf("openPassword() of a broken secret = %q, want empty", got)
	}
}

type errSettingsRepo struct{}

func (errSettingsRepo) Get(context.Context) (*entity.MailSettings, error) {
	return nil, errors.New("db down")
}

func (errSettingsRepo) Save(context.Context, *entity.MailSettings) error {
	return nil
}

func TestSettingsResolverPropagatesErrors(t *testing.T) {
	resolver := NewSettingsResolver(context.Background(), errSettingsRepo{}, repo.NewBaseCache(context.Background(), time.Minute),
		nil, config.NewConfig().Defaults)

	if _, err := resolver.Get(context.Background()); err == nil {
		t.Error("Get() err = nil, want db error")
	}
}
