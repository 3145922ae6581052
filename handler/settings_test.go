package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"phishsim/config"
	"phishsim/dep"
	"phishsim/pkg/goutil"
	"phishsim/pkg/secret"
	"phishsim/repo"
	"strings"
	"testing"
	"time"
)

func TestMailSettings(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	box, err := secret.NewBox("0123456789abcdef0123456789abcdef")
	if err != nil {
		t.Fatalf("NewBox() err = %v", err)
	}
	settingsRepo := repo.NewMailSettingsRepo(ctx, store.baseRepo)
	h := NewSettingsHandler(dep.NewSettingsResolver(ctx, settingsRepo, repo.NewBaseCache(ctx, time.Minute), box,
		config.NewConfig().Defaults))

	res := new(GetMailSettingsResponse)
	if err := h.GetMailSettings(ctx, new(GetMailSettingsRequest), res); err != nil {
		t.Fatalf("GetMailSettings() err = %v", err)
	}
	if res.Settings.Port != 587 || !res.Settings.EnableSsl || res.Settings.FromAddress != "noreply@example.com" || res.Settings.HasPassword {
		t.Errorf("default settings = %+v", res.Settings)
	}

	update := new(UpdateMailSettingsResponse)
	if err := h.UpdateMailSettings(ctx, &UpdateMailSettingsRequest{
		Host:            goutil.String(" smtp.corp.example "),
		Port:            goutil.Uint32(465),
		Username:        goutil.String("mailer"),
		Password:        goutil.String("s3cret"),
		FromAddress:     goutil.String("it@corp.example"),
		FromDisplayName: goutil.String("IT Desk"),
	}, update); err != nil {
		t.Fatalf("UpdateMailSettings() err = %v", err)
	}
	if update.Settings.Host != "smtp.corp.example" || update.Settings.Port != 465 || !update.Settings.HasPassword {
		t.Errorf("updated settings = %+v", update.Settings)
	}

	b, err := json.Marshal(update)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(b), "s3cret") {
		t.Errorf("response leaks the password: %s", b)
	}

	stored, err := settingsRepo.Get(ctx)
	if err != nil {
		t.Fatalf("Get() err = %v", err)
	}
	if stored.GetEncryptedPassword() == "" || stored.GetEncryptedPassword() == "s3cret" {
		t.Errorf("stored password = %q", stored.GetEncryptedPassword())
	}

	tests := []struct {
		name string
		req  *UpdateMailSettingsRequest
	}{
		{"missing host", &UpdateMailSettingsRequest{FromAddress: goutil.String("it@corp.example")}},
		{"bad host", &UpdateMailSettingsRequest{Host: goutil.String("smtp corp;example"), FromAddress: goutil.String("it@corp.example")}},
		{"bad port", &UpdateMailSettingsRequest{Host: goutil.String("smtp.corp.example"), Port: goutil.Uint32(70000), FromAddress: goutil.String("it@corp.example")}},
		{"bad from", &UpdateMailSettingsRequest{Host: goutil.String("smtp.corp.example"), FromAddress: goutil.String("not-an-address")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.UpdateMailSettings(ctx, tt.req, new(UpdateMailSettingsResponse))
			if errCode(err) != http.StatusUnprocessableEntity {
				t.Errorf("UpdateMailSettings() err = %v, want validation error", err)
			}
		})
	}
}
