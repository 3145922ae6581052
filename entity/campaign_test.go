package entity_test

import (
	"phishsim/entity"
	"phishsim/pkg/goutil"
	"testing"
)

func TestCampaignTargetSource(t *testing.T) {
	manual := &entity.Campaign{}
	if src := manual.GetTargetSource(); src.IsGroup() {
		t.Errorf("campaign without group resolved as %+v", src)
	}

	grouped := &entity.Campaign{TargetGroupID: goutil.Uint64(9)}
	src := grouped.GetTargetSource()
	if !src.IsGroup() || src.GroupID != 9 {
		t.Errorf("GetTargetSource() = %+v, want group 9", src)
	}

	zero := &entity.Campaign{TargetGroupID: goutil.Uint64(0)}
	if zero.GetTargetSource().IsGroup() {
		t.Errorf("group id 0 must resolve as manual")
	}
}

func TestCampaignStatusCanExecute(t *testing.T) {
	for status, want := range map[entity.CampaignStatus]bool{
		entity.CampaignStatusDraft:     true,
		entity.CampaignStatusScheduled: true,
		entity.CampaignStatusRunning:   false,
		entity.CampaignStatusCompleted: false,
		entity.CampaignStatusCancelled: false,
		entity.CampaignStatusUnknown:   false,
	} {
		if got := status.CanExecute(); got != want {
			t.Errorf("%v.CanExecute() = %v, want %v", status, got, want)
		}
	}
}

func TestSendStatusIsTerminal(t *testing.T) {
	for status, want := range map[entity.SendStatus]bool{
		entity.SendStatusPending: false,
		entity.SendStatusSent:    true,
		entity.SendStatusFailed:  true,
		entity.SendStatusBounced: false,
	} {
		if got := status.IsTerminal(); got != want {
			t.Errorf("%v.IsTerminal() = %v, want %v", status, got, want)
		}
	}
}

func TestTrackOpensDefault(t *testing.T) {
	if !(&entity.Campaign{}).GetTrackOpens() {
		t.Errorf("track opens must default to true")
	}
	if (&entity.Campaign{TrackOpens: goutil.Bool(false)}).GetTrackOpens() {
		t.Errorf("explicit false ignored")
	}
}

func TestCampaignUpdate(t *testing.T) {
	c := &entity.Campaign{Status: entity.CampaignStatusDraft, JobID: goutil.String("job-1")}

	if c.Update(&entity.Campaign{Status: entity.CampaignStatusDraft}) {
		t.Errorf("Update() with same status reported a change")
	}

	if !c.Update(&entity.Campaign{Status: entity.CampaignStatusRunning, JobID: goutil.String("")}) {
		t.Fatalf("Update() reported no change")
	}
	if c.Status != entity.CampaignStatusRunning || c.HasJob() || c.UpdateTime == nil {
		t.Errorf("campaign after update = %+v", c)
	}
}

func TestMailSettingsTLSMode(t *testing.T) {
	tests := []struct {
		port int
		ssl  bool
		want entity.TLSMode
	}{
		{465, false, entity.TLSModeImplicit},
		{465, true, entity.TLSModeImplicit},
		{587, true, entity.TLSModeStartTLS},
		{25, false, entity.TLSModeNone},
	}

	for _, tt := range tests {
		s := &entity.MailSettings{Port: goutil.Int(tt.port), EnableSsl: goutil.Bool(tt.ssl)}
		if got := s.GetTLSMode(); got != tt.want {
			t.Errorf("port %d ssl %v: GetTLSMode() = %v, want %v", tt.port, tt.ssl, got, tt.want)
		}
	}
}
