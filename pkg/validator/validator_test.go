package validator_test

import (
	"phishsim/pkg/goutil"
	"phishsim/pkg/validator"
	"testing"
)

type scheduleReq struct {
	CampaignID *uint64  `json:"campaign_id,omitempty"`
	Name       *string  `json:"name,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	Target     *uint64  `schema:"t"`
}

var scheduleReqValidator = validator.MustForm(map[string]validator.Validator{
	"campaign_id": &validator.UInt64{},
	"name": &validator.String{
		Optional: true,
		MinLen:   2,
		MaxLen:   5,
	},
	"tags": &validator.Slice{
		Optional:  true,
		MaxLen:    2,
		Validator: &validator.String{MinLen: 1},
	},
	"t": &validator.UInt64{Optional: true, Min: goutil.Uint64(1)},
})

func TestFormValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     *scheduleReq
		wantErr bool
	}{
		{"ok", &scheduleReq{CampaignID: goutil.Uint64(1)}, false},
		{"missing id", &scheduleReq{}, true},
		{"name too short", &scheduleReq{CampaignID: goutil.Uint64(1), Name: goutil.String("a")}, true},
		{"name too long", &scheduleReq{CampaignID: goutil.Uint64(1), Name: goutil.String("abcdef")}, true},
		{"too many tags", &scheduleReq{CampaignID: goutil.Uint64(1), Tags: []string{"a", "b", "c"}}, true},
		{"empty tag", &scheduleReq{CampaignID: goutil.Uint64(1), Tags: []string{""}}, true},
		{"schema key below min", &scheduleReq{CampaignID: goutil.Uint64(1), Target: goutil.Uint64(0)}, true},
		{"nil request", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := scheduleReqValidator.Validate(tt.req)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
