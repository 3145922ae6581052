package handler

import (
	"errors"
	"net/mail"
	"phishsim/entity"
	"phishsim/pkg/goutil"
	"phishsim/pkg/validator"
	"regexp"
)

var (
	ErrInvalidScheduleStatus = errors.New("must be Draft or Scheduled")
	ErrInvalidPort           = errors.New("must be between 1 and 65535")
	ErrInvalidEmailAddress   = errors.New("must be a valid email address")
)

func CampaignIDValidator() validator.Validator {
	return &validator.UInt64{
		Min: goutil.Uint64(1),
	}
}

func ScheduleStatusValidator(optional bool) validator.Validator {
	return &validator.UInt32{
		Optional: optional,
		Validators: []func(uint32) error{
			func(status uint32) error {
				if s := entity.CampaignStatus(status); s != entity.CampaignStatusDraft && s != entity.CampaignStatusScheduled {
					return ErrInvalidScheduleStatus
				}
				return nil
			},
		},
	}
}

func HostValidator(optional bool) validator.Validator {
	return &validator.String{
		Optional:  optional,
		UnsetZero: true,
		MaxLen:    255,
		Regex:     regexp.MustCompile(`^\s*[0-9a-zA-Z.\-]+\s*$`),
	}
}

func PortValidator(optional bool) validator.Validator {
	return &validator.UInt32{
		Optional: optional,
		Validators: []func(uint32) error{
			func(port uint32) error {
				if port == 0 || port > 65535 {
					return ErrInvalidPort
				}
				return nil
			},
		},
	}
}

func EmailAddressValidator(optional bool) validator.Validator {
	return &validator.String{
		Optional:  optional,
		UnsetZero: true,
		MaxLen:    320,
		Validators: []validator.StringFunc{
			func(s string) error {
				if _, err := mail.ParseAddress(s); err != nil {
					return ErrInvalidEmailAddress
				}
				return nil
			},
		},
	}
}

func DisplayNameValidator(optional bool) validator.Validator {
	return &validator.String{
		Optional: optional,
		MaxLen:   100,
	}
}
