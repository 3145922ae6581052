package repo

import (
	"context"
	"phishsim/entity"
	"phishsim/pkg/goutil"
)

type MailSendLog struct {
	ID             *uint64 `gorm:"primaryKey;autoIncrement"`
	CampaignID     *uint64 `gorm:"index"`
	TargetUserID   *uint64
	SendTime       *uint64
	Status         *uint32
	SmtpServerUsed *string `gorm:"size:255"`
	ErrorMessage   *string `gorm:"size:1000"`
}

func (m *MailSendLog) TableName() string {
	return "mail_send_log_tab"
}

func (m *MailSendLog) GetStatus() uint32 {
	if m != nil && m.Status != nil {
		return *m.Status
	}
	return 0
}

type MailSendLogRepo interface {
	CreateMany(ctx context.Context, logs []*entity.MailSendLog) error
	GetByCampaignID(ctx context.Context, campaignID uint64) ([]*entity.MailSendLog, error)
}

type mailSendLogRepo struct {
	baseRepo BaseRepo
}

func NewMailSendLogRepo(_ context.Context, baseRepo BaseRepo) MailSendLogRepo {
	return &mailSendLogRepo{
		baseRepo: baseRepo,
	}
}

func (r *mailSendLogRepo) CreateMany(ctx context.Context, logs []*entity.MailSendLog) error {
	models := make([]*MailSendLog, 0, len(logs))
	for _, log := range logs {
		models = append(models, ToMailSendLogModel(log))
	}

	if err := r.baseRepo.CreateMany(ctx, new(MailSendLog), models); err != nil {
		return err
	}

	for i, m := range models {
		logs[i].ID = m.ID
	}

	return nil
}

func (r *mailSendLogRepo) GetByCampaignID(ctx context.Context, campaignID uint64) ([]*entity.MailSendLog, error) {
	res, _, err := r.baseRepo.GetMany(ctx, new(MailSendLog), &Filter{
		Conditions: []*Condition{
			{
				Field: "campaign_id",
				Value: campaignID,
				Op:    OpEq,
			},
		},
		Order: "id ASC",
	})
	if err != nil {
		return nil, err
	}

	logs := make([]*entity.MailSendLog, len(res))
	for i, m := range res {
		logs[i] = ToMailSendLog(m.(*MailSendLog))
	}

	return logs, nil
}

func ToMailSendLog(log *MailSendLog) *entity.MailSendLog {
	return &entity.MailSendLog{
		ID:             log.ID,
		CampaignID:     log.CampaignID,
		TargetUserID:   log.TargetUserID,
		SendTime:       log.SendTime,
		Status:         entity.SendStatus(log.GetStatus()),
		SmtpServerUsed: log.SmtpServerUsed,
		ErrorMessage:   log.ErrorMessage,
	}
}

func ToMailSendLogModel(log *entity.MailSendLog) *MailSendLog {
	return &MailSendLog{
		ID:             log.ID,
		CampaignID:     log.CampaignID,
		TargetUserID:   log.TargetUserID,
		SendTime:       log.SendTime,
		Status:         goutil.Uint32(uint32(log.GetStatus())),
		SmtpServerUsed: log.SmtpServerUsed,
		ErrorMessage:   log.ErrorMessage,
	}
}
