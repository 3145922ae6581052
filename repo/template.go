package repo

import (
	"context"
	"errors"
	"phishsim/entity"
	"phishsim/pkg/errutil"

	"gorm.io/gorm"
)

var (
	ErrMailTemplateNotFound = errutil.NotFoundError(errors.New("mail template not found"))
	ErrLandingPageNotFound  = errutil.NotFoundError(errors.New("landing page template not found"))
)

type MailTemplate struct {
	ID                    *uint64 `gorm:"primaryKey;autoIncrement"`
	Name                  *string `gorm:"size:200"`
	Subject               *string `gorm:"size:500"`
	Body                  *string `gorm:"type:text"`
	Language              *string `gorm:"size:16"`
	CategoryID            *uint64
	CustomFromAddress     *string `gorm:"size:320"`
	CustomFromDisplayName *string `gorm:"size:200"`
	CreateTime            *uint64
	UpdateTime            *uint64
}

func (m *MailTemplate) TableName() string {
	return "mail_template_tab"
}

func (m *MailTemplate) GetID() uint64 {
	if m != nil && m.ID != nil {
		return *m.ID
	}
	return 0
}

type LandingPageTemplate struct {
	ID                  *uint64 `gorm:"primaryKey;autoIncrement"`
	Name                *string `gorm:"size:200"`
	HtmlContent         *string `gorm:"type:text"`
	CollectFieldsConfig *string `gorm:"type:text"`
	CreateTime          *uint64
	UpdateTime          *uint64
}

func (m *LandingPageTemplate) TableName() string {
	return "landing_page_template_tab"
}

func (m *LandingPageTemplate) GetID() uint64 {
	if m != nil && m.ID != nil {
		return *m.ID
	}
	return 0
}

type TemplateRepo interface {
	CreateMailTemplate(ctx context.Context, tmpl *entity.MailTemplate) (uint64, error)
	GetMailTemplate(ctx context.Context, tmplID uint64) (*entity.MailTemplate, error)
	CreateLandingPage(ctx context.Context, page *entity.LandingPageTemplate) (uint64, error)
	GetLandingPage(ctx context.Context, pageID uint64) (*entity.LandingPageTemplate, error)
}

type templateRepo struct {
	baseRepo BaseRepo
}

func NewTemplateRepo(_ context.Context, baseRepo BaseRepo) TemplateRepo {
	return &templateRepo{
		baseRepo: baseRepo,
	}
}

func (r *templateRepo) CreateMailTemplate(ctx context.Context, tmpl *entity.MailTemplate) (uint64, error) {
	tmplModel := ToMailTemplateModel(tmpl)

	if err := r.baseRepo.Create(ctx, tmplModel); err != nil {
		return 0, err
	}

	tmpl.ID = tmplModel.ID

	return tmplModel.GetID(), nil
}

func (r *templateRepo) GetMailTemplate(ctx context.Context, tmplID uint64) (*entity.MailTemplate, error) {
	tmpl := new(MailTemplate)

	if err := r.baseRepo.Get(ctx, tmpl, idFilter(tmplID)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMailTemplateNotFound
		}
		return nil, err
	}

	return ToMailTemplate(tmpl), nil
}

func (r *templateRepo) CreateLandingPage(ctx context.Context, page *entity.LandingPageTemplate) (uint64, error) {
	pageModel := ToLandingPageModel(page)

	if err := r.baseRepo.Create(ctx, pageModel); err != nil {
		return 0, err
	}

	page.ID = pageModel.ID

	return pageModel.GetID(), nil
}

func (r *templateRepo) GetLandingPage(ctx context.Context, pageID uint64) (*entity.LandingPageTemplate, error) {
	page := new(LandingPageTemplate)

	if err := r.baseRepo.Get(ctx, page, idFilter(pageID)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLandingPageNotFound
		}
		return nil, err
	}

	return ToLandingPage(page), nil
}

func idFilter(id uint64) *Filter {
	return &Filter{
		Conditions: []*Condition{
			{
				Field: "id",
				Value: id,
				Op:    OpEq,
			},
		},
	}
}

func ToMailTemplate(tmpl *MailTemplate) *entity.MailTemplate {
	return &entity.MailTemplate{
		ID:                    tmpl.ID,
		Name:                  tmpl.Name,
		Subject:               tmpl.Subject,
		Body:                  tmpl.Body,
		Language:              tmpl.Language,
		CategoryID:            tmpl.CategoryID,
		CustomFromAddress:     tmpl.CustomFromAddress,
		CustomFromDisplayName: tmpl.CustomFromDisplayName,
		CreateTime:            tmpl.CreateTime,
		UpdateTime:            tmpl.UpdateTime,
	}
}

func ToMailTemplateModel(tmpl *entity.MailTemplate) *MailTemplate {
	return &MailTemplate{
		ID:                    tmpl.ID,
		Name:                  tmpl.Name,
		Subject:               tmpl.Subject,
		Body:                  tmpl.Body,
		Language:              tmpl.Language,
		CategoryID:            tmpl.CategoryID,
		CustomFromAddress:     tmpl.CustomFromAddress,
		CustomFromDisplayName: tmpl.CustomFromDisplayName,
		CreateTime:            tmpl.CreateTime,
		UpdateTime:            tmpl.UpdateTime,
	}
}

func ToLandingPage(page *LandingPageTemplate) *entity.LandingPageTemplate {
	return &entity.LandingPageTemplate{
		ID:                  page.ID,
		Name:                page.Name,
		HtmlContent:         page.HtmlContent,
		CollectFieldsConfig: page.CollectFieldsConfig,
		CreateTime:          page.CreateTime,
		UpdateTime:          page.UpdateTime,
	}
}

func ToLandingPageModel(page *entity.LandingPageTemplate) *LandingPageTemplate {
	return &LandingPageTemplate{
		ID:                  page.ID,
		Name:                page.Name,
		HtmlContent:         page.HtmlContent,
		CollectFieldsConfig: page.CollectFieldsConfig,
		CreateTime:          page.CreateTime,
		UpdateTime:          page.UpdateTime,
	}
}
