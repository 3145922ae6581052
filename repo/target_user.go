package repo

import (
	"context"
	"errors"
	"phishsim/entity"
	"phishsim/pkg/errutil"

	"gorm.io/gorm"
)

var (
	ErrTargetUserNotFound  = errutil.NotFoundError(errors.New("target user not found"))
	ErrTargetGroupNotFound = errutil.NotFoundError(errors.New("target group not found"))
)

type TargetUser struct {
	ID           *uint64 `gorm:"primaryKey;autoIncrement"`
	Email        *string `gorm:"size:320"`
	Name         *string `gorm:"size:200"`
	GroupID      *uint64 `gorm:"index"`
	CustomField1 *string `gorm:"size:500"`
	CustomField2 *string `gorm:"size:500"`
	IsActive     *bool
	CreateTime   *uint64
	UpdateTime   *uint64
}

func (m *TargetUser) TableName() string {
	return "target_user_tab"
}

func (m *TargetUser) GetID() uint64 {
	if m != nil && m.ID != nil {
		return *m.ID
	}
	return 0
}

type TargetGroup struct {
	ID          *uint64 `gorm:"primaryKey;autoIncrement"`
	Name        *string `gorm:"size:200"`
	Description *string
	CreateTime  *uint64
	UpdateTime  *uint64
}

func (m *TargetGroup) TableName() string {
	return "target_group_tab"
}

func (m *TargetGroup) GetID() uint64 {
	if m != nil && m.ID != nil {
		return *m.ID
	}
	return 0
}

type TargetUserRepo interface {
	Create(ctx context.Context, user *entity.TargetUser) (uint64, error)
	CreateGroup(ctx context.Context, group *entity.TargetGroup) (uint64, error)
	GetByID(ctx context.Context, userID uint64) (*entity.TargetUser, error)
	GetByIDs(ctx context.Context, userIDs []uint64) ([]*entity.TargetUser, error)
	GetGroupByID(ctx context.Context, groupID uint64) (*entity.TargetGroup, error)
	// GetActiveByGroupID returns the active members of a group ordered by id.
	GetActiveByGroupID(ctx context.Context, groupID uint64) ([]*entity.TargetUser, error)
}

type targetUserRepo struct {
	baseRepo BaseRepo
}

func NewTargetUserRepo(_ context.Context, baseRepo BaseRepo) TargetUserRepo {
	return &targetUserRepo{
		baseRepo: baseRepo,
	}
}

func (r *targetUserRepo) Create(ctx context.Context, user *entity.TargetUser) (uint64, error) {
	userModel := ToTargetUserModel(user)

	if err := r.baseRepo.Create(ctx, userModel); err != nil {
		return 0, err
	}

	user.ID = userModel.ID

	return userModel.GetID(), nil
}

func (r *targetUserRepo) CreateGroup(ctx context.Context, group *entity.TargetGroup) (uint64, error) {
	groupModel := &TargetGroup{
		Name:        group.Name,
		Description: group.Description,
		CreateTime:  group.CreateTime,
		UpdateTime:  group.UpdateTime,
	}

	if err := r.baseRepo.Create(ctx, groupModel); err != nil {
		return 0, err
	}

	group.ID = groupModel.ID

	return groupModel.GetID(), nil
}

func (r *targetUserRepo) GetByID(ctx context.Context, userID uint64) (*entity.TargetUser, error) {
	user := new(TargetUser)

	if err := r.baseRepo.Get(ctx, user, &Filter{
		Conditions: []*Condition{
			{
				Field: "id",
				Value: userID,
				Op:    OpEq,
			},
		},
	}); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTargetUserNotFound
		}
		return nil, err
	}

	return ToTargetUser(user), nil
}

func (r *targetUserRepo) GetByIDs(ctx context.Context, userIDs []uint64) ([]*entity.TargetUser, error) {
	if len(userIDs) == 0 {
		return []*entity.TargetUser{}, nil
	}

	return r.getMany(ctx, []*Condition{
		{
			Field: "id",
			Value: userIDs,
			Op:    OpIn,
		},
	})
}

func (r *targetUserRepo) GetGroupByID(ctx context.Context, groupID uint64) (*entity.TargetGroup, error) {
	group := new(TargetGroup)

	if err := r.baseRepo.Get(ctx, group, &Filter{
		Conditions: []*Condition{
			{
				Field: "id",
				Value: groupID,
				Op:    OpEq,
			},
		},
	}); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTargetGroupNotFound
		}
		return nil, err
	}

	return &entity.TargetGroup{
		ID:          group.ID,
		Name:        group.Name,
		Description: group.Description,
		CreateTime:  group.CreateTime,
		UpdateTime:  group.UpdateTime,
	}, nil
}

func (r *targetUserRepo) GetActiveByGroupID(ctx context.Context, groupID uint64) ([]*entity.TargetUser, error) {
	return r.getMany(ctx, []*Condition{
		{
			Field: "group_id",
			Value: groupID,
			Op:    OpEq,
		},
		{
			Field: "is_active",
			Value: true,
			Op:    OpEq,
		},
	})
}

func (r *targetUserRepo) getMany(ctx context.Context, conditions []*Condition) ([]*entity.TargetUser, error) {
	res, _, err := r.baseRepo.GetMany(ctx, new(TargetUser), &Filter{
		Conditions: conditions,
		Order:      "id ASC",
	})
	if err != nil {
		return nil, err
	}

	users := make([]*entity.TargetUser, len(res))
	for i, m := range res {
		users[i] = ToTargetUser(m.(*TargetUser))
	}

	return users, nil
}

func ToTargetUser(user *TargetUser) *entity.TargetUser {
	return &entity.TargetUser{
		ID:           user.ID,
		Email:        user.Email,
		Name:         user.Name,
		GroupID:      user.GroupID,
		CustomField1: user.CustomField1,
		CustomField2: user.CustomField2,
		IsActive:     user.IsActive,
		CreateTime:   user.CreateTime,
		UpdateTime:   user.UpdateTime,
	}
}

func ToTargetUserModel(user *entity.TargetUser) *TargetUser {
	return &TargetUser{
		ID:           user.ID,
		Email:        user.Email,
		Name:         user.Name,
		GroupID:      user.GroupID,
		CustomField1: user.CustomField1,
		CustomField2: user.CustomField2,
		IsActive:     user.IsActive,
		CreateTime:   user.CreateTime,
		UpdateTime:   user.UpdateTime,
	}
}
