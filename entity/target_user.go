package entity

import "strings"

type TargetUser struct {
	ID           *uint64 `json:"id,omitempty"`
	Email        *string `json:"email,omitempty"`
	Name         *string `json:"name,omitempty"`
	GroupID      *uint64 `json:"group_id,omitempty"`
	CustomField1 *string `json:"custom_field1,omitempty"`
	CustomField2 *string `json:"custom_field2,omitempty"`
	IsActive     *bool   `json:"is_active,omitempty"`
	CreateTime   *uint64 `json:"create_time,omitempty"`
	UpdateTime   *uint64 `json:"update_time,omitempty"`
}

func (e *TargetUser) GetID() uint64 {
	if e != nil && e.ID != nil {
		return *e.ID
	}
	return 0
}

func (e *TargetUser) GetEmail() string {
	if e != nil && e.Email != nil {
		return strings.TrimSpace(*e.Email)
	}
	return ""
}

func (e *TargetUser) GetName() string {
	if e != nil && e.Name != nil {
		return *e.Name
	}
	return ""
}

func (e *TargetUser) GetIsActive() bool {
	if e != nil && e.IsActive != nil {
		return *e.IsActive
	}
	return false
}

type TargetGroup struct {
	ID          *uint64 `json:"id,omitempty"`
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	CreateTime  *uint64 `json:"create_time,omitempty"`
	UpdateTime  *uint64 `json:"update_time,omitempty"`
}
