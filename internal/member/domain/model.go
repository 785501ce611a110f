package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Member is the seat-bearing user directory entry. The seat reconciler only
// ever counts these rows; it never mutates them.
type Member struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	OrgID       snowflake.ID `json:"org_id" gorm:"not null;index:idx_members_org;uniqueIndex:ux_members_org_email,priority:1"`
	Email       string       `json:"email" gorm:"type:text;not null;uniqueIndex:ux_members_org_email,priority:2"`
	DisplayName string       `json:"display_name" gorm:"type:text"`
	IsActive    bool         `json:"is_active" gorm:"not null;default:true"`
	CreatedAt   time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time    `json:"updated_at" gorm:"not null"`
}

func (Member) TableName() string { return "members" }

var (
	ErrInvalidOrganization = errors.New("member: invalid organization")
	ErrInvalidEmail        = errors.New("member: invalid email")
	ErrMemberNotFound      = errors.New("member: not found")
)
