package account

import (
	"strings"

	"blogapi/authority"
	"blogapi/role"

	"github.com/fundwit/go-commons/types"
)

type User struct {
	ID          types.ID `json:"id"`
	Name        string   `json:"name" sql:"type:VARCHAR(100) NOT NULL"`
	LastName    string   `json:"lastName" sql:"type:VARCHAR(100) NOT NULL"`
	UserName    string   `json:"userName" gorm:"unique_index:uni_user_name" sql:"type:VARCHAR(50) NOT NULL"`
	Email       string   `json:"email" gorm:"unique_index:uni_user_email" sql:"type:VARCHAR(255) NOT NULL"`
	PhoneNumber *string  `json:"phoneNumber" sql:"type:VARCHAR(30)"`
	Secret      string   `json:"-" sql:"type:VARCHAR(100) NOT NULL"`
	Active      bool     `json:"active"`

	CreateTime types.Timestamp `json:"createTime" sql:"type:DATETIME(6)"`
	UpdateTime types.Timestamp `json:"updateTime" sql:"type:DATETIME(6)"`
}

// RoleBinding is a row of the user-role join.
type RoleBinding struct {
	UserID types.ID `gorm:"primary_key;auto_increment:false"`
	RoleID types.ID `gorm:"primary_key;auto_increment:false"`
}

func (RoleBinding) TableName() string {
	return "user_roles"
}

type UserDetail struct {
	User
	Roles []role.Role `json:"roles"`
}

type UserPermissions struct {
	User        UserDetail            `json:"user"`
	Permissions authority.Permissions `json:"permissions"`
	Total       int                   `json:"totalPermissions"`
}

type UserCreation struct {
	Name        string     `json:"name" binding:"required,lte=100"`
	LastName    string     `json:"lastName" binding:"required,lte=100"`
	UserName    string     `json:"userName" binding:"required,gte=3,lte=50,excludesall=@"`
	Email       string     `json:"email" binding:"required,email,lte=255"`
	PhoneNumber *string    `json:"phoneNumber" binding:"omitempty,lte=30"`
	Password    string     `json:"password" binding:"required,gte=8,lte=72"`
	RoleIDs     []types.ID `json:"roleIds"`
}

// UserUpdating edits the profile. Active and RoleIDs additionally need the permissions of the dedicated
// deactivation and role assignment operations.
type UserUpdating struct {
	Name        *string     `json:"name" binding:"omitempty,min=1,lte=100"`
	LastName    *string     `json:"lastName" binding:"omitempty,min=1,lte=100"`
	UserName    *string     `json:"userName" binding:"omitempty,gte=3,lte=50,excludesall=@"`
	Email       *string     `json:"email" binding:"omitempty,email,lte=255"`
	PhoneNumber *string     `json:"phoneNumber" binding:"omitempty,lte=30"`
	Password    *string     `json:"password" binding:"omitempty,gte=8,lte=72"`
	Active      *bool       `json:"active"`
	RoleIDs     *[]types.ID `json:"roleIds"`
}

type RolesChange struct {
	RoleIDs []types.ID `json:"roleIds" binding:"required"`
}

func (u User) DisplayName() string {
	full := strings.TrimSpace(u.Name + " " + u.LastName)
	if full != "" {
		return full
	}
	return u.UserName
}
