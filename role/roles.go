package role

import (
	"errors"
	"fmt"
	"strings"

	"blogapi/authority"
	"blogapi/bizerror"
	"blogapi/common"
	"blogapi/event"
	"blogapi/persistence"
	"blogapi/session"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sirupsen/logrus"
	"github.com/sony/sonyflake"
)

type Role struct {
	ID          types.ID              `json:"id"`
	Name        string                `json:"name" gorm:"unique_index:uni_role_name" sql:"type:VARCHAR(255) NOT NULL"`
	Description *string               `json:"description"`
	Active      bool                  `json:"active"`
	Permissions authority.Permissions `json:"permissions" sql:"type:TEXT"`

	CreateTime types.Timestamp `json:"createTime" sql:"type:DATETIME(6)"`
	UpdateTime types.Timestamp `json:"updateTime" sql:"type:DATETIME(6)"`
}

func (r Role) IsActive() bool {
	return r.Active
}

func (r Role) GrantedPermissions() authority.Permissions {
	return r.Permissions
}

type RoleCreation struct {
	Name        string   `json:"name" binding:"required,lte=255"`
	Description *string  `json:"description" binding:"omitempty,lte=1024"`
	Permissions []string `json:"permissions"`
}

type RoleUpdating struct {
	Name        *string   `json:"name" binding:"omitempty,min=1,lte=255"`
	Description *string   `json:"description" binding:"omitempty,lte=1024"`
	Permissions *[]string `json:"permissions"`
	Active      *bool     `json:"active"`
}

type PermissionsChange struct {
	Permissions []string `json:"permissions" binding:"required"`
}

type RolePermissions struct {
	Role        Role                  `json:"role"`
	Permissions authority.Permissions `json:"permissions"`
	Total       int                   `json:"totalPermissions"`
}

var (
	roleIdWorker = sonyflake.NewSonyflake(sonyflake.Settings{})

	CreateRoleFunc           = CreateRole
	QueryRolesFunc           = QueryRoles
	DetailRoleFunc           = DetailRole
	UpdateRoleFunc           = UpdateRole
	DeactivateRoleFunc       = DeactivateRole
	ActivateRoleFunc         = ActivateRole
	SetPermissionsFunc       = SetPermissions
	AddPermissionsFunc       = AddPermissions
	RemovePermissionsFunc    = RemovePermissions
	RemoveAllPermissionsFunc = RemoveAllPermissions
	QueryRolePermissionsFunc = QueryRolePermissions
)

func CreateRole(c RoleCreation, s *session.Session) (*Role, error) {
	perms, err := checkPermissions(c.Permissions)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return nil, &bizerror.ErrBadParam{Cause: errors.New("role name is blank")}
	}

	now := types.CurrentTimestamp()
	r := Role{ID: common.NextId(roleIdWorker), Name: name, Description: c.Description, Active: true,
		Permissions: perms, CreateTime: now, UpdateTime: now}

	var ev *event.EventRecord
	err = persistence.ActiveDataSourceManager.GormDB(s.Context).Transaction(func(tx *gorm.DB) error {
		if err := checkNameAvailable(tx, name, 0); err != nil {
			return err
		}
		if err := tx.Create(&r).Error; err != nil {
			return translateWriteError(err, name)
		}
		var err error
		ev, err = event.CreateEvent(event.SourceRole, r.ID, r.Name, event.EventCategoryCreated, nil, nil, &s.Identity, now, tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	event.Dispatch(ev)
	return &r, nil
}

// QueryRoles lists active roles.
func QueryRoles(s *session.Session) ([]Role, error) {
	var roles []Role
	if err := persistence.ActiveDataSourceManager.GormDB(s.Context).Where("active = ?", true).Order("name ASC").Find(&roles).Error; err != nil {
		return nil, err
	}
	return roles, nil
}

// DetailRole finds an active role.
func DetailRole(id types.ID, s *session.Session) (*Role, error) {
	r, err := FindRole(id, persistence.ActiveDataSourceManager.GormDB(s.Context))
	if err != nil {
		return nil, err
	}
	if !r.Active {
		return nil, bizerror.ErrNotFound
	}
	return r, nil
}

// FindRole finds a role whatever its state.
func FindRole(id types.ID, db *gorm.DB) (*Role, error) {
	var r Role
	if err := db.Where("id = ?", id).First(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// FindRolesByIDs loads the roles with ids, active or not.
func FindRolesByIDs(ids []types.ID, db *gorm.DB) ([]Role, error) {
	roles := []Role{}
	if len(ids) == 0 {
		return roles, nil
	}
	if err := db.Where("id IN (?)", ids).Order("name ASC").Find(&roles).Error; err != nil {
		return nil, err
	}
	return roles, nil
}

// FindActiveRolesByIDs loads the active roles among ids. Unknown and inactive ids are skipped.
func FindActiveRolesByIDs(ids []types.ID, db *gorm.DB) ([]Role, error) {
	roles := []Role{}
	if len(ids) == 0 {
		return roles, nil
	}
	if err := db.Where("id IN (?) AND active = ?", ids, true).Order("name ASC").Find(&roles).Error; err != nil {
		return nil, err
	}
	return roles, nil
}

func FindActiveRoleByName(name string, db *gorm.DB) (*Role, error) {
	var r Role
	if err := db.Where("name = ? AND active = ?", name, true).First(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// EnsureRole creates the role when no role is named so. When refresh is set, an existing role is reactivated
// and its permissions replaced by perms.
func EnsureRole(name, description string, perms authority.Permissions, refresh bool, tx *gorm.DB) (*Role, error) {
	var r Role
	err := tx.Where("name = ?", name).First(&r).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	now := types.CurrentTimestamp()
	if errors.Is(err, gorm.ErrRecordNotFound) {
		desc := description
		r = Role{ID: common.NextId(roleIdWorker), Name: name, Description: &desc, Active: true,
			Permissions: perms.Normalize(), CreateTime: now, UpdateTime: now}
		if err := tx.Create(&r).Error; err != nil {
			return nil, err
		}
		logrus.Infof("role '%s' created with %d permissions", name, len(r.Permissions))
		return &r, nil
	}
	if refresh {
		r.Active = true
		r.Permissions = perms.Normalize()
		r.UpdateTime = now
		if err := tx.Model(&Role{}).Where("id = ?", r.ID).
			Updates(map[string]interface{}{"active": true, "permissions": r.Permissions, "update_time": now}).Error; err != nil {
			return nil, err
		}
		logrus.Infof("role '%s' refreshed with %d permissions", name, len(r.Permissions))
	}
	return &r, nil
}

func UpdateRole(id types.ID, u RoleUpdating, s *session.Session) (*Role, error) {
	var updated *Role
	var ev *event.EventRecord
	err := persistence.ActiveDataSourceManager.GormDB(s.Context).Transaction(func(tx *gorm.DB) error {
		r, err := FindRole(id, tx)
		if err != nil {
			return err
		}
		changes := map[string]interface{}{}
		var props []event.UpdatedProperty

		if u.Name != nil {
			name := strings.TrimSpace(*u.Name)
			if name == "" {
				return &bizerror.ErrBadParam{Cause: errors.New("role name is blank")}
			}
			if name != r.Name {
				if err := checkNameAvailable(tx, name, r.ID); err != nil {
					return err
				}
				p, _ := event.PropertyChange("name", r.Name, name)
				props = append(props, p)
				changes["name"] = name
				r.Name = name
			}
		}
		if u.Description != nil {
			changes["description"] = *u.Description
			if p, ok := event.PropertyChange("description", stringOf(r.Description), *u.Description); ok {
				props = append(props, p)
			}
			desc := *u.Description
			r.Description = &desc
		}
		if u.Permissions != nil {
			perms, err := checkPermissions(*u.Permissions)
			if err != nil {
				return err
			}
			if p, ok := event.PropertyChange("permissions", strings.Join(r.Permissions, ","), strings.Join(perms, ",")); ok {
				props = append(props, p)
			}
			changes["permissions"] = perms
			r.Permissions = perms
		}
		if u.Active != nil && *u.Active != r.Active {
			p, _ := event.PropertyChange("active", fmt.Sprint(r.Active), fmt.Sprint(*u.Active))
			props = append(props, p)
			changes["active"] = *u.Active
			r.Active = *u.Active
		}
		if len(changes) == 0 {
			updated = r
			return nil
		}

		now := types.CurrentTimestamp()
		changes["update_time"] = now
		r.UpdateTime = now
		if err := tx.Model(&Role{}).Where("id = ?", r.ID).Updates(changes).Error; err != nil {
			return translateWriteError(err, r.Name)
		}
		if len(props) > 0 {
			ev, err = event.CreateEvent(event.SourceRole, r.ID, r.Name, event.EventCategoryPropertyUpdated, props, nil, &s.Identity, now, tx)
			if err != nil {
				return err
			}
		}
		updated = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	event.Dispatch(ev)
	return updated, nil
}

// DeactivateRole keeps the role attached to its users; it just stops contributing permissions.
func DeactivateRole(id types.ID, s *session.Session) (*Role, error) {
	active := false
	r, err := UpdateRole(id, RoleUpdating{Active: &active}, s)
	if err != nil {
		return nil, err
	}
	logrus.Infof("role %d '%s' deactivated by %d", r.ID, r.Name, s.Identity.ID)
	return r, nil
}

func ActivateRole(id types.ID, s *session.Session) (*Role, error) {
	active := true
	r, err := UpdateRole(id, RoleUpdating{Active: &active}, s)
	if err != nil {
		return nil, err
	}
	logrus.Infof("role %d '%s' activated by %d", r.ID, r.Name, s.Identity.ID)
	return r, nil
}

// SetPermissions replaces the permission set of the role.
func SetPermissions(id types.ID, perms []string, s *session.Session) (*Role, error) {
	r, _, err := changePermissions(id, s, func(current authority.Permissions) (authority.Permissions, int, error) {
		next, err := checkPermissions(perms)
		if err != nil {
			return nil, 0, err
		}
		return next, len(next), nil
	})
	return r, err
}

// AddPermissions merges perms into the role and returns the number actually added.
func AddPermissions(id types.ID, perms []string, s *session.Session) (*Role, int, error) {
	return changePermissions(id, s, func(current authority.Permissions) (authority.Permissions, int, error) {
		incoming, err := checkPermissions(perms)
		if err != nil {
			return nil, 0, err
		}
		added := 0
		for _, p := range incoming {
			if !contains(current, p) {
				added++
			}
		}
		return append(append(authority.Permissions{}, current...), incoming...).Normalize(), added, nil
	})
}

// RemovePermissions removes perms from the role and returns the number actually removed.
func RemovePermissions(id types.ID, perms []string, s *session.Session) (*Role, int, error) {
	return changePermissions(id, s, func(current authority.Permissions) (authority.Permissions, int, error) {
		drop := authority.Permissions(perms).Normalize()
		next := authority.Permissions{}
		for _, p := range current {
			if !contains(drop, p) {
				next = append(next, p)
			}
		}
		return next, len(current) - len(next), nil
	})
}

func RemoveAllPermissions(id types.ID, s *session.Session) (*Role, int, error) {
	return changePermissions(id, s, func(current authority.Permissions) (authority.Permissions, int, error) {
		return authority.Permissions{}, len(current), nil
	})
}

// QueryRolePermissions lists the permissions of a role whatever its state.
func QueryRolePermissions(id types.ID, s *session.Session) (*RolePermissions, error) {
	r, err := FindRole(id, persistence.ActiveDataSourceManager.GormDB(s.Context))
	if err != nil {
		return nil, err
	}
	perms := r.Permissions.Normalize()
	return &RolePermissions{Role: *r, Permissions: perms, Total: len(perms)}, nil
}

func changePermissions(id types.ID, s *session.Session,
	compute func(current authority.Permissions) (authority.Permissions, int, error)) (*Role, int, error) {

	var updated *Role
	var count int
	var ev *event.EventRecord
	err := persistence.ActiveDataSourceManager.GormDB(s.Context).Transaction(func(tx *gorm.DB) error {
		r, err := FindRole(id, tx)
		if err != nil {
			return err
		}
		current := r.Permissions.Normalize()
		next, n, err := compute(current)
		if err != nil {
			return err
		}
		count = n
		updated = r
		p, changed := event.PropertyChange("permissions", strings.Join(current, ","), strings.Join(next, ","))
		if !changed {
			r.Permissions = current
			return nil
		}

		now := types.CurrentTimestamp()
		if err := tx.Model(&Role{}).Where("id = ?", r.ID).
			Updates(map[string]interface{}{"permissions": next, "update_time": now}).Error; err != nil {
			return err
		}
		r.Permissions = next
		r.UpdateTime = now
		ev, err = event.CreateEvent(event.SourceRole, r.ID, r.Name, event.EventCategoryPropertyUpdated,
			[]event.UpdatedProperty{p}, nil, &s.Identity, now, tx)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	event.Dispatch(ev)
	return updated, count, nil
}

func checkPermissions(perms []string) (authority.Permissions, error) {
	normalized := authority.Permissions(perms).Normalize()
	if err := normalized.Validate(); err != nil {
		return nil, &bizerror.ErrBadParam{Cause: err}
	}
	return normalized, nil
}

func checkNameAvailable(db *gorm.DB, name string, self types.ID) error {
	var count int
	if err := db.Model(&Role{}).Where("name = ? AND id <> ?", name, self).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return &bizerror.ErrConflict{Message: "role name '" + name + "' already exists"}
	}
	return nil
}

func translateWriteError(err error, name string) error {
	if persistence.IsUniqueViolation(err) {
		return &bizerror.ErrConflict{Message: "role name '" + name + "' already exists", Cause: err}
	}
	return err
}

func contains(perms authority.Permissions, p string) bool {
	for _, v := range perms {
		if v == p {
			return true
		}
	}
	return false
}

func stringOf(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
