package account

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"blogapi/authority"
	"blogapi/bizerror"
	"blogapi/common"
	"blogapi/credential"
	"blogapi/event"
	"blogapi/persistence"
	"blogapi/role"
	"blogapi/session"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sirupsen/logrus"
	"github.com/sony/sonyflake"
)

var (
	userIdWorker = sonyflake.NewSonyflake(sonyflake.Settings{})

	ErrNoActiveRoles = errors.New("none of the requested roles is active")

	CreateUserFunc           = CreateUser
	QueryUsersFunc           = QueryUsers
	DetailUserFunc           = DetailUser
	UpdateUserFunc           = UpdateUser
	DeactivateUserFunc       = DeactivateUser
	ReplaceRolesFunc         = ReplaceRoles
	AddRolesFunc             = AddRoles
	RemoveRolesFunc          = RemoveRoles
	RemoveAllRolesFunc       = RemoveAllRoles
	QueryUserPermissionsFunc = QueryUserPermissions
)

func CreateUser(c UserCreation, s *session.Session) (*UserDetail, error) {
	return createUser(c, s, func(tx *gorm.DB) ([]types.ID, error) {
		return resolveRoleIDs(c.RoleIDs, tx)
	})
}

func createUser(c UserCreation, s *session.Session, roles func(tx *gorm.DB) ([]types.ID, error)) (*UserDetail, error) {
	secret, err := credential.HashSecret(c.Password)
	if err != nil {
		return nil, &bizerror.ErrBadParam{Cause: err}
	}
	now := types.CurrentTimestamp()
	u := User{ID: common.NextId(userIdWorker), Name: strings.TrimSpace(c.Name), LastName: strings.TrimSpace(c.LastName),
		UserName: strings.TrimSpace(c.UserName), Email: strings.ToLower(strings.TrimSpace(c.Email)), PhoneNumber: c.PhoneNumber,
		Secret: secret, Active: true, CreateTime: now, UpdateTime: now}

	var detail *UserDetail
	var ev *event.EventRecord
	err = persistence.ActiveDataSourceManager.GormDB(s.Context).Transaction(func(tx *gorm.DB) error {
		if err := checkIdentifiersAvailable(tx, u.Email, u.UserName, 0); err != nil {
			return err
		}
		roleIDs, err := roles(tx)
		if err != nil {
			return err
		}
		if err := tx.Create(&u).Error; err != nil {
			return translateWriteError(err)
		}
		if err := bindRoles(tx, u.ID, roleIDs); err != nil {
			return err
		}
		ev, err = event.CreateEvent(event.SourceUser, u.ID, u.UserName, event.EventCategoryCreated, nil,
			roleRelations(nil, roleIDs), &s.Identity, now, tx)
		if err != nil {
			return err
		}
		detail, err = loadDetail(tx, u)
		return err
	})
	if err != nil {
		return nil, err
	}
	event.Dispatch(ev)
	return detail, nil
}

// RegisterUser creates a user holding the default role when that role is active. Requested roles are ignored.
func RegisterUser(c UserCreation, s *session.Session) (*UserDetail, error) {
	c.RoleIDs = nil
	return createUser(c, s, func(tx *gorm.DB) ([]types.ID, error) {
		r, err := role.FindActiveRoleByName(DefaultRoleName, tx)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logrus.Warnf("default role '%s' is missing or inactive, user registered without roles", DefaultRoleName)
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return []types.ID{r.ID}, nil
	})
}

// QueryUsers lists active users.
func QueryUsers(s *session.Session) ([]UserDetail, error) {
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	var users []User
	if err := db.Where("active = ?", true).Order("user_name ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	details := make([]UserDetail, 0, len(users))
	for _, u := range users {
		d, err := loadDetail(db, u)
		if err != nil {
			return nil, err
		}
		details = append(details, *d)
	}
	return details, nil
}

// DetailUser finds an active user.
func DetailUser(id types.ID, s *session.Session) (*UserDetail, error) {
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	u, err := FindActiveUser(id, db)
	if err != nil {
		return nil, err
	}
	return loadDetail(db, *u)
}

func FindUser(id types.ID, db *gorm.DB) (*User, error) {
	var u User
	if err := db.Where("id = ?", id).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func FindActiveUser(id types.ID, db *gorm.DB) (*User, error) {
	u, err := FindUser(id, db)
	if err != nil {
		return nil, err
	}
	if !u.Active {
		return nil, bizerror.ErrNotFound
	}
	return u, nil
}

// FindActiveUserByEmailOrUserName matches identifier against both the email and the user name.
func FindActiveUserByEmailOrUserName(identifier string, db *gorm.DB) (*User, error) {
	identifier = strings.TrimSpace(identifier)
	var u User
	if err := db.Where("(email = ? OR user_name = ?) AND active = ?", strings.ToLower(identifier), identifier, true).
		First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func UpdateUser(id types.ID, c UserUpdating, s *session.Session) (*UserDetail, error) {
	var detail *UserDetail
	var ev *event.EventRecord
	err := persistence.ActiveDataSourceManager.GormDB(s.Context).Transaction(func(tx *gorm.DB) error {
		u, err := FindUser(id, tx)
		if err != nil {
			return err
		}
		changes := map[string]interface{}{}
		var props []event.UpdatedProperty
		change := func(column, name, oldValue, newValue string, value interface{}) {
			if p, ok := event.PropertyChange(name, oldValue, newValue); ok {
				props = append(props, p)
				changes[column] = value
			}
		}

		email, userName := u.Email, u.UserName
		if c.Email != nil {
			email = strings.ToLower(strings.TrimSpace(*c.Email))
		}
		if c.UserName != nil {
			userName = strings.TrimSpace(*c.UserName)
		}
		if email != u.Email || userName != u.UserName {
			if err := checkIdentifiersAvailable(tx, emptyIfSame(email, u.Email), emptyIfSame(userName, u.UserName), u.ID); err != nil {
				return err
			}
		}
		change("email", "email", u.Email, email, email)
		change("user_name", "userName", u.UserName, userName, userName)
		if c.Name != nil {
			change("name", "name", u.Name, strings.TrimSpace(*c.Name), strings.TrimSpace(*c.Name))
		}
		if c.LastName != nil {
			change("last_name", "lastName", u.LastName, strings.TrimSpace(*c.LastName), strings.TrimSpace(*c.LastName))
		}
		if c.PhoneNumber != nil {
			change("phone_number", "phoneNumber", stringOf(u.PhoneNumber), *c.PhoneNumber, *c.PhoneNumber)
		}
		if c.Active != nil {
			change("active", "active", fmt.Sprint(u.Active), fmt.Sprint(*c.Active), *c.Active)
		}
		if c.Password != nil {
			secret, err := credential.HashSecret(*c.Password)
			if err != nil {
				return &bizerror.ErrBadParam{Cause: err}
			}
			changes["secret"] = secret
			props = append(props, event.UpdatedProperty{PropertyName: "password", PropertyDesc: "password"})
		}

		var relations []event.UpdatedRelation
		if c.RoleIDs != nil {
			relations, err = replaceBindings(tx, u.ID, *c.RoleIDs)
			if err != nil {
				return err
			}
		}

		now := types.CurrentTimestamp()
		if len(changes) > 0 {
			changes["update_time"] = now
			if err := tx.Model(&User{}).Where("id = ?", u.ID).Updates(changes).Error; err != nil {
				return translateWriteError(err)
			}
		}
		if len(props) > 0 || len(relations) > 0 {
			category := event.EventCategory(event.EventCategoryPropertyUpdated)
			if len(props) == 0 {
				category = event.EventCategoryRelationUpdated
			}
			ev, err = event.CreateEvent(event.SourceUser, u.ID, userName, category, props, relations, &s.Identity, now, tx)
			if err != nil {
				return err
			}
		}

		updated, err := FindUser(u.ID, tx)
		if err != nil {
			return err
		}
		detail, err = loadDetail(tx, *updated)
		return err
	})
	if err != nil {
		return nil, err
	}
	event.Dispatch(ev)
	return detail, nil
}

// DeactivateUser keeps the user and its bindings; the user just stops authenticating.
func DeactivateUser(id types.ID, s *session.Session) (*UserDetail, error) {
	if _, err := FindActiveUser(id, persistence.ActiveDataSourceManager.GormDB(s.Context)); err != nil {
		return nil, err
	}
	active := false
	d, err := UpdateUser(id, UserUpdating{Active: &active}, s)
	if err != nil {
		return nil, err
	}
	logrus.Infof("user %d '%s' deactivated by %d", d.ID, d.UserName, s.Identity.ID)
	return d, nil
}

// ReplaceRoles replaces the roles of the user. An empty roleIDs clears them.
func ReplaceRoles(id types.ID, roleIDs []types.ID, s *session.Session) (*UserDetail, error) {
	d, _, err := changeRoles(id, s, func(tx *gorm.DB, current []types.ID) ([]event.UpdatedRelation, int, error) {
		relations, err := replaceBindings(tx, id, roleIDs)
		return relations, len(relations), err
	})
	return d, err
}

// AddRoles binds the active roles among roleIDs and returns the number of new bindings.
func AddRoles(id types.ID, roleIDs []types.ID, s *session.Session) (*UserDetail, int, error) {
	return changeRoles(id, s, func(tx *gorm.DB, current []types.ID) ([]event.UpdatedRelation, int, error) {
		resolved, err := resolveRoleIDs(roleIDs, tx)
		if err != nil {
			return nil, 0, err
		}
		var added []types.ID
		for _, rid := range resolved {
			if !containsID(current, rid) {
				added = append(added, rid)
			}
		}
		if err := bindRoles(tx, id, added); err != nil {
			return nil, 0, err
		}
		return roleRelations(nil, added), len(added), nil
	})
}

// RemoveRoles unbinds roleIDs whatever the state of the roles and returns the number of removed bindings.
func RemoveRoles(id types.ID, roleIDs []types.ID, s *session.Session) (*UserDetail, int, error) {
	return changeRoles(id, s, func(tx *gorm.DB, current []types.ID) ([]event.UpdatedRelation, int, error) {
		var removed []types.ID
		for _, rid := range current {
			if containsID(roleIDs, rid) {
				removed = append(removed, rid)
			}
		}
		if len(removed) == 0 {
			return nil, 0, nil
		}
		if err := tx.Where("user_id = ? AND role_id IN (?)", id, removed).Delete(&RoleBinding{}).Error; err != nil {
			return nil, 0, err
		}
		return roleRelations(removed, nil), len(removed), nil
	})
}

func RemoveAllRoles(id types.ID, s *session.Session) (*UserDetail, int, error) {
	return changeRoles(id, s, func(tx *gorm.DB, current []types.ID) ([]event.UpdatedRelation, int, error) {
		if len(current) == 0 {
			return nil, 0, nil
		}
		if err := tx.Where("user_id = ?", id).Delete(&RoleBinding{}).Error; err != nil {
			return nil, 0, err
		}
		return roleRelations(current, nil), len(current), nil
	})
}

// QueryUserPermissions exposes the effective permissions of an active user.
func QueryUserPermissions(id types.ID, s *session.Session) (*UserPermissions, error) {
	db := persistence.ActiveDataSourceManager.GormDB(s.Context)
	u, err := FindActiveUser(id, db)
	if err != nil {
		return nil, err
	}
	detail, err := loadDetail(db, *u)
	if err != nil {
		return nil, err
	}
	perms := resolve(detail.Roles)
	return &UserPermissions{User: *detail, Permissions: perms, Total: len(perms)}, nil
}

// EffectivePermissions resolves the permissions granted by the active roles currently bound to uid.
func EffectivePermissions(uid types.ID, db *gorm.DB) (authority.Permissions, error) {
	roles, err := boundRoles(db, uid)
	if err != nil {
		return nil, err
	}
	return resolve(roles), nil
}

// ActiveRoleNames lists the names of the active roles bound to uid.
func ActiveRoleNames(uid types.ID, db *gorm.DB) ([]string, error) {
	roles, err := boundRoles(db, uid)
	if err != nil {
		return nil, err
	}
	names := []string{}
	for _, r := range roles {
		if r.Active {
			names = append(names, r.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func changeRoles(id types.ID, s *session.Session,
	apply func(tx *gorm.DB, current []types.ID) ([]event.UpdatedRelation, int, error)) (*UserDetail, int, error) {

	var detail *UserDetail
	var count int
	var ev *event.EventRecord
	err := persistence.ActiveDataSourceManager.GormDB(s.Context).Transaction(func(tx *gorm.DB) error {
		u, err := FindActiveUser(id, tx)
		if err != nil {
			return err
		}
		current, err := boundRoleIDs(tx, u.ID)
		if err != nil {
			return err
		}
		relations, n, err := apply(tx, current)
		if err != nil {
			return err
		}
		count = n
		if len(relations) > 0 {
			ev, err = event.CreateEvent(event.SourceUser, u.ID, u.UserName, event.EventCategoryRelationUpdated, nil, relations,
				&s.Identity, types.CurrentTimestamp(), tx)
			if err != nil {
				return err
			}
		}
		detail, err = loadDetail(tx, *u)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	event.Dispatch(ev)
	return detail, count, nil
}

func replaceBindings(tx *gorm.DB, uid types.ID, roleIDs []types.ID) ([]event.UpdatedRelation, error) {
	resolved, err := resolveRoleIDs(roleIDs, tx)
	if err != nil {
		return nil, err
	}
	current, err := boundRoleIDs(tx, uid)
	if err != nil {
		return nil, err
	}
	var removed, added []types.ID
	for _, rid := range current {
		if !containsID(resolved, rid) {
			removed = append(removed, rid)
		}
	}
	for _, rid := range resolved {
		if !containsID(current, rid) {
			added = append(added, rid)
		}
	}
	if len(removed) > 0 {
		if err := tx.Where("user_id = ? AND role_id IN (?)", uid, removed).Delete(&RoleBinding{}).Error; err != nil {
			return nil, err
		}
	}
	if err := bindRoles(tx, uid, added); err != nil {
		return nil, err
	}
	return roleRelations(removed, added), nil
}

// resolveRoleIDs keeps the active roles among ids. A non-empty request resolving to no active role is rejected.
func resolveRoleIDs(ids []types.ID, tx *gorm.DB) ([]types.ID, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	roles, err := role.FindActiveRolesByIDs(ids, tx)
	if err != nil {
		return nil, err
	}
	if len(roles) == 0 {
		return nil, &bizerror.ErrBadParam{Cause: ErrNoActiveRoles}
	}
	resolved := make([]types.ID, 0, len(roles))
	for _, r := range roles {
		resolved = append(resolved, r.ID)
	}
	return resolved, nil
}

func bindRoles(tx *gorm.DB, uid types.ID, roleIDs []types.ID) error {
	for _, rid := range roleIDs {
		if err := tx.Create(&RoleBinding{UserID: uid, RoleID: rid}).Error; err != nil {
			return err
		}
	}
	return nil
}

func boundRoleIDs(db *gorm.DB, uid types.ID) ([]types.ID, error) {
	var ids []types.ID
	if err := db.Model(&RoleBinding{}).Where("user_id = ?", uid).Pluck("role_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func boundRoles(db *gorm.DB, uid types.ID) ([]role.Role, error) {
	ids, err := boundRoleIDs(db, uid)
	if err != nil {
		return nil, err
	}
	return role.FindRolesByIDs(ids, db)
}

func loadDetail(db *gorm.DB, u User) (*UserDetail, error) {
	roles, err := boundRoles(db, u.ID)
	if err != nil {
		return nil, err
	}
	return &UserDetail{User: u, Roles: roles}, nil
}

func resolve(roles []role.Role) authority.Permissions {
	grants := make([]authority.Grant, 0, len(roles))
	for _, r := range roles {
		grants = append(grants, r)
	}
	return authority.Resolve(grants...)
}

// checkIdentifiersAvailable checks email and userName against users other than self. Empty values are skipped.
func checkIdentifiersAvailable(db *gorm.DB, email, userName string, self types.ID) error {
	if email != "" {
		var count int
		if err := db.Model(&User{}).Where("email = ? AND id <> ?", email, self).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return &bizerror.ErrConflict{Message: "email '" + email + "' is already in use"}
		}
	}
	if userName != "" {
		var count int
		if err := db.Model(&User{}).Where("user_name = ? AND id <> ?", userName, self).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return &bizerror.ErrConflict{Message: "user name '" + userName + "' is already in use"}
		}
	}
	return nil
}

func translateWriteError(err error) error {
	if persistence.IsUniqueViolation(err) {
		return &bizerror.ErrConflict{Message: "email or user name is already in use", Cause: err}
	}
	return err
}

func roleRelations(removed, added []types.ID) []event.UpdatedRelation {
	var relations []event.UpdatedRelation
	for _, rid := range removed {
		relations = append(relations, event.UpdatedRelation{PropertyName: "roles", PropertyDesc: "roles",
			TargetType: event.SourceRole, TargetTypeDesc: "role", OldTargetId: rid.String()})
	}
	for _, rid := range added {
		relations = append(relations, event.UpdatedRelation{PropertyName: "roles", PropertyDesc: "roles",
			TargetType: event.SourceRole, TargetTypeDesc: "role", NewTargetId: rid.String()})
	}
	return relations
}

func containsID(ids []types.ID, id types.ID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func emptyIfSame(value, original string) string {
	if value == original {
		return ""
	}
	return value
}

func stringOf(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
