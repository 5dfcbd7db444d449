package account

import (
	"context"
	"errors"
	"strings"

	"blogapi/authority"
	"blogapi/common"
	"blogapi/config"
	"blogapi/credential"
	"blogapi/persistence"
	"blogapi/role"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sirupsen/logrus"
)

const (
	AdminRoleName   = "Administrador"
	EditorRoleName  = "editor"
	DefaultRoleName = "reader"
)

var (
	editorPermissions = authority.Permissions{
		authority.AddPost, authority.ListPosts, authority.GetPost, authority.ListAuthorPosts, authority.EditPost,
		authority.DeletePost, authority.PublishPost, authority.UnpublishPost,
		authority.AddComment, authority.ListComments, authority.GetComment, authority.ListPostComments,
		authority.ListAuthorComments, authority.EditComment, authority.DeleteComment, authority.ModerateComment,
		authority.Whoami,
	}
	readerPermissions = authority.Permissions{
		authority.ListPosts, authority.GetPost, authority.ListAuthorPosts,
		authority.AddComment, authority.ListComments, authority.GetComment, authority.ListPostComments,
		authority.Whoami,
	}
)

// DefaultSecurityConfiguration refreshes the administrator role to the whole catalog, seeds the editor and reader
// roles when missing and makes sure the initial administrator exists and holds the administrator role.
func DefaultSecurityConfiguration(admin config.AdminConfig) error {
	db := persistence.ActiveDataSourceManager.GormDB(context.Background())
	return db.Transaction(func(tx *gorm.DB) error {
		adminRole, err := role.EnsureRole(AdminRoleName, "Full access to every operation", authority.All(), true, tx)
		if err != nil {
			return err
		}
		if _, err := role.EnsureRole(EditorRoleName, "Writes and moderates content", editorPermissions, false, tx); err != nil {
			return err
		}
		if _, err := role.EnsureRole(DefaultRoleName, "Reads and comments content", readerPermissions, false, tx); err != nil {
			return err
		}

		userName := strings.TrimSpace(admin.UserName)
		var u User
		err = tx.Where("user_name = ?", userName).First(&u).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			secret, err := credential.HashSecret(admin.Password)
			if err != nil {
				return err
			}
			now := types.CurrentTimestamp()
			u = User{ID: common.NextId(userIdWorker), Name: "Admin", LastName: "Admin", UserName: userName,
				Email: strings.ToLower(strings.TrimSpace(admin.Email)), Secret: secret, Active: true, CreateTime: now, UpdateTime: now}
			if err := tx.Create(&u).Error; err != nil {
				return err
			}
			logrus.Infof("initial administrator '%s' created", u.UserName)
		}

		current, err := boundRoleIDs(tx, u.ID)
		if err != nil {
			return err
		}
		if !containsID(current, adminRole.ID) {
			if err := bindRoles(tx, u.ID, []types.ID{adminRole.ID}); err != nil {
				return err
			}
			logrus.Infof("role '%s' attached to '%s'", adminRole.Name, u.UserName)
		}
		return nil
	})
}
