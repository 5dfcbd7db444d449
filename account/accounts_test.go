package account_test

import (
	"context"
	"errors"

	"blogapi/account"
	"blogapi/authority"
	"blogapi/bizerror"
	"blogapi/credential"
	"blogapi/event"
	"blogapi/persistence"
	"blogapi/role"
	"blogapi/session"
	"blogapi/testinfra"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func createRole(db *gorm.DB, id types.ID, name string, active bool, perms ...string) {
	now := types.CurrentTimestamp()
	Expect(db.Create(&role.Role{ID: id, Name: name, Active: active, Permissions: authority.Permissions(perms),
		CreateTime: now, UpdateTime: now}).Error).To(BeNil())
}

func roleIDs(d *account.UserDetail) []types.ID {
	ids := []types.ID{}
	for _, r := range d.Roles {
		ids = append(ids, r.ID)
	}
	return ids
}

func creation(userName string, roleIDs ...types.ID) account.UserCreation {
	return account.UserCreation{Name: "Ann", LastName: "Lee", UserName: userName, Email: userName + "@blog.mx",
		Password: "secret123", RoleIDs: roleIDs}
}

var _ = Describe("Accounts", func() {
	var (
		testDatabase *testinfra.TestDatabase
		db           *gorm.DB
		sec          *session.Session
	)
	BeforeEach(func() {
		Expect(credential.SetCost(4)).To(BeNil())
		testDatabase = testinfra.StartTestDatabase("blogapi")
		persistence.ActiveDataSourceManager = testDatabase.DS
		db = testDatabase.DS.GormDB(context.Background())
		Expect(db.AutoMigrate(&account.User{}, &account.RoleBinding{}, &role.Role{}, &event.EventRecord{}).Error).To(BeNil())
		sec = testinfra.BuildSession(1, authority.AddUser)
	})
	AfterEach(func() {
		testinfra.StopTestDatabase(testDatabase)
	})

	Describe("CreateUser", func() {
		It("should create user with hashed secret and active roles only", func() {
			createRole(db, 5, "editor", true, authority.AddPost)
			createRole(db, 6, "ghost", false, authority.AddUser)

			d, err := account.CreateUser(creation("ann", 5, 6, 99), sec)
			Expect(err).To(BeNil())
			Expect(d.ID).ToNot(BeZero())
			Expect(d.Active).To(BeTrue())
			Expect(d.Email).To(Equal("ann@blog.mx"))
			Expect(roleIDs(d)).To(Equal([]types.ID{5}))

			u, err := account.FindUser(d.ID, db)
			Expect(err).To(BeNil())
			Expect(u.Secret).ToNot(Equal("secret123"))
			Expect(credential.VerifySecret("secret123", u.Secret)).To(BeTrue())
		})

		It("should reject non-empty roles resolving to no active role", func() {
			createRole(db, 6, "ghost", false, authority.AddUser)

			d, err := account.CreateUser(creation("ann", 6, 99), sec)
			Expect(d).To(BeNil())
			var badParam *bizerror.ErrBadParam
			Expect(errors.As(err, &badParam)).To(BeTrue())
			Expect(errors.Is(err, account.ErrNoActiveRoles)).To(BeTrue())

			var count int
			Expect(db.Model(&account.User{}).Count(&count).Error).To(BeNil())
			Expect(count).To(BeZero())
		})

		It("should reject duplicated email or user name", func() {
			_, err := account.CreateUser(creation("ann"), sec)
			Expect(err).To(BeNil())

			c := creation("ann")
			c.Email = "other@blog.mx"
			_, err = account.CreateUser(c, sec)
			var conflict *bizerror.ErrConflict
			Expect(errors.As(err, &conflict)).To(BeTrue())
			Expect(conflict.Message).To(Equal("user name 'ann' is already in use"))

			c = creation("bob")
			c.Email = "ANN@blog.mx"
			_, err = account.CreateUser(c, sec)
			Expect(errors.As(err, &conflict)).To(BeTrue())
			Expect(conflict.Message).To(Equal("email 'ann@blog.mx' is already in use"))
		})
	})

	Describe("RegisterUser", func() {
		It("should attach the default role when it is active", func() {
			createRole(db, 5, account.DefaultRoleName, true, authority.ListPosts)
			createRole(db, 6, "editor", true, authority.AddPost)

			d, err := account.RegisterUser(creation("ann", 6), &session.Session{Context: context.Background()})
			Expect(err).To(BeNil())
			Expect(roleIDs(d)).To(Equal([]types.ID{5}))
		})

		It("should register without roles when the default role is inactive", func() {
			createRole(db, 5, account.DefaultRoleName, false, authority.ListPosts)

			d, err := account.RegisterUser(creation("ann"), &session.Session{Context: context.Background()})
			Expect(err).To(BeNil())
			Expect(roleIDs(d)).To(BeEmpty())
		})
	})

	Describe("Query", func() {
		It("should expose active users only", func() {
			ann, err := account.CreateUser(creation("ann"), sec)
			Expect(err).To(BeNil())
			bob, err := account.CreateUser(creation("bob"), sec)
			Expect(err).To(BeNil())
			_, err = account.DeactivateUser(bob.ID, sec)
			Expect(err).To(BeNil())

			users, err := account.QueryUsers(sec)
			Expect(err).To(BeNil())
			Expect(len(users)).To(Equal(1))
			Expect(users[0].ID).To(Equal(ann.ID))

			_, err = account.DetailUser(bob.ID, sec)
			Expect(err).To(Equal(bizerror.ErrNotFound))

			_, err = account.DeactivateUser(bob.ID, sec)
			Expect(err).To(Equal(bizerror.ErrNotFound))
		})

		It("should find the same user by user name and by email", func() {
			ann, err := account.CreateUser(creation("admin"), sec)
			Expect(err).To(BeNil())

			byName, err := account.FindActiveUserByEmailOrUserName("admin", db)
			Expect(err).To(BeNil())
			byEmail, err := account.FindActiveUserByEmailOrUserName("Admin@blog.mx", db)
			Expect(err).To(BeNil())
			Expect(byName.ID).To(Equal(ann.ID))
			Expect(byEmail.ID).To(Equal(ann.ID))

			_, err = account.DeactivateUser(ann.ID, sec)
			Expect(err).To(BeNil())
			_, err = account.FindActiveUserByEmailOrUserName("admin", db)
			Expect(errors.Is(err, gorm.ErrRecordNotFound)).To(BeTrue())
		})
	})

	Describe("UpdateUser", func() {
		It("should update fields partially and re-hash password", func() {
			ann, err := account.CreateUser(creation("ann"), sec)
			Expect(err).To(BeNil())

			name, password := "Anna", "another-secret"
			d, err := account.UpdateUser(ann.ID, account.UserUpdating{Name: &name, Password: &password}, sec)
			Expect(err).To(BeNil())
			Expect(d.Name).To(Equal("Anna"))
			Expect(d.LastName).To(Equal("Lee"))
			Expect(d.UserName).To(Equal("ann"))

			u, err := account.FindUser(ann.ID, db)
			Expect(err).To(BeNil())
			Expect(credential.VerifySecret("another-secret", u.Secret)).To(BeTrue())
		})

		It("should re-check uniqueness against other users only", func() {
			ann, err := account.CreateUser(creation("ann"), sec)
			Expect(err).To(BeNil())
			_, err = account.CreateUser(creation("bob"), sec)
			Expect(err).To(BeNil())

			same := "ann@blog.mx"
			_, err = account.UpdateUser(ann.ID, account.UserUpdating{Email: &same}, sec)
			Expect(err).To(BeNil())

			taken := "bob"
			_, err = account.UpdateUser(ann.ID, account.UserUpdating{UserName: &taken}, sec)
			var conflict *bizerror.ErrConflict
			Expect(errors.As(err, &conflict)).To(BeTrue())
		})

		It("should clear roles with empty role ids and reactivate", func() {
			createRole(db, 5, "editor", true, authority.AddPost)
			ann, err := account.CreateUser(creation("ann", 5), sec)
			Expect(err).To(BeNil())
			_, err = account.DeactivateUser(ann.ID, sec)
			Expect(err).To(BeNil())

			active := true
			empty := []types.ID{}
			d, err := account.UpdateUser(ann.ID, account.UserUpdating{Active: &active, RoleIDs: &empty}, sec)
			Expect(err).To(BeNil())
			Expect(d.Active).To(BeTrue())
			Expect(roleIDs(d)).To(BeEmpty())

			inactiveOnly := []types.ID{99}
			_, err = account.UpdateUser(ann.ID, account.UserUpdating{RoleIDs: &inactiveOnly}, sec)
			Expect(errors.Is(err, account.ErrNoActiveRoles)).To(BeTrue())
		})
	})

	Describe("Role assignment", func() {
		BeforeEach(func() {
			createRole(db, 5, "r5", true, authority.AddPost)
			createRole(db, 6, "r6", true, authority.EditPost)
			createRole(db, 7, "r7", true, authority.DeletePost)
			createRole(db, 8, "r8", false, authority.AddUser)
		})

		It("should remove only the bound roles among the request", func() {
			ann, err := account.CreateUser(creation("ann", 5, 7), sec)
			Expect(err).To(BeNil())

			d, removed, err := account.RemoveRoles(ann.ID, []types.ID{5, 6}, sec)
			Expect(err).To(BeNil())
			Expect(removed).To(Equal(1))
			Expect(roleIDs(d)).To(Equal([]types.ID{7}))
		})

		It("should add roles without removing and report new bindings", func() {
			ann, err := account.CreateUser(creation("ann", 5), sec)
			Expect(err).To(BeNil())

			d, added, err := account.AddRoles(ann.ID, []types.ID{5, 6, 8}, sec)
			Expect(err).To(BeNil())
			Expect(added).To(Equal(1))
			Expect(roleIDs(d)).To(Equal([]types.ID{5, 6}))

			_, added, err = account.AddRoles(ann.ID, []types.ID{5, 6}, sec)
			Expect(err).To(BeNil())
			Expect(added).To(BeZero())

			_, _, err = account.AddRoles(ann.ID, []types.ID{8}, sec)
			Expect(errors.Is(err, account.ErrNoActiveRoles)).To(BeTrue())
		})

		It("should replace roles", func() {
			ann, err := account.CreateUser(creation("ann", 5, 6), sec)
			Expect(err).To(BeNil())

			d, err := account.ReplaceRoles(ann.ID, []types.ID{6, 7, 8}, sec)
			Expect(err).To(BeNil())
			Expect(roleIDs(d)).To(Equal([]types.ID{6, 7}))

			d, err = account.ReplaceRoles(ann.ID, []types.ID{}, sec)
			Expect(err).To(BeNil())
			Expect(roleIDs(d)).To(BeEmpty())

			records, err := event.QueryEvents(event.SourceUser, uint64(ann.ID), db)
			Expect(err).To(BeNil())
			Expect(len(records)).To(Equal(3))
			Expect(records[1].EventCategory).To(Equal(event.EventCategory(event.EventCategoryRelationUpdated)))
		})

		It("should remove all roles idempotently", func() {
			ann, err := account.CreateUser(creation("ann", 5, 6), sec)
			Expect(err).To(BeNil())

			_, removed, err := account.RemoveAllRoles(ann.ID, sec)
			Expect(err).To(BeNil())
			Expect(removed).To(Equal(2))

			_, removed, err = account.RemoveAllRoles(ann.ID, sec)
			Expect(err).To(BeNil())
			Expect(removed).To(BeZero())
		})

		It("should keep bindings to roles deactivated later but stop resolving them", func() {
			ann, err := account.CreateUser(creation("ann", 5, 6), sec)
			Expect(err).To(BeNil())

			perms, err := account.EffectivePermissions(ann.ID, db)
			Expect(err).To(BeNil())
			Expect(perms).To(Equal(authority.Permissions{authority.AddPost, authority.EditPost}))

			_, err = role.DeactivateRole(6, sec)
			Expect(err).To(BeNil())

			perms, err = account.EffectivePermissions(ann.ID, db)
			Expect(err).To(BeNil())
			Expect(perms).To(Equal(authority.Permissions{authority.AddPost}))

			names, err := account.ActiveRoleNames(ann.ID, db)
			Expect(err).To(BeNil())
			Expect(names).To(Equal([]string{"r5"}))

			up, err := account.QueryUserPermissions(ann.ID, sec)
			Expect(err).To(BeNil())
			Expect(up.Total).To(Equal(1))
			Expect(roleIDs(&up.User)).To(Equal([]types.ID{5, 6}))
		})

		It("should resolve empty permissions for user without roles", func() {
			perms, err := account.EffectivePermissions(12345, db)
			Expect(err).To(BeNil())
			Expect(perms).To(Equal(authority.Permissions{}))
		})
	})
})
