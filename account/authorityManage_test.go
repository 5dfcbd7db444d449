package account_test

import (
	"context"

	"blogapi/account"
	"blogapi/authority"
	"blogapi/config"
	"blogapi/credential"
	"blogapi/event"
	"blogapi/persistence"
	"blogapi/role"
	"blogapi/testinfra"

	"github.com/jinzhu/gorm"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("AuthorityManage", func() {
	var (
		testDatabase *testinfra.TestDatabase
		db           *gorm.DB
		admin        = config.AdminConfig{UserName: "admin", Email: "admin@blog.mx", Password: "Admin123"}
	)
	BeforeEach(func() {
		Expect(credential.SetCost(4)).To(BeNil())
		testDatabase = testinfra.StartTestDatabase("blogapi")
		persistence.ActiveDataSourceManager = testDatabase.DS
		db = testDatabase.DS.GormDB(context.Background())
		Expect(db.AutoMigrate(&account.User{}, &account.RoleBinding{}, &role.Role{}, &event.EventRecord{}).Error).To(BeNil())
	})
	AfterEach(func() {
		testinfra.StopTestDatabase(testDatabase)
	})

	Describe("DefaultSecurityConfiguration", func() {
		It("should store the administrator email in lower case", func() {
			Expect(account.DefaultSecurityConfiguration(config.AdminConfig{UserName: " root ", Email: " Root@Blog.MX ", Password: "Admin123"})).To(BeNil())

			u, err := account.FindActiveUserByEmailOrUserName("ROOT@blog.mx", db)
			Expect(err).To(BeNil())
			Expect(u.UserName).To(Equal("root"))
			Expect(u.Email).To(Equal("root@blog.mx"))

			u, err = account.FindActiveUserByEmailOrUserName("root", db)
			Expect(err).To(BeNil())
			Expect(u.Email).To(Equal("root@blog.mx"))
		})

		It("should prepare default security configuration idempotently", func() {
			Expect(account.DefaultSecurityConfiguration(admin)).To(BeNil())

			var users []account.User
			Expect(db.Find(&users).Error).To(BeNil())
			Expect(len(users)).To(Equal(1))
			Expect(users[0].UserName).To(Equal("admin"))
			Expect(users[0].Email).To(Equal("admin@blog.mx"))
			Expect(users[0].Active).To(BeTrue())
			Expect(credential.VerifySecret("Admin123", users[0].Secret)).To(BeTrue())

			var roles []role.Role
			Expect(db.Order("name ASC").Find(&roles).Error).To(BeNil())
			Expect(len(roles)).To(Equal(3))
			Expect(roles[0].Name).To(Equal(account.AdminRoleName))
			Expect(roles[0].Permissions).To(Equal(authority.All()))
			Expect(roles[1].Name).To(Equal(account.EditorRoleName))
			Expect(roles[2].Name).To(Equal(account.DefaultRoleName))

			perms, err := account.EffectivePermissions(users[0].ID, db)
			Expect(err).To(BeNil())
			Expect(perms).To(Equal(authority.All()))

			Expect(account.DefaultSecurityConfiguration(admin)).To(BeNil())
			var users1 []account.User
			Expect(db.Find(&users1).Error).To(BeNil())
			Expect(len(users1)).To(Equal(1))
			Expect(users1[0].ID).To(Equal(users[0].ID))

			var bindings []account.RoleBinding
			Expect(db.Find(&bindings).Error).To(BeNil())
			Expect(bindings).To(Equal([]account.RoleBinding{{UserID: users[0].ID, RoleID: roles[0].ID}}))
		})

		It("should refresh the administrator role and never re-create the administrator", func() {
			Expect(account.DefaultSecurityConfiguration(admin)).To(BeNil())

			adminRole, err := role.FindActiveRoleByName(account.AdminRoleName, db)
			Expect(err).To(BeNil())
			Expect(db.Model(&role.Role{}).Where("id = ?", adminRole.ID).
				Updates(map[string]interface{}{"active": false, "permissions": authority.Permissions{authority.Login}}).Error).To(BeNil())
			Expect(db.Model(&account.User{}).Where("user_name = ?", "admin").Update("email", "root@blog.mx").Error).To(BeNil())
			Expect(db.Delete(&account.RoleBinding{}).Error).To(BeNil())

			Expect(account.DefaultSecurityConfiguration(config.AdminConfig{UserName: "admin", Email: "x@blog.mx", Password: "changed"})).To(BeNil())

			refreshed, err := role.FindRole(adminRole.ID, db)
			Expect(err).To(BeNil())
			Expect(refreshed.Active).To(BeTrue())
			Expect(refreshed.Permissions).To(Equal(authority.All()))

			u, err := account.FindActiveUserByEmailOrUserName("admin", db)
			Expect(err).To(BeNil())
			Expect(u.Email).To(Equal("root@blog.mx"))
			Expect(credential.VerifySecret("Admin123", u.Secret)).To(BeTrue())

			names, err := account.ActiveRoleNames(u.ID, db)
			Expect(err).To(BeNil())
			Expect(names).To(Equal([]string{account.AdminRoleName}))
		})

		It("should keep customized seed roles", func() {
			Expect(account.DefaultSecurityConfiguration(admin)).To(BeNil())
			reader, err := role.FindActiveRoleByName(account.DefaultRoleName, db)
			Expect(err).To(BeNil())
			Expect(db.Model(&role.Role{}).Where("id = ?", reader.ID).
				Update("permissions", authority.Permissions{authority.ListPosts}).Error).To(BeNil())

			Expect(account.DefaultSecurityConfiguration(admin)).To(BeNil())
			reader, err = role.FindActiveRoleByName(account.DefaultRoleName, db)
			Expect(err).To(BeNil())
			Expect(reader.Permissions).To(Equal(authority.Permissions{authority.ListPosts}))
		})
	})
})
