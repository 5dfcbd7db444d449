package account_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"

	"blogapi/account"
	"blogapi/authority"
	"blogapi/bizerror"
	"blogapi/role"
	"blogapi/session"
	"blogapi/testinfra"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("UserRestApi", func() {
	newRouter := func(perms ...string) *gin.Engine {
		router := gin.New()
		router.Use(bizerror.ErrorHandling())
		account.RegisterUsersRestAPI(router, testinfra.InjectSession(testinfra.BuildSession(10, perms...)))
		return router
	}
	ann := account.UserDetail{
		User:  account.User{ID: 100, Name: "Ann", LastName: "Lee", UserName: "ann", Email: "ann@blog.mx", Secret: "hash", Active: true},
		Roles: []role.Role{{ID: 7, Name: "r7", Active: true, Permissions: authority.Permissions{}}},
	}
	annJSON := `{"id":"100","name":"Ann","lastName":"Lee","userName":"ann","email":"ann@blog.mx","phoneNumber":null,
		"active":true,"createTime":null,"updateTime":null,
		"roles":[{"id":"7","name":"r7","description":null,"active":true,"permissions":[],"createTime":null,"updateTime":null}]}`

	Describe("handleCreateUser", func() {
		It("should validate body and itemize violations", func() {
			router := newRouter(authority.AddUser)
			req := httptest.NewRequest(http.MethodPost, account.PathUsers,
				strings.NewReader(`{"name":"Ann","lastName":"Lee","userName":"ann","email":"not-an-email","password":"123"}`))
			status, body, _ := testinfra.ExecuteRequest(req, router)
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(body).To(MatchJSON(`{"code":"common.bad_param",
				"message":"Key: 'UserCreation.Email' Error:Field validation for 'Email' failed on the 'email' tag\n` +
				`Key: 'UserCreation.Password' Error:Field validation for 'Password' failed on the 'gte' tag",
				"data":[{"field":"Email","rule":"email"},{"field":"Password","rule":"gte","param":"8"}]}`))
		})

		It("should create user without leaking the secret", func() {
			var got account.UserCreation
			account.CreateUserFunc = func(c account.UserCreation, s *session.Session) (*account.UserDetail, error) {
				got = c
				return &ann, nil
			}
			router := newRouter(authority.AddUser)
			req := httptest.NewRequest(http.MethodPost, account.PathUsers,
				strings.NewReader(`{"name":"Ann","lastName":"Lee","userName":"ann","email":"ann@blog.mx","password":"secret123","roleIds":["7"]}`))
			status, body, _ := testinfra.ExecuteRequest(req, router)
			Expect(status).To(Equal(http.StatusCreated))
			Expect(body).To(MatchJSON(annJSON))
			Expect(got.RoleIDs).To(Equal([]types.ID{7}))
			Expect(got.Password).To(Equal("secret123"))
		})

		It("should forbid caller without permission", func() {
			router := newRouter(authority.ListUsers)
			req := httptest.NewRequest(http.MethodPost, account.PathUsers, strings.NewReader(`{}`))
			status, _, _ := testinfra.ExecuteRequest(req, router)
			Expect(status).To(Equal(http.StatusForbidden))
		})
	})

	Describe("handleRemoveRoles", func() {
		It("should respond user and removed count", func() {
			var gotID types.ID
			var gotRoles []types.ID
			account.RemoveRolesFunc = func(id types.ID, roleIDs []types.ID, s *session.Session) (*account.UserDetail, int, error) {
				gotID, gotRoles = id, roleIDs
				return &ann, 1, nil
			}
			router := newRouter(authority.RemoveUserRoles)
			req := httptest.NewRequest(http.MethodDelete, account.PathUsers+"/100/roles", strings.NewReader(`{"roleIds":["5","6"]}`))
			status, body, _ := testinfra.ExecuteRequest(req, router)
			Expect(status).To(Equal(http.StatusOK))
			Expect(body).To(MatchJSON(`{"removed":1,"user":` + annJSON + `}`))
			Expect(gotID).To(Equal(types.ID(100)))
			Expect(gotRoles).To(Equal([]types.ID{5, 6}))
		})

		It("should respond bad request when no role is active", func() {
			account.AddRolesFunc = func(id types.ID, roleIDs []types.ID, s *session.Session) (*account.UserDetail, int, error) {
				return nil, 0, &bizerror.ErrBadParam{Cause: account.ErrNoActiveRoles}
			}
			router := newRouter(authority.AddUserRoles)
			req := httptest.NewRequest(http.MethodPost, account.PathUsers+"/100/roles", strings.NewReader(`{"roleIds":["8"]}`))
			status, body, _ := testinfra.ExecuteRequest(req, router)
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(body).To(MatchJSON(`{"code":"common.bad_param","message":"none of the requested roles is active","data":null}`))
		})
	})

	Describe("handleDetailUser", func() {
		It("should respond not found for inactive user", func() {
			account.DetailUserFunc = func(id types.ID, s *session.Session) (*account.UserDetail, error) {
				return nil, bizerror.ErrNotFound
			}
			router := newRouter(authority.GetUser)
			req := httptest.NewRequest(http.MethodGet, account.PathUsers+"/100", nil)
			status, _, _ := testinfra.ExecuteRequest(req, router)
			Expect(status).To(Equal(http.StatusNotFound))
		})

		It("should reject invalid id", func() {
			router := newRouter(authority.GetUser)
			req := httptest.NewRequest(http.MethodGet, account.PathUsers+"/x1", nil)
			status, body, _ := testinfra.ExecuteRequest(req, router)
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(body).To(MatchJSON(`{"code":"common.bad_param","message":"invalid id 'x1'","data":null}`))
		})
	})

	Describe("handleQueryUserPermissions", func() {
		It("should respond effective permissions", func() {
			account.QueryUserPermissionsFunc = func(id types.ID, s *session.Session) (*account.UserPermissions, error) {
				return &account.UserPermissions{User: ann, Permissions: authority.Permissions{authority.AddPost}, Total: 1}, nil
			}
			router := newRouter(authority.GetUserPermissions)
			req := httptest.NewRequest(http.MethodGet, account.PathUsers+"/100/permissions", nil)
			status, body, _ := testinfra.ExecuteRequest(req, router)
			Expect(status).To(Equal(http.StatusOK))
			Expect(body).To(MatchJSON(`{"user":` + annJSON + `,"permissions":["agregar_post"],"totalPermissions":1}`))
		})

		It("should hide unexpected error", func() {
			account.QueryUserPermissionsFunc = func(id types.ID, s *session.Session) (*account.UserPermissions, error) {
				return nil, errors.New("boom")
			}
			router := newRouter(authority.GetUserPermissions)
			req := httptest.NewRequest(http.MethodGet, account.PathUsers+"/100/permissions", nil)
			status, body, _ := testinfra.ExecuteRequest(req, router)
			Expect(status).To(Equal(http.StatusInternalServerError))
			Expect(body).To(MatchJSON(`{"code":"common.internal_server_error","message":"internal server error","data":null}`))
		})
	})

	Describe("handleUpdateUser", func() {
		It("should update profile with edit permission only", func() {
			var got account.UserUpdating
			account.UpdateUserFunc = func(id types.ID, c account.UserUpdating, s *session.Session) (*account.UserDetail, error) {
				got = c
				return &ann, nil
			}
			router := newRouter(authority.EditUser)
			req := httptest.NewRequest(http.MethodPut, account.PathUsers+"/100", strings.NewReader(`{"name":"Ann"}`))
			status, body, _ := testinfra.ExecuteRequest(req, router)
			Expect(status).To(Equal(http.StatusOK))
			Expect(body).To(MatchJSON(annJSON))
			Expect(*got.Name).To(Equal("Ann"))
		})

		It("should forbid role changes without role assignment permission", func() {
			called := false
			account.UpdateUserFunc = func(id types.ID, c account.UserUpdating, s *session.Session) (*account.UserDetail, error) {
				called = true
				return &ann, nil
			}
			router := newRouter(authority.EditUser)
			req := httptest.NewRequest(http.MethodPut, account.PathUsers+"/10", strings.NewReader(`{"roleIds":["1"]}`))
			status, body, _ := testinfra.ExecuteRequest(req, router)
			Expect(status).To(Equal(http.StatusForbidden))
			Expect(body).To(MatchJSON(`{"code":"security.forbidden","message":"access forbidden","data":null}`))
			Expect(called).To(BeFalse())
		})

		It("should forbid activation changes without deactivation permission", func() {
			called := false
			account.UpdateUserFunc = func(id types.ID, c account.UserUpdating, s *session.Session) (*account.UserDetail, error) {
				called = true
				return &ann, nil
			}
			router := newRouter(authority.EditUser, authority.AssignUserRoles)
			req := httptest.NewRequest(http.MethodPut, account.PathUsers+"/100", strings.NewReader(`{"active":false}`))
			status, _, _ := testinfra.ExecuteRequest(req, router)
			Expect(status).To(Equal(http.StatusForbidden))
			Expect(called).To(BeFalse())
		})

		It("should accept role and activation changes with their permissions", func() {
			var got account.UserUpdating
			account.UpdateUserFunc = func(id types.ID, c account.UserUpdating, s *session.Session) (*account.UserDetail, error) {
				got = c
				return &ann, nil
			}
			router := newRouter(authority.EditUser, authority.AssignUserRoles, authority.DeactivateUser)
			req := httptest.NewRequest(http.MethodPut, account.PathUsers+"/100", strings.NewReader(`{"active":false,"roleIds":["7"]}`))
			status, _, _ := testinfra.ExecuteRequest(req, router)
			Expect(status).To(Equal(http.StatusOK))
			Expect(*got.Active).To(BeFalse())
			Expect(*got.RoleIDs).To(Equal([]types.ID{7}))
		})

		It("should reject user name shaped like an email", func() {
			router := newRouter(authority.EditUser)
			req := httptest.NewRequest(http.MethodPut, account.PathUsers+"/100", strings.NewReader(`{"userName":"victim@blog.mx"}`))
			status, body, _ := testinfra.ExecuteRequest(req, router)
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(body).To(ContainSubstring(`"rule":"excludesall"`))
		})
	})
})
