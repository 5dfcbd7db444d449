package account

import (
	"errors"
	"net/http"

	"blogapi/authority"
	"blogapi/bizerror"
	"blogapi/session"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

var (
	PathUsers = "/v1/users"
)

func RegisterUsersRestAPI(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	g := r.Group(PathUsers, middleWares...)
	g.POST("", session.RequirePermissions(authority.AddUser), handleCreateUser)
	g.GET("", session.RequirePermissions(authority.ListUsers), handleQueryUsers)
	g.GET("/:id", session.RequirePermissions(authority.GetUser), handleDetailUser)
	g.PUT("/:id", session.RequirePermissions(authority.EditUser), handleUpdateUser)
	g.PATCH("/:id/deactivate", session.RequirePermissions(authority.DeactivateUser), handleDeactivateUser)
	g.GET("/:id/permissions", session.RequirePermissions(authority.GetUserPermissions), handleQueryUserPermissions)

	g.PUT("/:id/roles", session.RequirePermissions(authority.AssignUserRoles), handleReplaceRoles)
	g.POST("/:id/roles", session.RequirePermissions(authority.AddUserRoles), handleAddRoles)
	g.DELETE("/:id/roles", session.RequirePermissions(authority.RemoveUserRoles), handleRemoveRoles)
	g.DELETE("/:id/roles/all", session.RequirePermissions(authority.RemoveAllUserRoles), handleRemoveAllRoles)
}

func handleCreateUser(c *gin.Context) {
	creation := UserCreation{}
	if err := c.ShouldBindBodyWith(&creation, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	u, err := CreateUserFunc(creation, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusCreated, u)
}

func handleQueryUsers(c *gin.Context) {
	users, err := QueryUsersFunc(session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, users)
}

func handleDetailUser(c *gin.Context) {
	id := ParseIDParam(c, "id")
	u, err := DetailUserFunc(id, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, u)
}

func handleUpdateUser(c *gin.Context) {
	id := ParseIDParam(c, "id")
	updating := UserUpdating{}
	if err := c.ShouldBindBodyWith(&updating, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	s := session.ExtractSessionFromGinContext(c)
	if updating.RoleIDs != nil && !s.Perms.HasAny(authority.AssignUserRoles) {
		panic(bizerror.ErrForbidden)
	}
	if updating.Active != nil && !s.Perms.HasAny(authority.DeactivateUser) {
		panic(bizerror.ErrForbidden)
	}
	u, err := UpdateUserFunc(id, updating, s)
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, u)
}

func handleDeactivateUser(c *gin.Context) {
	id := ParseIDParam(c, "id")
	u, err := DeactivateUserFunc(id, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, u)
}

func handleQueryUserPermissions(c *gin.Context) {
	id := ParseIDParam(c, "id")
	up, err := QueryUserPermissionsFunc(id, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, up)
}

func handleReplaceRoles(c *gin.Context) {
	id := ParseIDParam(c, "id")
	change := bindRolesChange(c)
	u, err := ReplaceRolesFunc(id, change.RoleIDs, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, u)
}

func handleAddRoles(c *gin.Context) {
	id := ParseIDParam(c, "id")
	change := bindRolesChange(c)
	u, added, err := AddRolesFunc(id, change.RoleIDs, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, gin.H{"user": u, "added": added})
}

func handleRemoveRoles(c *gin.Context) {
	id := ParseIDParam(c, "id")
	change := bindRolesChange(c)
	u, removed, err := RemoveRolesFunc(id, change.RoleIDs, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, gin.H{"user": u, "removed": removed})
}

func handleRemoveAllRoles(c *gin.Context) {
	id := ParseIDParam(c, "id")
	u, removed, err := RemoveAllRolesFunc(id, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, gin.H{"user": u, "removed": removed})
}

func bindRolesChange(c *gin.Context) RolesChange {
	change := RolesChange{}
	if err := c.ShouldBindBodyWith(&change, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	return change
}

// ParseIDParam parses the path parameter name as an id, panicking with a bad param error otherwise.
func ParseIDParam(c *gin.Context, name string) types.ID {
	id, err := types.ParseID(c.Param(name))
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: errors.New("invalid id '" + c.Param(name) + "'")})
	}
	return id
}
