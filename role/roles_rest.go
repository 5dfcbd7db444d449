package role

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
	PathRoles       = "/v1/roles"
	PathPermissions = "/v1/permissions"
)

func RegisterRolesRestAPI(r *gin.Engine, middleWares ...gin.HandlerFunc) {
	g := r.Group(PathRoles, middleWares...)
	g.POST("", session.RequirePermissions(authority.AddRole), handleCreateRole)
	g.GET("", session.RequirePermissions(authority.ListRoles), handleQueryRoles)
	g.GET("/:id", session.RequirePermissions(authority.GetRole), handleDetailRole)
	g.PUT("/:id", session.RequirePermissions(authority.EditRole), handleUpdateRole)
	g.PATCH("/:id/deactivate", session.RequirePermissions(authority.DeactivateRole), handleDeactivateRole)
	g.PATCH("/:id/activate", session.RequirePermissions(authority.ActivateRole), handleActivateRole)

	g.GET("/:id/permissions", session.RequirePermissions(authority.GetRolePermissions), handleQueryRolePermissions)
	g.PUT("/:id/permissions", session.RequirePermissions(authority.AssignRolePermissions), handleSetPermissions)
	g.POST("/:id/permissions", session.RequirePermissions(authority.AssignRolePermissions), handleAddPermissions)
	g.DELETE("/:id/permissions", session.RequirePermissions(authority.RemoveRolePermissions), handleRemovePermissions)
	g.DELETE("/:id/permissions/all", session.RequirePermissions(authority.RemoveRolePermissions), handleRemoveAllPermissions)

	p := r.Group(PathPermissions, middleWares...)
	p.GET("", session.RequirePermissions(authority.ListRoles), handleQueryCatalog)
}

func handleCreateRole(c *gin.Context) {
	creation := RoleCreation{}
	if err := c.ShouldBindBodyWith(&creation, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	r, err := CreateRoleFunc(creation, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusCreated, r)
}

func handleQueryRoles(c *gin.Context) {
	roles, err := QueryRolesFunc(session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, roles)
}

func handleDetailRole(c *gin.Context) {
	id := parseRoleID(c)
	r, err := DetailRoleFunc(id, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, r)
}

func handleUpdateRole(c *gin.Context) {
	id := parseRoleID(c)
	updating := RoleUpdating{}
	if err := c.ShouldBindBodyWith(&updating, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	s := session.ExtractSessionFromGinContext(c)
	requireUpdatingPermissions(updating, s)
	r, err := UpdateRoleFunc(id, updating, s)
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, r)
}

// requireUpdatingPermissions holds the generic edit to the permissions of the dedicated operations
// when it touches the permission set or the activation flag.
func requireUpdatingPermissions(updating RoleUpdating, s *session.Session) {
	if updating.Permissions != nil && !s.Perms.HasAny(authority.AssignRolePermissions) {
		panic(bizerror.ErrForbidden)
	}
	if updating.Active != nil {
		required := authority.DeactivateRole
		if *updating.Active {
			required = authority.ActivateRole
		}
		if !s.Perms.HasAny(required) {
			panic(bizerror.ErrForbidden)
		}
	}
}

func handleDeactivateRole(c *gin.Context) {
	id := parseRoleID(c)
	r, err := DeactivateRoleFunc(id, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, r)
}

func handleActivateRole(c *gin.Context) {
	id := parseRoleID(c)
	r, err := ActivateRoleFunc(id, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, r)
}

func handleQueryRolePermissions(c *gin.Context) {
	id := parseRoleID(c)
	rp, err := QueryRolePermissionsFunc(id, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, rp)
}

func handleSetPermissions(c *gin.Context) {
	id := parseRoleID(c)
	change := bindPermissionsChange(c)
	r, err := SetPermissionsFunc(id, change.Permissions, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, r)
}

func handleAddPermissions(c *gin.Context) {
	id := parseRoleID(c)
	change := bindPermissionsChange(c)
	r, added, err := AddPermissionsFunc(id, change.Permissions, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, gin.H{"role": r, "added": added})
}

func handleRemovePermissions(c *gin.Context) {
	id := parseRoleID(c)
	change := bindPermissionsChange(c)
	r, removed, err := RemovePermissionsFunc(id, change.Permissions, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, gin.H{"role": r, "removed": removed})
}

func handleRemoveAllPermissions(c *gin.Context) {
	id := parseRoleID(c)
	r, removed, err := RemoveAllPermissionsFunc(id, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, gin.H{"role": r, "removed": removed})
}

func handleQueryCatalog(c *gin.Context) {
	c.JSON(http.StatusOK, authority.Definitions())
}

func bindPermissionsChange(c *gin.Context) PermissionsChange {
	change := PermissionsChange{}
	if err := c.ShouldBindBodyWith(&change, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	return change
}

func parseRoleID(c *gin.Context) types.ID {
	id, err := types.ParseID(c.Param("id"))
	if err != nil {
		panic(&bizerror.ErrBadParam{Cause: errors.New("invalid id '" + c.Param("id") + "'")})
	}
	return id
}
