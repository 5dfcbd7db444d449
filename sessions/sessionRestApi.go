package sessions

import (
	"net/http"

	"blogapi/authority"
	"blogapi/session"

	"github.com/gin-gonic/gin"
)

// SessionInfo describes the caller. TokenRoles is the snapshot taken at login and never drives authorization.
type SessionInfo struct {
	Identity                session.Identity      `json:"identity"`
	Permissions             authority.Permissions `json:"permissions"`
	TokenRoles              []string              `json:"tokenRoles"`
	TokenRolesInformational bool                  `json:"tokenRolesInformational"`
}

func handleWhoami(c *gin.Context) {
	s := session.ExtractSessionFromGinContext(c)
	roles := s.RoleNames
	if roles == nil {
		roles = []string{}
	}
	c.JSON(http.StatusOK, &SessionInfo{Identity: s.Identity, Permissions: s.Perms, TokenRoles: roles, TokenRolesInformational: true})
}
