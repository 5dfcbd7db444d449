package session

import (
	"context"

	"blogapi/authority"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
)

const KeySecCtx = "SecCtx"

// Session is the per-request security context built by the access gate.
// Perms are resolved from store state on every request; RoleNames is the snapshot carried by the token and is informational only.
type Session struct {
	Context context.Context `json:"-"`

	Token     string                `json:"-"`
	Identity  Identity              `json:"identity"`
	Perms     authority.Permissions `json:"perms"`
	RoleNames []string              `json:"tokenRoles"`
}

type Identity struct {
	ID       types.ID `json:"id"`
	Name     string   `json:"name"`
	Nickname string   `json:"nickname"`
}

func (s Session) Clone() Session {
	c := s
	if s.Perms != nil {
		c.Perms = append(authority.Permissions{}, s.Perms...)
	}
	if s.RoleNames != nil {
		c.RoleNames = append([]string{}, s.RoleNames...)
	}
	return c
}

// ExtractSessionFromGinContext never returns nil: an anonymous session carrying only the request context is returned
// when the gate did not run.
func ExtractSessionFromGinContext(ctx *gin.Context) *Session {
	value, found := ctx.Get(KeySecCtx)
	if !found {
		return &Session{Context: ctx.Request.Context()}
	}
	s0, ok := value.(*Session)
	if !ok || s0.Identity.ID == 0 {
		return &Session{Context: ctx.Request.Context()}
	}
	s := s0.Clone()
	s.Context = ctx.Request.Context() // trace context
	return &s
}

func InjectSessionIntoGinContext(ctx *gin.Context, s *Session) {
	if s != nil && s.Identity.ID != 0 {
		ctx.Set(KeySecCtx, s)
	}
}

func (s *Session) Authenticated() bool {
	return s != nil && s.Identity.ID != 0
}
