package session

import (
	"blogapi/bizerror"

	"github.com/gin-gonic/gin"
)

// RequirePermissions admits the request when the session holds at least one of perms.
// It must be mounted after the bearer filter; without an authenticated session the request is rejected as unauthenticated.
func RequirePermissions(perms ...string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		s := ExtractSessionFromGinContext(ctx)
		if !s.Authenticated() {
			panic(bizerror.ErrUnauthenticated)
		}
		if !s.Perms.HasAny(perms...) {
			panic(bizerror.ErrForbidden)
		}
		ctx.Next()
	}
}
