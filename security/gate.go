package security

import (
	"context"
	"errors"
	"strings"

	"blogapi/account"
	"blogapi/assertion"
	"blogapi/bizerror"
	"blogapi/persistence"
	"blogapi/session"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	"github.com/jinzhu/gorm"
	"github.com/sirupsen/logrus"
)

const bearerScheme = "Bearer"

var (
	LoadSessionFunc = LoadSession
)

// BearerAuthFilter authenticates the bearer assertion and rebuilds the session from current store state.
// The role names carried by the assertion are kept for display only.
func BearerAuthFilter(codec *assertion.Codec) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			panic(bizerror.ErrTokenRequired)
		}
		claims, err := codec.Validate(token)
		if err != nil {
			logrus.WithField("path", c.Request.URL.Path).Debugf("assertion rejected: %v", err)
			panic(bizerror.ErrTokenInvalid)
		}

		s, err := LoadSessionFunc(c.Request.Context(), claims.UserID)
		if err != nil {
			panic(err)
		}
		s.Token = token
		s.RoleNames = claims.Roles
		session.InjectSessionIntoGinContext(c, s)
		c.Next()
	}
}

// LoadSession loads the active identity uid and resolves its permissions.
func LoadSession(ctx context.Context, uid types.ID) (*session.Session, error) {
	db := persistence.ActiveDataSourceManager.GormDB(ctx)
	u, err := account.FindActiveUser(uid, db)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, bizerror.ErrNotFound) {
			return nil, bizerror.ErrIdentityUnknown
		}
		return nil, err
	}
	perms, err := account.EffectivePermissions(u.ID, db)
	if err != nil {
		return nil, err
	}
	return &session.Session{
		Context:  ctx,
		Identity: session.Identity{ID: u.ID, Name: u.UserName, Nickname: u.DisplayName()},
		Perms:    perms,
	}, nil
}

func bearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], bearerScheme) {
		return "", false
	}
	return parts[1], true
}
