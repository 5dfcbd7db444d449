package sessions

import (
	"context"
	"errors"
	"net/http"
	"time"

	"blogapi/account"
	"blogapi/assertion"
	"blogapi/authority"
	"blogapi/bizerror"
	"blogapi/credential"
	"blogapi/persistence"
	"blogapi/session"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/jinzhu/gorm"
	"github.com/sirupsen/logrus"
)

var (
	PathAuth = "/v1/auth"

	AuthenticateFunc = Authenticate
	RegisterFunc     = account.RegisterUser
)

// compared against when the identifier matches nobody, so unknown users cost a bcrypt round as well
var absentSecretHash, _ = credential.HashSecret("absent user placeholder")

type LoginRequest struct {
	EmailOrUserName string `json:"emailOrUserName" binding:"required,lte=255"`
	Password        string `json:"password" binding:"required,lte=72"`
}

type LoginResult struct {
	User      account.UserDetail `json:"user"`
	Token     string             `json:"token"`
	ExpiresAt time.Time          `json:"expiresAt"`
}

func RegisterSessionsRestAPI(r *gin.Engine, codec *assertion.Codec, limiter gin.HandlerFunc, gate gin.HandlerFunc) {
	g := r.Group(PathAuth)
	g.POST("/login", limiter, func(c *gin.Context) {
		handleLogin(c, codec)
	})
	g.POST("/register", limiter, handleRegister)
	g.GET("/me", gate, session.RequirePermissions(authority.Whoami), handleWhoami)
}

// Authenticate checks the secret of the active user identified by email or user name.
// Unknown identifiers, inactive users and wrong secrets all fail with the same error.
func Authenticate(req LoginRequest, codec *assertion.Codec, ctx context.Context) (*LoginResult, error) {
	db := persistence.ActiveDataSourceManager.GormDB(ctx)
	u, err := account.FindActiveUserByEmailOrUserName(req.EmailOrUserName, db)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			credential.VerifySecret(req.Password, absentSecretHash)
			return nil, bizerror.ErrInvalidCredentials
		}
		return nil, err
	}
	if !credential.VerifySecret(req.Password, u.Secret) {
		return nil, bizerror.ErrInvalidCredentials
	}
	if credential.NeedsRehash(u.Secret) {
		rehash(db, u.ID, req.Password)
	}

	roleNames, err := account.ActiveRoleNames(u.ID, db)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := codec.Issue(u.ID, roleNames)
	if err != nil {
		return nil, err
	}
	detail, err := account.DetailUser(u.ID, &session.Session{Context: ctx})
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: *detail, Token: token, ExpiresAt: expiresAt}, nil
}

func rehash(db *gorm.DB, uid types.ID, password string) {
	secret, err := credential.HashSecret(password)
	if err != nil {
		logrus.Warnf("failed to rehash secret of user %v: %v", uid, err)
		return
	}
	if err := db.Model(&account.User{}).Where("id = ?", uid).Update("secret", secret).Error; err != nil {
		logrus.Warnf("failed to rehash secret of user %v: %v", uid, err)
	}
}

func handleLogin(c *gin.Context, codec *assertion.Codec) {
	login := LoginRequest{}
	if err := c.ShouldBindBodyWith(&login, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	result, err := AuthenticateFunc(login, codec, c.Request.Context())
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusOK, result)
}

func handleRegister(c *gin.Context) {
	creation := account.UserCreation{}
	if err := c.ShouldBindBodyWith(&creation, binding.JSON); err != nil {
		panic(&bizerror.ErrBadParam{Cause: err})
	}
	u, err := RegisterFunc(creation, session.ExtractSessionFromGinContext(c))
	if err != nil {
		panic(err)
	}
	c.JSON(http.StatusCreated, u)
}
