package testinfra

import (
	"context"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"strings"

	"blogapi/authority"
	"blogapi/session"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
)

// ExecuteRequest serves req with handler and returns status, body and the recorded response.
func ExecuteRequest(req *http.Request, handler http.Handler) (int, string, *http.Response) {
	if req.Header.Get("Content-Type") == "" && req.Body != nil && req.Body != http.NoBody {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	resp := w.Result()
	bodyBytes, _ := ioutil.ReadAll(resp.Body)
	return resp.StatusCode, string(bodyBytes), resp
}

func StringReader(s string) *strings.Reader {
	return strings.NewReader(s)
}

// BuildSession builds a session for identity uid holding perms.
func BuildSession(uid types.ID, perms ...string) *session.Session {
	return &session.Session{
		Context:  context.Background(),
		Identity: session.Identity{ID: uid, Name: "user" + uid.String()},
		Perms:    authority.Permissions(perms),
	}
}

// InjectSession stands in for the bearer filter in REST tests.
func InjectSession(s *session.Session) gin.HandlerFunc {
	return func(c *gin.Context) {
		session.InjectSessionIntoGinContext(c, s)
		c.Next()
	}
}
