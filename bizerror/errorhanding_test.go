package bizerror_test

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"blogapi/bizerror"
	"blogapi/testinfra"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/jinzhu/gorm"
	. "github.com/onsi/gomega"
)

type creation struct {
	Name string `json:"name" binding:"required,gte=2"`
}

func TestErrorHandling(t *testing.T) {
	RegisterTestingT(t)

	var thrown interface{}
	router := gin.Default()
	router.Use(bizerror.ErrorHandling())
	router.GET("/panic", func(c *gin.Context) {
		panic(thrown)
	})
	router.POST("/bind", func(c *gin.Context) {
		body := creation{}
		if err := c.ShouldBindBodyWith(&body, binding.JSON); err != nil {
			panic(&bizerror.ErrBadParam{Cause: err})
		}
		c.Status(http.StatusOK)
	})
	router.GET("/gin-error", func(c *gin.Context) {
		_ = c.Error(bizerror.ErrForbidden)
	})

	cases := []struct {
		err    interface{}
		status int
		body   string
	}{
		{bizerror.ErrTokenRequired, http.StatusUnauthorized, `{"code":"security.token_required","message":"token required","data":null}`},
		{bizerror.ErrTokenInvalid, http.StatusUnauthorized, `{"code":"security.token_invalid","message":"token invalid or expired","data":null}`},
		{bizerror.ErrIdentityUnknown, http.StatusUnauthorized, `{"code":"security.identity_unknown","message":"identity unknown or inactive","data":null}`},
		{bizerror.ErrInvalidCredentials, http.StatusUnauthorized, `{"code":"security.invalid_credentials","message":"invalid credentials","data":null}`},
		{bizerror.ErrUnauthenticated, http.StatusUnauthorized, `{"code":"common.unauthenticated","message":"unauthenticated","data":null}`},
		{bizerror.ErrForbidden, http.StatusForbidden, `{"code":"security.forbidden","message":"access forbidden","data":null}`},
		{fmt.Errorf("wrapped: %w", bizerror.ErrForbidden), http.StatusForbidden, `{"code":"security.forbidden","message":"access forbidden","data":null}`},
		{bizerror.ErrTooManyRequests, http.StatusTooManyRequests, `{"code":"common.too_many_requests","message":"too many requests","data":null}`},
		{gorm.ErrRecordNotFound, http.StatusNotFound, `{"code":"common.record_not_found","message":"record not found","data":null}`},
		{bizerror.ErrNotFound, http.StatusNotFound, `{"code":"common.record_not_found","message":"record not found","data":null}`},
		{&bizerror.ErrConflict{Message: "role name already in use"}, http.StatusConflict, `{"code":"common.conflict","message":"role name already in use","data":null}`},
		{&bizerror.ErrConflict{}, http.StatusConflict, `{"code":"common.conflict","message":"common.conflict","data":null}`},
		{&bizerror.ErrBadParam{}, http.StatusBadRequest, `{"code":"common.bad_param","message":"common.bad_param","data":null}`},
		{errors.New("database is gone"), http.StatusInternalServerError, `{"code":"common.internal_server_error","message":"internal server error","data":null}`},
		{"not an error", http.StatusInternalServerError, `{"code":"common.internal_server_error","message":"internal server error","data":null}`},
	}

	for _, tc := range cases {
		t.Run(fmt.Sprintf("should translate %v", tc.err), func(t *testing.T) {
			thrown = tc.err
			req := httptest.NewRequest(http.MethodGet, "/panic", nil)
			status, body, _ := testinfra.ExecuteRequest(req, router)
			Expect(status).To(Equal(tc.status))
			Expect(body).To(MatchJSON(tc.body))
		})
	}

	t.Run("should itemize violated fields", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/bind", testinfra.StringReader(`{"name":"a"}`))
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusBadRequest))
		Expect(body).To(MatchJSON(`{"code":"common.bad_param",
			"message":"Key: 'creation.Name' Error:Field validation for 'Name' failed on the 'gte' tag",
			"data":[{"field":"Name","rule":"gte","param":"2"}]}`))
	})

	t.Run("should report missing body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/bind", nil)
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusBadRequest))
		Expect(body).To(MatchJSON(`{"code":"common.bad_param","message":"EOF","data":null}`))
	})

	t.Run("should handle errors attached to gin context", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/gin-error", nil)
		status, body, _ := testinfra.ExecuteRequest(req, router)
		Expect(status).To(Equal(http.StatusForbidden))
		Expect(body).To(MatchJSON(`{"code":"security.forbidden","message":"access forbidden","data":null}`))
	})
}
