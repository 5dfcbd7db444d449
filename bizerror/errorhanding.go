package bizerror

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"blogapi/common"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jinzhu/gorm"
	"github.com/sirupsen/logrus"
)

func ErrorHandling() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handle(c)
		c.Next()
	}
}

func handle(c *gin.Context) {
	if ret := recover(); ret != nil {
		err, ok := ret.(error)
		if !ok {
			err = errors.New(fmt.Sprintf("%s", ret))
		}
		HandleError(c, err)
	} else {
		if err := c.Errors.Last(); err != nil {
			HandleError(c, err)
		}
	}
}

func HandleError(c *gin.Context, err error) {
	genericErr := err
	var ginErr *gin.Error
	if errors.As(err, &ginErr) {
		genericErr = ginErr.Err
	}

	status, body := translate(genericErr)
	if status >= http.StatusInternalServerError {
		logrus.WithError(err).WithField("path", c.Request.URL.Path).Error("request failed")
	} else {
		logrus.WithField("path", c.Request.URL.Path).Info(err)
	}
	c.JSON(status, body)
	c.Abort()
}

func translate(err error) (int, *common.ErrorBody) {
	var bizErr BizError
	if errors.As(err, &bizErr) {
		respond := bizErr.Respond()
		return respond.Status, &common.ErrorBody{Code: respond.Code, Message: respond.Message, Data: respond.Data}
	}

	// bad request:  io.EOF (no body).
	if errors.Is(err, io.EOF) {
		return http.StatusBadRequest, &common.ErrorBody{Code: "bad_request.body_not_found", Message: "body not found"}
	}
	// bad request: json syntax Error
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return http.StatusBadRequest, &common.ErrorBody{Code: "bad_request.invalid_body_format", Message: "invalid body format", Data: syntaxErr.Error()}
	}
	// validation failed
	var validationErr validator.ValidationErrors
	if errors.As(err, &validationErr) {
		return http.StatusBadRequest, &common.ErrorBody{Code: "bad_request.validation_failed", Message: "validation failed", Data: validationErr.Error()}
	}

	switch {
	case errors.Is(err, ErrTokenRequired):
		return http.StatusUnauthorized, &common.ErrorBody{Code: "security.token_required", Message: "token required"}
	case errors.Is(err, ErrTokenInvalid):
		return http.StatusUnauthorized, &common.ErrorBody{Code: "security.token_invalid", Message: "token invalid or expired"}
	case errors.Is(err, ErrIdentityUnknown):
		return http.StatusUnauthorized, &common.ErrorBody{Code: "security.identity_unknown", Message: "identity unknown or inactive"}
	case errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized, &common.ErrorBody{Code: "security.invalid_credentials", Message: "invalid credentials"}
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized, &common.ErrorBody{Code: "common.unauthenticated", Message: "unauthenticated"}
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, &common.ErrorBody{Code: "security.forbidden", Message: "access forbidden"}
	case errors.Is(err, ErrTooManyRequests):
		return http.StatusTooManyRequests, &common.ErrorBody{Code: "common.too_many_requests", Message: "too many requests"}
	case errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, ErrNotFound):
		return http.StatusNotFound, &common.ErrorBody{Code: "common.record_not_found", Message: "record not found"}
	}

	return http.StatusInternalServerError, &common.ErrorBody{Code: "common.internal_server_error", Message: "internal server error"}
}
