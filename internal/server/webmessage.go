package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/avafields/internal/fields"
	"github.com/vyrodovalexey/avafields/internal/store"
)

// Web message status values.
const (
	StatusOK    = "OK"
	StatusError = "ERROR"
)

// WebMessage is the body of every error response.
type WebMessage struct {
	HTTPStatus     string   `json:"httpStatus"`
	HTTPStatusCode int      `json:"httpStatusCode"`
	Status         string   `json:"status"`
	Message        string   `json:"message"`
	Errors         []string `json:"errors,omitempty"`
}

// NewWebMessage builds an error message for an HTTP status code.
func NewWebMessage(code int, message string) WebMessage {
	return WebMessage{
		HTTPStatus:     http.StatusText(code),
		HTTPStatusCode: code,
		Status:         StatusError,
		Message:        message,
	}
}

// errorMessage maps err onto a status code and message. Unexpected errors
// are not echoed to the client.
func errorMessage(err error) WebMessage {
	switch {
	case errors.Is(err, fields.ErrSyntax), errors.Is(err, fields.ErrValidation):
		msg := NewWebMessage(http.StatusBadRequest, err.Error())
		var verr *fields.ValidationError
		if errors.As(err, &verr) {
			for _, p := range verr.Problems() {
				msg.Errors = append(msg.Errors, p.Error())
			}
		}
		return msg
	case errors.Is(err, store.ErrResourceNotFound), errors.Is(err, store.ErrObjectNotFound):
		return NewWebMessage(http.StatusNotFound, err.Error())
	default:
		return NewWebMessage(http.StatusInternalServerError, "internal server error")
	}
}

func abortWithError(c *gin.Context, err error) {
	msg := errorMessage(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(msg.HTTPStatusCode, msg)
}
