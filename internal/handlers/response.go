package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shelfsync/shelfsync-backend/internal/pipeline"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondDomainError picks the status from the error type: a store without a
// pipeline is a 404, a document with no active job is a 409, everything else
// a plain bad request.
func RespondDomainError(c *gin.Context, code string, err error) {
	var notFound *pipeline.PipelineNotFoundError
	var noJob *pipeline.NoActiveJobError
	switch {
	case errors.As(err, &notFound):
		RespondError(c, http.StatusNotFound, code, err)
	case errors.As(err, &noJob):
		RespondError(c, http.StatusConflict, code, err)
	default:
		RespondError(c, http.StatusBadRequest, code, err)
	}
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
