package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tayjaybabee/jet-bridge/internal/alerr"
)

// APIResponse is the envelope of every JSON response.
type APIResponse struct {
	Status  string         `json:"status"`
	Message string         `json:"message,omitempty"`
	Data    any            `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
	Code    string         `json:"code,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

// Success writes data with status "success".
func Success(c *gin.Context, statusCode int, data any, message string) {
	c.JSON(statusCode, APIResponse{
		Status:  "success",
		Message: message,
		Data:    data,
	})
}

// Fail writes err with status "error". Coded errors carry their code and
// context.
func Fail(c *gin.Context, statusCode int, err error, message string) {
	resp := APIResponse{
		Status:  "error",
		Message: message,
	}
	if err != nil {
		resp.Error = err.Error()
		var coded *alerr.Error
		if errors.As(err, &coded) {
			resp.Code = string(coded.GetCode())
			resp.Context = coded.GetContext()
		}
	}
	c.JSON(statusCode, resp)
}

// statusFor maps an error to an HTTP status code.
func statusFor(err error) int {
	switch alerr.GetErrorCode(err) {
	case alerr.ErrConnectionNotFound, alerr.ErrSchemaMissingTables:
		return http.StatusNotFound
	case alerr.ErrUnknownLookup, alerr.ErrInvalidLookupValue, alerr.ErrUnknownField:
		return http.StatusBadRequest
	case alerr.ErrReflectionInFlight:
		return http.StatusConflict
	case alerr.ErrSQLExecution, alerr.ErrSQLConnection, alerr.ErrSQLTransaction:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err with the status derived from its code.
func fail(c *gin.Context, err error, message string) {
	Fail(c, statusFor(err), err, message)
}
