package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorCase maps a sentinel error to an HTTP status code and response message.
type ErrorCase struct {
	Err     error
	Status  int
	Message string
}

// RespondWithMappedError writes the first case matching err. Anything unmatched is attached to the
// gin context for the access log and answered with the fallback, so internal messages never leak.
func RespondWithMappedError(c *gin.Context, err error, cases []ErrorCase, fallbackStatus int, fallbackMessage string) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}

	status, message, mapped := lookupErrorCase(err, cases)
	if !mapped {
		_ = c.Error(err)
		status, message = fallbackStatus, fallbackMessage
	}
	c.JSON(status, NewErrorResponse(c, message))
}

func lookupErrorCase(err error, cases []ErrorCase) (int, string, bool) {
	for _, cs := range cases {
		if cs.Err != nil && errors.Is(err, cs.Err) {
			return cs.Status, cs.Message, true
		}
	}
	return 0, "", false
}
