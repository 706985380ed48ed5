package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// JSON writes the uniform response envelope. errs carries the message shown
// to the client when message is empty.
func JSON(c *gin.Context, message string, status int, data interface{}, errs error) {
	errMessage := ""
	if errs != nil {
		errMessage = errs.Error()
	}
	if message == "" {
		message = errMessage
	}

	responseData := gin.H{
		"message": message,
		"data":    data,
		"errors":  errMessage,
		"status":  http.StatusText(status),
	}
	c.JSON(status, responseData)
}
