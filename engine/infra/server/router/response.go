package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response is the success envelope shared by JSON endpoints.
type Response struct {
	Status  int        `json:"status"`
	Message string     `json:"message"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

func respond(c *gin.Context, status int, message string, data any) {
	c.JSON(status, Response{Status: status, Message: message, Data: data})
}

func RespondOK(c *gin.Context, message string, data any) {
	respond(c, http.StatusOK, message, data)
}

func RespondCreated(c *gin.Context, message string, data any) {
	respond(c, http.StatusCreated, message, data)
}

// RespondAccepted reports a command handed to the broker.
func RespondAccepted(c *gin.Context, message string, data any) {
	respond(c, http.StatusAccepted, message, data)
}

func RespondNoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
