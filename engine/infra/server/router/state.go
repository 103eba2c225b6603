package router

import (
	"net/http"
	"strings"

	"github.com/dallosh/analysis/engine/core"
	"github.com/dallosh/analysis/engine/infra/server/appstate"
	"github.com/gin-gonic/gin"
)

// GetAppState returns the request's application state, writing a 500 problem
// when it is missing.
func GetAppState(c *gin.Context) *appstate.State {
	state, err := appstate.GetState(c.Request.Context())
	if err != nil {
		RespondProblemWithCode(c, http.StatusInternalServerError, ErrInternalCode, ErrMsgAppStateNotInitialized)
		return nil
	}
	return state
}

// GetURLParam returns a trimmed path parameter, writing a 400 problem when empty.
func GetURLParam(c *gin.Context, name string) string {
	value := strings.TrimSpace(c.Param(name))
	if value == "" {
		RespondProblemWithCode(c, http.StatusBadRequest, ErrBadRequestCode, name+" is required")
		return ""
	}
	return value
}

// GetTaskUID parses the :uid path parameter.
func GetTaskUID(c *gin.Context) core.ID {
	raw := GetURLParam(c, "uid")
	if raw == "" {
		return ""
	}
	uid, err := core.ParseID(raw)
	if err != nil {
		RespondProblemWithCode(c, http.StatusBadRequest, ErrBadRequestCode, "invalid task uid")
		return ""
	}
	return uid
}
