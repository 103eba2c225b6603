package router

import (
	"encoding/json"
	"net/http"

	"github.com/dallosh/analysis/engine/core"
	"github.com/dallosh/analysis/pkg/logger"
	"github.com/gin-gonic/gin"
)

// RespondProblem writes a canonical RFC 7807 error response.
func RespondProblem(c *gin.Context, problem *core.Problem) {
	prepared := core.NormalizeProblem(problem)
	body := core.BuildProblemBody(prepared)
	writeProblemResponse(c, prepared, body)
}

// RespondProblemWithCode writes a problem response embedding a code and detail.
func RespondProblemWithCode(c *gin.Context, status int, code string, detail string) {
	RespondProblem(c, core.NewProblem(status, code, detail))
}

// RespondWithError writes err as a problem document with the given status.
// Non request errors are classified through TaskError first.
func RespondWithError(c *gin.Context, status int, err error) {
	reqErr := TaskError(err)
	if status == 0 {
		status = reqErr.StatusCode
	}
	info := reqErr.GetErrorInfo()
	if status != reqErr.StatusCode && reqErr.Code == "" {
		info.Code = codeForStatus(status)
	}
	detail := info.Message
	if info.Details != "" {
		detail = info.Details
	}
	problem := core.NewProblem(status, info.Code, detail)
	problem.Instance = c.Request.URL.Path
	RespondProblem(c, problem)
}

// RespondTaskError classifies err and writes the matching problem document.
func RespondTaskError(c *gin.Context, err error) {
	reqErr := TaskError(err)
	RespondWithError(c, reqErr.StatusCode, reqErr)
}

func writeProblemResponse(c *gin.Context, problem *core.Problem, body map[string]any) {
	logProblem(c, problem)
	payload, err := json.Marshal(body)
	if err != nil {
		logger.FromContext(c.Request.Context()).Error("failed to marshal problem", "err", err)
		fallback := []byte(`{"status":500,"error":"Internal Server Error"}`)
		c.Data(http.StatusInternalServerError, "application/problem+json", fallback)
		c.Abort()
		return
	}
	c.Data(problem.Status, "application/problem+json", payload)
	c.Abort()
}

func logProblem(c *gin.Context, problem *core.Problem) {
	log := logger.FromContext(c.Request.Context())
	route := c.FullPath()
	if route == "" {
		route = c.Request.URL.Path
	}
	fields := []any{
		"status", problem.Status,
		"title", problem.Title,
		"detail", problem.Detail,
		"route", route,
		"path", c.Request.URL.Path,
	}
	if code, ok := problem.Extras["code"]; ok {
		fields = append(fields, "code", code)
	}
	if requestID := c.Request.Header.Get("X-Request-ID"); requestID != "" {
		fields = append(fields, "request_id", requestID)
	}
	if problem.Status >= http.StatusInternalServerError {
		log.Error("request failed", fields...)
		return
	}
	log.Warn("request failed", fields...)
}
