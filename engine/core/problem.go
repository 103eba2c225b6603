package core

import "net/http"

// ProblemDocument models the canonical error envelope for API responses.
type ProblemDocument struct {
	Status   int    `json:"status"             example:"400"`
	Error    string `json:"error"              example:"Bad Request"`
	Details  string `json:"details,omitempty"  example:"task not found"`
	Code     string `json:"code,omitempty"     example:"NOT_FOUND"`
	Type     string `json:"type,omitempty"     example:"about:blank"`
	Instance string `json:"instance,omitempty" example:"/api/v0/tasks/2Nd..."`
}

// Problem captures the information returned in an RFC 7807 error response.
type Problem struct {
	Type     string
	Title    string
	Status   int
	Detail   string
	Instance string
	Extras   map[string]any
}

// NewProblem builds a problem carrying a machine readable code such as
// NOT_FOUND or AI_CONFIG_MISSING.
func NewProblem(status int, code, detail string) *Problem {
	return &Problem{Status: status, Detail: detail, Extras: map[string]any{"code": code}}
}

// NormalizeProblem fills status, title and type when they are unset.
func NormalizeProblem(problem *Problem) *Problem {
	if problem == nil {
		problem = &Problem{}
	}
	if problem.Status == 0 {
		problem.Status = http.StatusInternalServerError
	}
	if problem.Title == "" {
		problem.Title = http.StatusText(problem.Status)
	}
	if problem.Type == "" {
		problem.Type = "about:blank"
	}
	return problem
}

// BuildProblemBody renders the wire body. Extras cannot override the
// reserved members, except code which is lifted from Extras.
func BuildProblemBody(problem *Problem) map[string]any {
	body := make(map[string]any, len(problem.Extras)+4)
	for key, value := range problem.Extras {
		if key == "code" || !isReservedProblemKey(key) {
			body[key] = value
		}
	}
	body["status"] = problem.Status
	body["error"] = problem.Title
	for key, value := range map[string]string{
		"details":  problem.Detail,
		"type":     problem.Type,
		"instance": problem.Instance,
	} {
		if value != "" {
			body[key] = value
		}
	}
	return body
}

func isReservedProblemKey(key string) bool {
	switch key {
	case "status", "error", "details", "code", "type", "instance":
		return true
	default:
		return false
	}
}
