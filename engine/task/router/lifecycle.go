package tkrouter

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dallosh/analysis/engine/infra/server/router"
	"github.com/dallosh/analysis/engine/task"
)

func bindBody(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		reqErr := router.NewRequestError(http.StatusBadRequest, "invalid request body", err)
		router.RespondWithError(c, reqErr.StatusCode, reqErr)
		return false
	}
	return true
}

// proceedTask queues a dataset for processing
//
//	@Summary		Proceed task
//	@Description	Creates the task when needed, moves it to in_queue and publishes proceed_task.
//	@Tags			tasks
//	@Accept			json
//	@Produce		json
//	@Param			body	body		tkrouter.ProceedRequest					true	"Dataset to process"
//	@Success		202		{object}	router.Response{data=task.Task}			"Task queued"
//	@Failure		400		{object}	core.ProblemDocument					"Missing fileId or filePath"
//	@Failure		412		{object}	core.ProblemDocument					"Settings or AI configuration missing"
//	@Failure		503		{object}	core.ProblemDocument					"Broker unavailable"
//	@Router			/tasks/proceed [post]
func proceedTask(c *gin.Context) {
	var req ProceedRequest
	if !bindBody(c, &req) {
		return
	}
	state := router.GetAppState(c)
	if state == nil {
		return
	}
	t, err := state.Tasks.Proceed(c.Request.Context(), req.Input())
	if err != nil {
		router.RespondTaskError(c, err)
		return
	}
	router.RespondAccepted(c, "task queued", t)
}

// retryStep asks the workers to resume a task from its last step
//
//	@Summary		Retry step
//	@Description	Publishes retry_step for the task; the task resumes when the next pipeline event arrives.
//	@Tags			tasks
//	@Accept			json
//	@Produce		json
//	@Param			body	body		tkrouter.RetryRequest							true	"Retry request"
//	@Success		202		{object}	router.Response{data=tkrouter.CommandResponse}	"Retry dispatched"
//	@Failure		400		{object}	core.ProblemDocument							"Missing field or unknown step"
//	@Failure		412		{object}	core.ProblemDocument							"Settings or AI configuration missing"
//	@Failure		503		{object}	core.ProblemDocument							"Broker unavailable"
//	@Router			/tasks/retry [post]
func retryStep(c *gin.Context) {
	var req RetryRequest
	if !bindBody(c, &req) {
		return
	}
	state := router.GetAppState(c)
	if state == nil {
		return
	}
	if err := state.Tasks.RetryStep(c.Request.Context(), req.Input()); err != nil {
		router.RespondTaskError(c, err)
		return
	}
	router.RespondAccepted(c, "retry dispatched", CommandResponse{FileID: req.FileID, Event: task.RouteRetryStep})
}

// handleProcess pauses, resumes or stops a running task
//
//	@Summary		Control a running task
//	@Tags			tasks
//	@Accept			json
//	@Produce		json
//	@Param			body	body		tkrouter.HandleProcessRequest					true	"Control verb"
//	@Success		202		{object}	router.Response{data=tkrouter.CommandResponse}	"Command dispatched"
//	@Failure		400		{object}	core.ProblemDocument							"event must be pause, resume or stop"
//	@Failure		503		{object}	core.ProblemDocument							"Broker unavailable"
//	@Router			/tasks/handle-process [post]
func handleProcess(c *gin.Context) {
	var req HandleProcessRequest
	if !bindBody(c, &req) {
		return
	}
	action, err := task.ParseProcessAction(req.Event)
	if err != nil {
		router.RespondTaskError(c, err)
		return
	}
	state := router.GetAppState(c)
	if state == nil {
		return
	}
	if err := state.Tasks.HandleProcess(c.Request.Context(), req.FileID, action); err != nil {
		router.RespondTaskError(c, err)
		return
	}
	router.RespondAccepted(c, "command dispatched", CommandResponse{FileID: req.FileID, Event: string(action)})
}

// restartTask resets a task to added and removes its derived files
//
//	@Summary		Restart task
//	@Tags			tasks
//	@Accept			json
//	@Produce		json
//	@Param			body	body		tkrouter.FileRequest				true	"Task file"
//	@Success		200		{object}	router.Response{data=task.Task}		"Task restarted"
//	@Failure		404		{object}	core.ProblemDocument				"No task for file"
//	@Router			/tasks/restart [post]
func restartTask(c *gin.Context) {
	var req FileRequest
	if !bindBody(c, &req) {
		return
	}
	state := router.GetAppState(c)
	if state == nil {
		return
	}
	t, err := state.Tasks.Restart(c.Request.Context(), req.FileID)
	if err != nil {
		router.RespondTaskError(c, err)
		return
	}
	router.RespondOK(c, "task restarted", t)
}

// deleteWithFiles removes a task with its dataset and derived files
//
//	@Summary		Delete task with files
//	@Tags			tasks
//	@Accept			json
//	@Produce		json
//	@Param			body	body		tkrouter.FileRequest	true	"Task file"
//	@Success		200		{object}	router.Response			"Task deleted"
//	@Failure		404		{object}	core.ProblemDocument	"No task for file"
//	@Router			/tasks/delete-with-files [post]
func deleteWithFiles(c *gin.Context) {
	var req FileRequest
	if !bindBody(c, &req) {
		return
	}
	state := router.GetAppState(c)
	if state == nil {
		return
	}
	deleted, err := state.Tasks.DeleteWithFiles(c.Request.Context(), req.FileID)
	if err != nil {
		router.RespondTaskError(c, err)
		return
	}
	if !deleted {
		router.RespondTaskError(c, fmt.Errorf("%w: %s", task.ErrTaskNotFound, req.FileID))
		return
	}
	router.RespondOK(c, "task deleted", gin.H{"fileId": req.FileID, "deleted": true})
}
