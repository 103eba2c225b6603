package tkrouter

import (
	"github.com/gin-gonic/gin"

	"github.com/dallosh/analysis/engine/infra/server/router"
	"github.com/dallosh/analysis/engine/task"
)

// createTask registers a task for an uploaded dataset
//
//	@Summary		Create task
//	@Tags			tasks
//	@Accept			json
//	@Produce		json
//	@Param			body	body		tkrouter.CreateTaskRequest			true	"Dataset"
//	@Success		201		{object}	router.Response{data=task.Task}		"Task created"
//	@Failure		400		{object}	core.ProblemDocument				"Invalid body"
//	@Failure		409		{object}	core.ProblemDocument				"Task already exists for file"
//	@Router			/tasks [post]
func createTask(c *gin.Context) {
	var req CreateTaskRequest
	if !bindBody(c, &req) {
		return
	}
	state := router.GetAppState(c)
	if state == nil {
		return
	}
	t, err := state.Tasks.Create(c.Request.Context(), task.CreateInput{FileID: req.FileID, FilePath: req.FilePath})
	if err != nil {
		router.RespondTaskError(c, err)
		return
	}
	router.RespondCreated(c, "task created", t)
}

// listTasks lists tasks
//
//	@Summary		List tasks
//	@Tags			tasks
//	@Produce		json
//	@Param			status		query		string										false	"Filter by status"
//	@Param			file_id		query		string										false	"Filter by file id"
//	@Param			sort		query		string										false	"created_at, updated_at, status or file_id"
//	@Param			order		query		string										false	"asc or desc"
//	@Param			limit		query		int											false	"Page size (max 500)"
//	@Param			offset		query		int											false	"Page offset"
//	@Success		200			{object}	router.Response{data=tkrouter.TaskListResponse}	"Tasks retrieved"
//	@Failure		400			{object}	core.ProblemDocument						"Invalid query"
//	@Router			/tasks [get]
func listTasks(c *gin.Context) {
	opts, err := task.ParseListOptions(c.Query)
	if err != nil {
		router.RespondTaskError(c, err)
		return
	}
	state := router.GetAppState(c)
	if state == nil {
		return
	}
	tasks, total, err := state.Tasks.FindAll(c.Request.Context(), opts)
	if err != nil {
		router.RespondTaskError(c, err)
		return
	}
	router.SetLinkHeaders(c, router.Page{Limit: opts.Limit, Offset: opts.Offset, Total: total})
	router.RespondOK(c, "tasks retrieved", TaskListResponse{
		Tasks:  tasks,
		Total:  total,
		Limit:  opts.Limit,
		Offset: opts.Offset,
	})
}

// getTask retrieves a task by uid
//
//	@Summary		Get task
//	@Tags			tasks
//	@Produce		json
//	@Param			uid	path		string								true	"Task uid"
//	@Success		200	{object}	router.Response{data=task.Task}		"Task retrieved"
//	@Failure		404	{object}	core.ProblemDocument				"Task not found"
//	@Router			/tasks/{uid} [get]
func getTask(c *gin.Context) {
	uid := router.GetTaskUID(c)
	if uid == "" {
		return
	}
	state := router.GetAppState(c)
	if state == nil {
		return
	}
	t, err := state.Tasks.FindOne(c.Request.Context(), uid)
	if err != nil {
		router.RespondTaskError(c, err)
		return
	}
	router.RespondOK(c, "task retrieved", t)
}

// updateTask applies an administrative patch
//
//	@Summary		Update task
//	@Tags			tasks
//	@Accept			json
//	@Produce		json
//	@Param			uid		path		string								true	"Task uid"
//	@Param			body	body		tkrouter.UpdateTaskRequest			true	"Fields to change"
//	@Success		200		{object}	router.Response{data=task.Task}		"Task updated"
//	@Failure		400		{object}	core.ProblemDocument				"Invalid patch"
//	@Failure		404		{object}	core.ProblemDocument				"Task not found"
//	@Router			/tasks/{uid} [patch]
func updateTask(c *gin.Context) {
	uid := router.GetTaskUID(c)
	if uid == "" {
		return
	}
	var req UpdateTaskRequest
	if !bindBody(c, &req) {
		return
	}
	state := router.GetAppState(c)
	if state == nil {
		return
	}
	t, err := state.Tasks.Update(c.Request.Context(), uid, req.Patch())
	if err != nil {
		router.RespondTaskError(c, err)
		return
	}
	router.RespondOK(c, "task updated", t)
}

// deleteTask removes a task record only
//
//	@Summary		Delete task
//	@Tags			tasks
//	@Param			uid	path	string	true	"Task uid"
//	@Success		204	"Task deleted"
//	@Failure		404	{object}	core.ProblemDocument	"Task not found"
//	@Router			/tasks/{uid} [delete]
func deleteTask(c *gin.Context) {
	uid := router.GetTaskUID(c)
	if uid == "" {
		return
	}
	state := router.GetAppState(c)
	if state == nil {
		return
	}
	if err := state.Tasks.Delete(c.Request.Context(), uid); err != nil {
		router.RespondTaskError(c, err)
		return
	}
	router.RespondNoContent(c)
}
