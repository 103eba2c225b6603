package tkrouter

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dallosh/analysis/engine/core"
	"github.com/dallosh/analysis/engine/task"
)

func TestCreateTaskRoute(t *testing.T) {
	t.Run("Should create an added task authored by the caller", func(t *testing.T) {
		h, r := newTestEngine(t)
		w := doJSON(t, r, http.MethodPost, "/api/v0/tasks", CreateTaskRequest{FileID: "f1", FilePath: "datasets/f1.csv"})
		require.Equal(t, http.StatusCreated, w.Code)
		stored, err := h.Repo.GetByFileID(context.Background(), "f1")
		require.NoError(t, err)
		assert.Equal(t, task.StatusAdded, stored.Status)
		assert.Equal(t, "user-42", stored.CreatedBy)
	})

	t.Run("Should answer 409 for a second task on the same file", func(t *testing.T) {
		h, r := newTestEngine(t)
		seedTask(t, h, "f1", task.StatusAdded)
		w := doJSON(t, r, http.MethodPost, "/api/v0/tasks", CreateTaskRequest{FileID: "f1", FilePath: "p"})
		require.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "CONFLICT", decodeProblem(t, w).Code)
	})
}

func TestListTasksRoute(t *testing.T) {
	t.Run("Should filter by status and report the total", func(t *testing.T) {
		h, r := newTestEngine(t)
		seedTask(t, h, "f1", task.StatusDone)
		seedTask(t, h, "f2", task.StatusInQueue)
		seedTask(t, h, "f3", task.StatusDone)
		w := doJSON(t, r, http.MethodGet, "/api/v0/tasks?status=done&limit=1", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var payload struct {
			Data TaskListResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
		assert.Equal(t, int64(2), payload.Data.Total)
		require.Len(t, payload.Data.Tasks, 1)
		assert.Equal(t, task.StatusDone, payload.Data.Tasks[0].Status)
		assert.Equal(t, "2", w.Header().Get("X-Total-Count"))
		assert.Contains(t, w.Header().Get("Link"), `rel="next"`)
	})

	t.Run("Should reject an unknown sort field", func(t *testing.T) {
		_, r := newTestEngine(t)
		w := doJSON(t, r, http.MethodGet, "/api/v0/tasks?sort=password", nil)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestTaskByUIDRoutes(t *testing.T) {
	t.Run("Should get a task by uid", func(t *testing.T) {
		h, r := newTestEngine(t)
		tk := seedTask(t, h, "f1", task.StatusAdded)
		w := doJSON(t, r, http.MethodGet, "/api/v0/tasks/"+tk.UID.String(), nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"file_id":"f1"`)
	})

	t.Run("Should answer 404 for an unknown uid", func(t *testing.T) {
		_, r := newTestEngine(t)
		w := doJSON(t, r, http.MethodGet, "/api/v0/tasks/"+core.MustNewID().String(), nil)
		require.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Should answer 400 for a malformed uid", func(t *testing.T) {
		_, r := newTestEngine(t)
		w := doJSON(t, r, http.MethodGet, "/api/v0/tasks/not-a-ksuid", nil)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Should patch status and keep other fields", func(t *testing.T) {
		h, r := newTestEngine(t)
		tk := seedTask(t, h, "f1", task.StatusAdded)
		status := "paused"
		w := doJSON(t, r, http.MethodPatch, "/api/v0/tasks/"+tk.UID.String(), UpdateTaskRequest{Status: &status})
		require.Equal(t, http.StatusOK, w.Code)
		stored, err := h.Repo.Get(context.Background(), tk.UID)
		require.NoError(t, err)
		assert.Equal(t, task.StatusPaused, stored.Status)
		assert.Equal(t, "datasets/f1.csv", stored.FilePath)
		assert.Equal(t, "user-42", stored.UpdatedBy)
	})

	t.Run("Should reject an empty patch", func(t *testing.T) {
		h, r := newTestEngine(t)
		tk := seedTask(t, h, "f1", task.StatusAdded)
		w := doJSON(t, r, http.MethodPatch, "/api/v0/tasks/"+tk.UID.String(), UpdateTaskRequest{})
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Should reject the progression announcement as a status", func(t *testing.T) {
		h, r := newTestEngine(t)
		tk := seedTask(t, h, "f1", task.StatusAdded)
		status := string(task.StatusSendingToLLMProgression)
		w := doJSON(t, r, http.MethodPatch, "/api/v0/tasks/"+tk.UID.String(), UpdateTaskRequest{Status: &status})
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Should delete a task", func(t *testing.T) {
		h, r := newTestEngine(t)
		tk := seedTask(t, h, "f1", task.StatusAdded)
		w := doJSON(t, r, http.MethodDelete, "/api/v0/tasks/"+tk.UID.String(), nil)
		require.Equal(t, http.StatusNoContent, w.Code)
		assert.Zero(t, h.Repo.Len())
		assert.Empty(t, h.Files.Datasets)
	})
}
