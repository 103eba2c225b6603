package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/dallosh/analysis/engine/core"
	"github.com/dallosh/analysis/engine/task"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var repoNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTaskRepoMock(t *testing.T) (*TaskRepo, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)
	repo := NewTaskRepo(mockPool)
	repo.now = func() time.Time { return repoNow }
	return repo, mockPool
}

func taskRows(mockPool pgxmock.PgxPoolIface) *pgxmock.Rows {
	return mockPool.NewRows(taskColumns)
}

func addTaskRow(rows *pgxmock.Rows, uid, fileID, status, stage string, cleaned *string) *pgxmock.Rows {
	var none *string
	return rows.AddRow(
		uid, fileID, "/data/"+fileID+".csv", status, stage, false,
		cleaned, none, none, none,
		repoNow, "admin", repoNow, "system",
	)
}

func TestTaskRepo_Create(t *testing.T) {
	t.Run("Should insert every column", func(t *testing.T) {
		repo, mockPool := newTaskRepoMock(t)
		tk, err := task.NewTask(task.CreateInput{FileID: "f1", FilePath: "/data/f1.csv"}, "admin", repoNow)
		require.NoError(t, err)
		mockPool.ExpectExec("INSERT INTO tasks").
			WithArgs(
				tk.UID.String(), "f1", "/data/f1.csv", "added", "added", false,
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				repoNow, "admin", repoNow, "admin",
			).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, repo.Create(t.Context(), tk))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Should report a second task for the same file as a conflict", func(t *testing.T) {
		repo, mockPool := newTaskRepoMock(t)
		tk, err := task.NewTask(task.CreateInput{FileID: "f1", FilePath: "/data/f1.csv"}, "admin", repoNow)
		require.NoError(t, err)
		mockPool.ExpectExec("INSERT INTO tasks").
			WillReturnError(&pgconn.PgError{Code: uniqueViolation})

		err = repo.Create(t.Context(), tk)
		assert.ErrorIs(t, err, task.ErrTaskExists)
	})
}

func TestTaskRepo_Get(t *testing.T) {
	t.Run("Should load a task by file id", func(t *testing.T) {
		repo, mockPool := newTaskRepoMock(t)
		cleaned := "/storage/f1.cleaned.csv"
		mockPool.ExpectQuery("SELECT (.+) FROM tasks WHERE file_id = \\$1 LIMIT 1").
			WithArgs("f1").
			WillReturnRows(addTaskRow(taskRows(mockPool), "uid-1", "f1", "paused", "sending_to_llm", &cleaned))

		got, err := repo.GetByFileID(t.Context(), "f1")
		require.NoError(t, err)
		assert.Equal(t, core.ID("uid-1"), got.UID)
		assert.Equal(t, task.StatusPaused, got.Status)
		assert.Equal(t, task.StatusSendingToLLM, got.Stage)
		require.NotNil(t, got.FileCleaned.Path)
		assert.Equal(t, cleaned, *got.FileCleaned.Path)
		assert.Nil(t, got.FileAnalysed.Path)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Should map no rows to task not found", func(t *testing.T) {
		repo, mockPool := newTaskRepoMock(t)
		mockPool.ExpectQuery("SELECT (.+) FROM tasks WHERE uid = \\$1 LIMIT 1").
			WithArgs("missing").
			WillReturnRows(taskRows(mockPool))

		_, err := repo.Get(t.Context(), core.ID("missing"))
		assert.ErrorIs(t, err, task.ErrTaskNotFound)
	})

	t.Run("Should wrap driver errors", func(t *testing.T) {
		repo, mockPool := newTaskRepoMock(t)
		mockPool.ExpectQuery("SELECT (.+) FROM tasks").WillReturnError(errors.New("connection reset"))

		_, err := repo.Get(t.Context(), core.ID("uid-1"))
		require.Error(t, err)
		assert.NotErrorIs(t, err, task.ErrTaskNotFound)
		assert.Contains(t, err.Error(), "connection reset")
	})
}

func TestTaskRepo_List(t *testing.T) {
	t.Run("Should filter sort and paginate", func(t *testing.T) {
		repo, mockPool := newTaskRepoMock(t)
		status := task.StatusInQueue
		opts := task.ListOptions{Status: &status, FileID: "f1", SortBy: task.SortUpdatedAt, Limit: 20, Offset: 40}
		mockPool.ExpectQuery("SELECT COUNT\\(\\*\\) FROM tasks WHERE \\(status = \\$1 AND file_id = \\$2\\)").
			WithArgs("in_queue", "f1").
			WillReturnRows(mockPool.NewRows([]string{"count"}).AddRow(int64(41)))
		mockPool.ExpectQuery("SELECT (.+) FROM tasks WHERE (.+) ORDER BY updated_at ASC, uid ASC LIMIT 20 OFFSET 40").
			WithArgs("in_queue", "f1").
			WillReturnRows(addTaskRow(taskRows(mockPool), "uid-1", "f1", "in_queue", "in_queue", nil))

		got, total, err := repo.List(t.Context(), opts)
		require.NoError(t, err)
		assert.Equal(t, int64(41), total)
		require.Len(t, got, 1)
		assert.Equal(t, task.StatusInQueue, got[0].Status)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Should list everything newest first by default", func(t *testing.T) {
		repo, mockPool := newTaskRepoMock(t)
		mockPool.ExpectQuery("SELECT COUNT\\(\\*\\) FROM tasks$").
			WillReturnRows(mockPool.NewRows([]string{"count"}).AddRow(int64(0)))
		mockPool.ExpectQuery("SELECT (.+) FROM tasks ORDER BY created_at DESC, uid DESC LIMIT 50 OFFSET 0").
			WillReturnRows(taskRows(mockPool))

		got, total, err := repo.List(t.Context(), task.DefaultListOptions())
		require.NoError(t, err)
		assert.Empty(t, got)
		assert.Zero(t, total)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Should reject invalid options before querying", func(t *testing.T) {
		repo, mockPool := newTaskRepoMock(t)
		_, _, err := repo.List(t.Context(), task.ListOptions{SortBy: "password", Limit: 10})
		assert.ErrorIs(t, err, task.ErrValidation)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestTaskRepo_Update(t *testing.T) {
	t.Run("Should set only patched columns and stamp audit fields", func(t *testing.T) {
		repo, mockPool := newTaskRepoMock(t)
		mockPool.ExpectQuery("UPDATE tasks SET status = \\$1, stage = \\$2, updated_at = \\$3, updated_by = \\$4 WHERE uid = \\$5 RETURNING (.+)").
			WithArgs("reading_dataset", "reading_dataset", repoNow, "system", "uid-1").
			WillReturnRows(addTaskRow(taskRows(mockPool), "uid-1", "f1", "reading_dataset", "reading_dataset", nil))

		got, err := repo.Update(t.Context(), core.ID("uid-1"), task.StatusPatch(task.StatusReadingDataset), core.SystemUser)
		require.NoError(t, err)
		assert.Equal(t, task.StatusReadingDataset, got.Status)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Should null out derived file columns on reset", func(t *testing.T) {
		repo, mockPool := newTaskRepoMock(t)
		patch := task.StatusPatch(task.StatusAdded)
		patch.FileCleaned = &task.FileInfo{}
		patch.FileAnalysed = &task.FileInfo{}
		mockPool.ExpectQuery("UPDATE tasks SET status = \\$1, stage = \\$2, file_cleaned_path = \\$3, file_cleaned_type = \\$4, " +
			"file_analysed_path = \\$5, file_analysed_type = \\$6, updated_at = \\$7, updated_by = \\$8 WHERE uid = \\$9").
			WithArgs("added", "added",
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				repoNow, "admin", "uid-1").
			WillReturnRows(addTaskRow(taskRows(mockPool), "uid-1", "f1", "added", "added", nil))

		got, err := repo.Update(t.Context(), core.ID("uid-1"), patch, "admin")
		require.NoError(t, err)
		assert.True(t, got.FileCleaned.IsZero())
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Should report a missing task", func(t *testing.T) {
		repo, mockPool := newTaskRepoMock(t)
		mockPool.ExpectQuery("UPDATE tasks").WillReturnRows(taskRows(mockPool))

		_, err := repo.Update(t.Context(), core.ID("gone"), task.StatusPatch(task.StatusDone), "admin")
		assert.ErrorIs(t, err, task.ErrTaskNotFound)
	})
}

func TestTaskRepo_Delete(t *testing.T) {
	t.Run("Should delete by uid", func(t *testing.T) {
		repo, mockPool := newTaskRepoMock(t)
		mockPool.ExpectExec("DELETE FROM tasks WHERE uid = \\$1").
			WithArgs("uid-1").
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		require.NoError(t, repo.Delete(t.Context(), core.ID("uid-1")))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Should report a missing task", func(t *testing.T) {
		repo, mockPool := newTaskRepoMock(t)
		mockPool.ExpectExec("DELETE FROM tasks").WillReturnResult(pgxmock.NewResult("DELETE", 0))

		assert.ErrorIs(t, repo.Delete(t.Context(), core.ID("gone")), task.ErrTaskNotFound)
	})
}
