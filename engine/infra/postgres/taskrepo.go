package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/dallosh/analysis/engine/core"
	"github.com/dallosh/analysis/engine/task"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

var taskColumns = []string{
	"uid",
	"file_id",
	"file_path",
	"status",
	"stage",
	"awaiting_resume",
	"file_cleaned_path",
	"file_cleaned_type",
	"file_analysed_path",
	"file_analysed_type",
	"created_at",
	"created_by",
	"updated_at",
	"updated_by",
}

var sortColumns = map[task.SortField]string{
	task.SortCreatedAt: "created_at",
	task.SortUpdatedAt: "updated_at",
	task.SortStatus:    "status",
	task.SortFileID:    "file_id",
}

// DB is the minimal database interface the repositories depend on (pgxpool or pgxmock).
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type taskRow struct {
	UID              string    `db:"uid"`
	FileID           string    `db:"file_id"`
	FilePath         string    `db:"file_path"`
	Status           string    `db:"status"`
	Stage            string    `db:"stage"`
	AwaitingResume   bool      `db:"awaiting_resume"`
	FileCleanedPath  *string   `db:"file_cleaned_path"`
	FileCleanedType  *string   `db:"file_cleaned_type"`
	FileAnalysedPath *string   `db:"file_analysed_path"`
	FileAnalysedType *string   `db:"file_analysed_type"`
	CreatedAt        time.Time `db:"created_at"`
	CreatedBy        string    `db:"created_by"`
	UpdatedAt        time.Time `db:"updated_at"`
	UpdatedBy        string    `db:"updated_by"`
}

func (r *taskRow) toTask() *task.Task {
	return &task.Task{
		UID:            core.ID(r.UID),
		FileID:         r.FileID,
		FilePath:       r.FilePath,
		Status:         task.Status(r.Status),
		Stage:          task.Status(r.Stage),
		AwaitingResume: r.AwaitingResume,
		FileCleaned:    task.FileInfo{Path: r.FileCleanedPath, Type: r.FileCleanedType},
		FileAnalysed:   task.FileInfo{Path: r.FileAnalysedPath, Type: r.FileAnalysedType},
		CreatedAt:      r.CreatedAt,
		CreatedBy:      r.CreatedBy,
		UpdatedAt:      r.UpdatedAt,
		UpdatedBy:      r.UpdatedBy,
	}
}

// TaskRepo implements task.Repository on Postgres.
type TaskRepo struct {
	db  DB
	now func() time.Time
}

func NewTaskRepo(db DB) *TaskRepo {
	return &TaskRepo{db: db, now: time.Now}
}

func psql() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *TaskRepo) Create(ctx context.Context, t *task.Task) error {
	query, args, err := psql().Insert("tasks").Columns(taskColumns...).Values(
		t.UID.String(),
		t.FileID,
		t.FilePath,
		t.Status.String(),
		t.Stage.String(),
		t.AwaitingResume,
		t.FileCleaned.Path,
		t.FileCleaned.Type,
		t.FileAnalysed.Path,
		t.FileAnalysed.Type,
		t.CreatedAt,
		t.CreatedBy,
		t.UpdatedAt,
		t.UpdatedBy,
	).ToSql()
	if err != nil {
		return fmt.Errorf("building insert: %w", err)
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", task.ErrTaskExists, t.FileID)
		}
		return fmt.Errorf("inserting task: %w", err)
	}
	return nil
}

func (r *TaskRepo) Get(ctx context.Context, uid core.ID) (*task.Task, error) {
	return r.getBy(ctx, squirrel.Eq{"uid": uid.String()})
}

func (r *TaskRepo) GetByFileID(ctx context.Context, fileID string) (*task.Task, error) {
	return r.getBy(ctx, squirrel.Eq{"file_id": fileID})
}

func (r *TaskRepo) getBy(ctx context.Context, where squirrel.Eq) (*task.Task, error) {
	query, args, err := psql().Select(taskColumns...).From("tasks").Where(where).Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	var row taskRow
	if err := pgxscan.Get(ctx, r.db, &row, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, task.ErrTaskNotFound
		}
		return nil, fmt.Errorf("scanning task: %w", err)
	}
	return row.toTask(), nil
}

func (r *TaskRepo) List(ctx context.Context, opts task.ListOptions) ([]*task.Task, int64, error) {
	if err := opts.Validate(); err != nil {
		return nil, 0, err
	}
	where := squirrel.And{}
	if opts.Status != nil {
		where = append(where, squirrel.Eq{"status": opts.Status.String()})
	}
	if opts.FileID != "" {
		where = append(where, squirrel.Eq{"file_id": opts.FileID})
	}
	countBuilder := psql().Select("COUNT(*)").From("tasks")
	listBuilder := psql().Select(taskColumns...).From("tasks")
	if len(where) > 0 {
		countBuilder = countBuilder.Where(where)
		listBuilder = listBuilder.Where(where)
	}
	countQuery, countArgs, err := countBuilder.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("building count query: %w", err)
	}
	var total int64
	if err := r.db.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting tasks: %w", err)
	}
	direction := "ASC"
	if opts.Descending {
		direction = "DESC"
	}
	query, args, err := listBuilder.
		OrderBy(sortColumns[opts.SortBy]+" "+direction, "uid "+direction).
		Limit(uint64(opts.Limit)).
		Offset(uint64(opts.Offset)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("building list query: %w", err)
	}
	var rows []*taskRow
	if err := pgxscan.Select(ctx, r.db, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("scanning tasks: %w", err)
	}
	out := make([]*task.Task, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toTask())
	}
	return out, total, nil
}

// Update applies patch and stamps the audit fields in one statement.
func (r *TaskRepo) Update(ctx context.Context, uid core.ID, patch task.Patch, actor string) (*task.Task, error) {
	ub := psql().Update("tasks")
	if patch.FilePath != nil {
		ub = ub.Set("file_path", *patch.FilePath)
	}
	if patch.Status != nil {
		ub = ub.Set("status", patch.Status.String())
	}
	if patch.Stage != nil {
		ub = ub.Set("stage", patch.Stage.String())
	}
	if patch.AwaitingResume != nil {
		ub = ub.Set("awaiting_resume", *patch.AwaitingResume)
	}
	if patch.FileCleaned != nil {
		ub = ub.Set("file_cleaned_path", patch.FileCleaned.Path).Set("file_cleaned_type", patch.FileCleaned.Type)
	}
	if patch.FileAnalysed != nil {
		ub = ub.Set("file_analysed_path", patch.FileAnalysed.Path).Set("file_analysed_type", patch.FileAnalysed.Type)
	}
	query, args, err := ub.
		Set("updated_at", r.now().UTC()).
		Set("updated_by", actor).
		Where(squirrel.Eq{"uid": uid.String()}).
		Suffix("RETURNING " + strings.Join(taskColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building update: %w", err)
	}
	var row taskRow
	if err := pgxscan.Get(ctx, r.db, &row, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, task.ErrTaskNotFound
		}
		return nil, fmt.Errorf("updating task: %w", err)
	}
	return row.toTask(), nil
}

func (r *TaskRepo) Delete(ctx context.Context, uid core.ID) error {
	query, args, err := psql().Delete("tasks").Where(squirrel.Eq{"uid": uid.String()}).ToSql()
	if err != nil {
		return fmt.Errorf("building delete: %w", err)
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deleting task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return task.ErrTaskNotFound
	}
	return nil
}
