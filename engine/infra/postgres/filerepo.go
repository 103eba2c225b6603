package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
)

// FileRecords manages rows of the shared files table.
type FileRecords struct {
	db DB
}

func NewFileRecords(db DB) *FileRecords {
	return &FileRecords{db: db}
}

// DeleteByUID removes the record for uid. A missing record is not an error.
func (r *FileRecords) DeleteByUID(ctx context.Context, uid string) error {
	query, args, err := psql().Delete("files").Where(squirrel.Eq{"uid": uid}).ToSql()
	if err != nil {
		return fmt.Errorf("building delete: %w", err)
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("deleting file record %s: %w", uid, err)
	}
	return nil
}
