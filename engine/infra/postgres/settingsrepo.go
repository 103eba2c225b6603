package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dallosh/analysis/engine/settings"
	"github.com/georgysavva/scany/v2/pgxscan"
)

type settingsRow struct {
	UID       string    `db:"uid"`
	Data      []byte    `db:"data"`
	UpdatedAt time.Time `db:"updated_at"`
}

// SettingsRepo reads the platform settings document owned by the admin API.
type SettingsRepo struct {
	db DB
}

func NewSettingsRepo(db DB) *SettingsRepo {
	return &SettingsRepo{db: db}
}

func (r *SettingsRepo) Get(ctx context.Context) (*settings.Settings, error) {
	query, args, err := psql().
		Select("uid", "data", "updated_at").
		From("settings").
		OrderBy("created_at ASC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building settings query: %w", err)
	}
	var row settingsRow
	if err := pgxscan.Get(ctx, r.db, &row, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, settings.ErrNotFound
		}
		return nil, fmt.Errorf("scanning settings: %w", err)
	}
	out := &settings.Settings{UID: row.UID, UpdatedAt: row.UpdatedAt}
	if len(row.Data) > 0 {
		if err := json.Unmarshal(row.Data, out); err != nil {
			return nil, fmt.Errorf("decoding settings %s: %w", row.UID, err)
		}
		out.UID = row.UID
		out.UpdatedAt = row.UpdatedAt
	}
	return out, nil
}
