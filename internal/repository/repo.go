package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

func NewRepo(db *sql.DB) *Repo { return &Repo{db: db} }

func (r *Repo) UpsertSettings(ctx context.Context, guild string) (*Settings, error) {
	_, _ = r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO settings(guild_id) VALUES (?)`, guild,
	)
	return r.GetSettings(ctx, guild)
}

func (r *Repo) GetSettings(ctx context.Context, guild string) (*Settings, error) {
	row := r.db.QueryRowContext(ctx, `
	SELECT guild_id, idle_timeout_sec, queue_page_size
	FROM settings WHERE guild_id = ?`, guild)

	var s Settings
	if err := row.Scan(&s.GuildID, &s.IdleTimeoutSec, &s.QueuePageSize); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, err
	}
	return &s, nil
}

func (r *Repo) UpdateSettings(ctx context.Context, s *Settings) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE settings SET
		  idle_timeout_sec=?,
		  queue_page_size=?
		WHERE guild_id=?`,
		s.IdleTimeoutSec, s.QueuePageSize, s.GuildID,
	)
	return err
}

func (r *Repo) CacheTouch(ctx context.Context, hash string, size int64, created bool) error {
	now := time.Now().Unix()
	if created {
		_, err := r.db.ExecContext(ctx, `INSERT OR REPLACE INTO file_cache(hash,bytes,accessed_at,created_at) VALUES (?,?,?,COALESCE((SELECT created_at FROM file_cache WHERE hash=?),?))`,
			hash, size, now, hash, now)
		return err
	}
	_, err := r.db.ExecContext(ctx, `UPDATE file_cache SET accessed_at=? WHERE hash=?`, now, hash)
	return err
}

func (r *Repo) CacheRemove(ctx context.Context, hash string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM file_cache WHERE hash=?`, hash)
	return err
}

func (r *Repo) CacheTotalBytes(ctx context.Context) (int64, error) {
	row := r.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(bytes),0) FROM file_cache`)
	var v int64
	if err := row.Scan(&v); err != nil {
		return 0, err
	}
	return v, nil
}

func (r *Repo) CacheOldest(ctx context.Context) (string, error) {
	row := r.db.QueryRowContext(ctx, `SELECT hash FROM file_cache ORDER BY accessed_at ASC LIMIT 1`)
	var hash string
	if err := row.Scan(&hash); err != nil {
		return "", err
	}
	return hash, nil
}
