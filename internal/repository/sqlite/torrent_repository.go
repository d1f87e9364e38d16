package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"seedbox/internal/domain"
	"seedbox/internal/repository"
)

const createTorrentsTable = `
CREATE TABLE IF NOT EXISTS torrents (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	info_hash TEXT NOT NULL UNIQUE,
	status TEXT NOT NULL DEFAULT 'in_queue',
	progress REAL NOT NULL DEFAULT 0,
	ratio REAL NOT NULL DEFAULT 0,
	size INTEGER NOT NULL DEFAULT 0,
	finished INTEGER NOT NULL DEFAULT 0,
	private INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_torrents_info_hash ON torrents(info_hash);

CREATE TABLE IF NOT EXISTS torrent_files (
	torrent_id INTEGER NOT NULL,
	file_id INTEGER NOT NULL,
	PRIMARY KEY (torrent_id, file_id),
	FOREIGN KEY(torrent_id) REFERENCES torrents(id) ON DELETE CASCADE,
	FOREIGN KEY(file_id) REFERENCES files(id) ON DELETE CASCADE
);
`

type TorrentRepository struct {
	db *sql.DB
}

func NewTorrentRepository(db *sql.DB) repository.TorrentRepository {
	return &TorrentRepository{db: db}
}

func (r *TorrentRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createTorrentsTable); err != nil {
		return fmt.Errorf("create torrents table: %w", err)
	}
	return nil
}

func (r *TorrentRepository) GetOrCreateByHash(ctx context.Context, infoHash string, defaults *domain.Torrent) (*domain.Torrent, bool, error) {
	existing, err := r.getByHash(ctx, infoHash)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, false, err
	}

	now := time.Now().UTC()
	defaults.InfoHash = infoHash
	if defaults.Status == "" {
		defaults.Status = domain.StatusInQueue
	}
	defaults.CreatedAt = now
	defaults.UpdatedAt = now
	defaults.Round2()

	res, err := r.db.ExecContext(ctx, `
INSERT INTO torrents (name, info_hash, status, progress, ratio, size, finished, private, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		defaults.Name,
		defaults.InfoHash,
		string(defaults.Status),
		defaults.Progress,
		defaults.Ratio,
		defaults.Size,
		boolToInt(defaults.Finished),
		boolToInt(defaults.Private),
		defaults.CreatedAt,
		defaults.UpdatedAt,
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert torrent: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, false, fmt.Errorf("torrent last insert id: %w", err)
	}
	defaults.ID = id
	return defaults, true, nil
}

func (r *TorrentRepository) Get(ctx context.Context, id int64) (*domain.Torrent, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, name, info_hash, status, progress, ratio, size, finished, private, created_at, updated_at
FROM torrents
WHERE id = ?`,
		id,
	)
	return scanTorrent(row)
}

func (r *TorrentRepository) getByHash(ctx context.Context, infoHash string) (*domain.Torrent, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, name, info_hash, status, progress, ratio, size, finished, private, created_at, updated_at
FROM torrents
WHERE info_hash = ?`,
		infoHash,
	)
	return scanTorrent(row)
}

func (r *TorrentRepository) List(ctx context.Context) ([]domain.Torrent, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, name, info_hash, status, progress, ratio, size, finished, private, created_at, updated_at
FROM torrents
ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query torrents: %w", err)
	}
	defer rows.Close()

	var torrents []domain.Torrent
	for rows.Next() {
		torrent, err := scanTorrent(rows)
		if err != nil {
			return nil, err
		}
		torrents = append(torrents, *torrent)
	}

	return torrents, rows.Err()
}

func (r *TorrentRepository) Update(ctx context.Context, torrent *domain.Torrent) error {
	torrent.UpdatedAt = time.Now().UTC()
	torrent.Round2()

	_, err := r.db.ExecContext(ctx, `
UPDATE torrents
SET name=?, status=?, progress=?, ratio=?, size=?, finished=?, updated_at=?
WHERE id=?`,
		torrent.Name,
		string(torrent.Status),
		torrent.Progress,
		torrent.Ratio,
		torrent.Size,
		boolToInt(torrent.Finished),
		torrent.UpdatedAt,
		torrent.ID,
	)
	if err != nil {
		return fmt.Errorf("update torrent: %w", err)
	}
	return nil
}

func (r *TorrentRepository) MarkFinished(ctx context.Context, id int64, size int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE torrents
SET finished=1, progress=100, size=?, updated_at=?
WHERE id=? AND finished=0`,
		size,
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return false, fmt.Errorf("mark finished: %w", err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark finished rows affected: %w", err)
	}
	return aff > 0, nil
}

func (r *TorrentRepository) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM torrent_files WHERE torrent_id=?`, id); err != nil {
		return fmt.Errorf("delete torrent file links: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM torrents WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete torrent: %w", err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("torrent delete rows affected: %w", err)
	}
	if aff == 0 {
		return fmt.Errorf("torrent %d: %w", id, domain.ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit torrent delete: %w", err)
	}
	return nil
}

func (r *TorrentRepository) LinkFiles(ctx context.Context, torrentID int64, fileIDs []int64) error {
	if len(fileIDs) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, fileID := range fileIDs {
		if _, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO torrent_files (torrent_id, file_id)
VALUES (?, ?)`,
			torrentID,
			fileID,
		); err != nil {
			return fmt.Errorf("link file %d: %w", fileID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit file links: %w", err)
	}
	return nil
}

func (r *TorrentRepository) SumFileSizes(ctx context.Context, torrentID int64) (int64, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT COALESCE(SUM(f.size), 0)
FROM files f
JOIN torrent_files tf ON tf.file_id = f.id
WHERE tf.torrent_id = ?`,
		torrentID,
	)

	var total int64
	if err := row.Scan(&total); err != nil {
		return 0, fmt.Errorf("sum file sizes: %w", err)
	}
	return total, nil
}

func (r *TorrentRepository) TorrentIDsByFile(ctx context.Context, fileID int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT torrent_id
FROM torrent_files
WHERE file_id = ?
ORDER BY torrent_id ASC`,
		fileID,
	)
	if err != nil {
		return nil, fmt.Errorf("query torrent ids by file: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan torrent id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanTorrent(scanner interface {
	Scan(dest ...any) error
}) (*domain.Torrent, error) {
	var (
		torrent  domain.Torrent
		status   string
		finished int
		private  int
	)

	if err := scanner.Scan(
		&torrent.ID,
		&torrent.Name,
		&torrent.InfoHash,
		&status,
		&torrent.Progress,
		&torrent.Ratio,
		&torrent.Size,
		&finished,
		&private,
		&torrent.CreatedAt,
		&torrent.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("torrent: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("scan torrent: %w", err)
	}

	torrent.Status = domain.Status(status)
	torrent.Finished = finished != 0
	torrent.Private = private != 0
	return &torrent, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
