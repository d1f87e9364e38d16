package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"seedbox/internal/domain"
	"seedbox/internal/repository"
)

const createFilesTable = `
CREATE TABLE IF NOT EXISTS files (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	storage_area TEXT NOT NULL,
	relative_path TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	ext TEXT NOT NULL DEFAULT '',
	content_type TEXT NOT NULL DEFAULT '',
	size INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_files_area_path ON files(storage_area, relative_path);
`

type FileRepository struct {
	db *sql.DB
}

func NewFileRepository(db *sql.DB) repository.FileRepository {
	return &FileRepository{db: db}
}

func (r *FileRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createFilesTable); err != nil {
		return fmt.Errorf("create files table: %w", err)
	}
	return nil
}

func (r *FileRepository) Create(ctx context.Context, file *domain.File) (int64, error) {
	now := time.Now().UTC()
	file.CreatedAt = now
	file.UpdatedAt = now
	file.DeriveMeta()

	res, err := r.db.ExecContext(ctx, `
INSERT INTO files (storage_area, relative_path, name, ext, content_type, size, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(file.StorageArea),
		file.RelativePath,
		file.Name,
		file.Ext,
		file.ContentType,
		file.Size,
		file.CreatedAt,
		file.UpdatedAt,
	)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			return 0, fmt.Errorf("file already exists: %w", err)
		}
		return 0, fmt.Errorf("insert file: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("file last insert id: %w", err)
	}
	file.ID = id
	return id, nil
}

func (r *FileRepository) GetOrCreate(ctx context.Context, area domain.StorageArea, relativePath string, defaultSize int64) (*domain.File, bool, error) {
	existing, err := r.getByAreaPath(ctx, area, relativePath)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, false, err
	}

	file := domain.NewFile(area, relativePath)
	file.Size = defaultSize
	if _, err := r.Create(ctx, file); err != nil {
		// Lost a creation race; fall back to the winner's row.
		if strings.Contains(strings.ToLower(err.Error()), "already exists") {
			existing, getErr := r.getByAreaPath(ctx, area, relativePath)
			if getErr != nil {
				return nil, false, getErr
			}
			return existing, false, nil
		}
		return nil, false, err
	}
	return file, true, nil
}

func (r *FileRepository) Get(ctx context.Context, id int64) (*domain.File, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, storage_area, relative_path, name, ext, content_type, size, created_at, updated_at
FROM files
WHERE id = ?`,
		id,
	)
	return scanFile(row)
}

func (r *FileRepository) getByAreaPath(ctx context.Context, area domain.StorageArea, relativePath string) (*domain.File, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, storage_area, relative_path, name, ext, content_type, size, created_at, updated_at
FROM files
WHERE storage_area = ? AND relative_path = ?`,
		string(area),
		relativePath,
	)
	return scanFile(row)
}

func (r *FileRepository) FindByAreaNameExt(ctx context.Context, area domain.StorageArea, name, ext string) (*domain.File, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, storage_area, relative_path, name, ext, content_type, size, created_at, updated_at
FROM files
WHERE storage_area = ? AND name = ? AND ext = ?
ORDER BY id ASC
LIMIT 1`,
		string(area),
		name,
		ext,
	)
	return scanFile(row)
}

func (r *FileRepository) ListByTorrent(ctx context.Context, torrentID int64) ([]domain.File, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT f.id, f.storage_area, f.relative_path, f.name, f.ext, f.content_type, f.size, f.created_at, f.updated_at
FROM files f
JOIN torrent_files tf ON tf.file_id = f.id
WHERE tf.torrent_id = ?
ORDER BY f.id ASC`,
		torrentID,
	)
	if err != nil {
		return nil, fmt.Errorf("query files by torrent: %w", err)
	}
	defer rows.Close()

	var files []domain.File
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, *file)
	}
	return files, rows.Err()
}

func (r *FileRepository) UpdateSize(ctx context.Context, id int64, size int64) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE files
SET size=?, updated_at=?
WHERE id=?`,
		size,
		time.Now().UTC(),
		id,
	)
	if err != nil {
		return fmt.Errorf("update file size: %w", err)
	}
	return nil
}

func scanFile(scanner interface {
	Scan(dest ...any) error
}) (*domain.File, error) {
	var (
		file domain.File
		area string
	)

	if err := scanner.Scan(
		&file.ID,
		&area,
		&file.RelativePath,
		&file.Name,
		&file.Ext,
		&file.ContentType,
		&file.Size,
		&file.CreatedAt,
		&file.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("file: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("scan file: %w", err)
	}

	file.StorageArea = domain.StorageArea(area)
	return &file, nil
}
