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

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS user_torrents (
	user_id INTEGER NOT NULL,
	torrent_id INTEGER NOT NULL,
	PRIMARY KEY (user_id, torrent_id),
	FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE,
	FOREIGN KEY(torrent_id) REFERENCES torrents(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS user_files (
	user_id INTEGER NOT NULL,
	file_id INTEGER NOT NULL,
	PRIMARY KEY (user_id, file_id),
	FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE,
	FOREIGN KEY(file_id) REFERENCES files(id) ON DELETE CASCADE
);
`

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) repository.UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createUsersTable); err != nil {
		return fmt.Errorf("create users tables: %w", err)
	}
	return nil
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (int64, error) {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	res, err := r.db.ExecContext(ctx, `
INSERT INTO users (username, password_hash, created_at, updated_at)
VALUES (?, ?, ?, ?)`,
		user.Username,
		user.PasswordHash,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			return 0, fmt.Errorf("user already exists: %w", err)
		}
		return 0, fmt.Errorf("insert user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("user last insert id: %w", err)
	}
	user.ID = id
	return id, nil
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, username, password_hash, created_at, updated_at
FROM users
WHERE username = ?`,
		username,
	)
	return scanUser(row)
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, username, password_hash, created_at, updated_at
FROM users
WHERE id = ?`,
		id,
	)
	return scanUser(row)
}

func (r *UserRepository) LinkTorrent(ctx context.Context, userID, torrentID int64) error {
	if _, err := r.db.ExecContext(ctx, `
INSERT OR IGNORE INTO user_torrents (user_id, torrent_id)
VALUES (?, ?)`,
		userID,
		torrentID,
	); err != nil {
		return fmt.Errorf("link torrent to user: %w", err)
	}
	return nil
}

func (r *UserRepository) UnlinkTorrent(ctx context.Context, userID, torrentID int64) error {
	if _, err := r.db.ExecContext(ctx, `
DELETE FROM user_torrents
WHERE user_id = ? AND torrent_id = ?`,
		userID,
		torrentID,
	); err != nil {
		return fmt.Errorf("unlink torrent from user: %w", err)
	}
	return nil
}

func (r *UserRepository) LinkFiles(ctx context.Context, userID int64, fileIDs []int64) error {
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
INSERT OR IGNORE INTO user_files (user_id, file_id)
VALUES (?, ?)`,
			userID,
			fileID,
		); err != nil {
			return fmt.Errorf("link file %d to user: %w", fileID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit user file links: %w", err)
	}
	return nil
}

func (r *UserRepository) ListByTorrent(ctx context.Context, torrentID int64) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT u.id, u.username, u.password_hash, u.created_at, u.updated_at
FROM users u
JOIN user_torrents ut ON ut.user_id = u.id
WHERE ut.torrent_id = ?
ORDER BY u.id ASC`,
		torrentID,
	)
	if err != nil {
		return nil, fmt.Errorf("query users by torrent: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

func scanUser(row interface {
	Scan(dest ...any) error
}) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &user, nil
}
