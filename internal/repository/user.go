package repository

import (
	"context"

	"seedbox/internal/domain"
)

// UserRepository defines persistence operations for User entities and their
// ownership links.
type UserRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, user *domain.User) (int64, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	// LinkTorrent makes the user an owner of the torrent; idempotent.
	LinkTorrent(ctx context.Context, userID, torrentID int64) error
	UnlinkTorrent(ctx context.Context, userID, torrentID int64) error
	// LinkFiles grants the user access to the files; idempotent.
	LinkFiles(ctx context.Context, userID int64, fileIDs []int64) error
	// ListByTorrent returns all owners of a torrent.
	ListByTorrent(ctx context.Context, torrentID int64) ([]domain.User, error)
}
