package repository

import (
	"context"

	"seedbox/internal/domain"
)

// TorrentRepository exposes persistence operations for Torrent records.
type TorrentRepository interface {
	Init(ctx context.Context) error
	// GetOrCreateByHash returns the existing record for the info hash or
	// inserts a new one from defaults. The second return reports creation.
	GetOrCreateByHash(ctx context.Context, infoHash string, defaults *domain.Torrent) (*domain.Torrent, bool, error)
	Get(ctx context.Context, id int64) (*domain.Torrent, error)
	List(ctx context.Context) ([]domain.Torrent, error)
	// Update persists status, progress, ratio, size and finished.
	Update(ctx context.Context, torrent *domain.Torrent) error
	// MarkFinished transitions finished false->true, pinning progress to 100
	// and recording the final size. Returns false without writing when the
	// record was already finished by a concurrent step.
	MarkFinished(ctx context.Context, id int64, size int64) (bool, error)
	Delete(ctx context.Context, id int64) error
	// LinkFiles associates files with the torrent; re-linking the same pair
	// is a no-op.
	LinkFiles(ctx context.Context, torrentID int64, fileIDs []int64) error
	// SumFileSizes totals the sizes of all files linked to the torrent.
	SumFileSizes(ctx context.Context, torrentID int64) (int64, error)
	// TorrentIDsByFile returns ids of torrents a file is linked to.
	TorrentIDsByFile(ctx context.Context, fileID int64) ([]int64, error)
}

// FileRepository manages durable file records.
type FileRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, file *domain.File) (int64, error)
	// GetOrCreate inserts the file keyed on (storage area, relative path),
	// defaulting size only on first creation. The second return reports
	// whether a new row was inserted.
	GetOrCreate(ctx context.Context, area domain.StorageArea, relativePath string, defaultSize int64) (*domain.File, bool, error)
	Get(ctx context.Context, id int64) (*domain.File, error)
	// FindByAreaNameExt locates a file by its derived base name and
	// extension within a storage area.
	FindByAreaNameExt(ctx context.Context, area domain.StorageArea, name, ext string) (*domain.File, error)
	ListByTorrent(ctx context.Context, torrentID int64) ([]domain.File, error)
	UpdateSize(ctx context.Context, id int64, size int64) error
}
