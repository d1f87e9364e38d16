package service

import (
	"context"
	"errors"
	"strings"

	"seedbox/internal/daemon"
	"seedbox/internal/domain"
	"seedbox/internal/repository"
)

// FileService manages durable file records across the storage areas.
type FileService interface {
	Get(ctx context.Context, id int64) (*domain.File, error)
	// RegisterFromManifest get-or-creates one file record per manifest
	// entry on the torrent-complete area. Sizes default from the manifest
	// on first creation only; existing rows are never overwritten. Safe to
	// call repeatedly with the same manifest.
	RegisterFromManifest(ctx context.Context, manifest []daemon.FileInfo) ([]domain.File, error)
	// CreateConversionTarget creates the destination record for an MP4
	// conversion: same area as the source, extension replaced, size zero
	// until the conversion completes.
	CreateConversionTarget(ctx context.Context, source *domain.File) (*domain.File, error)
	// FindConversionCounterpart returns the same-named MP4 record in the
	// source's area, or domain.ErrNotFound.
	FindConversionCounterpart(ctx context.Context, source *domain.File) (*domain.File, error)
	ListByTorrent(ctx context.Context, torrentID int64) ([]domain.File, error)
	UpdateSize(ctx context.Context, id int64, size int64) error
}

type fileService struct {
	files repository.FileRepository
}

func NewFileService(files repository.FileRepository) FileService {
	return &fileService{files: files}
}

func (s *fileService) Get(ctx context.Context, id int64) (*domain.File, error) {
	return s.files.Get(ctx, id)
}

func (s *fileService) RegisterFromManifest(ctx context.Context, manifest []daemon.FileInfo) ([]domain.File, error) {
	files := make([]domain.File, 0, len(manifest))
	for _, entry := range manifest {
		if entry.Name == "" {
			return nil, errors.New("manifest entry without a name")
		}
		file, _, err := s.files.GetOrCreate(ctx, domain.AreaTorrentComplete, entry.Name, entry.Size)
		if err != nil {
			return nil, err
		}
		files = append(files, *file)
	}
	return files, nil
}

func (s *fileService) CreateConversionTarget(ctx context.Context, source *domain.File) (*domain.File, error) {
	path := source.RelativePath
	if source.Ext != "" {
		path = strings.TrimSuffix(path, "."+source.Ext)
	}
	target := domain.NewFile(source.StorageArea, path+".mp4")
	if _, err := s.files.Create(ctx, target); err != nil {
		return nil, err
	}
	return target, nil
}

func (s *fileService) FindConversionCounterpart(ctx context.Context, source *domain.File) (*domain.File, error) {
	return s.files.FindByAreaNameExt(ctx, source.StorageArea, source.Name, "mp4")
}

func (s *fileService) ListByTorrent(ctx context.Context, torrentID int64) ([]domain.File, error) {
	return s.files.ListByTorrent(ctx, torrentID)
}

func (s *fileService) UpdateSize(ctx context.Context, id int64, size int64) error {
	return s.files.UpdateSize(ctx, id, size)
}
