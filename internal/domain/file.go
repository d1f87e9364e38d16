package domain

import (
	"fmt"
	"mime"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// StorageArea identifies the logical volume a file lives on.
type StorageArea string

const (
	AreaUpload          StorageArea = "upload"
	AreaDownload        StorageArea = "download"
	AreaTorrentComplete StorageArea = "torrent_complete"
)

// Dir returns the directory of the area relative to the storage root.
func (a StorageArea) Dir() string {
	switch a {
	case AreaUpload:
		return "uploads"
	case AreaDownload:
		return "downloads"
	case AreaTorrentComplete:
		return filepath.Join("torrents", "complete")
	}
	return string(a)
}

// File is a durable record of a file on one of the storage areas. The
// (StorageArea, RelativePath) pair is the natural key; RelativePath is unique
// across all files.
type File struct {
	ID           int64
	StorageArea  StorageArea
	RelativePath string
	Name         string
	Ext          string
	ContentType  string
	Size         int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewFile builds a File for the given area and path, deriving name, extension
// and content type the same way on every creation path.
func NewFile(area StorageArea, relativePath string) *File {
	f := &File{
		StorageArea:  area,
		RelativePath: relativePath,
	}
	f.DeriveMeta()
	return f
}

// DeriveMeta recomputes Name, Ext and ContentType from RelativePath.
func (f *File) DeriveMeta() {
	base := path.Base(f.RelativePath)
	ext := path.Ext(base)
	f.Name = strings.TrimSuffix(base, ext)
	f.Ext = strings.TrimPrefix(ext, ".")
	f.ContentType = mime.TypeByExtension(ext)
}

func (f *File) String() string {
	return fmt.Sprintf("%s (#%d)", f.FileName(), f.ID)
}

// FileName returns the base name with extension.
func (f *File) FileName() string {
	if f.Ext == "" {
		return f.Name
	}
	return f.Name + "." + f.Ext
}

// FullPath resolves the file's absolute location under the storage root.
func (f *File) FullPath(root string) string {
	return filepath.Join(root, f.StorageArea.Dir(), filepath.FromSlash(f.RelativePath))
}
