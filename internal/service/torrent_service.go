package service

import (
	"context"
	"errors"
	"strings"

	"seedbox/internal/daemon"
	"seedbox/internal/domain"
	"seedbox/internal/event"
	"seedbox/internal/repository"
)

// ErrInvalidLink indicates the submitted link is neither a magnet nor a
// torrent URL.
var ErrInvalidLink = errors.New("invalid magnet or torrent link")

// TorrentService coordinates torrent records between the daemon, the durable
// store and interested subscribers. Status, progress and finished are owned by
// the reconcile package; this service only creates, links and reads.
type TorrentService interface {
	// Add submits the link to the daemon and get-or-creates the durable
	// record keyed by the daemon-reported info hash. A TorrentCreated event
	// is emitted only for newly created records. ownerID zero means no owner
	// attachment.
	Add(ctx context.Context, link string, ownerID int64) (*domain.Torrent, bool, error)
	Get(ctx context.Context, id int64) (*domain.Torrent, error)
	List(ctx context.Context) ([]domain.Torrent, error)
	Update(ctx context.Context, torrent *domain.Torrent) error
	// Finish transitions the torrent to finished, recording the sum of its
	// linked file sizes. Returns false when a concurrent step already won
	// the transition.
	Finish(ctx context.Context, id int64) (bool, error)
	// LinkFiles associates files with the torrent and emits FilesLinked
	// after the batch is committed.
	LinkFiles(ctx context.Context, torrentID int64, fileIDs []int64) error
	Delete(ctx context.Context, id int64) error
	AttachOwner(ctx context.Context, userID, torrentID int64) error
	DetachOwner(ctx context.Context, userID, torrentID int64) error
	TorrentIDsByFile(ctx context.Context, fileID int64) ([]int64, error)
}

type torrentService struct {
	torrents repository.TorrentRepository
	files    repository.FileRepository
	users    repository.UserRepository
	client   daemon.Client
	bus      *event.Bus
}

func NewTorrentService(
	torrents repository.TorrentRepository,
	files repository.FileRepository,
	users repository.UserRepository,
	client daemon.Client,
	bus *event.Bus,
) TorrentService {
	return &torrentService{
		torrents: torrents,
		files:    files,
		users:    users,
		client:   client,
		bus:      bus,
	}
}

// ValidLink reports whether the link looks like a magnet URI or a torrent URL.
func ValidLink(link string) bool {
	link = strings.TrimSpace(link)
	if strings.HasPrefix(link, "magnet:") {
		return true
	}
	if strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://") {
		return strings.HasSuffix(link, ".torrent")
	}
	return false
}

func (s *torrentService) Add(ctx context.Context, link string, ownerID int64) (*domain.Torrent, bool, error) {
	if !ValidLink(link) {
		return nil, false, ErrInvalidLink
	}

	handle, err := s.client.Add(ctx, strings.TrimSpace(link))
	if err != nil {
		return nil, false, err
	}

	torrent, created, err := s.torrents.GetOrCreateByHash(ctx, handle.InfoHash, &domain.Torrent{
		Name:    handle.Name,
		Private: handle.Private,
	})
	if err != nil {
		return nil, false, err
	}

	if ownerID != 0 {
		if err := s.users.LinkTorrent(ctx, ownerID, torrent.ID); err != nil {
			return nil, false, err
		}
	}

	if created {
		s.bus.EmitTorrentCreated(event.TorrentCreated{Torrent: torrent})
	}
	return torrent, created, nil
}

func (s *torrentService) Get(ctx context.Context, id int64) (*domain.Torrent, error) {
	torrent, err := s.torrents.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	files, err := s.files.ListByTorrent(ctx, id)
	if err != nil {
		return nil, err
	}
	torrent.Files = files
	return torrent, nil
}

func (s *torrentService) List(ctx context.Context) ([]domain.Torrent, error) {
	torrents, err := s.torrents.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range torrents {
		files, err := s.files.ListByTorrent(ctx, torrents[i].ID)
		if err != nil {
			return nil, err
		}
		torrents[i].Files = files
	}
	return torrents, nil
}

func (s *torrentService) Update(ctx context.Context, torrent *domain.Torrent) error {
	return s.torrents.Update(ctx, torrent)
}

func (s *torrentService) Finish(ctx context.Context, id int64) (bool, error) {
	size, err := s.torrents.SumFileSizes(ctx, id)
	if err != nil {
		return false, err
	}
	return s.torrents.MarkFinished(ctx, id, size)
}

func (s *torrentService) LinkFiles(ctx context.Context, torrentID int64, fileIDs []int64) error {
	if err := s.torrents.LinkFiles(ctx, torrentID, fileIDs); err != nil {
		return err
	}
	s.bus.EmitFilesLinked(event.FilesLinked{TorrentID: torrentID, FileIDs: fileIDs})
	return nil
}

func (s *torrentService) Delete(ctx context.Context, id int64) error {
	return s.torrents.Delete(ctx, id)
}

func (s *torrentService) AttachOwner(ctx context.Context, userID, torrentID int64) error {
	return s.users.LinkTorrent(ctx, userID, torrentID)
}

func (s *torrentService) DetachOwner(ctx context.Context, userID, torrentID int64) error {
	return s.users.UnlinkTorrent(ctx, userID, torrentID)
}

func (s *torrentService) TorrentIDsByFile(ctx context.Context, fileID int64) ([]int64, error) {
	return s.torrents.TorrentIDsByFile(ctx, fileID)
}
