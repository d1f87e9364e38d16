package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"seedbox/internal/event"
	"seedbox/internal/repository"
)

// LinkPropagator keeps the derived ownership invariant: every owner of a
// torrent also owns each file linked to it. It reacts to FilesLinked events;
// the file-to-torrent linkage is already committed when it runs, so a failure
// here is logged per owner and never rolled back.
type LinkPropagator struct {
	users  repository.UserRepository
	logger *logrus.Logger
}

func NewLinkPropagator(users repository.UserRepository, logger *logrus.Logger) *LinkPropagator {
	return &LinkPropagator{
		users:  users,
		logger: logger,
	}
}

// Subscribe registers the propagator on the bus.
func (p *LinkPropagator) Subscribe(bus *event.Bus) {
	bus.OnFilesLinked(func(e event.FilesLinked) {
		p.Propagate(context.Background(), e)
	})
}

// Propagate links every owner of the torrent to each file in the batch.
// Re-propagating the same batch is a no-op in the link tables.
func (p *LinkPropagator) Propagate(ctx context.Context, e event.FilesLinked) {
	owners, err := p.users.ListByTorrent(ctx, e.TorrentID)
	if err != nil {
		p.logger.WithField("torrent_id", e.TorrentID).Errorf("list owners: %v", err)
		return
	}

	for _, owner := range owners {
		if err := p.users.LinkFiles(ctx, owner.ID, e.FileIDs); err != nil {
			p.logger.WithField("torrent_id", e.TorrentID).
				Errorf("link %d files to user %d: %v", len(e.FileIDs), owner.ID, err)
			continue
		}
		p.logger.Infof("linked %d files of torrent %d to user %s", len(e.FileIDs), e.TorrentID, owner.Username)
	}
}
