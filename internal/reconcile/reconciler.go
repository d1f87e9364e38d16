// Package reconcile drives the torrent status lifecycle: it polls the daemon
// on a fixed cadence, mirrors the reported state onto the durable record and
// triggers file registration and the seeding shutdown at the right
// milestones. It is the only writer of status, progress and finished.
package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/andres-erbsen/clock"
	"github.com/sirupsen/logrus"

	"seedbox/internal/daemon"
	"seedbox/internal/domain"
	"seedbox/internal/event"
	"seedbox/internal/progress"
	"seedbox/internal/scheduler"
	"seedbox/internal/service"
)

// Config tunes the polling cadence and the seed ceiling.
type Config struct {
	// Interval is the delay between two poll invocations of one chain.
	Interval time.Duration
	// SeedCeiling is how long a finished torrent keeps seeding, measured
	// from its creation, before it is force-stopped.
	SeedCeiling time.Duration
	Logger      *logrus.Logger
}

func (c *Config) applyDefaults() {
	if c.Interval == 0 {
		c.Interval = 5 * time.Second
	}
	if c.SeedCeiling == 0 {
		c.SeedCeiling = 24 * time.Hour
	}
	if c.Logger == nil {
		c.Logger = logrus.New()
	}
}

// Reconciler holds the two self-rescheduling steps. Each invocation loads the
// durable record, queries the daemon, and either terminates its chain or
// enqueues exactly one successor; a crash between invocations only loses the
// reschedule, never durable state.
type Reconciler struct {
	cfg      Config
	torrents service.TorrentService
	files    service.FileService
	store    *progress.Store
	client   daemon.Client
	sched    scheduler.Scheduler
	clk      clock.Clock
}

func New(
	cfg Config,
	torrents service.TorrentService,
	files service.FileService,
	store *progress.Store,
	client daemon.Client,
	sched scheduler.Scheduler,
	clk clock.Clock,
) *Reconciler {
	cfg.applyDefaults()
	return &Reconciler{
		cfg:      cfg,
		torrents: torrents,
		files:    files,
		store:    store,
		client:   client,
		sched:    sched,
		clk:      clk,
	}
}

// Subscribe starts an update-and-save chain for every newly created torrent.
func (r *Reconciler) Subscribe(bus *event.Bus) {
	bus.OnTorrentCreated(func(e event.TorrentCreated) {
		r.sched.ScheduleAfter(0, scheduler.StepUpdateAndSave, e.Torrent.ID)
	})
}

// UpdateAndSaveInformation mirrors daemon state onto the durable record until
// the transfer reaches 100%, then registers files, finishes the record and
// hands off to UpdateAndStopSeeding.
func (r *Reconciler) UpdateAndSaveInformation(ctx context.Context, torrentID int64) error {
	torrent, err := r.torrents.Get(ctx, torrentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			r.cfg.Logger.Infof("torrent #%d does not exist, it may be force deleted before completion", torrentID)
			return nil
		}
		return err
	}

	handle, err := r.client.Get(ctx, torrent.InfoHash)
	if err != nil {
		return err
	}

	torrent.Status = handle.Status
	torrent.Progress = handle.Progress
	torrent.Ratio = handle.Ratio

	if err := r.store.SetTorrentRates(torrent.ID, progress.TorrentRates{
		RateUpload:   handle.RateUpload,
		RateDownload: handle.RateDownload,
	}); err != nil {
		return err
	}

	if int(torrent.Progress) != 100 {
		if err := r.torrents.Update(ctx, torrent); err != nil {
			return err
		}
		r.sched.ScheduleAfter(r.cfg.Interval, scheduler.StepUpdateAndSave, torrentID)
		return nil
	}

	files, err := r.files.RegisterFromManifest(ctx, handle.Files)
	if err != nil {
		return err
	}
	fileIDs := make([]int64, len(files))
	for i := range files {
		fileIDs[i] = files[i].ID
	}
	if err := r.torrents.LinkFiles(ctx, torrent.ID, fileIDs); err != nil {
		return err
	}

	if err := r.torrents.Update(ctx, torrent); err != nil {
		return err
	}
	won, err := r.torrents.Finish(ctx, torrent.ID)
	if err != nil {
		return err
	}
	if !won {
		// A duplicate chain finished this torrent first; it owns the
		// stop-seeding handoff.
		r.cfg.Logger.Infof("%s already marked finished", torrent)
		return nil
	}

	if err := r.store.ResetTorrentRates(torrent.ID); err != nil {
		return err
	}

	r.cfg.Logger.Infof("%s finished downloading", torrent)

	r.sched.ScheduleAfter(0, scheduler.StepUpdateAndStopSeeding, torrentID)
	return nil
}

// UpdateAndStopSeeding keeps ratio/status fresh while the torrent seeds and
// force-stops it once the seed ceiling elapses or the daemon reports it
// stopped. The stopped branch is the chain's terminal state.
func (r *Reconciler) UpdateAndStopSeeding(ctx context.Context, torrentID int64) error {
	torrent, err := r.torrents.Get(ctx, torrentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			r.cfg.Logger.Infof("torrent #%d does not exist, it may be force deleted before completion", torrentID)
			return nil
		}
		return err
	}

	handle, err := r.client.Get(ctx, torrent.InfoHash)
	if err != nil {
		return err
	}

	past := r.clk.Now().UTC().Add(-r.cfg.SeedCeiling)
	if torrent.CreatedAt.Before(past) || handle.Status == domain.StatusStopped {
		torrent.Ratio = handle.Ratio
		torrent.Status = domain.StatusStopped
		if err := r.torrents.Update(ctx, torrent); err != nil {
			return err
		}
		if err := r.client.Stop(ctx, torrent.InfoHash); err != nil {
			return err
		}
		if err := r.store.SetUploadRate(torrent.ID, 0); err != nil {
			return err
		}

		r.cfg.Logger.Infof("%s stopped seeding", torrent)
		return nil
	}

	if err := r.store.SetUploadRate(torrent.ID, handle.RateUpload); err != nil {
		return err
	}

	torrent.Ratio = handle.Ratio
	torrent.Status = handle.Status
	if err := r.torrents.Update(ctx, torrent); err != nil {
		return err
	}

	r.sched.ScheduleAfter(r.cfg.Interval, scheduler.StepUpdateAndStopSeeding, torrentID)
	return nil
}
