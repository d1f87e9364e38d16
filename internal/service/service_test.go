package service

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"seedbox/internal/daemon"
	"seedbox/internal/event"
	"seedbox/internal/repository"
	"seedbox/internal/repository/sqlite"
)

type stubDaemon struct {
	handle daemon.Handle
	addErr error
	added  []string
}

func (d *stubDaemon) Add(ctx context.Context, link string) (daemon.Handle, error) {
	if d.addErr != nil {
		return daemon.Handle{}, d.addErr
	}
	d.added = append(d.added, link)
	return d.handle, nil
}

func (d *stubDaemon) Get(ctx context.Context, infoHash string) (daemon.Handle, error) {
	return d.handle, nil
}

func (d *stubDaemon) Stop(ctx context.Context, infoHash string) error {
	return nil
}

type testEnv struct {
	db          *sql.DB
	torrentRepo repository.TorrentRepository
	fileRepo    repository.FileRepository
	userRepo    repository.UserRepository
	client      *stubDaemon
	bus         *event.Bus
	torrents    TorrentService
	files       FileService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	torrentRepo := sqlite.NewTorrentRepository(db)
	fileRepo := sqlite.NewFileRepository(db)
	userRepo := sqlite.NewUserRepository(db)
	require.NoError(t, torrentRepo.Init(ctx))
	require.NoError(t, fileRepo.Init(ctx))
	require.NoError(t, userRepo.Init(ctx))

	client := &stubDaemon{}
	bus := event.NewBus()

	return &testEnv{
		db:          db,
		torrentRepo: torrentRepo,
		fileRepo:    fileRepo,
		userRepo:    userRepo,
		client:      client,
		bus:         bus,
		torrents:    NewTorrentService(torrentRepo, fileRepo, userRepo, client, bus),
		files:       NewFileService(fileRepo),
	}
}
