package transcode

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"seedbox/internal/domain"
	"seedbox/internal/event"
	"seedbox/internal/progress"
	"seedbox/internal/repository"
	"seedbox/internal/repository/sqlite"
	"seedbox/internal/service"
)

type testEnv struct {
	worker      *Worker
	store       *progress.Store
	files       service.FileService
	fileRepo    repository.FileRepository
	torrentRepo repository.TorrentRepository
	torrents    service.TorrentService
	root        string
}

// writeScript installs an executable stand-in for ffprobe or ffmpeg.
func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func newTestEnv(t *testing.T, ffprobe, ffmpeg string) *testEnv {
	t.Helper()
	ctx := context.Background()

	dir := t.TempDir()
	db, err := sqlite.Open(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	torrentRepo := sqlite.NewTorrentRepository(db)
	fileRepo := sqlite.NewFileRepository(db)
	userRepo := sqlite.NewUserRepository(db)
	require.NoError(t, torrentRepo.Init(ctx))
	require.NoError(t, fileRepo.Init(ctx))
	require.NoError(t, userRepo.Init(ctx))

	r := miniredis.RunT(t)
	store, err := progress.NewStore(progress.Config{Addr: r.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	files := service.NewFileService(fileRepo)
	torrents := service.NewTorrentService(torrentRepo, fileRepo, userRepo, nil, event.NewBus())

	root := filepath.Join(dir, "storage")
	worker := NewWorker(Config{
		FFprobeBin:   ffprobe,
		FFmpegBin:    ffmpeg,
		StorageRoot:  root,
		PollInterval: 20 * time.Millisecond,
	}, files, torrents, store)
	worker.Start(ctx)
	t.Cleanup(worker.Shutdown)

	return &testEnv{
		worker:      worker,
		store:       store,
		files:       files,
		fileRepo:    fileRepo,
		torrentRepo: torrentRepo,
		torrents:    torrents,
		root:        root,
	}
}

func TestConvertArgs(t *testing.T) {
	require := require.New(t)

	require.Contains(convertArgs("mkv"), "copy")
	require.NotContains(convertArgs("mkv"), "libx264")
	require.Contains(convertArgs("avi"), "libx264")
	require.Contains(convertArgs("avi"), "aac")
	require.Nil(convertArgs("mp4"))
	require.Nil(convertArgs(""))
}

func TestProbeDuration(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()
	ffprobe := writeScript(t, dir, "ffprobe",
		`echo "  Duration: 01:02:03.45, start: 0.000000, bitrate: 1000 kb/s" 1>&2
exit 1`)

	w := NewWorker(Config{FFprobeBin: ffprobe}, nil, nil, nil)

	seconds, err := w.probeDuration(context.Background(), "whatever.mkv")
	require.NoError(err)
	require.Equal(int64(3723), seconds)
}

func TestProbeDurationMissing(t *testing.T) {
	dir := t.TempDir()
	ffprobe := writeScript(t, dir, "ffprobe",
		`echo "whatever.mkv: Invalid data found when processing input" 1>&2
exit 1`)

	w := NewWorker(Config{FFprobeBin: ffprobe}, nil, nil, nil)

	_, err := w.probeDuration(context.Background(), "whatever.mkv")
	require.ErrorIs(t, err, ErrDurationNotFound)
}

func TestDrainProgress(t *testing.T) {
	require := require.New(t)

	r := miniredis.RunT(t)
	store, err := progress.NewStore(progress.Config{Addr: r.Addr()})
	require.NoError(err)
	defer store.Close()

	w := NewWorker(Config{}, nil, nil, store)

	lines := make(chan string, 4)
	lines <- "frame=  10 fps=25"
	lines <- "frame=  20 fps=25 time=00:00:03 bitrate=1000k"
	w.drainProgress(lines, 7, 6)

	status, reported, err := store.GetConversionStatus(7)
	require.NoError(err)
	require.True(reported)
	require.Equal("50.00", status.Progress)

	// A zero duration must never divide.
	lines <- "time=00:00:03"
	w.drainProgress(lines, 8, 0)
	_, reported, err = store.GetConversionStatus(8)
	require.NoError(err)
	require.False(reported)
}

func TestScanLinesSplitsCarriageReturns(t *testing.T) {
	require := require.New(t)

	adv, token, err := scanLines([]byte("frame=1 time=00:00:01\rframe=2"), false)
	require.NoError(err)
	require.Equal(22, adv)
	require.Equal("frame=1 time=00:00:01", string(token))

	adv, token, err = scanLines([]byte("tail"), true)
	require.NoError(err)
	require.Equal(4, adv)
	require.Equal("tail", string(token))
}

func TestConvert(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()
	ctx := context.Background()

	ffprobe := writeScript(t, dir, "ffprobe",
		`echo "  Duration: 00:00:06.00, start: 0.000000" 1>&2
exit 1`)
	// Emits ffmpeg-style carriage-return status lines, then writes the
	// output file named by its last argument.
	ffmpeg := writeScript(t, dir, "ffmpeg",
		`for last; do :; done
printf 'frame=10 time=00:00:03 bitrate=1\rframe=20 time=00:00:06 bitrate=1\n'
sleep 0.1
printf 'converted' > "$last"`)

	env := newTestEnv(t, ffprobe, ffmpeg)

	torrent, _, err := env.torrentRepo.GetOrCreateByHash(ctx, "abc123", &domain.Torrent{Name: "show"})
	require.NoError(err)

	source, _, err := env.fileRepo.GetOrCreate(ctx, domain.AreaTorrentComplete, "show/episode.mkv", 700)
	require.NoError(err)
	require.NoError(os.MkdirAll(filepath.Dir(source.FullPath(env.root)), 0o755))

	require.NoError(env.worker.Convert(ctx, source.ID, []int64{torrent.ID}))

	target, err := env.files.FindConversionCounterpart(ctx, source)
	require.NoError(err)
	require.Equal("show/episode.mp4", target.RelativePath)

	status, reported, err := env.store.GetConversionStatus(target.ID)
	require.NoError(err)
	require.True(reported)
	require.Equal(int64(6), status.Duration)
	require.Equal("100.00", status.Progress)

	saved, err := env.files.Get(ctx, target.ID)
	require.NoError(err)
	require.Equal(int64(len("converted")), saved.Size)

	ids, err := env.torrents.TorrentIDsByFile(ctx, target.ID)
	require.NoError(err)
	require.Equal([]int64{torrent.ID}, ids)
}

func TestConvertMissingSource(t *testing.T) {
	env := newTestEnv(t, "/bin/true", "/bin/true")

	err := env.worker.Convert(context.Background(), 999, nil)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEnqueueRunsDetached(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()
	ctx := context.Background()

	ffprobe := writeScript(t, dir, "ffprobe",
		`echo "  Duration: 00:00:02.00" 1>&2`)
	ffmpeg := writeScript(t, dir, "ffmpeg",
		`for last; do :; done
printf 'out' > "$last"`)

	env := newTestEnv(t, ffprobe, ffmpeg)

	source, _, err := env.fileRepo.GetOrCreate(ctx, domain.AreaTorrentComplete, "clip.avi", 10)
	require.NoError(err)
	require.NoError(os.MkdirAll(filepath.Dir(source.FullPath(env.root)), 0o755))

	env.worker.Enqueue(source.ID, nil)
	env.worker.Shutdown()

	target, err := env.files.FindConversionCounterpart(ctx, source)
	require.NoError(err)

	status, reported, err := env.store.GetConversionStatus(target.ID)
	require.NoError(err)
	require.True(reported)
	require.Equal("100.00", status.Progress)
}
