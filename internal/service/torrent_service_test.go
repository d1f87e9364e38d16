package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"seedbox/internal/daemon"
	"seedbox/internal/domain"
	"seedbox/internal/event"
)

func TestValidLink(t *testing.T) {
	tests := []struct {
		link  string
		valid bool
	}{
		{"magnet:?xt=urn:btih:abc", true},
		{"  magnet:?xt=urn:btih:abc  ", true},
		{"https://example.com/ubuntu.torrent", true},
		{"http://example.com/ubuntu.torrent", true},
		{"https://example.com/ubuntu.iso", false},
		{"ftp://example.com/ubuntu.torrent", false},
		{"", false},
		{"not a link", false},
	}
	for _, tt := range tests {
		require.Equal(t, tt.valid, ValidLink(tt.link), "link %q", tt.link)
	}
}

func TestAddRejectsInvalidLink(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.torrents.Add(context.Background(), "https://example.com/not-a-torrent", 0)
	require.ErrorIs(t, err, ErrInvalidLink)
	require.Empty(t, env.client.added)
}

func TestAddCreatesOnce(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)
	ctx := context.Background()

	env.client.handle = daemon.Handle{InfoHash: "abc123", Name: "ubuntu.iso", Private: true}

	var events []event.TorrentCreated
	env.bus.OnTorrentCreated(func(e event.TorrentCreated) {
		events = append(events, e)
	})

	torrent, created, err := env.torrents.Add(ctx, "magnet:?xt=urn:btih:abc123", 0)
	require.NoError(err)
	require.True(created)
	require.Equal("ubuntu.iso", torrent.Name)
	require.Equal("abc123", torrent.InfoHash)
	require.True(torrent.Private)
	require.Equal(domain.StatusInQueue, torrent.Status)
	require.Len(events, 1)

	again, created, err := env.torrents.Add(ctx, "magnet:?xt=urn:btih:abc123", 0)
	require.NoError(err)
	require.False(created)
	require.Equal(torrent.ID, again.ID)
	require.Len(events, 1)
}

func TestAddAttachesOwner(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)
	ctx := context.Background()

	userID, err := env.userRepo.Create(ctx, &domain.User{Username: "alice", PasswordHash: "x"})
	require.NoError(err)

	env.client.handle = daemon.Handle{InfoHash: "abc123", Name: "ubuntu.iso"}
	torrent, _, err := env.torrents.Add(ctx, "magnet:?xt=urn:btih:abc123", userID)
	require.NoError(err)

	owners, err := env.userRepo.ListByTorrent(ctx, torrent.ID)
	require.NoError(err)
	require.Len(owners, 1)
	require.Equal("alice", owners[0].Username)
}

func TestLinkFilesEmitsEvent(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)
	ctx := context.Background()

	env.client.handle = daemon.Handle{InfoHash: "abc123", Name: "ubuntu.iso"}
	torrent, _, err := env.torrents.Add(ctx, "magnet:?xt=urn:btih:abc123", 0)
	require.NoError(err)

	file, _, err := env.fileRepo.GetOrCreate(ctx, domain.AreaTorrentComplete, "ubuntu.iso", 100)
	require.NoError(err)

	var got []event.FilesLinked
	env.bus.OnFilesLinked(func(e event.FilesLinked) {
		got = append(got, e)
	})

	require.NoError(env.torrents.LinkFiles(ctx, torrent.ID, []int64{file.ID}))
	require.Len(got, 1)
	require.Equal(torrent.ID, got[0].TorrentID)
	require.Equal([]int64{file.ID}, got[0].FileIDs)

	saved, err := env.torrents.Get(ctx, torrent.ID)
	require.NoError(err)
	require.Len(saved.Files, 1)
}

func TestFinishWinsOnlyOnce(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)
	ctx := context.Background()

	env.client.handle = daemon.Handle{InfoHash: "abc123", Name: "ubuntu.iso"}
	torrent, _, err := env.torrents.Add(ctx, "magnet:?xt=urn:btih:abc123", 0)
	require.NoError(err)

	file, _, err := env.fileRepo.GetOrCreate(ctx, domain.AreaTorrentComplete, "ubuntu.iso", 700)
	require.NoError(err)
	require.NoError(env.torrents.LinkFiles(ctx, torrent.ID, []int64{file.ID}))

	won, err := env.torrents.Finish(ctx, torrent.ID)
	require.NoError(err)
	require.True(won)

	won, err = env.torrents.Finish(ctx, torrent.ID)
	require.NoError(err)
	require.False(won)

	saved, err := env.torrents.Get(ctx, torrent.ID)
	require.NoError(err)
	require.True(saved.Finished)
	require.Equal(float64(100), saved.Progress)
	require.Equal(int64(700), saved.Size)
}

func TestDeleteMissingTorrent(t *testing.T) {
	env := newTestEnv(t)

	err := env.torrents.Delete(context.Background(), 999)
	require.ErrorIs(t, err, domain.ErrNotFound)
}
