package domain

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewFileDerivesMeta(t *testing.T) {
	require := require.New(t)

	f := NewFile(AreaTorrentComplete, "show/episode.mkv")
	require.Equal("episode", f.Name)
	require.Equal("mkv", f.Ext)
	require.Equal("episode.mkv", f.FileName())

	bare := NewFile(AreaUpload, "README")
	require.Equal("README", bare.Name)
	require.Empty(bare.Ext)
	require.Equal("README", bare.FileName())
}

func TestFullPath(t *testing.T) {
	f := NewFile(AreaTorrentComplete, "show/episode.mkv")
	want := filepath.Join("/srv/seedbox", "torrents", "complete", "show", "episode.mkv")
	require.Equal(t, want, f.FullPath("/srv/seedbox"))
}

func TestRound2(t *testing.T) {
	require := require.New(t)

	torrent := Torrent{Progress: 42.42857, Ratio: 1.239}
	torrent.Round2()
	require.Equal(42.43, torrent.Progress)
	require.Equal(1.24, torrent.Ratio)
}
