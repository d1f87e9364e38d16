package daemon

import (
	"testing"

	"github.com/hekmon/transmissionrpc/v3"
	"github.com/stretchr/testify/require"

	"seedbox/internal/domain"
)

func TestMapStatus(t *testing.T) {
	tests := []struct {
		in  transmissionrpc.TorrentStatus
		out domain.Status
	}{
		{transmissionrpc.TorrentStatusStopped, domain.StatusStopped},
		{transmissionrpc.TorrentStatusCheckWait, domain.StatusCheckPending},
		{transmissionrpc.TorrentStatusCheck, domain.StatusChecking},
		{transmissionrpc.TorrentStatusDownloadWait, domain.StatusInQueue},
		{transmissionrpc.TorrentStatusDownload, domain.StatusDownloading},
		{transmissionrpc.TorrentStatusSeedWait, domain.StatusSeeding},
		{transmissionrpc.TorrentStatusSeed, domain.StatusSeeding},
		{transmissionrpc.TorrentStatusIsolated, domain.StatusStopped},
	}
	for _, tt := range tests {
		require.Equal(t, tt.out, mapStatus(tt.in), "status %d", tt.in)
	}
}

func TestToHandle(t *testing.T) {
	require := require.New(t)

	hash := "abc123"
	name := "ubuntu.iso"
	private := true
	status := transmissionrpc.TorrentStatusDownload
	percent := 0.424
	ratio := 1.5
	up := int64(100)
	down := int64(5000)

	h := toHandle(transmissionrpc.Torrent{
		HashString:   &hash,
		Name:         &name,
		IsPrivate:    &private,
		Status:       &status,
		PercentDone:  &percent,
		UploadRatio:  &ratio,
		RateUpload:   &up,
		RateDownload: &down,
		Files: []transmissionrpc.TorrentFile{
			{Name: "ubuntu.iso", Length: 700},
		},
	})

	require.Equal("abc123", h.InfoHash)
	require.Equal("ubuntu.iso", h.Name)
	require.True(h.Private)
	require.Equal(domain.StatusDownloading, h.Status)
	require.InDelta(42.4, h.Progress, 0.001)
	require.Equal(1.5, h.Ratio)
	require.Equal(int64(100), h.RateUpload)
	require.Equal(int64(5000), h.RateDownload)
	require.Equal([]FileInfo{{Name: "ubuntu.iso", Size: 700}}, h.Files)
}

func TestToHandleDefaults(t *testing.T) {
	require := require.New(t)

	h := toHandle(transmissionrpc.Torrent{})
	require.Equal(domain.StatusInQueue, h.Status)
	require.Zero(h.Progress)
	require.Empty(h.Files)
}

func TestNewTransmissionBadURL(t *testing.T) {
	_, err := NewTransmission("://not-a-url", "", "")
	require.Error(t, err)
}
