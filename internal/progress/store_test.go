package progress

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func storeFixture(t *testing.T) *Store {
	t.Helper()

	r := miniredis.RunT(t)
	s, err := NewStore(Config{Addr: r.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestTorrentRatesRoundTrip(t *testing.T) {
	require := require.New(t)
	s := storeFixture(t)

	require.NoError(s.SetTorrentRates(7, TorrentRates{RateUpload: 1024, RateDownload: 2048}))

	rates, err := s.GetTorrentRates(7)
	require.NoError(err)
	require.Equal(TorrentRates{RateUpload: 1024, RateDownload: 2048}, rates)
}

func TestTorrentRatesMissing(t *testing.T) {
	require := require.New(t)
	s := storeFixture(t)

	rates, err := s.GetTorrentRates(404)
	require.NoError(err)
	require.Equal(TorrentRates{}, rates)
}

func TestResetTorrentRates(t *testing.T) {
	require := require.New(t)
	s := storeFixture(t)

	require.NoError(s.SetTorrentRates(7, TorrentRates{RateUpload: 100, RateDownload: 200}))
	require.NoError(s.ResetTorrentRates(7))

	rates, err := s.GetTorrentRates(7)
	require.NoError(err)
	require.Equal(TorrentRates{}, rates)
}

func TestSetUploadRateLeavesDownloadRate(t *testing.T) {
	require := require.New(t)
	s := storeFixture(t)

	require.NoError(s.SetTorrentRates(7, TorrentRates{RateUpload: 100, RateDownload: 200}))
	require.NoError(s.SetUploadRate(7, 50))

	rates, err := s.GetTorrentRates(7)
	require.NoError(err)
	require.Equal(TorrentRates{RateUpload: 50, RateDownload: 200}, rates)
}

func TestConversionStatusUnreported(t *testing.T) {
	require := require.New(t)
	s := storeFixture(t)

	_, reported, err := s.GetConversionStatus(1)
	require.NoError(err)
	require.False(reported)
}

func TestConversionStatusDefaultsProgress(t *testing.T) {
	require := require.New(t)
	s := storeFixture(t)

	require.NoError(s.SetDuration(1, 3600))

	status, reported, err := s.GetConversionStatus(1)
	require.NoError(err)
	require.True(reported)
	require.Equal(ConversionStatus{Duration: 3600, Progress: "0.00"}, status)
}

func TestConversionStatusProgress(t *testing.T) {
	require := require.New(t)
	s := storeFixture(t)

	require.NoError(s.SetDuration(1, 3600))
	require.NoError(s.SetConversionProgress(1, "42.50"))

	status, reported, err := s.GetConversionStatus(1)
	require.NoError(err)
	require.True(reported)
	require.Equal(ConversionStatus{Duration: 3600, Progress: "42.50"}, status)
}

func TestConversionStartedGuard(t *testing.T) {
	require := require.New(t)
	s := storeFixture(t)

	started, err := s.ConversionStarted(9)
	require.NoError(err)
	require.False(started)

	require.NoError(s.MarkConversionStarted(9))

	started, err = s.ConversionStarted(9)
	require.NoError(err)
	require.True(started)
}

func TestNewStoreRequiresAddr(t *testing.T) {
	_, err := NewStore(Config{})
	require.Error(t, err)
}
