// Package progress holds high-frequency, ephemeral telemetry in redis:
// transfer rates per torrent and conversion state per file. The durable
// records stay the source of truth; everything here is last-write-wins.
package progress

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gomodule/redigo/redis"
)

func torrentKey(id int64) string {
	return fmt.Sprintf("torrent:%d", id)
}

func fileKey(id int64) string {
	return fmt.Sprintf("file:%d", id)
}

func mp4StatusKey(id int64) string {
	return fmt.Sprintf("file:%d:mp4_status", id)
}

// Config parameterizes the redis connection pool.
type Config struct {
	Addr           string
	DialTimeout    time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxIdleConns   int
	MaxActiveConns int
}

func (c *Config) applyDefaults() {
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 5
	}
	if c.MaxActiveConns == 0 {
		c.MaxActiveConns = 20
	}
}

// TorrentRates is the per-torrent transfer telemetry, bytes per second.
type TorrentRates struct {
	RateUpload   int64
	RateDownload int64
}

// ConversionStatus describes an MP4 conversion as seen by concurrent readers.
type ConversionStatus struct {
	Duration int64  // seconds
	Progress string // "0.00".."100.00"
}

// Store is the redis-backed progress store.
type Store struct {
	pool *redis.Pool
}

// NewStore creates a Store and verifies connectivity.
func NewStore(config Config) (*Store, error) {
	config.applyDefaults()

	if config.Addr == "" {
		return nil, errors.New("invalid config: missing addr")
	}

	s := &Store{
		pool: &redis.Pool{
			Dial: func() (redis.Conn, error) {
				return redis.Dial(
					"tcp",
					config.Addr,
					redis.DialConnectTimeout(config.DialTimeout),
					redis.DialReadTimeout(config.ReadTimeout),
					redis.DialWriteTimeout(config.WriteTimeout))
			},
			MaxIdle:     config.MaxIdleConns,
			MaxActive:   config.MaxActiveConns,
			IdleTimeout: 60 * time.Second,
			Wait:        true,
		},
	}

	c, err := s.pool.Dial()
	if err != nil {
		return nil, fmt.Errorf("dial redis: %w", err)
	}
	c.Close()

	return s, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

// SetTorrentRates writes both transfer rates for a torrent.
func (s *Store) SetTorrentRates(id int64, rates TorrentRates) error {
	c := s.pool.Get()
	defer c.Close()

	_, err := c.Do("HSET", torrentKey(id),
		"rate_upload", rates.RateUpload,
		"rate_download", rates.RateDownload)
	if err != nil {
		return fmt.Errorf("set torrent rates: %w", err)
	}
	return nil
}

// ResetTorrentRates zeroes both transfer rates for a torrent.
func (s *Store) ResetTorrentRates(id int64) error {
	return s.SetTorrentRates(id, TorrentRates{})
}

// SetUploadRate writes only the upload rate, used while seeding.
func (s *Store) SetUploadRate(id int64, rateUpload int64) error {
	c := s.pool.Get()
	defer c.Close()

	if _, err := c.Do("HSET", torrentKey(id), "rate_upload", rateUpload); err != nil {
		return fmt.Errorf("set upload rate: %w", err)
	}
	return nil
}

// GetTorrentRates reads the current transfer rates; missing fields read as zero.
func (s *Store) GetTorrentRates(id int64) (TorrentRates, error) {
	c := s.pool.Get()
	defer c.Close()

	values, err := redis.StringMap(c.Do("HGETALL", torrentKey(id)))
	if err != nil {
		return TorrentRates{}, fmt.Errorf("get torrent rates: %w", err)
	}

	var rates TorrentRates
	rates.RateUpload = parseInt(values["rate_upload"])
	rates.RateDownload = parseInt(values["rate_download"])
	return rates, nil
}

// SetDuration records the probed media duration for a conversion target.
func (s *Store) SetDuration(fileID int64, seconds int64) error {
	c := s.pool.Get()
	defer c.Close()

	if _, err := c.Do("HSET", mp4StatusKey(fileID), "duration", seconds); err != nil {
		return fmt.Errorf("set duration: %w", err)
	}
	return nil
}

// SetConversionProgress records a two-decimal percentage string for a
// conversion target.
func (s *Store) SetConversionProgress(fileID int64, progress string) error {
	c := s.pool.Get()
	defer c.Close()

	if _, err := c.Do("HSET", mp4StatusKey(fileID), "progress", progress); err != nil {
		return fmt.Errorf("set conversion progress: %w", err)
	}
	return nil
}

// GetConversionStatus reads the conversion telemetry for a file. The second
// return is false when no conversion has ever reported for this file.
func (s *Store) GetConversionStatus(fileID int64) (ConversionStatus, bool, error) {
	c := s.pool.Get()
	defer c.Close()

	values, err := redis.StringMap(c.Do("HGETALL", mp4StatusKey(fileID)))
	if err != nil {
		return ConversionStatus{}, false, fmt.Errorf("get conversion status: %w", err)
	}
	if len(values) == 0 {
		return ConversionStatus{}, false, nil
	}

	status := ConversionStatus{
		Duration: parseInt(values["duration"]),
		Progress: values["progress"],
	}
	if status.Progress == "" {
		status.Progress = "0.00"
	}
	return status, true, nil
}

// MarkConversionStarted sets the mutual-exclusion guard for a source file.
// The flag is never cleared here; expiry is an administrative concern.
func (s *Store) MarkConversionStarted(fileID int64) error {
	c := s.pool.Get()
	defer c.Close()

	if _, err := c.Do("HSET", fileKey(fileID), "conversion_started", 1); err != nil {
		return fmt.Errorf("mark conversion started: %w", err)
	}
	return nil
}

// ConversionStarted reports whether the guard flag is set for a source file.
func (s *Store) ConversionStarted(fileID int64) (bool, error) {
	c := s.pool.Get()
	defer c.Close()

	value, err := redis.String(c.Do("HGET", fileKey(fileID), "conversion_started"))
	if err != nil {
		if errors.Is(err, redis.ErrNil) {
			return false, nil
		}
		return false, fmt.Errorf("get conversion started: %w", err)
	}
	return value != "" && value != "0", nil
}

func parseInt(s string) int64 {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
