// Package daemon defines the contract with the external BitTorrent daemon.
// The daemon owns the transfers; this package only snapshots their state over
// RPC. Callers never retry here — a failed call terminates the current poll
// and the next scheduled one retries naturally.
package daemon

import (
	"context"

	"seedbox/internal/domain"
)

// FileInfo is one entry of the daemon-reported file manifest.
type FileInfo struct {
	Name string
	Size int64
}

// Handle is a point-in-time snapshot of a transfer as the daemon reports it.
type Handle struct {
	InfoHash     string
	Name         string
	Private      bool
	Status       domain.Status
	Progress     float64 // 0..100
	Ratio        float64
	RateUpload   int64 // bytes/sec
	RateDownload int64 // bytes/sec
	Files        []FileInfo
}

// Client is the RPC facade over the download daemon.
type Client interface {
	// Add submits a magnet or torrent link. The returned handle carries at
	// least InfoHash, Name and Private.
	Add(ctx context.Context, link string) (Handle, error)
	// Get snapshots the transfer identified by info hash. An unknown hash
	// wraps domain.ErrNotFound.
	Get(ctx context.Context, infoHash string) (Handle, error)
	// Stop tells the daemon to stop seeding the transfer.
	Stop(ctx context.Context, infoHash string) error
}
