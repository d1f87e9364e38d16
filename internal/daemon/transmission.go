package daemon

import (
	"context"
	"fmt"
	"net/url"

	"github.com/hekmon/transmissionrpc/v3"

	"seedbox/internal/domain"
)

// Transmission implements Client over the transmission RPC interface.
type Transmission struct {
	client *transmissionrpc.Client
}

// NewTransmission connects to a transmission daemon. Credentials are embedded
// into the endpoint URL.
func NewTransmission(endpoint, username, password string) (*Transmission, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse daemon url: %w", err)
	}
	if username != "" {
		u.User = url.UserPassword(username, password)
	}

	client, err := transmissionrpc.New(u, nil)
	if err != nil {
		return nil, fmt.Errorf("create transmission client: %w", err)
	}
	return &Transmission{client: client}, nil
}

func (t *Transmission) Add(ctx context.Context, link string) (Handle, error) {
	added, err := t.client.TorrentAdd(ctx, transmissionrpc.TorrentAddPayload{
		Filename: &link,
	})
	if err != nil {
		return Handle{}, fmt.Errorf("transmission add: %w", err)
	}
	if added.HashString == nil {
		return Handle{}, fmt.Errorf("transmission add: daemon returned no hash")
	}

	// The add response only carries id/name/hash; fetch the full snapshot.
	return t.Get(ctx, *added.HashString)
}

func (t *Transmission) Get(ctx context.Context, infoHash string) (Handle, error) {
	torrents, err := t.client.TorrentGetAllForHashes(ctx, []string{infoHash})
	if err != nil {
		return Handle{}, fmt.Errorf("transmission get %s: %w", infoHash, err)
	}
	if len(torrents) == 0 {
		return Handle{}, fmt.Errorf("transmission get %s: %w", infoHash, domain.ErrNotFound)
	}
	return toHandle(torrents[0]), nil
}

func (t *Transmission) Stop(ctx context.Context, infoHash string) error {
	if err := t.client.TorrentStopHashes(ctx, []string{infoHash}); err != nil {
		return fmt.Errorf("transmission stop %s: %w", infoHash, err)
	}
	return nil
}

func toHandle(t transmissionrpc.Torrent) Handle {
	h := Handle{
		InfoHash:     strVal(t.HashString),
		Name:         strVal(t.Name),
		Private:      boolVal(t.IsPrivate),
		Status:       domain.StatusInQueue,
		Ratio:        floatVal(t.UploadRatio),
		RateUpload:   intVal(t.RateUpload),
		RateDownload: intVal(t.RateDownload),
	}
	if t.Status != nil {
		h.Status = mapStatus(*t.Status)
	}
	if t.PercentDone != nil {
		h.Progress = *t.PercentDone * 100
	}
	for _, f := range t.Files {
		h.Files = append(h.Files, FileInfo{
			Name: f.Name,
			Size: f.Length,
		})
	}
	return h
}

// mapStatus folds transmission's eight states onto the six lifecycle values
// the durable record tracks.
func mapStatus(status transmissionrpc.TorrentStatus) domain.Status {
	switch status {
	case transmissionrpc.TorrentStatusCheckWait:
		return domain.StatusCheckPending
	case transmissionrpc.TorrentStatusCheck:
		return domain.StatusChecking
	case transmissionrpc.TorrentStatusDownloadWait:
		return domain.StatusInQueue
	case transmissionrpc.TorrentStatusDownload:
		return domain.StatusDownloading
	case transmissionrpc.TorrentStatusSeedWait, transmissionrpc.TorrentStatusSeed:
		return domain.StatusSeeding
	case transmissionrpc.TorrentStatusStopped, transmissionrpc.TorrentStatusIsolated:
		return domain.StatusStopped
	}
	return domain.StatusStopped
}

func strVal(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func boolVal(p *bool) bool {
	return p != nil && *p
}

func intVal(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}

func floatVal(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

var _ Client = (*Transmission)(nil)
