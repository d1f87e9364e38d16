package event

import (
	"sync"

	"seedbox/internal/domain"
)

// TorrentCreated is emitted after a new torrent record is committed.
type TorrentCreated struct {
	Torrent *domain.Torrent
}

// FilesLinked is emitted after a batch of files is linked to a torrent.
// The linkage itself is already committed when handlers run.
type FilesLinked struct {
	TorrentID int64
	FileIDs   []int64
}

// Bus fans typed events out to explicitly registered handlers. Emission is
// synchronous; handlers that need to fail independently must not return
// control-flow errors through the bus.
type Bus struct {
	mu      sync.RWMutex
	created []func(TorrentCreated)
	linked  []func(FilesLinked)
}

func NewBus() *Bus {
	return &Bus{}
}

func (b *Bus) OnTorrentCreated(fn func(TorrentCreated)) {
	b.mu.Lock()
	b.created = append(b.created, fn)
	b.mu.Unlock()
}

func (b *Bus) OnFilesLinked(fn func(FilesLinked)) {
	b.mu.Lock()
	b.linked = append(b.linked, fn)
	b.mu.Unlock()
}

func (b *Bus) EmitTorrentCreated(e TorrentCreated) {
	b.mu.RLock()
	handlers := b.created
	b.mu.RUnlock()
	for _, fn := range handlers {
		fn(e)
	}
}

func (b *Bus) EmitFilesLinked(e FilesLinked) {
	b.mu.RLock()
	handlers := b.linked
	b.mu.RUnlock()
	for _, fn := range handlers {
		fn(e)
	}
}
