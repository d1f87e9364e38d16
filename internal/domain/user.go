package domain

import "time"

// User is an owner of torrents and files. Ownership is many-to-many and
// propagates from a torrent to its files when file batches are linked.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
