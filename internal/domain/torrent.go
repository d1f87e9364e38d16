package domain

import (
	"fmt"
	"math"
	"time"
)

// Status mirrors the lifecycle the download daemon reports for a transfer.
type Status string

const (
	StatusInQueue      Status = "in_queue"
	StatusCheckPending Status = "check_pending"
	StatusChecking     Status = "checking"
	StatusDownloading  Status = "downloading"
	StatusSeeding      Status = "seeding"
	StatusStopped      Status = "stopped"
)

// Torrent is the durable record of a tracked transfer. Status, progress and
// finished are reconciled only by the reconcile package; the record itself is
// the source of truth across restarts, the progress store only carries
// telemetry.
type Torrent struct {
	ID       int64
	Name     string
	InfoHash string
	Status   Status
	Progress float64
	Ratio    float64
	Size     int64
	Finished bool
	Private  bool

	CreatedAt time.Time
	UpdatedAt time.Time

	Files []File
}

func (t *Torrent) String() string {
	return fmt.Sprintf("%s <%s>", t.Name, t.InfoHash)
}

// Round2 truncates progress and ratio to two fractional digits, matching how
// they are displayed and compared everywhere else.
func (t *Torrent) Round2() {
	t.Progress = round2(t.Progress)
	t.Ratio = round2(t.Ratio)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
