// Package transcode converts video files to MP4 by shelling out to ffprobe
// and ffmpeg, reporting live progress into the progress store. Conversions are
// triggered on demand, never on a timer, and are not retried.
package transcode

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"seedbox/internal/progress"
	"seedbox/internal/service"
)

// ErrDurationNotFound means the probe output carried no Duration token, which
// marks the source as malformed or non-media input.
var ErrDurationNotFound = errors.New("duration not found in probe output")

var (
	durationPattern = regexp.MustCompile(`Duration:\s*(\d+):(\d+):(\d+)`)
	timePattern     = regexp.MustCompile(`time=(\d+):(\d+):(\d+)`)
)

// Config parameterizes the external tools and the output poll cadence.
type Config struct {
	FFprobeBin   string
	FFmpegBin    string
	StorageRoot  string
	PollInterval time.Duration
	Logger       *logrus.Logger
}

func (c *Config) applyDefaults() {
	if c.FFprobeBin == "" {
		c.FFprobeBin = "/usr/bin/ffprobe"
	}
	if c.FFmpegBin == "" {
		c.FFmpegBin = "/usr/bin/ffmpeg"
	}
	if c.PollInterval == 0 {
		c.PollInterval = 250 * time.Millisecond
	}
	if c.Logger == nil {
		c.Logger = logrus.New()
	}
}

// Worker runs MP4 conversions on background goroutines. Callers must set the
// conversion-started guard in the progress store before enqueueing; the worker
// itself never checks or clears it.
type Worker struct {
	cfg      Config
	files    service.FileService
	torrents service.TorrentService
	store    *progress.Store

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewWorker(cfg Config, files service.FileService, torrents service.TorrentService, store *progress.Store) *Worker {
	cfg.applyDefaults()
	return &Worker{
		cfg:      cfg,
		files:    files,
		torrents: torrents,
		store:    store,
	}
}

// Start makes the worker accept conversions until Shutdown.
func (w *Worker) Start(ctx context.Context) {
	w.ctx, w.cancel = context.WithCancel(ctx)
}

// Shutdown cancels running conversions and waits for their goroutines.
func (w *Worker) Shutdown() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

// Enqueue dispatches a conversion for the source file, detached from the
// caller. torrentIDs name torrents the destination file will be linked to.
func (w *Worker) Enqueue(fileID int64, torrentIDs []int64) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := w.Convert(w.ctx, fileID, torrentIDs); err != nil {
			w.cfg.Logger.WithField("file_id", fileID).Errorf("conversion failed: %v", err)
		}
	}()
}

// Convert runs one conversion synchronously: probe the source for its
// duration, create the destination record, stream-convert while reporting
// progress, then persist the final size.
func (w *Worker) Convert(ctx context.Context, fileID int64, torrentIDs []int64) error {
	source, err := w.files.Get(ctx, fileID)
	if err != nil {
		return err
	}

	target, err := w.files.CreateConversionTarget(ctx, source)
	if err != nil {
		return err
	}

	for _, torrentID := range torrentIDs {
		// Best effort: a torrent deleted since the request was made is
		// skipped, not fatal.
		if err := w.torrents.LinkFiles(ctx, torrentID, []int64{target.ID}); err != nil {
			w.cfg.Logger.Warnf("link converted file %d to torrent %d: %v", target.ID, torrentID, err)
		}
	}

	sourcePath := source.FullPath(w.cfg.StorageRoot)
	targetPath := target.FullPath(w.cfg.StorageRoot)

	duration, err := w.probeDuration(ctx, sourcePath)
	if err != nil {
		return err
	}
	if err := w.store.SetDuration(target.ID, duration); err != nil {
		return err
	}

	if err := w.runConvert(ctx, sourcePath, targetPath, convertArgs(source.Ext), target.ID, duration); err != nil {
		return err
	}

	// The last parsed line may under-report; the process has exited, so
	// pin the telemetry before persisting the result.
	if err := w.store.SetConversionProgress(target.ID, "100.00"); err != nil {
		return err
	}

	info, err := os.Stat(targetPath)
	if err != nil {
		return fmt.Errorf("stat converted file: %w", err)
	}
	if err := w.files.UpdateSize(ctx, target.ID, info.Size()); err != nil {
		return err
	}

	w.cfg.Logger.Infof("%s finished converting to MP4", source)
	return nil
}

// probeDuration extracts the media duration in seconds from ffprobe output.
func (w *Worker) probeDuration(ctx context.Context, path string) (int64, error) {
	cmd := exec.CommandContext(ctx, w.cfg.FFprobeBin, "-i", path)

	// ffprobe prints the stream info on stderr and exits non-zero without
	// an output target; only the Duration token matters here.
	out, _ := cmd.CombinedOutput()

	match := durationPattern.FindSubmatch(out)
	if match == nil {
		return 0, fmt.Errorf("probe %s: %w", path, ErrDurationNotFound)
	}
	return hmsToSeconds(match[1], match[2], match[3]), nil
}

// convertArgs selects encoder options by source extension. MKV containers
// carry compatible streams and are only remuxed; AVI needs a re-encode.
func convertArgs(ext string) []string {
	switch ext {
	case "mkv":
		return []string{"-vcodec", "copy", "-acodec", "copy", "-ac", "2", "-ab", "128k", "-crf", "23"}
	case "avi":
		return []string{"-vcodec", "libx264", "-acodec", "aac", "-ac", "2", "-ab", "128k", "-crf", "23"}
	}
	return nil
}

// runConvert executes ffmpeg and polls its merged output every PollInterval,
// tolerating empty reads, translating time= tokens into progress telemetry.
func (w *Worker) runConvert(ctx context.Context, sourcePath, targetPath string, args []string, targetID, duration int64) error {
	cmdArgs := append([]string{"-y", "-i", sourcePath}, args...)
	cmdArgs = append(cmdArgs, targetPath)

	cmd := exec.CommandContext(ctx, w.cfg.FFmpegBin, cmdArgs...)

	pr, pw, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("output pipe: %w", err)
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pw.Close()
		pr.Close()
		return fmt.Errorf("start %s: %w", w.cfg.FFmpegBin, err)
	}
	// The child holds its own copy of the write end.
	pw.Close()

	lines := make(chan string, 64)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(pr)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		scanner.Split(scanLines)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.drainProgress(lines, targetID, duration)
		case err := <-done:
			// Both write ends are closed now; let the reader hit EOF
			// and discard the tail, the exit path pins 100.00 anyway.
			for range lines {
			}
			pr.Close()
			if err != nil {
				// Matches the daemon tools' behavior: a dirty exit
				// still produced whatever output is on disk.
				w.cfg.Logger.Warnf("%s exited uncleanly: %v", w.cfg.FFmpegBin, err)
			}
			return nil
		}
	}
}

// drainProgress consumes all output lines currently available without
// blocking and reports the latest time= token seen.
func (w *Worker) drainProgress(lines <-chan string, targetID, duration int64) {
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return
			}
			match := timePattern.FindStringSubmatch(line)
			if match == nil || duration <= 0 {
				continue
			}
			elapsed := hmsToSeconds([]byte(match[1]), []byte(match[2]), []byte(match[3]))
			pct := float64(elapsed*100) / float64(duration)
			if err := w.store.SetConversionProgress(targetID, fmt.Sprintf("%.2f", pct)); err != nil {
				w.cfg.Logger.Warnf("report conversion progress: %v", err)
			}
		default:
			return
		}
	}
}

// scanLines splits on \n or \r so ffmpeg's carriage-return status updates
// surface as individual lines.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

func hmsToSeconds(hours, minutes, seconds []byte) int64 {
	h := parseDigits(hours)
	m := parseDigits(minutes)
	s := parseDigits(seconds)
	return h*3600 + m*60 + s
}

func parseDigits(b []byte) int64 {
	v, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return 0
	}
	return v
}
