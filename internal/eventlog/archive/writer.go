// Package archive writes per-run compressed event archives. One file per run,
// one JSON line per event, zstd-compressed for cold storage next to the
// sqlite log.
package archive

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"info_arena/internal/domain"
)

type Writer struct {
	baseDir string

	mu    sync.Mutex
	runID string
	f     *os.File
	enc   *zstd.Encoder
	w     *bufio.Writer
}

func NewWriter(baseDir string) *Writer {
	return &Writer{baseDir: baseDir}
}

// Append writes one event to the archive of its run, opening a fresh file
// when the run id changes. Runs within one writer are sequential, so a single
// open file at a time is enough.
func (w *Writer) Append(_ context.Context, event domain.Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if event.RunID != w.runID {
		if err := w.openLocked(event.RunID); err != nil {
			return err
		}
	}

	b, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *Writer) openLocked(runID string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.baseDir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.pathForRun(runID), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.runID = runID
	return nil
}

func (w *Writer) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	w.runID = ""
	return err1
}

func (w *Writer) pathForRun(runID string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("run-%s.jsonl.zst", runID))
}

// ReadRun decompresses and decodes a run's archive, mainly for offline
// analysis and the replay tests.
func ReadRun(baseDir, runID string) ([]domain.Event, error) {
	f, err := os.Open(filepath.Join(baseDir, fmt.Sprintf("run-%s.jsonl.zst", runID)))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var events []domain.Event
	scanner := bufio.NewScanner(dec)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var event domain.Event
		if err := json.Unmarshal(line, &event); err != nil {
			return nil, fmt.Errorf("decode archived event: %w", err)
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return events, nil
}
