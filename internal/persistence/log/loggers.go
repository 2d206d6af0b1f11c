// Package log writes the append-only pass journal: one compressed JSONL
// entry per resolved pass, rotated hourly. The journal is the audit trail;
// snapshots are the recovery path.
package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"worldsmith.ai/internal/protocol"
)

type JSONLZstdWriter struct {
	baseDir string
	prefix  string

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
	}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := time.Now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
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

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	path := w.pathForHour(hour)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
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
	w.curHour = hour
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var encErr error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		encErr = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	w.curHour = ""
	return encErr
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// PassLogEntry is one journal line. It summarizes the pass; the full result
// payload lives in the index db.
type PassLogEntry struct {
	Time      string `json:"time"`
	Kind      string `json:"kind"` // PLACE or TERRAIN
	RequestID string `json:"request_id"`
	Pass      uint64 `json:"pass"`
	Requested int    `json:"requested"`
	Placed    int    `json:"placed"`
	Deficit   int    `json:"deficit"`
	Digest    string `json:"digest"`
}

// PassLogger appends one entry per resolved pass under <worldDir>/passes/.
type PassLogger struct{ w *JSONLZstdWriter }

func NewPassLogger(worldDir string) *PassLogger {
	return &PassLogger{w: NewJSONLZstdWriter(filepath.Join(worldDir, "passes"), "passes")}
}

func (l *PassLogger) WritePass(kind string, res protocol.ResultMsg, digest string) error {
	return l.w.Write(PassLogEntry{
		Time:      time.Now().UTC().Format(time.RFC3339Nano),
		Kind:      kind,
		RequestID: res.RequestID,
		Pass:      res.Pass,
		Requested: res.Requested,
		Placed:    res.Placed,
		Deficit:   res.Deficit,
		Digest:    digest,
	})
}

func (l *PassLogger) Close() error { return l.w.Close() }
