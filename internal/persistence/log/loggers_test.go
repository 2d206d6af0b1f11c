package log

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"

	"worldsmith.ai/internal/protocol"
)

func TestPassLoggerWritesDecodableEntries(t *testing.T) {
	dir := t.TempDir()
	l := NewPassLogger(dir)

	for pass := uint64(1); pass <= 3; pass++ {
		res := protocol.ResultMsg{
			Type:      protocol.TypeResult,
			RequestID: "req-1",
			Pass:      pass,
			Requested: 5,
			Placed:    4,
			Deficit:   1,
		}
		if err := l.WritePass("PLACE", res, "abc123"); err != nil {
			t.Fatalf("WritePass pass %d: %v", pass, err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	files, err := filepath.Glob(filepath.Join(dir, "passes", "passes-*.jsonl.zst"))
	if err != nil || len(files) == 0 {
		t.Fatalf("expected journal files, got %v (err=%v)", files, err)
	}

	var entries []PassLogEntry
	for _, path := range files {
		f, err := os.Open(path)
		if err != nil {
			t.Fatalf("open journal: %v", err)
		}
		dec, err := zstd.NewReader(f)
		if err != nil {
			t.Fatalf("zstd reader: %v", err)
		}
		sc := bufio.NewScanner(dec)
		for sc.Scan() {
			var e PassLogEntry
			if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
				t.Fatalf("decode entry: %v", err)
			}
			entries = append(entries, e)
		}
		if err := sc.Err(); err != nil {
			t.Fatalf("scan journal: %v", err)
		}
		dec.Close()
		_ = f.Close()
	}

	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i, e := range entries {
		if e.Pass != uint64(i+1) {
			t.Fatalf("entry %d: pass = %d", i, e.Pass)
		}
		if e.Kind != "PLACE" || e.Digest != "abc123" || e.Placed != 4 {
			t.Fatalf("entry %d: unexpected fields %+v", i, e)
		}
	}
}
