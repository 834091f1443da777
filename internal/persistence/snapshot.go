// Compressed snapshot files: a JSON header line followed by the JSON
// village state, all inside one zstd stream.
package persistence

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/talgya/hearth/internal/engine"
)

// SnapshotVersion is the current snapshot format.
const SnapshotVersion = 1

const snapshotExt = ".snap.zst"

// Header identifies a snapshot without decoding the body.
type Header struct {
	Version   int       `json:"version"`
	ID        string    `json:"id"`
	Tick      uint64    `json:"tick"`
	Created   time.Time `json:"created"`
	Buildings int       `json:"buildings"`
	Villagers int       `json:"villagers"`
}

// WriteSnapshot stores ws under dir with a fresh ID and returns its header
// and path.
func WriteSnapshot(dir string, ws *engine.WorldState) (Header, string, error) {
	h := Header{
		Version:   SnapshotVersion,
		ID:        uuid.NewString(),
		Tick:      ws.Tick,
		Created:   time.Now().UTC(),
		Buildings: len(ws.Buildings),
		Villagers: len(ws.Villagers),
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return h, "", fmt.Errorf("snapshot dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%012d-%s%s", ws.Tick, h.ID, snapshotExt))

	if err := writeSnapshotFile(path, h, ws); err != nil {
		os.Remove(path)
		return h, "", err
	}
	if fi, err := os.Stat(path); err == nil {
		slog.Info("snapshot written", "id", h.ID, "tick", h.Tick, "size", humanize.Bytes(uint64(fi.Size())))
	}
	return h, path, nil
}

func writeSnapshotFile(path string, h Header, ws *engine.WorldState) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, err := json.Marshal(h)
	if err != nil {
		enc.Close()
		return fmt.Errorf("encode header: %w", err)
	}
	bw.Write(hb)
	bw.WriteByte('\n')
	if err := json.NewEncoder(bw).Encode(ws); err != nil {
		enc.Close()
		return fmt.Errorf("encode state: %w", err)
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("zstd close: %w", err)
	}
	return f.Sync()
}

// ReadSnapshot decodes a snapshot file.
func ReadSnapshot(path string) (Header, *engine.WorldState, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, nil, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)
	line, err := br.ReadBytes('\n')
	if err != nil {
		return h, nil, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, nil, fmt.Errorf("decode header: %w", err)
	}
	if h.Version != SnapshotVersion {
		return h, nil, fmt.Errorf("snapshot version %d not supported", h.Version)
	}

	var ws engine.WorldState
	if err := json.NewDecoder(br).Decode(&ws); err != nil {
		return h, nil, fmt.Errorf("decode state: %w", err)
	}
	return h, &ws, nil
}

// LatestSnapshot returns the path of the highest-tick snapshot in dir.
func LatestSnapshot(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), snapshotExt) {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return "", errors.New("no snapshots")
	}
	// Names start with the zero-padded tick.
	sort.Strings(names)
	return filepath.Join(dir, names[len(names)-1]), nil
}
