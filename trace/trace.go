// Package trace records one row per unit decision to a zstd-compressed
// parquet file so matches can be replayed and tuned offline.
package trace

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"
)

const schemaVersion = "decision_trace_v1"

// Row is a single unit's decision for one round.
type Row struct {
	MatchID     string `parquet:"match_id,dict"`
	Round       int32  `parquet:"round"`
	Unit        int32  `parquet:"unit"`
	Team        string `parquet:"team,dict"`
	Role        string `parquet:"role,dict"`
	Task        string `parquet:"task,dict"`
	X           int32  `parquet:"x"`
	Y           int32  `parquet:"y"`
	DestX       int32  `parquet:"dest_x"`
	DestY       int32  `parquet:"dest_y"`
	DestReason  string `parquet:"dest_reason,dict,optional"`
	Direction   string `parquet:"direction,dict"`
	Score       int32  `parquet:"score"`
	Dug         bool   `parquet:"dug"`
	Combat      string `parquet:"combat,dict,optional"`
	BudgetLeft  int32  `parquet:"budget_left"`
	Refinements int32  `parquet:"refinements"`
	Events      string `parquet:"events,optional"`
	Fault       string `parquet:"fault,optional"`
}

// Recorder buffers rows and writes them to a temp file, moving it into place on Close.
type Recorder struct {
	mu sync.Mutex

	tmpPath string
	outPath string

	file   *os.File
	writer *parquet.GenericWriter[Row]

	buf     []Row
	batch   int
	rows    int
	matchID string
	closed  bool
}

// NewRecorder creates dir/<name>.parquet once Close succeeds.
func NewRecorder(dir, name, matchID string, batch int) (*Recorder, error) {
	if dir == "" {
		return nil, errors.New("trace dir is required")
	}
	if batch <= 0 {
		batch = 256
	}
	tmpDir := filepath.Join(dir, "tmp")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return nil, fmt.Errorf("create tmp dir: %w", err)
	}

	file := name + ".parquet"
	tmpPath := filepath.Join(tmpDir, file)
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open tmp trace: %w", err)
	}

	w := parquet.NewGenericWriter[Row](
		f,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
	)
	w.SetKeyValueMetadata("schema", schemaVersion)
	w.SetKeyValueMetadata("match_id", matchID)

	return &Recorder{
		tmpPath: tmpPath,
		outPath: filepath.Join(dir, file),
		file:    f,
		writer:  w,
		batch:   batch,
		matchID: matchID,
	}, nil
}

func (r *Recorder) OutPath() string { return r.outPath }
func (r *Recorder) MatchID() string { return r.matchID }

// Rows reports how many rows have been accepted, flushed or not.
func (r *Recorder) Rows() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows + len(r.buf)
}

// Record stamps the match id onto row and buffers it.
func (r *Recorder) Record(row Row) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return errors.New("trace recorder is closed")
	}
	row.MatchID = r.matchID
	r.buf = append(r.buf, row)
	if len(r.buf) >= r.batch {
		return r.flushLocked()
	}
	return nil
}

func (r *Recorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	return r.flushLocked()
}

func (r *Recorder) flushLocked() error {
	if len(r.buf) == 0 {
		return nil
	}
	if _, err := r.writer.Write(r.buf); err != nil {
		return fmt.Errorf("write trace rows: %w", err)
	}
	r.rows += len(r.buf)
	r.buf = r.buf[:0]
	return nil
}

// Close flushes, finalizes the parquet footer and renames the file into place.
// An empty trace leaves no file behind.
func (r *Recorder) Close() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return "", nil
	}
	r.closed = true

	flushErr := r.flushLocked()
	closeErr := r.writer.Close()
	_ = r.file.Sync()
	fileErr := r.file.Close()
	if err := errors.Join(flushErr, closeErr, fileErr); err != nil {
		return "", fmt.Errorf("close trace: %w", err)
	}

	if r.rows == 0 {
		_ = os.Remove(r.tmpPath)
		return "", nil
	}
	if err := os.Rename(r.tmpPath, r.outPath); err != nil {
		return "", fmt.Errorf("rename trace: %w", err)
	}
	return r.outPath, nil
}

// Load reads every row of a trace file.
func Load(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}
	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}
	if v, ok := pf.Lookup("schema"); ok && v != schemaVersion {
		return nil, fmt.Errorf("unexpected trace schema %q", v)
	}

	reader := parquet.NewGenericReader[Row](pf)
	defer reader.Close()

	out := make([]Row, 0, reader.NumRows())
	buf := make([]Row, 128)
	for {
		n, err := reader.Read(buf)
		out = append(out, buf[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read trace rows: %w", err)
		}
		if n == 0 {
			break
		}
	}
	return out, nil
}
