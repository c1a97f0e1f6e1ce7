package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Default document names, matching what operators already grep for.
const (
	SuccessFileName = "successful_updates.json"
	FailureFileName = "failed_updates.json"
)

// FileLedger stores each ledger as one JSON array document, read-modify-
// written whole. A mutex per document serializes writers.
type FileLedger struct {
	successPath string
	failurePath string
	cap         int

	successMu sync.Mutex
	failureMu sync.Mutex
}

var _ Ledger = (*FileLedger)(nil)

// NewFileLedger returns a FileLedger rooted at dir. The documents are created
// lazily on first append.
func NewFileLedger(dir string) *FileLedger {
	return &FileLedger{
		successPath: filepath.Join(dir, SuccessFileName),
		failurePath: filepath.Join(dir, FailureFileName),
		cap:         SuccessCap,
	}
}

func (l *FileLedger) AppendSuccess(ctx context.Context, rec Record) error {
	l.successMu.Lock()
	defer l.successMu.Unlock()

	recs, err := readDocument(l.successPath)
	if err != nil {
		return err
	}
	recs = append(recs, rec)
	if len(recs) > l.cap {
		recs = recs[len(recs)-l.cap:]
	}
	return writeDocument(l.successPath, recs)
}

func (l *FileLedger) AppendFailure(ctx context.Context, rec Record) error {
	l.failureMu.Lock()
	defer l.failureMu.Unlock()

	recs, err := readDocument(l.failurePath)
	if err != nil {
		return err
	}
	recs = append(recs, rec)
	return writeDocument(l.failurePath, recs)
}

func (l *FileLedger) FailureSnapshot(ctx context.Context) ([]Record, error) {
	l.failureMu.Lock()
	defer l.failureMu.Unlock()
	return readDocument(l.failurePath)
}

func (l *FileLedger) ReplaceFailures(ctx context.Context, recs []Record) error {
	l.failureMu.Lock()
	defer l.failureMu.Unlock()
	if recs == nil {
		recs = []Record{}
	}
	return writeDocument(l.failurePath, recs)
}

func (l *FileLedger) Stats(ctx context.Context) (Stats, error) {
	l.successMu.Lock()
	succ, err := readDocument(l.successPath)
	l.successMu.Unlock()
	if err != nil {
		return Stats{}, err
	}
	l.failureMu.Lock()
	fail, err := readDocument(l.failurePath)
	l.failureMu.Unlock()
	if err != nil {
		return Stats{}, err
	}

	st := Stats{Successful: len(succ), Failed: len(fail)}
	if n := len(succ); n > 0 {
		ts := succ[n-1].Timestamp
		st.LastSuccessful = &ts
	}
	if n := len(fail); n > 0 {
		ts := fail[n-1].Timestamp
		st.LastFailed = &ts
	}
	return st, nil
}

func readDocument(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return []Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger %s: %w", path, err)
	}
	var recs []Record
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("parse ledger %s: %w", path, err)
	}
	return recs, nil
}

func writeDocument(path string, recs []Record) error {
	data, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write ledger %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace ledger %s: %w", path, err)
	}
	return nil
}
