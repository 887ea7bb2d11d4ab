// Package journal persists execution audit events in a write-ahead log.
// The journal survives restarts, so the execution trail of every order
// attempt can be replayed or streamed to observers.
package journal

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"
)

const (
	DefaultDir   = "./wal/execution"
	segmentLimit = 1000
	maxSegments  = 20
)

// Entry is one journaled execution event.
type Entry struct {
	Index     uint64          `json:"index"`
	Kind      string          `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

type envelope struct {
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// Journal is a WAL-backed append-only execution log.
type Journal struct {
	wal *gowal.Wal
	mu  sync.RWMutex
	now func() time.Time
}

// New opens (or creates) the journal in dir.
func New(dir string) (*Journal, error) {
	if dir == "" {
		dir = DefaultDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "exec_",
		SegmentThreshold: segmentLimit,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init execution journal")
	}

	return &Journal{wal: wal, now: time.Now}, nil
}

// Append journals one event. kind names the event family (order_executed,
// order_failed, risk_rejected), payload is any JSON-serializable value.
func (j *Journal) Append(kind string, payload interface{}) error {
	if j == nil || j.wal == nil {
		return errors.New("journal is not initialized")
	}
	if kind == "" {
		return fmt.Errorf("journal entry kind is required")
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "marshal journal payload")
	}
	body, err := json.Marshal(envelope{Payload: raw, Timestamp: j.now()})
	if err != nil {
		return errors.Wrap(err, "marshal journal envelope")
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	nextIndex := j.wal.CurrentIndex() + 1
	return j.wal.Write(nextIndex, kind, body)
}

// EntriesAfter returns all events written after the given index.
func (j *Journal) EntriesAfter(index uint64) ([]Entry, error) {
	if j == nil || j.wal == nil {
		return nil, errors.New("journal is not initialized")
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	current := j.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	entries := make([]Entry, 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		kind, body, err := j.wal.Get(idx)
		if err != nil {
			continue
		}

		var env envelope
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, errors.Wrap(err, "decode journal entry")
		}
		entries = append(entries, Entry{
			Index:     idx,
			Kind:      kind,
			Payload:   env.Payload,
			Timestamp: env.Timestamp,
		})
	}

	return entries, nil
}

// CurrentIndex returns the latest journal index.
func (j *Journal) CurrentIndex() uint64 {
	if j == nil || j.wal == nil {
		return 0
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	return j.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (j *Journal) Close() error {
	if j == nil || j.wal == nil {
		return errors.New("journal is not initialized")
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	return j.wal.Close()
}
