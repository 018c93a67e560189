package storage

import (
	"errors"
	"sort"
	"sync"
)

// ErrJournalClosed is returned when a journal is used after Commit or Discard.
var ErrJournalClosed = errors.New("storage: journal already finalised")

// Journal stages writes on top of a parent database. Reads observe staged
// writes first. Nothing reaches the parent until Commit, which flushes every
// staged operation through a single parent batch.
type Journal struct {
	mu      sync.RWMutex
	parent  Database
	writes  map[string][]byte
	deletes map[string]struct{}
	closed  bool
}

// NewJournal opens a staging layer over parent.
func NewJournal(parent Database) *Journal {
	return &Journal{
		parent:  parent,
		writes:  make(map[string][]byte),
		deletes: make(map[string]struct{}),
	}
}

func (j *Journal) Put(key []byte, value []byte) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return ErrJournalClosed
	}
	delete(j.deletes, string(key))
	j.writes[string(key)] = copyBytes(value)
	return nil
}

func (j *Journal) Get(key []byte) ([]byte, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return nil, ErrJournalClosed
	}
	if value, ok := j.writes[string(key)]; ok {
		return copyBytes(value), nil
	}
	if _, ok := j.deletes[string(key)]; ok {
		return nil, ErrNotFound
	}
	return j.parent.Get(key)
}

func (j *Journal) Has(key []byte) (bool, error) {
	_, err := j.Get(key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (j *Journal) Delete(key []byte) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return ErrJournalClosed
	}
	delete(j.writes, string(key))
	j.deletes[string(key)] = struct{}{}
	return nil
}

// NewBatch returns a batch that applies into the journal, not the parent.
func (j *Journal) NewBatch() Batch {
	return &memBatch{apply: j.applyOps}
}

func (j *Journal) applyOps(ops []batchOp) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return ErrJournalClosed
	}
	for _, op := range ops {
		if op.delete {
			delete(j.writes, op.key)
			j.deletes[op.key] = struct{}{}
			continue
		}
		delete(j.deletes, op.key)
		j.writes[op.key] = op.value
	}
	return nil
}

// Pending reports the number of staged operations.
func (j *Journal) Pending() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.writes) + len(j.deletes)
}

// Commit flushes the staged operations to the parent in one batch, in key
// order, and finalises the journal.
func (j *Journal) Commit() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return ErrJournalClosed
	}
	batch := j.parent.NewBatch()
	for _, key := range sortedKeys(j.deletes) {
		batch.Delete([]byte(key))
	}
	keys := make([]string, 0, len(j.writes))
	for key := range j.writes {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		batch.Put([]byte(key), j.writes[key])
	}
	if err := batch.Write(); err != nil {
		return err
	}
	j.reset()
	return nil
}

// Discard drops every staged operation and finalises the journal. Calling it
// after Commit is a no-op.
func (j *Journal) Discard() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return
	}
	j.reset()
}

// Close discards pending writes. The parent database stays open.
func (j *Journal) Close() error {
	j.Discard()
	return nil
}

func (j *Journal) reset() {
	j.writes = nil
	j.deletes = nil
	j.closed = true
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
