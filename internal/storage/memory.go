package storage

import (
	"bytes"
	"strings"
	"sync"
)

// MemoryDB implements DB using an in-memory map. Values are copied on the
// way in and out so callers may wipe their buffers freely.
type MemoryDB struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory creates a new in-memory database.
func NewMemory() *MemoryDB {
	return &MemoryDB{
		data: make(map[string][]byte),
	}
}

// Get retrieves a value by key.
func (m *MemoryDB) Get(key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	return bytes.Clone(v), nil
}

// Put stores a key-value pair, wiping any value it replaces.
func (m *MemoryDB) Put(key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remove(string(key))
	m.data[string(key)] = cloneValue(value)
	return nil
}

// Delete removes a key. Stored bytes are wiped before the entry is dropped.
func (m *MemoryDB) Delete(key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remove(string(key))
	return nil
}

// Has checks if a key exists.
func (m *MemoryDB) Has(key []byte) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[string(key)]
	return ok, nil
}

// ForEach iterates over all keys with the given prefix.
func (m *MemoryDB) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	m.mu.RLock()
	type entry struct{ k, v []byte }
	var matches []entry
	p := string(prefix)
	for k, v := range m.data {
		if strings.HasPrefix(k, p) {
			matches = append(matches, entry{[]byte(k), bytes.Clone(v)})
		}
	}
	m.mu.RUnlock()

	for _, e := range matches {
		if err := fn(e.k, e.v); err != nil {
			return err
		}
	}
	return nil
}

// NewBatch returns a batch applied under a single lock.
func (m *MemoryDB) NewBatch() Batch {
	return &memoryBatch{db: m}
}

// Close wipes and drops all stored values.
func (m *MemoryDB) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.data {
		m.remove(k)
	}
	return nil
}

func (m *MemoryDB) remove(k string) {
	if v, ok := m.data[k]; ok {
		clear(v)
		delete(m.data, k)
	}
}

// cloneValue copies value, keeping empty values non-nil.
func cloneValue(value []byte) []byte {
	v := make([]byte, len(value))
	copy(v, value)
	return v
}

type memoryOp struct {
	key   string
	value []byte // nil means delete
}

type memoryBatch struct {
	db  *MemoryDB
	ops []memoryOp
}

func (b *memoryBatch) Put(key, value []byte) error {
	b.ops = append(b.ops, memoryOp{key: string(key), value: cloneValue(value)})
	return nil
}

func (b *memoryBatch) Delete(key []byte) error {
	b.ops = append(b.ops, memoryOp{key: string(key)})
	return nil
}

func (b *memoryBatch) Commit() error {
	b.db.mu.Lock()
	defer b.db.mu.Unlock()
	for _, op := range b.ops {
		if op.value == nil {
			b.db.remove(op.key)
			continue
		}
		b.db.remove(op.key)
		b.db.data[op.key] = op.value
	}
	b.ops = nil
	return nil
}

// Discard wipes buffered values that were never committed.
func (b *memoryBatch) Discard() {
	for _, op := range b.ops {
		clear(op.value)
	}
	b.ops = nil
}
