package storage

import "bytes"

// PrefixDB is a namespace inside another DB: every key it reads or
// writes is stored under prefix in the inner DB. The signer keeps one
// namespace per network so mainnet and testnet key pages never collide
// in a shared data directory.
type PrefixDB struct {
	inner  DB
	prefix []byte
}

// NewPrefixDB returns the namespace prefix of inner.
func NewPrefixDB(inner DB, prefix []byte) *PrefixDB {
	return &PrefixDB{inner: inner, prefix: bytes.Clone(prefix)}
}

func (p *PrefixDB) key(k []byte) []byte {
	out := make([]byte, 0, len(p.prefix)+len(k))
	out = append(out, p.prefix...)
	return append(out, k...)
}

// Get returns a copy of the value stored under key in the namespace.
func (p *PrefixDB) Get(key []byte) ([]byte, error) {
	return p.inner.Get(p.key(key))
}

// Put stores value under key in the namespace.
func (p *PrefixDB) Put(key, value []byte) error {
	return p.inner.Put(p.key(key), value)
}

// Delete removes key from the namespace.
func (p *PrefixDB) Delete(key []byte) error {
	return p.inner.Delete(p.key(key))
}

// Has reports whether key exists in the namespace.
func (p *PrefixDB) Has(key []byte) (bool, error) {
	return p.inner.Has(p.key(key))
}

// ForEach visits the namespace keys starting with prefix. Keys are passed
// to fn without the namespace prefix.
func (p *PrefixDB) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	n := len(p.prefix)
	return p.inner.ForEach(p.key(prefix), func(key, value []byte) error {
		return fn(key[n:], value)
	})
}

// Purge overwrites every value in the namespace with zeros and then
// deletes it. Keys are collected before anything is modified.
func (p *PrefixDB) Purge() (int, error) {
	var keys [][]byte
	err := p.ForEach(nil, func(key, value []byte) error {
		keys = append(keys, bytes.Clone(key))
		clear(value)
		return nil
	})
	if err != nil {
		return 0, err
	}

	wipe := p.NewBatch()
	defer wipe.Discard()
	for _, k := range keys {
		v, err := p.Get(k)
		if err != nil {
			return 0, err
		}
		clear(v)
		if err := wipe.Put(k, v); err != nil {
			return 0, err
		}
	}
	if err := wipe.Commit(); err != nil {
		return 0, err
	}

	del := p.NewBatch()
	defer del.Discard()
	for _, k := range keys {
		if err := del.Delete(k); err != nil {
			return 0, err
		}
	}
	return len(keys), del.Commit()
}

// Close is a no-op; the inner DB is closed by its owner.
func (p *PrefixDB) Close() error {
	return nil
}

// NewBatch returns a batch over the namespace. It is atomic when the
// inner DB supports batches and a sequence of single writes otherwise.
func (p *PrefixDB) NewBatch() Batch {
	if b, ok := p.inner.(Batcher); ok {
		return &prefixBatch{ns: p, inner: b.NewBatch()}
	}
	return &sequentialBatch{db: p}
}

type prefixBatch struct {
	ns    *PrefixDB
	inner Batch
}

func (b *prefixBatch) Put(key, value []byte) error {
	return b.inner.Put(b.ns.key(key), value)
}

func (b *prefixBatch) Delete(key []byte) error {
	return b.inner.Delete(b.ns.key(key))
}

func (b *prefixBatch) Commit() error {
	return b.inner.Commit()
}

func (b *prefixBatch) Discard() {
	b.inner.Discard()
}

// batchOp is a buffered write; a nil value deletes the key.
type batchOp struct {
	key, value []byte
}

// sequentialBatch buffers writes and applies them one by one on Commit.
// Buffered values are wiped once applied.
type sequentialBatch struct {
	db  DB
	ops []batchOp
}

func (b *sequentialBatch) Put(key, value []byte) error {
	v := bytes.Clone(value)
	if v == nil {
		v = []byte{}
	}
	b.ops = append(b.ops, batchOp{key: bytes.Clone(key), value: v})
	return nil
}

func (b *sequentialBatch) Delete(key []byte) error {
	b.ops = append(b.ops, batchOp{key: bytes.Clone(key)})
	return nil
}

func (b *sequentialBatch) Commit() error {
	defer b.Discard()
	for _, op := range b.ops {
		var err error
		if op.value == nil {
			err = b.db.Delete(op.key)
		} else {
			err = b.db.Put(op.key, op.value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (b *sequentialBatch) Discard() {
	for _, op := range b.ops {
		clear(op.value)
	}
	b.ops = nil
}
