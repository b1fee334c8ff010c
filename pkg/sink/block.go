package sink

import (
	"encoding/json"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/vnykmshr/flowbench/pkg/common/errors"
)

// Manifest describes a stream stored in a block store.
type Manifest struct {
	Name      string `json:"name"`
	Size      int64  `json:"size"`
	Blocks    uint64 `json:"blocks"`
	BlockSize int    `json:"block_size"`
}

func blockPrefix(name string) []byte {
	return []byte("blk/" + name + "/")
}

func blockKey(name string, index uint64) []byte {
	return fmt.Appendf(nil, "blk/%s/%016x", name, index)
}

func manifestKey(name string) []byte {
	return []byte("manifest/" + name)
}

// OpenBlockDB opens a Badger block store at dir. An empty dir opens an
// in-memory store.
func OpenBlockDB(dir string) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.StorageError("open", dir, err)
	}
	return db, nil
}

// BlockSink stores a stream as fixed-size blocks in a Badger database,
// keyed by stream name and block index. The last block may be short.
// A manifest written on Close marks the stream complete.
type BlockSink struct {
	db        *badger.DB
	ownsDB    bool
	name      string
	blockSize int

	buf    []byte
	blocks uint64
	size   int64
	err    error
	closed bool
}

// OpenBlock opens the block store at config.Path and starts stream
// config.Name, replacing any stream of that name.
func OpenBlock(config Config) (*BlockSink, error) {
	db, err := OpenBlockDB(config.Path)
	if err != nil {
		return nil, err
	}

	s, err := NewBlockSink(db, config.Name, config.BatchSize)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.ownsDB = true
	return s, nil
}

// NewBlockSink starts stream name in db. The caller keeps ownership of db.
func NewBlockSink(db *badger.DB, name string, blockSize int) (*BlockSink, error) {
	if name == "" {
		return nil, errors.NewValidationError("sink", "Name", name, "stream name is required")
	}
	if blockSize <= 0 {
		return nil, errors.NewValidationError("sink", "BatchSize", blockSize, "block size must be positive")
	}

	if err := db.DropPrefix(blockPrefix(name)); err != nil {
		return nil, errors.StorageError("reset", name, err)
	}
	if err := db.Update(func(txn *badger.Txn) error {
		return txn.Delete(manifestKey(name))
	}); err != nil {
		return nil, errors.StorageError("reset", name, err)
	}

	return &BlockSink{
		db:        db,
		name:      name,
		blockSize: blockSize,
		buf:       make([]byte, 0, blockSize),
	}, nil
}

// Write buffers p and commits every full block. Bytes of a partial block
// count as written before they are committed. A failed commit drops the
// pending block and makes every later call fail.
func (s *BlockSink) Write(p []byte) (int, error) {
	if s.closed {
		return 0, errors.ErrClosed
	}
	if s.err != nil {
		return 0, s.err
	}

	written := 0
	for len(p) > 0 {
		n := min(len(p), s.blockSize-len(s.buf))
		s.buf = append(s.buf, p[:n]...)
		p = p[n:]

		if len(s.buf) == s.blockSize {
			if err := s.commit(); err != nil {
				return written, err
			}
		}
		written += n
	}
	return written, nil
}

func (s *BlockSink) commit() error {
	block := s.buf
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(blockKey(s.name, s.blocks), block)
	})
	if err != nil {
		s.err = err
		return err
	}

	s.blocks++
	s.size += int64(len(block))
	s.buf = make([]byte, 0, s.blockSize)
	return nil
}

// Close commits the partial last block, writes the manifest and syncs
// on-disk stores.
// The database is closed when the sink opened it.
func (s *BlockSink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	err := s.err
	if err == nil && len(s.buf) > 0 {
		err = s.commit()
	}
	if err == nil {
		err = s.writeManifest()
	}
	if err == nil && !s.db.Opts().InMemory {
		err = s.db.Sync()
	}
	if s.ownsDB {
		if cerr := s.db.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func (s *BlockSink) writeManifest() error {
	data, err := json.Marshal(Manifest{
		Name:      s.name,
		Size:      s.size,
		Blocks:    s.blocks,
		BlockSize: s.blockSize,
	})
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(manifestKey(s.name), data)
	})
}

// Size returns the number of bytes committed so far.
func (s *BlockSink) Size() int64 {
	return s.size
}

// ReadManifest returns the manifest of a closed stream.
func ReadManifest(db *badger.DB, name string) (*Manifest, error) {
	var m Manifest
	err := db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(manifestKey(name))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &m)
		})
	})
	if err != nil {
		return nil, errors.StorageError("read manifest", name, err)
	}
	return &m, nil
}

// ReadStream reassembles a closed stream from its blocks.
func ReadStream(db *badger.DB, name string) ([]byte, error) {
	m, err := ReadManifest(db, name)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, m.Size)
	err = db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = blockPrefix(name)
		it := txn.NewIterator(opts)
		defer it.Close()

		var index uint64
		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			if want := blockKey(name, index); string(it.Item().Key()) != string(want) {
				return fmt.Errorf("missing block %d", index)
			}
			if err := it.Item().Value(func(val []byte) error {
				out = append(out, val...)
				return nil
			}); err != nil {
				return err
			}
			index++
		}
		if index != m.Blocks {
			return fmt.Errorf("found %d blocks, manifest lists %d", index, m.Blocks)
		}
		return nil
	})
	if err != nil {
		return nil, errors.StorageError("read stream", name, err)
	}
	return out, nil
}
