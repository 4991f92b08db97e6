// Copyright 2026 The EFS Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package inodes

import (
	"github.com/efs-go/efs/internal/kvstore"
)

// readBlock fetches and decrypts one block's plaintext, zero-filling
// it if no record exists (a sparse hole).
func (s *Store) readBlock(txn kvstore.Txn, id ID, idx uint64) ([]byte, error) {
	raw, ok, err := s.kv.Get(txn, blocksDomain(id), encodeBlockIndex(idx))
	if err != nil {
		return nil, err
	}
	if !ok {
		return make([]byte, BlockSize), nil
	}
	return raw, nil
}

func (s *Store) writeBlock(txn kvstore.Txn, id ID, idx uint64, plaintext []byte) error {
	return s.kv.Put(txn, blocksDomain(id), encodeBlockIndex(idx), plaintext)
}

func (s *Store) blockExists(txn kvstore.Txn, id ID, idx uint64) (bool, error) {
	_, ok, err := s.kv.Get(txn, blocksDomain(id), encodeBlockIndex(idx))
	return ok, err
}

func (s *Store) deleteBlock(txn kvstore.Txn, id ID, idx uint64) error {
	return s.kv.Delete(txn, blocksDomain(id), encodeBlockIndex(idx))
}

// ReadRange implements C4's read algorithm: decrypt each touched
// block and copy the in-range slice into dest, never reading past the
// inode's recorded size.
func (s *Store) ReadRange(txn kvstore.Txn, id ID, m Meta, pos int64, dest []byte) (n int, err error) {
	if pos < 0 || pos >= int64(m.Size) || len(dest) == 0 {
		return 0, nil
	}
	end := pos + int64(len(dest))
	if end > int64(m.Size) {
		end = int64(m.Size)
	}
	first := uint64(pos) / BlockSize
	last := uint64(end-1) / BlockSize

	total := 0
	for idx := first; idx <= last; idx++ {
		block, err := s.readBlock(txn, id, idx)
		if err != nil {
			return total, err
		}
		blockStart := int64(idx * BlockSize)
		lo := pos
		if blockStart > lo {
			lo = blockStart
		}
		hi := end
		if blockStart+BlockSize < hi {
			hi = blockStart + BlockSize
		}
		copy(dest[lo-pos:hi-pos], block[lo-blockStart:hi-blockStart])
		total = int(hi - pos)
	}
	return total, nil
}

// WriteRange implements C4's write algorithm, including holes when
// pos is beyond the current size: fully-empty intermediate blocks get
// no record at all, and only boundary blocks are read-patch-written.
// It records the new size and block count in m; the caller is
// responsible for setting mtime/ctime and persisting the updated Meta
// in the same batch.
func (s *Store) WriteRange(txn kvstore.Txn, id ID, m *Meta, pos int64, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	end := pos + int64(len(data))
	first := uint64(pos) / BlockSize
	last := uint64(end-1) / BlockSize

	for idx := first; idx <= last; idx++ {
		blockStart := int64(idx * BlockSize)
		lo := pos
		if blockStart > lo {
			lo = blockStart
		}
		hi := end
		if blockStart+BlockSize < hi {
			hi = blockStart + BlockSize
		}

		fullBlockWrite := lo == blockStart && hi == blockStart+BlockSize
		existedBefore, err := s.blockExists(txn, id, idx)
		if err != nil {
			return err
		}

		var plaintext []byte
		if fullBlockWrite {
			plaintext = make([]byte, BlockSize)
		} else {
			plaintext, err = s.readBlock(txn, id, idx)
			if err != nil {
				return err
			}
		}
		copy(plaintext[lo-blockStart:hi-blockStart], data[lo-pos:hi-pos])

		if err := s.writeBlock(txn, id, idx, plaintext); err != nil {
			return err
		}
		if !existedBefore {
			m.Blocks++
		}
	}

	if uint64(end) > m.Size {
		m.Size = uint64(end)
	}
	return nil
}

// Truncate implements ftruncate's shrink/grow algorithm. Growing never
// materializes zero blocks; shrinking deletes every block at or past
// the new boundary and, if the boundary lands mid-block, rewrites that
// block with its tail zeroed.
func (s *Store) Truncate(txn kvstore.Txn, id ID, m *Meta, newSize uint64) error {
	if newSize < m.Size {
		oldBlocks := BlockCount(m.Size)
		newBlocks := BlockCount(newSize)
		for idx := newBlocks; idx < oldBlocks; idx++ {
			existed, err := s.blockExists(txn, id, idx)
			if err != nil {
				return err
			}
			if existed {
				if err := s.deleteBlock(txn, id, idx); err != nil {
					return err
				}
				m.Blocks--
			}
		}
		if newSize%BlockSize != 0 {
			boundaryIdx := newSize / BlockSize
			existed, err := s.blockExists(txn, id, boundaryIdx)
			if err != nil {
				return err
			}
			if existed {
				block, err := s.readBlock(txn, id, boundaryIdx)
				if err != nil {
					return err
				}
				tailStart := newSize % BlockSize
				for i := tailStart; i < BlockSize; i++ {
					block[i] = 0
				}
				if err := s.writeBlock(txn, id, boundaryIdx, block); err != nil {
					return err
				}
			}
		}
	}
	m.Size = newSize
	return nil
}

// Fallocate extends size without materializing any block record. It
// changes only m.Size; the caller bumps ctime (never mtime/atime), per
// spec.md §4.4.
func (s *Store) Fallocate(m *Meta, offset, length uint64) {
	end := offset + length
	if end > m.Size {
		m.Size = end
	}
}
