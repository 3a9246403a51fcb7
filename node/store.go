// Copyright (c) 2026 The Findora Network developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package node

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/findoranetwork/stakingd/fra"
	"github.com/findoranetwork/stakingd/kv"
	"github.com/findoranetwork/stakingd/staking"
)

const headKey = "head"

// Store persists committed snapshots keyed by height, plus a head pointer
// carrying the expected state hash so drift is caught on restart.
type Store struct {
	snaps kv.Store
	meta  kv.Store
}

// NewStore wraps a kv store.
func NewStore(db kv.Store) *Store {
	return &Store{
		snaps: kv.Bucket("snap-").NewStore(db),
		meta:  kv.Bucket("meta-").NewStore(db),
	}
}

// Save persists the snapshot under its height and advances the head pointer.
func (s *Store) Save(snap *staking.Snapshot) (fra.Bytes32, error) {
	encoded, err := snap.Encode()
	if err != nil {
		return fra.Bytes32{}, err
	}
	hash := fra.Blake2b(encoded)

	if err := s.snaps.Put(heightKey(snap.Height), encoded); err != nil {
		return fra.Bytes32{}, errors.Wrap(err, "save snapshot")
	}

	var buf [8 + 32]byte
	binary.BigEndian.PutUint64(buf[:8], snap.Height)
	copy(buf[8:], hash[:])
	if err := s.meta.Put([]byte(headKey), buf[:]); err != nil {
		return fra.Bytes32{}, errors.Wrap(err, "save head")
	}
	return hash, nil
}

// LoadHead loads the latest committed snapshot, verifying its content hash.
// It returns nil when the store is empty.
func (s *Store) LoadHead() (*staking.Snapshot, error) {
	raw, err := s.meta.Get([]byte(headKey))
	if err != nil {
		if s.meta.IsNotFound(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "load head")
	}
	if len(raw) != 8+32 {
		return nil, errors.New("corrupt head pointer")
	}
	height := binary.BigEndian.Uint64(raw[:8])
	var want fra.Bytes32
	copy(want[:], raw[8:])

	encoded, err := s.snaps.Get(heightKey(height))
	if err != nil {
		return nil, errors.Wrap(err, "load head snapshot")
	}
	if got := fra.Blake2b(encoded); got != want {
		// a hash mismatch means this replica drifted; halting beats serving
		// divergent state
		return nil, errors.Errorf("state hash mismatch at height %d: have %s, want %s", height, got, want)
	}
	return staking.DecodeSnapshot(encoded)
}

// Load returns the snapshot at the given height.
func (s *Store) Load(height uint64) (*staking.Snapshot, error) {
	encoded, err := s.snaps.Get(heightKey(height))
	if err != nil {
		return nil, errors.Wrapf(err, "load snapshot %d", height)
	}
	return staking.DecodeSnapshot(encoded)
}

func heightKey(h uint64) []byte {
	var key [8]byte
	binary.BigEndian.PutUint64(key[:], h)
	return key[:]
}
