// Copyright (c) 2026 The Findora Network developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package staking

import (
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"

	"github.com/findoranetwork/stakingd/fra"
	"github.com/findoranetwork/stakingd/ledger"
	"github.com/findoranetwork/stakingd/staking/coinbase"
	"github.com/findoranetwork/stakingd/staking/delegation"
	"github.com/findoranetwork/stakingd/staking/rewards"
	"github.com/findoranetwork/stakingd/staking/validation"
)

// Snapshot is the full committed state of the core at a block boundary. All
// slices are canonical-sorted so the RLP serialization, and therefore the
// content hash, is identical across nodes.
type Snapshot struct {
	Height uint64

	Validators  []*validation.Validation
	Delegations []*delegation.Entry

	CoinbaseBalance *big.Int
	CoinbaseStalled bool
	PayoutQueue     []*coinbase.Intent

	Scheduled []DistEntry
	Burned    *big.Int

	Published []PowerEntry
}

// Snapshot captures the committed state. It must only be called between
// blocks; the result is deeply copied and safe to read concurrently.
func (s *Staking) Snapshot() (*Snapshot, error) {
	if s.inBlock {
		return nil, errors.New("snapshot inside block window")
	}

	validators := s.reg.All()
	snapVals := make([]*validation.Validation, len(validators))
	for i, entry := range validators {
		snapVals[i] = entry.Copy()
	}

	rows := s.del.All()
	snapRows := make([]*delegation.Entry, len(rows))
	for i, row := range rows {
		snapRows[i] = row.Copy()
	}

	scheduled := make([]DistEntry, len(s.scheduled))
	for i, entry := range s.scheduled {
		scheduled[i] = DistEntry{
			Addr:          entry.Addr,
			Amount:        new(big.Int).Set(entry.Amount),
			ReleaseHeight: entry.ReleaseHeight,
		}
	}

	published := make([]PowerEntry, len(s.published))
	copy(published, s.published)

	return &Snapshot{
		Height:          s.curHeight,
		Validators:      snapVals,
		Delegations:     snapRows,
		CoinbaseBalance: s.cb.Balance(),
		CoinbaseStalled: s.cb.Stalled(),
		PayoutQueue:     s.cb.Queue(),
		Scheduled:       scheduled,
		Burned:          new(big.Int).Set(s.burned),
		Published:       published,
	}, nil
}

// Hash computes the content address of the snapshot: blake2b over the
// canonical RLP serialization.
func (snap *Snapshot) Hash() (fra.Bytes32, error) {
	encoded, err := rlp.EncodeToBytes(snap)
	if err != nil {
		return fra.Bytes32{}, errors.Wrap(err, "encode snapshot")
	}
	return fra.Blake2b(encoded), nil
}

// Encode serializes the snapshot.
func (snap *Snapshot) Encode() ([]byte, error) {
	return rlp.EncodeToBytes(snap)
}

// DecodeSnapshot deserializes a snapshot.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := rlp.DecodeBytes(data, &snap); err != nil {
		return nil, errors.Wrap(err, "decode snapshot")
	}
	return &snap, nil
}

// FromSnapshot rebuilds a core from a committed snapshot, re-deriving every
// index.
func FromSnapshot(snap *Snapshot, payer ledger.Payer) (*Staking, error) {
	s := New(payer)
	s.curHeight = snap.Height
	s.burned.Set(snap.Burned)

	for _, entry := range snap.Validators {
		cpy := entry.Copy()
		if err := s.reg.RestoreEntry(cpy); err != nil {
			return nil, err
		}
	}
	for _, row := range snap.Delegations {
		s.del.Restore(row.Copy())
	}

	s.cb = coinbase.Restore(snap.CoinbaseBalance, snap.PayoutQueue, snap.CoinbaseStalled)
	s.engine = rewards.New(s.reg, s.del)

	s.scheduled = make([]DistEntry, len(snap.Scheduled))
	for i, entry := range snap.Scheduled {
		s.scheduled[i] = DistEntry{
			Addr:          entry.Addr,
			Amount:        new(big.Int).Set(entry.Amount),
			ReleaseHeight: entry.ReleaseHeight,
		}
	}
	s.published = make([]PowerEntry, len(snap.Published))
	copy(s.published, snap.Published)
	return s, nil
}
