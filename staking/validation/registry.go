// Copyright (c) 2026 The Findora Network developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package validation

import (
	"bytes"
	"math/big"
	"sort"

	"github.com/pkg/errors"

	"github.com/findoranetwork/stakingd/fra"
	"github.com/findoranetwork/stakingd/log"
)

var logger = log.WithContext("pkg", "validation")

// Registry exclusively owns all Validation records. External references are
// by pubkey value, never by pointer.
type Registry struct {
	entries map[fra.PubKey]*Validation
	byAddr  map[fra.Address]fra.PubKey
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[fra.PubKey]*Validation),
		byAddr:  make(map[fra.Address]fra.PubKey),
	}
}

// Get returns the entry for the given pubkey, or nil.
func (r *Registry) Get(pk fra.PubKey) *Validation {
	return r.entries[pk]
}

// GetByAddr resolves the 20-byte consensus address to its entry, or nil.
func (r *Registry) GetByAddr(addr fra.Address) *Validation {
	pk, ok := r.byAddr[addr]
	if !ok {
		return nil
	}
	return r.entries[pk]
}

// Len returns the number of known validators.
func (r *Registry) Len() int {
	return len(r.entries)
}

// Upsert creates or updates validator metadata.
func (r *Registry) Upsert(pk fra.PubKey, rewardsAddr fra.Address, commission fra.Ratio, memo string) error {
	if pk.IsZero() {
		return errors.New("zero pubkey")
	}
	if !commission.Valid() {
		return errors.New("commission rate out of range")
	}
	if entry, ok := r.entries[pk]; ok {
		if entry.Sanction == SanctionTombstoned {
			return errors.New("validator is tombstoned")
		}
		entry.RewardsAddr = rewardsAddr
		entry.Commission = commission
		entry.Memo = memo
		return nil
	}
	entry := &Validation{
		PubKey:             pk,
		RewardsAddr:        rewardsAddr,
		Commission:         commission,
		Memo:               memo,
		AccumulatedRewards: new(big.Int),
		CommissionDust:     new(big.Int),
	}
	r.entries[pk] = entry
	r.byAddr[pk.Address()] = pk
	logger.Debug("registered validator", "pubkey", pk, "rewardsAddr", rewardsAddr)
	return nil
}

// Seed installs a genesis validator with its configured power.
func (r *Registry) Seed(pk fra.PubKey, rewardsAddr fra.Address, commission fra.Ratio, memo string, power uint64, height uint64) error {
	if _, ok := r.entries[pk]; ok {
		return errors.New("duplicate genesis validator")
	}
	if err := r.Upsert(pk, rewardsAddr, commission, memo); err != nil {
		return err
	}
	entry := r.entries[pk]
	entry.Genesis = true
	entry.GenesisPower = power
	entry.BondHeight = height
	return nil
}

// RestoreEntry re-inserts an entry during snapshot load.
func (r *Registry) RestoreEntry(entry *Validation) error {
	if entry.IsEmpty() {
		return errors.New("restore of empty validation")
	}
	if _, ok := r.entries[entry.PubKey]; ok {
		return errors.New("duplicate validation in snapshot")
	}
	r.entries[entry.PubKey] = entry
	r.byAddr[entry.PubKey.Address()] = entry.PubKey
	return nil
}

// Remove drops a candidate from the registry. Removing is only meaningful for
// entries whose bonds are already gone; the caller enforces that.
func (r *Registry) Remove(pk fra.PubKey) {
	if entry, ok := r.entries[pk]; ok {
		delete(r.byAddr, entry.PubKey.Address())
		delete(r.entries, pk)
	}
}

// SetSanction moves a validator to the given sanction. Tombstoning is
// idempotent and can never be lifted.
func (r *Registry) SetSanction(pk fra.PubKey, kind Sanction, until uint64) error {
	entry, ok := r.entries[pk]
	if !ok {
		return errors.New("validator doesn't exist")
	}
	if entry.Sanction == SanctionTombstoned {
		return nil
	}
	entry.Sanction = kind
	switch kind {
	case SanctionJailed:
		entry.JailedUntil = until
	case SanctionTombstoned, SanctionNone:
		entry.JailedUntil = 0
	}
	logger.Info("validator sanction updated", "pubkey", pk, "sanction", kind)
	return nil
}

// Tick releases jailed validators whose term has passed.
func (r *Registry) Tick(height uint64) {
	for _, entry := range r.entries {
		if entry.Sanction == SanctionJailed && entry.JailedUntil <= height {
			entry.Sanction = SanctionNone
			entry.JailedUntil = 0
			entry.MissedBlocks = 0
			logger.Info("validator released from jail", "pubkey", entry.PubKey, "height", height)
		}
	}
}

// All returns every entry sorted by pubkey. Canonical iteration order keeps
// amounts deterministic across nodes.
func (r *Registry) All() []*Validation {
	all := make([]*Validation, 0, len(r.entries))
	for _, entry := range r.entries {
		all = append(all, entry)
	}
	sort.Slice(all, func(i, j int) bool {
		return bytes.Compare(all[i].PubKey[:], all[j].PubKey[:]) < 0
	})
	return all
}

// Candidate is one entry of the computed active set.
type Candidate struct {
	PubKey fra.PubKey
	Power  *big.Int
}

// BondLookup resolves the current self-bond and summed external bonds of a
// validator. The delegation ledger provides it.
type BondLookup func(pk fra.PubKey) (selfBond, externalBonds *big.Int)

// SnapshotActive computes the active set: the top max validators by voting
// power, ties broken by lexicographic pubkey order, sanctioned and
// under-bonded entries excluded.
func (r *Registry) SnapshotActive(bonds BondLookup, max int) []Candidate {
	candidates := make([]Candidate, 0, len(r.entries))
	for _, entry := range r.All() {
		self, ext := bonds(entry.PubKey)
		power := entry.Power(self, ext)
		if power.Sign() <= 0 {
			continue
		}
		candidates = append(candidates, Candidate{PubKey: entry.PubKey, Power: power})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		switch candidates[i].Power.Cmp(candidates[j].Power) {
		case 1:
			return true
		case -1:
			return false
		}
		return bytes.Compare(candidates[i].PubKey[:], candidates[j].PubKey[:]) < 0
	})
	if len(candidates) > max {
		candidates = candidates[:max]
	}
	return candidates
}
