// Copyright (c) 2026 The Findora Network developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package delegation

import (
	"bytes"
	"math/big"
	"sort"

	"github.com/pkg/errors"

	"github.com/findoranetwork/stakingd/fra"
	"github.com/findoranetwork/stakingd/log"
)

var logger = log.WithContext("pkg", "delegation")

// Ledger exclusively owns all delegation rows. It maintains a per-delegator
// live-row index (account lock restriction) and an unbond-finish-height index
// so ticking only touches due rows.
type Ledger struct {
	entries   map[Key]*Entry
	liveRows  map[fra.Address]int
	unbonding map[fra.Address]int
	byFinish  map[uint64]map[Key]struct{}
}

// NewLedger creates an empty delegation ledger.
func NewLedger() *Ledger {
	return &Ledger{
		entries:   make(map[Key]*Entry),
		liveRows:  make(map[fra.Address]int),
		unbonding: make(map[fra.Address]int),
		byFinish:  make(map[uint64]map[Key]struct{}),
	}
}

// Get returns the row for the given key, or nil.
func (l *Ledger) Get(key Key) *Entry {
	return l.entries[key]
}

// Len returns the number of live rows.
func (l *Ledger) Len() int {
	return len(l.entries)
}

// HasUnbonding reports whether the delegator has any unbonding row. A
// delegator in unbonding cannot open new bonds.
func (l *Ledger) HasUnbonding(delegator fra.Address) bool {
	return l.unbonding[delegator] > 0
}

// IsLockRestricted reports whether the delegator's ledger account must reject
// outgoing transfers.
func (l *Ledger) IsLockRestricted(delegator fra.Address) bool {
	return l.liveRows[delegator] > 0
}

// Bond creates a fresh bonded row, or appends principal to an existing one.
func (l *Ledger) Bond(delegator fra.Address, validator fra.PubKey, amount *big.Int, height uint64) error {
	if amount == nil || amount.Sign() <= 0 {
		return errors.New("invalid delegation amount")
	}
	if l.HasUnbonding(delegator) {
		return errors.New("account is unbonding")
	}
	key := Key{Delegator: delegator, Validator: validator}
	if entry, ok := l.entries[key]; ok {
		// existing bonded row: append
		entry.Principal.Add(entry.Principal, amount)
		logger.Debug("appended delegation", "delegator", delegator, "validator", validator, "principal", entry.Principal)
		return nil
	}
	l.entries[key] = &Entry{
		Delegator:     delegator,
		Validator:     validator,
		Principal:     new(big.Int).Set(amount),
		BondHeight:    height,
		State:         StateBonded,
		AccruedReward: new(big.Int),
	}
	l.liveRows[delegator]++
	logger.Debug("created delegation", "delegator", delegator, "validator", validator, "amount", amount)
	return nil
}

// Unbond moves a bonded row to unbonding. Partial undelegation is not
// supported: the full principal freezes.
func (l *Ledger) Unbond(key Key, height, finish uint64) error {
	entry, ok := l.entries[key]
	if !ok {
		return errors.New("delegation doesn't exist")
	}
	if entry.State != StateBonded {
		return errors.New("delegation is not bonded")
	}
	entry.State = StateUnbonding
	entry.UnbondFinish = finish
	l.unbonding[key.Delegator]++
	set, ok := l.byFinish[finish]
	if !ok {
		set = make(map[Key]struct{})
		l.byFinish[finish] = set
	}
	set[key] = struct{}{}
	logger.Debug("unbonding delegation", "delegator", key.Delegator, "validator", key.Validator, "finish", finish)
	return nil
}

// Claim moves up to amount (or all, when amount is nil) of the accrued reward
// out of the row, returning the moved value. State is preserved.
func (l *Ledger) Claim(key Key, amount *big.Int) (*big.Int, error) {
	entry, ok := l.entries[key]
	if !ok {
		return nil, errors.New("delegation doesn't exist")
	}
	if entry.AccruedReward.Sign() == 0 {
		return nil, errors.New("nothing to claim")
	}
	claimed := new(big.Int).Set(entry.AccruedReward)
	if amount != nil {
		if amount.Sign() <= 0 {
			return nil, errors.New("invalid claim amount")
		}
		if amount.Cmp(claimed) < 0 {
			claimed.Set(amount)
		}
	}
	entry.AccruedReward.Sub(entry.AccruedReward, claimed)
	return claimed, nil
}

// Due returns the unbonding rows whose finish height has arrived, in
// canonical key order. Rows deferred by earlier ticks stay indexed and are
// returned again.
func (l *Ledger) Due(height uint64) []*Entry {
	var due []*Entry
	for finish, set := range l.byFinish {
		if finish > height {
			continue
		}
		for key := range set {
			due = append(due, l.entries[key])
		}
	}
	sortEntries(due)
	return due
}

// Settle finalizes an unbonding row whose rewards are fully paid. The row is
// removed; the returned entry carries the principal to pay back. The second
// return reports whether the delegator still has other live rows (the account
// lock must be kept while it does).
func (l *Ledger) Settle(key Key) (*Entry, bool, error) {
	entry, ok := l.entries[key]
	if !ok {
		return nil, false, errors.New("delegation doesn't exist")
	}
	if entry.State != StateUnbonding {
		return nil, false, errors.New("delegation is not unbonding")
	}
	if entry.AccruedReward.Sign() != 0 {
		return nil, false, errors.New("unpaid delegation rewards")
	}
	entry.State = StateSettled
	delete(l.entries, key)
	if set, ok := l.byFinish[entry.UnbondFinish]; ok {
		delete(set, key)
		if len(set) == 0 {
			delete(l.byFinish, entry.UnbondFinish)
		}
	}
	l.unbonding[key.Delegator]--
	if l.unbonding[key.Delegator] == 0 {
		delete(l.unbonding, key.Delegator)
	}
	l.liveRows[key.Delegator]--
	stillLocked := l.liveRows[key.Delegator] > 0
	if !stillLocked {
		delete(l.liveRows, key.Delegator)
	}
	logger.Debug("settled delegation", "delegator", key.Delegator, "validator", key.Validator, "principal", entry.Principal)
	return entry, stillLocked, nil
}

// Drop removes a row regardless of state, fixing up indexes. Used when a full
// slash leaves nothing to settle.
func (l *Ledger) Drop(key Key) {
	entry, ok := l.entries[key]
	if !ok {
		return
	}
	delete(l.entries, key)
	if entry.State == StateUnbonding {
		if set, ok := l.byFinish[entry.UnbondFinish]; ok {
			delete(set, key)
			if len(set) == 0 {
				delete(l.byFinish, entry.UnbondFinish)
			}
		}
		l.unbonding[key.Delegator]--
		if l.unbonding[key.Delegator] == 0 {
			delete(l.unbonding, key.Delegator)
		}
	}
	l.liveRows[key.Delegator]--
	if l.liveRows[key.Delegator] == 0 {
		delete(l.liveRows, key.Delegator)
	}
}

// BondsOf returns the validator's self-bond (the row owned by rewardsAddr)
// and the sum of external bonded principal. Unbonding rows no longer vote.
func (l *Ledger) BondsOf(validator fra.PubKey, rewardsAddr fra.Address) (selfBond, externalBonds *big.Int) {
	selfBond, externalBonds = new(big.Int), new(big.Int)
	for _, entry := range l.entries {
		if entry.Validator != validator || entry.State != StateBonded {
			continue
		}
		if entry.Delegator == rewardsAddr {
			selfBond.Add(selfBond, entry.Principal)
		} else {
			externalBonds.Add(externalBonds, entry.Principal)
		}
	}
	return
}

// BondedTo returns all bonded rows of a validator in canonical order.
func (l *Ledger) BondedTo(validator fra.PubKey) []*Entry {
	var rows []*Entry
	for _, entry := range l.entries {
		if entry.Validator == validator && entry.State == StateBonded {
			rows = append(rows, entry)
		}
	}
	sortEntries(rows)
	return rows
}

// RowsOf returns every live row of a validator (bonded and unbonding) in
// canonical order. Slashing touches both.
func (l *Ledger) RowsOf(validator fra.PubKey) []*Entry {
	var rows []*Entry
	for _, entry := range l.entries {
		if entry.Validator == validator {
			rows = append(rows, entry)
		}
	}
	sortEntries(rows)
	return rows
}

// ByDelegator returns every live row of a delegator in canonical order.
func (l *Ledger) ByDelegator(delegator fra.Address) []*Entry {
	var rows []*Entry
	for _, entry := range l.entries {
		if entry.Delegator == delegator {
			rows = append(rows, entry)
		}
	}
	sortEntries(rows)
	return rows
}

// All returns every row sorted by (delegator, validator).
func (l *Ledger) All() []*Entry {
	all := make([]*Entry, 0, len(l.entries))
	for _, entry := range l.entries {
		all = append(all, entry)
	}
	sortEntries(all)
	return all
}

// Restore re-inserts a row during snapshot load, rebuilding indexes.
func (l *Ledger) Restore(entry *Entry) {
	key := entry.Key()
	l.entries[key] = entry
	l.liveRows[key.Delegator]++
	if entry.State == StateUnbonding {
		l.unbonding[key.Delegator]++
		set, ok := l.byFinish[entry.UnbondFinish]
		if !ok {
			set = make(map[Key]struct{})
			l.byFinish[entry.UnbondFinish] = set
		}
		set[key] = struct{}{}
	}
}

func sortEntries(rows []*Entry) {
	sort.Slice(rows, func(i, j int) bool {
		if c := bytes.Compare(rows[i].Delegator[:], rows[j].Delegator[:]); c != 0 {
			return c < 0
		}
		return bytes.Compare(rows[i].Validator[:], rows[j].Validator[:]) < 0
	})
}
