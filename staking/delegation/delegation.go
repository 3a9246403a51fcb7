// Copyright (c) 2026 The Findora Network developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package delegation

import (
	"math/big"

	"github.com/findoranetwork/stakingd/fra"
)

// State is the lifecycle state of a delegation.
type State uint8

const (
	// StateBonded earns rewards and counts toward voting power.
	StateBonded State = iota
	// StateUnbonding is frozen until UnbondFinish; principal no longer votes.
	StateUnbonding
	// StateSettled is terminal: principal returned, rewards paid.
	StateSettled
)

func (s State) String() string {
	switch s {
	case StateBonded:
		return "bonded"
	case StateUnbonding:
		return "unbonding"
	case StateSettled:
		return "settled"
	}
	return "unknown"
}

// Key identifies a delegation row.
type Key struct {
	Delegator fra.Address
	Validator fra.PubKey
}

// Entry is one (delegator, validator) bond.
type Entry struct {
	Delegator fra.Address
	Validator fra.PubKey

	Principal  *big.Int
	BondHeight uint64

	State        State
	UnbondFinish uint64 // valid only while unbonding

	AccruedReward *big.Int
}

// Key returns the row key.
func (e *Entry) Key() Key {
	return Key{Delegator: e.Delegator, Validator: e.Validator}
}

// Live reports whether the row still restricts the delegator's account.
func (e *Entry) Live() bool {
	return e.State == StateBonded || e.State == StateUnbonding
}

// Copy returns a deep copy of the entry.
func (e *Entry) Copy() *Entry {
	cpy := *e
	cpy.Principal = new(big.Int).Set(e.Principal)
	cpy.AccruedReward = new(big.Int).Set(e.AccruedReward)
	return &cpy
}
