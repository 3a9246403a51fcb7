// Copyright (c) 2026 The Findora Network developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package validation

import (
	"math/big"

	"github.com/findoranetwork/stakingd/fra"
)

// Sanction is the disciplinary status of a validator.
type Sanction uint8

const (
	SanctionNone Sanction = iota
	// SanctionJailed forces voting power to zero until JailedUntil.
	SanctionJailed
	// SanctionTombstoned permanently removes the validator from eligibility.
	SanctionTombstoned
)

func (s Sanction) String() string {
	switch s {
	case SanctionNone:
		return "none"
	case SanctionJailed:
		return "jailed"
	case SanctionTombstoned:
		return "tombstoned"
	}
	return "unknown"
}

// Validation is a known validator, active or candidate.
type Validation struct {
	PubKey      fra.PubKey
	RewardsAddr fra.Address // ledger account receiving commission and block rewards
	Commission  fra.Ratio
	Memo        string

	// Genesis members keep their configured power even with a zero self-bond.
	Genesis      bool
	GenesisPower uint64

	AccumulatedRewards *big.Int
	CommissionDust     *big.Int

	Sanction     Sanction
	JailedUntil  uint64
	MissedBlocks uint32

	BondHeight uint64
}

// IsEmpty returns whether the entry can be treated as empty.
func (v *Validation) IsEmpty() bool {
	return v == nil || v.PubKey.IsZero()
}

// Eligible reports whether the validator may hold voting power, given its
// current self-bond.
func (v *Validation) Eligible(selfBond *big.Int) bool {
	if v.Sanction != SanctionNone {
		return false
	}
	if v.Genesis {
		return true
	}
	return selfBond.Cmp(fra.MinSelfStake) >= 0
}

// Power computes the validator's voting power from its self-bond and the sum
// of external bonds. Ineligible validators have power zero.
func (v *Validation) Power(selfBond, externalBonds *big.Int) *big.Int {
	if !v.Eligible(selfBond) {
		return new(big.Int)
	}
	power := new(big.Int).Add(selfBond, externalBonds)
	if v.Genesis {
		power.Add(power, new(big.Int).SetUint64(v.GenesisPower))
	}
	return power
}

// Copy returns a deep copy of the entry.
func (v *Validation) Copy() *Validation {
	cpy := *v
	cpy.AccumulatedRewards = new(big.Int).Set(v.AccumulatedRewards)
	cpy.CommissionDust = new(big.Int).Set(v.CommissionDust)
	return &cpy
}
