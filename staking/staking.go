// Copyright (c) 2026 The Findora Network developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package staking is the deterministic state machine behind the consensus
// driver: it owns the validator registry, the delegation ledger, the reward
// engine, the coinbase payout queue and the governance/slashing rules, and
// publishes a validator diff back to the consensus driver at every block
// boundary.
package staking

import (
	"math"
	"math/big"

	"github.com/pkg/errors"

	"github.com/findoranetwork/stakingd/fra"
	"github.com/findoranetwork/stakingd/ledger"
	"github.com/findoranetwork/stakingd/log"
	"github.com/findoranetwork/stakingd/metrics"
	"github.com/findoranetwork/stakingd/staking/coinbase"
	"github.com/findoranetwork/stakingd/staking/delegation"
	"github.com/findoranetwork/stakingd/staking/rewards"
	"github.com/findoranetwork/stakingd/staking/validation"
)

var (
	logger = log.WithContext("pkg", "staking")

	metricHeight    = metrics.LazyLoadGauge("block_height")
	metricActive    = metrics.LazyLoadGauge("active_validators")
	metricBurned    = metrics.LazyLoadCounter("burned_units_total")
	metricSlashes   = metrics.LazyLoadCounterVec("slashes_total", []string{"fault"})
	metricRejects   = metrics.LazyLoadCounterVec("op_rejects_total", []string{"kind"})
	metricMinted    = metrics.LazyLoadCounter("minted_units_total")
	metricCoinbase  = metrics.LazyLoadGauge("coinbase_balance")
	metricOpApplied = metrics.LazyLoadCounterVec("ops_applied_total", []string{"op"})
)

// PowerEntry is one row of the published validator set. A zero power removes
// the validator on the consensus side.
type PowerEntry struct {
	PubKey fra.PubKey
	Power  uint64
}

// Staking is the staking core. All mutation happens inside a block's
// begin-to-end window; the driver methods in driver.go and ChargeFee are the
// only entry points. The struct is not safe for concurrent use: the consensus driver
// feeds it block-serialized.
type Staking struct {
	reg    *validation.Registry
	del    *delegation.Ledger
	cb     *coinbase.Coinbase
	engine *rewards.Engine

	payer ledger.Payer

	scheduled []DistEntry
	burned    *big.Int

	curHeight   uint64
	published   []PowerEntry
	feesPending *big.Int

	inBlock       bool
	blockProposer fra.PubKey
}

// New creates an empty staking core paying out through the given ledger.
func New(payer ledger.Payer) *Staking {
	reg := validation.NewRegistry()
	del := delegation.NewLedger()
	return &Staking{
		reg:         reg,
		del:         del,
		cb:          coinbase.New(),
		engine:      rewards.New(reg, del),
		payer:       payer,
		burned:      new(big.Int),
		feesPending: new(big.Int),
	}
}

// Height returns the last committed block height.
func (s *Staking) Height() uint64 {
	return s.curHeight
}

// Validator returns a copy of the validator entry, or nil.
func (s *Staking) Validator(pk fra.PubKey) *validation.Validation {
	if entry := s.reg.Get(pk); entry != nil {
		return entry.Copy()
	}
	return nil
}

// Delegation returns a copy of the delegation row, or nil.
func (s *Staking) Delegation(delegator fra.Address, validator fra.PubKey) *delegation.Entry {
	if entry := s.del.Get(delegation.Key{Delegator: delegator, Validator: validator}); entry != nil {
		return entry.Copy()
	}
	return nil
}

// AccountIsLockRestricted implements the ledger collaborator's lock query:
// while any delegation of the address is bonded or unbonding, outgoing
// transfers are rejected.
func (s *Staking) AccountIsLockRestricted(addr fra.Address) bool {
	return s.del.IsLockRestricted(addr)
}

// CoinbaseBalance returns a copy of the coinbase balance.
func (s *Staking) CoinbaseBalance() *big.Int {
	return s.cb.Balance()
}

// CoinbaseStalled reports whether the payout queue head cannot be paid.
func (s *Staking) CoinbaseStalled() bool {
	return s.cb.Stalled()
}

// Published returns the validator set most recently published to the
// consensus driver.
func (s *Staking) Published() []PowerEntry {
	out := make([]PowerEntry, len(s.published))
	copy(out, s.published)
	return out
}

// Burned returns the total supply removed by slashing.
func (s *Staking) Burned() *big.Int {
	return new(big.Int).Set(s.burned)
}

// ChargeFee credits transaction fees to the coinbase. Fees accumulate during
// the block and land on the balance at end-block.
func (s *Staking) ChargeFee(txid fra.Bytes32, amount *big.Int) error {
	if !s.inBlock {
		return errors.New("fee charged outside a block")
	}
	if amount.Sign() < 0 || !fitsAmount(amount) {
		return rejectf(InvalidOp, "invalid fee amount for tx %s", txid)
	}
	s.feesPending.Add(s.feesPending, amount)
	return nil
}

// publishedPowers returns the in-force voting powers as a cosig weight table.
func (s *Staking) publishedPowers() map[fra.PubKey]*big.Int {
	weights := make(map[fra.PubKey]*big.Int, len(s.published))
	for _, entry := range s.published {
		weights[entry.PubKey] = new(big.Int).SetUint64(entry.Power)
	}
	return weights
}

// fitsAmount bounds every externally supplied or accumulated amount to
// unsigned 128 bits. Anything beyond is an arithmetic violation.
func fitsAmount(x *big.Int) bool {
	return x.Sign() >= 0 && x.BitLen() <= 128
}

func clampInt64(x *big.Int) int64 {
	if !x.IsInt64() {
		return math.MaxInt64
	}
	return x.Int64()
}
