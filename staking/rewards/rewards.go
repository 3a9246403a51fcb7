// Copyright (c) 2026 The Findora Network developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package rewards computes per-block reward accrual: the proposer bonus, the
// power-weighted validator shares, the commission split, and the pro-rata
// distribution to delegators. All math is integer with floor division; every
// truncation remainder lands in a per-validator dust accumulator that rolls
// into the next block's commission cut, so no unit is ever lost and no
// iteration order can leak into amounts.
package rewards

import (
	"bytes"
	"math/big"
	"sort"

	"github.com/pkg/errors"

	"github.com/findoranetwork/stakingd/fra"
	"github.com/findoranetwork/stakingd/log"
	"github.com/findoranetwork/stakingd/staking/delegation"
	"github.com/findoranetwork/stakingd/staking/validation"
)

var logger = log.WithContext("pkg", "rewards")

// Engine accrues block rewards into the registry and delegation ledger.
type Engine struct {
	reg *validation.Registry
	del *delegation.Ledger
}

// New creates a reward engine over the given registry and ledger.
func New(reg *validation.Registry, del *delegation.Ledger) *Engine {
	return &Engine{reg: reg, del: del}
}

// Settle mints the block reward for height h and accrues it: the proposer
// bonus commission-free to the proposer, the remainder across the active set
// weighted by voting power. It returns the total actually minted.
func (e *Engine) Settle(height uint64, proposer fra.PubKey, active []validation.Candidate) (*big.Int, error) {
	minted := new(big.Int)
	if len(active) == 0 {
		return minted, nil
	}

	reward := fra.BlockRewardAt(height)
	bonus := fra.ProposerBonus.MulFloor(reward)
	base := new(big.Int).Sub(reward, bonus)

	// proposer bonus, commission-free
	if entry := e.reg.Get(proposer); entry != nil && entry.Sanction == validation.SanctionNone {
		entry.AccumulatedRewards.Add(entry.AccumulatedRewards, bonus)
		minted.Add(minted, bonus)
	} else {
		logger.Warn("proposer not rewardable", "proposer", proposer)
	}

	totalPower := new(big.Int)
	for _, c := range active {
		totalPower.Add(totalPower, c.Power)
	}
	if totalPower.Sign() <= 0 {
		return minted, errors.New("active set with zero total power")
	}

	// canonical order: distribution iterates by pubkey, not by rank
	ordered := make([]validation.Candidate, len(active))
	copy(ordered, active)
	sort.Slice(ordered, func(i, j int) bool {
		return bytes.Compare(ordered[i].PubKey[:], ordered[j].PubKey[:]) < 0
	})

	distributed := new(big.Int)
	for _, c := range ordered {
		share := new(big.Int).Mul(base, c.Power)
		share.Div(share, totalPower)
		if share.Sign() == 0 {
			continue
		}
		if err := e.settleValidator(c.PubKey, share); err != nil {
			return nil, err
		}
		distributed.Add(distributed, share)
		minted.Add(minted, share)
	}

	// the global truncation remainder rolls into the proposer's dust bucket
	leftover := new(big.Int).Sub(base, distributed)
	if leftover.Sign() > 0 {
		if entry := e.reg.Get(proposer); entry != nil && entry.Sanction == validation.SanctionNone {
			entry.CommissionDust.Add(entry.CommissionDust, leftover)
			minted.Add(minted, leftover)
		}
	}
	return minted, nil
}

// settleValidator splits one validator's share: commission (plus rolled-over
// dust) to the validator, the rest pro-rata across its bonded delegations.
func (e *Engine) settleValidator(pk fra.PubKey, share *big.Int) error {
	entry := e.reg.Get(pk)
	if entry == nil {
		return errors.New("active candidate missing from registry")
	}

	commission := entry.Commission.MulFloor(share)
	pool := new(big.Int).Sub(share, commission)

	// dust from earlier blocks rolls into this block's commission cut
	commission.Add(commission, entry.CommissionDust)
	entry.CommissionDust = new(big.Int)

	rows := e.del.BondedTo(pk)
	totalPrincipal := new(big.Int)
	for _, row := range rows {
		totalPrincipal.Add(totalPrincipal, row.Principal)
	}
	if totalPrincipal.Sign() == 0 {
		// no bonded principal (a genesis validator running on configured
		// power): everything goes to the validator
		commission.Add(commission, pool)
		pool = new(big.Int)
	}

	split := new(big.Int)
	for _, row := range rows {
		cut := new(big.Int).Mul(pool, row.Principal)
		cut.Div(cut, totalPrincipal)
		row.AccruedReward.Add(row.AccruedReward, cut)
		split.Add(split, cut)
	}
	if pool.Sign() > 0 {
		entry.CommissionDust.Add(entry.CommissionDust, new(big.Int).Sub(pool, split))
	}

	entry.AccumulatedRewards.Add(entry.AccumulatedRewards, commission)
	return nil
}
