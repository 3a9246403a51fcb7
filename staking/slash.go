// Copyright (c) 2026 The Findora Network developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package staking

import (
	"math/big"

	"github.com/findoranetwork/stakingd/fra"
	"github.com/findoranetwork/stakingd/staking/validation"
)

// FaultKind names a slashable fault, either attributed by consensus evidence
// or by a gated Governance operation.
type FaultKind uint8

const (
	FaultUnknown FaultKind = iota
	// FaultDuplicateVote is signing two blocks at the same height.
	FaultDuplicateVote
	// FaultLightClientAttack is participating in a light-client attack.
	FaultLightClientAttack
	// FaultOffline is missing more than the liveness window of blocks.
	FaultOffline
)

func (k FaultKind) String() string {
	switch k {
	case FaultDuplicateVote:
		return "duplicate-vote"
	case FaultLightClientAttack:
		return "light-client-attack"
	case FaultOffline:
		return "offline"
	}
	return "unknown"
}

// ParseFaultKind maps the consensus driver's evidence type strings.
func ParseFaultKind(s string) FaultKind {
	switch s {
	case "DUPLICATE_VOTE":
		return FaultDuplicateVote
	case "LIGHT_CLIENT_ATTACK":
		return FaultLightClientAttack
	case "OFF_LINE":
		return FaultOffline
	}
	return FaultUnknown
}

type penalty struct {
	principal fra.Ratio
	reward    fra.Ratio
	sanction  validation.Sanction
}

// Per-fault slash table. Severe faults burn everything and tombstone; the
// liveness fault burns a sliver of rewards and jails.
var penalties = map[FaultKind]penalty{
	FaultDuplicateVote:     {principal: fra.Ratio{Num: 1, Den: 1}, reward: fra.Ratio{Num: 1, Den: 1}, sanction: validation.SanctionTombstoned},
	FaultLightClientAttack: {principal: fra.Ratio{Num: 1, Den: 1}, reward: fra.Ratio{Num: 1, Den: 1}, sanction: validation.SanctionTombstoned},
	FaultOffline:           {reward: fra.LivenessRewardSlash, sanction: validation.SanctionJailed},
}

// slash applies the per-fault penalty to a validator: sanction, principal
// slash across bonded and unbonding rows, reward slash of accrued and
// accumulated rewards. Slashed amounts are burned, never credited to the
// coinbase.
func (s *Staking) slash(entry *validation.Validation, fault FaultKind, height uint64) error {
	p, ok := penalties[fault]
	if !ok {
		return rejectf(InvalidOp, "unknown fault kind %d", fault)
	}

	logger.Warn("slashing validator",
		"pubkey", entry.PubKey,
		"fault", fault,
		"height", height,
		"sanction", p.sanction,
	)

	if err := s.reg.SetSanction(entry.PubKey, p.sanction, height+fra.JailBlocks); err != nil {
		return err
	}

	burned := new(big.Int)
	for _, row := range s.del.RowsOf(entry.PubKey) {
		if !p.principal.IsZero() {
			cut := p.principal.MulFloor(row.Principal)
			row.Principal.Sub(row.Principal, cut)
			burned.Add(burned, cut)
		}
		if !p.reward.IsZero() {
			cut := p.reward.MulFloor(row.AccruedReward)
			row.AccruedReward.Sub(row.AccruedReward, cut)
			burned.Add(burned, cut)
		}
		if row.Principal.Sign() == 0 {
			// nothing left to settle; a fully slashed row is dropped and any
			// residual accrual burns with it
			burned.Add(burned, row.AccruedReward)
			s.del.Drop(row.Key())
		}
	}

	if !p.reward.IsZero() {
		cut := p.reward.MulFloor(entry.AccumulatedRewards)
		entry.AccumulatedRewards.Sub(entry.AccumulatedRewards, cut)
		burned.Add(burned, cut)

		cut = p.reward.MulFloor(entry.CommissionDust)
		entry.CommissionDust.Sub(entry.CommissionDust, cut)
		burned.Add(burned, cut)
	}

	s.burned.Add(s.burned, burned)
	metricBurned().Add(clampInt64(burned))
	metricSlashes().AddWithLabel(1, map[string]string{"fault": fault.String()})
	return nil
}
