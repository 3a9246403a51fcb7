// Copyright (c) 2026 The Findora Network developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package fra

import (
	"math"
	"math/big"
)

// Constants of the staking economic model.
const (
	BlockInterval uint64 = 15 // time interval between two consecutive blocks, in seconds.

	FraDecimals = 6
	// Fra is the number of base units per FRA token.
	Fra uint64 = 1_000_000

	// MaxActiveValidators caps the size of the active set published to the
	// consensus driver.
	MaxActiveValidators = 20

	// RewardHalvingBlocks is the length of one block-reward era.
	RewardHalvingBlocks uint64 = 2_100_000
)

// Period parameters. Variables rather than constants so tests can shrink the
// clocks, the same way debug overrides shrink the staking periods upstream.
var (
	// UnbondBlocks is the freeze period of an unbonding delegation, about 21 days.
	UnbondBlocks uint64 = 21 * 24 * 3600 / BlockInterval

	// JailBlocks is how long a jailed validator stays ineligible.
	JailBlocks uint64 = UnbondBlocks

	// LivenessWindow is the number of consecutive missed blocks after which a
	// validator is treated as offline.
	LivenessWindow uint32 = 40
)

// MaxTotalPower bounds the summed voting power of the published set.
// The consensus driver rejects sets whose total power exceeds MaxInt64/8.
const MaxTotalPower int64 = math.MaxInt64 / 8

var (
	// MinSelfStake is the minimum self-bond for a validator to become a candidate.
	MinSelfStake = new(big.Int).Mul(big.NewInt(1_000_000), big.NewInt(int64(Fra)))

	// SigThreshold is the fraction of active voting power required by gated
	// multi-signature operations.
	SigThreshold = Ratio{Num: 67, Den: 100}

	// ProposerBonus is the fraction of the block reward routed to the block
	// proposer, commission-free.
	ProposerBonus = Ratio{Num: 1, Den: 100}

	initialBlockReward = new(big.Int).Mul(big.NewInt(100), big.NewInt(int64(Fra)))
	minBlockReward     = new(big.Int).SetUint64(Fra)
)

// LivenessRewardSlash is the fraction of accrued rewards slashed on a
// liveness fault.
var LivenessRewardSlash = Ratio{Num: 1, Den: 100}

// BlockRewardAt returns the FRA units minted at block h. The schedule halves
// every RewardHalvingBlocks and never drops below one FRA.
func BlockRewardAt(h uint64) *big.Int {
	era := h / RewardHalvingBlocks
	if era > 62 {
		era = 62
	}
	r := new(big.Int).Rsh(initialBlockReward, uint(era))
	if r.Cmp(minBlockReward) < 0 {
		return new(big.Int).Set(minBlockReward)
	}
	return r
}
