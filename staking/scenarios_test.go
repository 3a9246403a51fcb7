// Copyright (c) 2026 The Findora Network developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package staking

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/findoranetwork/stakingd/fra"
	"github.com/findoranetwork/stakingd/staking/coinbase"
	"github.com/findoranetwork/stakingd/staking/delegation"
	"github.com/findoranetwork/stakingd/staking/validation"
)

const genesisPower = 1_000_000_000

// A new candidate self-bonding the minimum stake enters the active set,
// pushing out the weakest genesis member.
func TestSelfDelegateToCandidate(t *testing.T) {
	e := newTestEnv(t, 20, genesisPower)

	vNew := e.registerValidator(100, fra.Ratio{Num: 1, Den: 10})
	bond := fraUnits(1_000_000) // 1M FRA, exactly the candidate minimum

	diff := e.selfDelegate(vNew, bond)

	power, ok := powerOf(diff, vNew)
	require.True(t, ok, "new validator missing from diff")
	assert.Equal(t, bond.Uint64(), power)

	// exactly one genesis validator is pushed out with power zero
	var removed int
	for _, entry := range diff {
		if entry.Power == 0 {
			removed++
		}
	}
	assert.Equal(t, 1, removed)

	published := e.stk.Published()
	assert.Len(t, published, fra.MaxActiveValidators)
	_, ok = powerOf(published, vNew)
	assert.True(t, ok)
}

// Appending stake to an existing bond raises the published power by exactly
// the appended amount.
func TestAppendStake(t *testing.T) {
	e := newTestEnv(t, 20, genesisPower)

	vNew := e.registerValidator(100, fra.Ratio{Num: 1, Den: 10})
	e.selfDelegate(vNew, fraUnits(1_000_000))

	diff := e.selfDelegate(vNew, fraUnits(2_000_000))
	power, ok := powerOf(diff, vNew)
	require.True(t, ok)
	assert.Equal(t, fraUnits(3_000_000).Uint64(), power)

	row := e.stk.Delegation(vraOf(vNew), vNew)
	require.NotNil(t, row)
	assert.Equal(t, fraUnits(3_000_000), row.Principal)
}

// Undelegating drops power to zero, freezes the bond for the unbonding
// period, and settles with the principal paid back and the lock released.
func TestUndelegateAndSettle(t *testing.T) {
	restore := fra.UnbondBlocks
	fra.UnbondBlocks = 5
	defer func() { fra.UnbondBlocks = restore }()

	e := newTestEnv(t, 20, genesisPower)
	e.feePerBlock = fraUnits(200) // network fees keep the reward pool solvent
	vNew := e.registerValidator(100, fra.Ratio{Num: 1, Den: 10})
	bond := fraUnits(1_000_000)
	e.selfDelegate(vNew, bond)

	delegator := vraOf(vNew)
	assert.True(t, e.stk.AccountIsLockRestricted(delegator))

	diff := e.step(&UnDelegationOp{Delegator: delegator, Validator: vNew})
	require.Empty(t, e.takeRejects())
	power, ok := powerOf(diff, vNew)
	require.True(t, ok, "exit must be published")
	assert.Zero(t, power)

	row := e.stk.Delegation(delegator, vNew)
	require.NotNil(t, row)
	assert.Equal(t, delegation.StateUnbonding, row.State)
	finish := e.height + fra.UnbondBlocks
	assert.Equal(t, finish, row.UnbondFinish)

	// the clock runs out; the bonded principal was held by the coinbase, so
	// coverage is there and the row settles
	e.steps(int(fra.UnbondBlocks))
	assert.Nil(t, e.stk.Delegation(delegator, vNew))
	assert.False(t, e.stk.AccountIsLockRestricted(delegator))

	// principal came back through the payout queue, on top of any rewards
	assert.True(t, e.led.BalanceOf(delegator).Cmp(bond) >= 0,
		"principal not returned: got %s", e.led.BalanceOf(delegator))
}

// A claim against an empty coinbase stalls the queue; a sufficient
// distribution un-stalls it and payouts resume in FIFO order.
func TestCoinbaseStallAndRecovery(t *testing.T) {
	e := newTestEnv(t, 4, genesisPower)

	// accrue a few blocks of rewards for the genesis validators
	e.steps(3)
	claimant := e.genesis[1]
	accumulated := e.stk.Validator(claimant).AccumulatedRewards
	require.True(t, accumulated.Sign() > 0)

	// coinbase has no inflow yet: the claim intent must stall
	e.step(&ClaimOp{Delegator: vraOf(claimant), Validator: claimant})
	require.Empty(t, e.takeRejects())
	assert.True(t, e.stk.CoinbaseStalled())
	assert.Zero(t, e.led.PayoutCount())

	// a distribution funds the coinbase up front; the stuck intent clears
	// within one block
	dist := &FraDistributionOp{
		Entries: []DistEntry{{
			Addr:          fra.BytesToAddress([]byte("community-pool")),
			Amount:        new(big.Int).Add(accumulated, accumulated),
			ReleaseHeight: e.height + 10,
		}},
		Nonce: [16]byte{0xd1},
	}
	e.signDistribution(dist, e.majority()...)
	e.step(dist)
	require.Empty(t, e.takeRejects())

	assert.False(t, e.stk.CoinbaseStalled())
	payouts := e.led.Payouts()
	require.NotEmpty(t, payouts)
	assert.Equal(t, vraOf(claimant), payouts[0].Target)
	assert.True(t, payouts[0].Amount.Cmp(accumulated) >= 0)
}

// Double-sign evidence tombstones the validator, fully slashes its
// delegations, and recomputes the active set without it.
func TestDoubleSignSlash(t *testing.T) {
	e := newTestEnv(t, 20, genesisPower)
	vBad := e.registerValidator(100, fra.Ratio{Num: 1, Den: 10})
	bond := fraUnits(1_000_000)
	e.selfDelegate(vBad, bond)

	burnedBefore := e.stk.Burned()

	diff := e.withEvidence(Evidence{
		Validator: vBad.Address(),
		Kind:      FaultDuplicateVote,
		Height:    e.height,
	}).step()

	entry := e.stk.Validator(vBad)
	require.NotNil(t, entry)
	assert.Equal(t, validation.SanctionTombstoned, entry.Sanction)

	// full principal slash drops the row entirely
	assert.Nil(t, e.stk.Delegation(vraOf(vBad), vBad))

	burned := new(big.Int).Sub(e.stk.Burned(), burnedBefore)
	assert.True(t, burned.Cmp(bond) >= 0, "burned %s < bond %s", burned, bond)

	power, ok := powerOf(diff, vBad)
	require.True(t, ok, "removal must be published")
	assert.Zero(t, power)

	// tombstoned forever: re-delegating is refused
	e.step(&DelegationOp{Delegator: vraOf(vBad), Validator: vBad, Amount: bond})
	rejects := e.takeRejects()
	require.Len(t, rejects, 1)
	assert.Equal(t, InvalidOp, rejects[0].Kind)
}

// A validator update signed by half the power is rejected without any state
// change.
func TestGovernanceBelowThreshold(t *testing.T) {
	e := newTestEnv(t, 20, genesisPower)

	target, _ := testKey(100)
	op := &ValidatorUpdateOp{
		Patches: []ValidatorPatch{{
			PubKey:      target,
			RewardsAddr: vraOf(target),
			Commission:  fra.Ratio{Num: 1, Den: 10},
		}},
		Nonce: [16]byte{0x51},
	}
	e.signUpdate(op, e.genesis[:10]...) // 50% of equal power

	before := e.stk.Published()
	e.step(op)

	rejects := e.takeRejects()
	require.Len(t, rejects, 1)
	assert.Equal(t, InvalidOp, rejects[0].Kind)
	assert.Nil(t, e.stk.Validator(target))
	assert.Equal(t, before, e.stk.Published())
}

// Governance slashing with sufficient weight jails for liveness faults.
func TestGovernanceOfflineJail(t *testing.T) {
	e := newTestEnv(t, 5, genesisPower)
	target := e.genesis[4]

	op := &GovernanceOp{
		Target: target.Address(),
		Fault:  FaultOffline,
		Height: e.height,
		Nonce:  [16]byte{0x52},
	}
	e.signGovernance(op, e.majority()...)
	diff := e.step(op)
	require.Empty(t, e.takeRejects())

	entry := e.stk.Validator(target)
	require.NotNil(t, entry)
	assert.Equal(t, validation.SanctionJailed, entry.Sanction)
	assert.Equal(t, e.height+fra.JailBlocks, entry.JailedUntil)

	power, ok := powerOf(diff, target)
	require.True(t, ok)
	assert.Zero(t, power)
}

// Delegating while an unbonding row exists anywhere is refused.
func TestNoBondWhileUnbonding(t *testing.T) {
	e := newTestEnv(t, 20, genesisPower)
	v1 := e.registerValidator(100, fra.Ratio{Num: 1, Den: 10})
	v2 := e.registerValidator(101, fra.Ratio{Num: 1, Den: 10})

	outsider := fra.BytesToAddress([]byte("delegator-1"))
	e.selfDelegate(v1, fraUnits(1_000_000))
	e.step(&DelegationOp{Delegator: outsider, Validator: v1, Amount: fraUnits(100)})
	require.Empty(t, e.takeRejects())

	e.step(&UnDelegationOp{Delegator: outsider, Validator: v1})
	require.Empty(t, e.takeRejects())

	e.step(&DelegationOp{Delegator: outsider, Validator: v2, Amount: fraUnits(100)})
	rejects := e.takeRejects()
	require.Len(t, rejects, 1)
	assert.Equal(t, PreconditionFailed, rejects[0].Kind)
}

// Claims can be partial; claiming part of the accumulated rewards leaves the
// remainder accrued.
func TestPartialClaim(t *testing.T) {
	e := newTestEnv(t, 4, genesisPower)
	e.steps(2)

	claimant := e.genesis[2]
	accumulated := e.stk.Validator(claimant).AccumulatedRewards
	require.True(t, accumulated.Cmp(big.NewInt(100)) > 0)

	part := big.NewInt(100)
	e.step(&ClaimOp{Delegator: vraOf(claimant), Validator: claimant, Amount: part})
	require.Empty(t, e.takeRejects())

	left := e.stk.Validator(claimant).AccumulatedRewards
	// a block of fresh rewards accrued in between; the claimed part is gone
	expected := new(big.Int).Sub(accumulated, part)
	assert.True(t, left.Cmp(expected) >= 0)
}

// A delegation to an unknown validator and a zero amount are invalid ops.
func TestDelegationRejects(t *testing.T) {
	e := newTestEnv(t, 4, genesisPower)
	unknown, _ := testKey(200)

	e.step(
		&DelegationOp{Delegator: fra.BytesToAddress([]byte("x")), Validator: unknown, Amount: fraUnits(1)},
		&DelegationOp{Delegator: fra.BytesToAddress([]byte("x")), Validator: e.genesis[0], Amount: new(big.Int)},
	)
	rejects := e.takeRejects()
	require.Len(t, rejects, 2)
	assert.Equal(t, InvalidOp, rejects[0].Kind)
	assert.Equal(t, InvalidOp, rejects[1].Kind)
}

// An intent created while the coinbase is short survives across blocks and is
// paid once fees arrive; nothing is lost and order is preserved.
func TestBackpressureFIFO(t *testing.T) {
	e := newTestEnv(t, 4, genesisPower)
	e.steps(2)

	first := e.genesis[0]
	second := e.genesis[1]
	firstAmount := e.stk.Validator(first).AccumulatedRewards
	require.True(t, firstAmount.Sign() > 0)

	e.step(&ClaimOp{Delegator: vraOf(first), Validator: first})
	e.step(&ClaimOp{Delegator: vraOf(second), Validator: second})
	require.Empty(t, e.takeRejects())
	assert.True(t, e.stk.CoinbaseStalled())

	// fee inflow restores the balance over the next blocks
	topUp := new(big.Int).Mul(firstAmount, big.NewInt(16))
	require.NoError(t, e.stk.BeginBlock(e.height+1, e.genesis[0].Address(), e.signerAddrs(), nil))
	require.NoError(t, e.stk.ChargeFee(fra.Blake2b([]byte("tx")), topUp))
	_, err := e.stk.EndBlock(e.height + 1)
	require.NoError(t, err)
	e.height++

	payouts := e.led.Payouts()
	require.True(t, len(payouts) >= 2)
	assert.Equal(t, vraOf(first), payouts[0].Target)
	assert.Equal(t, vraOf(second), payouts[1].Target)
	assert.False(t, e.stk.CoinbaseStalled())
}

// Jailed validators are excluded from the set and reinstated after the jail
// term, provided they remain eligible.
func TestJailRelease(t *testing.T) {
	restore := fra.JailBlocks
	fra.JailBlocks = 3
	defer func() { fra.JailBlocks = restore }()

	e := newTestEnv(t, 5, genesisPower)
	target := e.genesis[4]

	op := &GovernanceOp{Target: target.Address(), Fault: FaultOffline, Height: e.height, Nonce: [16]byte{0x53}}
	e.signGovernance(op, e.majority()...)
	e.step(op)
	require.Empty(t, e.takeRejects())
	_, ok := powerOf(e.stk.Published(), target)
	assert.False(t, ok)

	e.steps(int(fra.JailBlocks) + 1)
	entry := e.stk.Validator(target)
	assert.Equal(t, validation.SanctionNone, entry.Sanction)
	_, ok = powerOf(e.stk.Published(), target)
	assert.True(t, ok, "released validator must rejoin")
}

// Reward intents keep their declared reasons through the queue.
func TestPayoutReasons(t *testing.T) {
	e := newTestEnv(t, 4, genesisPower)
	e.steps(1)

	e.step(&ClaimOp{Delegator: vraOf(e.genesis[0]), Validator: e.genesis[0]})
	require.Empty(t, e.takeRejects())

	snap, err := e.stk.Snapshot()
	require.NoError(t, err)
	require.NotEmpty(t, snap.PayoutQueue)
	assert.Equal(t, coinbase.ReasonBlockReward, snap.PayoutQueue[0].Reason)
}
